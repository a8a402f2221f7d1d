package app

import (
	"errors"
	"fmt"

	"github.com/vk/buildgrid/internal/tunnel"
)

// DefaultTask runs when no task is named.
const DefaultTask = "default"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	BuildFile string   // hcl file or directory
	Tasks     []string // tasks to run, DefaultTask when empty

	Release   bool
	Browsers  string
	Reporters string
	Tunnel    tunnel.Credentials

	LogFormat   string
	LogLevel    string
	WorkerCount int
	DryRun      bool
	ListTasks   bool
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.BuildFile == "" {
		return nil, errors.New("BuildFile is a required configuration field and cannot be empty")
	}
	if cfg.WorkerCount < 0 {
		return nil, fmt.Errorf("WorkerCount must not be negative, got %d", cfg.WorkerCount)
	}
	if len(cfg.Tasks) == 0 {
		cfg.Tasks = []string{DefaultTask}
	}
	return &cfg, nil
}
