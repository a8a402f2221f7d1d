package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/buildgrid/internal/app"
)

func TestParse_Defaults(t *testing.T) {
	cfg, exit, err := Parse(nil, &bytes.Buffer{})
	require.NoError(t, err)
	require.False(t, exit)

	assert.Equal(t, "build.hcl", cfg.BuildFile)
	assert.Equal(t, []string{app.DefaultTask}, cfg.Tasks)
	assert.False(t, cfg.Release)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 0, cfg.WorkerCount)
}

func TestParse_TasksAndFlags(t *testing.T) {
	args := []string{
		"--release", "--browsers=Chrome,Firefox", "--reporters", "dots",
		"-c", "conf/build.hcl", "--workers=4", "--dry-run",
		"--log-level=DEBUG", "--log-format=json",
		"bundle", "sass",
	}
	cfg, exit, err := Parse(args, &bytes.Buffer{})
	require.NoError(t, err)
	require.False(t, exit)

	assert.Equal(t, []string{"bundle", "sass"}, cfg.Tasks)
	assert.True(t, cfg.Release)
	assert.Equal(t, "Chrome,Firefox", cfg.Browsers)
	assert.Equal(t, "dots", cfg.Reporters)
	assert.Equal(t, "conf/build.hcl", cfg.BuildFile)
	assert.Equal(t, 4, cfg.WorkerCount)
	assert.True(t, cfg.DryRun)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestParse_Environment(t *testing.T) {
	t.Setenv("SAUCE_USER", "ionic")
	t.Setenv("SAUCE_KEY", "secret")
	t.Setenv("TRAVIS_BUILD_NUMBER", "1234")
	t.Setenv("BUILDGRID_RELEASE", "true")
	t.Setenv("BUILDGRID_LOG_LEVEL", "warn")

	cfg, _, err := Parse([]string{"cloudtest"}, &bytes.Buffer{})
	require.NoError(t, err)

	assert.Equal(t, "ionic", cfg.Tunnel.Username)
	assert.Equal(t, "secret", cfg.Tunnel.AccessKey)
	assert.Equal(t, "1234", cfg.Tunnel.TunnelID)
	assert.True(t, cfg.Release)
	assert.Equal(t, "warn", cfg.LogLevel)

	// Flags win over the environment.
	cfg, _, err = Parse([]string{"--log-level=error"}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.LogLevel)
}

func TestParse_TasksSubcommand(t *testing.T) {
	cfg, exit, err := Parse([]string{"tasks", "-c", "other.hcl"}, &bytes.Buffer{})
	require.NoError(t, err)
	require.False(t, exit)
	assert.True(t, cfg.ListTasks)
	assert.Equal(t, "other.hcl", cfg.BuildFile)
}

func TestParse_Help(t *testing.T) {
	out := &bytes.Buffer{}
	cfg, exit, err := Parse([]string{"-h"}, out)
	require.NoError(t, err)
	assert.True(t, exit)
	assert.Nil(t, cfg)
	assert.Contains(t, out.String(), "Usage:")
}

func TestParse_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		args    []string
		wantMsg string
	}{
		{"unknown flag", []string{"--nope"}, "unknown flag: --nope"},
		{"bad log format", []string{"--log-format=xml"}, "invalid log-format"},
		{"bad log level", []string{"--log-level=loud"}, "invalid log-level"},
		{"negative workers", []string{"--workers=-1"}, "WorkerCount must not be negative"},
		{"empty build file", []string{"--config="}, "BuildFile is a required"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := Parse(tc.args, &bytes.Buffer{})
			require.Error(t, err)
			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 2, exitErr.Code)
			assert.Contains(t, exitErr.Message, tc.wantMsg)
		})
	}
}
