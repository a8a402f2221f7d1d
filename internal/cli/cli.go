package cli

import (
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vk/buildgrid/internal/app"
	"github.com/vk/buildgrid/internal/tunnel"
)

// EnvPrefix prefixes the environment variable of every flag, with dashes
// replaced by underscores: BUILDGRID_LOG_LEVEL, BUILDGRID_RELEASE, ...
const EnvPrefix = "BUILDGRID"

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")

	v := viper.New()
	var parsed *app.Config

	collect := func(tasks []string, list bool) error {
		var err error
		parsed, err = buildConfig(v, tasks, list)
		return err
	}

	root := &cobra.Command{
		Use:   "buildgrid [flags] [TASK...]",
		Short: "Dependency-ordered build tasks with file pipelines and watch mode",
		Long: `buildgrid runs named build tasks and their dependencies, as declared by
the registered modules and the build file. With no task, "default" runs.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return collect(args, false)
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetArgs(args)
	root.SetOut(output)
	root.SetErr(output)

	flags := root.PersistentFlags()
	flags.Bool("release", false, "Build the release variant (minified, debug statements stripped).")
	flags.String("browsers", "", "Comma-separated browsers passed to the unit test runner.")
	flags.String("reporters", "", "Comma-separated reporters passed to the unit test runner.")
	flags.StringP("config", "c", "build.hcl", "Path to the build file or a directory of .hcl files.")
	flags.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	flags.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	flags.Int("workers", 0, "Maximum number of task actions in flight. 0 is unbounded.")
	flags.Bool("dry-run", false, "Print the execution plan without running anything.")
	_ = v.BindPFlags(flags)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("sauce.user", "SAUCE_USER")
	_ = v.BindEnv("sauce.key", "SAUCE_KEY")
	_ = v.BindEnv("sauce.tunnel_id", "TRAVIS_BUILD_NUMBER")

	root.AddCommand(&cobra.Command{
		Use:   "tasks",
		Short: "List registered tasks and their dependencies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return collect(nil, true)
		},
	})

	if err := root.Execute(); err != nil {
		if exitErr, ok := err.(*ExitError); ok {
			return nil, false, exitErr
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	// Help and similar informational paths never reach a RunE.
	if parsed == nil {
		return nil, true, nil
	}

	slog.Debug("CLI parser finished successfully.", "config", parsed)
	return parsed, false, nil
}

func buildConfig(v *viper.Viper, tasks []string, list bool) (*app.Config, error) {
	logFormat := strings.ToLower(v.GetString("log-format"))
	if logFormat != "text" && logFormat != "json" {
		return nil, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(v.GetString("log-level"))
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		BuildFile: v.GetString("config"),
		Tasks:     tasks,
		Release:   v.GetBool("release"),
		Browsers:  v.GetString("browsers"),
		Reporters: v.GetString("reporters"),
		Tunnel: tunnel.Credentials{
			Username:  v.GetString("sauce.user"),
			AccessKey: v.GetString("sauce.key"),
			TunnelID:  v.GetString("sauce.tunnel_id"),
		},
		LogFormat:   logFormat,
		LogLevel:    logLevel,
		WorkerCount: v.GetInt("workers"),
		DryRun:      v.GetBool("dry-run"),
		ListTasks:   list,
	})
	if err != nil {
		return nil, &ExitError{Code: 2, Message: err.Error()}
	}
	return config, nil
}
