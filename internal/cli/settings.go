package cli

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wesleyorama2/crpt/internal/config"
	"github.com/wesleyorama2/crpt/internal/logging"
	"github.com/wesleyorama2/crpt/internal/output"
)

// loadConfig resolves configuration in order: defaults, --config file,
// .env and environment, then explicitly set flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	path, _ := cmd.Flags().GetString("config")
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}

	if err := config.ApplyEnv(cfg); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("capacity") {
		cfg.RateLimit.Capacity, _ = flags.GetInt("capacity")
	}
	if flags.Changed("window") {
		w, _ := flags.GetDuration("window")
		cfg.RateLimit.Window = config.Duration(w)
	}
	if flags.Changed("token") {
		cfg.Registry.Token, _ = flags.GetString("token")
	}
	if flags.Changed("base-url") {
		cfg.Registry.BaseURL, _ = flags.GetString("base-url")
	}
	if flags.Changed("concurrency") {
		cfg.Submit.Concurrency, _ = flags.GetInt("concurrency")
	}
	if flags.Changed("no-validate") {
		noValidate, _ := flags.GetBool("no-validate")
		cfg.Submit.Validate = !noValidate
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level, _ = flags.GetString("log-level")
	}

	if errs := config.Validate(cfg); len(errs) > 0 {
		return nil, errs
	}
	return cfg, nil
}

// newLogger writes to the command's stderr.
func newLogger(cmd *cobra.Command, cfg *config.Config) (*zap.Logger, error) {
	return logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cmd.ErrOrStderr(),
	})
}

func newFormatter(cmd *cobra.Command) *output.Formatter {
	verbose, _ := cmd.Flags().GetBool("verbose")
	noColor, _ := cmd.Flags().GetBool("no-color")
	return output.NewFormatter(verbose, output.ColorDisabled(noColor, cmd.OutOrStdout()))
}

// signalContext is cancelled on interrupt so queued callers leave the gate.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt)
}
