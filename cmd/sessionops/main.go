// Command sessionops is the operator CLI for cookie extraction, export and
// session replay during authorized assessments.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"sessionops/internal/config"
	"sessionops/internal/logging"
	"sessionops/internal/store"
)

var (
	// Global flags
	verbose bool
	cfgPath string
	timeout time.Duration
	jsonOut bool

	logger *zap.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "sessionops",
	Short: "Cookie extraction, export and session replay for authorized assessments",
	Long: `sessionops turns cookie dumps captured on an assessed host into replayable
sessions.

  extract   parse tool output or drive an extraction tool through an executor
  export    render cookies as Netscape, JSON, EditThisCookie or a Cookie header
  cdp       list DevTools targets or inject cookies through a forwarded debugger
  replay    open a fresh browser with captured cookies and visit a URL
  profile   browser profile locations and pivot snippets
  store     inspect the local capture database`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zc := zap.NewProductionConfig()
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config %s: %w", cfgPath, err)
		}
		if err := logging.Initialize(cfg.LoggingOptions()); err != nil {
			logger.Warn("File logging disabled", zap.Error(err))
		}
		logging.Boot("sessionops %s starting (config=%s)", cmd.CommandPath(), cfgPath)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", ".sessionops/config.yaml", "Config file")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Minute, "Operation timeout")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Print results as JSON")

	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(cdpCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(storeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// commandContext bounds a command by --timeout and cancels on SIGINT/SIGTERM.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	if timeout <= 0 {
		return ctx, stop
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	return tctx, func() {
		cancel()
		stop()
	}
}

func openStore() (*store.CookieStore, error) {
	s, err := store.Open(cfg.Store.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open capture store: %w", err)
	}
	return s, nil
}
