// Package cli implements dashctl, the terminal client of the dashboard BFF.
package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"redwhite/dashboard-bff/internal/apiclient"
	"redwhite/dashboard-bff/internal/kv"
	"redwhite/dashboard-bff/internal/timer"
)

// env is the per-invocation state shared by the subcommands. It is filled
// in by the root command's PersistentPreRunE.
type env struct {
	v       *viper.Viper
	cfgFile string
	verbose bool
	noColor bool

	cfg       *Config
	logger    *slog.Logger
	print     *printer
	store     kv.Store
	redis     *redis.Client
	client    *apiclient.Client
	stopwatch *timer.Timer
}

// NewRootCommand builds the dashctl command tree.
func NewRootCommand() *cobra.Command {
	e := &env{v: viper.New()}

	root := &cobra.Command{
		Use:   "dashctl",
		Short: "Terminal client for the dashboard BFF",
		Long: `dashctl talks to the dashboard backend with the same session cookie and
anti-forgery token the browser uses. The session, the profile cache and the
stopwatch are kept in a local state file (or Redis) between runs.

Example usage:
  dashctl login --email ana@example.com   # Prompts for the password
  dashctl session                         # Ask the backend if the session is live
  dashctl experiments create "Pricing B"  # Create an experiment
  dashctl timer start                     # Start the persisted stopwatch
  dashctl ui                              # Open the interactive dashboard`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return e.init(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			e.close()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&e.cfgFile, "config", "", "config file (default is $HOME/.config/dashctl/config.yaml)")
	flags.BoolVarP(&e.verbose, "verbose", "v", false, "verbose output")
	flags.BoolVar(&e.noColor, "no-color", false, "disable colored output")
	flags.String("server", "", "backend base URL")
	flags.Duration("timeout", 0, "request timeout")
	flags.String("state-file", "", "local state file")
	flags.String("redis-url", "", "keep local state in Redis instead of the state file")

	_ = e.v.BindPFlag("server", flags.Lookup("server"))
	_ = e.v.BindPFlag("timeout", flags.Lookup("timeout"))
	_ = e.v.BindPFlag("state_file", flags.Lookup("state-file"))
	_ = e.v.BindPFlag("redis_url", flags.Lookup("redis-url"))

	root.AddCommand(
		newLoginCommand(e),
		newLogoutCommand(e),
		newSessionCommand(e),
		newRefreshCommand(e),
		newPublicosCommand(e),
		newExperimentsCommand(e),
		newDashboardCommand(e),
		newTimerCommand(e),
		newUICommand(e),
	)
	return root
}

// Execute runs dashctl with os.Args.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

func (e *env) init(cmd *cobra.Command) error {
	cfg, err := LoadConfig(e.v, e.cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	e.cfg = cfg

	level := slog.LevelWarn
	switch {
	case e.verbose || cfg.Logging.Level == "debug":
		level = slog.LevelDebug
	case cfg.Logging.Level == "info":
		level = slog.LevelInfo
	case cfg.Logging.Level == "error":
		level = slog.LevelError
	}
	e.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	e.print = newPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg.Output.Colors && !e.noColor)

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		e.redis = redis.NewClient(opts)
		store, err := kv.NewRedis(e.redis)
		if err != nil {
			return fmt.Errorf("open redis state: %w", err)
		}
		e.store = kv.Namespace(store, "dashctl")
	} else {
		store, err := kv.NewFile(cfg.StateFile)
		if err != nil {
			return fmt.Errorf("open state file: %w", err)
		}
		e.store = store
	}

	client, err := apiclient.New(apiclient.Config{
		BaseURL: cfg.Server,
		Timeout: cfg.Timeout,
		Store:   e.store,
		Logger:  e.logger,
	})
	if err != nil {
		return err
	}
	e.client = client
	e.stopwatch = timer.New(e.store)

	e.logger.Debug("configuration loaded", "server", cfg.Server, "state_file", cfg.StateFile, "redis", cfg.RedisURL != "")
	return nil
}

func (e *env) close() {
	if e.redis != nil {
		_ = e.redis.Close()
	}
}
