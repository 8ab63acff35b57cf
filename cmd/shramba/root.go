package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/erazemk/shramba/internal/config"
)

// Set by the linker.
var (
	version = "dev"
	commit  = "none"
)

type rootOptions struct {
	configPath string
	dbPath     string
	addr       string
	logPath    string
	verbose    bool

	cfg      *config.Config
	logger   *slog.Logger
	closeLog func()
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "shramba",
		Short:         "Household food inventory with expiry reminders",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if opts.closeLog != nil {
				opts.closeLog()
			}
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "HuJSON config file (default: $"+config.EnvConfigPath+")")
	flags.StringVarP(&opts.dbPath, "db", "d", "", "SQLite database path (default: shramba.db)")
	flags.StringVarP(&opts.addr, "addr", "a", "", "listen address (default: :8080)")
	flags.StringVarP(&opts.logPath, "log", "l", "", "log file path (default: stdout/stderr only)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(
		newServeCmd(opts),
		newRemindCmd(opts),
		newAddUserCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// load reads the configuration and lets explicit flags win over it.
func (o *rootOptions) load(cmd *cobra.Command) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.DBPath = o.dbPath
	}
	if flags.Changed("addr") {
		cfg.Addr = o.addr
	}
	if flags.Changed("log") {
		cfg.LogPath = o.logPath
	}

	logger, closeLog, err := setupLogger(logOptions{
		path:    cfg.LogPath,
		json:    !cfg.IsDevelopment(),
		verbose: o.verbose,
	})
	if err != nil {
		return err
	}

	o.cfg = cfg
	o.logger = logger
	o.closeLog = closeLog
	return nil
}
