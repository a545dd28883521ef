package main

import (
	"fmt"
	"os"
	"time"

	"github.com/loykin/renewd/internal/config"
	"github.com/spf13/cobra"
)

// rootFlags mirrors the command surface; values are merged over the
// optional config file, flags winning.
type rootFlags struct {
	ConfigPath   string
	Cache        string
	IntervalMin  int
	HappyMin     int
	AlwaysRenew  bool
	Background   bool
	IgnoreErrors bool
	ExitOnError  bool
	SignalChild  bool
	RunTokenProg bool
	Verbose      bool
	PIDFile      string
	ChildPIDFile string
	ServiceURL   string
	HistoryDSN   string
	Listen       string
	LogFile      string
}

func (f *rootFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	// Flags stop at the first positional so the supervised command keeps
	// its own flags.
	fs.SetInterspersed(false)

	fs.StringVar(&f.ConfigPath, "config", "", "path to TOML config file (optional)")
	fs.StringVarP(&f.Cache, "cache", "k", "", "ticket cache to maintain (default: environment or per-user cache)")
	fs.IntVarP(&f.IntervalMin, "interval", "K", 0, "run as daemon, check the ticket every <interval> minutes")
	fs.IntVarP(&f.HappyMin, "happy", "H", 0, "exit 0 if the ticket lives at least <happy> minutes, else renew once")
	fs.BoolVarP(&f.AlwaysRenew, "always-renew", "a", false, "renew on every wakeup, not only near expiry")
	fs.BoolVarP(&f.Background, "background", "b", false, "detach and run in the background")
	fs.BoolVarP(&f.IgnoreErrors, "ignore-errors", "i", false, "keep running past cache or renewal-lifetime errors")
	fs.BoolVarP(&f.ExitOnError, "exit-on-error", "x", false, "exit immediately on any renewal error")
	fs.BoolVarP(&f.SignalChild, "signal-child", "s", false, "send SIGHUP to the command when the ticket cannot be renewed")
	fs.BoolVarP(&f.RunTokenProg, "token", "t", false, "run the token helper program after each renewal")
	fs.BoolVarP(&f.Verbose, "verbose", "v", false, "verbose logging")
	fs.StringVarP(&f.PIDFile, "pidfile", "p", "", "write the daemon PID to <file>")
	fs.StringVarP(&f.ChildPIDFile, "child-pidfile", "c", "", "write the command PID to <file>")
	fs.StringVar(&f.ServiceURL, "service-url", os.Getenv("RENEWD_SERVICE_URL"), "ticket service base URL")
	fs.StringVar(&f.HistoryDSN, "history-dsn", "", "record renewal history to this sink (sqlite or postgres DSN)")
	fs.StringVar(&f.Listen, "listen", "", "serve HTTP status and metrics on this address")
	fs.StringVar(&f.LogFile, "logfile", "", "write logs to this rotating file instead of stderr")
}

// buildConfig merges the config file and the flags into a validated run
// configuration. Trailing arguments are the command to supervise.
func buildConfig(cmd *cobra.Command, f *rootFlags, args []string) (config.Config, error) {
	var cfg config.Config
	if f.ConfigPath != "" {
		var err error
		cfg, err = config.FromFile(f.ConfigPath)
		if err != nil {
			return cfg, fmt.Errorf("cannot load config %s: %w", f.ConfigPath, err)
		}
	}

	fs := cmd.Flags()
	if fs.Changed("cache") {
		cfg.Cache = f.Cache
	}
	if fs.Changed("interval") {
		cfg.Interval = time.Duration(f.IntervalMin) * time.Minute
	}
	if fs.Changed("happy") {
		cfg.Happy = time.Duration(f.HappyMin) * time.Minute
	}
	if fs.Changed("always-renew") {
		cfg.AlwaysRenew = f.AlwaysRenew
	}
	if fs.Changed("background") {
		cfg.Background = f.Background
	}
	if fs.Changed("ignore-errors") {
		cfg.IgnoreErrors = f.IgnoreErrors
	}
	if fs.Changed("exit-on-error") {
		cfg.ExitOnError = f.ExitOnError
	}
	if fs.Changed("signal-child") {
		cfg.SignalChild = f.SignalChild
	}
	if fs.Changed("token") {
		cfg.RunTokenProg = f.RunTokenProg
	}
	if fs.Changed("verbose") {
		cfg.Verbose = f.Verbose
	}
	if fs.Changed("pidfile") {
		cfg.PIDFile = f.PIDFile
	}
	if fs.Changed("child-pidfile") {
		cfg.ChildPIDFile = f.ChildPIDFile
	}
	if fs.Changed("service-url") || cfg.ServiceURL == "" {
		cfg.ServiceURL = f.ServiceURL
	}
	if fs.Changed("history-dsn") {
		cfg.HistoryDSN = f.HistoryDSN
	}
	if fs.Changed("listen") {
		cfg.Listen = f.Listen
	}
	if fs.Changed("logfile") {
		cfg.Log.Path = f.LogFile
	}
	if len(args) > 0 {
		cfg.Command = args
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
