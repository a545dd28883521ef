package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/loykin/renewd/internal/daemonize"
	"github.com/loykin/renewd/internal/logger"
	"github.com/loykin/renewd/internal/renew"
	"github.com/loykin/renewd/internal/scheduler"
	"github.com/spf13/cobra"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "renewd:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:   "renewd [flags] [command ...]",
		Short: "Renew a ticket cache, optionally supervising a command",
		Long: `Renewd keeps the tickets in a credential cache renewed. It can run once,
run as a daemon waking on an interval, or wrap a command: the command gets an
isolated copy of the cache which is kept renewed until the command exits and
is removed afterwards.

Examples:
  renewd -K 60                       # renew every hour as a daemon
  renewd -H 30                       # exit 0 if the ticket lives 30+ minutes
  renewd -K 10 -b -p /run/renewd.pid # detached, with a PID file
  renewd -s -- long-batch-job        # supervise a command, SIGHUP on failure

If the environment variable ` + scheduler.EnvTokenProg + ` names a helper
program, it is run after each successful renewal when -t is given.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(cmd, flags, args)
			if err != nil {
				return err
			}
			lg := buildLogger(cfg.Log, cfg.Verbose)
			sched := scheduler.New(cfg, lg, renew.NewHTTPRenewer(renew.HTTPConfig{
				BaseURL: cfg.ServiceURL,
			}))
			if status := sched.Run(cmd.Context()); status != 0 {
				os.Exit(status)
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

// buildLogger writes to the rotating log file when configured, otherwise to
// stderr with color on terminals. The detached daemon copy has no terminal,
// so color never applies there.
func buildLogger(fileCfg logger.FileConfig, verbose bool) *slog.Logger {
	var w io.Writer
	color := false
	if fw := fileCfg.Writer(); fw != nil {
		w = fw
	} else if !daemonize.Active() {
		if fi, err := os.Stderr.Stat(); err == nil && fi.Mode()&os.ModeCharDevice != 0 {
			color = true
		}
	}
	return logger.New(w, verbose, color)
}
