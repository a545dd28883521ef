package config

import (
	"errors"
	"time"

	"github.com/loykin/renewd/internal/logger"
	"github.com/spf13/viper"
)

// Config is the immutable run configuration, built once at startup from
// flags and the optional TOML file.
type Config struct {
	// Cache is the credential cache name; empty selects the default.
	Cache string
	// Interval is the daemon wake cadence; 0 means one-shot.
	Interval time.Duration
	// Happy is the happy-ticket threshold; 0 disables the check.
	Happy time.Duration
	// RetryWait is how long to sleep after a failed cycle before waking
	// again. Defaults to one minute.
	RetryWait time.Duration

	AlwaysRenew  bool
	Background   bool
	IgnoreErrors bool
	ExitOnError  bool
	SignalChild  bool
	Verbose      bool
	RunTokenProg bool

	// Command is the optional supervised child argv.
	Command []string

	PIDFile      string
	ChildPIDFile string

	// ServiceURL is the ticket service renewal endpoint.
	ServiceURL string

	// HistoryDSN selects an optional renewal history sink.
	HistoryDSN string
	// Listen enables the HTTP status endpoint when non-empty.
	Listen string

	// Log configures the rotating daemon log file.
	Log logger.FileConfig
}

// fileConfig is the TOML layout accepted by --config.
type fileConfig struct {
	Cache           string            `mapstructure:"cache"`
	IntervalMinutes int               `mapstructure:"interval_minutes"`
	HappyMinutes    int               `mapstructure:"happy_minutes"`
	AlwaysRenew     bool              `mapstructure:"always_renew"`
	Background      bool              `mapstructure:"background"`
	IgnoreErrors    bool              `mapstructure:"ignore_errors"`
	ExitOnError     bool              `mapstructure:"exit_on_error"`
	SignalChild     bool              `mapstructure:"signal_child"`
	Verbose         bool              `mapstructure:"verbose"`
	RunTokenProg    bool              `mapstructure:"run_token_prog"`
	PIDFile         string            `mapstructure:"pidfile"`
	ChildPIDFile    string            `mapstructure:"child_pidfile"`
	ServiceURL      string            `mapstructure:"service_url"`
	HistoryDSN      string            `mapstructure:"history_dsn"`
	Listen          string            `mapstructure:"listen"`
	Log             logger.FileConfig `mapstructure:"log"`
}

// FromFile loads a TOML config file into a Config. Flags applied afterwards
// by the CLI take precedence over file values.
func FromFile(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return Config{}, err
	}
	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return Config{}, err
	}
	return Config{
		Cache:        fc.Cache,
		Interval:     time.Duration(fc.IntervalMinutes) * time.Minute,
		Happy:        time.Duration(fc.HappyMinutes) * time.Minute,
		AlwaysRenew:  fc.AlwaysRenew,
		Background:   fc.Background,
		IgnoreErrors: fc.IgnoreErrors,
		ExitOnError:  fc.ExitOnError,
		SignalChild:  fc.SignalChild,
		Verbose:      fc.Verbose,
		RunTokenProg: fc.RunTokenProg,
		PIDFile:      fc.PIDFile,
		ChildPIDFile: fc.ChildPIDFile,
		ServiceURL:   fc.ServiceURL,
		HistoryDSN:   fc.HistoryDSN,
		Listen:       fc.Listen,
		Log:          fc.Log,
	}, nil
}

// Validate enforces configuration consistency before any setup happens.
func (c *Config) Validate() error {
	daemon := c.Interval > 0 || len(c.Command) > 0
	if c.AlwaysRenew && !daemon {
		return errors.New("always-renew only makes sense with an interval or a command to run")
	}
	if c.Background && !daemon {
		return errors.New("background only makes sense with an interval or a command to run")
	}
	if c.Happy > 0 && len(c.Command) > 0 {
		return errors.New("happy-ticket check cannot be used with a command")
	}
	if c.ChildPIDFile != "" && len(c.Command) == 0 {
		return errors.New("child-pidfile only makes sense with a command to run")
	}
	if c.SignalChild && len(c.Command) == 0 {
		return errors.New("signal-child only makes sense with a command to run")
	}
	if c.Interval < 0 || c.Happy < 0 {
		return errors.New("interval and happy-ticket threshold must not be negative")
	}
	if c.ServiceURL == "" {
		return errors.New("ticket service URL is required")
	}
	return nil
}

// Normalize fills derived defaults after validation: a supervised command
// implies daemon mode with a one hour default interval, and failed cycles
// retry after a minute.
func (c *Config) Normalize() {
	if len(c.Command) > 0 && c.Interval == 0 {
		c.Interval = 60 * time.Minute
	}
	if c.RetryWait == 0 {
		c.RetryWait = time.Minute
	}
}
