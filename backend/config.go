package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"sheetsync/internal/hub"
	"sheetsync/internal/identity"
	"sheetsync/internal/presence"
)

const envPrefix = "SHEETSYNC_"

// Config is read from flags. Every flag can also be set through the
// environment as SHEETSYNC_<NAME>, with dashes turned into underscores;
// explicit flags win.
type Config struct {
	Addr           string
	DBPath         string
	Rows           int
	Cols           int
	SweepInterval  time.Duration
	IdleTimeout    time.Duration
	SessionTimeout time.Duration
	SendBuffer     int
	LogLevel       string
	LogPretty      bool
}

func LoadConfig(args []string) (Config, error) {
	var cfg Config
	fs := flag.NewFlagSet("sheetsync", flag.ContinueOnError)
	fs.StringVar(&cfg.Addr, "addr", ":8080", "http service address")
	fs.StringVar(&cfg.DBPath, "db", "", "bbolt database file; documents are kept in memory when empty")
	fs.IntVar(&cfg.Rows, "rows", hub.DefaultRows, "rows of a new document")
	fs.IntVar(&cfg.Cols, "cols", hub.DefaultCols, "columns of a new document")
	fs.DurationVar(&cfg.SweepInterval, "sweep-interval", presence.DefaultSweepInterval, "how often idle users are swept")
	fs.DurationVar(&cfg.IdleTimeout, "idle-timeout", presence.DefaultIdleTimeout, "presence idle timeout")
	fs.DurationVar(&cfg.SessionTimeout, "session-timeout", identity.DefaultSessionTimeout, "login token lifetime")
	fs.IntVar(&cfg.SendBuffer, "send-buffer", hub.DefaultSendBuffer, "outbound frames buffered per connection")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "zerolog level")
	fs.BoolVar(&cfg.LogPretty, "log-pretty", false, "human readable console logs")

	if err := applyEnv(fs); err != nil {
		return Config{}, err
	}
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if cfg.Rows <= 0 || cfg.Cols <= 0 {
		return Config{}, fmt.Errorf("document size %dx%d: must be positive", cfg.Rows, cfg.Cols)
	}
	return cfg, nil
}

// applyEnv sets flag values from the environment before the command line
// is parsed.
func applyEnv(fs *flag.FlagSet) (err error) {
	fs.VisitAll(func(f *flag.Flag) {
		if err != nil {
			return
		}
		v, ok := os.LookupEnv(envName(f.Name))
		if !ok {
			return
		}
		if setErr := fs.Set(f.Name, v); setErr != nil {
			err = fmt.Errorf("%s: %w", envName(f.Name), setErr)
		}
	})
	return err
}

func envName(flagName string) string {
	b := []byte(envPrefix + flagName)
	for i, ch := range b {
		switch {
		case ch == '-':
			b[i] = '_'
		case ch >= 'a' && ch <= 'z':
			b[i] = ch - 'a' + 'A'
		}
	}
	return string(b)
}
