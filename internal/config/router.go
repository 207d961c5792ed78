package config

import (
	"fmt"

	"github.com/rs/zerolog"

	"modelkit/internal/logging"
	"modelkit/internal/notify"
)

// Validate checks the enumerated fields.
func (c Config) Validate() error {
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "", logging.FormatJSON, logging.FormatConsole:
	default:
		return fmt.Errorf("unknown log format: %q", c.LogFormat)
	}
	if _, err := notify.ParsePanicPolicy(c.PanicPolicy); err != nil {
		return err
	}
	return nil
}

// RouterOptions turns the configuration into router options. The logger is
// passed through as is.
func (c Config) RouterOptions(l zerolog.Logger) ([]notify.Option, error) {
	policy, err := notify.ParsePanicPolicy(c.PanicPolicy)
	if err != nil {
		return nil, err
	}
	return []notify.Option{
		notify.WithLogger(l),
		notify.WithPanicPolicy(policy),
		notify.WithCoalesce(c.Coalesce),
	}, nil
}
