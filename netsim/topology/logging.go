// SPDX-License-Identifier: GPL-3.0-or-later

package topology

import (
	"io"
	"log/slog"
)

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// LogConfig configures the structured logger.
type LogConfig struct {
	// Format is [LogFormatText] (the default) or [LogFormatJSON].
	Format string `json:"format,omitempty" yaml:"format,omitempty"`

	// Level is "debug", "info" (the default), "warn" or "error".
	Level string `json:"level,omitempty" yaml:"level,omitempty"`
}

func (cfg *LogConfig) validate() error {
	switch cfg.Format {
	case "", LogFormatText, LogFormatJSON:
	default:
		return invalidf("unknown log format %q", cfg.Format)
	}
	_, err := cfg.level()
	return err
}

func (cfg *LogConfig) level() (slog.Level, error) {
	var level slog.Level
	if cfg.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return 0, invalidf("unknown log level %q", cfg.Level)
	}
	return level, nil
}

// NewLogger creates a [*slog.Logger] writing to w.
func NewLogger(w io.Writer, cfg LogConfig) (*slog.Logger, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	level, _ := cfg.level()
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
