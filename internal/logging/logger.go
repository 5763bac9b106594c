// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

// Package logging provides the zerolog-based process logger for Basketwise.
//
// Every package logs through this wrapper so that level, format and field
// names are configured once at startup:
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//	logging.Info().Str("household_id", id).Int("rules", n).Msg("Rules replaced")
//	logging.Ctx(ctx).Warn().Err(err).Msg("Price lookup failed")
//
// Libraries that expect a *slog.Logger (suture, watermill) receive one from
// NewSlogLogger, which forwards to the same zerolog instance.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logging configuration.
type Config struct {
	// Level is the minimum level: trace, debug, info, warn, error, fatal, panic, disabled.
	Level string

	// Format is json or console.
	Format string

	// Caller adds file:line to every entry.
	Caller bool

	// Timestamp adds the time field.
	Timestamp bool

	// Service is written as the "service" field of every entry. Empty omits it.
	Service string

	// Output defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() Config {
	return Config{
		Level:     "info",
		Format:    "json",
		Timestamp: true,
		Service:   "basketwise",
		Output:    os.Stderr,
	}
}

var levels = map[string]zerolog.Level{
	"trace":    zerolog.TraceLevel,
	"debug":    zerolog.DebugLevel,
	"info":     zerolog.InfoLevel,
	"warn":     zerolog.WarnLevel,
	"warning":  zerolog.WarnLevel,
	"error":    zerolog.ErrorLevel,
	"fatal":    zerolog.FatalLevel,
	"panic":    zerolog.PanicLevel,
	"disabled": zerolog.Disabled,
}

var (
	mu     sync.RWMutex
	global zerolog.Logger
)

//nolint:gochecknoinits // logging must work before Init is called
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.MessageFieldName = "message"
	global = build(DefaultConfig())
}

// Init replaces the global logger. Safe to call more than once; fields left
// empty fall back to DefaultConfig, except Timestamp and Caller.
func Init(cfg Config) {
	l := build(cfg)
	mu.Lock()
	global = l
	mu.Unlock()
}

func build(cfg Config) zerolog.Logger {
	defaults := DefaultConfig()
	if cfg.Level == "" {
		cfg.Level = defaults.Level
	}
	if cfg.Output == nil {
		cfg.Output = defaults.Output
	}
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	var out io.Writer = cfg.Output
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: "15:04:05"}
	}

	lc := zerolog.New(out).With()
	if cfg.Timestamp {
		lc = lc.Timestamp()
	}
	if cfg.Caller {
		lc = lc.Caller()
	}
	if cfg.Service != "" {
		lc = lc.Str("service", cfg.Service)
	}
	return lc.Logger()
}

// parseLevel maps a level name to zerolog, defaulting to info.
func parseLevel(name string) zerolog.Level {
	if lvl, ok := levels[strings.ToLower(strings.TrimSpace(name))]; ok {
		return lvl
	}
	return zerolog.InfoLevel
}

// Logger returns a copy of the global logger.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// SetLogger replaces the global logger, mostly for tests.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func SetLogger(l zerolog.Logger) {
	mu.Lock()
	global = l
	mu.Unlock()
}

// With creates a child logger context.
//
//	minerLog := logging.With().Str("component", "apriori").Logger()
func With() zerolog.Context {
	l := Logger()
	return l.With()
}

// Debug starts a debug level event.
func Debug() *zerolog.Event { l := Logger(); return l.Debug() }

// Info starts an info level event.
func Info() *zerolog.Event { l := Logger(); return l.Info() }

// Warn starts a warn level event.
func Warn() *zerolog.Event { l := Logger(); return l.Warn() }

// Error starts an error level event.
func Error() *zerolog.Event { l := Logger(); return l.Error() }

// Fatal starts a fatal level event; os.Exit(1) follows the write.
func Fatal() *zerolog.Event { l := Logger(); return l.Fatal() }

// Err starts an error level event carrying err, or info level when err is nil.
func Err(err error) *zerolog.Event { l := Logger(); return l.Err(err) }

// GetLevel returns the global level.
func GetLevel() zerolog.Level {
	return zerolog.GlobalLevel()
}

// SetLevel updates the global level.
func SetLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

// NewTestLogger returns a JSON logger writing to w.
//
//	var buf bytes.Buffer
//	logging.SetLogger(logging.NewTestLogger(&buf))
func NewTestLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}
