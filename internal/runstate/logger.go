// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

package runstate

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/tomtom215/basketwise/internal/logging"
)

// badgerLogger routes badger's printf-style logging through zerolog.
// Badger info chatter is demoted to debug.
type badgerLogger struct {
	logger zerolog.Logger
}

func newBadgerLogger() *badgerLogger {
	return &badgerLogger{logger: logging.WithComponent("runstate")}
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error().Msgf(trim(format), args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn().Msgf(trim(format), args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug().Msgf(trim(format), args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Trace().Msgf(trim(format), args...)
}

// trim strips the trailing newline badger appends to its format strings.
func trim(format string) string {
	return strings.TrimRight(format, "\n")
}
