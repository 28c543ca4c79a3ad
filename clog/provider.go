// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package clog

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// EnvLogLevel overrides the level of the default provider.
const EnvLogLevel = "B42_LOG_LEVEL"

// Output is where the default provider writes. Replace it before creating
// loggers to redirect output.
var Output io.Writer = os.Stderr

type zerologProvider struct {
	logger zerolog.Logger
}

// NewZerologProvider wraps an existing zerolog logger as a LogProvider.
func NewZerologProvider(l zerolog.Logger) LogProvider {
	return zerologProvider{logger: l}
}

func newZerologProvider(prefix string) LogProvider {
	output := zerolog.ConsoleWriter{
		Out:        Output,
		TimeFormat: time.RFC3339,
	}
	ctx := zerolog.New(output).Level(levelFromEnv()).With().Timestamp()
	if p := strings.TrimSpace(prefix); p != "" {
		ctx = ctx.Str("component", p)
	}
	return zerologProvider{logger: ctx.Logger()}
}

func (sf zerologProvider) Critical(format string, v ...interface{}) {
	sf.logger.WithLevel(zerolog.ErrorLevel).Bool("critical", true).Msgf(format, v...)
}

func (sf zerologProvider) Error(format string, v ...interface{}) {
	sf.logger.Error().Msgf(format, v...)
}

func (sf zerologProvider) Warn(format string, v ...interface{}) {
	sf.logger.Warn().Msgf(format, v...)
}

func (sf zerologProvider) Info(format string, v ...interface{}) {
	sf.logger.Info().Msgf(format, v...)
}

func (sf zerologProvider) Debug(format string, v ...interface{}) {
	sf.logger.Debug().Msgf(format, v...)
}

func levelFromEnv() zerolog.Level {
	if lvl, ok := ParseLevel(os.Getenv(EnvLogLevel)); ok {
		return lvl
	}
	return zerolog.InfoLevel
}

// ParseLevel maps a level name to a zerolog level. ok is false for empty or
// unknown names.
func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error", "critical":
		return zerolog.ErrorLevel, true
	case "disabled", "disable", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}
