// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

// Package clog is the internal logging facade of the b42 packages.
//
// A Clog is embedded by value in long-lived components so they can call
// sf.Debug/sf.Warn/... directly. Output is off until LogMode(true) is called.
package clog

import (
	"sync/atomic"
)

// LogProvider receives leveled, printf-style log messages.
type LogProvider interface {
	Critical(format string, v ...interface{})
	Error(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Info(format string, v ...interface{})
	Debug(format string, v ...interface{})
}

// Clog is the logger embedded in handlers and dispatchers.
type Clog struct {
	provider LogProvider
	// 1: output enabled, 0: disabled
	has *uint32
}

// NewLogger creates a logger backed by the default zerolog provider. prefix
// identifies the component and is attached to every message.
func NewLogger(prefix string) Clog {
	return Clog{
		provider: newZerologProvider(prefix),
		has:      new(uint32),
	}
}

// LogMode enables or disables log output.
func (sf *Clog) LogMode(enable bool) {
	if sf.has == nil {
		sf.has = new(uint32)
	}
	if enable {
		atomic.StoreUint32(sf.has, 1)
	} else {
		atomic.StoreUint32(sf.has, 0)
	}
}

// SetLogProvider replaces the provider. A nil provider is ignored.
func (sf *Clog) SetLogProvider(p LogProvider) {
	if p != nil {
		sf.provider = p
	}
}

func (sf Clog) enabled() bool {
	return sf.provider != nil && sf.has != nil && atomic.LoadUint32(sf.has) == 1
}

// Critical logs a CRITICAL level message.
func (sf Clog) Critical(format string, v ...interface{}) {
	if sf.enabled() {
		sf.provider.Critical(format, v...)
	}
}

// Error logs an ERROR level message.
func (sf Clog) Error(format string, v ...interface{}) {
	if sf.enabled() {
		sf.provider.Error(format, v...)
	}
}

// Warn logs a WARN level message.
func (sf Clog) Warn(format string, v ...interface{}) {
	if sf.enabled() {
		sf.provider.Warn(format, v...)
	}
}

// Info logs an INFO level message.
func (sf Clog) Info(format string, v ...interface{}) {
	if sf.enabled() {
		sf.provider.Info(format, v...)
	}
}

// Debug logs a DEBUG level message.
func (sf Clog) Debug(format string, v ...interface{}) {
	if sf.enabled() {
		sf.provider.Debug(format, v...)
	}
}
