// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package b42

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// DispatchMode selects when a Dispatcher invokes command callbacks.
type DispatchMode byte

const (
	ModeDeferred  DispatchMode = iota // Buffer frames until Dispatch is called
	ModeImmediate                     // Dispatch in the receiver goroutine as frames arrive
)

// String returns the configuration name of the mode.
func (m DispatchMode) String() string {
	switch m {
	case ModeDeferred:
		return "deferred"
	case ModeImmediate:
		return "immediate"
	default:
		return fmt.Sprintf("DispatchMode(%d)", byte(m))
	}
}

func parseDispatchMode(s string) (DispatchMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "deferred", "sync":
		return ModeDeferred, nil
	case "immediate", "async":
		return ModeImmediate, nil
	default:
		return 0, fmt.Errorf("unknown dispatch mode <%s>", s)
	}
}

// Parameter ranges and defaults.
const (
	DefaultMaxReadErrors = 10
	MaxReadErrorsMax     = 1000

	DefaultResetPulse = 100 * time.Millisecond
	ResetPulseMax     = 5 * time.Second

	TimeoutMax = 60 * time.Second
)

// Config defines a B42 handler configuration.
type Config struct {
	// Serial port or socket bridge settings
	Serial SerialConfig

	// Start the receiver loop when the handler is created.
	AutoStart bool

	// Dispatch mode for dispatchers built from this configuration.
	Dispatch DispatchMode

	// Consecutive failed reads after which the receiver loop gives up.
	MaxReadErrors int

	// How long DTR/RTS are held in each phase of a hard reset.
	ResetPulse time.Duration
}

// Valid applies defaults and checks configuration validity.
func (sf *Config) Valid() error {
	if sf == nil {
		return errors.New("invalid nil config")
	}

	if sf.Serial.Address == "" {
		return errors.New("serial address (port name) must be configured")
	}
	if sf.Serial.IsSocket() {
		if _, err := socketAddress(sf.Serial.Address); err != nil {
			return err
		}
	}
	if sf.Serial.BaudRate == 0 {
		sf.Serial.BaudRate = DefaultBaudRate
	} else if sf.Serial.BaudRate < 0 {
		return errors.New("serial baud rate must be positive")
	}
	if sf.Serial.DataBits == 0 {
		sf.Serial.DataBits = DefaultDataBits
	} else if sf.Serial.DataBits < 5 || sf.Serial.DataBits > 8 {
		return errors.New("serial data bits must be 5, 6, 7 or 8")
	}
	if sf.Serial.Timeout == 0 {
		sf.Serial.Timeout = DefaultTimeout
	} else if sf.Serial.Timeout < 0 || sf.Serial.Timeout > TimeoutMax {
		return errors.New("serial read timeout out of range (0, 60s]")
	}

	if sf.Dispatch != ModeDeferred && sf.Dispatch != ModeImmediate {
		return errors.New("invalid dispatch mode")
	}

	if sf.MaxReadErrors == 0 {
		sf.MaxReadErrors = DefaultMaxReadErrors
	} else if sf.MaxReadErrors < 0 || sf.MaxReadErrors > MaxReadErrorsMax {
		return errors.New("max read errors out of range [1, 1000]")
	}

	if sf.ResetPulse == 0 {
		sf.ResetPulse = DefaultResetPulse
	} else if sf.ResetPulse < 0 || sf.ResetPulse > ResetPulseMax {
		return errors.New("reset pulse out of range (0, 5s]")
	}
	return nil
}

// DefaultConfig provides a default B42 configuration: the first serial port
// at 115200 baud, 8N1, receiver started on creation, deferred dispatch.
func DefaultConfig() Config {
	return Config{
		Serial: SerialConfig{
			Address:  DefaultPort,
			BaudRate: DefaultBaudRate,
			DataBits: DefaultDataBits,
			StopBits: mapStopBits(1),
			Parity:   mapParity(0),
			Timeout:  DefaultTimeout,
		},
		AutoStart:     true,
		Dispatch:      ModeDeferred,
		MaxReadErrors: DefaultMaxReadErrors,
		ResetPulse:    DefaultResetPulse,
	}
}

// fileConfig is the on-disk layout shared by the TOML and YAML formats.
type fileConfig struct {
	Serial struct {
		Address  string `toml:"address" yaml:"address"`
		BaudRate int    `toml:"baud_rate" yaml:"baud_rate"`
		DataBits int    `toml:"data_bits" yaml:"data_bits"`
		StopBits byte   `toml:"stop_bits" yaml:"stop_bits"` // 1 or 2
		Parity   byte   `toml:"parity" yaml:"parity"`       // 0 none, 1 odd, 2 even
		Timeout  string `toml:"timeout" yaml:"timeout"`
	} `toml:"serial" yaml:"serial"`
	AutoStart     *bool  `toml:"auto_start" yaml:"auto_start"`
	Dispatch      string `toml:"dispatch" yaml:"dispatch"`
	MaxReadErrors int    `toml:"max_read_errors" yaml:"max_read_errors"`
	ResetPulse    string `toml:"reset_pulse" yaml:"reset_pulse"`
}

// LoadConfig reads a configuration file. The format follows the extension:
// .toml, or .yaml/.yml. Unset fields take their defaults and the result is
// validated.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	var raw fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		meta, err := toml.Decode(string(data), &raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return Config{}, fmt.Errorf("parse config %s: unknown keys %v", path, undecoded)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(strings.NewReader(string(data)))
		dec.KnownFields(true)
		if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	default:
		return Config{}, fmt.Errorf("config %s: unsupported format <%s>", path, filepath.Ext(path))
	}

	cfg, err := raw.config()
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.Valid(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (raw fileConfig) config() (Config, error) {
	cfg := DefaultConfig()
	if raw.Serial.Address != "" {
		cfg.Serial.Address = raw.Serial.Address
	}
	if raw.Serial.BaudRate != 0 {
		cfg.Serial.BaudRate = raw.Serial.BaudRate
	}
	if raw.Serial.DataBits != 0 {
		cfg.Serial.DataBits = raw.Serial.DataBits
	}
	if raw.Serial.StopBits != 0 {
		cfg.Serial.StopBits = mapStopBits(raw.Serial.StopBits)
	}
	cfg.Serial.Parity = mapParity(raw.Serial.Parity)
	if raw.Serial.Timeout != "" {
		d, err := time.ParseDuration(raw.Serial.Timeout)
		if err != nil {
			return Config{}, fmt.Errorf("serial timeout: %w", err)
		}
		cfg.Serial.Timeout = d
	}
	if raw.AutoStart != nil {
		cfg.AutoStart = *raw.AutoStart
	}
	mode, err := parseDispatchMode(raw.Dispatch)
	if err != nil {
		return Config{}, err
	}
	cfg.Dispatch = mode
	if raw.MaxReadErrors != 0 {
		cfg.MaxReadErrors = raw.MaxReadErrors
	}
	if raw.ResetPulse != "" {
		d, err := time.ParseDuration(raw.ResetPulse)
		if err != nil {
			return Config{}, fmt.Errorf("reset pulse: %w", err)
		}
		cfg.ResetPulse = d
	}
	return cfg, nil
}
