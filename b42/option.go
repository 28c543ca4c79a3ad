// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package b42

import (
	"time"
)

// HandlerOption collects the settings used by NewHandler.
type HandlerOption struct {
	config           Config
	port             Port      // already open transport, nil to open config.Serial
	frames           FrameSink // receives decoded frames, may be nil
	errs             ErrorSink // receives protocol errors, may be nil
	onConnectionLost func(h *Handler, err error)
}

// NewOption creates a HandlerOption with DefaultConfig().
func NewOption() *HandlerOption {
	return &HandlerOption{
		config: DefaultConfig(),
	}
}

// SetConfig sets the main configuration. It is validated by NewHandler.
func (sf *HandlerOption) SetConfig(cfg Config) *HandlerOption {
	sf.config = cfg
	return sf
}

// SetSerialConfig sets the serial port configuration within the main config.
func (sf *HandlerOption) SetSerialConfig(serialCfg SerialConfig) *HandlerOption {
	sf.config.Serial = serialCfg
	return sf
}

// SetAddress sets the serial port name or socket:// bridge address.
func (sf *HandlerOption) SetAddress(address string) *HandlerOption {
	sf.config.Serial.Address = address
	return sf
}

// SetBaudRate sets the serial port speed.
func (sf *HandlerOption) SetBaudRate(baud int) *HandlerOption {
	sf.config.Serial.BaudRate = baud
	return sf
}

// SetTimeout sets the receiver's per byte read timeout.
func (sf *HandlerOption) SetTimeout(t time.Duration) *HandlerOption {
	sf.config.Serial.Timeout = t
	return sf
}

// SetAutoStart selects whether NewHandler starts the receiver loop.
func (sf *HandlerOption) SetAutoStart(b bool) *HandlerOption {
	sf.config.AutoStart = b
	return sf
}

// SetPort attaches an already open transport instead of opening
// config.Serial. The handler takes ownership and closes it on Stop.
func (sf *HandlerOption) SetPort(p Port) *HandlerOption {
	sf.port = p
	return sf
}

// SetFrameSink sets where received frames go, e.g. a *Queue[Frame] or a
// *Dispatcher.
func (sf *HandlerOption) SetFrameSink(s FrameSink) *HandlerOption {
	sf.frames = s
	return sf
}

// SetErrorSink sets where protocol errors go, e.g. a *Queue[error].
func (sf *HandlerOption) SetErrorSink(s ErrorSink) *HandlerOption {
	sf.errs = s
	return sf
}

// SetConnectionLostHandler sets the handler called, in a goroutine of its
// own, when the receiver loop ends because the transport failed.
func (sf *HandlerOption) SetConnectionLostHandler(f func(h *Handler, err error)) *HandlerOption {
	sf.onConnectionLost = f
	return sf
}
