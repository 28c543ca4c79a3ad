// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package b42

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/riclolsen/go-b42/clog"
)

// Handler states
const (
	statusInitial uint32 = iota
	statusRunning
	statusDead // receiver loop ended on a transport failure
	statusStopped
)

// readRetryDelay is the pause after a failed read before trying again.
const readRetryDelay = 100 * time.Millisecond

// Handler sends and receives B42 frames over a serial port or socket bridge.
//
// Sending is synchronous. Receiving runs in a single background goroutine
// which decodes the byte stream and passes frames and protocol errors to the
// configured sinks in arrival order.
type Handler struct {
	option HandlerOption
	port   Port
	frames FrameSink
	errs   ErrorSink

	sendMux sync.Mutex // serializes writes so frames never interleave
	resync  atomic.Bool

	status  uint32
	loopErr error
	rwMux   sync.RWMutex

	clog.Clog
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewHandler validates the configuration, opens the transport and, when
// auto start is enabled, starts the receiver loop.
func NewHandler(o *HandlerOption) (*Handler, error) {
	if o == nil {
		o = NewOption()
	}
	opt := *o
	if err := opt.config.Valid(); err != nil {
		return nil, fmt.Errorf("b42 config: %w", err)
	}

	port := opt.port
	if port == nil {
		var err error
		if port, err = OpenPort(opt.config.Serial); err != nil {
			return nil, err
		}
	} else if err := port.SetReadTimeout(opt.config.Serial.Timeout); err != nil {
		return nil, fmt.Errorf("set read timeout: %w", err)
	}

	h := &Handler{
		option: opt,
		port:   port,
		frames: opt.frames,
		errs:   opt.errs,
		Clog:   clog.NewLogger(fmt.Sprintf("b42 handler [%s] => ", opt.config.Serial.Address)),
	}
	h.Clog.LogMode(true)

	if opt.config.AutoStart {
		if err := h.Start(); err != nil {
			_ = port.Close()
			return nil, err
		}
	}
	return h, nil
}

// SetLogMode enables or disables logging output.
func (sf *Handler) SetLogMode(enable bool) {
	sf.Clog.LogMode(enable)
}

// Address returns the serial port or socket address connected to.
func (sf *Handler) Address() string {
	return sf.option.config.Serial.Address
}

// BaudRate returns the configured serial baud rate.
func (sf *Handler) BaudRate() int {
	return sf.option.config.Serial.BaudRate
}

// UnderlyingConn returns the transport.
func (sf *Handler) UnderlyingConn() Port {
	return sf.port
}

// Start starts the receiver loop. A handler can be started only once.
func (sf *Handler) Start() error {
	sf.rwMux.Lock()
	defer sf.rwMux.Unlock()
	switch sf.status {
	case statusRunning:
		return ErrAlreadyStarted
	case statusDead:
		return fmt.Errorf("%w: %v", ErrHandlerStopped, sf.loopErr)
	case statusStopped:
		return ErrHandlerStopped
	}
	ctx, cancel := context.WithCancel(context.Background())
	sf.cancel = cancel
	sf.status = statusRunning
	sf.wg.Add(1)
	go sf.recvLoop(ctx)
	return nil
}

// Stop stops the receiver loop, waits for it to exit and closes the
// transport. Stop is final: a stopped handler cannot be started again.
func (sf *Handler) Stop() error {
	sf.rwMux.Lock()
	if sf.status == statusStopped {
		sf.rwMux.Unlock()
		return ErrHandlerStopped
	}
	sf.status = statusStopped
	cancel := sf.cancel
	sf.cancel = nil
	sf.rwMux.Unlock()

	sf.Debug("Stop requested.")
	if cancel != nil {
		cancel()
	}
	sf.wg.Wait()

	sf.sendMux.Lock()
	defer sf.sendMux.Unlock()
	if err := sf.port.Close(); err != nil {
		return fmt.Errorf("close %s: %w", sf.Address(), err)
	}
	return nil
}

// IsRunning returns true while the receiver loop is active.
func (sf *Handler) IsRunning() bool {
	sf.rwMux.RLock()
	defer sf.rwMux.RUnlock()
	return sf.status == statusRunning
}

// Err returns the transport error that ended the receiver loop, if any.
func (sf *Handler) Err() error {
	sf.rwMux.RLock()
	defer sf.rwMux.RUnlock()
	return sf.loopErr
}

func (sf *Handler) isStopped() bool {
	sf.rwMux.RLock()
	defer sf.rwMux.RUnlock()
	return sf.status == statusStopped
}

// Reset flushes the transport's input and output buffers. With hard set it
// also toggles DTR and RTS, which resets boards wired for it (Arduino style
// auto reset). The receiver drops any partially received frame.
//
// A byte the receiver has already read when Reset runs is decoded as the
// first byte after the reset. If it is a stale data byte it is reported as a
// protocol error and the decoder resynchronizes on the next command byte.
func (sf *Handler) Reset(hard bool) error {
	if sf.isStopped() {
		return ErrUseClosedConnection
	}
	if err := sf.port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("reset input buffer: %w", err)
	}
	if err := sf.port.ResetOutputBuffer(); err != nil {
		return fmt.Errorf("reset output buffer: %w", err)
	}
	sf.resync.Store(true)
	if !hard {
		return nil
	}

	sf.Debug("Hard reset, toggling DTR/RTS")
	levels := []bool{false, true, false}
	for i, level := range levels {
		if err := sf.port.SetDTR(level); err != nil {
			return fmt.Errorf("set DTR: %w", err)
		}
		if err := sf.port.SetRTS(level); err != nil {
			return fmt.Errorf("set RTS: %w", err)
		}
		if i < len(levels)-1 {
			time.Sleep(sf.option.config.ResetPulse)
		}
	}
	return nil
}

// Send sends a frame made of command (0x01..0x0F) and up to 3 data bytes
// (0x00..0x3F each). Arguments are checked before anything is written. It
// returns the number of bytes written.
func (sf *Handler) Send(command byte, data ...byte) (int, error) {
	raw, err := EncodeFrame(command, data...)
	if err != nil {
		return 0, err
	}

	sf.sendMux.Lock()
	defer sf.sendMux.Unlock()
	if sf.isStopped() {
		return 0, ErrUseClosedConnection
	}
	sf.Debug("TX [% X]", raw)
	n, err := sf.port.Write(raw)
	if err != nil {
		return n, fmt.Errorf("write frame to %s: %w", sf.Address(), err)
	}
	if n != len(raw) {
		return n, fmt.Errorf("write frame to %s: %w", sf.Address(), io.ErrShortWrite)
	}
	return n, nil
}

// SendValue encodes value into length data bytes with EncodeValue and sends
// it with command.
func (sf *Handler) SendValue(command byte, value int, length int) (int, error) {
	data, err := EncodeValue(value, length)
	if err != nil {
		return 0, err
	}
	return sf.Send(command, data...)
}

// recvLoop reads the transport byte by byte and feeds the decoder.
func (sf *Handler) recvLoop(ctx context.Context) {
	sf.Debug("recvLoop started")
	defer func() {
		sf.wg.Done()
		sf.Debug("recvLoop stopped")
	}()

	dec := NewDecoder()
	buf := make([]byte, 1)
	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := sf.port.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			failures++
			if isPortClosed(err) || failures >= sf.option.config.MaxReadErrors {
				sf.Error("Receiver stopped, reading from %s failed: %v", sf.Address(), err)
				sf.connectionLost(err)
				return
			}
			sf.Warn("Read from %s failed (%d/%d): %v", sf.Address(), failures, sf.option.config.MaxReadErrors, err)
			select {
			case <-time.After(readRetryDelay):
			case <-ctx.Done():
				return
			}
			continue
		}
		failures = 0
		if n == 0 { // timeout
			continue
		}

		if sf.resync.Swap(false) {
			dec.Reset()
		}
		frame, perr := dec.Feed(buf[0])
		if perr != nil {
			sf.processError(*perr)
		}
		if frame != nil {
			sf.processFrame(*frame)
		}
	}
}

func (sf *Handler) processFrame(frame Frame) {
	sf.Debug("RX %s", frame)
	if sf.frames != nil {
		sf.frames.Put(frame)
	}
}

func (sf *Handler) processError(e ProtocolError) {
	if sf.errs != nil {
		sf.errs.Put(e)
	}
	sf.Error("B42 [%.3f][0x%02X] %s", unixSeconds(e.Timestamp), byte(e.Code), e.Message)
}

func (sf *Handler) connectionLost(err error) {
	sf.rwMux.Lock()
	if sf.status != statusRunning {
		sf.rwMux.Unlock()
		return
	}
	sf.status = statusDead
	sf.loopErr = err
	sf.rwMux.Unlock()

	// own goroutine, the callback may call Stop
	if f := sf.option.onConnectionLost; f != nil {
		go f(sf, err)
	}
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
