// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package b42

import (
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/riclolsen/go-b42/clog"
)

type registration struct {
	callback CommandFunc
	// bit n set: n data bytes accepted; zero accepts any length
	lengths uint8
}

func (r registration) accepts(n int) bool {
	return r.lengths == 0 || r.lengths&(1<<uint(n)) != 0
}

// Dispatcher routes received frames to the callbacks registered for their
// command codes. It is a FrameSink, so it can be handed to a Handler
// directly.
//
// In ModeImmediate a frame is dispatched inside Put, which for a Handler
// means in its receiver goroutine; callbacks must be safe to run there. In
// ModeDeferred frames are buffered until Dispatch is called and callbacks run
// in the caller of Dispatch.
type Dispatcher struct {
	mode DispatchMode
	errs ErrorSink

	tableMux sync.RWMutex
	table    [MaxCommand + 1]*registration

	pendingMux sync.Mutex
	pending    []Frame

	clog.Clog
}

var _ FrameSink = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher. errs receives DispatchError values and
// may be nil. Any mode other than ModeImmediate means ModeDeferred.
func NewDispatcher(mode DispatchMode, errs ErrorSink) *Dispatcher {
	if mode != ModeImmediate {
		mode = ModeDeferred
	}
	d := &Dispatcher{
		mode: mode,
		errs: errs,
		Clog: clog.NewLogger(fmt.Sprintf("b42 dispatcher [%s] => ", mode)),
	}
	d.Clog.LogMode(true)
	return d
}

// NewDispatcherFromConfig creates a dispatcher using the dispatch mode of
// cfg, e.g. one read by LoadConfig.
func NewDispatcherFromConfig(cfg Config, errs ErrorSink) *Dispatcher {
	return NewDispatcher(cfg.Dispatch, errs)
}

// SetLogMode enables or disables logging output.
func (sf *Dispatcher) SetLogMode(enable bool) {
	sf.Clog.LogMode(enable)
}

// Mode returns the dispatch mode chosen at construction.
func (sf *Dispatcher) Mode() DispatchMode {
	return sf.mode
}

// Register registers cb for command code (0x01..0x0F), replacing any
// callback registered before. numData optionally lists the accepted numbers
// of data bytes (0..3); frames with another length are reported as
// ErrNumData and not passed to cb. Without numData every length is accepted;
// there is no way to register a callback that rejects all lengths.
func (sf *Dispatcher) Register(code byte, cb CommandFunc, numData ...int) error {
	if code < MinCommand || code > MaxCommand {
		return fmt.Errorf("%w: command code <0x%02X> out of range [0x01..0x0F]", ErrInvalidArgument, code)
	}
	if cb == nil {
		return fmt.Errorf("%w: nil callback for command <0x%02X>", ErrInvalidArgument, code)
	}
	reg := &registration{callback: cb}
	for _, n := range numData {
		if n < 0 || n > MaxDataLen {
			return fmt.Errorf("%w: number of data bytes <%d> out of range [0..3]", ErrInvalidArgument, n)
		}
		reg.lengths |= 1 << uint(n)
	}

	sf.tableMux.Lock()
	replaced := sf.table[code] != nil
	sf.table[code] = reg
	sf.tableMux.Unlock()

	if replaced {
		sf.Warn("replacing registered command: <0x%02X>", code)
	}
	return nil
}

// Unregister removes the callback of code. It reports whether one was
// registered.
func (sf *Dispatcher) Unregister(code byte) bool {
	if code > MaxCommand {
		return false
	}
	sf.tableMux.Lock()
	defer sf.tableMux.Unlock()
	had := sf.table[code] != nil
	sf.table[code] = nil
	return had
}

// Put takes a received frame: dispatched at once in ModeImmediate, buffered
// in ModeDeferred.
func (sf *Dispatcher) Put(frame Frame) {
	if sf.mode == ModeImmediate {
		sf.dispatch(frame)
		return
	}
	sf.pendingMux.Lock()
	sf.pending = append(sf.pending, frame)
	sf.pendingMux.Unlock()
}

// Dispatch dispatches, in arrival order, every frame buffered before the
// call. Frames arriving meanwhile are left for the next call. It returns the
// number of frames processed and does nothing in ModeImmediate.
func (sf *Dispatcher) Dispatch() int {
	if sf.mode == ModeImmediate {
		return 0
	}
	sf.pendingMux.Lock()
	batch := sf.pending
	sf.pending = nil
	sf.pendingMux.Unlock()

	for _, frame := range batch {
		sf.dispatch(frame)
	}
	return len(batch)
}

// Pending returns the number of frames waiting for Dispatch.
func (sf *Dispatcher) Pending() int {
	sf.pendingMux.Lock()
	defer sf.pendingMux.Unlock()
	return len(sf.pending)
}

func (sf *Dispatcher) lookup(code byte) *registration {
	if code > MaxCommand {
		return nil
	}
	sf.tableMux.RLock()
	defer sf.tableMux.RUnlock()
	return sf.table[code]
}

func (sf *Dispatcher) dispatch(frame Frame) {
	reg := sf.lookup(frame.Command)
	if reg == nil {
		sf.processError(frame, ErrUnregistered,
			fmt.Sprintf("unregistered command received: <0x%02X>", frame.Command))
		return
	}
	if n := len(frame.Data); !reg.accepts(n) {
		sf.processError(frame, ErrNumData,
			fmt.Sprintf("invalid number of data bytes for command <0x%02X>: %d", frame.Command, n))
		return
	}
	sf.callCommand(reg.callback, frame)
}

// callCommand runs a callback, a panic is logged and does not propagate to
// the receiver loop.
func (sf *Dispatcher) callCommand(cb CommandFunc, frame Frame) {
	defer func() {
		if r := recover(); r != nil {
			sf.Critical("command <0x%02X> callback panicked: %v\n%s", frame.Command, r, debug.Stack())
		}
	}()
	cb(frame.Timestamp, frame.Data)
}

func (sf *Dispatcher) processError(frame Frame, code ErrorCode, msg string) {
	if sf.errs != nil {
		sf.errs.Put(DispatchError{Timestamp: frame.Timestamp, Code: code, Message: msg})
	}
	sf.Error("CMD [%.3f][0x%02X] %s", unixSeconds(frame.Timestamp), byte(code), msg)
}
