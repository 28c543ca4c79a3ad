// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package b42

import (
	"io"
	"time"
)

// FrameSink receives decoded frames in the order they completed on the wire.
// Put is called from the receiver goroutine and should not block for long.
type FrameSink interface {
	Put(Frame)
}

// ErrorSink receives ProtocolError and DispatchError values.
type ErrorSink interface {
	Put(error)
}

// Port is the byte stream transport used by the Handler. go.bug.st/serial
// ports satisfy it as is.
//
// Read must honour the read timeout and return 0, nil when it expires.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
	ResetOutputBuffer() error
	SetDTR(dtr bool) error
	SetRTS(rts bool) error
}

// CommandFunc is a command callback registered with a Dispatcher. data is nil
// for frames without data bytes.
type CommandFunc func(timestamp time.Time, data []byte)
