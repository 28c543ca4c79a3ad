// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package b42

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync/atomic"
	"syscall"
	"time"
)

// socketDrainTimeout bounds the wait for more input while flushing a socket.
const socketDrainTimeout = 10 * time.Millisecond

// socketPort adapts a TCP connection to a serial to TCP bridge to the Port
// interface. There are no modem control lines, so DTR and RTS are accepted
// and ignored.
type socketPort struct {
	conn    net.Conn
	timeout atomic.Int64 // time.Duration
}

var _ Port = (*socketPort)(nil)

func dialSocket(addr string, timeout time.Duration) (*socketPort, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}
	return newSocketPort(conn, timeout), nil
}

func newSocketPort(conn net.Conn, timeout time.Duration) *socketPort {
	p := &socketPort{conn: conn}
	p.timeout.Store(int64(timeout))
	return p
}

// Read reads with the configured read timeout. An expired timeout is reported
// as 0, nil like a serial port does.
func (sf *socketPort) Read(p []byte) (int, error) {
	var deadline time.Time
	if t := time.Duration(sf.timeout.Load()); t > 0 {
		deadline = time.Now().Add(t)
	}
	if err := sf.conn.SetReadDeadline(deadline); err != nil {
		return 0, err
	}
	n, err := sf.conn.Read(p)
	if err != nil && isTimeout(err) {
		return n, nil
	}
	return n, err
}

func (sf *socketPort) Write(p []byte) (int, error) {
	return sf.conn.Write(p)
}

func (sf *socketPort) Close() error {
	return sf.conn.Close()
}

func (sf *socketPort) SetReadTimeout(t time.Duration) error {
	sf.timeout.Store(int64(t))
	return nil
}

// ResetInputBuffer discards whatever input is already pending on the socket.
func (sf *socketPort) ResetInputBuffer() error {
	buf := make([]byte, 256)
	for {
		if err := sf.conn.SetReadDeadline(time.Now().Add(socketDrainTimeout)); err != nil {
			return err
		}
		n, err := sf.conn.Read(buf)
		if err != nil {
			if isTimeout(err) {
				return nil
			}
			return err
		}
		if n == 0 {
			return nil
		}
	}
}

// ResetOutputBuffer is a no-op: socket writes are not buffered locally.
func (sf *socketPort) ResetOutputBuffer() error { return nil }

func (sf *socketPort) SetDTR(bool) error { return nil }

func (sf *socketPort) SetRTS(bool) error { return nil }

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func isEOF(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, os.ErrClosed)
}

// isDeviceGone reports errors seen when a USB serial adapter is unplugged.
func isDeviceGone(err error) bool {
	return errors.Is(err, syscall.EIO) || errors.Is(err, syscall.ENXIO) || errors.Is(err, syscall.ENODEV)
}
