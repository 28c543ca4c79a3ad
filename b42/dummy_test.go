// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package b42

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// dummyPort is an in-memory Port. The test plays the board: boardWrite feeds
// bytes to the handler, boardRead returns bytes the handler sent.
type dummyPort struct {
	toHost  chan byte
	toBoard chan byte
	readErr chan error

	closed    chan struct{}
	closeOnce sync.Once

	mu           sync.Mutex
	timeout      time.Duration
	lines        []string // DTR/RTS changes, e.g. "DTR=0"
	inputResets  int
	outputResets int
}

var _ Port = (*dummyPort)(nil)

func newDummyPort() *dummyPort {
	return &dummyPort{
		toHost:  make(chan byte, 1024),
		toBoard: make(chan byte, 1024),
		readErr: make(chan error, 16),
		closed:  make(chan struct{}),
		timeout: DefaultTimeout,
	}
}

func (p *dummyPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	timeout := p.timeout
	p.mu.Unlock()

	select {
	case <-p.closed:
		return 0, ErrUseClosedConnection
	default:
	}
	select {
	case err := <-p.readErr:
		return 0, err
	case c := <-p.toHost:
		b[0] = c
		return 1, nil
	case <-time.After(timeout):
		return 0, nil
	case <-p.closed:
		return 0, ErrUseClosedConnection
	}
}

func (p *dummyPort) Write(b []byte) (int, error) {
	select {
	case <-p.closed:
		return 0, ErrUseClosedConnection
	default:
	}
	for _, c := range b {
		p.toBoard <- c
	}
	return len(b), nil
}

func (p *dummyPort) Close() error {
	p.closeOnce.Do(func() { close(p.closed) })
	return nil
}

func (p *dummyPort) isClosed() bool {
	select {
	case <-p.closed:
		return true
	default:
		return false
	}
}

func (p *dummyPort) SetReadTimeout(t time.Duration) error {
	p.mu.Lock()
	p.timeout = t
	p.mu.Unlock()
	return nil
}

func (p *dummyPort) ResetInputBuffer() error {
	p.mu.Lock()
	p.inputResets++
	p.mu.Unlock()
	for {
		select {
		case <-p.toHost:
		default:
			return nil
		}
	}
}

func (p *dummyPort) ResetOutputBuffer() error {
	p.mu.Lock()
	p.outputResets++
	p.mu.Unlock()
	return nil
}

func (p *dummyPort) SetDTR(dtr bool) error {
	p.recordLine("DTR", dtr)
	return nil
}

func (p *dummyPort) SetRTS(rts bool) error {
	p.recordLine("RTS", rts)
	return nil
}

func (p *dummyPort) recordLine(name string, level bool) {
	v := "0"
	if level {
		v = "1"
	}
	p.mu.Lock()
	p.lines = append(p.lines, name+"="+v)
	p.mu.Unlock()
}

// boardWrite sends raw bytes from the board to the host.
func (p *dummyPort) boardWrite(bs ...byte) {
	for _, c := range bs {
		p.toHost <- c
	}
}

// boardSendFrame sends a well formed frame from the board to the host.
func (p *dummyPort) boardSendFrame(command byte, data ...byte) {
	p.boardWrite(command | byte(len(data))<<ShiftNumBytes)
	for i, d := range data {
		p.boardWrite(d | byte(i+1)<<ShiftSeqNum)
	}
}

// boardRead returns the next byte sent by the host.
func (p *dummyPort) boardRead(timeout time.Duration) (byte, bool) {
	select {
	case c := <-p.toBoard:
		return c, true
	case <-time.After(timeout):
		return 0, false
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Serial.Address = "dummy"
	cfg.Serial.Timeout = 10 * time.Millisecond
	cfg.ResetPulse = time.Millisecond
	return cfg
}

// newTestHandler starts a handler on a dummy port; it is stopped when the
// test ends.
func newTestHandler(t *testing.T, port *dummyPort, frames FrameSink, errs ErrorSink) *Handler {
	t.Helper()
	opt := NewOption().SetConfig(testConfig()).SetPort(port).SetFrameSink(frames).SetErrorSink(errs)
	h, err := NewHandler(opt)
	require.NoError(t, err)
	h.SetLogMode(false)
	t.Cleanup(func() { _ = h.Stop() })
	return h
}

func getItem[T any](t *testing.T, q *Queue[T]) T {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	item, err := q.Get(ctx)
	require.NoError(t, err, "nothing received")
	return item
}
