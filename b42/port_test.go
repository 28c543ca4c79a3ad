// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package b42

import (
	"errors"
	"io"
	"net"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

func TestSocketAddress(t *testing.T) {
	tests := []struct {
		address string
		want    string
		wantErr bool
	}{
		{"socket://10.0.0.5", "10.0.0.5:10001", false},
		{"socket://10.0.0.5:2000", "10.0.0.5:2000", false},
		{"socket://bridge.local:", "bridge.local:10001", false},
		{"socket://bridge.local/", "bridge.local:10001", false},
		{"socket://[::1]", "[::1]:10001", false},
		{"socket://[::1]:7000", "[::1]:7000", false},
		{"socket://", "", true},
		{"socket://:2000", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			got, err := socketAddress(tt.address)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidArgument)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsPortClosed(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"eof", io.EOF, true},
		{"closed network connection", &net.OpError{Op: "read", Err: net.ErrClosed}, true},
		{"closed file", os.ErrClosed, true},
		{"unplugged", &os.PathError{Op: "read", Path: "/dev/ttyUSB0", Err: syscall.EIO}, true},
		{"own sentinel", ErrUseClosedConnection, true},
		{"other", errors.New("parity error"), false},
		{"interrupted", syscall.EINTR, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isPortClosed(tt.err))
		})
	}
}

func TestMapSerialSettings(t *testing.T) {
	assert.Equal(t, serial.NoParity, mapParity(0))
	assert.Equal(t, serial.OddParity, mapParity(1))
	assert.Equal(t, serial.EvenParity, mapParity(2))
	assert.Equal(t, serial.NoParity, mapParity(9))
	assert.Equal(t, serial.OneStopBit, mapStopBits(1))
	assert.Equal(t, serial.TwoStopBits, mapStopBits(2))
	assert.Equal(t, serial.OneStopBit, mapStopBits(0))
}

func TestOpenPortNoAddress(t *testing.T) {
	_, err := OpenPort(SerialConfig{})
	assert.ErrorIs(t, err, ErrNoTransport)
}

// listen starts a one connection TCP server standing in for a serial to TCP
// bridge.
func listen(t *testing.T) (string, <-chan net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	conns := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		t.Cleanup(func() { _ = c.Close() })
		conns <- c
	}()
	return SocketScheme + ln.Addr().String(), conns
}

func accept(t *testing.T, conns <-chan net.Conn) net.Conn {
	t.Helper()
	select {
	case c := <-conns:
		return c
	case <-time.After(time.Second):
		t.Fatal("no connection accepted")
		return nil
	}
}

func TestSocketPort(t *testing.T) {
	address, conns := listen(t)
	port, err := OpenPort(SerialConfig{Address: address, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)
	defer port.Close()
	board := accept(t, conns)

	// read timeout is not an error
	buf := make([]byte, 4)
	n, err := port.Read(buf)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = board.Write([]byte{0x12, 0x41})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		n, err = port.Read(buf)
		return err == nil && n > 0
	}, time.Second, time.Millisecond)
	assert.Equal(t, byte(0x12), buf[0])

	// buffered input is discarded
	_, err = board.Write([]byte{0x01, 0x02, 0x03})
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, port.ResetInputBuffer())
	require.NoError(t, port.ResetOutputBuffer())
	require.NoError(t, port.SetDTR(true))
	require.NoError(t, port.SetRTS(true))
	n, err = port.Read(buf)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = port.Write([]byte{0x01})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, board.SetReadDeadline(time.Now().Add(time.Second)))
	_, err = io.ReadFull(board, buf[:1])
	require.NoError(t, err)
	assert.Equal(t, byte(0x01), buf[0])

	// peer hangs up
	require.NoError(t, board.Close())
	require.Eventually(t, func() bool {
		_, err = port.Read(buf)
		return err != nil
	}, time.Second, time.Millisecond)
	assert.True(t, isPortClosed(err))
}

func TestHandlerOverSocket(t *testing.T) {
	address, conns := listen(t)
	cfg := testConfig()
	cfg.Serial.Address = address
	cfg.Serial.Timeout = 50 * time.Millisecond
	frames := NewQueue[Frame]()
	lost := make(chan error, 1)
	h, err := NewHandler(NewOption().SetConfig(cfg).SetFrameSink(frames).
		SetConnectionLostHandler(func(_ *Handler, err error) { lost <- err }))
	require.NoError(t, err)
	h.SetLogMode(false)
	defer h.Stop()
	board := accept(t, conns)

	_, err = h.Send(0x0C, 0x2A)
	require.NoError(t, err)
	got := make([]byte, 2)
	require.NoError(t, board.SetReadDeadline(time.Now().Add(time.Second)))
	_, err = io.ReadFull(board, got)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x1C, 0x6A}, got)

	_, err = board.Write(got)
	require.NoError(t, err)
	f := getItem(t, frames)
	assert.Equal(t, byte(0x0C), f.Command)
	assert.Equal(t, []byte{0x2A}, f.Data)

	require.NoError(t, board.Close())
	select {
	case err := <-lost:
		assert.True(t, isPortClosed(err))
	case <-time.After(time.Second):
		t.Fatal("connection loss not detected")
	}
	assert.False(t, h.IsRunning())
}
