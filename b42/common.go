// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package b42

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"go.bug.st/serial"
)

// Transport defaults.
const (
	DefaultPort       = "/dev/ttyS0"
	DefaultBaudRate   = 115200
	DefaultDataBits   = 8
	DefaultSocketPort = 10001 // used by serial to TCP bridges, e.g. XPort
	DefaultTimeout    = 500 * time.Millisecond

	// SocketScheme prefixes addresses of serial to TCP bridges.
	SocketScheme = "socket://"
)

// SerialConfig holds serial port configuration parameters.
type SerialConfig struct {
	// Address is the serial port (e.g., "COM3" on Windows, "/dev/ttyUSB0" on
	// Linux) or a bridge address "socket://<host>[:<port>]".
	Address string
	// BaudRate is the serial port speed (e.g., 9600, 57600, 115200).
	BaudRate int
	// DataBits is the number of data bits, usually 8.
	DataBits int
	// StopBits specifies the number of stop bits. Use serial.OneStopBit or serial.TwoStopBits.
	StopBits serial.StopBits
	// Parity specifies the parity mode. Use serial.NoParity, serial.OddParity, serial.EvenParity.
	Parity serial.Parity
	// Timeout bounds each single byte read of the receiver loop. It is also
	// the longest time Stop waits for the loop to notice the stop request.
	Timeout time.Duration
}

// IsSocket reports whether the address names a serial to TCP bridge.
func (sf SerialConfig) IsSocket() bool {
	return strings.HasPrefix(sf.Address, SocketScheme)
}

// mapParity maps a byte representation to serial.Parity.
// 0 = None, 1 = Odd, 2 = Even. Returns NoParity for invalid values.
func mapParity(p byte) serial.Parity {
	switch p {
	case 1:
		return serial.OddParity
	case 2:
		return serial.EvenParity
	default: // Includes 0
		return serial.NoParity
	}
}

// mapStopBits maps a byte representation to serial.StopBits.
// 1 = OneStopBit, 2 = TwoStopBits. Returns OneStopBit for invalid values.
func mapStopBits(s byte) serial.StopBits {
	if s == 2 {
		return serial.TwoStopBits
	}
	return serial.OneStopBit
}

// socketAddress strips the socket scheme and adds the default port when the
// address has none.
func socketAddress(address string) (string, error) {
	hostport := strings.TrimPrefix(address, SocketScheme)
	if i := strings.IndexAny(hostport, "/?"); i >= 0 {
		hostport = hostport[:i]
	}
	if hostport == "" {
		return "", fmt.Errorf("%w: missing host in <%s>", ErrInvalidArgument, address)
	}
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		return net.JoinHostPort(strings.Trim(hostport, "[]"), strconv.Itoa(DefaultSocketPort)), nil
	}
	if host == "" {
		return "", fmt.Errorf("%w: missing host in <%s>", ErrInvalidArgument, address)
	}
	if port == "" {
		port = strconv.Itoa(DefaultSocketPort)
	}
	return net.JoinHostPort(host, port), nil
}

// OpenPort opens the transport described by cfg: a serial device through
// go.bug.st/serial or, for socket:// addresses, a TCP connection. The read
// timeout is applied before the port is returned.
func OpenPort(cfg SerialConfig) (Port, error) {
	if cfg.Address == "" {
		return nil, ErrNoTransport
	}
	if cfg.IsSocket() {
		addr, err := socketAddress(cfg.Address)
		if err != nil {
			return nil, err
		}
		return dialSocket(addr, cfg.Timeout)
	}

	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
		Parity:   cfg.Parity,
		StopBits: cfg.StopBits,
	}
	port, err := serial.Open(cfg.Address, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.Address, err)
	}
	if err := port.SetReadTimeout(cfg.Timeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", cfg.Address, err)
	}
	return port, nil
}

// isPortClosed reports transport errors the receiver cannot recover from.
func isPortClosed(err error) bool {
	var portErr *serial.PortError
	if errors.As(err, &portErr) {
		switch portErr.Code() {
		case serial.PortClosed, serial.PortNotFound, serial.InvalidSerialPort:
			return true
		}
	}
	return errors.Is(err, net.ErrClosed) || errors.Is(err, ErrUseClosedConnection) ||
		isEOF(err) || isDeviceGone(err)
}
