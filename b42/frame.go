// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package b42

import (
	"fmt"
	"time"
)

// B42 wire format. Every byte carries a 2 bit sequence tag in bits 7:6.
//
//	command byte: 00 NN CCCC  (NN = number of data bytes, CCCC = command 1..15)
//	data byte i:  ii DDDDDD   (ii = 1..3, DDDDDD = payload)
//
// The byte 0x00 is never valid.
const (
	SeqCommand byte = 0x00 // command byte sequence bits
	SeqData1   byte = 0x40 // data1 byte sequence bits
	SeqData2   byte = 0x80 // data2 byte sequence bits
	SeqData3   byte = 0xC0 // data3 byte sequence bits

	MaskSeq  byte = 0xC0
	MaskCmd  byte = 0x0F
	MaskData byte = 0x3F

	ShiftSeqNum   = 6 // bits 7:6
	ShiftNumBytes = 4 // command byte bits 5:4

	MinCommand byte = 0x01
	MaxCommand byte = 0x0F
	MaxData    byte = 0x3F
	MaxDataLen      = 3
)

// ErrorCode identifies the kind of a ProtocolError or DispatchError.
type ErrorCode byte

// Protocol error codes, produced by the receiver state machine.
const (
	ErrZeroByte      ErrorCode = 0x01 // invalid 0x00 byte received
	ErrExpectCommand ErrorCode = 0x02 // command byte expected (seq==0)
	ErrExpectData1   ErrorCode = 0x03 // data byte 1 expected (seq==1)
	ErrExpectData2   ErrorCode = 0x04 // data byte 2 expected (seq==2)
	ErrExpectData3   ErrorCode = 0x05 // data byte 3 expected (seq==3)
)

// Dispatch error codes, produced by the Dispatcher.
const (
	ErrNumData      ErrorCode = 0x0E // invalid number of data bytes received
	ErrUnregistered ErrorCode = 0x0F // unregistered command received
)

// String returns a short name of the error code.
func (c ErrorCode) String() string {
	switch c {
	case ErrZeroByte:
		return "ZERO_BYTE"
	case ErrExpectCommand:
		return "EXPECT_COMMAND"
	case ErrExpectData1:
		return "EXPECT_DATA1"
	case ErrExpectData2:
		return "EXPECT_DATA2"
	case ErrExpectData3:
		return "EXPECT_DATA3"
	case ErrNumData:
		return "NUM_DATA"
	case ErrUnregistered:
		return "UNREGISTERED"
	default:
		return fmt.Sprintf("ErrorCode(0x%02X)", byte(c))
	}
}

// Frame is one received B42 message. Data is nil for frames without data
// bytes, otherwise it holds 1 to 3 six bit values.
type Frame struct {
	Timestamp time.Time
	Command   byte
	Data      []byte
}

// String provides a string representation of the frame.
func (f Frame) String() string {
	if f.Data == nil {
		return fmt.Sprintf("FRAME<CMD=0x%02X>", f.Command)
	}
	return fmt.Sprintf("FRAME<CMD=0x%02X DATA=%v>", f.Command, f.Data)
}

// ProtocolError reports a violation of the framing grammar by the incoming
// byte stream. It is never fatal: the receiver resynchronizes and continues.
type ProtocolError struct {
	Timestamp time.Time
	Code      ErrorCode
	Message   string
}

// Error implements the error interface.
func (e ProtocolError) Error() string {
	return fmt.Sprintf("b42: protocol error 0x%02X: %s", byte(e.Code), e.Message)
}

// DispatchError reports a frame the Dispatcher could not deliver to a
// callback. Timestamp is the timestamp of the frame.
type DispatchError struct {
	Timestamp time.Time
	Code      ErrorCode
	Message   string
}

// Error implements the error interface.
func (e DispatchError) Error() string {
	return fmt.Sprintf("b42: dispatch error 0x%02X: %s", byte(e.Code), e.Message)
}

// CheckFrame validates a command code and its data bytes for sending.
func CheckFrame(command byte, data ...byte) error {
	if command < MinCommand || command > MaxCommand {
		return fmt.Errorf("%w: command <0x%02X> out of range [0x01..0x0F]", ErrInvalidArgument, command)
	}
	if len(data) > MaxDataLen {
		return fmt.Errorf("%w: more than 3 data bytes: <% X>", ErrInvalidArgument, data)
	}
	for i, d := range data {
		if d > MaxData {
			return fmt.Errorf("%w: data%d <0x%02X> out of range [0x00..0x3F]", ErrInvalidArgument, i+1, d)
		}
	}
	return nil
}

// EncodeFrame returns the wire bytes of a frame: the command byte followed by
// up to 3 data bytes tagged with their sequence numbers.
func EncodeFrame(command byte, data ...byte) ([]byte, error) {
	if err := CheckFrame(command, data...); err != nil {
		return nil, err
	}
	buf := make([]byte, 0, 1+len(data))
	buf = append(buf, command|byte(len(data))<<ShiftNumBytes)
	for i, d := range data {
		buf = append(buf, d|byte(i+1)<<ShiftSeqNum)
	}
	return buf, nil
}
