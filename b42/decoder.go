// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package b42

import (
	"fmt"
	"time"
)

// Decoder is the receiver state machine. It consumes the incoming byte stream
// one byte at a time and recognizes complete frames and framing errors.
//
// The state is the sequence tag expected next: SeqCommand, SeqData1, SeqData2
// or SeqData3. A Decoder is not safe for concurrent use; the receiver loop
// owns its own instance.
type Decoder struct {
	state   byte
	stamp   time.Time
	command byte
	numData int
	data    [MaxDataLen]byte

	now func() time.Time
}

// NewDecoder returns a decoder expecting a command byte.
func NewDecoder() *Decoder {
	return &Decoder{state: SeqCommand, now: time.Now}
}

// Reset drops any partially received frame.
func (d *Decoder) Reset() {
	d.state = SeqCommand
	d.numData = 0
}

// Expecting returns the sequence tag the decoder expects next.
func (d *Decoder) Expecting() byte {
	return d.state
}

// Feed processes one received byte.
//
// It returns a non-nil frame when b completes one, and a non-nil error when b
// violates the framing grammar. Both are returned when b breaks the frame in
// progress and at the same time is a complete zero-data command; the error
// then precedes the frame.
//
// On a sequence mismatch the decoder falls back to expecting a command byte.
// If b itself carries the command tag it is processed as the first byte of a
// new frame, otherwise it is dropped. A data byte whose payload has the two
// top bits clear can therefore start a new frame after a lost byte; this is
// inherent to the wire format.
func (d *Decoder) Feed(b byte) (*Frame, *ProtocolError) {
	if b == 0x00 {
		d.state = SeqCommand
		return nil, d.protocolError(ErrZeroByte, "0x00 byte received")
	}

	var perr *ProtocolError
	seq := b & MaskSeq
	if seq != d.state {
		if d.state == SeqCommand {
			return nil, d.protocolError(ErrExpectCommand,
				fmt.Sprintf("expected command byte, received <0x%02X>", b))
		}
		expected := d.state >> ShiftSeqNum
		perr = d.protocolError(ErrExpectData1+ErrorCode(expected-1),
			fmt.Sprintf("expected data byte %d, received <0x%02X>", expected, b))
		d.state = SeqCommand
		if seq != SeqCommand {
			return nil, perr
		}
	}

	if d.state == SeqCommand {
		d.stamp = d.now()
		d.command = b & MaskCmd
		d.numData = int(b >> ShiftNumBytes)
		if d.numData == 0 {
			return &Frame{Timestamp: d.stamp, Command: d.command}, perr
		}
		d.state = SeqData1
		return nil, perr
	}

	seqNum := int(d.state >> ShiftSeqNum)
	d.data[seqNum-1] = b & MaskData
	if seqNum < d.numData {
		d.state += SeqData1
		return nil, nil
	}
	d.state = SeqCommand
	data := make([]byte, d.numData)
	copy(data, d.data[:d.numData])
	return &Frame{Timestamp: d.stamp, Command: d.command, Data: data}, nil
}

func (d *Decoder) protocolError(code ErrorCode, msg string) *ProtocolError {
	return &ProtocolError{Timestamp: d.now(), Code: code, Message: msg}
}
