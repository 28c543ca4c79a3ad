// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

// Package b42 implements the B42 framing protocol used to exchange small
// commands with microcontroller boards over a serial line.
//
// A frame is a command byte (command 1..15 and the number of data bytes)
// followed by up to three data bytes carrying six bits each. The two top
// bits of every byte hold its position in the frame, so the receiver can
// resynchronize after a lost or corrupted byte.
//
// Typical use:
//
//	errs := b42.NewQueue[error]()
//	d := b42.NewDispatcher(b42.ModeDeferred, errs)
//	d.Register(0x01, func(ts time.Time, data []byte) { ... }, 2)
//
//	h, err := b42.NewHandler(b42.NewOption().
//		SetAddress("/dev/ttyUSB0").
//		SetFrameSink(d).
//		SetErrorSink(errs))
//	if err != nil {
//		...
//	}
//	defer h.Stop()
//
//	h.SendValue(0x02, 1000, 2)
//	for {
//		d.Dispatch()
//		...
//	}
package b42
