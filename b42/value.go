// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package b42

import (
	"fmt"
)

// EncodeValue converts value into length (1, 2 or 3) six bit data bytes, most
// significant first. Only the low length*6 bits of value are kept.
func EncodeValue(value int, length int) ([]byte, error) {
	if length < 1 || length > MaxDataLen {
		return nil, fmt.Errorf("%w: invalid data length <%d>", ErrInvalidArgument, length)
	}
	digits := make([]byte, length)
	for i := length - 1; i >= 0; i-- {
		digits[i] = byte(value) & MaskData
		value >>= 6
	}
	return digits, nil
}

// DecodeValue converts 1 to 3 six bit data bytes, most significant first,
// into a single value.
func DecodeValue(digits ...byte) (int, error) {
	if len(digits) < 1 || len(digits) > MaxDataLen {
		return 0, fmt.Errorf("%w: invalid number of data bytes <%d>", ErrInvalidArgument, len(digits))
	}
	value := 0
	for _, d := range digits {
		value = value<<6 | int(d)
	}
	return value, nil
}
