// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package b42

import (
	"errors"
)

// error defined
var (
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrUseClosedConnection = errors.New("use of closed connection")
	ErrAlreadyStarted      = errors.New("handler already started")
	ErrHandlerStopped      = errors.New("handler stopped")
	ErrNoTransport         = errors.New("no transport configured")
)
