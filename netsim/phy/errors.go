// SPDX-License-Identifier: GPL-3.0-or-later

package phy

import "fmt"

var (
	// ErrCableFull is returned when plugging a third interface into a [*Cable]
	// or a second interface into a [*ProcessCable].
	ErrCableFull = fmt.Errorf("%w: cable has no free ends", EINVAL)

	// ErrAlreadyCabled is returned when plugging an interface that is
	// already plugged into a link.
	ErrAlreadyCabled = fmt.Errorf("%w: interface already has a cable", EISCONN)

	// ErrNotPlugged is returned when unplugging an interface from a link
	// it is not plugged into.
	ErrNotPlugged = fmt.Errorf("%w: interface is not plugged into this cable", ENOTCONN)

	// ErrCableClosed is returned when plugging into a closed [*ProcessCable].
	ErrCableClosed = fmt.Errorf("%w: process cable is closed", ENETDOWN)
)
