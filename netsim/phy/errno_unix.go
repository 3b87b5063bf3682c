//go:build unix

//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// UNIX errno values used by the simulator.
//

package phy

import "golang.org/x/sys/unix"

const (
	// EADDRINUSE is the address in use error.
	EADDRINUSE = unix.EADDRINUSE

	// EHOSTUNREACH is the host unreachable error.
	EHOSTUNREACH = unix.EHOSTUNREACH

	// EINVAL is the invalid argument error.
	EINVAL = unix.EINVAL

	// EISCONN is the already connected error.
	EISCONN = unix.EISCONN

	// EMSGSIZE is the message too long error.
	EMSGSIZE = unix.EMSGSIZE

	// ENETDOWN is the network is down error.
	ENETDOWN = unix.ENETDOWN

	// ENETUNREACH is the network unreachable error.
	ENETUNREACH = unix.ENETUNREACH

	// ENOTCONN is the not connected error.
	ENOTCONN = unix.ENOTCONN
)
