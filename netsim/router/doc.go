// SPDX-License-Identifier: GPL-3.0-or-later

// Package router implements layer 3 devices.
//
// An [*Interface] is a layer 2 interface with an IPv4 address that
// encapsulates [*packet.Packet] values in Ethernet frames. The [*Router]
// forwards packets between its interfaces using a [*RouteTable] and an
// out-of-band [*ARP] table. The [*Host] is an endpoint sending packets
// through a default gateway and recording the packets it receives.
//
// Route selection prefers the longest matching prefix. Among equally
// specific routes the table keeps only the lowest administrative
// distance and then the lowest metric, and round-robins across the
// surviving equal-cost routes.
package router
