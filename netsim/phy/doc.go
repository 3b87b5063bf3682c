// SPDX-License-Identifier: GPL-3.0-or-later

/*
Package phy models the physical layer of the simulated network.

An [*Interface] is a network port owned by a single [*Device]. It carries
a line status ([LineDown], [LineUp] or [LineAdminDown]), a protocol status
that follows the line status, unbounded send and receive queues of raw
bytes, and a capture ring holding the last [MaxCapture] messages that
crossed it.

A [Link] connects interfaces. A [*Cable] joins two interfaces in the same
process, while a [*ProcessCable] joins a local interface to a peer
interface living in another process through a pair of UDP sockets bound
to the loopback address.

A [*Device] drives its interfaces using a periodic control loop. Each tick
negotiates every interface, updates every plugged link and then invokes
the [Stepper] implementing the device behaviour. All devices share a
single tick lock, therefore tick bodies never interleave.

Errors caused by misconfiguration wrap the same [syscall.Errno] values the
kernel would use in similar cases (e.g., [EINVAL]).
*/
package phy
