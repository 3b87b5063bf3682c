// SPDX-License-Identifier: GPL-3.0-or-later

/*
Package netsim is a tick-driven simulator of layer 1, 2 and 3 networks
that developers can use to test forwarding logic.

# Usage and Features

Devices own interfaces and run a control loop on a fixed tick. Every
tick, and with the ticks of all devices serialized, a device negotiates
the link state of its interfaces, moves the queued data across the
attached cables, and then runs its forwarding step once.

The [Connect] function joins two interfaces with a [*Cable]. A
[*ProcessCable] joins an interface to an interface living in another
process using UDP on localhost, so that two programs can share a wire.

The devices are:

- [*Device] with no forwarding logic (see [phy.NewDevice]);

- [*EtherDevice] logging the frames it receives;

- [*Switch] learning MAC addresses per VLAN and flooding unknown
destinations, with access and trunk ports;

- [*Router] forwarding IPv4 packets using connected and static routes;

- [*Host] sending IPv4 packets through a default gateway.

The [netsim/topology] package builds a [*Lab] from a YAML description
and the netlab command runs such a lab until interrupted.

Every interface keeps a ring of the last captured messages, which is
the primary way to observe the simulation in tests. Devices also accept
an optional [*slog.Logger] and an optional Prometheus collector (see
the [netsim/metrics] package).

The errors returned for invalid configurations wrap the same
[syscall.Errno] values the kernel would use in similar cases (we use
the [x/sys] repository to pull system-dependent error values).

# Subpackages

The [netsim/phy] package contains interfaces, cables and devices. The
[netsim/packet] package encodes frames and packets. The [netsim/ether],
[netsim/bridge] and [netsim/router] packages implement layer 2 hosts,
switches, and layer 3 devices.
*/
package netsim
