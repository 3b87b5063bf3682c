// SPDX-License-Identifier: GPL-3.0-or-later

/*
Package ether adds Ethernet semantics to the [phy] layer.

An [*Interface] wraps a [*phy.Interface] with a MAC address, a
promiscuous flag and an MTU budget. Frames travel as encoded Ethernet II
bytes followed by a 4-byte FCS. Received bytes that are malformed, fail
the FCS check, exceed the MTU budget, or (for a non-promiscuous
interface) are not addressed to the interface MAC are dropped and never
reach the capture ring.

A [*Device] is a minimal layer 2 device logging every frame it receives.
*/
package ether
