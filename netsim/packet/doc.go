// SPDX-License-Identifier: GPL-3.0-or-later

/*
Package packet contains the link-layer and network-layer views of the
bytes moving across simulated cables.

A [*Frame] is an Ethernet II frame carrying an optional 802.1Q tag. A
[*Packet] is an IPv4 packet. Both are encoded and decoded using the
[github.com/google/gopacket/layers] codecs, so captures taken from the
simulator can be inspected with any pcap-aware tool.

On the wire, frames are followed by a 4-byte frame check sequence. Use
[AppendFCS] before handing bytes to a cable and [StripFCS] after taking
them from a cable. [MaxFrameSize] returns the largest acceptable wire
size for a given MTU.

Decoding failures wrap [ErrMalformed] or [ErrBadFCS]. These are protocol
violations: the simulated devices drop the offending bytes and move on.
*/
package packet
