// SPDX-License-Identifier: GPL-3.0-or-later

package ether

import (
	"github.com/rbmk-project/netlab/netsim/packet"
	"github.com/rbmk-project/netlab/netsim/phy"
)

// CapturedFrame returns whether a frame equal to frame was captured in
// the given direction. Use [phy.DirectionAny] to match both directions.
func (iface *Interface) CapturedFrame(frame *packet.Frame, dir phy.Direction) bool {
	return iface.CapturedFunc(dir, func(data []byte) bool {
		captured, err := packet.DecodeFrame(data)
		return err == nil && frame.Equal(captured)
	})
}

// CapturedPacket returns whether an IPv4 packet equal to pkt was
// captured in the given direction, carried by either a tagged or an
// untagged frame.
func (iface *Interface) CapturedPacket(pkt *packet.Packet, dir phy.Direction) bool {
	return iface.CapturedFunc(dir, func(data []byte) bool {
		frame, err := packet.DecodeFrame(data)
		if err != nil || frame.EtherType != packet.EtherTypeIPv4 {
			return false
		}
		captured, err := packet.DecodePacket(frame.Payload)
		return err == nil && pkt.Equal(captured)
	})
}
