// SPDX-License-Identifier: GPL-3.0-or-later

package router

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/rbmk-project/common/runtimex"
	"github.com/rbmk-project/netlab/netsim/ether"
	"github.com/rbmk-project/netlab/netsim/packet"
	"github.com/rbmk-project/netlab/netsim/phy"
)

// Interface is a layer 3 interface with an IPv4 address.
//
// Construct using [NewInterface].
type Interface struct {
	*ether.Interface
	prefix netip.Prefix
}

// NewInterface creates a new [*Interface]. The prefix contains both the
// interface address and the connected network (e.g., 10.0.0.1/24).
//
// This function panics if prefix is not a valid IPv4 prefix.
func NewInterface(name string, mac net.HardwareAddr, prefix netip.Prefix, config ether.Config) *Interface {
	runtimex.Assert(prefix.IsValid() && prefix.Addr().Is4(), "interface prefix must be IPv4")
	return &Interface{
		Interface: ether.NewInterface(name, mac, config),
		prefix:    prefix,
	}
}

// String implements [fmt.Stringer].
func (iface *Interface) String() string {
	return fmt.Sprintf("%s (%s)", iface.Interface.String(), iface.prefix)
}

// Prefix returns the interface address with the network length.
func (iface *Interface) Prefix() netip.Prefix {
	return iface.prefix
}

// Addr returns the interface address.
func (iface *Interface) Addr() netip.Addr {
	return iface.prefix.Addr()
}

// Network returns the connected network.
func (iface *Interface) Network() netip.Prefix {
	return iface.prefix.Masked()
}

// SendPacket encapsulates pkt in a frame for dst and transmits it.
func (iface *Interface) SendPacket(pkt *packet.Packet, dst net.HardwareAddr) error {
	payload, err := pkt.Encode()
	if err != nil {
		return err
	}
	if !iface.UpUp() {
		return fmt.Errorf("%w: %s", ErrInterfaceDown, iface.Name())
	}
	frame := packet.NewFrame(iface.HardwareAddr(), dst, packet.EtherTypeIPv4, payload)
	data, ok := iface.WriteFrame(frame)
	if !ok {
		return fmt.Errorf("%w: frame dropped by %s", phy.EMSGSIZE, iface.Name())
	}
	iface.Record(phy.DirectionOut, data)
	return nil
}

// ReceivePacket returns the next IPv4 packet. Frames carrying anything
// else, including tagged frames, are dropped.
func (iface *Interface) ReceivePacket() (*packet.Packet, bool) {
	frame, data, ok := iface.ReadFrame()
	if !ok {
		return nil, false
	}
	if frame.Tagged || frame.EtherType != packet.EtherTypeIPv4 {
		iface.Drop(DropEtherType, fmt.Errorf("unexpected frame: %s", frame))
		return nil, false
	}
	pkt, err := packet.DecodePacket(frame.Payload)
	if err != nil {
		iface.Drop(ether.DropMalformed, err)
		return nil, false
	}
	iface.Record(phy.DirectionIn, data)
	return pkt, true
}
