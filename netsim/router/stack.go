// SPDX-License-Identifier: GPL-3.0-or-later

package router

import (
	"errors"
	"fmt"
	"log/slog"
	"net/netip"

	"github.com/rbmk-project/common/errclass"
	"github.com/rbmk-project/netlab/netsim/ether"
	"github.com/rbmk-project/netlab/netsim/metrics"
	"github.com/rbmk-project/netlab/netsim/packet"
	"github.com/rbmk-project/netlab/netsim/phy"
)

// stack is the IPv4 state shared by [*Router] and [*Host].
type stack struct {
	dev    *phy.Device
	arp    ARP
	table  RouteTable
	ifaces []*Interface
}

// setup creates the device and installs the connected routes.
func (s *stack) setup(name string, stepper phy.Stepper, ifaces []*Interface) {
	s.ifaces = ifaces
	l1 := make([]*phy.Interface, 0, len(ifaces))
	for _, iface := range ifaces {
		l1 = append(l1, iface.Interface.Interface)
		s.table.Install(&Route{
			Network:   iface.Network(),
			Interface: iface,
			AD:        ADDirect,
		})
	}
	s.dev = phy.NewDevice(name, stepper, l1...)
}

// ARP returns the ARP table.
func (s *stack) ARP() *ARP {
	return &s.arp
}

// RouteTable returns the route table.
func (s *stack) RouteTable() *RouteTable {
	return &s.table
}

// Ports returns the layer 3 interfaces.
func (s *stack) Ports() []*Interface {
	return append([]*Interface{}, s.ifaces...)
}

// Port returns the layer 3 interface with the given name or nil.
func (s *stack) Port(name string) *Interface {
	for _, iface := range s.ifaces {
		if iface.Name() == name {
			return iface
		}
	}
	return nil
}

// Instrument sets the logger and metrics of the device and its interfaces.
func (s *stack) Instrument(logger *slog.Logger, collector *metrics.Collector) {
	s.dev.Logger, s.dev.Metrics = logger, collector
	for _, iface := range s.ifaces {
		iface.Logger, iface.Metrics = logger, collector
	}
}

func (s *stack) isLocal(addr netip.Addr) bool {
	for _, iface := range s.ifaces {
		if iface.Addr() == addr {
			return true
		}
	}
	return false
}

// output routes pkt and transmits it on the selected interface. An unset
// source address becomes the address of that interface.
func (s *stack) output(pkt *packet.Packet) (*Route, error) {
	route, err := s.table.Lookup(pkt.DstAddr)
	s.dev.Metrics.RouteLookup(s.dev.Name(), err == nil)
	if err != nil {
		if s.dev.Logger != nil {
			s.dev.Logger.Info(
				"routeMiss",
				slog.String("device", s.dev.Name()),
				slog.String("dst", pkt.DstAddr.String()),
			)
		}
		return nil, err
	}
	if !pkt.SrcAddr.IsValid() {
		pkt.SrcAddr = route.Interface.Addr()
	}
	nextHop := route.nextHop(pkt.DstAddr)
	mac, found := s.arp.Lookup(nextHop)
	if !found {
		return route, fmt.Errorf("%w: %s", ErrNoARPEntry, nextHop)
	}
	return route, route.Interface.SendPacket(pkt, mac)
}

// drop logs and counts a packet dropped by the device. Frames the
// interface refused to transmit are already accounted for.
func (s *stack) drop(iface *Interface, pkt *packet.Packet, err error) {
	reason := dropReason(err)
	if reason == "" {
		return
	}
	s.dev.Metrics.Drop(s.dev.Name(), reason)
	if s.dev.Logger != nil {
		s.dev.Logger.Debug(
			"packetDrop",
			slog.String("device", s.dev.Name()),
			slog.String("interface", iface.Name()),
			slog.String("packet", pkt.String()),
			slog.String("reason", reason),
			slog.Any("err", err),
			slog.String("errClass", errclass.New(err)),
		)
	}
}

var errTTLExceeded = errors.New("TTL exceeded in transit")

func dropReason(err error) string {
	switch {
	case errors.Is(err, errTTLExceeded):
		return DropTTL
	case errors.Is(err, ErrNoRoute):
		return DropNoRoute
	case errors.Is(err, ErrNoARPEntry):
		return DropARP
	case errors.Is(err, ErrInterfaceDown):
		return ether.DropDown
	case errors.Is(err, packet.ErrMalformed):
		return ether.DropMalformed
	case errors.Is(err, errNotLocal):
		return ether.DropDestination
	default:
		return ""
	}
}
