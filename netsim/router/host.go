// SPDX-License-Identifier: GPL-3.0-or-later

package router

import (
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"sync"

	"github.com/rbmk-project/netlab/netsim/metrics"
	"github.com/rbmk-project/netlab/netsim/packet"
	"github.com/rbmk-project/netlab/netsim/phy"
)

// MaxReceived is the number of packets a [*Host] remembers.
const MaxReceived = phy.MaxCapture

var errNotLocal = errors.New("packet not addressed to this host")

// Host is an IPv4 endpoint.
//
// Construct using [NewHost].
type Host struct {
	*phy.Device
	stack

	gateway netip.Addr

	// mu protects received.
	mu       sync.Mutex
	received []*packet.Packet
}

// NewHost creates a new stopped [*Host] owning the given interfaces.
//
// Besides the connected routes, the host installs a default route via
// gateway on the first interface whose network contains it. Pass the
// zero [netip.Addr] for a host without a default route.
func NewHost(name string, gateway netip.Addr, ifaces ...*Interface) *Host {
	h := &Host{gateway: gateway}
	h.setup(name, h, ifaces)
	h.Device = h.dev
	for _, iface := range ifaces {
		if gateway.IsValid() && iface.Network().Contains(gateway) {
			h.table.Install(&Route{
				Network:   netip.PrefixFrom(netip.IPv4Unspecified(), 0),
				Interface: iface,
				AD:        ADStatic,
				NextHop:   gateway,
			})
			break
		}
	}
	return h
}

// Gateway returns the default gateway or the zero [netip.Addr].
func (h *Host) Gateway() netip.Addr {
	return h.gateway
}

// Send routes and transmits a copy of pkt. When the source address is
// not set, we use the address of the outgoing interface.
//
// The returned error wraps [ErrNoRoute], [ErrNoARPEntry], or
// [ErrInterfaceDown] when the packet cannot leave the host.
func (h *Host) Send(pkt *packet.Packet) error {
	pkt = pkt.Clone()
	route, err := h.output(pkt)
	if err != nil {
		return fmt.Errorf("%s: %w", h.Name(), err)
	}
	h.Metrics.Decision(h.Name(), metrics.ActionForward)
	if h.Logger != nil {
		h.Logger.Info(
			"packetSend",
			slog.String("device", h.Name()),
			slog.String("interface", route.Interface.Name()),
			slog.String("packet", pkt.String()),
		)
	}
	return nil
}

// Received returns copies of the most recent packets received.
func (h *Host) Received() []*packet.Packet {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*packet.Packet, 0, len(h.received))
	for _, pkt := range h.received {
		out = append(out, pkt.Clone())
	}
	return out
}

// ClearReceived forgets the received packets.
func (h *Host) ClearReceived() {
	h.mu.Lock()
	h.received = nil
	h.mu.Unlock()
}

// Step implements [phy.Stepper].
//
// The step receives at most one packet from each interface and keeps
// those addressed to the host.
func (h *Host) Step() error {
	for _, iface := range h.ifaces {
		pkt, ok := iface.ReceivePacket()
		if !ok {
			continue
		}
		if !h.isLocal(pkt.DstAddr) {
			h.drop(iface, pkt, fmt.Errorf("%w: %s", errNotLocal, pkt.DstAddr))
			continue
		}
		h.remember(pkt)
		h.Metrics.Decision(h.Name(), metrics.ActionLocal)
		if h.Logger != nil {
			h.Logger.Info(
				"packetReceive",
				slog.String("device", h.Name()),
				slog.String("interface", iface.Name()),
				slog.String("packet", pkt.String()),
			)
		}
	}
	return nil
}

func (h *Host) remember(pkt *packet.Packet) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.received = append(h.received, pkt)
	if len(h.received) > MaxReceived {
		h.received = h.received[len(h.received)-MaxReceived:]
	}
}
