// SPDX-License-Identifier: GPL-3.0-or-later

package router

import (
	"fmt"
	"log/slog"
	"net/netip"

	"github.com/rbmk-project/common/runtimex"
	"github.com/rbmk-project/netlab/netsim/metrics"
	"github.com/rbmk-project/netlab/netsim/packet"
	"github.com/rbmk-project/netlab/netsim/phy"
)

// Router forwards IPv4 packets between its interfaces.
//
// Construct using [NewRouter]. The connected routes are installed at
// construction. Static routes and ARP entries are configured with
// [*Router.AddStaticRoute] and [*Router.ARP].
type Router struct {
	*phy.Device
	stack
}

// NewRouter creates a new stopped [*Router] owning the given interfaces.
func NewRouter(name string, ifaces ...*Interface) *Router {
	r := &Router{}
	r.setup(name, r, ifaces)
	r.Device = r.dev
	return r
}

// AddStaticRoute installs a static route for network. Exactly one of
// nextHop and out must be set. With a next hop, the outgoing interface
// is the one whose connected network contains it, and the next hop must
// not be one of the router addresses. With an outgoing interface, the
// network is treated as directly reachable through it.
//
// The returned bool tells whether the route was installed, which is
// false when a better route for the same network exists.
func (r *Router) AddStaticRoute(network netip.Prefix, nextHop netip.Addr, out *Interface) (bool, error) {
	if !network.IsValid() || !network.Addr().Is4() {
		return false, fmt.Errorf("%w: invalid network %s", phy.EINVAL, network)
	}
	if nextHop.IsValid() == (out != nil) {
		return false, fmt.Errorf("%w: need either a next hop or an out interface", phy.EINVAL)
	}
	if out != nil && r.Port(out.Name()) != out {
		return false, fmt.Errorf("%w: %s is not a router interface", phy.EINVAL, out.Name())
	}
	if nextHop.IsValid() {
		if r.isLocal(nextHop) {
			return false, fmt.Errorf("%w: next hop %s is a local address", phy.EINVAL, nextHop)
		}
		for _, iface := range r.ifaces {
			if iface.Network().Contains(nextHop) {
				out = iface
				break
			}
		}
		if out == nil {
			return false, fmt.Errorf("%w: next hop %s is not on a connected network", phy.EINVAL, nextHop)
		}
	}
	route := &Route{
		Network:   network,
		Interface: out,
		AD:        ADStatic,
		NextHop:   nextHop,
	}
	installed := r.table.Install(route)
	if r.Logger != nil {
		r.Logger.Info(
			"routeInstall",
			slog.String("device", r.Name()),
			slog.String("route", route.String()),
			slog.Bool("installed", installed),
		)
	}
	return installed, nil
}

// MustAddStaticRoute is like [*Router.AddStaticRoute] but panics on error.
func (r *Router) MustAddStaticRoute(network netip.Prefix, nextHop netip.Addr, out *Interface) bool {
	return runtimex.Try1(r.AddStaticRoute(network, nextHop, out))
}

// Step implements [phy.Stepper].
//
// The step receives at most one packet from each interface. Packets
// addressed to the router are consumed. The others have their TTL
// decremented and are forwarded according to the route table.
func (r *Router) Step() error {
	for _, iface := range r.ifaces {
		pkt, ok := iface.ReceivePacket()
		if !ok {
			continue
		}
		r.forward(iface, pkt)
	}
	return nil
}

func (r *Router) forward(ingress *Interface, pkt *packet.Packet) {
	if r.isLocal(pkt.DstAddr) {
		r.Metrics.Decision(r.Name(), metrics.ActionLocal)
		if r.Logger != nil {
			r.Logger.Info(
				"packetLocal",
				slog.String("device", r.Name()),
				slog.String("interface", ingress.Name()),
				slog.String("packet", pkt.String()),
			)
		}
		return
	}

	if pkt.TTL <= 1 {
		r.drop(ingress, pkt, errTTLExceeded)
		return
	}
	pkt.TTL--

	route, err := r.output(pkt)
	if err != nil {
		r.drop(ingress, pkt, err)
		return
	}
	r.Metrics.Decision(r.Name(), metrics.ActionForward)
	if r.Logger != nil {
		r.Logger.Debug(
			"packetForward",
			slog.String("device", r.Name()),
			slog.String("interface", ingress.Name()),
			slog.String("packet", pkt.String()),
			slog.String("route", route.String()),
		)
	}
}
