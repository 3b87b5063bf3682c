// SPDX-License-Identifier: GPL-3.0-or-later

package router

import (
	"fmt"
	"net/netip"
	"strings"
	"sync"
	"sync/atomic"
)

// Administrative distances of the supported route sources.
const (
	// ADDirect is the distance of directly connected networks.
	ADDirect uint8 = 0

	// ADStatic is the distance of static routes.
	ADStatic uint8 = 1
)

// Route sends the packets for a network through an interface.
type Route struct {
	// Network is the destination network.
	Network netip.Prefix

	// Interface is the outgoing interface.
	Interface *Interface

	// AD is the administrative distance. Lower is preferred when
	// different sources provide a route for the same network.
	AD uint8

	// Metric orders routes with the same AD. Lower is preferred.
	Metric uint32

	// NextHop is the gateway for the network. The zero value means
	// that the network is directly reachable and the packet
	// destination is the next hop.
	NextHop netip.Addr

	balance atomic.Uint64
}

// BalanceMetric returns how many times [*RouteTable.Lookup] selected
// the route.
func (r *Route) BalanceMetric() uint64 {
	return r.balance.Load()
}

// String implements [fmt.Stringer].
func (r *Route) String() string {
	var sb strings.Builder
	sb.WriteString(r.Network.String())
	if r.NextHop.IsValid() {
		fmt.Fprintf(&sb, " via %s", r.NextHop)
	}
	if r.Interface != nil {
		fmt.Fprintf(&sb, " dev %s", r.Interface.Name())
	}
	fmt.Fprintf(&sb, " ad %d metric %d", r.AD, r.Metric)
	return sb.String()
}

// nextHop returns the address to resolve for reaching dst.
func (r *Route) nextHop(dst netip.Addr) netip.Addr {
	if r.NextHop.IsValid() {
		return r.NextHop
	}
	return dst
}


// RouteTable holds the best routes for each network.
//
// The zero value is ready to use.
type RouteTable struct {
	mu     sync.Mutex
	routes []*Route
}

// Install adds route to the table and returns whether it was installed.
//
// For the route network, existing routes with a lower AD, or the same
// AD and a lower metric, win and the route is rejected. Existing routes
// the new one beats are removed. Routes tying on AD and metric are
// kept together as an equal-cost set, including a route identical to
// one already installed.
//
// Routes with an invalid network or a nil interface are rejected. The
// network is stored masked (e.g., 10.0.0.1/24 becomes 10.0.0.0/24).
func (t *RouteTable) Install(route *Route) bool {
	if route == nil || !route.Network.IsValid() || route.Interface == nil {
		return false
	}
	route.Network = route.Network.Masked()

	t.mu.Lock()
	defer t.mu.Unlock()
	routes := make([]*Route, 0, len(t.routes)+1)
	install := true
	for _, existing := range t.routes {
		switch {
		case existing.Network != route.Network:
			routes = append(routes, existing)
		case existing.AD < route.AD:
			install = false
			routes = append(routes, existing)
		case existing.AD > route.AD:
			// replaced
		case existing.Metric < route.Metric:
			install = false
			routes = append(routes, existing)
		case existing.Metric > route.Metric:
			// replaced
		default:
			routes = append(routes, existing)
		}
	}
	if install {
		routes = append(routes, route)
	}
	t.routes = routes
	return install
}

// Lookup returns the route to use for addr and increments its balance
// counter. It returns [ErrNoRoute] when no route matches.
func (t *RouteTable) Lookup(addr netip.Addr) (*Route, error) {
	addr = addr.Unmap()
	t.mu.Lock()
	defer t.mu.Unlock()
	var best *Route
	for _, route := range t.routes {
		if !route.Network.Contains(addr) {
			continue
		}
		if best == nil {
			best = route
			continue
		}
		switch bits, bestBits := route.Network.Bits(), best.Network.Bits(); {
		case bits < bestBits:
		case bits > bestBits:
			best = route
		case route.BalanceMetric() < best.BalanceMetric():
			best = route
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoRoute, addr)
	}
	best.balance.Add(1)
	return best, nil
}

// Routes returns the installed routes in installation order.
func (t *RouteTable) Routes() []*Route {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*Route{}, t.routes...)
}

// Len returns the number of installed routes.
func (t *RouteTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.routes)
}
