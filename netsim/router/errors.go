// SPDX-License-Identifier: GPL-3.0-or-later

package router

import (
	"fmt"

	"github.com/rbmk-project/netlab/netsim/phy"
)

var (
	// ErrNoRoute indicates that no route matches a destination.
	ErrNoRoute = fmt.Errorf("%w: no route to network", phy.ENETUNREACH)

	// ErrNoARPEntry indicates that the next hop has no ARP entry.
	ErrNoARPEntry = fmt.Errorf("%w: no ARP entry for next hop", phy.EHOSTUNREACH)

	// ErrInterfaceDown indicates that the outgoing interface is not up/up.
	ErrInterfaceDown = fmt.Errorf("%w: interface is down", phy.ENETDOWN)
)

// Drop reasons used for logging and metrics, in addition to the
// ones defined by the ether package.
const (
	DropEtherType = "ethertype"
	DropTTL       = "ttl"
	DropNoRoute   = "no-route"
	DropARP       = "arp"
)
