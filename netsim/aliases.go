//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Aliases
//

package netsim

import (
	"github.com/rbmk-project/netlab/netsim/bridge"
	"github.com/rbmk-project/netlab/netsim/ether"
	"github.com/rbmk-project/netlab/netsim/phy"
	"github.com/rbmk-project/netlab/netsim/router"
	"github.com/rbmk-project/netlab/netsim/topology"
)

// Device is an alias for [phy.Device].
type Device = phy.Device

// Cable is an alias for [phy.Cable].
type Cable = phy.Cable

// ProcessCable is an alias for [phy.ProcessCable].
type ProcessCable = phy.ProcessCable

// EtherDevice is an alias for [ether.Device].
type EtherDevice = ether.Device

// Switch is an alias for [bridge.Switch].
type Switch = bridge.Switch

// Router is an alias for [router.Router].
type Router = router.Router

// Host is an alias for [router.Host].
type Host = router.Host

// Lab is an alias for [topology.Lab].
type Lab = topology.Lab

// Connect is an alias for [phy.Connect].
var Connect = phy.Connect

// NewProcessCable is an alias for [phy.NewProcessCable].
var NewProcessCable = phy.NewProcessCable

// NewEtherDevice is an alias for [ether.NewDevice].
var NewEtherDevice = ether.NewDevice

// NewSwitch is an alias for [bridge.NewSwitch].
var NewSwitch = bridge.NewSwitch

// NewRouter is an alias for [router.NewRouter].
var NewRouter = router.NewRouter

// NewHost is an alias for [router.NewHost].
var NewHost = router.NewHost

// LoadTopology is an alias for [topology.Load].
var LoadTopology = topology.Load

// BuildLab is an alias for [topology.Build].
var BuildLab = topology.Build
