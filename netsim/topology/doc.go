// SPDX-License-Identifier: GPL-3.0-or-later

// Package topology builds labs of simulated devices from a description.
//
// A description is a YAML (or JSON) document listing the devices, their
// interfaces, and the cables connecting them. For example:
//
//	tickInterval: 100ms
//	devices:
//	  - name: sw
//	    kind: switch
//	    interfaces:
//	      - name: p0
//	      - name: p1
//	  - name: h1
//	    kind: host
//	    interfaces:
//	      - {name: eth0, mac: "02:00:00:00:00:01", address: 10.0.0.1/24}
//	    arp:
//	      - {address: 10.0.0.2, mac: "02:00:00:00:00:02"}
//	  - name: h2
//	    kind: host
//	    interfaces:
//	      - {name: eth0, mac: "02:00:00:00:00:02", address: 10.0.0.2/24}
//	cables:
//	  - {a: h1/eth0, b: sw/p0}
//	  - {a: h2/eth0, b: sw/p1}
//
// Process cables plug an interface into a UDP socket on localhost so
// that two processes, each running its own lab, can share a wire.
package topology
