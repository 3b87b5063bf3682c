// SPDX-License-Identifier: GPL-3.0-or-later

package netsim_test

import (
	"fmt"
	"log"
	"net/netip"
	"time"

	"github.com/rbmk-project/netlab/netsim"
	"github.com/rbmk-project/netlab/netsim/bridge"
	"github.com/rbmk-project/netlab/netsim/ether"
	"github.com/rbmk-project/netlab/netsim/packet"
	"github.com/rbmk-project/netlab/netsim/phy"
	"github.com/rbmk-project/netlab/netsim/topology"
)

// waitFor polls cond until it holds or a watchdog timeout expires.
func waitFor(cond func() bool) {
	deadline := time.Now().Add(10 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			log.Fatal("timeout")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// This example shows a switch flooding a frame for an unknown
// destination and learning the address of the sender.
func Example_switch() {
	var (
		ports   []*bridge.Port
		hosts   []*ether.Interface
		devices []*netsim.Device
	)
	for idx := range 3 {
		port := bridge.NewPort(fmt.Sprintf("p%d", idx), nil, phy.InterfaceConfig{})
		iface := ether.NewInterface("eth0", ether.MustParseMAC(fmt.Sprintf("02:00:00:00:00:%02x", idx+1)), ether.Config{})
		if _, err := netsim.Connect(port.Interface.Interface, iface.Interface); err != nil {
			log.Fatal(err)
		}
		host := netsim.NewEtherDevice(fmt.Sprintf("h%d", idx+1), iface)
		ports, hosts, devices = append(ports, port), append(hosts, iface), append(devices, host.Device)
	}
	sw := netsim.NewSwitch("sw", nil, ports...)
	devices = append(devices, sw.Device)

	for _, dev := range devices {
		dev.TickInterval = 5 * time.Millisecond
		dev.Start()
		defer dev.Shutdown()
	}
	waitFor(func() bool {
		for _, iface := range hosts {
			if !iface.UpUp() {
				return false
			}
		}
		return true
	})

	frame := packet.NewFrame(hosts[0].HardwareAddr(), hosts[2].HardwareAddr(), packet.EtherTypeExperimental, []byte("hello"))
	data, err := frame.Encode()
	if err != nil {
		log.Fatal(err)
	}
	hosts[0].SendFrame(frame)
	waitFor(func() bool { return hosts[2].Captured(data, phy.DirectionIn) })

	// The second host drops the flooded frame without capturing it.
	fmt.Println(hosts[1].Captured(data, phy.DirectionIn))
	for _, record := range sw.CAM() {
		fmt.Println(record.MAC, record.VLAN, record.Port.Name())
	}

	// Output:
	// false
	// 02:00:00:00:00:01 1 p0
}

// This example shows how to build a routed lab from a description
// and send a packet across the router.
func Example_router() {
	cfg, err := topology.Parse([]byte(`
tickInterval: 5ms
devices:
  - name: h1
    kind: host
    gateway: 10.0.1.1
    interfaces: [{name: eth0, mac: "02:00:00:00:01:0a", address: 10.0.1.10/24}]
    arp: [{address: 10.0.1.1, mac: "02:00:00:00:01:01"}]
  - name: r1
    kind: router
    interfaces:
      - {name: eth0, mac: "02:00:00:00:01:01", address: 10.0.1.1/24}
      - {name: eth1, mac: "02:00:00:00:02:01", address: 10.0.2.1/24}
    arp:
      - {address: 10.0.1.10, mac: "02:00:00:00:01:0a"}
      - {address: 10.0.2.10, mac: "02:00:00:00:02:0b"}
  - name: h2
    kind: host
    gateway: 10.0.2.1
    interfaces: [{name: eth0, mac: "02:00:00:00:02:0b", address: 10.0.2.10/24}]
    arp: [{address: 10.0.2.1, mac: "02:00:00:00:02:01"}]
cables:
  - {a: h1/eth0, b: r1/eth0}
  - {a: r1/eth1, b: h2/eth0}
`))
	if err != nil {
		log.Fatal(err)
	}
	lab, err := netsim.BuildLab(cfg, nil, nil)
	if err != nil {
		log.Fatal(err)
	}
	defer lab.Close()
	lab.Start()

	h1, h2 := lab.Host("h1"), lab.Host("h2")
	waitFor(func() bool { return h1.Port("eth0").UpUp() && h2.Port("eth0").UpUp() })

	pkt := packet.NewPacket(netip.Addr{}, netip.MustParseAddr("10.0.2.10"), []byte("hello"))
	if err := h1.Send(pkt); err != nil {
		log.Fatal(err)
	}
	waitFor(func() bool { return len(h2.Received()) > 0 })
	fmt.Println(h2.Received()[0])

	for _, route := range lab.Router("r1").RouteTable().Routes() {
		fmt.Println(route)
	}

	// Output:
	// 10.0.1.10 -> 10.0.2.10 experimental ttl=63 length=5
	// 10.0.1.0/24 dev eth0 ad 0 metric 0
	// 10.0.2.0/24 dev eth1 ad 0 metric 0
}
