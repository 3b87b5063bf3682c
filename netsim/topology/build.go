// SPDX-License-Identifier: GPL-3.0-or-later

package topology

import (
	"fmt"
	"log/slog"
	"net"
	"net/netip"

	"github.com/rbmk-project/netlab/closepool"
	"github.com/rbmk-project/netlab/netsim/bridge"
	"github.com/rbmk-project/netlab/netsim/ether"
	"github.com/rbmk-project/netlab/netsim/metrics"
	"github.com/rbmk-project/netlab/netsim/phy"
	"github.com/rbmk-project/netlab/netsim/router"
)

// builder turns a [*Config] into a [*Lab].
type builder struct {
	logger    *slog.Logger
	collector *metrics.Collector
	lab       *Lab

	// ends maps "device/interface" to the layer 1 interface.
	ends map[string]*phy.Interface
}

func (b *builder) build(cfg *Config) error {
	for _, dc := range cfg.Devices {
		if err := b.device(cfg, &dc); err != nil {
			return err
		}
	}
	for _, cc := range cfg.Cables {
		cable, err := phy.Connect(b.ends[cc.A], b.ends[cc.B])
		if err != nil {
			return fmt.Errorf("cable %s <-> %s: %w", cc.A, cc.B, err)
		}
		cable.Logger = b.logger
		b.lab.cables = append(b.lab.cables, cable)
	}
	for _, pc := range cfg.ProcessCables {
		if err := b.processCable(&pc); err != nil {
			return err
		}
	}
	for _, dev := range b.lab.devices {
		b.lab.pool.Add(closepool.Func(func() error {
			return shutdown(dev)
		}))
	}
	return nil
}

// shutdown stops dev and reports its fault, if any.
func shutdown(dev *phy.Device) error {
	dev.Shutdown()
	if err := dev.Fault(); err != nil {
		return fmt.Errorf("%s: %w", dev.Name(), err)
	}
	return nil
}

func (b *builder) device(cfg *Config, dc *DeviceConfig) error {
	var (
		dev  *phy.Device
		node any
		err  error
	)
	switch dc.Kind {
	case KindL1:
		dev = b.l1(dc)
		node = dev
	case KindL2:
		var d *ether.Device
		d, err = b.l2(dc)
		if d != nil {
			dev, node = d.Device, d
		}
	case KindSwitch:
		var sw *bridge.Switch
		sw, err = b.bridge(dc)
		if sw != nil {
			dev, node = sw.Device, sw
		}
	case KindRouter:
		var r *router.Router
		r, err = b.router(dc)
		if r != nil {
			dev, node = r.Device, r
		}
	case KindHost:
		var h *router.Host
		h, err = b.host(dc)
		if h != nil {
			dev, node = h.Device, h
		}
	}
	if err != nil {
		return err
	}

	tick := dc.TickInterval
	if tick == "" {
		tick = cfg.TickInterval
	}
	dev.TickInterval, _ = parseDuration(tick)
	for _, ic := range dc.Interfaces {
		iface := dev.Interface(ic.Name)
		if ic.Shutdown {
			iface.Shutdown()
		}
		b.ends[dc.Name+"/"+ic.Name] = iface
	}
	b.lab.devices = append(b.lab.devices, dev)
	b.lab.nodes[dc.Name] = node
	return nil
}

func (b *builder) l1(dc *DeviceConfig) *phy.Device {
	var ifaces []*phy.Interface
	for _, ic := range dc.Interfaces {
		ifaces = append(ifaces, phy.NewInterface(ic.Name, l1Config(&ic)))
	}
	dev := phy.NewDevice(dc.Name, nil, ifaces...)
	dev.Logger, dev.Metrics = b.logger, b.collector
	return dev
}

func (b *builder) l2(dc *DeviceConfig) (*ether.Device, error) {
	var ifaces []*ether.Interface
	for _, ic := range dc.Interfaces {
		mac, err := parseMAC(dc, &ic)
		if err != nil {
			return nil, err
		}
		ifaces = append(ifaces, ether.NewInterface(ic.Name, mac, l2Config(&ic)))
	}
	dev := ether.NewDevice(dc.Name, ifaces...)
	dev.Instrument(b.logger, b.collector)
	return dev, nil
}

func (b *builder) bridge(dc *DeviceConfig) (*bridge.Switch, error) {
	var ports []*bridge.Port
	for _, ic := range dc.Interfaces {
		var mac net.HardwareAddr
		if ic.MAC != "" {
			var err error
			if mac, err = parseMAC(dc, &ic); err != nil {
				return nil, err
			}
		}
		port := bridge.NewPort(ic.Name, mac, l1Config(&ic))
		if err := configurePort(port, &ic); err != nil {
			return nil, fmt.Errorf("device %q: interface %q: %w", dc.Name, ic.Name, err)
		}
		ports = append(ports, port)
	}
	var mac net.HardwareAddr
	if dc.MAC != "" {
		var err error
		if mac, err = ether.ParseMAC(dc.MAC); err != nil {
			return nil, fmt.Errorf("device %q: %w", dc.Name, err)
		}
	}
	sw := bridge.NewSwitch(dc.Name, mac, ports...)
	sw.CAMTimeout, _ = parseDuration(dc.CAMTimeout)
	sw.Instrument(b.logger, b.collector)
	return sw, nil
}

func configurePort(port *bridge.Port, ic *InterfaceConfig) error {
	switch ic.Mode {
	case "", string(bridge.ModeAccess):
		if len(ic.AllowedVLANs) > 0 || ic.NativeVLAN != 0 {
			return invalidf("access ports have no trunk settings")
		}
		if ic.VLAN == 0 {
			return nil
		}
		return port.SetAccess(ic.VLAN)
	case string(bridge.ModeTrunk):
		if ic.VLAN != 0 {
			return invalidf("trunk ports have no access VLAN")
		}
		return port.SetTrunk(bridge.TrunkConfig{
			AllowedVLANs: ic.AllowedVLANs,
			NativeVLAN:   ic.NativeVLAN,
		})
	default:
		return invalidf("unknown port mode %q", ic.Mode)
	}
}

func (b *builder) router(dc *DeviceConfig) (*router.Router, error) {
	ifaces, err := l3Interfaces(dc)
	if err != nil {
		return nil, err
	}
	r := router.NewRouter(dc.Name, ifaces...)
	r.Instrument(b.logger, b.collector)
	if err := setARP(dc, r.ARP()); err != nil {
		return nil, err
	}
	for _, rc := range dc.Routes {
		network, err := netip.ParsePrefix(rc.Network)
		if err != nil {
			return nil, invalidf("device %q: route %q: %s", dc.Name, rc.Network, err.Error())
		}
		var (
			nextHop netip.Addr
			out     *router.Interface
		)
		if rc.NextHop != "" {
			if nextHop, err = netip.ParseAddr(rc.NextHop); err != nil {
				return nil, invalidf("device %q: route %q: %s", dc.Name, rc.Network, err.Error())
			}
		}
		if rc.Interface != "" {
			if out = r.Port(rc.Interface); out == nil {
				return nil, invalidf("device %q: route %q: unknown interface %q", dc.Name, rc.Network, rc.Interface)
			}
		}
		if _, err := r.AddStaticRoute(network, nextHop, out); err != nil {
			return nil, fmt.Errorf("device %q: route %q: %w", dc.Name, rc.Network, err)
		}
	}
	return r, nil
}

func (b *builder) host(dc *DeviceConfig) (*router.Host, error) {
	ifaces, err := l3Interfaces(dc)
	if err != nil {
		return nil, err
	}
	var gateway netip.Addr
	if dc.Gateway != "" {
		if gateway, err = netip.ParseAddr(dc.Gateway); err != nil || !gateway.Is4() {
			return nil, invalidf("device %q: invalid gateway %q", dc.Name, dc.Gateway)
		}
	}
	h := router.NewHost(dc.Name, gateway, ifaces...)
	h.Instrument(b.logger, b.collector)
	if err := setARP(dc, h.ARP()); err != nil {
		return nil, err
	}
	return h, nil
}

func l3Interfaces(dc *DeviceConfig) ([]*router.Interface, error) {
	var ifaces []*router.Interface
	for _, ic := range dc.Interfaces {
		mac, err := parseMAC(dc, &ic)
		if err != nil {
			return nil, err
		}
		prefix, err := netip.ParsePrefix(ic.Address)
		if err != nil || !prefix.Addr().Is4() {
			return nil, invalidf("device %q: interface %q: invalid address %q", dc.Name, ic.Name, ic.Address)
		}
		ifaces = append(ifaces, router.NewInterface(ic.Name, mac, prefix, l2Config(&ic)))
	}
	return ifaces, nil
}

func setARP(dc *DeviceConfig, arp *router.ARP) error {
	for _, ac := range dc.ARP {
		addr, err := netip.ParseAddr(ac.Address)
		if err != nil {
			return invalidf("device %q: invalid ARP address %q", dc.Name, ac.Address)
		}
		mac, err := net.ParseMAC(ac.MAC)
		if err != nil {
			return invalidf("device %q: invalid ARP MAC %q", dc.Name, ac.MAC)
		}
		arp.Set(addr, mac)
	}
	return nil
}

func (b *builder) processCable(pc *ProcessCableConfig) error {
	heartbeat, _ := parseDuration(pc.HeartbeatTimeout)
	poll, _ := parseDuration(pc.PollTimeout)
	cable, err := phy.NewProcessCable(phy.ProcessCableConfig{
		LocalPort:        pc.LocalPort,
		PeerPort:         pc.PeerPort,
		HeartbeatTimeout: heartbeat,
		PollTimeout:      poll,
		Logger:           b.logger,
	})
	if err != nil {
		return fmt.Errorf("process cable %s: %w", pc.End, err)
	}
	b.lab.pool.Add(cable)
	if err := cable.Plug(b.ends[pc.End]); err != nil {
		return fmt.Errorf("process cable %s: %w", pc.End, err)
	}
	b.lab.processCables = append(b.lab.processCables, cable)
	return nil
}

func parseMAC(dc *DeviceConfig, ic *InterfaceConfig) (net.HardwareAddr, error) {
	mac, err := ether.ParseMAC(ic.MAC)
	if err != nil {
		return nil, fmt.Errorf("device %q: interface %q: %w", dc.Name, ic.Name, err)
	}
	return mac, nil
}

func l1Config(ic *InterfaceConfig) phy.InterfaceConfig {
	return phy.InterfaceConfig{Bandwidth: ic.Bandwidth, MTU: ic.MTU}
}

func l2Config(ic *InterfaceConfig) ether.Config {
	return ether.Config{InterfaceConfig: l1Config(ic), Promiscuous: ic.Promiscuous}
}
