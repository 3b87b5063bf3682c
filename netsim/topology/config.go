// SPDX-License-Identifier: GPL-3.0-or-later

package topology

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rbmk-project/netlab/netsim/phy"
	"gopkg.in/yaml.v3"
)

// Device kinds.
const (
	// KindL1 is a [*phy.Device] doing nothing but negotiating links.
	KindL1 = "l1"

	// KindL2 is an [*ether.Device] logging the frames it receives.
	KindL2 = "l2"

	// KindSwitch is a [*bridge.Switch].
	KindSwitch = "switch"

	// KindRouter is a [*router.Router].
	KindRouter = "router"

	// KindHost is a [*router.Host].
	KindHost = "host"
)

// Config describes a lab.
type Config struct {
	// TickInterval is the default device tick (e.g., "100ms"). If
	// empty, we use [phy.DefaultTickInterval].
	TickInterval string `json:"tickInterval,omitempty" yaml:"tickInterval,omitempty"`

	// Log configures the logger built by [NewLogger].
	Log LogConfig `json:"log,omitempty" yaml:"log,omitempty"`

	// Devices lists the devices.
	Devices []DeviceConfig `json:"devices" yaml:"devices"`

	// Cables lists the in-process cables.
	Cables []CableConfig `json:"cables,omitempty" yaml:"cables,omitempty"`

	// ProcessCables lists the cables reaching another process.
	ProcessCables []ProcessCableConfig `json:"processCables,omitempty" yaml:"processCables,omitempty"`
}

// DeviceConfig describes a device.
type DeviceConfig struct {
	// Name is the unique device name.
	Name string `json:"name" yaml:"name"`

	// Kind is one of [KindL1], [KindL2], [KindSwitch], [KindRouter]
	// and [KindHost].
	Kind string `json:"kind" yaml:"kind"`

	// MAC is the switch MAC address. Only valid for switches.
	MAC string `json:"mac,omitempty" yaml:"mac,omitempty"`

	// Gateway is the host default gateway. Only valid for hosts.
	Gateway string `json:"gateway,omitempty" yaml:"gateway,omitempty"`

	// TickInterval overrides the lab tick interval.
	TickInterval string `json:"tickInterval,omitempty" yaml:"tickInterval,omitempty"`

	// CAMTimeout is the switch CAM timeout (e.g., "300s").
	CAMTimeout string `json:"camTimeout,omitempty" yaml:"camTimeout,omitempty"`

	// Interfaces lists the device interfaces.
	Interfaces []InterfaceConfig `json:"interfaces" yaml:"interfaces"`

	// ARP lists the static ARP entries of routers and hosts.
	ARP []ARPConfig `json:"arp,omitempty" yaml:"arp,omitempty"`

	// Routes lists the router static routes.
	Routes []RouteConfig `json:"routes,omitempty" yaml:"routes,omitempty"`
}

// InterfaceConfig describes an interface.
type InterfaceConfig struct {
	// Name is the interface name, unique within the device.
	Name string `json:"name" yaml:"name"`

	// MAC is the interface MAC address. Required by all the kinds
	// except [KindL1] and [KindSwitch].
	MAC string `json:"mac,omitempty" yaml:"mac,omitempty"`

	// Address is the IPv4 address with the network length (e.g.,
	// "10.0.0.1/24"). Required by routers and hosts.
	Address string `json:"address,omitempty" yaml:"address,omitempty"`

	// Bandwidth is the nominal bandwidth.
	Bandwidth int `json:"bandwidth,omitempty" yaml:"bandwidth,omitempty"`

	// MTU is the maximum transmission unit.
	MTU int `json:"mtu,omitempty" yaml:"mtu,omitempty"`

	// Promiscuous makes a layer 2 interface accept any destination.
	Promiscuous bool `json:"promiscuous,omitempty" yaml:"promiscuous,omitempty"`

	// Shutdown starts the interface administratively down.
	Shutdown bool `json:"shutdown,omitempty" yaml:"shutdown,omitempty"`

	// Mode is the switch port mode: "access" (the default) or "trunk".
	Mode string `json:"mode,omitempty" yaml:"mode,omitempty"`

	// VLAN is the access VLAN. If zero, we use the default VLAN.
	VLAN uint16 `json:"vlan,omitempty" yaml:"vlan,omitempty"`

	// AllowedVLANs lists the VLANs of a trunk. If empty, all of them.
	AllowedVLANs []uint16 `json:"allowedVLANs,omitempty" yaml:"allowedVLANs,omitempty"`

	// NativeVLAN is the trunk native VLAN.
	NativeVLAN uint16 `json:"nativeVLAN,omitempty" yaml:"nativeVLAN,omitempty"`
}

// ARPConfig is a static ARP entry.
type ARPConfig struct {
	Address string `json:"address" yaml:"address"`
	MAC     string `json:"mac" yaml:"mac"`
}

// RouteConfig is a static route. Exactly one of NextHop and Interface
// must be set.
type RouteConfig struct {
	Network   string `json:"network" yaml:"network"`
	NextHop   string `json:"nextHop,omitempty" yaml:"nextHop,omitempty"`
	Interface string `json:"interface,omitempty" yaml:"interface,omitempty"`
}

// CableConfig connects two interfaces named "device/interface".
type CableConfig struct {
	A string `json:"a" yaml:"a"`
	B string `json:"b" yaml:"b"`
}

// ProcessCableConfig plugs an interface named "device/interface" into
// a [*phy.ProcessCable].
type ProcessCableConfig struct {
	End              string `json:"end" yaml:"end"`
	LocalPort        uint16 `json:"localPort" yaml:"localPort"`
	PeerPort         uint16 `json:"peerPort" yaml:"peerPort"`
	HeartbeatTimeout string `json:"heartbeatTimeout,omitempty" yaml:"heartbeatTimeout,omitempty"`
	PollTimeout      string `json:"pollTimeout,omitempty" yaml:"pollTimeout,omitempty"`
}

// Load reads a [*Config] from a file. Files ending in ".json" are
// decoded as JSON and everything else as YAML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		var cfg Config
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("%w: %s: %s", phy.EINVAL, path, err.Error())
		}
		if err := cfg.validate(); err != nil {
			return nil, err
		}
		return &cfg, nil
	}
	return Parse(data)
}

// Parse decodes and validates a YAML [*Config].
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %s", phy.EINVAL, err.Error())
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate checks the structure of the configuration. Addresses and
// VLANs are checked while building.
func (cfg *Config) validate() error {
	if err := cfg.Log.validate(); err != nil {
		return err
	}
	if _, err := parseDuration(cfg.TickInterval); err != nil {
		return err
	}
	ends := make(map[string]bool)
	devices := make(map[string]bool)
	for _, dev := range cfg.Devices {
		if err := dev.validate(); err != nil {
			return err
		}
		if devices[dev.Name] {
			return invalidf("duplicate device %q", dev.Name)
		}
		devices[dev.Name] = true
		for _, iface := range dev.Interfaces {
			ends[dev.Name+"/"+iface.Name] = false
		}
	}

	plug := func(end string) error {
		used, found := ends[end]
		if !found {
			return invalidf("unknown interface %q", end)
		}
		if used {
			return invalidf("interface %q is cabled twice", end)
		}
		ends[end] = true
		return nil
	}
	for _, cable := range cfg.Cables {
		if err := plug(cable.A); err != nil {
			return err
		}
		if err := plug(cable.B); err != nil {
			return err
		}
	}
	for _, cable := range cfg.ProcessCables {
		if err := plug(cable.End); err != nil {
			return err
		}
		if cable.PeerPort == 0 {
			return invalidf("process cable %q needs a peer port", cable.End)
		}
		for _, value := range []string{cable.HeartbeatTimeout, cable.PollTimeout} {
			if _, err := parseDuration(value); err != nil {
				return err
			}
		}
	}
	return nil
}

func (dev *DeviceConfig) validate() error {
	if dev.Name == "" || strings.Contains(dev.Name, "/") {
		return invalidf("invalid device name %q", dev.Name)
	}
	switch dev.Kind {
	case KindL1, KindL2, KindSwitch, KindRouter, KindHost:
	default:
		return invalidf("device %q has unknown kind %q", dev.Name, dev.Kind)
	}
	if dev.MAC != "" && dev.Kind != KindSwitch {
		return invalidf("device %q: only switches have a MAC", dev.Name)
	}
	if dev.Gateway != "" && dev.Kind != KindHost {
		return invalidf("device %q: only hosts have a gateway", dev.Name)
	}
	if dev.CAMTimeout != "" && dev.Kind != KindSwitch {
		return invalidf("device %q: only switches have a CAM", dev.Name)
	}
	if len(dev.ARP) > 0 && dev.Kind != KindRouter && dev.Kind != KindHost {
		return invalidf("device %q: only routers and hosts have ARP entries", dev.Name)
	}
	if len(dev.Routes) > 0 && dev.Kind != KindRouter {
		return invalidf("device %q: only routers have static routes", dev.Name)
	}
	for _, value := range []string{dev.TickInterval, dev.CAMTimeout} {
		if _, err := parseDuration(value); err != nil {
			return err
		}
	}

	names := make(map[string]bool)
	for _, iface := range dev.Interfaces {
		if iface.Name == "" || strings.Contains(iface.Name, "/") {
			return invalidf("device %q: invalid interface name %q", dev.Name, iface.Name)
		}
		if names[iface.Name] {
			return invalidf("device %q: duplicate interface %q", dev.Name, iface.Name)
		}
		names[iface.Name] = true
		if iface.Bandwidth < 0 || iface.MTU < 0 {
			return invalidf("device %q: interface %q: negative bandwidth or MTU", dev.Name, iface.Name)
		}
		isSwitch := dev.Kind == KindSwitch
		if !isSwitch && (iface.Mode != "" || iface.VLAN != 0 || iface.NativeVLAN != 0 || len(iface.AllowedVLANs) > 0) {
			return invalidf("device %q: interface %q: only switch ports have VLANs", dev.Name, iface.Name)
		}
		isL3 := dev.Kind == KindRouter || dev.Kind == KindHost
		if isL3 != (iface.Address != "") {
			return invalidf("device %q: interface %q: addresses are required by and only valid for routers and hosts", dev.Name, iface.Name)
		}
	}
	return nil
}

func parseDuration(value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return 0, invalidf("invalid duration %q", value)
	}
	return d, nil
}

func invalidf(format string, v ...any) error {
	return fmt.Errorf("%w: %s", phy.EINVAL, fmt.Sprintf(format, v...))
}
