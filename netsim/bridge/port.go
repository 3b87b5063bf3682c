// SPDX-License-Identifier: GPL-3.0-or-later

package bridge

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"sync"

	"github.com/rbmk-project/netlab/netsim/ether"
	"github.com/rbmk-project/netlab/netsim/packet"
	"github.com/rbmk-project/netlab/netsim/phy"
)

// DropVLAN is the drop reason for frames a port cannot carry.
const DropVLAN = "vlan"

// Mode is the VLAN mode of a [*Port].
type Mode string

const (
	// ModeAccess carries a single VLAN using untagged frames.
	ModeAccess = Mode("access")

	// ModeTrunk carries many VLANs using tagged frames.
	ModeTrunk = Mode("trunk")
)

// TrunkConfig contains the trunk mode configuration.
type TrunkConfig struct {
	// AllowedVLANs lists the VLANs carried by the trunk. If nil,
	// the trunk carries every VLAN.
	AllowedVLANs []uint16

	// NativeVLAN is the VLAN of untagged frames. If zero, we use
	// [packet.DefaultVLAN].
	NativeVLAN uint16
}

func (cfg *TrunkConfig) validate() error {
	for _, vlan := range cfg.AllowedVLANs {
		if err := validateVLAN(vlan); err != nil {
			return err
		}
	}
	if cfg.NativeVLAN != 0 {
		return validateVLAN(cfg.NativeVLAN)
	}
	return nil
}

func validateVLAN(vlan uint16) error {
	if vlan < 1 || vlan > packet.MaxVLAN {
		return fmt.Errorf("%w: vlan %d out of range", phy.EINVAL, vlan)
	}
	return nil
}

// Port is a switch port. Ports are always promiscuous.
//
// The frames returned by [*Port.ReceiveFrame] and accepted by
// [*Port.SendFrame] are always tagged. The port translates them to and
// from what travels on the wire according to its mode. The capture ring
// records the wire bytes.
//
// Construct using [NewPort].
type Port struct {
	*ether.Interface

	// mu protects the fields below.
	mu    sync.Mutex
	mode  Mode
	trunk TrunkConfig
	vlan  uint16
}

// NewPort creates a new [*Port] in access mode for [packet.DefaultVLAN].
func NewPort(name string, mac net.HardwareAddr, config phy.InterfaceConfig) *Port {
	return &Port{
		Interface: ether.NewInterface(name, mac, ether.Config{
			InterfaceConfig: config,
			Promiscuous:     true,
		}),
		mode: ModeAccess,
		vlan: packet.DefaultVLAN,
	}
}

// SetAccess switches the port to access mode for the given VLAN.
func (p *Port) SetAccess(vlan uint16) error {
	if err := validateVLAN(vlan); err != nil {
		return err
	}
	p.mu.Lock()
	p.mode = ModeAccess
	p.vlan = vlan
	p.trunk = TrunkConfig{}
	p.mu.Unlock()
	p.logMode()
	return nil
}

// SetTrunk switches the port to trunk mode.
func (p *Port) SetTrunk(config TrunkConfig) error {
	if err := config.validate(); err != nil {
		return err
	}
	if config.NativeVLAN == 0 {
		config.NativeVLAN = packet.DefaultVLAN
	}
	if config.AllowedVLANs != nil {
		config.AllowedVLANs = slices.Clone(config.AllowedVLANs)
	}
	p.mu.Lock()
	p.mode = ModeTrunk
	p.vlan = 0
	p.trunk = config
	p.mu.Unlock()
	p.logMode()
	return nil
}

// Mode returns the port mode.
func (p *Port) Mode() Mode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode
}

// AccessVLAN returns the access VLAN, or zero for trunk ports.
func (p *Port) AccessVLAN() uint16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.vlan
}

// Trunk returns the trunk configuration, or the zero value for access ports.
func (p *Port) Trunk() TrunkConfig {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.trunk
	if out.AllowedVLANs != nil {
		out.AllowedVLANs = slices.Clone(out.AllowedVLANs)
	}
	return out
}

// Carries returns whether the port forwards frames of the given VLAN.
func (p *Port) Carries(vlan uint16) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.carries(vlan)
}

func (p *Port) carries(vlan uint16) bool {
	switch p.mode {
	case ModeAccess:
		return vlan == p.vlan
	default:
		return p.trunk.AllowedVLANs == nil || slices.Contains(p.trunk.AllowedVLANs, vlan)
	}
}

// ReceiveFrame returns the next frame tagged with its VLAN.
//
// Access ports tag untagged frames with their VLAN and drop tagged
// frames. Trunk ports tag untagged frames with the native VLAN and drop
// frames for VLANs they do not carry.
func (p *Port) ReceiveFrame() (*packet.Frame, bool) {
	frame, data, ok := p.ReadFrame()
	if !ok {
		return nil, false
	}
	tagged, err := p.ingress(frame)
	if err != nil {
		p.Drop(DropVLAN, err)
		return nil, false
	}
	p.Record(phy.DirectionIn, data)
	return tagged, true
}

func (p *Port) ingress(frame *packet.Frame) (*packet.Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.mode {
	case ModeAccess:
		if frame.Tagged {
			return nil, fmt.Errorf("tagged frame for vlan %d on access port", frame.VLAN)
		}
		return frame.Tag(p.vlan), nil
	default:
		if !frame.Tagged {
			frame = frame.Tag(p.trunk.NativeVLAN)
		}
		if !p.carries(frame.VLAN) {
			return nil, fmt.Errorf("vlan %d not allowed on trunk", frame.VLAN)
		}
		return frame, nil
	}
}

// SendFrame transmits a tagged frame.
//
// Access ports untag frames for their VLAN and drop the others. Trunk
// ports drop frames for VLANs they do not carry and untag frames for
// the native VLAN.
func (p *Port) SendFrame(frame *packet.Frame) bool {
	wire, err := p.egress(frame)
	if err != nil {
		p.Drop(DropVLAN, err)
		return false
	}
	return p.Interface.SendFrame(wire)
}

func (p *Port) egress(frame *packet.Frame) (*packet.Frame, error) {
	if !frame.Tagged {
		return nil, errors.New("untagged frame inside the switch")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.carries(frame.VLAN) {
		return nil, fmt.Errorf("vlan %d not carried by %s port", frame.VLAN, p.mode)
	}
	if p.mode == ModeAccess || frame.VLAN == p.trunk.NativeVLAN {
		return frame.Untag(), nil
	}
	return frame, nil
}

func (p *Port) logMode() {
	if p.Logger == nil {
		return
	}
	p.mu.Lock()
	mode, vlan, trunk := p.mode, p.vlan, p.trunk
	p.mu.Unlock()
	p.Logger.Info(
		"portMode",
		slog.String("device", p.Device()),
		slog.String("interface", p.Name()),
		slog.String("mode", string(mode)),
		slog.Int("vlan", int(vlan)),
		slog.Any("allowedVLANs", trunk.AllowedVLANs),
		slog.Int("nativeVLAN", int(trunk.NativeVLAN)),
	)
}
