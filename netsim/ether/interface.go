// SPDX-License-Identifier: GPL-3.0-or-later

package ether

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/rbmk-project/common/errclass"
	"github.com/rbmk-project/common/runtimex"
	"github.com/rbmk-project/netlab/netsim/metrics"
	"github.com/rbmk-project/netlab/netsim/packet"
	"github.com/rbmk-project/netlab/netsim/phy"
)

// Drop reasons used for logging and metrics.
const (
	DropMalformed   = "malformed"
	DropFCS         = "fcs"
	DropOversize    = "oversize"
	DropDestination = "destination"
	DropDown        = "down"
)

// ErrNotUnicast indicates a MAC address that cannot identify an interface.
var ErrNotUnicast = errors.New("not a unicast Ethernet address")

// ParseMAC parses a 6-byte unicast MAC address (e.g., "02:00:00:00:00:aa").
func ParseMAC(value string) (net.HardwareAddr, error) {
	mac, err := net.ParseMAC(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", phy.EINVAL, err.Error())
	}
	if len(mac) != 6 || mac[0]&0x01 != 0 {
		return nil, fmt.Errorf("%w: %w: %s", phy.EINVAL, ErrNotUnicast, value)
	}
	return mac, nil
}

// MustParseMAC is like [ParseMAC] but panics on error.
func MustParseMAC(value string) net.HardwareAddr {
	return runtimex.Try1(ParseMAC(value))
}

// Config contains the [*Interface] configuration.
type Config struct {
	// InterfaceConfig is the layer 1 configuration.
	phy.InterfaceConfig

	// Promiscuous causes the interface to accept frames for any
	// destination, broadcast included. A non-promiscuous interface
	// only accepts frames addressed to its own MAC.
	Promiscuous bool
}

// Interface is a layer 2 network port.
//
// Construct using [NewInterface].
type Interface struct {
	*phy.Interface

	// Logger is the optional structured logger. If nil, no
	// structured logs are emitted.
	Logger *slog.Logger

	// Metrics is the optional metrics collector.
	Metrics *metrics.Collector

	mac net.HardwareAddr

	// mu protects promiscuous.
	mu          sync.Mutex
	promiscuous bool
}

// NewInterface creates a new [*Interface] with the given MAC address.
func NewInterface(name string, mac net.HardwareAddr, config Config) *Interface {
	return &Interface{
		Interface:   phy.NewInterface(name, config.InterfaceConfig),
		mac:         append(net.HardwareAddr{}, mac...),
		promiscuous: config.Promiscuous,
	}
}

// String implements [fmt.Stringer].
func (iface *Interface) String() string {
	return fmt.Sprintf("%s (%s)", iface.Name(), iface.mac)
}

// HardwareAddr returns the interface MAC address.
func (iface *Interface) HardwareAddr() net.HardwareAddr {
	return append(net.HardwareAddr{}, iface.mac...)
}

// Promiscuous returns whether the interface accepts any destination.
func (iface *Interface) Promiscuous() bool {
	iface.mu.Lock()
	defer iface.mu.Unlock()
	return iface.promiscuous
}

// SetPromiscuous changes the promiscuous mode.
func (iface *Interface) SetPromiscuous(value bool) {
	iface.mu.Lock()
	iface.promiscuous = value
	iface.mu.Unlock()
}

// MaxFrameSize returns the largest acceptable wire size.
func (iface *Interface) MaxFrameSize() int {
	return packet.MaxFrameSize(iface.MTU())
}

// SendFrame transmits the frame and records it in the capture ring. It
// returns false when the frame is dropped.
func (iface *Interface) SendFrame(frame *packet.Frame) bool {
	data, ok := iface.WriteFrame(frame)
	if ok {
		iface.Record(phy.DirectionOut, data)
	}
	return ok
}

// ReceiveFrame returns the next acceptable frame and records it in the
// capture ring. Each call consumes at most one message. It returns false
// when nothing is pending or the message is dropped.
func (iface *Interface) ReceiveFrame() (*packet.Frame, bool) {
	frame, data, ok := iface.ReadFrame()
	if ok {
		iface.Record(phy.DirectionIn, data)
	}
	return frame, ok
}

// WriteFrame is like [*Interface.SendFrame] but does not capture. On
// success it also returns the encoded frame without the FCS.
func (iface *Interface) WriteFrame(frame *packet.Frame) ([]byte, bool) {
	data, err := frame.Encode()
	if err != nil {
		iface.Drop(DropMalformed, err)
		return nil, false
	}
	wire := packet.AppendFCS(data)
	if len(wire) > iface.MaxFrameSize() {
		iface.Drop(DropOversize, fmt.Errorf("%w: %d bytes", phy.EMSGSIZE, len(wire)))
		return nil, false
	}
	if !iface.Enqueue(wire) {
		iface.Drop(DropDown, phy.ENETDOWN)
		return nil, false
	}
	return data, true
}

// ReadFrame is like [*Interface.ReceiveFrame] but does not capture. On
// success it also returns the encoded frame without the FCS.
func (iface *Interface) ReadFrame() (*packet.Frame, []byte, bool) {
	wire, ok := iface.Dequeue()
	if !ok {
		return nil, nil, false
	}
	if len(wire) > iface.MaxFrameSize() {
		iface.Drop(DropOversize, fmt.Errorf("%w: %d bytes", phy.EMSGSIZE, len(wire)))
		return nil, nil, false
	}
	data, err := packet.StripFCS(wire)
	if err != nil {
		reason := DropMalformed
		if errors.Is(err, packet.ErrBadFCS) {
			reason = DropFCS
		}
		iface.Drop(reason, err)
		return nil, nil, false
	}
	frame, err := packet.DecodeFrame(data)
	if err != nil {
		iface.Drop(DropMalformed, err)
		return nil, nil, false
	}
	if !iface.Promiscuous() && !frame.IsFor(iface.mac) {
		iface.Drop(DropDestination, fmt.Errorf("frame for %s", frame.Dst))
		return nil, nil, false
	}
	return frame, data, true
}

// Drop logs and counts a dropped frame.
func (iface *Interface) Drop(reason string, err error) {
	device := iface.Device()
	iface.Metrics.Drop(device, reason)
	if iface.Logger != nil {
		iface.Logger.Debug(
			"frameDrop",
			slog.String("device", device),
			slog.String("interface", iface.Name()),
			slog.String("reason", reason),
			slog.Any("err", err),
			slog.String("errClass", errclass.New(err)),
		)
	}
}
