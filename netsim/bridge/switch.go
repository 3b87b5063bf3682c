// SPDX-License-Identifier: GPL-3.0-or-later

package bridge

import (
	"log/slog"
	"net"
	"time"

	"github.com/rbmk-project/netlab/netsim/metrics"
	"github.com/rbmk-project/netlab/netsim/packet"
	"github.com/rbmk-project/netlab/netsim/phy"
)

// DropHairpin is the drop reason for frames whose destination was
// learned on the ingress port.
const DropHairpin = "hairpin"

// Switch is a learning switch.
//
// Construct using [NewSwitch]. Set the optional fields before Start.
type Switch struct {
	*phy.Device

	// CAMTimeout is the maximum age of a CAM entry. If zero, we
	// use [DefaultCAMTimeout].
	CAMTimeout time.Duration

	// TimeNow is the optional function to get the current time.
	// If nil, we use [time.Now].
	TimeNow func() time.Time

	cam   CAM
	mac   net.HardwareAddr
	ports []*Port
}

// NewSwitch creates a new stopped [*Switch] owning the given ports. The
// MAC address identifies the switch itself and is never a valid frame
// destination.
func NewSwitch(name string, mac net.HardwareAddr, ports ...*Port) *Switch {
	sw := &Switch{
		mac:   append(net.HardwareAddr{}, mac...),
		ports: ports,
	}
	ifaces := make([]*phy.Interface, 0, len(ports))
	for _, port := range ports {
		port.SetPromiscuous(true)
		ifaces = append(ifaces, port.Interface.Interface)
	}
	sw.Device = phy.NewDevice(name, sw, ifaces...)
	return sw
}

// String implements [fmt.Stringer].
func (sw *Switch) String() string {
	return sw.Name() + " (" + sw.mac.String() + ")"
}

// HardwareAddr returns the switch MAC address.
func (sw *Switch) HardwareAddr() net.HardwareAddr {
	return append(net.HardwareAddr{}, sw.mac...)
}

// Ports returns the switch ports.
func (sw *Switch) Ports() []*Port {
	return append([]*Port{}, sw.ports...)
}

// Port returns the port with the given name or nil.
func (sw *Switch) Port(name string) *Port {
	for _, port := range sw.ports {
		if port.Name() == name {
			return port
		}
	}
	return nil
}

// CAM returns the CAM table entries sorted by VLAN and then MAC.
func (sw *Switch) CAM() []CAMRecord {
	return sw.cam.Snapshot()
}

// Instrument sets the logger and metrics of the switch and its ports.
func (sw *Switch) Instrument(logger *slog.Logger, collector *metrics.Collector) {
	sw.Logger, sw.Metrics = logger, collector
	for _, port := range sw.ports {
		port.Logger, port.Metrics = logger, collector
	}
}

// Step implements [phy.Stepper].
//
// The step purges the expired CAM entries and then receives at most
// one frame from each port, learning its source and forwarding it.
func (sw *Switch) Step() error {
	now := sw.timeNow()
	for _, key := range sw.cam.Purge(now, sw.camTimeout()) {
		sw.logCAM("camExpire", key, nil)
	}

	for _, port := range sw.ports {
		frame, ok := port.ReceiveFrame()
		if !ok {
			continue
		}
		sw.forward(port, frame, now)
	}

	sw.Metrics.SetCAMEntries(sw.Name(), sw.cam.Len())
	return nil
}

func (sw *Switch) forward(ingress *Port, frame *packet.Frame, now time.Time) {
	if sw.isLocal(frame) {
		sw.Metrics.Decision(sw.Name(), metrics.ActionLocal)
		if sw.Logger != nil {
			sw.Logger.Info(
				"frameLocal",
				slog.String("device", sw.Name()),
				slog.String("interface", ingress.Name()),
				slog.String("frame", frame.String()),
			)
		}
		return
	}

	src := CAMKey{MAC: frame.Src.String(), VLAN: frame.VLAN}
	if sw.cam.Learn(src, ingress, now) {
		sw.logCAM("camLearn", src, ingress)
	}

	dst := CAMKey{MAC: frame.Dst.String(), VLAN: frame.VLAN}
	if egress, found := sw.cam.Lookup(dst); found {
		if egress == ingress {
			sw.Metrics.Drop(sw.Name(), DropHairpin)
			return
		}
		if egress.SendFrame(frame) {
			sw.Metrics.Decision(sw.Name(), metrics.ActionForward)
		}
		return
	}
	sw.flood(ingress, frame)
}

func (sw *Switch) flood(ingress *Port, frame *packet.Frame) {
	sw.Metrics.Decision(sw.Name(), metrics.ActionFlood)
	if sw.Logger != nil {
		sw.Logger.Debug(
			"frameFlood",
			slog.String("device", sw.Name()),
			slog.String("interface", ingress.Name()),
			slog.String("frame", frame.String()),
		)
	}
	for _, port := range sw.ports {
		if port == ingress || !port.UpUp() || !port.Carries(frame.VLAN) {
			continue
		}
		port.SendFrame(frame)
	}
}

func (sw *Switch) isLocal(frame *packet.Frame) bool {
	for _, port := range sw.ports {
		if frame.IsFor(port.HardwareAddr()) {
			return true
		}
	}
	return false
}

func (sw *Switch) logCAM(msg string, key CAMKey, port *Port) {
	if sw.Logger == nil {
		return
	}
	attrs := []any{
		slog.String("device", sw.Name()),
		slog.String("mac", key.MAC),
		slog.Int("vlan", int(key.VLAN)),
	}
	if port != nil {
		attrs = append(attrs, slog.String("interface", port.Name()))
	}
	sw.Logger.Info(msg, attrs...)
}

func (sw *Switch) camTimeout() time.Duration {
	if sw.CAMTimeout > 0 {
		return sw.CAMTimeout
	}
	return DefaultCAMTimeout
}

func (sw *Switch) timeNow() time.Time {
	if sw.TimeNow != nil {
		return sw.TimeNow()
	}
	return time.Now()
}
