// SPDX-License-Identifier: GPL-3.0-or-later

package ether

import (
	"log/slog"

	"github.com/rbmk-project/netlab/netsim/metrics"
	"github.com/rbmk-project/netlab/netsim/phy"
)

// Device is a layer 2 device logging every frame it receives.
//
// Construct using [NewDevice].
type Device struct {
	*phy.Device
	ifaces []*Interface
}

// NewDevice creates a new stopped [*Device] owning the given interfaces.
func NewDevice(name string, ifaces ...*Interface) *Device {
	dev := &Device{ifaces: ifaces}
	l1 := make([]*phy.Interface, 0, len(ifaces))
	for _, iface := range ifaces {
		l1 = append(l1, iface.Interface)
	}
	dev.Device = phy.NewDevice(name, dev, l1...)
	return dev
}

// Ports returns the layer 2 interfaces.
func (d *Device) Ports() []*Interface {
	return append([]*Interface{}, d.ifaces...)
}

// Port returns the layer 2 interface with the given name or nil.
func (d *Device) Port(name string) *Interface {
	for _, iface := range d.ifaces {
		if iface.Name() == name {
			return iface
		}
	}
	return nil
}

// Instrument sets the logger and metrics of the device and its interfaces.
func (d *Device) Instrument(logger *slog.Logger, collector *metrics.Collector) {
	d.Logger, d.Metrics = logger, collector
	for _, iface := range d.ifaces {
		iface.Logger, iface.Metrics = logger, collector
	}
}

// Step implements [phy.Stepper].
func (d *Device) Step() error {
	for _, iface := range d.ifaces {
		frame, ok := iface.ReceiveFrame()
		if !ok {
			continue
		}
		d.Metrics.Decision(d.Name(), metrics.ActionLocal)
		if d.Logger != nil {
			d.Logger.Info(
				"frameReceive",
				slog.String("device", d.Name()),
				slog.String("interface", iface.Name()),
				slog.String("frame", frame.String()),
			)
		}
	}
	return nil
}
