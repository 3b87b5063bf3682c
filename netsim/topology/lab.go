// SPDX-License-Identifier: GPL-3.0-or-later

package topology

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/rbmk-project/common/runtimex"
	"github.com/rbmk-project/netlab/closepool"
	"github.com/rbmk-project/netlab/netsim/bridge"
	"github.com/rbmk-project/netlab/netsim/ether"
	"github.com/rbmk-project/netlab/netsim/metrics"
	"github.com/rbmk-project/netlab/netsim/phy"
	"github.com/rbmk-project/netlab/netsim/router"
)

// Lab is a set of devices built from a [*Config].
//
// Construct using [Build] or [MustBuild].
type Lab struct {
	logger        *slog.Logger
	devices       []*phy.Device
	nodes         map[string]any
	cables        []*phy.Cable
	processCables []*phy.ProcessCable
	pool          closepool.Pool
}

// Build creates the devices and cables described by cfg. Both logger
// and collector are optional.
//
// The devices are stopped. Use [*Lab.Start] to start them and
// [*Lab.Close] to release all the resources.
func Build(cfg *Config, logger *slog.Logger, collector *metrics.Collector) (*Lab, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	lab := &Lab{
		logger: logger,
		nodes:  make(map[string]any),
	}
	b := &builder{
		logger:    logger,
		collector: collector,
		lab:       lab,
		ends:      make(map[string]*phy.Interface),
	}
	if err := b.build(cfg); err != nil {
		return nil, errors.Join(err, lab.Close())
	}
	return lab, nil
}

// MustBuild is like [Build] but panics on error.
func MustBuild(cfg *Config, logger *slog.Logger, collector *metrics.Collector) *Lab {
	return runtimex.Try1(Build(cfg, logger, collector))
}

// Start starts every device.
func (lab *Lab) Start() {
	for _, dev := range lab.devices {
		dev.Start()
	}
	if lab.logger != nil {
		lab.logger.Info("labStart", slog.Int("devices", len(lab.devices)))
	}
}

// Close shuts the devices down and closes the process cables. The
// returned error joins the device faults and the close errors.
func (lab *Lab) Close() error {
	err := lab.pool.Close()
	if lab.logger != nil {
		lab.logger.Info("labClose", slog.Any("err", err))
	}
	return err
}

// Devices returns the devices in configuration order.
func (lab *Lab) Devices() []*phy.Device {
	return append([]*phy.Device{}, lab.devices...)
}

// Device returns the device with the given name or nil.
func (lab *Lab) Device(name string) *phy.Device {
	switch node := lab.nodes[name].(type) {
	case *phy.Device:
		return node
	case *ether.Device:
		return node.Device
	case *bridge.Switch:
		return node.Device
	case *router.Router:
		return node.Device
	case *router.Host:
		return node.Device
	default:
		return nil
	}
}

// Ether returns the [KindL2] device with the given name or nil.
func (lab *Lab) Ether(name string) *ether.Device {
	dev, _ := lab.nodes[name].(*ether.Device)
	return dev
}

// Switch returns the [KindSwitch] device with the given name or nil.
func (lab *Lab) Switch(name string) *bridge.Switch {
	sw, _ := lab.nodes[name].(*bridge.Switch)
	return sw
}

// Router returns the [KindRouter] device with the given name or nil.
func (lab *Lab) Router(name string) *router.Router {
	r, _ := lab.nodes[name].(*router.Router)
	return r
}

// Host returns the [KindHost] device with the given name or nil.
func (lab *Lab) Host(name string) *router.Host {
	h, _ := lab.nodes[name].(*router.Host)
	return h
}

// Cables returns the in-process cables.
func (lab *Lab) Cables() []*phy.Cable {
	return append([]*phy.Cable{}, lab.cables...)
}

// ProcessCables returns the process cables.
func (lab *Lab) ProcessCables() []*phy.ProcessCable {
	return append([]*phy.ProcessCable{}, lab.processCables...)
}

// WritePcaps writes the capture of every interface to dir as pcap files
// named "<device>_<interface>.pcap", creating dir if needed. Slashes in
// interface names become dashes.
func (lab *Lab) WritePcaps(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	var errv []error
	for _, dev := range lab.devices {
		for _, iface := range dev.Interfaces() {
			name := fmt.Sprintf("%s_%s.pcap", dev.Name(), strings.ReplaceAll(iface.Name(), "/", "-"))
			errv = append(errv, writePcap(filepath.Join(dir, name), iface.Capture()))
		}
	}
	err := errors.Join(errv...)
	if lab.logger != nil {
		lab.logger.Info("labPcaps", slog.String("dir", dir), slog.Any("err", err))
	}
	return err
}

func writePcap(path string, caps []phy.Capture) error {
	fp, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := phy.WritePcap(fp, caps); err != nil {
		fp.Close()
		return err
	}
	return fp.Close()
}
