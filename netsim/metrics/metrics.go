// SPDX-License-Identifier: GPL-3.0-or-later

// Package metrics contains the Prometheus instrumentation shared by the
// simulated devices.
//
// All the methods of [*Collector] are safe to call on a nil receiver, in
// which case they do nothing. This allows devices to carry an optional
// collector without checking for nil at every call site.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rbmk-project/common/runtimex"
)

// Forwarding decisions recorded by [*Collector.Decision].
const (
	// ActionForward means a frame or packet left through a single interface.
	ActionForward = "forward"

	// ActionFlood means a frame was flooded on every eligible port.
	ActionFlood = "flood"

	// ActionLocal means a frame or packet was addressed to the device itself.
	ActionLocal = "local"
)

// Collector bundles the Prometheus metrics emitted by the simulator.
//
// Construct using [New] or [MustNew].
type Collector struct {
	// Ticks counts the control loop iterations per device.
	Ticks *prometheus.CounterVec

	// TickDuration observes the time spent inside a tick body
	// (including waiting for the shared tick lock).
	TickDuration *prometheus.HistogramVec

	// Faults counts control loop faults per device.
	Faults *prometheus.CounterVec

	// Decisions counts forwarding decisions per device and action.
	Decisions *prometheus.CounterVec

	// Drops counts dropped frames and packets per device and reason.
	Drops *prometheus.CounterVec

	// CAMEntries is the current size of each switch CAM table.
	CAMEntries *prometheus.GaugeVec

	// RouteLookups counts route table lookups per device and result.
	RouteLookups *prometheus.CounterVec
}

// New registers the simulator metrics against the given registerer,
// defaulting to the global Prometheus registry when reg is nil.
//
// Registering twice against the same registry returns a collector
// sharing the already registered metrics.
func New(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	ticks, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "netlab_ticks_total",
		Help: "Total number of device control loop iterations.",
	}, []string{"device"}), "netlab_ticks_total")
	if err != nil {
		return nil, err
	}

	tickDuration, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "netlab_tick_duration_seconds",
		Help:    "Time spent executing a device tick, including waiting for the shared tick lock.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
	}, []string{"device"}), "netlab_tick_duration_seconds")
	if err != nil {
		return nil, err
	}

	faults, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "netlab_device_faults_total",
		Help: "Total number of device control loop faults.",
	}, []string{"device"}), "netlab_device_faults_total")
	if err != nil {
		return nil, err
	}

	decisions, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "netlab_forwarding_decisions_total",
		Help: "Total number of forwarding decisions, labeled by device and action.",
	}, []string{"device", "action"}), "netlab_forwarding_decisions_total")
	if err != nil {
		return nil, err
	}

	drops, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "netlab_drops_total",
		Help: "Total number of dropped frames and packets, labeled by device and reason.",
	}, []string{"device", "reason"}), "netlab_drops_total")
	if err != nil {
		return nil, err
	}

	camEntries, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "netlab_cam_entries",
		Help: "Current number of entries in a switch CAM table.",
	}, []string{"device"}), "netlab_cam_entries")
	if err != nil {
		return nil, err
	}

	lookups, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "netlab_route_lookups_total",
		Help: "Total number of route table lookups, labeled by device and result.",
	}, []string{"device", "result"}), "netlab_route_lookups_total")
	if err != nil {
		return nil, err
	}

	return &Collector{
		Ticks:        ticks,
		TickDuration: tickDuration,
		Faults:       faults,
		Decisions:    decisions,
		Drops:        drops,
		CAMEntries:   camEntries,
		RouteLookups: lookups,
	}, nil
}

// MustNew is like [New] but panics on error.
func MustNew(reg prometheus.Registerer) *Collector {
	return runtimex.Try1(New(reg))
}

// ObserveTick records a completed tick of the given device.
func (c *Collector) ObserveTick(device string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.Ticks.WithLabelValues(device).Inc()
	c.TickDuration.WithLabelValues(device).Observe(elapsed.Seconds())
}

// Fault records a control loop fault of the given device.
func (c *Collector) Fault(device string) {
	if c == nil {
		return
	}
	c.Faults.WithLabelValues(device).Inc()
}

// Decision records a forwarding decision. Use the Action constants.
func (c *Collector) Decision(device, action string) {
	if c == nil {
		return
	}
	c.Decisions.WithLabelValues(device, action).Inc()
}

// Drop records a dropped frame or packet.
func (c *Collector) Drop(device, reason string) {
	if c == nil {
		return
	}
	c.Drops.WithLabelValues(device, reason).Inc()
}

// SetCAMEntries sets the current CAM table size of a switch.
func (c *Collector) SetCAMEntries(device string, count int) {
	if c == nil {
		return
	}
	c.CAMEntries.WithLabelValues(device).Set(float64(count))
}

// RouteLookup records the result of a route table lookup.
func (c *Collector) RouteLookup(device string, hit bool) {
	if c == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.RouteLookups.WithLabelValues(device, result).Inc()
}

// register registers c, or returns the compatible collector already
// registered under the same descriptor.
func register[T prometheus.Collector](reg prometheus.Registerer, c T, name string) (T, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(T); ok {
			return existing, nil
		}
		err = fmt.Errorf("%s: already registered with a different type", name)
	}
	var zero T
	return zero, err
}
