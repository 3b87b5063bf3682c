// SPDX-License-Identifier: GPL-3.0-or-later

package phy

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rbmk-project/common/errclass"
	"github.com/rbmk-project/common/runtimex"
	"github.com/rbmk-project/netlab/netsim/metrics"
)

// DefaultTickInterval is the default [*Device] TickInterval.
const DefaultTickInterval = 100 * time.Millisecond

// ErrStepPanic wraps the value of a panic raised by a [Stepper].
var ErrStepPanic = errors.New("panic in device step")

// tickLock serializes the tick bodies of all the devices.
var tickLock sync.Mutex

// Stepper implements the behaviour of a [*Device].
type Stepper interface {
	// Step runs once per tick after the interfaces have been
	// negotiated and their links updated. Returning an error, or
	// panicking, stops the device and records the fault.
	Step() error
}

// StepperFunc adapts a function to the [Stepper] interface.
type StepperFunc func() error

// Step implements [Stepper].
func (fx StepperFunc) Step() error {
	return fx()
}

// Device is a simulated device running a periodic control loop.
//
// Each tick, under a lock shared by all devices, the loop negotiates
// every interface, updates every plugged link, and invokes the
// [Stepper]. A failing step stops the loop: interfaces are powered off
// and [*Device.Fault] returns the error until the next Start.
//
// Construct using [NewDevice]. Set the optional fields before Start.
type Device struct {
	// Logger is the optional structured logger. If nil, no
	// structured logs are emitted.
	Logger *slog.Logger

	// Metrics is the optional metrics collector.
	Metrics *metrics.Collector

	// TickInterval is the control loop period. If zero, we
	// use [DefaultTickInterval].
	TickInterval time.Duration

	ifaces  []*Interface
	name    string
	stepper Stepper

	// mu protects the fields below.
	mu       sync.Mutex
	done     chan struct{}
	fault    error
	running  bool
	stop     chan struct{}
	stopOnce *sync.Once
}

// NewDevice creates a new stopped [*Device] owning the given interfaces.
// A nil stepper creates a device that only drives its links.
//
// This function panics if an interface already belongs to another
// device or if two interfaces share the same name.
func NewDevice(name string, stepper Stepper, ifaces ...*Interface) *Device {
	if stepper == nil {
		stepper = StepperFunc(func() error { return nil })
	}
	names := make(map[string]bool)
	for _, iface := range ifaces {
		runtimex.Assert(!names[iface.Name()], "duplicate interface name")
		names[iface.Name()] = true
		runtimex.Assert(iface.adopt(name), "interface already belongs to a device")
	}
	return &Device{
		ifaces:  ifaces,
		name:    name,
		stepper: stepper,
	}
}

// Name returns the device name.
func (d *Device) Name() string {
	return d.name
}

// String implements [fmt.Stringer].
func (d *Device) String() string {
	return d.name
}

// Interfaces returns the device interfaces.
func (d *Device) Interfaces() []*Interface {
	return append([]*Interface{}, d.ifaces...)
}

// Interface returns the interface with the given name or nil.
func (d *Device) Interface(name string) *Interface {
	for _, iface := range d.ifaces {
		if iface.Name() == name {
			return iface
		}
	}
	return nil
}

// Powered returns whether the control loop is running.
func (d *Device) Powered() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Fault returns the error that stopped the control loop, if any.
func (d *Device) Fault() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fault
}

// Start powers on the interfaces and starts the control loop. It
// clears any previously recorded fault. Calling Start on a running
// device is a no-op.
func (d *Device) Start() {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	d.fault = nil
	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	d.stopOnce = &sync.Once{}
	stop, done := d.stop, d.done
	d.mu.Unlock()

	for _, iface := range d.ifaces {
		iface.SetPowered(true)
	}
	if d.Logger != nil {
		d.Logger.Info("deviceStart", slog.String("device", d.name))
	}
	go d.loop(stop, done)
}

// Shutdown stops the control loop, waits for it to exit, and powers off
// the interfaces. Calling Shutdown on a stopped device is a no-op.
func (d *Device) Shutdown() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	stop, done, once := d.stop, d.done, d.stopOnce
	d.mu.Unlock()

	once.Do(func() { close(stop) })
	<-done
	if d.Logger != nil {
		d.Logger.Info("deviceShutdown", slog.String("device", d.name))
	}
}

func (d *Device) loop(stop, done chan struct{}) {
	defer close(done)
	defer d.powerOff()

	interval := d.TickInterval
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := d.tick(); err != nil {
			d.crash(err)
			return
		}
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}

func (d *Device) tick() error {
	t0 := time.Now()
	tickLock.Lock()
	defer func() {
		tickLock.Unlock()
		d.Metrics.ObserveTick(d.name, time.Since(t0))
	}()
	for _, iface := range d.ifaces {
		d.negotiate(iface)
		if link := iface.Cable(); link != nil {
			link.Update()
		}
	}
	return d.step()
}

func (d *Device) step() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrStepPanic, r)
		}
	}()
	return d.stepper.Step()
}

func (d *Device) crash(err error) {
	d.mu.Lock()
	d.fault = err
	d.mu.Unlock()
	d.Metrics.Fault(d.name)
	if d.Logger != nil {
		d.Logger.Error(
			"deviceFault",
			slog.String("device", d.name),
			slog.Any("err", err),
			slog.String("errClass", errclass.New(err)),
		)
	}
}

// powerOff powers off and renegotiates the interfaces, then marks the
// device as stopped.
func (d *Device) powerOff() {
	tickLock.Lock()
	for _, iface := range d.ifaces {
		iface.SetPowered(false)
		d.negotiate(iface)
	}
	tickLock.Unlock()

	d.mu.Lock()
	d.running = false
	d.mu.Unlock()
}

func (d *Device) negotiate(iface *Interface) {
	if !iface.Negotiate() || d.Logger == nil {
		return
	}
	msg := "lineDown"
	if iface.LineStatus() == LineUp {
		msg = "lineUp"
	}
	d.Logger.Info(
		msg,
		slog.String("device", d.name),
		slog.String("interface", iface.Name()),
	)
}
