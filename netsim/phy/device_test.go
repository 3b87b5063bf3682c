// SPDX-License-Identifier: GPL-3.0-or-later

package phy

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rbmk-project/netlab/netsim/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testTick    = 5 * time.Millisecond
	testWait    = 2 * time.Second
	testPollInt = 5 * time.Millisecond
)

func newTestDevice(name string, stepper Stepper, ifaces ...*Interface) *Device {
	dev := NewDevice(name, stepper, ifaces...)
	dev.TickInterval = testTick
	return dev
}

func TestDeviceLifecycle(t *testing.T) {
	t.Run("two devices converge to up/up", func(t *testing.T) {
		a := NewInterface("eth0", InterfaceConfig{})
		b := NewInterface("eth0", InterfaceConfig{})
		MustConnect(a, b)
		devA := newTestDevice("a", nil, a)
		devB := newTestDevice("b", nil, b)
		devA.Start()
		devB.Start()
		defer devA.Shutdown()
		defer devB.Shutdown()

		assert.True(t, devA.Powered())
		assert.True(t, a.Powered())
		require.Eventually(t, func() bool {
			return a.UpUp() && b.UpUp()
		}, testWait, testPollInt)

		devB.Shutdown()
		assert.False(t, devB.Powered())
		assert.False(t, b.Powered())
		assert.Equal(t, LineDown, b.LineStatus())
		require.Eventually(t, func() bool {
			return a.LineStatus() == LineDown
		}, testWait, testPollInt)

		devB.Start()
		require.Eventually(t, func() bool {
			return a.UpUp() && b.UpUp()
		}, testWait, testPollInt)
	})

	t.Run("start and shutdown are idempotent", func(t *testing.T) {
		dev := newTestDevice("d", nil, NewInterface("eth0", InterfaceConfig{}))
		dev.Shutdown()
		dev.Start()
		dev.Start()
		assert.True(t, dev.Powered())
		dev.Shutdown()
		dev.Shutdown()
		assert.False(t, dev.Powered())
		assert.NoError(t, dev.Fault())
	})

	t.Run("the stepper runs once per tick", func(t *testing.T) {
		var count atomic.Int64
		dev := newTestDevice("d", StepperFunc(func() error {
			count.Add(1)
			return nil
		}))
		dev.Start()
		require.Eventually(t, func() bool { return count.Load() >= 3 }, testWait, testPollInt)
		dev.Shutdown()
		stopped := count.Load()
		time.Sleep(5 * testTick)
		assert.Equal(t, stopped, count.Load())
	})
}

func TestDeviceFault(t *testing.T) {
	t.Run("an error stops the device until restart", func(t *testing.T) {
		expected := errors.New("mocked error")
		var fail atomic.Bool
		fail.Store(true)
		iface := NewInterface("eth0", InterfaceConfig{})
		reg := prometheus.NewRegistry()
		dev := newTestDevice("d", StepperFunc(func() error {
			if fail.Load() {
				return expected
			}
			return nil
		}), iface)
		dev.Metrics = metrics.MustNew(reg)

		dev.Start()
		require.Eventually(t, func() bool { return !dev.Powered() }, testWait, testPollInt)
		assert.ErrorIs(t, dev.Fault(), expected)
		assert.False(t, iface.Powered())
		assert.Equal(t, LineDown, iface.LineStatus())
		assert.Equal(t, 1.0, testutil.ToFloat64(dev.Metrics.Faults.WithLabelValues("d")))

		fail.Store(false)
		dev.Start()
		defer dev.Shutdown()
		assert.NoError(t, dev.Fault())
		assert.True(t, dev.Powered())
		assert.True(t, iface.Powered())
	})

	t.Run("a panic is captured as a fault", func(t *testing.T) {
		dev := newTestDevice("d", StepperFunc(func() error {
			panic("boom")
		}))
		dev.Start()
		require.Eventually(t, func() bool { return !dev.Powered() }, testWait, testPollInt)
		err := dev.Fault()
		assert.ErrorIs(t, err, ErrStepPanic)
		assert.ErrorContains(t, err, "boom")
	})

	t.Run("a faulty device brings its links down", func(t *testing.T) {
		a := NewInterface("eth0", InterfaceConfig{})
		b := NewInterface("eth0", InterfaceConfig{})
		MustConnect(a, b)
		var fail atomic.Bool
		devA := newTestDevice("a", StepperFunc(func() error {
			if fail.Load() {
				return errors.New("mocked error")
			}
			return nil
		}), a)
		devB := newTestDevice("b", nil, b)
		devA.Start()
		devB.Start()
		defer devA.Shutdown()
		defer devB.Shutdown()
		require.Eventually(t, func() bool { return b.UpUp() }, testWait, testPollInt)

		fail.Store(true)
		require.Eventually(t, func() bool {
			return !devA.Powered() && b.LineStatus() == LineDown
		}, testWait, testPollInt)
	})
}

func TestDeviceInterfaces(t *testing.T) {
	eth0 := NewInterface("eth0", InterfaceConfig{})
	eth1 := NewInterface("eth1", InterfaceConfig{})
	dev := NewDevice("d", nil, eth0, eth1)
	assert.Equal(t, "d", dev.Name())
	assert.Equal(t, "d", eth0.Device())
	assert.Same(t, eth1, dev.Interface("eth1"))
	assert.Nil(t, dev.Interface("eth2"))
	assert.Equal(t, []*Interface{eth0, eth1}, dev.Interfaces())

	t.Run("interfaces belong to a single device", func(t *testing.T) {
		assert.Panics(t, func() { NewDevice("other", nil, eth0) })
	})

	t.Run("interface names are unique", func(t *testing.T) {
		assert.Panics(t, func() {
			NewDevice("dup", nil, NewInterface("x", InterfaceConfig{}), NewInterface("x", InterfaceConfig{}))
		})
	})

	t.Run("clear captures", func(t *testing.T) {
		eth0.Record(DirectionIn, []byte("x"))
		eth1.Record(DirectionOut, []byte("y"))
		ClearCaptures(dev)
		assert.Empty(t, eth0.Capture())
		assert.Empty(t, eth1.Capture())
	})
}
