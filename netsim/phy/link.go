// SPDX-License-Identifier: GPL-3.0-or-later

package phy

import (
	"log/slog"
	"sync"

	"github.com/rbmk-project/common/runtimex"
)

// Link is the medium an [*Interface] is plugged into.
//
// The [*Device] control loop calls Update once per tick for every
// plugged interface, after negotiating the interface status.
type Link interface {
	// Active returns the status computed by the last Update.
	Active() bool

	// Update recomputes whether the link is active and, when it is,
	// moves the queued data between the plugged interfaces.
	Update()
}

// Cable connects two interfaces within the same process.
//
// The zero value is ready to use but [NewCable] and [Connect] are
// more convenient.
type Cable struct {
	// Logger is the optional structured logger. If nil, no
	// structured logs are emitted.
	Logger *slog.Logger

	// mu protects active and ends.
	mu     sync.Mutex
	active bool
	ends   [2]*Interface
}

var _ Link = &Cable{}

// NewCable creates a new unplugged [*Cable].
func NewCable() *Cable {
	return &Cable{}
}

// Connect creates a [*Cable] and plugs the two interfaces into it.
func Connect(left, right *Interface) (*Cable, error) {
	cable := NewCable()
	if err := cable.Plug(left); err != nil {
		return nil, err
	}
	if err := cable.Plug(right); err != nil {
		_ = cable.Unplug(left)
		return nil, err
	}
	return cable, nil
}

// MustConnect is like [Connect] but panics on error.
func MustConnect(left, right *Interface) *Cable {
	return runtimex.Try1(Connect(left, right))
}

// Plug plugs an interface into a free end of the cable.
//
// The returned error wraps [ErrAlreadyCabled] if the interface already
// has a cable and [ErrCableFull] if both ends are taken.
func (c *Cable) Plug(iface *Interface) error {
	if err := iface.attach(c); err != nil {
		return err
	}

	c.mu.Lock()
	slot := -1
	for idx := range c.ends {
		if c.ends[idx] == nil {
			slot = idx
			break
		}
	}
	if slot >= 0 {
		c.ends[slot] = iface
	}
	c.mu.Unlock()

	if slot < 0 {
		iface.detach(c)
		return ErrCableFull
	}
	return nil
}

// Unplug removes an interface from the cable and immediately recomputes
// whether the cable is active.
//
// The returned error wraps [ErrNotPlugged] if the interface is not
// plugged into this cable.
func (c *Cable) Unplug(iface *Interface) error {
	c.mu.Lock()
	found := false
	for idx := range c.ends {
		if iface != nil && c.ends[idx] == iface {
			c.ends[idx] = nil
			found = true
		}
	}
	c.mu.Unlock()

	if !found {
		return ErrNotPlugged
	}
	iface.detach(c)
	c.Update()
	return nil
}

// Ends returns the plugged interfaces. Free ends are nil.
func (c *Cable) Ends() (*Interface, *Interface) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ends[0], c.ends[1]
}

// Active implements [Link].
func (c *Cable) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Update implements [Link].
//
// The cable is active when both ends are plugged and powered and neither
// is administratively down. An active cable moves every queued outbound
// message of each end to the receive queue of the other end.
func (c *Cable) Update() {
	left, right := c.Ends()
	active := left != nil && right != nil && left.eligible() && right.eligible()

	c.mu.Lock()
	c.active = active
	c.mu.Unlock()

	if !active {
		return
	}
	c.transfer(left, right)
	c.transfer(right, left)
}

func (c *Cable) transfer(src, dst *Interface) {
	msgs := src.takeOutbound()
	if len(msgs) <= 0 {
		return
	}
	dst.deliver(msgs...)
	if c.Logger != nil {
		c.Logger.Debug(
			"cableTransfer",
			slog.String("src", src.Name()),
			slog.String("dst", dst.Name()),
			slog.Int("count", len(msgs)),
		)
	}
}
