// SPDX-License-Identifier: GPL-3.0-or-later

package phy

import (
	"bytes"
	"sync"
	"time"
)

const (
	// DefaultBandwidth is the default interface bandwidth.
	DefaultBandwidth = 1000

	// DefaultMTU is the default interface MTU.
	DefaultMTU = 1500
)

// InterfaceConfig contains the [*Interface] configuration.
//
// The zero value is ready to use and selects the defaults.
type InterfaceConfig struct {
	// Bandwidth is the nominal bandwidth. If zero, we use
	// [DefaultBandwidth].
	Bandwidth int

	// MTU is the maximum transmission unit. If zero, we use [DefaultMTU].
	MTU int
}

// Interface is a layer 1 network port.
//
// The send and receive methods only succeed when the interface is up/up.
// [*Interface.Send] and [*Interface.Receive] record the message in the
// capture ring. Wrappers adding higher layer semantics should use
// [*Interface.Enqueue] and [*Interface.Dequeue] instead, and call
// [*Interface.Record] with the bytes they actually accepted.
//
// Construct using [NewInterface].
type Interface struct {
	name      string
	bandwidth int
	mtu       int

	// mu protects all the fields below.
	mu sync.Mutex

	captures captureRing
	device   string
	link     Link
	line     LineStatus
	powered  bool
	protocol ProtocolStatus
	recvq    [][]byte
	sendq    [][]byte
}

// NewInterface creates a new unpowered [*Interface] with line and
// protocol status down.
func NewInterface(name string, config InterfaceConfig) *Interface {
	if config.Bandwidth <= 0 {
		config.Bandwidth = DefaultBandwidth
	}
	if config.MTU <= 0 {
		config.MTU = DefaultMTU
	}
	return &Interface{
		name:      name,
		bandwidth: config.Bandwidth,
		mtu:       config.MTU,
		line:      LineDown,
		protocol:  ProtocolDown,
	}
}

// Name returns the interface name.
func (iface *Interface) Name() string {
	return iface.name
}

// String implements [fmt.Stringer].
func (iface *Interface) String() string {
	return iface.name
}

// Bandwidth returns the interface bandwidth.
func (iface *Interface) Bandwidth() int {
	return iface.bandwidth
}

// MTU returns the interface MTU.
func (iface *Interface) MTU() int {
	return iface.mtu
}

// Device returns the name of the owning device, if any.
func (iface *Interface) Device() string {
	iface.mu.Lock()
	defer iface.mu.Unlock()
	return iface.device
}

// LineStatus returns the line status.
func (iface *Interface) LineStatus() LineStatus {
	iface.mu.Lock()
	defer iface.mu.Unlock()
	return iface.line
}

// ProtocolStatus returns the protocol status.
func (iface *Interface) ProtocolStatus() ProtocolStatus {
	iface.mu.Lock()
	defer iface.mu.Unlock()
	return iface.protocol
}

// Status returns the line and protocol status.
func (iface *Interface) Status() Status {
	iface.mu.Lock()
	defer iface.mu.Unlock()
	return Status{Line: iface.line, Protocol: iface.protocol}
}

// UpUp returns whether the interface can exchange data.
func (iface *Interface) UpUp() bool {
	return iface.Status().UpUp()
}

// Powered returns whether the interface is powered.
func (iface *Interface) Powered() bool {
	iface.mu.Lock()
	defer iface.mu.Unlock()
	return iface.powered
}

// SetPowered powers the interface on or off. The status changes at the
// next [*Interface.Negotiate].
func (iface *Interface) SetPowered(powered bool) {
	iface.mu.Lock()
	iface.powered = powered
	iface.mu.Unlock()
}

// Cable returns the link plugged into the interface or nil.
func (iface *Interface) Cable() Link {
	iface.mu.Lock()
	defer iface.mu.Unlock()
	return iface.link
}

// Shutdown administratively disables the interface.
func (iface *Interface) Shutdown() {
	iface.mu.Lock()
	iface.line = LineAdminDown
	iface.protocol = ProtocolDown
	iface.mu.Unlock()
}

// NoShutdown reverts [*Interface.Shutdown]. The interface is down until
// the next [*Interface.Negotiate] finds an active link.
func (iface *Interface) NoShutdown() {
	iface.mu.Lock()
	if iface.line == LineAdminDown {
		iface.line = LineDown
	}
	iface.mu.Unlock()
}

// Negotiate recomputes the line and protocol status from the power
// state and the plugged link. It returns whether the status changed.
//
// Negotiate is idempotent and does not hold the interface lock while
// querying the link.
func (iface *Interface) Negotiate() bool {
	iface.mu.Lock()
	link, powered := iface.link, iface.powered
	iface.mu.Unlock()

	next := LineDown
	if powered && link != nil && link.Active() {
		next = LineUp
	}

	iface.mu.Lock()
	defer iface.mu.Unlock()
	if iface.line == LineAdminDown {
		iface.protocol = ProtocolDown
		return false
	}
	changed := iface.line != next
	iface.line = next
	iface.protocol = ProtocolDown
	if next == LineUp {
		iface.protocol = ProtocolUp
	}
	return changed
}

// Send queues data for transmission and records it in the capture ring.
// It returns false, dropping the data, unless the interface is up/up.
func (iface *Interface) Send(data []byte) bool {
	if !iface.Enqueue(data) {
		return false
	}
	iface.Record(DirectionOut, data)
	return true
}

// Receive pops the oldest received message and records it in the
// capture ring. It returns false unless the interface is up/up and has
// pending data.
func (iface *Interface) Receive() ([]byte, bool) {
	data, ok := iface.Dequeue()
	if ok {
		iface.Record(DirectionIn, data)
	}
	return data, ok
}

// Enqueue is like [*Interface.Send] without capturing.
func (iface *Interface) Enqueue(data []byte) bool {
	iface.mu.Lock()
	defer iface.mu.Unlock()
	if iface.line != LineUp || iface.protocol != ProtocolUp {
		return false
	}
	iface.sendq = append(iface.sendq, append([]byte{}, data...))
	return true
}

// Dequeue is like [*Interface.Receive] without capturing.
func (iface *Interface) Dequeue() ([]byte, bool) {
	iface.mu.Lock()
	defer iface.mu.Unlock()
	if iface.line != LineUp || iface.protocol != ProtocolUp || len(iface.recvq) <= 0 {
		return nil, false
	}
	data := iface.recvq[0]
	iface.recvq[0] = nil
	iface.recvq = iface.recvq[1:]
	return data, true
}

// Record appends a copy of data to the capture ring.
func (iface *Interface) Record(dir Direction, data []byte) {
	now := time.Now()
	iface.mu.Lock()
	iface.captures.add(now, dir, data)
	iface.mu.Unlock()
}

// Capture returns a copy of the capture ring, oldest first.
func (iface *Interface) Capture() []Capture {
	iface.mu.Lock()
	defer iface.mu.Unlock()
	return iface.captures.snapshot()
}

// ClearCapture empties the capture ring.
func (iface *Interface) ClearCapture() {
	iface.mu.Lock()
	iface.captures.clear()
	iface.mu.Unlock()
}

// Captured returns whether exactly data was captured in the given
// direction. Use [DirectionAny] to match both directions.
func (iface *Interface) Captured(data []byte, dir Direction) bool {
	return iface.CapturedFunc(dir, func(captured []byte) bool {
		return bytes.Equal(captured, data)
	})
}

// CapturedFunc returns whether match accepts a message captured in the
// given direction. The match function must not retain the bytes nor call
// methods of the interface.
func (iface *Interface) CapturedFunc(dir Direction, match func(data []byte) bool) bool {
	iface.mu.Lock()
	defer iface.mu.Unlock()
	return iface.captures.find(dir, match)
}

// Pending returns the number of messages in the send and receive queues.
func (iface *Interface) Pending() (send, recv int) {
	iface.mu.Lock()
	defer iface.mu.Unlock()
	return len(iface.sendq), len(iface.recvq)
}

// eligible returns whether the interface can take part in an active link.
func (iface *Interface) eligible() bool {
	iface.mu.Lock()
	defer iface.mu.Unlock()
	return iface.powered && iface.line != LineAdminDown
}

// takeOutbound drains the send queue.
func (iface *Interface) takeOutbound() [][]byte {
	iface.mu.Lock()
	defer iface.mu.Unlock()
	out := iface.sendq
	iface.sendq = nil
	return out
}

// deliver appends messages to the receive queue.
func (iface *Interface) deliver(msgs ...[]byte) {
	if len(msgs) <= 0 {
		return
	}
	iface.mu.Lock()
	iface.recvq = append(iface.recvq, msgs...)
	iface.mu.Unlock()
}

// attach records the link the interface is plugged into.
func (iface *Interface) attach(link Link) error {
	iface.mu.Lock()
	defer iface.mu.Unlock()
	if iface.link != nil {
		return ErrAlreadyCabled
	}
	iface.link = link
	return nil
}

// detach forgets the link the interface is plugged into.
func (iface *Interface) detach(link Link) {
	iface.mu.Lock()
	if iface.link == link {
		iface.link = nil
	}
	iface.mu.Unlock()
}

// adopt records the owning device, returning false if already owned.
func (iface *Interface) adopt(device string) bool {
	iface.mu.Lock()
	defer iface.mu.Unlock()
	if iface.device != "" {
		return false
	}
	iface.device = device
	return true
}
