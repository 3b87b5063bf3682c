// SPDX-License-Identifier: GPL-3.0-or-later

package phy

import "time"

// MaxCapture is the number of messages kept by each capture ring.
const MaxCapture = 100

// Direction is the direction of a captured message.
type Direction string

const (
	// DirectionIn marks messages received by the interface.
	DirectionIn = Direction("in")

	// DirectionOut marks messages sent by the interface.
	DirectionOut = Direction("out")

	// DirectionAny matches both directions when searching captures.
	DirectionAny = Direction("")
)

// Capture is a message that crossed an [*Interface].
type Capture struct {
	// Time is when the message was accepted.
	Time time.Time

	// Direction is either [DirectionIn] or [DirectionOut].
	Direction Direction

	// Data is a private copy of the message bytes.
	Data []byte
}

// captureRing keeps the last [MaxCapture] captures.
//
// The zero value is ready to use. Not safe for concurrent use.
type captureRing struct {
	entries []Capture
}

func (r *captureRing) add(t time.Time, dir Direction, data []byte) {
	r.entries = append(r.entries, Capture{
		Time:      t,
		Direction: dir,
		Data:      append([]byte{}, data...),
	})
	if excess := len(r.entries) - MaxCapture; excess > 0 {
		r.entries = append([]Capture{}, r.entries[excess:]...)
	}
}

func (r *captureRing) snapshot() []Capture {
	out := make([]Capture, len(r.entries))
	copy(out, r.entries)
	return out
}

func (r *captureRing) find(dir Direction, match func(data []byte) bool) bool {
	for _, c := range r.entries {
		if dir != DirectionAny && dir != c.Direction {
			continue
		}
		if match(c.Data) {
			return true
		}
	}
	return false
}

func (r *captureRing) clear() {
	r.entries = nil
}

// ClearCaptures clears the capture ring of every interface of the
// given devices.
func ClearCaptures(devices ...*Device) {
	for _, dev := range devices {
		for _, iface := range dev.Interfaces() {
			iface.ClearCapture()
		}
	}
}
