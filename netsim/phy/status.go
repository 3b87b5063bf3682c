// SPDX-License-Identifier: GPL-3.0-or-later

package phy

// LineStatus is the layer 1 status of an [*Interface].
type LineStatus string

const (
	// LineDown means there is no usable link.
	LineDown = LineStatus("down")

	// LineUp means the link is usable.
	LineUp = LineStatus("up")

	// LineAdminDown means the interface has been administratively disabled.
	LineAdminDown = LineStatus("admin down")
)

// ProtocolStatus is the layer 2 status of an [*Interface].
type ProtocolStatus string

const (
	// ProtocolDown means frames cannot be exchanged.
	ProtocolDown = ProtocolStatus("down")

	// ProtocolUp means frames can be exchanged.
	ProtocolUp = ProtocolStatus("up")
)

// Status is the combined status of an [*Interface].
type Status struct {
	Line     LineStatus
	Protocol ProtocolStatus
}

// String returns the usual line/protocol notation (e.g., "up/up").
func (s Status) String() string {
	return string(s.Line) + "/" + string(s.Protocol)
}

// UpUp returns whether both the line and the protocol are up.
func (s Status) UpUp() bool {
	return s.Line == LineUp && s.Protocol == ProtocolUp
}
