//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Ethernet frames with optional 802.1Q tags.
//

package packet

import (
	"bytes"
	"fmt"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// EtherType is the type of the frame payload.
type EtherType = layers.EthernetType

const (
	// EtherTypeIPv4 marks an IPv4 payload.
	EtherTypeIPv4 = layers.EthernetTypeIPv4

	// EtherTypeExperimental is the IEEE local experimental EtherType,
	// used for opaque simulator payloads.
	EtherTypeExperimental = EtherType(0x88b5)
)

const (
	// HeaderSize is the size of the Ethernet II header.
	HeaderSize = 14

	// TagSize is the size of an 802.1Q tag.
	TagSize = 4

	// FCSSize is the size of the frame check sequence trailer.
	FCSSize = 4

	// MinFrameSize is the minimum frame size before the FCS. Shorter
	// frames are zero-padded on encoding.
	MinFrameSize = 60

	// DefaultVLAN is the VLAN used when none is configured.
	DefaultVLAN = 1

	// MaxVLAN is the largest valid VLAN identifier.
	MaxVLAN = 4094
)

// Broadcast is the Ethernet broadcast address.
var Broadcast = net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// MaxFrameSize returns the largest wire size, including an 802.1Q tag
// and the FCS, acceptable for an interface with the given MTU.
func MaxFrameSize(mtu int) int {
	return mtu + HeaderSize + TagSize + FCSSize
}

// Frame is an Ethernet II frame.
type Frame struct {
	// Src is the source MAC address.
	Src net.HardwareAddr

	// Dst is the destination MAC address.
	Dst net.HardwareAddr

	// Tagged indicates whether the frame carries an 802.1Q tag.
	Tagged bool

	// VLAN is the VLAN identifier, meaningful only when Tagged is true.
	VLAN uint16

	// EtherType is the type of the payload.
	EtherType EtherType

	// Payload is the frame payload.
	Payload []byte
}

// NewFrame creates an untagged [*Frame]. The payload is copied.
func NewFrame(src, dst net.HardwareAddr, etype EtherType, payload []byte) *Frame {
	return &Frame{
		Src:       append(net.HardwareAddr{}, src...),
		Dst:       append(net.HardwareAddr{}, dst...),
		EtherType: etype,
		Payload:   append([]byte{}, payload...),
	}
}

// String returns the string representation of the frame.
func (f *Frame) String() string {
	if f.Tagged {
		return fmt.Sprintf("%s -> %s vlan=%d type=%s length=%d",
			f.Src, f.Dst, f.VLAN, f.EtherType, len(f.Payload))
	}
	return fmt.Sprintf("%s -> %s type=%s length=%d",
		f.Src, f.Dst, f.EtherType, len(f.Payload))
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	dup := NewFrame(f.Src, f.Dst, f.EtherType, f.Payload)
	dup.Tagged = f.Tagged
	dup.VLAN = f.VLAN
	return dup
}

// Tag returns a copy of the frame tagged with the given VLAN.
func (f *Frame) Tag(vlan uint16) *Frame {
	dup := f.Clone()
	dup.Tagged = true
	dup.VLAN = vlan
	return dup
}

// Untag returns a copy of the frame without the 802.1Q tag.
func (f *Frame) Untag() *Frame {
	dup := f.Clone()
	dup.Tagged = false
	dup.VLAN = 0
	return dup
}

// IsFor returns whether the frame destination is the given address.
func (f *Frame) IsFor(mac net.HardwareAddr) bool {
	return bytes.Equal(f.Dst, mac)
}

// Equal returns whether both frames carry the same headers and payload.
// A payload zero-padded to [MinFrameSize] by encoding equals the
// unpadded payload.
func (f *Frame) Equal(other *Frame) bool {
	if f == nil || other == nil {
		return f == other
	}
	if !bytes.Equal(f.Src, other.Src) || !bytes.Equal(f.Dst, other.Dst) ||
		f.Tagged != other.Tagged || f.EtherType != other.EtherType {
		return false
	}
	if f.Tagged && f.VLAN != other.VLAN {
		return false
	}
	return samePayload(f.Payload, other.Payload)
}

func samePayload(a, b []byte) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	if !bytes.Equal(a, b[:len(a)]) {
		return false
	}
	if len(a) == len(b) {
		return true
	}
	if len(b) > MinFrameSize-HeaderSize {
		return false
	}
	for _, v := range b[len(a):] {
		if v != 0 {
			return false
		}
	}
	return true
}

// Encode serializes the frame without the FCS trailer.
func (f *Frame) Encode() ([]byte, error) {
	eth := &layers.Ethernet{
		SrcMAC:       f.Src,
		DstMAC:       f.Dst,
		EthernetType: f.EtherType,
	}
	stack := []gopacket.SerializableLayer{eth}
	if f.Tagged {
		if f.VLAN > MaxVLAN {
			return nil, fmt.Errorf("%w: vlan %d out of range", ErrMalformed, f.VLAN)
		}
		eth.EthernetType = layers.EthernetTypeDot1Q
		stack = append(stack, &layers.Dot1Q{
			VLANIdentifier: f.VLAN,
			Type:           f.EtherType,
		})
	}
	stack = append(stack, gopacket.Payload(f.Payload))
	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true}, stack...); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformed, err.Error())
	}
	return append([]byte{}, buf.Bytes()...), nil
}

// DecodeFrame parses a frame without the FCS trailer.
//
// The returned error wraps [ErrMalformed] on failure.
func DecodeFrame(data []byte) (*Frame, error) {
	var eth layers.Ethernet
	if err := eth.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformed, err.Error())
	}
	frame := &Frame{
		Src:       append(net.HardwareAddr{}, eth.SrcMAC...),
		Dst:       append(net.HardwareAddr{}, eth.DstMAC...),
		EtherType: eth.EthernetType,
		Payload:   eth.Payload,
	}
	if eth.EthernetType == layers.EthernetTypeDot1Q {
		var tag layers.Dot1Q
		if err := tag.DecodeFromBytes(eth.Payload, gopacket.NilDecodeFeedback); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrMalformed, err.Error())
		}
		frame.Tagged = true
		frame.VLAN = tag.VLANIdentifier
		frame.EtherType = tag.Type
		frame.Payload = tag.Payload
	}
	frame.Payload = append([]byte{}, frame.Payload...)
	return frame, nil
}
