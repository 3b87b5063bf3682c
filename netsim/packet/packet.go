// SPDX-License-Identifier: GPL-3.0-or-later

package packet

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"net/netip"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// IPProtocol is the protocol number of an IP packet.
type IPProtocol uint8

// String returns the string representation of the IP protocol.
func (p IPProtocol) String() string {
	switch p {
	case IPProtocolICMP:
		return "icmp"

	case IPProtocolTCP:
		return "tcp"

	case IPProtocolUDP:
		return "udp"

	case IPProtocolExperimental:
		return "experimental"

	default:
		return "unknown"
	}
}

const (
	// IPProtocolICMP is the ICMP protocol number.
	IPProtocolICMP = 1

	// IPProtocolTCP is the TCP protocol number.
	IPProtocolTCP = 6

	// IPProtocolUDP is the UDP protocol number.
	IPProtocolUDP = 17

	// IPProtocolExperimental is the protocol number reserved by RFC 3692
	// for experimentation, used for opaque simulator payloads.
	IPProtocolExperimental = 253
)

// DefaultTTL is the TTL used by [NewPacket].
const DefaultTTL = 64

var (
	// ErrMalformed indicates bytes that cannot be decoded.
	ErrMalformed = errors.New("malformed packet")

	// ErrBadFCS indicates a frame whose check sequence does not match.
	ErrBadFCS = errors.New("frame check sequence mismatch")
)

// Packet is an IPv4 packet.
type Packet struct {
	// SrcAddr is the source address.
	SrcAddr netip.Addr

	// DstAddr is the destination address.
	DstAddr netip.Addr

	// IPProtocol is the protocol number.
	IPProtocol IPProtocol

	// TTL is the time to live.
	TTL uint8

	// Payload is the packet payload.
	Payload []byte
}

// NewPacket creates a [*Packet] carrying an opaque payload using
// [IPProtocolExperimental] and [DefaultTTL]. The payload is copied.
func NewPacket(src, dst netip.Addr, payload []byte) *Packet {
	return &Packet{
		SrcAddr:    src,
		DstAddr:    dst,
		IPProtocol: IPProtocolExperimental,
		TTL:        DefaultTTL,
		Payload:    append([]byte{}, payload...),
	}
}

// String returns the string representation of the packet.
func (p *Packet) String() string {
	return fmt.Sprintf(
		"%s -> %s %s ttl=%d length=%d",
		p.SrcAddr,
		p.DstAddr,
		p.IPProtocol.String(),
		p.TTL,
		len(p.Payload),
	)
}

// Clone returns a deep copy of the packet.
func (p *Packet) Clone() *Packet {
	dup := *p
	dup.Payload = append([]byte{}, p.Payload...)
	return &dup
}

// Equal returns whether both packets have the same addresses, protocol,
// TTL and payload.
func (p *Packet) Equal(other *Packet) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.SrcAddr == other.SrcAddr &&
		p.DstAddr == other.DstAddr &&
		p.IPProtocol == other.IPProtocol &&
		p.TTL == other.TTL &&
		bytes.Equal(p.Payload, other.Payload)
}

// Encode serializes the packet as an IPv4 header followed by the
// payload, computing lengths and the header checksum.
func (p *Packet) Encode() ([]byte, error) {
	if !p.SrcAddr.Is4() || !p.DstAddr.Is4() {
		return nil, fmt.Errorf("%w: %s -> %s is not IPv4", ErrMalformed, p.SrcAddr, p.DstAddr)
	}
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      p.TTL,
		Protocol: layers.IPProtocol(p.IPProtocol),
		SrcIP:    net.IP(p.SrcAddr.AsSlice()),
		DstIP:    net.IP(p.DstAddr.AsSlice()),
	}
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, ip, gopacket.Payload(p.Payload)); err != nil {
		return nil, err
	}
	return append([]byte{}, buf.Bytes()...), nil
}

// DecodePacket parses an IPv4 packet. Trailing bytes beyond the length
// declared in the header (e.g., Ethernet padding) are ignored.
//
// The returned error wraps [ErrMalformed] on failure.
func DecodePacket(data []byte) (*Packet, error) {
	var ip layers.IPv4
	if err := ip.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformed, err.Error())
	}
	if ip.Version != 4 {
		return nil, fmt.Errorf("%w: IP version %d", ErrMalformed, ip.Version)
	}
	src, ok := netip.AddrFromSlice(ip.SrcIP)
	if !ok {
		return nil, fmt.Errorf("%w: invalid source address", ErrMalformed)
	}
	dst, ok := netip.AddrFromSlice(ip.DstIP)
	if !ok {
		return nil, fmt.Errorf("%w: invalid destination address", ErrMalformed)
	}
	return &Packet{
		SrcAddr:    src.Unmap(),
		DstAddr:    dst.Unmap(),
		IPProtocol: IPProtocol(ip.Protocol),
		TTL:        ip.TTL,
		Payload:    append([]byte{}, ip.Payload...),
	}, nil
}
