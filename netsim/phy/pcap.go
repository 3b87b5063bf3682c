// SPDX-License-Identifier: GPL-3.0-or-later

package phy

import (
	"io"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// PcapSnapLen is the snapshot length written in pcap file headers.
const PcapSnapLen = 65536

// WritePcap writes the captures to w as a pcap stream with Ethernet
// link type, one record per capture, in the given order.
//
// Capture timestamps are written with microsecond resolution.
func WritePcap(w io.Writer, caps []Capture) error {
	writer := pcapgo.NewWriter(w)
	if err := writer.WriteFileHeader(PcapSnapLen, layers.LinkTypeEthernet); err != nil {
		return err
	}
	for _, c := range caps {
		info := gopacket.CaptureInfo{
			Timestamp:     c.Time,
			CaptureLength: len(c.Data),
			Length:        len(c.Data),
		}
		if err := writer.WritePacket(info, c.Data); err != nil {
			return err
		}
	}
	return nil
}
