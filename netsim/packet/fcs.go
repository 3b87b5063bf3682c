// SPDX-License-Identifier: GPL-3.0-or-later

package packet

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// AppendFCS returns a copy of the encoded frame followed by its
// CRC-32 frame check sequence.
func AppendFCS(frame []byte) []byte {
	out := make([]byte, len(frame), len(frame)+FCSSize)
	copy(out, frame)
	return binary.LittleEndian.AppendUint32(out, crc32.ChecksumIEEE(frame))
}

// StripFCS verifies and removes the frame check sequence.
//
// The returned error wraps [ErrMalformed] for data shorter than a
// header plus FCS and [ErrBadFCS] for a checksum mismatch.
func StripFCS(data []byte) ([]byte, error) {
	if len(data) < HeaderSize+FCSSize {
		return nil, fmt.Errorf("%w: %d bytes is too short for a frame", ErrMalformed, len(data))
	}
	body := data[:len(data)-FCSSize]
	if binary.LittleEndian.Uint32(data[len(body):]) != crc32.ChecksumIEEE(body) {
		return nil, ErrBadFCS
	}
	return body, nil
}
