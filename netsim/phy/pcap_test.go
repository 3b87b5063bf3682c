// SPDX-License-Identifier: GPL-3.0-or-later

package phy

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestWritePcap(t *testing.T) {
	t.Run("captures survive a round trip", func(t *testing.T) {
		left, right, cable := wire(t)
		require.True(t, left.Send([]byte("first message")))
		require.True(t, left.Send([]byte("second")))
		cable.Update()
		for range 2 {
			_, ok := right.Receive()
			require.True(t, ok)
		}
		caps := right.Capture()
		require.Len(t, caps, 2)

		var buf bytes.Buffer
		require.NoError(t, WritePcap(&buf, caps))

		reader, err := pcapgo.NewReader(&buf)
		require.NoError(t, err)
		assert.Equal(t, layers.LinkTypeEthernet, reader.LinkType())
		for _, want := range caps {
			data, info, err := reader.ReadPacketData()
			require.NoError(t, err)
			assert.Equal(t, want.Data, data)
			assert.Equal(t, len(want.Data), info.Length)
			assert.True(t, want.Time.Truncate(time.Microsecond).Equal(info.Timestamp),
				"want %s got %s", want.Time, info.Timestamp)
		}
		_, _, err = reader.ReadPacketData()
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("an empty capture writes only the header", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WritePcap(&buf, nil))
		assert.Equal(t, 24, buf.Len())
	})

	t.Run("write errors are returned", func(t *testing.T) {
		assert.Error(t, WritePcap(failingWriter{}, nil))
	})
}
