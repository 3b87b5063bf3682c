// SPDX-License-Identifier: GPL-3.0-or-later

package phy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCable(t *testing.T) {
	t.Run("a third end is rejected", func(t *testing.T) {
		a := NewInterface("a", InterfaceConfig{})
		b := NewInterface("b", InterfaceConfig{})
		c := NewInterface("c", InterfaceConfig{})
		cable := MustConnect(a, b)

		err := cable.Plug(c)
		assert.ErrorIs(t, err, ErrCableFull)
		assert.ErrorIs(t, err, EINVAL)
		assert.Nil(t, c.Cable())

		left, right := cable.Ends()
		assert.Same(t, a, left)
		assert.Same(t, b, right)
	})

	t.Run("an interface takes a single cable", func(t *testing.T) {
		a := NewInterface("a", InterfaceConfig{})
		b := NewInterface("b", InterfaceConfig{})
		MustConnect(a, b)

		other := NewCable()
		assert.ErrorIs(t, other.Plug(a), ErrAlreadyCabled)
		_, err := Connect(NewInterface("c", InterfaceConfig{}), b)
		assert.ErrorIs(t, err, ErrAlreadyCabled)
	})

	t.Run("connect rolls back on failure", func(t *testing.T) {
		a := NewInterface("a", InterfaceConfig{})
		b := NewInterface("b", InterfaceConfig{})
		c := NewInterface("c", InterfaceConfig{})
		MustConnect(b, c)
		_, err := Connect(a, b)
		require.Error(t, err)
		assert.Nil(t, a.Cable())
	})

	t.Run("unplug deactivates immediately", func(t *testing.T) {
		left, right, cable := wire(t)
		require.True(t, cable.Active())

		require.NoError(t, cable.Unplug(right))
		assert.False(t, cable.Active())
		assert.Nil(t, right.Cable())
		left.Negotiate()
		assert.Equal(t, LineDown, left.LineStatus())

		assert.ErrorIs(t, cable.Unplug(right), ErrNotPlugged)
		require.NoError(t, cable.Plug(right))
		settle(cable, left, right)
		assert.True(t, left.UpUp())
	})

	t.Run("inactive cables keep queued data", func(t *testing.T) {
		left, right, cable := wire(t)
		require.True(t, left.Send([]byte("later")))
		right.Shutdown()
		cable.Update()
		send, _ := left.Pending()
		assert.Equal(t, 1, send)

		right.NoShutdown()
		settle(cable, left, right)
		data, ok := right.Receive()
		require.True(t, ok)
		assert.Equal(t, []byte("later"), data)
	})
}
