// SPDX-License-Identifier: GPL-3.0-or-later

package router

import (
	"net/netip"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rbmk-project/netlab/netsim/ether"
	"github.com/rbmk-project/netlab/netsim/metrics"
	"github.com/rbmk-project/netlab/netsim/packet"
	"github.com/rbmk-project/netlab/netsim/phy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testTick    = 5 * time.Millisecond
	testWait    = 2 * time.Second
	testPollInt = 5 * time.Millisecond
)

// lab is two hosts on different networks joined by a router:
//
//	a (10.0.1.10/24) -- (10.0.1.1/24) r (10.0.2.1/24) -- (10.0.2.10/24) b
type lab struct {
	a, b    *Host
	r       *Router
	metrics *metrics.Collector
}

func newLab() *lab {
	aEth := newTestInterface("eth0", "02:00:00:00:01:0a", "10.0.1.10/24")
	bEth := newTestInterface("eth0", "02:00:00:00:02:0b", "10.0.2.10/24")
	rEth0 := newTestInterface("eth0", "02:00:00:00:01:01", "10.0.1.1/24")
	rEth1 := newTestInterface("eth1", "02:00:00:00:02:01", "10.0.2.1/24")
	phy.MustConnect(aEth.Interface.Interface, rEth0.Interface.Interface)
	phy.MustConnect(bEth.Interface.Interface, rEth1.Interface.Interface)

	l := &lab{
		a:       NewHost("a", netip.MustParseAddr("10.0.1.1"), aEth),
		b:       NewHost("b", netip.MustParseAddr("10.0.2.1"), bEth),
		r:       NewRouter("r", rEth0, rEth1),
		metrics: metrics.MustNew(prometheus.NewRegistry()),
	}
	l.a.ARP().Set(rEth0.Addr(), rEth0.HardwareAddr())
	l.b.ARP().Set(rEth1.Addr(), rEth1.HardwareAddr())
	l.r.ARP().Set(aEth.Addr(), aEth.HardwareAddr())
	l.r.ARP().Set(bEth.Addr(), bEth.HardwareAddr())
	for _, dev := range []*phy.Device{l.a.Device, l.b.Device, l.r.Device} {
		dev.TickInterval = testTick
	}
	l.a.Instrument(nil, l.metrics)
	l.b.Instrument(nil, l.metrics)
	l.r.Instrument(nil, l.metrics)
	return l
}

func (l *lab) start(t *testing.T) {
	t.Helper()
	for _, dev := range []*phy.Device{l.a.Device, l.b.Device, l.r.Device} {
		dev.Start()
		t.Cleanup(dev.Shutdown)
	}
	require.Eventually(t, func() bool {
		return l.a.Port("eth0").UpUp() && l.b.Port("eth0").UpUp()
	}, testWait, testPollInt)
}

func TestNewRouter(t *testing.T) {
	l := newLab()
	routes := l.r.RouteTable().Routes()
	require.Len(t, routes, 2)
	assert.Equal(t, "10.0.1.0/24 dev eth0 ad 0 metric 0", routes[0].String())
	assert.Equal(t, "10.0.2.0/24 dev eth1 ad 0 metric 0", routes[1].String())
	assert.Len(t, l.r.Ports(), 2)
	assert.Nil(t, l.r.Port("eth9"))
	assert.Equal(t, "eth0 (02:00:00:00:01:01) (10.0.1.1/24)", l.r.Port("eth0").String())
}

func TestNewHost(t *testing.T) {
	l := newLab()
	assert.Equal(t, netip.MustParseAddr("10.0.1.1"), l.a.Gateway())
	routes := l.a.RouteTable().Routes()
	require.Len(t, routes, 2)
	assert.Equal(t, "0.0.0.0/0 via 10.0.1.1 dev eth0 ad 1 metric 0", routes[1].String())

	t.Run("no default route for an off-link gateway", func(t *testing.T) {
		h := NewHost("h", netip.MustParseAddr("192.168.1.1"), newTestInterface("eth0", "02:00:00:00:00:01", "10.0.0.1/24"))
		assert.Equal(t, 1, h.RouteTable().Len())
	})
}

func TestRouterStaticRoutes(t *testing.T) {
	network := netip.MustParsePrefix("172.16.0.0/16")

	t.Run("next hop on a connected network", func(t *testing.T) {
		l := newLab()
		installed, err := l.r.AddStaticRoute(network, netip.MustParseAddr("10.0.2.20"), nil)
		require.NoError(t, err)
		assert.True(t, installed)
		route, err := l.r.RouteTable().Lookup(netip.MustParseAddr("172.16.3.4"))
		require.NoError(t, err)
		assert.Same(t, l.r.Port("eth1"), route.Interface)
		assert.Equal(t, netip.MustParseAddr("10.0.2.20"), route.NextHop)
	})

	t.Run("out interface", func(t *testing.T) {
		l := newLab()
		assert.True(t, l.r.MustAddStaticRoute(network, netip.Addr{}, l.r.Port("eth0")))
		route, err := l.r.RouteTable().Lookup(netip.MustParseAddr("172.16.3.4"))
		require.NoError(t, err)
		assert.False(t, route.NextHop.IsValid())
	})

	t.Run("connected routes win", func(t *testing.T) {
		l := newLab()
		installed, err := l.r.AddStaticRoute(netip.MustParsePrefix("10.0.1.0/24"), netip.MustParseAddr("10.0.2.20"), nil)
		require.NoError(t, err)
		assert.False(t, installed)
	})

	t.Run("invalid arguments", func(t *testing.T) {
		l := newLab()
		foreign := newTestInterface("eth0", "02:00:00:00:00:99", "10.0.9.1/24")
		cases := map[string]func() (bool, error){
			"neither": func() (bool, error) { return l.r.AddStaticRoute(network, netip.Addr{}, nil) },
			"both": func() (bool, error) {
				return l.r.AddStaticRoute(network, netip.MustParseAddr("10.0.2.20"), l.r.Port("eth1"))
			},
			"local next hop": func() (bool, error) {
				return l.r.AddStaticRoute(network, netip.MustParseAddr("10.0.2.1"), nil)
			},
			"unreachable next hop": func() (bool, error) {
				return l.r.AddStaticRoute(network, netip.MustParseAddr("192.168.0.1"), nil)
			},
			"foreign interface": func() (bool, error) { return l.r.AddStaticRoute(network, netip.Addr{}, foreign) },
			"invalid network": func() (bool, error) {
				return l.r.AddStaticRoute(netip.Prefix{}, netip.MustParseAddr("10.0.2.20"), nil)
			},
		}
		for name, fx := range cases {
			t.Run(name, func(t *testing.T) {
				installed, err := fx()
				assert.False(t, installed)
				assert.ErrorIs(t, err, phy.EINVAL)
			})
		}
		assert.Equal(t, 2, l.r.RouteTable().Len())
		assert.Panics(t, func() { l.r.MustAddStaticRoute(network, netip.Addr{}, nil) })
	})
}

func TestRouterForwarding(t *testing.T) {
	l := newLab()
	l.start(t)

	t.Run("packets cross the router", func(t *testing.T) {
		pkt := packet.NewPacket(netip.Addr{}, l.b.Port("eth0").Addr(), []byte("hello"))
		require.NoError(t, l.a.Send(pkt))
		require.Eventually(t, func() bool { return len(l.b.Received()) == 1 }, testWait, testPollInt)
		got := l.b.Received()[0]
		assert.Equal(t, netip.MustParseAddr("10.0.1.10"), got.SrcAddr)
		assert.Equal(t, uint8(packet.DefaultTTL-1), got.TTL)
		assert.Equal(t, []byte("hello"), got.Payload)
		assert.Equal(t, 1.0, testutil.ToFloat64(l.metrics.Decisions.WithLabelValues("r", metrics.ActionForward)))
		assert.False(t, pkt.SrcAddr.IsValid())

		sent := pkt.Clone()
		sent.SrcAddr = netip.MustParseAddr("10.0.1.10")
		forwarded := got.Clone()
		assert.True(t, l.a.Port("eth0").CapturedPacket(sent, phy.DirectionOut))
		assert.True(t, l.r.Port("eth0").CapturedPacket(sent, phy.DirectionIn))
		assert.True(t, l.r.Port("eth1").CapturedPacket(forwarded, phy.DirectionOut))
		assert.True(t, l.b.Port("eth0").CapturedPacket(forwarded, phy.DirectionIn))
		assert.False(t, l.r.Port("eth1").CapturedPacket(sent, phy.DirectionOut))
	})

	t.Run("packets for the router are consumed", func(t *testing.T) {
		require.NoError(t, l.a.Send(packet.NewPacket(netip.Addr{}, netip.MustParseAddr("10.0.2.1"), nil)))
		require.Eventually(t, func() bool {
			return testutil.ToFloat64(l.metrics.Decisions.WithLabelValues("r", metrics.ActionLocal)) == 1
		}, testWait, testPollInt)
	})

	t.Run("expiring packets are dropped", func(t *testing.T) {
		pkt := packet.NewPacket(netip.Addr{}, l.b.Port("eth0").Addr(), nil)
		pkt.TTL = 1
		require.NoError(t, l.a.Send(pkt))
		require.Eventually(t, func() bool {
			return testutil.ToFloat64(l.metrics.Drops.WithLabelValues("r", DropTTL)) == 1
		}, testWait, testPollInt)
	})

	t.Run("packets without a route are dropped", func(t *testing.T) {
		require.NoError(t, l.a.Send(packet.NewPacket(netip.Addr{}, netip.MustParseAddr("8.8.8.8"), nil)))
		require.Eventually(t, func() bool {
			return testutil.ToFloat64(l.metrics.Drops.WithLabelValues("r", DropNoRoute)) == 1
		}, testWait, testPollInt)
		assert.Equal(t, 1.0, testutil.ToFloat64(l.metrics.RouteLookups.WithLabelValues("r", "miss")))
	})

	t.Run("packets without an ARP entry are dropped", func(t *testing.T) {
		require.NoError(t, l.a.Send(packet.NewPacket(netip.Addr{}, netip.MustParseAddr("10.0.2.99"), nil)))
		require.Eventually(t, func() bool {
			return testutil.ToFloat64(l.metrics.Drops.WithLabelValues("r", DropARP)) == 1
		}, testWait, testPollInt)
	})

	t.Run("hosts drop packets for other addresses", func(t *testing.T) {
		require.NoError(t, l.r.Port("eth1").SendPacket(
			packet.NewPacket(netip.MustParseAddr("10.0.2.1"), netip.MustParseAddr("10.0.2.77"), nil),
			l.b.Port("eth0").HardwareAddr(),
		))
		require.Eventually(t, func() bool {
			return testutil.ToFloat64(l.metrics.Drops.WithLabelValues("b", ether.DropDestination)) == 1
		}, testWait, testPollInt)
		assert.Len(t, l.b.Received(), 1)
	})
}

func TestHostSendErrors(t *testing.T) {
	t.Run("no route", func(t *testing.T) {
		h := NewHost("h", netip.Addr{}, newTestInterface("eth0", "02:00:00:00:00:01", "10.0.0.1/24"))
		err := h.Send(packet.NewPacket(netip.Addr{}, netip.MustParseAddr("8.8.8.8"), nil))
		assert.ErrorIs(t, err, ErrNoRoute)
	})

	t.Run("no ARP entry", func(t *testing.T) {
		h := NewHost("h", netip.Addr{}, newTestInterface("eth0", "02:00:00:00:00:01", "10.0.0.1/24"))
		err := h.Send(packet.NewPacket(netip.Addr{}, netip.MustParseAddr("10.0.0.2"), nil))
		assert.ErrorIs(t, err, ErrNoARPEntry)
		assert.ErrorIs(t, err, phy.EHOSTUNREACH)
	})

	t.Run("interface down", func(t *testing.T) {
		h := NewHost("h", netip.Addr{}, newTestInterface("eth0", "02:00:00:00:00:01", "10.0.0.1/24"))
		h.ARP().Set(netip.MustParseAddr("10.0.0.2"), ether.MustParseMAC("02:00:00:00:00:02"))
		err := h.Send(packet.NewPacket(netip.Addr{}, netip.MustParseAddr("10.0.0.2"), nil))
		assert.ErrorIs(t, err, ErrInterfaceDown)
		assert.ErrorIs(t, err, phy.ENETDOWN)
	})
}

func TestHostSendEqualCost(t *testing.T) {
	eth0 := newTestInterface("eth0", "02:00:00:00:00:01", "10.0.0.1/24")
	eth1 := newTestInterface("eth1", "02:00:00:00:00:02", "10.0.0.2/24")
	for _, iface := range []*Interface{eth0, eth1} {
		peer := newTestInterface("eth0", "02:00:00:00:00:99", "10.0.0.9/24")
		cable := phy.MustConnect(iface.Interface.Interface, peer.Interface.Interface)
		iface.SetPowered(true)
		peer.SetPowered(true)
		for range 2 {
			iface.Negotiate()
			peer.Negotiate()
			cable.Update()
		}
		require.True(t, iface.UpUp())
	}
	h := NewHost("h", netip.Addr{}, eth0, eth1)
	dst := netip.MustParseAddr("10.0.0.9")
	h.ARP().Set(dst, ether.MustParseMAC("02:00:00:00:00:99"))

	for range 2 {
		require.NoError(t, h.Send(packet.NewPacket(netip.Addr{}, dst, []byte("x"))))
	}
	for _, iface := range []*Interface{eth0, eth1} {
		captures := iface.Capture()
		require.Len(t, captures, 1, iface.Name())
		frame, err := packet.DecodeFrame(captures[0].Data)
		require.NoError(t, err)
		pkt, err := packet.DecodePacket(frame.Payload)
		require.NoError(t, err)
		assert.Equal(t, iface.Addr(), pkt.SrcAddr, iface.Name())
	}
}

func TestInterfaceReceivePacket(t *testing.T) {
	left := newTestInterface("eth0", "02:00:00:00:00:01", "10.0.0.1/24")
	right := newTestInterface("eth0", "02:00:00:00:00:02", "10.0.0.2/24")
	cable := phy.MustConnect(left.Interface.Interface, right.Interface.Interface)
	left.SetPowered(true)
	right.SetPowered(true)
	for range 2 {
		left.Negotiate()
		right.Negotiate()
		cable.Update()
	}
	require.True(t, left.UpUp())

	t.Run("non-IPv4 frames are dropped", func(t *testing.T) {
		frame := packet.NewFrame(left.HardwareAddr(), right.HardwareAddr(), packet.EtherTypeExperimental, []byte("x"))
		require.True(t, left.SendFrame(frame))
		cable.Update()
		_, ok := right.ReceivePacket()
		assert.False(t, ok)
		assert.Empty(t, right.Capture())
	})

	t.Run("undecodable payloads are dropped", func(t *testing.T) {
		frame := packet.NewFrame(left.HardwareAddr(), right.HardwareAddr(), packet.EtherTypeIPv4, []byte("garbage"))
		require.True(t, left.SendFrame(frame))
		cable.Update()
		_, ok := right.ReceivePacket()
		assert.False(t, ok)
	})

	t.Run("IPv4 packets are captured on both ends", func(t *testing.T) {
		left.ClearCapture()
		pkt := packet.NewPacket(left.Addr(), right.Addr(), []byte("ping"))
		require.NoError(t, left.SendPacket(pkt, right.HardwareAddr()))
		cable.Update()
		got, ok := right.ReceivePacket()
		require.True(t, ok)
		assert.Equal(t, pkt.Payload, got.Payload)
		require.Len(t, left.Capture(), 1)
		assert.True(t, right.Captured(left.Capture()[0].Data, phy.DirectionIn))
	})

	t.Run("non-IPv4 addresses cannot be sent", func(t *testing.T) {
		pkt := packet.NewPacket(netip.MustParseAddr("::1"), right.Addr(), nil)
		assert.ErrorIs(t, left.SendPacket(pkt, right.HardwareAddr()), packet.ErrMalformed)
	})
}
