// SPDX-License-Identifier: GPL-3.0-or-later

package phy

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"os"
	"sync"
	"time"

	"github.com/rbmk-project/common/errclass"
	"github.com/rbmk-project/common/runtimex"
)

const (
	// DefaultHeartbeatTimeout is the default [ProcessCableConfig] HeartbeatTimeout.
	DefaultHeartbeatTimeout = time.Second

	// DefaultPollTimeout is the default [ProcessCableConfig] PollTimeout.
	DefaultPollTimeout = 10 * time.Millisecond

	// DefaultMaxDatagramSize is the default [ProcessCableConfig] MaxDatagramSize.
	DefaultMaxDatagramSize = 1600
)

// heartbeat is the liveness marker exchanged by process cable ends.
var heartbeat = []byte{0x00}

// loopback is the address process cables bind to and send to.
var loopback = netip.AddrFrom4([4]byte{127, 0, 0, 1})

// ProcessCableConfig contains the [*ProcessCable] configuration.
type ProcessCableConfig struct {
	// LocalPort is the loopback UDP port to bind. If zero, the
	// kernel picks a free port (see [*ProcessCable.LocalAddr]).
	LocalPort uint16

	// PeerPort is the loopback UDP port of the other end.
	PeerPort uint16

	// HeartbeatTimeout is the maximum age of the last liveness
	// marker received from the peer for the cable to be active.
	// If zero, we use [DefaultHeartbeatTimeout].
	HeartbeatTimeout time.Duration

	// PollTimeout bounds each read while draining inbound
	// datagrams. If zero, we use [DefaultPollTimeout].
	PollTimeout time.Duration

	// MaxDatagramSize is the largest datagram we send or receive.
	// If zero, we use [DefaultMaxDatagramSize].
	MaxDatagramSize int

	// Logger is the optional structured logger. If nil, no
	// structured logs are emitted.
	Logger *slog.Logger

	// TimeNow is the optional function to get the current time.
	// If nil, we use [time.Now].
	TimeNow func() time.Time
}

func (cfg *ProcessCableConfig) validate() error {
	if cfg.PeerPort == 0 {
		return fmt.Errorf("%w: process cable needs a peer port", EINVAL)
	}
	if cfg.LocalPort != 0 && cfg.LocalPort == cfg.PeerPort {
		return fmt.Errorf("%w: local and peer port are both %d", EINVAL, cfg.PeerPort)
	}
	if cfg.HeartbeatTimeout < 0 || cfg.PollTimeout < 0 || cfg.MaxDatagramSize < 0 {
		return fmt.Errorf("%w: negative process cable setting", EINVAL)
	}
	return nil
}

// ProcessCable is one end of a link between two processes on the same
// machine. Each end owns a UDP socket bound to the loopback address and
// sends to the socket of the other end.
//
// While the local interface is eligible (plugged, powered, and not
// administratively down), every update sends a liveness marker followed
// by all queued outbound messages, then drains inbound datagrams. The
// cable is active while the local interface is eligible and the peer's
// liveness marker was seen within the heartbeat timeout.
//
// Construct using [NewProcessCable].
type ProcessCable struct {
	conn   *net.UDPConn
	peer   netip.AddrPort
	config ProcessCableConfig

	// mu protects the fields below.
	mu       sync.Mutex
	active   bool
	closed   bool
	end      *Interface
	lastSeen time.Time
}

var _ Link = &ProcessCable{}

// NewProcessCable binds the local UDP socket and returns a new
// unplugged [*ProcessCable]. Use Close to release the socket.
func NewProcessCable(config ProcessCableConfig) (*ProcessCable, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	if config.HeartbeatTimeout == 0 {
		config.HeartbeatTimeout = DefaultHeartbeatTimeout
	}
	if config.PollTimeout == 0 {
		config.PollTimeout = DefaultPollTimeout
	}
	if config.MaxDatagramSize == 0 {
		config.MaxDatagramSize = DefaultMaxDatagramSize
	}
	if config.TimeNow == nil {
		config.TimeNow = time.Now
	}

	local := netip.AddrPortFrom(loopback, config.LocalPort)
	conn, err := net.ListenUDP("udp4", net.UDPAddrFromAddrPort(local))
	if err != nil {
		return nil, err
	}
	return &ProcessCable{
		conn:   conn,
		peer:   netip.AddrPortFrom(loopback, config.PeerPort),
		config: config,
	}, nil
}

// MustNewProcessCable is like [NewProcessCable] but panics on error.
func MustNewProcessCable(config ProcessCableConfig) *ProcessCable {
	return runtimex.Try1(NewProcessCable(config))
}

// LocalAddr returns the address of the local socket.
func (c *ProcessCable) LocalAddr() netip.AddrPort {
	return c.conn.LocalAddr().(*net.UDPAddr).AddrPort()
}

// PeerAddr returns the address of the peer socket.
func (c *ProcessCable) PeerAddr() netip.AddrPort {
	return c.peer
}

// Close releases the socket. The cable becomes inactive.
func (c *ProcessCable) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.active = false
	c.mu.Unlock()
	return c.conn.Close()
}

// Plug plugs an interface into the local end.
//
// The returned error wraps [ErrAlreadyCabled] if the interface already
// has a cable, [ErrCableFull] if the local end is taken, and
// [ErrCableClosed] after Close.
func (c *ProcessCable) Plug(iface *Interface) error {
	if err := iface.attach(c); err != nil {
		return err
	}

	c.mu.Lock()
	var err error
	switch {
	case c.closed:
		err = ErrCableClosed
	case c.end != nil:
		err = ErrCableFull
	default:
		c.end = iface
	}
	c.mu.Unlock()

	if err != nil {
		iface.detach(c)
	}
	return err
}

// Unplug removes the interface from the local end and immediately
// recomputes whether the cable is active.
func (c *ProcessCable) Unplug(iface *Interface) error {
	c.mu.Lock()
	found := iface != nil && c.end == iface
	if found {
		c.end = nil
	}
	c.mu.Unlock()

	if !found {
		return ErrNotPlugged
	}
	iface.detach(c)
	c.Update()
	return nil
}

// Active implements [Link].
func (c *ProcessCable) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Update implements [Link].
func (c *ProcessCable) Update() {
	c.mu.Lock()
	end, closed := c.end, c.closed
	c.mu.Unlock()

	if closed {
		return
	}

	eligible := end != nil && end.eligible()
	if eligible {
		c.transmit(heartbeat)
		for _, msg := range end.takeOutbound() {
			c.transmit(msg)
		}
	}
	seen := c.drain(end, eligible)

	c.mu.Lock()
	defer c.mu.Unlock()
	if seen {
		c.lastSeen = c.config.TimeNow()
	}
	c.active = eligible && !c.lastSeen.IsZero() &&
		c.config.TimeNow().Sub(c.lastSeen) <= c.config.HeartbeatTimeout
}

func (c *ProcessCable) transmit(msg []byte) {
	if len(msg) > c.config.MaxDatagramSize {
		c.logError("processCableOversize", fmt.Errorf("%w: %d bytes", EMSGSIZE, len(msg)))
		return
	}
	if _, err := c.conn.WriteToUDPAddrPort(msg, c.peer); err != nil {
		c.logError("processCableWrite", err)
	}
}

// drain reads all the pending datagrams, delivering them to end when
// deliver is true, and returns whether a liveness marker was seen.
func (c *ProcessCable) drain(end *Interface, deliver bool) (seen bool) {
	buf := make([]byte, c.config.MaxDatagramSize)
	var inbound [][]byte
	for {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.config.PollTimeout)); err != nil {
			c.logError("processCableRead", err)
			break
		}
		count, from, err := c.conn.ReadFromUDPAddrPort(buf)
		if errors.Is(err, os.ErrDeadlineExceeded) {
			break
		}
		if err != nil {
			c.logError("processCableRead", err)
			break
		}
		if !deliver || from.Port() != c.peer.Port() {
			continue
		}
		if count == len(heartbeat) && buf[0] == heartbeat[0] {
			seen = true
			continue
		}
		inbound = append(inbound, append([]byte{}, buf[:count]...))
	}
	if end != nil && deliver {
		end.deliver(inbound...)
	}
	return
}

func (c *ProcessCable) logError(msg string, err error) {
	if c.config.Logger != nil {
		c.config.Logger.Warn(
			msg,
			slog.Any("err", err),
			slog.String("errClass", errclass.New(err)),
			slog.String("localAddr", c.LocalAddr().String()),
			slog.String("remoteAddr", c.peer.String()),
		)
	}
}
