// SPDX-License-Identifier: GPL-3.0-or-later

package bridge

import (
	"cmp"
	"slices"
	"sync"
	"time"
)

// DefaultCAMTimeout is the default [*Switch] CAMTimeout.
const DefaultCAMTimeout = 300 * time.Second

// CAMKey identifies a CAM table entry.
type CAMKey struct {
	// MAC is the canonical string form of the MAC address.
	MAC string

	// VLAN is the VLAN the address was seen on.
	VLAN uint16
}

// CAMEntry is the value of a CAM table entry.
type CAMEntry struct {
	// Port is where the address was last seen.
	Port *Port

	// LastSeen is when the address was last seen.
	LastSeen time.Time
}

// CAMRecord is a CAM table entry as returned by [*CAM.Snapshot].
type CAMRecord struct {
	CAMKey
	CAMEntry
}

// CAM is the content addressable memory mapping addresses to ports.
//
// The zero value is ready to use.
type CAM struct {
	mu      sync.Mutex
	entries map[CAMKey]CAMEntry
}

// Learn records that key was seen on port at the given time. It returns
// whether the key was new or moved to a different port.
func (c *CAM) Learn(key CAMKey, port *Port, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[CAMKey]CAMEntry)
	}
	prev, found := c.entries[key]
	c.entries[key] = CAMEntry{Port: port, LastSeen: now}
	return !found || prev.Port != port
}

// Lookup returns the port behind key.
func (c *CAM) Lookup(key CAMKey) (*Port, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, found := c.entries[key]
	return entry.Port, found
}

// Purge removes the entries older than timeout and returns their keys.
func (c *CAM) Purge(now time.Time, timeout time.Duration) []CAMKey {
	c.mu.Lock()
	defer c.mu.Unlock()
	var expired []CAMKey
	for key, entry := range c.entries {
		if now.Sub(entry.LastSeen) > timeout {
			expired = append(expired, key)
			delete(c.entries, key)
		}
	}
	return expired
}

// Len returns the number of entries.
func (c *CAM) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Snapshot returns a copy of the entries sorted by VLAN and then MAC.
func (c *CAM) Snapshot() []CAMRecord {
	c.mu.Lock()
	out := make([]CAMRecord, 0, len(c.entries))
	for key, entry := range c.entries {
		out = append(out, CAMRecord{CAMKey: key, CAMEntry: entry})
	}
	c.mu.Unlock()
	slices.SortFunc(out, func(a, b CAMRecord) int {
		return cmp.Or(cmp.Compare(a.VLAN, b.VLAN), cmp.Compare(a.MAC, b.MAC))
	})
	return out
}
