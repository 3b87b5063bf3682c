// SPDX-License-Identifier: GPL-3.0-or-later

package router

import (
	"net"
	"net/netip"
	"sync"
)

// ARP maps next hop addresses to MAC addresses.
//
// Entries are configured out of band. The zero value is ready to use.
type ARP struct {
	mu    sync.Mutex
	table map[netip.Addr]net.HardwareAddr
}

// Set adds or replaces the entry for addr.
func (a *ARP) Set(addr netip.Addr, mac net.HardwareAddr) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.table == nil {
		a.table = make(map[netip.Addr]net.HardwareAddr)
	}
	a.table[addr.Unmap()] = append(net.HardwareAddr{}, mac...)
}

// Delete removes the entry for addr, if any.
func (a *ARP) Delete(addr netip.Addr) {
	a.mu.Lock()
	delete(a.table, addr.Unmap())
	a.mu.Unlock()
}

// Lookup returns the MAC address for addr.
func (a *ARP) Lookup(addr netip.Addr) (net.HardwareAddr, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	mac, found := a.table[addr.Unmap()]
	if !found {
		return nil, false
	}
	return append(net.HardwareAddr{}, mac...), true
}

// Len returns the number of entries.
func (a *ARP) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.table)
}
