// SPDX-License-Identifier: GPL-3.0-or-later

// Package closepool collects [io.Closer] instances, such as running
// devices and process cables, and releases them in a single operation.
package closepool

import (
	"errors"
	"io"
	"slices"
	"sync"
)

// Pool is a set of [io.Closer] released together.
//
// The zero value is ready to use.
type Pool struct {
	// handles contains the [io.Closer] to close.
	handles []io.Closer

	// mu provides mutual exclusion.
	mu sync.Mutex
}

// Add registers c with the pool.
func (p *Pool) Add(c io.Closer) {
	p.mu.Lock()
	p.handles = append(p.handles, c)
	p.mu.Unlock()
}

// Len returns the number of [io.Closer] waiting to be closed.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.handles)
}

// Close closes every registered [io.Closer], the most recently added
// first, so that resources close before what they depend on. The pool is
// empty afterwards and closing it again is a no-op. The returned error
// joins all the close errors.
func (p *Pool) Close() error {
	p.mu.Lock()
	handles := p.handles
	p.handles = nil
	p.mu.Unlock()

	var errv []error
	for _, c := range slices.Backward(handles) {
		if err := c.Close(); err != nil {
			errv = append(errv, err)
		}
	}
	return errors.Join(errv...)
}

// Func adapts a function to [io.Closer].
type Func func() error

// Close implements [io.Closer].
func (fx Func) Close() error {
	return fx()
}
