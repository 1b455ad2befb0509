/*
Copyright 2026 Pextra Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	https://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
// Package mem implements the allocation context handed to long-lived name
// server structures. A Context does not allocate memory itself: it accounts
// for what its owners claim to hold and refuses claims beyond its quota, which
// lets callers surface resource exhaustion as an ordinary error.
package mem

import (
	"errors"
	"fmt"
	"sync"
)

// ErrNoMemory is returned when a claim would exceed the context quota.
var ErrNoMemory = errors.New("out of memory")

type Context struct {
	name  string
	quota int64

	mu     sync.Mutex
	inuse  int64
	allocs uint64
	frees  uint64
}

// Stats is a point-in-time copy of a Context's counters.
type Stats struct {
	Name   string
	Quota  int64
	InUse  int64
	Allocs uint64
	Frees  uint64
}

// NewContext returns a context named for diagnostics. A quota of zero or less
// means unlimited.
func NewContext(name string, quota int64) *Context {
	return &Context{name: name, quota: quota}
}

func (c *Context) Name() string { return c.name }

// Get claims size bytes.
func (c *Context) Get(size int64) error {
	if size < 0 {
		panic("mem: negative allocation size")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.quota > 0 && c.inuse+size > c.quota {
		return fmt.Errorf("%s: %d bytes requested, %d of %d in use: %w", c.name, size, c.inuse, c.quota, ErrNoMemory)
	}
	c.inuse += size
	c.allocs++
	return nil
}

// Put returns size bytes previously claimed with Get. Returning more than is
// outstanding is a double free and panics.
func (c *Context) Put(size int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if size < 0 || size > c.inuse {
		panic(fmt.Sprintf("mem: %s: freeing %d bytes with %d in use", c.name, size, c.inuse))
	}
	c.inuse -= size
	c.frees++
}

func (c *Context) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Name:   c.name,
		Quota:  c.quota,
		InUse:  c.inuse,
		Allocs: c.allocs,
		Frees:  c.frees,
	}
}
