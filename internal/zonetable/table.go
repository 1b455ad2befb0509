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
// Package zonetable keeps the set of zones a server is authoritative for and
// finds the zone that should answer a given name.
//
// A table is shared through handles. New returns the first handle; Attach
// hands out more, and each one is given back exactly once with Detach or
// FlushAndDetach. The table is torn down when the last handle is returned.
package zonetable

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	ilog "github.com/PextraCloud/pce-zonetable/internal/log"
	"github.com/PextraCloud/pce-zonetable/internal/mem"
	"github.com/PextraCloud/pce-zonetable/internal/nameindex"
)

var (
	tableSize = int64(unsafe.Sizeof(zoneTable{}))
	entrySize = int64(unsafe.Sizeof(entry{}))
)

type entry struct {
	name string
	zone Zone
	// cost is what the entry claimed from the memory context.
	cost int64
}

type zoneTable struct {
	// mu guards everything below. Find and the snapshot step of traversals
	// take it shared.
	mu        sync.RWMutex
	index     *nameindex.Index[*entry]
	refs      int
	destroyed bool

	class uint16
	mctx  *mem.Context
}

// Table is a handle onto a zone table.
type Table struct {
	zt       *zoneTable
	detached atomic.Bool
}

// MatchKind says how Find resolved a name.
type MatchKind int

const (
	NotFound MatchKind = iota
	ExactMatch
	// PartialMatch means a zone above the name matched. It is a successful
	// lookup; the caller decides whether an enclosing zone is good enough.
	PartialMatch
)

func (k MatchKind) String() string {
	switch k {
	case NotFound:
		return "notfound"
	case ExactMatch:
		return "exact"
	case PartialMatch:
		return "partial"
	default:
		return fmt.Sprintf("MatchKind(%d)", int(k))
	}
}

// Match is the result of Find. Zone may be unmounted or replaced as soon as
// Find returns; callers that mutate it must re-check its identity.
type Match struct {
	Kind MatchKind
	Zone Zone
	// Name is the origin of the matched zone in canonical form.
	Name string
}

func (m Match) Found() bool { return m.Kind != NotFound }

// New creates a table for zones of the given class. Its memory is accounted
// against mctx.
func New(mctx *mem.Context, class uint16) (*Table, error) {
	if mctx == nil {
		panic("zonetable: nil memory context")
	}
	if err := mctx.Get(tableSize); err != nil {
		return nil, fmt.Errorf("create zone table: %w", err)
	}

	zt := &zoneTable{
		index: nameindex.New[*entry](),
		refs:  1,
		class: class,
		mctx:  mctx,
	}
	return &Table{zt: zt}, nil
}

func (t *Table) table() *zoneTable {
	if t == nil || t.zt == nil {
		panic("zonetable: nil table handle")
	}
	if t.detached.Load() {
		panic("zonetable: use of detached table handle")
	}
	return t.zt
}

// Class returns the DNS class the table was created for.
func (t *Table) Class() uint16 {
	return t.table().class
}

// Len returns the number of mounted zones.
func (t *Table) Len() int {
	zt := t.table()
	zt.mu.RLock()
	defer zt.mu.RUnlock()
	return zt.index.Len()
}

// Mount registers z under its origin. The table is unchanged on error.
func (t *Table) Mount(z Zone) error {
	if z == nil {
		panic("zonetable: mount of nil zone")
	}
	zt := t.table()
	name := z.Origin()
	e := &entry{name: name, zone: z, cost: entrySize + int64(len(name))}

	zt.mu.Lock()
	defer zt.mu.Unlock()

	if err := zt.mctx.Get(e.cost); err != nil {
		return fmt.Errorf("mount %s: %w", name, err)
	}
	if err := zt.index.Insert(name, e); err != nil {
		zt.mctx.Put(e.cost)
		return err
	}
	ilog.Log.Debugf("table: mounted zone %s", name)
	return nil
}

// Unmount removes z from the table. It fails with ErrNotFound unless z itself
// is what is mounted at its origin, so a zone that was since replaced by
// another instance is left alone.
func (t *Table) Unmount(z Zone) error {
	if z == nil {
		panic("zonetable: unmount of nil zone")
	}
	zt := t.table()
	name := z.Origin()

	zt.mu.Lock()
	defer zt.mu.Unlock()

	m, err := zt.index.Find(name, nameindex.FindExact)
	if err != nil {
		return err
	}
	if m.Value.zone != z {
		return fmt.Errorf("%s: mounted zone is a different instance: %w", m.Name, ErrNotFound)
	}
	if _, err := zt.index.Remove(name); err != nil {
		return err
	}
	zt.mctx.Put(m.Value.cost)
	ilog.Log.Debugf("table: unmounted zone %s", m.Name)
	return nil
}

// Find returns the zone mounted at name. With allowPartial, the zone with the
// closest enclosing origin is returned as a PartialMatch when name itself is
// not mounted.
func (t *Table) Find(name string, allowPartial bool) Match {
	opts := nameindex.FindExact
	if allowPartial {
		opts = nameindex.FindPartial
	}
	return t.find(name, opts)
}

// FindParent returns the closest zone strictly above name, ignoring a zone
// mounted at name itself. Parent-side data such as DS records lives there.
func (t *Table) FindParent(name string) Match {
	return t.find(name, nameindex.FindNoExact)
}

func (t *Table) find(name string, opts nameindex.FindOptions) Match {
	zt := t.table()

	zt.mu.RLock()
	m, err := zt.index.Find(name, opts)
	zt.mu.RUnlock()
	if err != nil {
		return Match{Kind: NotFound}
	}

	kind := PartialMatch
	if m.Exact {
		kind = ExactMatch
	}
	return Match{Kind: kind, Zone: m.Value.zone, Name: m.Name}
}

// Attach returns a new handle onto the same table.
func (t *Table) Attach() *Table {
	zt := t.table()

	zt.mu.Lock()
	defer zt.mu.Unlock()
	if zt.refs <= 0 {
		panic("zonetable: attach to destroyed table")
	}
	zt.refs++
	return &Table{zt: zt}
}

// Detach gives the handle back. The handle must not be used afterwards. When
// it was the last one the table is destroyed without flushing its zones.
func (t *Table) Detach() {
	t.release(false)
}

// FlushAndDetach is Detach, except that when this was the last handle every
// mounted zone is flushed before the table is destroyed.
func (t *Table) FlushAndDetach() {
	t.release(true)
}

func (t *Table) release(flush bool) {
	zt := t.table()
	if !t.detached.CompareAndSwap(false, true) {
		panic("zonetable: table handle detached twice")
	}

	zt.mu.Lock()
	if zt.refs <= 0 {
		zt.mu.Unlock()
		panic("zonetable: reference count underflow")
	}
	zt.refs--
	if zt.refs > 0 {
		zt.mu.Unlock()
		return
	}
	entries := zt.entriesLocked()
	zt.destroyed = true
	zt.mu.Unlock()

	// Nobody else can reach the table any more; flush and free without the lock.
	if flush {
		for _, e := range entries {
			if err := e.zone.Flush(); err != nil {
				ilog.Log.Warningf("table: flushing zone %s failed: %v", e.name, err)
			}
		}
	}
	zt.free(entries)
}

func (zt *zoneTable) free(entries []*entry) {
	zt.mu.Lock()
	zt.index = nil
	zt.mu.Unlock()

	for _, e := range entries {
		zt.mctx.Put(e.cost)
	}
	zt.mctx.Put(tableSize)
	ilog.Log.Debugf("table: destroyed (%d zone(s) released)", len(entries))
}

// refcount is used by tests.
func (t *Table) refcount() int {
	t.zt.mu.RLock()
	defer t.zt.mu.RUnlock()
	return t.zt.refs
}
