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
package zonetable

import (
	"context"
	"iter"

	ilog "github.com/PextraCloud/pce-zonetable/internal/log"
)

// entriesLocked copies the current entries. zt.mu must be held.
func (zt *zoneTable) entriesLocked() []*entry {
	entries := make([]*entry, 0, zt.index.Len())
	for _, e := range zt.index.All() {
		entries = append(entries, e)
	}
	return entries
}

// snapshot returns the entries mounted right now. Callers work on the copy
// with the lock released, so zones mounted afterwards are not visited and
// zones unmounted afterwards still are.
func (zt *zoneTable) snapshot() []*entry {
	zt.mu.RLock()
	defer zt.mu.RUnlock()
	if zt.destroyed {
		return nil
	}
	return zt.entriesLocked()
}

func (zt *zoneTable) apply(stopOnError bool, action func(Zone) error) error {
	for _, e := range zt.snapshot() {
		if err := action(e.zone); err != nil {
			if stopOnError {
				return err
			}
			ilog.Log.Debugf("table: zone %s: %v", e.name, err)
		}
	}
	return nil
}

// Apply calls action for every zone mounted when Apply was called. action may
// mount and unmount zones on the same table. With stopOnError the first
// error is returned and the remaining zones are skipped; otherwise errors are
// ignored and nil is returned.
func (t *Table) Apply(stopOnError bool, action func(Zone) error) error {
	return t.table().apply(stopOnError, action)
}

// Load loads every zone that was never loaded and reloads every zone whose
// backing data changed.
func (t *Table) Load(ctx context.Context, stopOnError bool) error {
	return t.load(ctx, LoadChanged, stopOnError)
}

// LoadNew loads only the zones that were never loaded.
func (t *Table) LoadNew(ctx context.Context, stopOnError bool) error {
	return t.load(ctx, LoadUnloaded, stopOnError)
}

func (t *Table) load(ctx context.Context, mode LoadMode, stopOnError bool) error {
	return t.table().apply(stopOnError, func(z Zone) error {
		if err := z.Load(ctx, mode); !LoadSucceeded(err) {
			return err
		}
		return nil
	})
}

// Zones returns the mounted zones as a sequence. Each range over it works
// on a fresh snapshot, so it can be iterated again to see later changes.
func (t *Table) Zones() iter.Seq[Zone] {
	zt := t.table()
	return func(yield func(Zone) bool) {
		for _, e := range zt.snapshot() {
			if !yield(e.zone) {
				return
			}
		}
	}
}
