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
	"errors"

	"github.com/PextraCloud/pce-zonetable/internal/nameindex"
)

var (
	// ErrExists is returned by Mount when a zone is already mounted at the name.
	ErrExists = nameindex.ErrExists
	// ErrNotFound is returned by Unmount when the name does not hold the zone.
	ErrNotFound = nameindex.ErrNotFound
	// ErrInvalidName is returned when a zone origin is not a domain name.
	ErrInvalidName = nameindex.ErrInvalidName
)

// Outcomes a Zone may report from Load that the table counts as success.
var (
	// ErrUpToDate means the backing data has not changed since the last load.
	ErrUpToDate = errors.New("zone is up to date")
	// ErrLoadPending means a load was started and completes asynchronously.
	ErrLoadPending = errors.New("zone load in progress")
	// ErrDynamic means the zone is maintained in memory and is never reloaded.
	ErrDynamic = errors.New("zone is dynamic")
)

// LoadMode tells a Zone which loads it should perform.
type LoadMode int

const (
	// LoadChanged loads zones that were never loaded and reloads those whose
	// backing data changed since their last load.
	LoadChanged LoadMode = iota
	// LoadUnloaded only loads zones that were never loaded.
	LoadUnloaded
)

func (m LoadMode) String() string {
	switch m {
	case LoadChanged:
		return "changed"
	case LoadUnloaded:
		return "unloaded"
	default:
		return "unknown"
	}
}

// Zone is what the table mounts. Implementations must be comparable, and
// should be pointers: Unmount uses == to confirm it removes the zone it was
// given.
type Zone interface {
	// Origin is the zone apex, the name the zone is mounted under.
	Origin() string
	Load(ctx context.Context, mode LoadMode) error
	// Flush persists or discards in-memory state before the table goes away.
	Flush() error
}

// LoadSucceeded reports whether err is nil or one of the benign load
// outcomes that leave the zone usable.
func LoadSucceeded(err error) bool {
	return err == nil ||
		errors.Is(err, ErrUpToDate) ||
		errors.Is(err, ErrLoadPending) ||
		errors.Is(err, ErrDynamic)
}
