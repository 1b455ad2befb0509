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
// Package zone provides the zone implementations mounted in the zone table:
// RFC 1035 master files, the static node map written by the PCE installer,
// and records kept in PostgreSQL.
package zone

import (
	"os"
	"time"

	ilog "github.com/PextraCloud/pce-zonetable/internal/log"
	"github.com/PextraCloud/pce-zonetable/internal/metrics"
	"github.com/PextraCloud/pce-zonetable/internal/zonetable"
	"github.com/miekg/dns"
)

// Well-known PCE zones. The bootstrap zone is nested inside the dynamic one
// and is written by the installer before the database is reachable.
const (
	DynamicOrigin     = "pce.internal."
	BootstrapOrigin   = "bootstrap." + DynamicOrigin
	DefaultStaticPath = "/var/lib/pce/crdb-locality"
)

// Zone is a mountable zone that can answer queries from memory.
type Zone interface {
	zonetable.Zone
	// Lookup returns the records at name matching qtype, and whether name
	// exists in the zone at all.
	Lookup(name string, qtype uint16) ([]dns.RR, bool)
	// SOA returns the apex SOA record, or nil if the zone has none loaded.
	SOA() *dns.SOA
	// Loaded reports whether the zone has data to answer from. A zone that
	// never loaded, or was flushed, must not give negative answers.
	Loaded() bool
}

// comp-time check: every zone kind implements Zone
var (
	_ Zone = (*File)(nil)
	_ Zone = (*Static)(nil)
	_ Zone = (*SQL)(nil)
)

func loadFailed(origin string, err error) error {
	metrics.LoadFailures.WithLabelValues(origin).Inc()
	ilog.Log.Errorf("zone: %s: load failed: %v", origin, err)
	return err
}

// fileStamp is what change detection compares for file-backed zones.
type fileStamp struct {
	size  int64
	mtime time.Time
}

func stampOf(fi os.FileInfo) fileStamp {
	return fileStamp{size: fi.Size(), mtime: fi.ModTime()}
}

func (s fileStamp) equal(o fileStamp) bool {
	return s.size == o.size && s.mtime.Equal(o.mtime)
}
