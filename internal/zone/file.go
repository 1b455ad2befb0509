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
package zone

import (
	"context"
	"fmt"
	"os"
	"sync"

	ilog "github.com/PextraCloud/pce-zonetable/internal/log"
	"github.com/PextraCloud/pce-zonetable/internal/zonetable"
	"github.com/miekg/dns"
)

// File is a zone read from an RFC 1035 master file.
type File struct {
	store

	origin string
	path   string

	// loadMu serialises loads; stamp is only touched with it held.
	loadMu sync.Mutex
	stamp  fileStamp
}

func NewFile(origin, path string) *File {
	return &File{origin: dns.CanonicalName(origin), path: path}
}

func (z *File) Origin() string { return z.origin }

func (z *File) SOA() *dns.SOA { return z.soaAt(z.origin) }

func (z *File) Load(ctx context.Context, mode zonetable.LoadMode) error {
	z.loadMu.Lock()
	defer z.loadMu.Unlock()

	if mode == zonetable.LoadUnloaded && z.Loaded() {
		return zonetable.ErrUpToDate
	}

	f, err := os.Open(z.path)
	if err != nil {
		return loadFailed(z.origin, err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return loadFailed(z.origin, err)
	}
	stamp := stampOf(stat)
	if z.Loaded() && stamp.equal(z.stamp) {
		ilog.Log.Debugf("zone: %s: skipping load, %s unchanged", z.origin, z.path)
		return zonetable.ErrUpToDate
	}

	rrs, err := parseMasterFile(f, z.origin, z.path)
	if err != nil {
		return loadFailed(z.origin, err)
	}

	z.replace(z.origin, rrs)
	z.stamp = stamp
	ilog.Log.Infof("zone: %s: loaded %d record(s) from %s", z.origin, len(rrs), z.path)
	return nil
}

// Flush drops the in-memory copy; the master file is the only persistent state.
func (z *File) Flush() error {
	z.loadMu.Lock()
	defer z.loadMu.Unlock()

	z.clear()
	z.stamp = fileStamp{}
	return nil
}

func parseMasterFile(f *os.File, origin, path string) ([]dns.RR, error) {
	zp := dns.NewZoneParser(f, origin, path)

	var rrs []dns.RR
	hasSOA := false
	for rr, ok := zp.Next(); ok; rr, ok = zp.Next() {
		if !dns.IsSubDomain(origin, rr.Header().Name) {
			ilog.Log.Warningf("zone: %s: ignoring out-of-zone record %s", origin, rr.Header().Name)
			continue
		}
		if rr.Header().Rrtype == dns.TypeSOA && dns.CanonicalName(rr.Header().Name) == origin {
			hasSOA = true
		}
		rrs = append(rrs, rr)
	}
	if err := zp.Err(); err != nil {
		return nil, err
	}
	if !hasSOA {
		return nil, fmt.Errorf("%s: no SOA record at zone apex %s", path, origin)
	}
	return rrs, nil
}
