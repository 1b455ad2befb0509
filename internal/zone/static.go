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
	"encoding/json"
	"io"
	"net"
	"os"
	"sync"

	ilog "github.com/PextraCloud/pce-zonetable/internal/log"
	"github.com/PextraCloud/pce-zonetable/internal/zonetable"
	"github.com/miekg/dns"
)

const defaultStaticTTL = 10

type staticFile struct {
	Version string `json:"version"`
	// id -> IP address
	Nodes            map[string]string `json:"nodes"`
	ClusterId        string            `json:"cluster_id"`
	DatacenterId     string            `json:"datacenter_id"`
	JoiningToCluster bool              `json:"joining_to_cluster"`
}

// Static serves the node map the PCE installer writes before the cluster
// database is reachable. Each node id becomes an A or AAAA record directly
// under the zone origin.
type Static struct {
	store

	origin string
	path   string
	ttl    uint32

	loadMu sync.Mutex
	stamp  fileStamp
}

func NewStatic(origin, path string, ttl uint32) *Static {
	if ttl == 0 {
		ilog.Log.Warningf("zone: %s: TTL of 0 provided, defaulting to %d seconds", origin, defaultStaticTTL)
		ttl = defaultStaticTTL
	}
	return &Static{origin: dns.CanonicalName(origin), path: path, ttl: ttl}
}

func (z *Static) Origin() string { return z.origin }

// SOA always returns nil: the node map carries no zone metadata.
func (z *Static) SOA() *dns.SOA { return nil }

func (z *Static) Load(ctx context.Context, mode zonetable.LoadMode) error {
	z.loadMu.Lock()
	defer z.loadMu.Unlock()

	if mode == zonetable.LoadUnloaded && z.Loaded() {
		return zonetable.ErrUpToDate
	}

	file, err := os.Open(z.path)
	if err != nil {
		return loadFailed(z.origin, err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return loadFailed(z.origin, err)
	}
	stamp := stampOf(stat)
	if z.Loaded() && stamp.equal(z.stamp) {
		// No changes
		return zonetable.ErrUpToDate
	}

	rrs, err := parseStaticFile(file, z.origin, z.ttl)
	if err != nil {
		return loadFailed(z.origin, err)
	}

	z.replace(z.origin, rrs)
	z.stamp = stamp
	ilog.Log.Infof("zone: %s: refreshed %d record(s) from %s", z.origin, len(rrs), z.path)
	return nil
}

func (z *Static) Flush() error {
	z.loadMu.Lock()
	defer z.loadMu.Unlock()

	z.clear()
	z.stamp = fileStamp{}
	return nil
}

// parseStaticFile decodes the node map and returns one address record per
// node with a valid IP.
func parseStaticFile(r io.Reader, origin string, ttl uint32) ([]dns.RR, error) {
	var config staticFile
	if err := json.NewDecoder(r).Decode(&config); err != nil {
		return nil, err
	}

	rrs := make([]dns.RR, 0, len(config.Nodes))
	for nodeId, ipStr := range config.Nodes {
		ip := net.ParseIP(ipStr)
		if ip == nil {
			ilog.Log.Warningf("zone: %s: skipping node %q with invalid IP %q", origin, nodeId, ipStr)
			continue
		}

		hdr := dns.RR_Header{
			Name:  dns.CanonicalName(nodeId + "." + origin),
			Class: dns.ClassINET,
			Ttl:   ttl,
		}
		if v4 := ip.To4(); v4 != nil {
			hdr.Rrtype = dns.TypeA
			rrs = append(rrs, &dns.A{Hdr: hdr, A: v4})
		} else {
			hdr.Rrtype = dns.TypeAAAA
			rrs = append(rrs, &dns.AAAA{Hdr: hdr, AAAA: ip})
		}
	}
	return rrs, nil
}
