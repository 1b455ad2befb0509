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
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PextraCloud/pce-zonetable/internal/mem"
	"github.com/PextraCloud/pce-zonetable/internal/zonetable"
	"github.com/miekg/dns"
)

func testMemContext(t *testing.T) *mem.Context {
	return mem.NewContext(t.Name(), 0)
}

func TestParseStaticFile(t *testing.T) {
	input := `{
		"version": "1",
		"nodes": {"node1": "10.0.0.1", "node2": "2001:db8::2", "bad": "not-an-ip"},
		"cluster_id": "c1"
	}`
	rrs, err := parseStaticFile(strings.NewReader(input), "bootstrap.pce.internal.", 30)
	if err != nil {
		t.Fatalf("parseStaticFile failed: %v", err)
	}
	if len(rrs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(rrs))
	}
	for _, rr := range rrs {
		switch r := rr.(type) {
		case *dns.A:
			if r.Hdr.Name != "node1.bootstrap.pce.internal." || r.A.String() != "10.0.0.1" || r.Hdr.Ttl != 30 {
				t.Fatalf("unexpected A record: %v", r)
			}
		case *dns.AAAA:
			if r.Hdr.Name != "node2.bootstrap.pce.internal." || r.AAAA.String() != "2001:db8::2" {
				t.Fatalf("unexpected AAAA record: %v", r)
			}
		default:
			t.Fatalf("unexpected record type %T", rr)
		}
	}

	if _, err := parseStaticFile(strings.NewReader("{"), "x.", 30); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestStaticLoad(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "crdb-locality", `{"nodes":{"n1":"10.0.0.1"}}`)
	z := NewStatic("bootstrap.pce.internal", path, 0)
	if z.ttl != defaultStaticTTL {
		t.Fatalf("expected default TTL, got %d", z.ttl)
	}
	if z.SOA() != nil {
		t.Fatalf("static zone has no SOA")
	}

	if err := z.Load(context.Background(), zonetable.LoadUnloaded); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if rrs, ok := z.Lookup("n1.bootstrap.pce.internal.", dns.TypeA); !ok || len(rrs) != 1 {
		t.Fatalf("expected n1 A record, got %v", rrs)
	}
	if err := z.Load(context.Background(), zonetable.LoadChanged); !errors.Is(err, zonetable.ErrUpToDate) {
		t.Fatalf("expected ErrUpToDate, got %v", err)
	}

	writeFile(t, dir, "crdb-locality", `{"nodes":{"n2":"10.0.0.2"}}`)
	touch(t, path, time.Minute)
	if err := z.Load(context.Background(), zonetable.LoadChanged); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if _, ok := z.Lookup("n1.bootstrap.pce.internal.", dns.TypeA); ok {
		t.Fatalf("stale record survived reload")
	}
	if _, ok := z.Lookup("n2.bootstrap.pce.internal.", dns.TypeA); !ok {
		t.Fatalf("expected n2 after reload")
	}

	if err := z.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if z.len() != 0 {
		t.Fatalf("expected flushed zone to be empty")
	}
}

func TestStaticLoadMissingFile(t *testing.T) {
	z := NewStatic("bootstrap.pce.internal.", filepath.Join(t.TempDir(), "nope"), 10)
	if err := z.Load(context.Background(), zonetable.LoadChanged); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
