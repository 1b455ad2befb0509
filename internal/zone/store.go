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
	"sync"

	"github.com/miekg/dns"
)

// store is the in-memory copy of a zone's records, keyed by canonical owner
// name.
type store struct {
	mu  sync.RWMutex
	rrs map[string][]dns.RR
	// empty holds the names between the origin and an owner that own no
	// records themselves
	empty  map[string]struct{}
	loaded bool
}

func (s *store) replace(origin string, rrs []dns.RR) {
	origin = dns.CanonicalName(origin)
	m := make(map[string][]dns.RR, len(rrs))
	for _, rr := range rrs {
		name := dns.CanonicalName(rr.Header().Name)
		m[name] = append(m[name], rr)
	}

	empty := make(map[string]struct{})
	for name := range m {
		for p := parentName(name); p != "" && dns.IsSubDomain(origin, p); p = parentName(p) {
			if _, ok := m[p]; !ok {
				empty[p] = struct{}{}
			}
			if p == origin {
				break
			}
		}
	}

	s.mu.Lock()
	s.rrs = m
	s.empty = empty
	s.loaded = true
	s.mu.Unlock()
}

// parentName strips the leftmost label, returning "" for the root.
func parentName(name string) string {
	if name == "." {
		return ""
	}
	i, end := dns.NextLabel(name, 0)
	if end {
		return "."
	}
	return name[i:]
}

func (s *store) clear() {
	s.mu.Lock()
	s.rrs = nil
	s.empty = nil
	s.loaded = false
	s.mu.Unlock()
}

// Loaded reports whether the zone holds data from a successful load.
func (s *store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

func (s *store) Lookup(name string, qtype uint16) ([]dns.RR, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	name = dns.CanonicalName(name)
	rrs, ok := s.rrs[name]
	if !ok {
		_, ent := s.empty[name]
		return nil, ent
	}

	var results []dns.RR
	for _, rr := range rrs {
		rrtype := rr.Header().Rrtype
		if qtype == dns.TypeANY || rrtype == qtype {
			results = append(results, rr)
		} else if rrtype == dns.TypeCNAME && qtype != dns.TypeCNAME {
			// A CNAME answers every other type at its owner name
			results = append(results, rr)
		}
	}
	return results, true
}

func (s *store) soaAt(origin string) *dns.SOA {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rr := range s.rrs[dns.CanonicalName(origin)] {
		if soa, ok := rr.(*dns.SOA); ok {
			return soa
		}
	}
	return nil
}

func (s *store) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, rrs := range s.rrs {
		n += len(rrs)
	}
	return n
}
