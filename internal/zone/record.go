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
	"encoding/json"
	"fmt"
	"net"

	"github.com/miekg/dns"
)

// record is one row of the records table. Content is JSON for structured
// types and the raw text for TXT.
type record struct {
	Name    string
	Type    string
	TTL     uint32
	Content string
}

type addressContent struct {
	IP net.IP `json:"ip"`
}
type targetContent struct {
	Target string `json:"target"`
}
type srvContent struct {
	Priority uint16 `json:"priority"`
	Weight   uint16 `json:"weight"`
	Port     uint16 `json:"port"`
	Target   string `json:"target"`
}
type mxContent struct {
	Preference uint16 `json:"preference"`
	Host       string `json:"host"`
}

// owner returns the record's owner name; an empty Name is the zone apex.
func (r *record) owner(origin string) string {
	if r.Name == "" || r.Name == "@" {
		return dns.CanonicalName(origin)
	}
	return dns.CanonicalName(r.Name + "." + origin)
}

func splitTxtData(content string) []string {
	// TXT records can have multiple strings, each up to 255 bytes.
	var result []string
	for len(content) > 255 {
		result = append(result, content[:255])
		content = content[255:]
	}
	result = append(result, content)
	return result
}

func (r *record) unmarshal(v any) error {
	if err := json.Unmarshal([]byte(r.Content), v); err != nil {
		return fmt.Errorf("failed to unmarshal %s record content for %q: %w", r.Type, r.Name, err)
	}
	return nil
}

// toRR converts the row into a resource record, using defaultTTL when the
// row has none.
func (r *record) toRR(origin string, defaultTTL uint32) (dns.RR, error) {
	rrtype, ok := dns.StringToType[r.Type]
	if !ok {
		return nil, fmt.Errorf("unsupported record type: %s", r.Type)
	}
	hdr := dns.RR_Header{
		Name:   r.owner(origin),
		Rrtype: rrtype,
		Class:  dns.ClassINET,
		Ttl:    r.TTL,
	}
	if hdr.Ttl == 0 {
		hdr.Ttl = defaultTTL
	}

	switch rrtype {
	case dns.TypeA:
		var c addressContent
		if err := r.unmarshal(&c); err != nil {
			return nil, err
		}
		if c.IP.To4() == nil {
			return nil, fmt.Errorf("A record %q: %q is not an IPv4 address", r.Name, c.IP)
		}
		return &dns.A{Hdr: hdr, A: c.IP.To4()}, nil
	case dns.TypeAAAA:
		var c addressContent
		if err := r.unmarshal(&c); err != nil {
			return nil, err
		}
		return &dns.AAAA{Hdr: hdr, AAAA: c.IP}, nil
	case dns.TypeCNAME:
		var c targetContent
		if err := r.unmarshal(&c); err != nil {
			return nil, err
		}
		return &dns.CNAME{Hdr: hdr, Target: dns.Fqdn(c.Target)}, nil
	case dns.TypeNS:
		var c targetContent
		if err := r.unmarshal(&c); err != nil {
			return nil, err
		}
		return &dns.NS{Hdr: hdr, Ns: dns.Fqdn(c.Target)}, nil
	case dns.TypeSRV:
		var c srvContent
		if err := r.unmarshal(&c); err != nil {
			return nil, err
		}
		return &dns.SRV{
			Hdr:      hdr,
			Priority: c.Priority,
			Weight:   c.Weight,
			Port:     c.Port,
			Target:   dns.Fqdn(c.Target),
		}, nil
	case dns.TypeMX:
		var c mxContent
		if err := r.unmarshal(&c); err != nil {
			return nil, err
		}
		return &dns.MX{Hdr: hdr, Preference: c.Preference, Mx: dns.Fqdn(c.Host)}, nil
	case dns.TypeTXT:
		return &dns.TXT{Hdr: hdr, Txt: splitTxtData(r.Content)}, nil
	default:
		return nil, fmt.Errorf("unsupported record type: %s", r.Type)
	}
}
