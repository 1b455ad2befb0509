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
package pce

import (
	"context"
	"fmt"

	ilog "github.com/PextraCloud/pce-zonetable/internal/log"
	"github.com/PextraCloud/pce-zonetable/internal/metrics"
	"github.com/PextraCloud/pce-zonetable/internal/zone"
	"github.com/coredns/coredns/plugin"
	cmetrics "github.com/coredns/coredns/plugin/metrics"
	"github.com/coredns/coredns/request"
	"github.com/miekg/dns"
)

func (p *Plugin) ServeDNS(ctx context.Context, w dns.ResponseWriter, r *dns.Msg) (int, error) {
	state := request.Request{W: w, Req: r}
	qName := state.Name()
	qType := state.QType()

	typeName := dns.TypeToString[qType]
	if typeName == "" {
		typeName = "UNKNOWN"
	}
	log := ilog.Log
	log.Debugf("request: name=%q type=%s from=%s", qName, typeName, state.IP())

	if plugin.Zones(p.Zones).Matches(qName) == "" {
		return plugin.NextOrFailure(p.Name(), p.Next, ctx, w, r)
	}

	m, ok := p.find(qName, state.QClass())
	if !ok {
		return plugin.NextOrFailure(p.Name(), p.Next, ctx, w, r)
	}
	metrics.FindCount.WithLabelValues(cmetrics.WithServer(ctx), m.Kind.String()).Inc()
	if !m.Found() {
		log.Debugf("table: no zone for name=%q", qName)
		return plugin.NextOrFailure(p.Name(), p.Next, ctx, w, r)
	}

	z, ok := m.Zone.(zone.Zone)
	if !ok {
		err := fmt.Errorf("zone %s cannot answer queries", m.Name)
		log.Errorf("table: %v", err)
		return errResponse(state, dns.RcodeServerFailure, err)
	}

	// Without data a negative answer would be cached for the whole zone
	if !z.Loaded() {
		if p.canFallthrough(qName) {
			log.Debugf("fallthrough: zone %s not loaded, passing name=%q to next plugin", m.Name, qName)
			return plugin.NextOrFailure(p.Name(), p.Next, ctx, w, r)
		}
		log.Debugf("servfail: zone %s not loaded for name=%q", m.Name, qName)
		return errResponse(state, dns.RcodeServerFailure, nil)
	}

	answers, exists := z.Lookup(qName, qType)
	if len(answers) > 0 {
		log.Debugf("%s: matched %d record(s) for name=%q", m.Name, len(answers), qName)
		return successResponse(state, answers, nil)
	}

	// No records found, handle fallthrough
	if p.canFallthrough(qName) {
		log.Debugf("fallthrough: passing to next plugin for name=%q", qName)
		return plugin.NextOrFailure(p.Name(), p.Next, ctx, w, r)
	}

	var ns []dns.RR
	if soa := z.SOA(); soa != nil {
		ns = []dns.RR{soa}
	}
	if exists {
		log.Debugf("nodata: no %s records for name=%q", typeName, qName)
		return successResponse(state, nil, ns)
	}
	log.Debugf("nxdomain: no records for name=%q", qName)
	return nameErrorResponse(state, ns)
}

func errResponse(state request.Request, rcode int, err error) (int, error) {
	m := new(dns.Msg)
	m.SetRcode(state.Req, rcode)
	m.Authoritative = true
	m.RecursionAvailable = false
	m.Compress = true

	state.SizeAndDo(m)
	state.W.WriteMsg(m)
	return rcode, err
}

func nameErrorResponse(state request.Request, ns []dns.RR) (int, error) {
	m := new(dns.Msg)
	m.SetRcode(state.Req, dns.RcodeNameError)
	m.Authoritative = true
	m.RecursionAvailable = false
	m.Compress = true
	m.Ns = ns

	state.SizeAndDo(m)
	state.W.WriteMsg(m)
	return dns.RcodeNameError, nil
}

func successResponse(state request.Request, answers, ns []dns.RR) (int, error) {
	m := new(dns.Msg)
	m.SetReply(state.Req)
	m.Authoritative = true
	m.RecursionAvailable = false
	m.Compress = true
	m.Answer = answers
	m.Ns = ns

	state.SizeAndDo(m)
	m = state.Scrub(m)
	state.W.WriteMsg(m)
	return dns.RcodeSuccess, nil
}
