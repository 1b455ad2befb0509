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
	"database/sql"
	"fmt"
	"sync"
	"time"

	ilog "github.com/PextraCloud/pce-zonetable/internal/log"
	"github.com/PextraCloud/pce-zonetable/internal/mem"
	"github.com/PextraCloud/pce-zonetable/internal/metrics"
	"github.com/PextraCloud/pce-zonetable/internal/watcher"
	"github.com/PextraCloud/pce-zonetable/internal/zonetable"
	"github.com/coredns/coredns/plugin"
	"golang.org/x/sync/errgroup"
)

const (
	// loadWorkers bounds how many zones are loaded at once on startup.
	loadWorkers   = 8
	reloadTimeout = time.Minute
	watchDebounce = 500 * time.Millisecond
)

type Plugin struct {
	// Next is the next plugin in the chain
	Next plugin.Handler

	// Zones are the names this plugin answers for, queries for anything
	// else go straight to Next
	Zones []string
	// fallthroughZones is the list of zones for which queries should be
	// passed to the next plugin if no records are found
	fallthroughZones []string

	// ReloadInterval is the period of the background reload sweep; zero
	// disables it
	ReloadInterval time.Duration
	// watchPaths are the zone files whose writes trigger a reload
	watchPaths []string

	// mu guards table against shutdown while queries are in flight
	mu sync.RWMutex
	// table is the plugin's own handle on the zone table, nil after stop
	table *zonetable.Table
	mctx  *mem.Context
	// db is shared by all SQL zones, nil when none are configured
	db *sql.DB

	// loop is closed to stop the reload goroutine, which closes done on exit
	loop chan struct{}
	done chan struct{}
}

// comp-time check: Plugin implements plugin.Handler
var _ plugin.Handler = (*Plugin)(nil)

func (p *Plugin) Name() string { return ilog.PluginName }

func (p *Plugin) setZones(zones []string) {
	if len(zones) == 0 {
		zones = []string{"."}
	}

	res := []string{}
	for _, zone := range zones {
		res = append(res, plugin.Host(zone).NormalizeExact()...)
	}
	p.Zones = res
}

func (p *Plugin) setFallthroughZones(zones []string) {
	// If no zones are specified, default to the root zone
	if len(zones) == 0 {
		zones = []string{"."}
	}

	res := []string{}
	for _, zone := range zones {
		res = append(res, plugin.Host(zone).NormalizeExact()...)
	}
	p.fallthroughZones = res
}

// find looks name up in the table. ok is false once the plugin has shut
// down or when the table serves a different class.
func (p *Plugin) find(name string, class uint16) (m zonetable.Match, ok bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.table == nil || p.table.Class() != class {
		return m, false
	}
	return p.table.Find(name, true), true
}

func (p *Plugin) canFallthrough(qName string) bool {
	return plugin.Zones(p.fallthroughZones).Matches(qName) != ""
}

// loadAll loads every mounted zone that was never loaded, a few at a time.
// A zone that fails is logged and does not stop the others; the first
// failure is returned.
func (p *Plugin) loadAll(ctx context.Context) error {
	var g errgroup.Group
	g.SetLimit(loadWorkers)

	for z := range p.table.Zones() {
		g.Go(func() error {
			if err := z.Load(ctx, zonetable.LoadUnloaded); !zonetable.LoadSucceeded(err) {
				return fmt.Errorf("zone %s: %w", z.Origin(), err)
			}
			return nil
		})
	}
	return g.Wait()
}

// startReload runs the background reload goroutine, driven by the reload
// ticker and by writes to watched zone files. The goroutine holds its own
// handle on the table so the table outlives it even if the plugin lets go
// first.
func (p *Plugin) startReload() {
	if p.loop != nil {
		// Already started
		return
	}

	var tick <-chan time.Time
	var ticker *time.Ticker
	if p.ReloadInterval > 0 {
		ticker = time.NewTicker(p.ReloadInterval)
		tick = ticker.C
	}

	var changed <-chan struct{}
	var w *watcher.Watcher
	if len(p.watchPaths) > 0 {
		var err error
		if w, err = watcher.New(p.watchPaths, watchDebounce); err != nil {
			ilog.Log.Warningf("reload: not watching zone files: %v", err)
		} else if changed, err = w.Start(); err != nil {
			ilog.Log.Warningf("reload: not watching zone files: %v", err)
			w.Stop()
			w = nil
		}
	}

	if tick == nil && changed == nil {
		ilog.Log.Debugf("reload: no interval configured, skipping periodic reload")
		return
	}

	handle := p.table.Attach()
	loop := make(chan struct{})
	done := make(chan struct{})
	p.loop, p.done = loop, done

	go func() {
		defer close(done)
		defer handle.Detach()
		if ticker != nil {
			defer ticker.Stop()
		}
		if w != nil {
			defer w.Stop()
		}
		for {
			select {
			// Periodic update
			case <-tick:
				p.reload(handle)
			// A watched zone file was written
			case <-changed:
				ilog.Log.Debugf("reload: zone file changed")
				p.reload(handle)
			// Shutdown signal
			case <-loop:
				return
			}
		}
	}()
}

func (p *Plugin) reload(handle *zonetable.Table) {
	ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
	defer cancel()

	// Failures are logged and counted by the zones themselves
	if err := handle.Load(ctx, false); err != nil {
		ilog.Log.Warningf("reload: %v", err)
	}
	metrics.Zones.Set(float64(handle.Len()))
}

func (p *Plugin) stopReload() {
	if p.loop == nil {
		return
	}
	close(p.loop)
	<-p.done
	p.loop, p.done = nil, nil
}

func (p *Plugin) start() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := p.loadAll(ctx); err != nil {
		// Zones that failed stay mounted and are retried by the reload sweep
		ilog.Log.Warningf("startup: %v", err)
	}
	metrics.Zones.Set(float64(p.table.Len()))
	p.startReload()
	ilog.Log.Infof("startup: serving %d zone(s)", p.table.Len())
	return nil
}

// stop tears the plugin down. The reload goroutine lets go of its handle
// first, so the plugin's FlushAndDetach is the last reference and flushes
// every zone.
func (p *Plugin) stop() error {
	ilog.Log.Debugf("shutdown: %s plugin stopping", ilog.PluginName)
	p.stopReload()

	p.mu.Lock()
	table := p.table
	p.table = nil
	p.mu.Unlock()
	if table != nil {
		table.FlushAndDetach()
		metrics.Zones.Set(0)
	}

	var err error
	if p.db != nil {
		if cerr := p.db.Close(); cerr != nil {
			err = fmt.Errorf("failed to close database: %w", cerr)
		}
		p.db = nil
	}
	if p.mctx != nil {
		st := p.mctx.Stats()
		ilog.Log.Debugf("shutdown: memory context %s: %d byte(s) in use after teardown", st.Name, st.InUse)
	}
	return err
}
