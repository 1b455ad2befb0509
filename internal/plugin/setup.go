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
	"fmt"
	"strconv"
	"strings"
	"time"

	ilog "github.com/PextraCloud/pce-zonetable/internal/log"
	"github.com/PextraCloud/pce-zonetable/internal/mem"
	"github.com/PextraCloud/pce-zonetable/internal/zone"
	"github.com/PextraCloud/pce-zonetable/internal/zonetable"
	"github.com/coredns/caddy"
	"github.com/coredns/coredns/core/dnsserver"
	"github.com/coredns/coredns/plugin"
	"github.com/miekg/dns"
)

const defaultReloadInterval = time.Minute

var openDB = zone.Open

// zoneConfig is one zone declared in the Corefile block.
type zoneConfig struct {
	kind   string
	origin string
	path   string
	table  string
	ttl    uint32
}

type config struct {
	zones      []zoneConfig
	dataSource string
	class      uint16
	quota      int64
	ttl        uint32
	watch      bool
}

func parseTTL(c *caddy.Controller, s string) (uint32, error) {
	ttl, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, c.Errf("invalid ttl value: %v", err)
	}
	return uint32(ttl), nil
}

func parseConfig(c *caddy.Controller) (*Plugin, error) {
	c.Next() // skip the PluginName token
	ilog.Log.Debugf("config: parsing %s plugin", ilog.PluginName)

	p := &Plugin{ReloadInterval: defaultReloadInterval}
	p.setZones(plugin.OriginsFromArgsOrServerBlock(c.RemainingArgs(), c.ServerBlockKeys))

	cfg := config{class: dns.ClassINET, ttl: 60}
	for c.NextBlock() {
		switch c.Val() {
		case "file":
			args := c.RemainingArgs()
			if len(args) != 2 {
				return nil, c.ArgErr()
			}
			cfg.zones = append(cfg.zones, zoneConfig{kind: "file", origin: args[0], path: args[1]})
		case "static":
			args := c.RemainingArgs()
			if len(args) == 0 {
				args = []string{zone.BootstrapOrigin, zone.DefaultStaticPath}
			}
			if len(args) < 2 || len(args) > 3 {
				return nil, c.ArgErr()
			}
			zc := zoneConfig{kind: "static", origin: args[0], path: args[1]}
			if len(args) == 3 {
				ttl, err := parseTTL(c, args[2])
				if err != nil {
					return nil, err
				}
				zc.ttl = ttl
			}
			cfg.zones = append(cfg.zones, zc)
		case "sql":
			args := c.RemainingArgs()
			if len(args) == 0 {
				args = []string{zone.DynamicOrigin}
			}
			if len(args) > 2 {
				return nil, c.ArgErr()
			}
			zc := zoneConfig{kind: "sql", origin: args[0]}
			if len(args) == 2 {
				zc.table = args[1]
			}
			cfg.zones = append(cfg.zones, zc)
		case "datasource":
			if !c.NextArg() {
				return nil, c.ArgErr()
			}
			cfg.dataSource = c.Val()
		case "ttl":
			if !c.NextArg() {
				return nil, c.ArgErr()
			}
			ttl, err := parseTTL(c, c.Val())
			if err != nil {
				return nil, err
			}
			cfg.ttl = ttl
		case "class":
			if !c.NextArg() {
				return nil, c.ArgErr()
			}
			class, ok := dns.StringToClass[strings.ToUpper(c.Val())]
			if !ok {
				return nil, c.Errf("unknown class '%s'", c.Val())
			}
			cfg.class = class
		case "reload":
			if !c.NextArg() {
				return nil, c.ArgErr()
			}
			d, err := time.ParseDuration(c.Val())
			if err != nil || d < 0 {
				return nil, c.Errf("invalid reload interval '%s'", c.Val())
			}
			p.ReloadInterval = d
		case "quota":
			if !c.NextArg() {
				return nil, c.ArgErr()
			}
			q, err := strconv.ParseInt(c.Val(), 10, 64)
			if err != nil || q < 0 {
				return nil, c.Errf("invalid quota '%s'", c.Val())
			}
			cfg.quota = q
		case "watch":
			if c.NextArg() {
				return nil, c.ArgErr()
			}
			cfg.watch = true
		case "fallthrough":
			p.setFallthroughZones(c.RemainingArgs())
		default:
			return nil, c.Errf("unknown property '%s' for %s plugin", c.Val(), ilog.PluginName)
		}
	}

	if len(cfg.zones) == 0 {
		return nil, c.Errf("%s plugin needs at least one zone", ilog.PluginName)
	}
	if err := p.build(cfg); err != nil {
		return nil, c.Err(err.Error())
	}
	ilog.Log.Debugf("config: %s plugin initialized with %d zone(s)", ilog.PluginName, p.table.Len())
	return p, nil
}

// build creates the table and mounts every configured zone. On failure
// everything acquired so far is released.
func (p *Plugin) build(cfg config) (err error) {
	needsDB := false
	for _, zc := range cfg.zones {
		if zc.kind == "sql" {
			needsDB = true
		}
	}
	if needsDB {
		if cfg.dataSource == "" {
			return fmt.Errorf("sql zones need a datasource")
		}
		// Attempt to connect to db
		if p.db, err = openDB(cfg.dataSource); err != nil {
			return err
		}
	} else if cfg.dataSource != "" {
		ilog.Log.Warningf("config: datasource set but no sql zones configured")
	}

	p.mctx = mem.NewContext(ilog.PluginName, cfg.quota)
	if p.table, err = zonetable.New(p.mctx, cfg.class); err != nil {
		p.closeDB()
		return err
	}
	defer func() {
		if err != nil {
			p.table.Detach()
			p.table = nil
			p.closeDB()
		}
	}()

	for _, zc := range cfg.zones {
		var z zone.Zone
		switch zc.kind {
		case "file":
			z = zone.NewFile(zc.origin, zc.path)
		case "static":
			z = zone.NewStatic(zc.origin, zc.path, zc.ttl)
		case "sql":
			z = zone.NewSQL(zc.origin, p.db, zc.table, cfg.ttl)
		}
		if err := p.table.Mount(z); err != nil {
			return fmt.Errorf("failed to mount %s zone %s: %w", zc.kind, zc.origin, err)
		}
		if cfg.watch && zc.path != "" {
			p.watchPaths = append(p.watchPaths, zc.path)
		}
		ilog.Log.Debugf("config: mounted %s zone %s", zc.kind, z.Origin())
	}
	return nil
}

func (p *Plugin) closeDB() {
	if p.db != nil {
		p.db.Close()
		p.db = nil
	}
}

func Setup(c *caddy.Controller) error {
	p, err := parseConfig(c)
	if err != nil {
		return plugin.Error(ilog.PluginName, err)
	}

	c.OnStartup(p.start)
	// Cleanup on shutdown
	c.OnShutdown(p.stop)

	dnsserver.GetConfig(c).AddPlugin(func(next plugin.Handler) plugin.Handler {
		// For plugin chaining
		p.Next = next
		return p
	})
	return nil
}
