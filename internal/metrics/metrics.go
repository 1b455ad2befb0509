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
package metrics

import (
	ilog "github.com/PextraCloud/pce-zonetable/internal/log"
	"github.com/coredns/coredns/plugin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Zones is the number of zones mounted in the table.
	Zones = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: plugin.Namespace,
		Subsystem: ilog.PluginName,
		Name:      "zones",
		Help:      "Number of zones mounted in the zone table.",
	})

	// FindCount counts table lookups by outcome.
	FindCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: plugin.Namespace,
		Subsystem: ilog.PluginName,
		Name:      "find_total",
		Help:      "Counter of zone table lookups by match kind.",
	}, []string{"server", "match"})

	// LoadFailures counts failed zone loads.
	LoadFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: plugin.Namespace,
		Subsystem: ilog.PluginName,
		Name:      "load_failures_total",
		Help:      "Counter of failed zone loads.",
	}, []string{"zone"})
)
