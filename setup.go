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
// Package pce_zonetable registers the zonetable plugin with CoreDNS. Import
// it from a CoreDNS build to make the zonetable directive available.
package pce_zonetable

import (
	ilog "github.com/PextraCloud/pce-zonetable/internal/log"
	pce "github.com/PextraCloud/pce-zonetable/internal/plugin"
	"github.com/coredns/coredns/plugin"
)

func init() { plugin.Register(ilog.PluginName, pce.Setup) }
