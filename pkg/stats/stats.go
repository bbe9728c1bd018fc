/*
 * Copyright (c) 2019. The Conduit Authors.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this work except in compliance with the License.
 * You may obtain a copy of the License in the LICENSE file, or at:
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package stats

import (
	"github.com/rcrowley/go-metrics"
)

var registry = metrics.NewRegistry()

// Server side counters.
var (
	DownstreamConnectionsTotal  = metrics.NewRegisteredCounter("downstream.connections.total", registry)
	DownstreamConnectionsActive = metrics.NewRegisteredCounter("downstream.connections.active", registry)
	DownstreamRequestsTotal     = metrics.NewRegisteredCounter("downstream.requests.total", registry)
	DownstreamRequestsActive    = metrics.NewRegisteredCounter("downstream.requests.active", registry)
	DownstreamBytesRead         = metrics.NewRegisteredCounter("downstream.bytes.read", registry)
	DownstreamBytesWritten      = metrics.NewRegisteredCounter("downstream.bytes.written", registry)
)

// Client side counters.
var (
	UpstreamConnectionsDialed = metrics.NewRegisteredCounter("upstream.connections.dialed", registry)
	UpstreamConnectionsReused = metrics.NewRegisteredCounter("upstream.connections.reused", registry)
	UpstreamConnectionsActive = metrics.NewRegisteredCounter("upstream.connections.active", registry)
	UpstreamRequestsTotal     = metrics.NewRegisteredCounter("upstream.requests.total", registry)
	UpstreamRedirectsFollowed = metrics.NewRegisteredCounter("upstream.redirects.followed", registry)
	UpstreamBytesRead         = metrics.NewRegisteredCounter("upstream.bytes.read", registry)
	UpstreamBytesWritten      = metrics.NewRegisteredCounter("upstream.bytes.written", registry)
)

// RequestTimer tracks server side request handling latency.
var RequestTimer = metrics.NewRegisteredTimer("downstream.request.duration", registry)

// Registry exposes the metrics registry for reporters.
func Registry() metrics.Registry {
	return registry
}

// Each visits every registered metric name with its current counter value.
// Gauges and timers are skipped.
func Each(f func(name string, value int64)) {
	registry.Each(func(name string, m interface{}) {
		if c, ok := m.(metrics.Counter); ok {
			f(name, c.Count())
		}
	})
}
