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

// Package limit provides per peer rate limiting middleware. Each peer
// IP gets a token bucket, requests over budget are answered 429.
package limit

import (
	"context"
	"net"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"conduit/pkg/protocol/http1"
	"conduit/pkg/server"
)

const defaultTTL = 10 * time.Minute

// Config for the limiter middleware.
type Config struct {
	// Rate is the sustained requests per second budget per peer.
	Rate float64

	// Burst tops the bucket, at least 1.
	Burst int

	// TTL evicts buckets of peers gone quiet.
	TTL time.Duration
}

type limiter struct {
	rate    rate.Limit
	burst   int
	buckets *gocache.Cache

	mu sync.Mutex
}

// New builds the middleware.
func New(cfg *Config) server.Middleware {
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	l := &limiter{
		rate:    rate.Limit(cfg.Rate),
		burst:   burst,
		buckets: gocache.New(ttl, 2*ttl),
	}

	return func(next server.CapabilityFunc) server.CapabilityFunc {
		return func(ctx context.Context, req *http1.Request, w server.ResponseWriter) error {
			if !l.allow(peerKey(ctx)) {
				w.Header().Set("Retry-After", "1")
				return w.Send(http1.StatusTooManyRequests, nil)
			}
			return next(ctx, req, w)
		}
	}
}

func (l *limiter) allow(key string) bool {
	if v, ok := l.buckets.Get(key); ok {
		return v.(*rate.Limiter).Allow()
	}

	l.mu.Lock()
	v, ok := l.buckets.Get(key)
	if !ok {
		v = rate.NewLimiter(l.rate, l.burst)
		l.buckets.Set(key, v, gocache.DefaultExpiration)
	}
	l.mu.Unlock()
	return v.(*rate.Limiter).Allow()
}

// peerKey buckets by peer IP, the port changes per connection.
func peerKey(ctx context.Context) string {
	addr := server.RemoteAddrFromContext(ctx)
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
