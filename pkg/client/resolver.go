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

package client

import (
	"context"
	"net"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// resolver caches host lookups for the configured TTL so hot hosts do
// not hit DNS on every dial.
type resolver struct {
	cache *gocache.Cache
}

func newResolver(ttl time.Duration) *resolver {
	return &resolver{cache: gocache.New(ttl, 2*ttl)}
}

func (r *resolver) lookup(ctx context.Context, host string) ([]string, error) {
	if ip := net.ParseIP(host); ip != nil {
		return []string{host}, nil
	}
	if v, ok := r.cache.Get(host); ok {
		return v.([]string), nil
	}
	addrs, err := net.DefaultResolver.LookupHost(ctx, host)
	if err != nil {
		return nil, err
	}
	r.cache.Set(host, addrs, gocache.DefaultExpiration)
	return addrs, nil
}
