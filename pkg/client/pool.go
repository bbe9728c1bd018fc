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
	"sync"
	"time"

	"conduit/pkg/network"
)

// pooledConn is an idle keep-alive connection parked for reuse.
type pooledConn struct {
	conn      *network.Connection
	idleSince time.Time
}

// pool holds idle connections per host key, at most limit each. A
// fetch that finds the pool empty dials fresh, a return that finds the
// pool full closes the connection instead of parking it.
type pool struct {
	mu          sync.Mutex
	limit       int
	idleTimeout time.Duration
	hosts       map[string][]pooledConn
	closed      bool
}

func newPool(limit int, idleTimeout time.Duration) *pool {
	return &pool{
		limit:       limit,
		idleTimeout: idleTimeout,
		hosts:       make(map[string][]pooledConn),
	}
}

// borrow pops the most recently parked connection for key, discarding
// stale ones along the way. Returns nil when nothing is reusable.
func (p *pool) borrow(key string) *network.Connection {
	p.mu.Lock()
	defer p.mu.Unlock()

	idle := p.hosts[key]
	for len(idle) > 0 {
		pc := idle[len(idle)-1]
		idle = idle[:len(idle)-1]
		p.hosts[key] = idle
		if p.idleTimeout > 0 && time.Since(pc.idleSince) > p.idleTimeout {
			pc.conn.Close(network.LocalClose)
			continue
		}
		if pc.conn.IsClosed() {
			continue
		}
		return pc.conn
	}
	return nil
}

// giveBack parks conn for key. The caller must close the connection
// when false is returned.
func (p *pool) giveBack(key string, conn *network.Connection) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || len(p.hosts[key]) >= p.limit {
		return false
	}
	p.hosts[key] = append(p.hosts[key], pooledConn{conn: conn, idleSince: time.Now()})
	return true
}

// idleCount reports how many connections are parked for key.
func (p *pool) idleCount(key string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.hosts[key])
}

// closeAll closes every parked connection and refuses further returns.
func (p *pool) closeAll() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	for key, idle := range p.hosts {
		for _, pc := range idle {
			pc.conn.Close(network.LocalClose)
		}
		delete(p.hosts, key)
	}
}
