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

// Package bootstrap assembles servers and a client from a loaded
// config file.
package bootstrap

import (
	"context"
	"crypto/tls"
	"log"
	"time"

	"conduit/pkg/client"
	"conduit/pkg/config"
	"conduit/pkg/server"
	"conduit/pkg/stls"
)

type Conduit struct {
	servers []*server.Server
	client  *client.Client
}

// New builds one engine per configured server, all sharing router and
// middleware, plus the client engine.
func New(cc *config.ConduitConfig, router server.Router, mw ...server.Middleware) *Conduit {
	if len(cc.Servers) == 0 {
		log.Fatalln("no server found")
	}

	cd := &Conduit{}
	for i := range cc.Servers {
		sc := &cc.Servers[i]
		config.ResolveAddr(sc)

		var tlsConfig *tls.Config
		if sc.TLS != nil {
			tc, err := stls.NewServerTLSConfig(sc.TLS)
			if err != nil {
				log.Fatalln("tls config error:", err.Error())
			}
			tlsConfig = tc
		}

		cd.servers = append(cd.servers, server.New(server.NewConfig(sc, tlsConfig), router, mw...))
	}
	cd.client = client.New(&cc.Client, nil)
	return cd
}

// Start starts all servers.
// async
func (cd *Conduit) Start() {
	for _, srv := range cd.servers {
		go srv.Serve(context.Background())
	}
}

// Servers returns the assembled server engines.
func (cd *Conduit) Servers() []*server.Server {
	return cd.servers
}

// Client returns the assembled client engine.
func (cd *Conduit) Client() *client.Client {
	return cd.client
}

// Stop closes everything, waiting up to grace per engine.
func (cd *Conduit) Stop(grace time.Duration) {
	for _, srv := range cd.servers {
		srv.Close()
	}
	for _, srv := range cd.servers {
		srv.WaitClosed(grace)
	}
	cd.client.Close()
	cd.client.WaitClosed(grace)
}
