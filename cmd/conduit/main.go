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

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"conduit/pkg/bootstrap"
	"conduit/pkg/client"
	"conduit/pkg/config"
	"conduit/pkg/protocol/http1"
	"conduit/pkg/server"
	"conduit/pkg/stats"
)

var (
	configFile = flag.String("c", "", "config file path, defaults apply when empty")
	fetchURL   = flag.String("fetch", "", "fetch a url instead of serving")
	method     = flag.String("X", "GET", "fetch method")
	body       = flag.String("d", "", "fetch request body")
)

func main() {
	flag.Parse()

	config.LoadEnv(".env")

	if *fetchURL != "" {
		runFetch()
		return
	}
	runServe()
}

func runFetch() {
	cc := config.DefaultClientConfig()
	c := client.New(&cc, nil)

	opts := []client.Option{client.WithMethod(*method)}
	if *body != "" {
		opts = append(opts, client.WithBody([]byte(*body)))
	}
	resp, err := c.Fetch(context.Background(), *fetchURL, opts...)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fetch failed:", err)
		os.Exit(1)
	}
	fmt.Printf("%d %s\n", resp.StatusCode(), resp.Header.StatusMessage())
	os.Stdout.Write(resp.Body())

	c.Close()
	c.WaitClosed(time.Second)
}

func runServe() {
	var cfg *config.ConduitConfig
	if *configFile != "" {
		cfg = config.LoadJsonFile(*configFile)
	} else {
		cfg = &config.ConduitConfig{
			Servers: []config.ServerConfig{config.DefaultServerConfig()},
			Client:  config.DefaultClientConfig(),
		}
	}
	for i := range cfg.Servers {
		config.ApplyEnv(&cfg.Servers[i])
	}
	config.SetDirty()

	cd := bootstrap.New(cfg, defaultRouter())
	cd.Start()

	go config.DumpConfigHandler()

	keeper := cd.Servers()[0]
	server.RegisterShutdownCallback(func() error {
		grace := cfg.Servers[0].GracefulTimeout.Duration
		for _, srv := range cd.Servers()[1:] {
			srv.Close()
			srv.WaitClosed(grace)
		}
		cd.Client().Close()
		cd.Client().WaitClosed(grace)
		return nil
	})
	server.CatchSignals(keeper)

	select {}
}

// defaultRouter serves liveness and counter snapshots, application
// routes come from embedding conduit as a library.
func defaultRouter() server.Router {
	mux := server.NewRouteMux()
	mux.Handle("/healthz", server.HandlerFuncs{
		Get: func(ctx context.Context, req *http1.Request, w server.ResponseWriter) error {
			w.Header().SetContentType("text/plain")
			return w.Send(http1.StatusOK, []byte("ok"))
		},
	})
	mux.Handle("/statz", server.HandlerFuncs{
		Get: func(ctx context.Context, req *http1.Request, w server.ResponseWriter) error {
			bw, err := w.SendStream(http1.StatusOK)
			if err != nil {
				return err
			}
			stats.Each(func(name string, value int64) {
				fmt.Fprintf(bw, "%s %d\n", name, value)
			})
			return bw.Close()
		},
	})
	return mux
}
