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
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conduit/pkg/config"
	"conduit/pkg/protocol/http1"
	"conduit/pkg/server"
)

func startBackend(t *testing.T, mux *server.RouteMux) string {
	t.Helper()
	srv := server.New(&server.Config{Name: t.Name(), Addr: "127.0.0.1:0"}, mux)
	go srv.Serve(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for srv.Addr() == nil {
		if time.Now().After(deadline) {
			t.Fatal("backend did not come up")
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Cleanup(func() {
		srv.Close()
		srv.WaitClosed(time.Second)
	})
	return "http://" + srv.Addr().String()
}

func echoBackend(t *testing.T) string {
	mux := server.NewRouteMux()
	mux.Handle("/echo", server.HandlerFuncs{
		Get: func(ctx context.Context, req *http1.Request, w server.ResponseWriter) error {
			w.Header().SetContentType("text/plain")
			return w.Send(http1.StatusOK, []byte("Echo"))
		},
		Post: func(ctx context.Context, req *http1.Request, w server.ResponseWriter) error {
			body := append([]byte(nil), req.Body()...)
			return w.Send(http1.StatusOK, body)
		},
		Head: func(ctx context.Context, req *http1.Request, w server.ResponseWriter) error {
			return w.Send(http1.StatusOK, []byte("Echo"))
		},
	})
	return startBackend(t, mux)
}

func testClient(t *testing.T, tweak func(*config.ClientConfig)) *Client {
	t.Helper()
	cc := config.DefaultClientConfig()
	cc.ReadTimeout = config.Duration{Duration: 2 * time.Second}
	if tweak != nil {
		tweak(&cc)
	}
	c := New(&cc, nil)
	t.Cleanup(func() {
		c.Close()
		c.WaitClosed(time.Second)
	})
	return c
}

func TestFetchEcho(t *testing.T) {
	base := echoBackend(t)
	c := testClient(t, nil)

	resp, err := c.Fetch(context.Background(), base+"/echo")
	require.NoError(t, err)
	assert.Equal(t, http1.StatusOK, resp.StatusCode())
	assert.Equal(t, "Echo", string(resp.Body()))
	assert.Equal(t, "text/plain", string(resp.Header.ContentType()))
}

func TestFetchPostBody(t *testing.T) {
	base := echoBackend(t)
	c := testClient(t, nil)

	resp, err := c.Fetch(context.Background(), base+"/echo",
		WithMethod("POST"), WithBody([]byte("hello")), WithContentType("text/plain"))
	require.NoError(t, err)
	assert.Equal(t, http1.StatusOK, resp.StatusCode())
	assert.Equal(t, "hello", string(resp.Body()))
}

func TestFetchHeadSkipsBody(t *testing.T) {
	base := echoBackend(t)
	c := testClient(t, nil)

	resp, err := c.Fetch(context.Background(), base+"/echo", WithMethod("HEAD"))
	require.NoError(t, err)
	assert.Equal(t, http1.StatusOK, resp.StatusCode())
	assert.Empty(t, resp.Body())
}

func TestFetchNotFound(t *testing.T) {
	base := echoBackend(t)
	c := testClient(t, nil)

	resp, err := c.Fetch(context.Background(), base+"/missing")
	require.NoError(t, err)
	assert.Equal(t, http1.StatusNotFound, resp.StatusCode())
}

func TestFetchReusesConnection(t *testing.T) {
	base := echoBackend(t)
	c := testClient(t, nil)

	_, err := c.Fetch(context.Background(), base+"/echo")
	require.NoError(t, err)

	key, _, err := targetKeyFromTarget(base + "/echo")
	require.NoError(t, err)
	require.Equal(t, 1, c.pool.idleCount(key))

	_, err = c.Fetch(context.Background(), base+"/echo")
	require.NoError(t, err)
	assert.Equal(t, 1, c.pool.idleCount(key))
}

func TestFetchFollowsRedirects(t *testing.T) {
	mux := server.NewRouteMux()
	mux.Handle("/old", server.HandlerFuncs{
		Get: func(ctx context.Context, req *http1.Request, w server.ResponseWriter) error {
			w.Header().Set("Location", "/new")
			return w.Send(http1.StatusFound, nil)
		},
	})
	mux.Handle("/new", server.HandlerFuncs{
		Get: func(ctx context.Context, req *http1.Request, w server.ResponseWriter) error {
			return w.Send(http1.StatusOK, []byte("moved"))
		},
	})
	base := startBackend(t, mux)
	c := testClient(t, nil)

	resp, err := c.Fetch(context.Background(), base+"/old")
	require.NoError(t, err)
	assert.Equal(t, http1.StatusOK, resp.StatusCode())
	assert.Equal(t, "moved", string(resp.Body()))

	resp, err = c.Fetch(context.Background(), base+"/old", WithoutRedirects())
	require.NoError(t, err)
	assert.Equal(t, http1.StatusFound, resp.StatusCode())
	assert.Equal(t, "/new", string(resp.Header.Peek("Location")))
}

func TestFetchRedirectDowngradesToGet(t *testing.T) {
	mux := server.NewRouteMux()
	mux.Handle("/submit", server.HandlerFuncs{
		Post: func(ctx context.Context, req *http1.Request, w server.ResponseWriter) error {
			w.Header().Set("Location", "/done")
			return w.Send(http1.StatusFound, nil)
		},
	})
	mux.Handle("/done", server.HandlerFuncs{
		Get: func(ctx context.Context, req *http1.Request, w server.ResponseWriter) error {
			return w.Send(http1.StatusOK, []byte("done"))
		},
	})
	base := startBackend(t, mux)
	c := testClient(t, nil)

	resp, err := c.Fetch(context.Background(), base+"/submit",
		WithMethod("POST"), WithBody([]byte("payload")))
	require.NoError(t, err)
	assert.Equal(t, http1.StatusOK, resp.StatusCode())
	assert.Equal(t, "done", string(resp.Body()))
}

func TestFetchRedirectLoopFails(t *testing.T) {
	mux := server.NewRouteMux()
	mux.Handle("/loop", server.HandlerFuncs{
		Get: func(ctx context.Context, req *http1.Request, w server.ResponseWriter) error {
			w.Header().Set("Location", "/loop")
			return w.Send(http1.StatusFound, nil)
		},
	})
	base := startBackend(t, mux)
	c := testClient(t, func(cc *config.ClientConfig) { cc.MaxRedirects = 3 })

	_, err := c.Fetch(context.Background(), base+"/loop")
	assert.ErrorIs(t, err, ErrTooManyRedirects)
}

func TestFetchConcurrentIndependent(t *testing.T) {
	const n = 4
	targets := make([]string, n)
	for i := range targets {
		targets[i] = echoBackend(t) + "/echo"
	}
	c := testClient(t, nil)

	chans := make([]<-chan Result, n)
	for i, target := range targets {
		chans[i] = c.FetchAsync(context.Background(), target)
	}
	for i, ch := range chans {
		select {
		case res := <-ch:
			require.NoError(t, res.Err, "fetch %d", i)
			assert.Equal(t, "Echo", string(res.Resp.Body()))
		case <-time.After(3 * time.Second):
			t.Fatalf("fetch %d did not complete", i)
		}
	}
}

func TestFetchPoolBoundRespected(t *testing.T) {
	mux := server.NewRouteMux()
	mux.Handle("/slow", server.HandlerFuncs{
		Get: func(ctx context.Context, req *http1.Request, w server.ResponseWriter) error {
			time.Sleep(50 * time.Millisecond)
			return w.Send(http1.StatusOK, nil)
		},
	})
	base := startBackend(t, mux)
	c := testClient(t, func(cc *config.ClientConfig) { cc.MaxConnsPerHost = 2 })

	const n = 6
	chans := make([]<-chan Result, n)
	for i := 0; i < n; i++ {
		chans[i] = c.FetchAsync(context.Background(), base+"/slow")
	}
	for i, ch := range chans {
		res := <-ch
		require.NoError(t, res.Err, "fetch %d", i)
	}

	key, _, err := targetKeyFromTarget(base + "/slow")
	require.NoError(t, err)
	assert.LessOrEqual(t, c.pool.idleCount(key), 2)
}

func TestFetchUnsupportedScheme(t *testing.T) {
	c := testClient(t, nil)
	_, err := c.Fetch(context.Background(), "ftp://example.com/file")
	assert.ErrorIs(t, err, ErrUnsupportedScheme)
}

func TestFetchAfterClose(t *testing.T) {
	base := echoBackend(t)
	c := testClient(t, nil)
	c.Close()

	_, err := c.Fetch(context.Background(), base+"/echo")
	assert.ErrorIs(t, err, ErrClientClosed)
}

func TestFetchStalePooledConnErrorSurfaces(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	// every accepted connection serves exactly one response and closes,
	// so a silent re-dial after the pooled connection goes stale would
	// show up as a second served request
	var served int32
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			atomic.AddInt32(&served, 1)
			go func(conn net.Conn) {
				defer conn.Close()
				buf := make([]byte, 4096)
				if _, err := conn.Read(buf); err != nil {
					return
				}
				conn.Write([]byte("HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nok"))
			}(conn)
		}
	}()

	c := testClient(t, nil)
	base := "http://" + ln.Addr().String()

	resp, err := c.Fetch(context.Background(), base+"/one")
	require.NoError(t, err)
	assert.Equal(t, "ok", string(resp.Body()))

	// let the backend's close land so the parked connection is dead
	time.Sleep(100 * time.Millisecond)

	_, err = c.Fetch(context.Background(), base+"/two")
	assert.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&served))
}

func TestFetchDialFailure(t *testing.T) {
	c := testClient(t, func(cc *config.ClientConfig) {
		cc.DialTimeout = config.Duration{Duration: 200 * time.Millisecond}
	})
	// nothing listens here
	_, err := c.Fetch(context.Background(), "http://127.0.0.1:1/echo")
	assert.Error(t, err)
}

func targetKeyFromTarget(target string) (string, string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", "", err
	}
	return targetKey(u)
}
