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

// Package client implements the fetch side of the engine: one
// goroutine per fetch, keep-alive connections parked in a bounded per
// host pool.
package client

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"conduit/pkg/config"
	"conduit/pkg/log"
	"conduit/pkg/network"
	"conduit/pkg/protocol/http1"
	"conduit/pkg/stats"
)

var (
	// ErrClientClosed is returned by Fetch after Close.
	ErrClientClosed = errors.New("client closed")

	// ErrTooManyRedirects is returned when a redirect chain exceeds the
	// configured bound.
	ErrTooManyRedirects = errors.New("too many redirects")

	// ErrUnsupportedScheme is returned for target schemes other than
	// http and https.
	ErrUnsupportedScheme = errors.New("unsupported url scheme")

	// ErrMissingLocation is returned when a redirect status carries no
	// Location header.
	ErrMissingLocation = errors.New("redirect without location header")
)

// Result carries one FetchAsync outcome.
type Result struct {
	Resp *http1.Response
	Err  error
}

type fetchOptions struct {
	method      string
	headers     [][2]string
	body        []byte
	contentType string
	noRedirects bool
}

// Option customizes one fetch.
type Option func(*fetchOptions)

// WithMethod overrides the default GET method.
func WithMethod(method string) Option {
	return func(o *fetchOptions) { o.method = method }
}

// WithHeader adds a request header.
func WithHeader(key, value string) Option {
	return func(o *fetchOptions) { o.headers = append(o.headers, [2]string{key, value}) }
}

// WithBody sets the request body. Content-Length is stamped from it.
func WithBody(body []byte) Option {
	return func(o *fetchOptions) { o.body = body }
}

// WithContentType sets the request Content-Type header.
func WithContentType(ct string) Option {
	return func(o *fetchOptions) { o.contentType = ct }
}

// WithoutRedirects disables redirect following, the 3xx response is
// returned as is.
func WithoutRedirects() Option {
	return func(o *fetchOptions) { o.noRedirects = true }
}

// Client is the fetch engine. Safe for concurrent use.
type Client struct {
	cfg       *config.ClientConfig
	tlsConfig *tls.Config
	logger    log.Logger

	pool     *pool
	resolver *resolver

	inflight sync.Map
	wg       sync.WaitGroup
	closed   int32
}

// New builds a Client. tlsConfig applies to https targets, nil means
// system roots.
func New(cc *config.ClientConfig, tlsConfig *tls.Config) *Client {
	return &Client{
		cfg:       cc,
		tlsConfig: tlsConfig,
		logger:    log.DefaultLogger,
		pool:      newPool(cc.MaxConnsPerHost, cc.IdleTimeout.Duration),
		resolver:  newResolver(cc.ResolveTTL.Duration),
	}
}

// SetLogger replaces the default logger.
func (c *Client) SetLogger(l log.Logger) {
	c.logger = l
}

// Fetch performs one request/response exchange against target,
// following redirects up to the configured bound. The returned
// response is fully read, its connection already recycled.
func (c *Client) Fetch(ctx context.Context, target string, opts ...Option) (*http1.Response, error) {
	if atomic.LoadInt32(&c.closed) == 1 {
		return nil, ErrClientClosed
	}
	c.wg.Add(1)
	defer c.wg.Done()

	o := &fetchOptions{method: "GET"}
	for _, opt := range opts {
		opt(o)
	}

	u, err := url.Parse(target)
	if err != nil {
		return nil, err
	}

	method := o.method
	body := o.body
	for redirects := 0; ; redirects++ {
		resp, err := c.roundTrip(ctx, u, method, body, o)
		if err != nil {
			return nil, err
		}

		if o.noRedirects || !isRedirect(resp.StatusCode()) {
			return resp, nil
		}
		if redirects >= c.cfg.MaxRedirects {
			return nil, ErrTooManyRedirects
		}

		loc := resp.Header.Location()
		if len(loc) == 0 {
			return nil, ErrMissingLocation
		}
		ref, err := url.Parse(string(loc))
		if err != nil {
			return nil, err
		}
		u = u.ResolveReference(ref)

		// historic 301/302 semantics, the re-fetch downgrades to GET
		if resp.StatusCode() == http1.StatusMovedPermanently || resp.StatusCode() == http1.StatusFound {
			if method != "GET" && method != "HEAD" {
				method = "GET"
				body = nil
			}
		}
		stats.UpstreamRedirectsFollowed.Inc(1)
	}
}

// FetchAsync runs Fetch on its own goroutine and delivers the outcome
// on the returned channel.
func (c *Client) FetchAsync(ctx context.Context, target string, opts ...Option) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		resp, err := c.Fetch(ctx, target, opts...)
		ch <- Result{Resp: resp, Err: err}
	}()
	return ch
}

// Close stops new fetches. In-flight fetches finish until WaitClosed
// expires.
func (c *Client) Close() error {
	atomic.StoreInt32(&c.closed, 1)
	return nil
}

// WaitClosed blocks until in-flight fetches finish or grace expires,
// then force-closes every connection still alive.
func (c *Client) WaitClosed(grace time.Duration) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(grace):
		c.inflight.Range(func(_, v interface{}) bool {
			v.(*network.Connection).Close(network.LocalClose)
			return true
		})
		c.wg.Wait()
	}
	c.pool.closeAll()
	return nil
}

// roundTrip sends one request over a pooled or fresh connection and
// reads the complete response.
func (c *Client) roundTrip(ctx context.Context, u *url.URL, method string, body []byte, o *fetchOptions) (*http1.Response, error) {
	key, hostport, err := targetKey(u)
	if err != nil {
		return nil, err
	}

	conn, err := c.acquireConn(ctx, u, key, hostport)
	if err != nil {
		return nil, err
	}
	c.inflight.Store(conn.ID(), conn)
	stats.UpstreamConnectionsActive.Inc(1)
	defer func() {
		c.inflight.Delete(conn.ID())
		stats.UpstreamConnectionsActive.Dec(1)
	}()

	// every failure surfaces to the caller, including ones on a reused
	// connection the peer closed between exchanges. The caller decides
	// whether a repeat is safe.
	resp, err := c.exchange(conn, u, method, body, o)
	if err != nil {
		conn.Close(network.OnReadErrClose)
		return nil, err
	}

	c.recycle(key, conn, resp)
	return resp, nil
}

// exchange writes the request and reads the full response off conn.
func (c *Client) exchange(conn *network.Connection, u *url.URL, method string, body []byte, o *fetchOptions) (*http1.Response, error) {
	req := http1.AcquireRequest()
	defer http1.ReleaseRequest(req)

	req.Header.SetMethod(method)
	req.Header.SetRequestURI(u.RequestURI())
	req.Header.SetHost(u.Host)
	req.Header.SetUserAgent(c.cfg.UserAgent)
	if o.contentType != "" {
		req.Header.SetContentType(o.contentType)
	}
	for _, kv := range o.headers {
		req.Header.Add(kv[0], kv[1])
	}
	if len(body) > 0 {
		req.SetBody(body)
	}

	c.moveState(conn, network.StateWritingHead)
	c.moveState(conn, network.StateWritingBody)
	if err := req.Write(conn); err != nil {
		return nil, err
	}
	stats.UpstreamRequestsTotal.Inc(1)

	resp := &http1.Response{}
	if method == "HEAD" {
		resp.SkipBody = true
	}

	c.moveState(conn, network.StateReadingHead)
	for {
		if conn.BufferedLen() > 0 {
			n, err := resp.Parse(conn.Bytes(), c.cfg.MaxBodyBytes)
			if err == nil {
				conn.Drain(n)
				break
			}
			if err != http1.ErrNeedMore {
				return nil, err
			}
		}
		if _, err := conn.Fill(); err != nil {
			return nil, err
		}
		c.moveState(conn, network.StateReadingBody)
	}

	if resp.BodyUntilClose() && !resp.SkipBody {
		if err := c.readUntilClose(conn, resp); err != nil {
			return nil, err
		}
	}

	c.moveState(conn, network.StateHandling)
	return resp, nil
}

// readUntilClose drains the rest of the stream into the response body.
// Used for responses whose length only EOF determines.
func (c *Client) readUntilClose(conn *network.Connection, resp *http1.Response) error {
	for {
		if n := conn.BufferedLen(); n > 0 {
			resp.AppendBodyRaw(conn.Bytes())
			conn.Drain(n)
			if c.cfg.MaxBodyBytes > 0 && len(resp.Body()) > c.cfg.MaxBodyBytes {
				return http1.ErrBodyTooLarge
			}
		}
		if _, err := conn.Fill(); err != nil {
			if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
				return err
			}
			// EOF terminates an until-close body
			return nil
		}
	}
}

// recycle parks conn for reuse when keep-alive holds, closes it
// otherwise.
func (c *Client) recycle(key string, conn *network.Connection, resp *http1.Response) {
	if resp.Header.ConnectionClose() || resp.BodyUntilClose() || conn.BufferedLen() > 0 || conn.IsClosed() {
		c.moveState(conn, network.StateClosing)
		conn.Close(network.LocalClose)
		return
	}
	c.moveState(conn, network.StateIdle)
	if !c.pool.giveBack(key, conn) {
		conn.Close(network.LocalClose)
	}
}

// acquireConn reuses a pooled connection for key or dials a fresh one.
func (c *Client) acquireConn(ctx context.Context, u *url.URL, key, hostport string) (*network.Connection, error) {
	if conn := c.pool.borrow(key); conn != nil {
		stats.UpstreamConnectionsReused.Inc(1)
		return conn, nil
	}
	return c.dialConn(ctx, u, key, hostport)
}

func (c *Client) dialConn(ctx context.Context, u *url.URL, key, hostport string) (*network.Connection, error) {
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		return nil, err
	}
	addrs, err := c.resolver.lookup(ctx, host)
	if err != nil {
		return nil, err
	}

	var rawc net.Conn
	var dialErr error
	for _, addr := range addrs {
		rawc, dialErr = net.DialTimeout("tcp", net.JoinHostPort(addr, port), c.cfg.DialTimeout.Duration)
		if dialErr == nil {
			break
		}
	}
	if dialErr != nil {
		return nil, dialErr
	}

	if u.Scheme == "https" {
		tc := c.tlsConfig
		if tc == nil {
			tc = &tls.Config{}
		}
		if tc.ServerName == "" {
			tc = tc.Clone()
			tc.ServerName = host
		}
		rawc = tls.Client(rawc, tc)
	}

	conn := network.NewConnection(rawc)
	conn.SetReadTimeout(c.cfg.ReadTimeout.Duration)
	conn.SetCounters(stats.UpstreamBytesRead, stats.UpstreamBytesWritten)
	stats.UpstreamConnectionsDialed.Inc(1)
	c.logger.Debugf("dialed %s as connection %s", key, conn.ID())
	return conn, nil
}

// moveState advances the fetch cycle, transitions that race a prior
// exchange are dropped.
func (c *Client) moveState(conn *network.Connection, s network.ConnState) {
	if err := conn.MoveState(s); err != nil {
		c.logger.Tracef("state %v skipped on %s", s, conn.ID())
	}
}

func isRedirect(status int) bool {
	switch status {
	case http1.StatusMovedPermanently, http1.StatusFound,
		http1.StatusTemporaryRedirect, http1.StatusPermanentRedirect:
		return true
	}
	return false
}

// targetKey derives the pool key and dial address from a URL.
func targetKey(u *url.URL) (key, hostport string, err error) {
	var port string
	switch u.Scheme {
	case "http":
		port = "80"
	case "https":
		port = "443"
	default:
		return "", "", ErrUnsupportedScheme
	}
	hostport = u.Host
	if u.Port() == "" {
		hostport = net.JoinHostPort(u.Hostname(), port)
	}
	return u.Scheme + "://" + hostport, hostport, nil
}
