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

package server

import (
	"bytes"
	"context"
	"crypto/tls"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"conduit/pkg/config"
	"conduit/pkg/log"
	"conduit/pkg/network"
	"conduit/pkg/protocol/http1"
	"conduit/pkg/stats"
	csync "conduit/pkg/sync"
	"conduit/utils/container/squeue"
)

// Config carries everything the engine needs to listen and serve.
type Config struct {
	Name            string
	Addr            string
	ReusePort       bool
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	HandlerTimeout  time.Duration
	GracefulTimeout time.Duration
	MaxHeaderBytes  int
	MaxBodyBytes    int
	AcceptRate      float64
	AcceptBurst     int
	TLSConfig       *tls.Config
	Logger          log.Logger
	Workers         int
}

// NewConfig maps a config.ServerConfig onto an engine Config.
func NewConfig(sc *config.ServerConfig, tlsConfig *tls.Config) *Config {
	return &Config{
		Name:            sc.Name,
		Addr:            sc.Addr,
		ReusePort:       sc.ReusePort,
		ReadTimeout:     sc.ReadTimeout.Duration,
		WriteTimeout:    sc.WriteTimeout.Duration,
		GracefulTimeout: sc.GracefulTimeout.Duration,
		MaxHeaderBytes:  sc.MaxHeaderBytes,
		MaxBodyBytes:    sc.MaxBodyBytes,
		AcceptRate:      sc.AcceptRate,
		AcceptBurst:     sc.AcceptBurst,
		TLSConfig:       tlsConfig,
		Logger:          log.NewLogger(sc.LogPath, config.ParseLogLevel(sc.LogLevel)),
	}
}

// Server accepts connections and dispatches requests to router
// resolved handlers. One goroutine runs the request read loop per
// connection, one more writes responses in request order.
type Server struct {
	config  *Config
	router  Router
	chain   []Middleware
	logger  log.Logger
	lst     network.Listener
	workers csync.WorkerPool

	conns  sync.Map
	wg     sync.WaitGroup
	closed int32
}

// New builds a Server around router. Middleware wraps every resolved
// capability, first middleware outermost.
func New(cfg *Config, router Router, mw ...Middleware) *Server {
	if cfg.Logger == nil {
		cfg.Logger = log.DefaultLogger
	}
	if cfg.HandlerTimeout == 0 {
		cfg.HandlerTimeout = 30 * time.Second
	}
	srv := &Server{
		config:  cfg,
		router:  router,
		chain:   mw,
		logger:  cfg.Logger,
		workers: csync.NewWorkerPool(cfg.Workers, 0),
	}
	srv.lst = network.NewListener(&network.ListenerConfig{
		Name:        cfg.Name,
		Addr:        cfg.Addr,
		ReusePort:   cfg.ReusePort,
		TLSConfig:   cfg.TLSConfig,
		AcceptRate:  cfg.AcceptRate,
		AcceptBurst: cfg.AcceptBurst,
		Logger:      cfg.Logger,
	})
	srv.lst.SetListenerCallbacks(srv)
	return srv
}

// Serve listens and blocks accepting connections until Close or a
// fatal listener error.
func (srv *Server) Serve(lctx context.Context) {
	srv.lst.Start(lctx)
}

// Addr returns the bound listen address, nil before Serve.
func (srv *Server) Addr() net.Addr {
	return srv.lst.Addr()
}

// Close stops accepting new connections. In-flight exchanges continue
// until WaitClosed expires.
func (srv *Server) Close() error {
	if !atomic.CompareAndSwapInt32(&srv.closed, 0, 1) {
		return nil
	}
	return srv.lst.Close(context.Background())
}

// WaitClosed blocks until all connections finish or grace expires,
// then force-closes whatever is left.
func (srv *Server) WaitClosed(grace time.Duration) error {
	done := make(chan struct{})
	go func() {
		srv.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(grace):
		srv.conns.Range(func(_, v interface{}) bool {
			v.(*network.Connection).Close(network.LocalClose)
			return true
		})
		srv.wg.Wait()
	}
	srv.workers.Release()
	return nil
}

// OnAccept implements network.ListenerEventListener. It runs on the
// per-connection goroutine spawned by the listener.
func (srv *Server) OnAccept(rawc net.Conn) {
	conn := network.NewConnection(rawc)
	conn.SetReadTimeout(srv.config.ReadTimeout)
	conn.SetWriteTimeout(srv.config.WriteTimeout)
	conn.SetCounters(stats.DownstreamBytesRead, stats.DownstreamBytesWritten)

	stats.DownstreamConnectionsTotal.Inc(1)
	stats.DownstreamConnectionsActive.Inc(1)
	srv.conns.Store(conn.ID(), conn)
	srv.wg.Add(1)
	defer func() {
		srv.conns.Delete(conn.ID())
		stats.DownstreamConnectionsActive.Dec(1)
		srv.wg.Done()
	}()

	srv.logger.Debugf("accepted connection %s from %v", conn.ID(), conn.RemoteAddr())
	srv.serveConn(conn)
}

// OnClose implements network.ListenerEventListener.
func (srv *Server) OnClose() {
	srv.logger.Infof("listener %s closed", srv.config.Name)
}

// exchange is one request/response pair moving through the pipeline.
type exchange struct {
	req  *http1.Request
	resp *http1.Response
	rw   *responseWriter

	// start of the exchange, for the request timer
	started time.Time

	// close the connection after this response is written
	close bool
}

func newExchange() *exchange {
	ex := &exchange{
		req:     http1.AcquireRequest(),
		resp:    http1.AcquireResponse(),
		started: time.Now(),
	}
	ex.rw = &responseWriter{resp: ex.resp, done: make(chan struct{})}
	return ex
}

func (ex *exchange) release() {
	http1.ReleaseRequest(ex.req)
	http1.ReleaseResponse(ex.resp)
}

// respond completes the exchange with a ready-made status and body,
// bypassing any handler.
func (ex *exchange) respond(status int, body []byte) {
	ex.rw.Send(status, body)
}

func (srv *Server) serveConn(conn *network.Connection) {
	wq := squeue.New()
	writerDone := make(chan struct{})
	go srv.writeLoop(conn, wq, writerDone)

	for {
		ex, stop := srv.readExchange(conn, wq)
		if ex != nil {
			if err := wq.Push(ex); err != nil {
				ex.release()
				break
			}
		}
		if stop {
			break
		}
	}

	wq.Close()
	<-writerDone
	conn.Close(network.LocalClose)
}

// interimContinue marks a 100 Continue line queued behind earlier
// responses so interim writes never interleave with a response the
// write loop is producing.
type interimContinue struct{}

// readExchange reads one request from conn and starts its handler.
// A nil exchange with stop=true means the connection is done without
// anything more to write.
func (srv *Server) readExchange(conn *network.Connection, wq *squeue.Queue) (*exchange, bool) {
	// head
	var head http1.RequestHeader
	head.SetMaxHeaderBytes(srv.config.MaxHeaderBytes)
	for {
		if conn.BufferedLen() > 0 {
			_, err := head.Parse(conn.Bytes())
			if err == nil {
				break
			}
			if err != http1.ErrNeedMore {
				return srv.framingErrorExchange(conn, err), true
			}
		}
		srv.moveState(conn, network.StateReadingHead)
		if _, err := conn.Fill(); err != nil {
			return srv.readErrorExchange(conn, err), true
		}
	}

	ex := newExchange()
	ex.req.Header.SetMaxHeaderBytes(srv.config.MaxHeaderBytes)

	// interim response before the client commits to sending the body.
	// It rides the write queue so it cannot interleave with a response
	// the write loop is already producing for an earlier request.
	if head.Expect100Continue() && head.ContentLength() != 0 {
		if err := wq.Push(interimContinue{}); err != nil {
			ex.release()
			return nil, true
		}
	}

	// head plus body
	for {
		n, err := ex.req.Parse(conn.Bytes(), srv.config.MaxBodyBytes)
		if err == nil {
			conn.Drain(n)
			break
		}
		if err != http1.ErrNeedMore {
			ex.release()
			return srv.framingErrorExchange(conn, err), true
		}
		srv.moveState(conn, network.StateReadingBody)
		if _, ferr := conn.Fill(); ferr != nil {
			ex.release()
			return srv.readErrorExchange(conn, ferr), true
		}
	}

	srv.moveState(conn, network.StateHandling)
	stats.DownstreamRequestsTotal.Inc(1)
	stats.DownstreamRequestsActive.Inc(1)

	if ex.req.Header.IsHead() {
		ex.resp.SkipBody = true
	}
	ex.close = !ex.req.Header.KeepAlive()

	srv.dispatch(conn, ex)
	return ex, ex.close
}

// dispatch resolves the handler and runs its capability on the worker
// pool. Responses for unroutable requests are completed inline.
func (srv *Server) dispatch(conn *network.Connection, ex *exchange) {
	path := ex.req.Header.RequestURI()
	if i := bytes.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}

	h := srv.router.Resolve(string(path))
	if h == nil {
		ex.respond(http1.StatusNotFound, nil)
		return
	}

	m := ParseMethod(ex.req.Header.Method())
	capability, ok := h.Capability(m)
	if !ok {
		ex.rw.Header().Set("Allow", allowValue(h))
		ex.respond(http1.StatusMethodNotAllowed, nil)
		return
	}

	for i := len(srv.chain) - 1; i >= 0; i-- {
		capability = srv.chain[i](capability)
	}

	ctx := ContextWithRemoteAddr(context.Background(), conn.RemoteAddr())
	ctx = ContextWithConnectionID(ctx, conn.ID())

	task := func() {
		defer func() {
			if p := recover(); p != nil {
				srv.logger.Errorf("handler panic on %s: %v", conn.ID(), p)
				ex.rw.Send(http1.StatusInternalServerError, nil)
			}
		}()
		if err := capability(ctx, ex.req, ex.rw); err != nil {
			srv.logger.Errorf("handler error on %s: %v", conn.ID(), err)
		}
		// a handler that returns without responding is a bug,
		// answer 500 so the exchange can complete
		ex.rw.Send(http1.StatusInternalServerError, nil)
	}
	if err := srv.workers.Serve(task); err != nil {
		ex.respond(http1.StatusServiceUnavailable, nil)
	}
}

// writeLoop pops exchanges in request order and writes each response
// once its handler completes, so pipelined responses never reorder.
func (srv *Server) writeLoop(conn *network.Connection, wq *squeue.Queue, done chan struct{}) {
	defer close(done)

	for {
		v, ok := wq.Pop()
		if !ok {
			return
		}
		if _, interim := v.(interimContinue); interim {
			if err := http1.WriteContinueResponse(conn); err != nil {
				srv.logger.Debugf("interim write failed on %s: %v", conn.ID(), err)
				conn.Close(network.OnWriteErrClose)
				return
			}
			continue
		}
		ex := v.(*exchange)

		select {
		case <-ex.rw.done:
		case <-time.After(srv.config.HandlerTimeout):
			srv.logger.Errorf("%v: abandoning connection %s", ErrHandlerDidNotRespond, conn.ID())
			stats.DownstreamRequestsActive.Dec(1)
			// the stuck handler still holds the request and the writer.
			// Releasing them here would hand the pooled objects to
			// another exchange while a late Send can still mutate them,
			// so the exchange is abandoned to the garbage collector.
			ex.rw.abandon()
			conn.Close(network.LocalClose)
			return
		}

		if ex.close {
			ex.resp.Header.SetConnectionClose()
		}

		srv.moveState(conn, network.StateWritingHead)
		srv.moveState(conn, network.StateWritingBody)
		err := ex.resp.Write(conn)

		stats.DownstreamRequestsActive.Dec(1)
		stats.RequestTimer.UpdateSince(ex.started)
		closeAfter := ex.close
		ex.release()

		if err != nil {
			srv.logger.Debugf("write failed on %s: %v", conn.ID(), err)
			conn.Close(network.OnWriteErrClose)
			return
		}
		if closeAfter {
			srv.moveState(conn, network.StateClosing)
			return
		}
		srv.moveState(conn, network.StateIdle)
	}
}

// framingErrorExchange maps a parse failure to the final response of
// the connection.
func (srv *Server) framingErrorExchange(conn *network.Connection, err error) *exchange {
	srv.logger.Debugf("framing error on %s: %v", conn.ID(), err)
	srv.moveState(conn, network.StateClosing)

	status := http1.StatusBadRequest
	if err == http1.ErrBodyTooLarge {
		status = http1.StatusPayloadTooLarge
	} else if err == http1.ErrHeadersTooLarge {
		status = http1.StatusHeaderFieldsTooLarge
	}
	ex := newExchange()
	ex.close = true
	ex.respond(status, nil)
	return ex
}

// readErrorExchange maps a socket failure while reading. A timeout
// with a partially received head answers 408, everything else closes
// quietly.
func (srv *Server) readErrorExchange(conn *network.Connection, err error) *exchange {
	srv.moveState(conn, network.StateClosing)
	if nerr, ok := err.(net.Error); ok && nerr.Timeout() && conn.BufferedLen() > 0 {
		ex := newExchange()
		ex.close = true
		ex.respond(http1.StatusRequestTimeout, nil)
		return ex
	}
	srv.logger.Debugf("read loop done on %s: %v", conn.ID(), err)
	return nil
}

// moveState advances the connection state machine. Pipelined
// exchanges overlap the cycle, transitions that lose that race are
// dropped.
func (srv *Server) moveState(conn *network.Connection, s network.ConnState) {
	if err := conn.MoveState(s); err != nil {
		srv.logger.Tracef("state %v skipped on %s", s, conn.ID())
	}
}
