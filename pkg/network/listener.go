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

package network

import (
	"context"
	"crypto/tls"
	"net"
	"runtime/debug"
	"time"

	reuseport "github.com/kavu/go_reuseport"
	"golang.org/x/time/rate"

	"conduit/pkg/log"
	"conduit/pkg/stls"
)

// first byte of a TLS handshake record
const recordTypeHandshake = 0x16

// listener impl based on golang net package
type listener struct {
	name         string
	addr         string
	localAddress net.Addr
	reusePort    bool
	tlsConfig    *tls.Config
	limiter      *rate.Limiter
	cb           ListenerEventListener
	rawl         net.Listener
	logger       log.Logger
}

// ListenerConfig carries what NewListener needs.
type ListenerConfig struct {
	Name      string
	Addr      string
	ReusePort bool

	// TLSConfig wraps accepted connections when non-nil.
	TLSConfig *tls.Config

	// AcceptRate and AcceptBurst bound the accept loop. Zero rate
	// means unlimited.
	AcceptRate  float64
	AcceptBurst int

	Logger log.Logger
}

func NewListener(lc *ListenerConfig) Listener {
	l := &listener{
		name:      lc.Name,
		addr:      lc.Addr,
		reusePort: lc.ReusePort,
		tlsConfig: lc.TLSConfig,
		logger:    lc.Logger,
	}
	if l.logger == nil {
		l.logger = log.DefaultLogger
	}
	if lc.AcceptRate > 0 {
		burst := lc.AcceptBurst
		if burst <= 0 {
			burst = 1
		}
		l.limiter = rate.NewLimiter(rate.Limit(lc.AcceptRate), burst)
	}
	return l
}

func (l *listener) Name() string {
	return l.name
}

func (l *listener) Addr() net.Addr {
	return l.localAddress
}

func (l *listener) SetListenerCallbacks(cb ListenerEventListener) {
	l.cb = cb
}

func (l *listener) GetListenerCallbacks() ListenerEventListener {
	return l.cb
}

func (l *listener) Start(lctx context.Context) {
	if l.rawl == nil {
		if err := l.listen(lctx); err != nil {
			l.logger.Fatalf("%s listen failed: %v", l.name, err)
			return
		}
	}

	for {
		if err := l.accept(lctx); err != nil {
			if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
				l.logger.Infof("listener stop accepting connections by deadline: %s", l.name)
				return
			} else if ope, ok := err.(*net.OpError); ok {
				if !(ope.Timeout() && ope.Temporary()) {
					// non-recoverable
					if ope.Op == "accept" {
						l.logger.Infof("listener closed: %s %v", l.name, l.Addr())
					} else {
						l.logger.Errorf("listener occurs non-recoverable error, stop listening and accepting: %s %v", l.name, err)
					}
					return
				}
			} else {
				l.logger.Errorf("listener occurs unknown error while accepting: %s %v", l.name, err)
			}
		}
	}
}

// Stop stops accepting by putting the listening socket past its
// deadline. The socket itself stays open so Start can be resumed.
func (l *listener) Stop() error {
	if tl, ok := l.rawl.(*net.TCPListener); ok {
		return tl.SetDeadline(time.Now())
	}
	return l.rawl.Close()
}

func (l *listener) Close(lctx context.Context) error {
	if l.cb != nil {
		l.cb.OnClose()
	}
	return l.rawl.Close()
}

func (l *listener) listen(lctx context.Context) error {
	var rawl net.Listener
	var err error
	if l.reusePort {
		rawl, err = reuseport.NewReusablePortListener("tcp4", l.addr)
	} else {
		rawl, err = net.Listen("tcp", l.addr)
	}
	if err != nil {
		return err
	}
	l.rawl = rawl
	l.localAddress = rawl.Addr()
	return nil
}

func (l *listener) accept(lctx context.Context) error {
	if l.limiter != nil {
		if err := l.limiter.Wait(lctx); err != nil {
			return err
		}
	}

	rawc, err := l.rawl.Accept()
	if err != nil {
		return err
	}

	// async
	go func() {
		defer func() {
			if p := recover(); p != nil {
				l.logger.Errorf("panic serving %v: %v", rawc.RemoteAddr(), p)

				debug.PrintStack()
			}
		}()

		if l.tlsConfig != nil {
			// peek one byte to let plaintext clients through on a TLS
			// enabled listener
			sc := &stls.Conn{Conn: rawc}
			if b := sc.Peek(); len(b) > 0 && b[0] == recordTypeHandshake {
				rawc = &stls.TLSConn{Conn: tls.Server(sc, l.tlsConfig)}
			} else {
				rawc = sc
			}
		}

		l.cb.OnAccept(rawc)
	}()

	return nil
}
