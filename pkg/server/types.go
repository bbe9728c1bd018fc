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
	"context"
	"errors"
	"io"
	"net"
	"sort"
	"sync"

	"conduit/pkg/protocol/http1"
)

// Method is a fixed enumeration of the HTTP methods a handler may
// implement a capability for.
type Method int

const (
	MethodUnknown Method = iota
	MethodGet
	MethodPost
	MethodPut
	MethodDelete
	MethodHead
	MethodOptions
)

var methodNames = map[Method]string{
	MethodGet:     "GET",
	MethodPost:    "POST",
	MethodPut:     "PUT",
	MethodDelete:  "DELETE",
	MethodHead:    "HEAD",
	MethodOptions: "OPTIONS",
}

func (m Method) String() string {
	if s, ok := methodNames[m]; ok {
		return s
	}
	return "UNKNOWN"
}

// ParseMethod maps a request method token to its Method variant.
func ParseMethod(token []byte) Method {
	switch string(token) {
	case "GET":
		return MethodGet
	case "POST":
		return MethodPost
	case "PUT":
		return MethodPut
	case "DELETE":
		return MethodDelete
	case "HEAD":
		return MethodHead
	case "OPTIONS":
		return MethodOptions
	}
	return MethodUnknown
}

// ErrResponseAlreadySent is returned by Send when a handler responds
// more than once on an exchange.
var ErrResponseAlreadySent = errors.New("response already sent")

// ErrHandlerDidNotRespond marks an exchange whose handler neither sent
// a response nor finished within the handler timeout.
var ErrHandlerDidNotRespond = errors.New("handler did not respond")

// ResponseWriter is the send surface passed to a capability. A handler
// must respond exactly once, either via Send or by closing the stream
// returned from SendStream.
type ResponseWriter interface {
	// Header returns the response header for the exchange. Mutations
	// before Send/SendStream are serialized with the response.
	Header() *http1.ResponseHeader

	// Send writes status and body and completes the exchange.
	Send(status int, body []byte) error

	// SendStream begins a response whose body is produced
	// incrementally. Closing the returned writer completes the
	// exchange; until then the response is not eligible for writing.
	SendStream(status int) (io.WriteCloser, error)
}

// CapabilityFunc is one method implementation of a handler.
type CapabilityFunc func(ctx context.Context, req *http1.Request, w ResponseWriter) error

// Handler exposes per-method capabilities. A missing capability drives
// the 405 path with an Allow header listing the present ones.
type Handler interface {
	Capability(m Method) (CapabilityFunc, bool)

	// Methods returns the methods this handler implements, used to
	// build the Allow header.
	Methods() []Method
}

// HandlerFuncs builds a Handler from optional per-method functions.
type HandlerFuncs struct {
	Get     CapabilityFunc
	Post    CapabilityFunc
	Put     CapabilityFunc
	Delete  CapabilityFunc
	Head    CapabilityFunc
	Options CapabilityFunc
}

func (h HandlerFuncs) Capability(m Method) (CapabilityFunc, bool) {
	var f CapabilityFunc
	switch m {
	case MethodGet:
		f = h.Get
	case MethodPost:
		f = h.Post
	case MethodPut:
		f = h.Put
	case MethodDelete:
		f = h.Delete
	case MethodHead:
		f = h.Head
	case MethodOptions:
		f = h.Options
	}
	return f, f != nil
}

func (h HandlerFuncs) Methods() []Method {
	var ms []Method
	for _, m := range []Method{MethodGet, MethodPost, MethodPut, MethodDelete, MethodHead, MethodOptions} {
		if _, ok := h.Capability(m); ok {
			ms = append(ms, m)
		}
	}
	return ms
}

// Router resolves a request path to a handler, nil when absent.
type Router interface {
	Resolve(path string) Handler
}

// RouterFunc adapts a function to the Router interface.
type RouterFunc func(path string) Handler

func (f RouterFunc) Resolve(path string) Handler {
	return f(path)
}

// RouteMux is an exact-match path router.
type RouteMux struct {
	mu     sync.RWMutex
	routes map[string]Handler
}

func NewRouteMux() *RouteMux {
	return &RouteMux{routes: make(map[string]Handler)}
}

// Handle registers h for path, replacing any prior registration.
func (r *RouteMux) Handle(path string, h Handler) {
	r.mu.Lock()
	r.routes[path] = h
	r.mu.Unlock()
}

func (r *RouteMux) Resolve(path string) Handler {
	r.mu.RLock()
	h := r.routes[path]
	r.mu.RUnlock()
	return h
}

// Middleware wraps a capability with cross-cutting behavior such as
// authentication or rate limiting.
type Middleware func(next CapabilityFunc) CapabilityFunc

// allowValue builds the Allow header value from a handler's methods.
func allowValue(h Handler) string {
	ms := h.Methods()
	names := make([]string, 0, len(ms))
	for _, m := range ms {
		names = append(names, m.String())
	}
	sort.Strings(names)
	v := ""
	for i, n := range names {
		if i > 0 {
			v += ", "
		}
		v += n
	}
	return v
}

type ctxKey int

const (
	ctxKeyRemoteAddr ctxKey = iota
	ctxKeyConnectionID
)

// ContextWithRemoteAddr stores the peer address of an exchange.
func ContextWithRemoteAddr(ctx context.Context, addr net.Addr) context.Context {
	return context.WithValue(ctx, ctxKeyRemoteAddr, addr)
}

// ContextWithConnectionID stores the connection id of an exchange.
func ContextWithConnectionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyConnectionID, id)
}

// RemoteAddrFromContext returns the peer address of the exchange.
func RemoteAddrFromContext(ctx context.Context) net.Addr {
	addr, _ := ctx.Value(ctxKeyRemoteAddr).(net.Addr)
	return addr
}

// ConnectionIDFromContext returns the connection id of the exchange.
func ConnectionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyConnectionID).(string)
	return id
}
