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
	"io"
	"sync/atomic"

	"conduit/pkg/protocol/http1"
)

// responseWriter is the ResponseWriter handed to capabilities. The
// response is buffered and written by the connection's write loop once
// this exchange's turn comes, so pipelined responses keep request
// order.
type responseWriter struct {
	resp *http1.Response
	sent int32
	done chan struct{}
}

func (w *responseWriter) Header() *http1.ResponseHeader {
	return &w.resp.Header
}

func (w *responseWriter) Send(status int, body []byte) error {
	if !atomic.CompareAndSwapInt32(&w.sent, 0, 1) {
		return ErrResponseAlreadySent
	}
	w.resp.SetStatusCode(status)
	if len(body) > 0 {
		w.resp.SetBody(body)
	}
	close(w.done)
	return nil
}

func (w *responseWriter) SendStream(status int) (io.WriteCloser, error) {
	if !atomic.CompareAndSwapInt32(&w.sent, 0, 1) {
		return nil, ErrResponseAlreadySent
	}
	w.resp.SetStatusCode(status)
	return &bodyStream{w: w}, nil
}

// responded reports whether the handler claimed the exchange.
func (w *responseWriter) responded() bool {
	return atomic.LoadInt32(&w.sent) == 1
}

// abandon claims the writer so a late handler Send can no longer touch
// the response. It reports whether the claim won; false means the
// handler already holds the response.
func (w *responseWriter) abandon() bool {
	return atomic.CompareAndSwapInt32(&w.sent, 0, 1)
}

// bodyStream buffers handler produced body pieces. Close completes
// the exchange.
type bodyStream struct {
	w      *responseWriter
	closed int32
}

func (s *bodyStream) Write(p []byte) (int, error) {
	if atomic.LoadInt32(&s.closed) == 1 {
		return 0, http1.ErrUnexpectedBodyData
	}
	s.w.resp.AppendBody(p)
	return len(p), nil
}

func (s *bodyStream) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil
	}
	close(s.w.done)
	return nil
}
