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

package http1

import (
	"io"
	"sync"

	"conduit/utils"
)

var (
	requestPool     sync.Pool
	requestBodyPool Pool
)

var copyBufPool = sync.Pool{
	New: func() interface{} {
		return make([]byte, 4096)
	},
}

// AcquireRequest returns an empty Request instance from the pool.
//
// The returned Request instance may be passed to ReleaseRequest when it
// is no longer needed. This allows Request recycling, reduces GC
// pressure and usually improves performance.
func AcquireRequest() *Request {
	v := requestPool.Get()
	if v == nil {
		return &Request{}
	}
	return v.(*Request)
}

// ReleaseRequest returns req acquired via AcquireRequest to the pool.
//
// It is forbidden accessing req and/or its members after returning
// it to the pool.
func ReleaseRequest(req *Request) {
	req.Reset()
	requestPool.Put(req)
}

// Request represents an HTTP request.
//
// It is forbidden copying Request instances. Create new instances
// and use CopyTo instead.
//
// Request instance MUST NOT be used from concurrently running goroutines.
type Request struct {
	noCopy utils.NoCopy

	// Request header
	//
	// Copying Header by value is forbidden. Use pointer to Header instead.
	Header RequestHeader

	bodyStream io.Reader
	body       *ByteBuffer

	trailer []utils.ArgsKV
}

func (req *Request) Reset() {
	req.Header.Reset()
	req.ResetBody()
}

// ResetBody resets request body.
func (req *Request) ResetBody() {
	req.closeBodyStream()
	req.trailer = req.trailer[:0]
	if req.body != nil {
		requestBodyPool.Put(req.body)
		req.body = nil
	}
}

// Body returns request body.
func (req *Request) Body() []byte {
	if req.bodyStream != nil {
		bodyBuf := req.bodyBuffer()
		bodyBuf.Reset()
		_, err := copyZeroAlloc(bodyBuf, req.bodyStream)
		req.closeBodyStream()
		if err != nil {
			bodyBuf.SetString(err.Error())
		}
	}
	return req.bodyBytes()
}

// SetBody sets request body and a matching Content-Length.
func (req *Request) SetBody(body []byte) {
	req.closeBodyStream()
	req.bodyBuffer().Set(body)
	req.Header.SetContentLength(len(body))
}

// SetBodyString sets request body and a matching Content-Length.
func (req *Request) SetBodyString(body string) {
	req.closeBodyStream()
	req.bodyBuffer().SetString(body)
	req.Header.SetContentLength(len(body))
}

// AppendBody appends p to request body.
func (req *Request) AppendBody(p []byte) {
	req.closeBodyStream()
	req.bodyBuffer().Write(p)
}

// SetBodyStream sets request body stream and, if bodySize is >= 0,
// a matching Content-Length. A negative bodySize selects chunked
// transfer encoding.
func (req *Request) SetBodyStream(bodyStream io.Reader, bodySize int) {
	req.ResetBody()
	req.bodyStream = bodyStream
	req.Header.SetContentLength(bodySize)
}

// IsBodyStream reports whether the body is fed from a stream.
func (req *Request) IsBodyStream() bool {
	return req.bodyStream != nil
}

// Trailer returns the trailer fields decoded after a chunked body.
func (req *Request) Trailer() []utils.ArgsKV {
	return req.trailer
}

func (req *Request) bodyBytes() []byte {
	if req.body == nil {
		return nil
	}
	return req.body.B
}

func (req *Request) bodyBuffer() *ByteBuffer {
	if req.body == nil {
		req.body = requestBodyPool.Get()
	}
	return req.body
}

func (req *Request) closeBodyStream() error {
	if req.bodyStream == nil {
		return nil
	}
	var err error
	if bsc, ok := req.bodyStream.(io.Closer); ok {
		err = bsc.Close()
	}
	req.bodyStream = nil
	return err
}

// CopyTo copies req contents to dst except of body stream.
func (req *Request) CopyTo(dst *Request) {
	dst.Reset()
	req.Header.CopyTo(&dst.Header)
	dst.trailer = utils.CopyArgs(dst.trailer, req.trailer)
	if req.body != nil {
		dst.bodyBuffer().Set(req.body.B)
	} else if dst.body != nil {
		dst.body.Reset()
	}
}

// Parse decodes a complete request from data, returning the number of
// consumed bytes. ErrNeedMore is returned until data holds the whole
// head and body.
func (req *Request) Parse(data []byte, maxBodySize int) (int, error) {
	n, err := req.Header.Parse(data)
	if err != nil {
		return 0, err
	}

	contentLength := req.Header.ContentLength()
	if contentLength == 0 {
		return n, nil
	}

	if contentLength == -1 {
		body, trailer, m, err := readBodyChunked(data[n:], maxBodySize, req.bodyBuffer().B)
		req.bodyBuffer().B = body
		if err != nil {
			return 0, err
		}
		req.trailer = trailer
		req.Header.SetContentLength(len(body))
		return n + m, nil
	}

	if maxBodySize > 0 && contentLength > maxBodySize {
		return 0, ErrBodyTooLarge
	}
	body, m, err := readBodyFixedSize(data[n:], contentLength, req.bodyBuffer().B)
	req.bodyBuffer().B = body
	if err != nil {
		return 0, err
	}
	return n + m, nil
}

// Write serializes the request head and body to w.
//
// Write does not flush the request to w for performance reasons.
func (req *Request) Write(w io.Writer) error {
	if req.bodyStream != nil {
		return req.writeBodyStream(w)
	}

	body := req.bodyBytes()
	if len(body) > 0 {
		req.Header.SetContentLength(len(body))
	} else if !req.Header.NoBody() {
		// methods that may carry a body advertise an explicit zero
		req.Header.SetContentLength(0)
	}
	if _, err := w.Write(req.Header.Header()); err != nil {
		return err
	}
	if len(body) > 0 {
		_, err := w.Write(body)
		return err
	}
	return nil
}

func (req *Request) writeBodyStream(w io.Writer) error {
	contentLength := req.Header.ContentLength()
	if _, err := w.Write(req.Header.Header()); err != nil {
		return err
	}
	var bw *BodyWriter
	if contentLength >= 0 {
		bw = NewFixedBodyWriter(w, contentLength)
	} else {
		bw = NewChunkedBodyWriter(w)
	}
	if _, err := copyZeroAlloc(bw, req.bodyStream); err != nil {
		req.closeBodyStream()
		return err
	}
	req.closeBodyStream()
	return bw.Finish(req.trailer)
}

func copyZeroAlloc(w io.Writer, r io.Reader) (int64, error) {
	vbuf := copyBufPool.Get()
	buf := vbuf.([]byte)
	n, err := io.CopyBuffer(w, r, buf)
	copyBufPool.Put(vbuf)
	return n, err
}
