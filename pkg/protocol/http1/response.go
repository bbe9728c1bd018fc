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
	responsePool     sync.Pool
	responseBodyPool Pool
)

// AcquireResponse returns an empty Response instance from the pool.
//
// The returned Response instance may be passed to ReleaseResponse when
// it is no longer needed.
func AcquireResponse() *Response {
	v := responsePool.Get()
	if v == nil {
		return &Response{}
	}
	return v.(*Response)
}

// ReleaseResponse returns resp acquired via AcquireResponse to the pool.
//
// It is forbidden accessing resp and/or its members after returning
// it to the pool.
func ReleaseResponse(resp *Response) {
	resp.Reset()
	responsePool.Put(resp)
}

// Response represents an HTTP response.
//
// It is forbidden copying Response instances. Create new instances
// and use CopyTo instead.
//
// Response instance MUST NOT be used from concurrently running goroutines.
type Response struct {
	noCopy utils.NoCopy

	// Response header
	//
	// Copying Header by value is forbidden. Use pointer to Header instead.
	Header ResponseHeader

	bodyStream io.Reader
	body       *ByteBuffer

	trailer []utils.ArgsKV

	// SkipBody suppresses body decoding on Parse and body writing on
	// Write. Set it when the exchange is a HEAD request.
	SkipBody bool

	bodyUntilClose bool
}

func (resp *Response) Reset() {
	resp.Header.Reset()
	resp.ResetBody()
	resp.SkipBody = false
	resp.bodyUntilClose = false
}

// ResetBody resets response body.
func (resp *Response) ResetBody() {
	resp.closeBodyStream()
	resp.trailer = resp.trailer[:0]
	if resp.body != nil {
		responseBodyPool.Put(resp.body)
		resp.body = nil
	}
}

// StatusCode returns response status code.
func (resp *Response) StatusCode() int {
	return resp.Header.StatusCode()
}

// SetStatusCode sets response status code.
func (resp *Response) SetStatusCode(statusCode int) {
	resp.Header.SetStatusCode(statusCode)
}

// Body returns response body.
func (resp *Response) Body() []byte {
	if resp.bodyStream != nil {
		bodyBuf := resp.bodyBuffer()
		bodyBuf.Reset()
		_, err := copyZeroAlloc(bodyBuf, resp.bodyStream)
		resp.closeBodyStream()
		if err != nil {
			bodyBuf.SetString(err.Error())
		}
	}
	return resp.bodyBytes()
}

// SetBody sets response body and a matching Content-Length.
func (resp *Response) SetBody(body []byte) {
	resp.closeBodyStream()
	resp.bodyBuffer().Set(body)
	resp.Header.SetContentLength(len(body))
}

// SetBodyString sets response body and a matching Content-Length.
func (resp *Response) SetBodyString(body string) {
	resp.closeBodyStream()
	resp.bodyBuffer().SetString(body)
	resp.Header.SetContentLength(len(body))
}

// AppendBody appends p to response body.
func (resp *Response) AppendBody(p []byte) {
	resp.closeBodyStream()
	resp.bodyBuffer().Write(p)
}

// AppendBodyRaw appends p without touching headers. Used for bodies
// terminated by connection close.
func (resp *Response) AppendBodyRaw(p []byte) {
	resp.bodyBuffer().Write(p)
}

// SetBodyStream sets response body stream and, if bodySize is >= 0,
// a matching Content-Length. A negative bodySize selects chunked
// transfer encoding.
func (resp *Response) SetBodyStream(bodyStream io.Reader, bodySize int) {
	resp.ResetBody()
	resp.bodyStream = bodyStream
	resp.Header.SetContentLength(bodySize)
}

// IsBodyStream reports whether the body is fed from a stream.
func (resp *Response) IsBodyStream() bool {
	return resp.bodyStream != nil
}

// Trailer returns the trailer fields decoded after a chunked body.
func (resp *Response) Trailer() []utils.ArgsKV {
	return resp.trailer
}

// BodyUntilClose reports whether the body length was not determinable
// from the head and the remainder of the stream is the body.
func (resp *Response) BodyUntilClose() bool {
	return resp.bodyUntilClose
}

func (resp *Response) bodyBytes() []byte {
	if resp.body == nil {
		return nil
	}
	return resp.body.B
}

func (resp *Response) bodyBuffer() *ByteBuffer {
	if resp.body == nil {
		resp.body = responseBodyPool.Get()
	}
	return resp.body
}

func (resp *Response) closeBodyStream() error {
	if resp.bodyStream == nil {
		return nil
	}
	var err error
	if bsc, ok := resp.bodyStream.(io.Closer); ok {
		err = bsc.Close()
	}
	resp.bodyStream = nil
	return err
}

// CopyTo copies resp contents to dst except of body stream.
func (resp *Response) CopyTo(dst *Response) {
	dst.Reset()
	resp.Header.CopyTo(&dst.Header)
	dst.SkipBody = resp.SkipBody
	dst.bodyUntilClose = resp.bodyUntilClose
	dst.trailer = utils.CopyArgs(dst.trailer, resp.trailer)
	if resp.body != nil {
		dst.bodyBuffer().Set(resp.body.B)
	} else if dst.body != nil {
		dst.body.Reset()
	}
}

// Parse decodes a response from data, returning the number of consumed
// bytes. ErrNeedMore is returned until data holds the whole head and
// body. When the head carries no length information, the head alone is
// consumed and BodyUntilClose reports true; the caller owns the rest
// of the stream.
func (resp *Response) Parse(data []byte, maxBodySize int) (int, error) {
	n, err := resp.Header.Parse(data)
	if err != nil {
		return 0, err
	}

	if resp.SkipBody || resp.Header.mustSkipContentLength() {
		return n, nil
	}

	contentLength := resp.Header.ContentLength()
	switch {
	case contentLength == 0:
		return n, nil
	case contentLength == -1:
		body, trailer, m, err := readBodyChunked(data[n:], maxBodySize, resp.bodyBuffer().B)
		resp.bodyBuffer().B = body
		if err != nil {
			return 0, err
		}
		resp.trailer = trailer
		resp.Header.SetContentLength(len(body))
		return n + m, nil
	case contentLength == -2:
		resp.bodyUntilClose = true
		resp.Header.SetConnectionClose()
		return n, nil
	}

	if maxBodySize > 0 && contentLength > maxBodySize {
		return 0, ErrBodyTooLarge
	}
	body, m, err := readBodyFixedSize(data[n:], contentLength, resp.bodyBuffer().B)
	resp.bodyBuffer().B = body
	if err != nil {
		return 0, err
	}
	return n + m, nil
}

// WriteContinueResponse writes an interim "100 Continue" line to w.
// Used before reading the body of a request carrying
// "Expect: 100-continue".
func WriteContinueResponse(w io.Writer) error {
	_, err := w.Write(strResponseContinue)
	return err
}

// Write serializes the response head and body to w.
//
// Write does not flush the response to w for performance reasons.
func (resp *Response) Write(w io.Writer) error {
	if resp.bodyStream != nil {
		return resp.writeBodyStream(w)
	}

	body := resp.bodyBytes()
	if !resp.Header.mustSkipContentLength() {
		resp.Header.SetContentLength(len(body))
	}
	if _, err := w.Write(resp.Header.Header()); err != nil {
		return err
	}
	if !resp.SkipBody && len(body) > 0 {
		_, err := w.Write(body)
		return err
	}
	return nil
}

func (resp *Response) writeBodyStream(w io.Writer) error {
	contentLength := resp.Header.ContentLength()
	if _, err := w.Write(resp.Header.Header()); err != nil {
		return err
	}
	if resp.SkipBody {
		resp.closeBodyStream()
		return nil
	}
	var bw *BodyWriter
	if contentLength >= 0 {
		bw = NewFixedBodyWriter(w, contentLength)
	} else {
		bw = NewChunkedBodyWriter(w)
	}
	if _, err := copyZeroAlloc(bw, resp.bodyStream); err != nil {
		resp.closeBodyStream()
		return err
	}
	resp.closeBodyStream()
	return bw.Finish(resp.trailer)
}
