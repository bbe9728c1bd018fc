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
	"bytes"
	"strings"
	"sync/atomic"
	"time"

	"conduit/utils"
)

// Parse limits. Engines may tighten or relax these at startup before
// serving traffic.
var (
	// MaxStartLineBytes bounds the request line and the status line.
	MaxStartLineBytes = 8 << 10

	// MaxHeaderBytes bounds the whole header block including the start
	// line and the terminating empty line. Headers with an explicit
	// SetMaxHeaderBytes override it.
	MaxHeaderBytes = 64 << 10
)

// RequestHeader represents an HTTP request header.
//
// It is forbidden copying RequestHeader instances.
// Create new instances instead and use CopyTo.
//
// RequestHeader instance MUST NOT be used from concurrently running
// goroutines.
type RequestHeader struct {
	noCopy utils.NoCopy

	noHTTP11        bool
	connectionClose bool
	isGet           bool

	contentLength      int
	contentLengthBytes []byte
	maxHeaderBytes     int

	method      []byte
	requestURI  []byte
	host        []byte
	contentType []byte
	userAgent   []byte

	h     []utils.ArgsKV
	bufKV utils.ArgsKV
}

// ResponseHeader represents an HTTP response header.
//
// It is forbidden copying ResponseHeader instances.
// Create new instances instead and use CopyTo.
type ResponseHeader struct {
	noCopy utils.NoCopy

	noHTTP11        bool
	connectionClose bool

	statusCode         int
	statusMessage      []byte
	contentLength      int
	contentLengthBytes []byte
	maxHeaderBytes     int

	contentType []byte
	server      []byte

	h     []utils.ArgsKV
	bufKV utils.ArgsKV
}

// StatusCode returns response status code.
func (h *ResponseHeader) StatusCode() int {
	if h.statusCode == 0 {
		return StatusOK
	}
	return h.statusCode
}

// SetStatusCode sets response status code. The canonical reason phrase
// is substituted on serialization.
func (h *ResponseHeader) SetStatusCode(statusCode int) {
	h.statusCode = statusCode
	h.statusMessage = h.statusMessage[:0]
}

// StatusMessage returns the reason phrase carried on the status line.
func (h *ResponseHeader) StatusMessage() []byte {
	if len(h.statusMessage) == 0 {
		return utils.S2b(StatusReason(h.StatusCode()))
	}
	return h.statusMessage
}

// ConnectionClose returns true if 'Connection: close' header is set.
func (h *ResponseHeader) ConnectionClose() bool {
	return h.connectionClose
}

// SetConnectionClose sets 'Connection: close' header.
func (h *ResponseHeader) SetConnectionClose() {
	h.connectionClose = true
}

// ResetConnectionClose clears 'Connection: close' header if it exists.
func (h *ResponseHeader) ResetConnectionClose() {
	if h.connectionClose {
		h.connectionClose = false
		h.h = utils.DelAllArgsBytes(h.h, strConnection)
	}
}

// ConnectionClose returns true if 'Connection: close' header is set.
func (h *RequestHeader) ConnectionClose() bool {
	return h.connectionClose
}

// SetConnectionClose sets 'Connection: close' header.
func (h *RequestHeader) SetConnectionClose() {
	h.connectionClose = true
}

// ResetConnectionClose clears 'Connection: close' header if it exists.
func (h *RequestHeader) ResetConnectionClose() {
	if h.connectionClose {
		h.connectionClose = false
		h.h = utils.DelAllArgsBytes(h.h, strConnection)
	}
}

// ConnectionUpgrade returns true if 'Connection: Upgrade' header is set.
func (h *RequestHeader) ConnectionUpgrade() bool {
	return hasHeaderValue(h.Peek("Connection"), strUpgrade)
}

// KeepAlive reports whether the connection may carry another exchange
// after this request. HTTP/1.1 defaults to keep-alive, HTTP/1.0 needs
// an explicit 'Connection: keep-alive', and 'Connection: close' always
// wins.
func (h *RequestHeader) KeepAlive() bool {
	if h.connectionClose {
		return false
	}
	if !h.noHTTP11 {
		return true
	}
	v := utils.PeekArgBytes(h.h, strConnection)
	return hasHeaderValue(v, strKeepAlive) || hasHeaderValue(v, strKeepAliveCamelCase)
}

// KeepAlive reports whether the connection may be reused after this
// response. Responses with no determinable body length force a close.
func (h *ResponseHeader) KeepAlive() bool {
	if h.connectionClose {
		return false
	}
	if h.contentLength == -2 && !h.mustSkipContentLength() {
		return false
	}
	if !h.noHTTP11 {
		return true
	}
	v := utils.PeekArgBytes(h.h, strConnection)
	return hasHeaderValue(v, strKeepAlive) || hasHeaderValue(v, strKeepAliveCamelCase)
}

// SetMaxHeaderBytes bounds the header block for subsequent Parse calls
// on this header. Zero applies the package default.
func (h *RequestHeader) SetMaxHeaderBytes(n int) {
	h.maxHeaderBytes = n
}

// SetMaxHeaderBytes bounds the header block for subsequent Parse calls
// on this header. Zero applies the package default.
func (h *ResponseHeader) SetMaxHeaderBytes(n int) {
	h.maxHeaderBytes = n
}

// Expect100Continue returns true if the request carries
// 'Expect: 100-continue'.
func (h *RequestHeader) Expect100Continue() bool {
	return bytes.Equal(utils.PeekArgBytes(h.h, strExpect), str100Continue)
}

// ContentLength returns Content-Length header value.
//
// It may be negative:
// -1 means Transfer-Encoding: chunked.
// -2 means no length information is present.
func (h *ResponseHeader) ContentLength() int {
	return h.contentLength
}

// SetContentLength sets Content-Length header value.
//
// Negative content-length sets 'Transfer-Encoding: chunked' header.
func (h *ResponseHeader) SetContentLength(contentLength int) {
	if h.mustSkipContentLength() {
		return
	}
	h.contentLength = contentLength
	if contentLength >= 0 {
		h.contentLengthBytes = utils.AppendUint(h.contentLengthBytes[:0], contentLength)
		h.h = utils.DelAllArgsBytes(h.h, strTransferEncoding)
	} else {
		h.contentLengthBytes = h.contentLengthBytes[:0]
		value := strChunked
		if contentLength == -2 {
			h.SetConnectionClose()
			value = strIdentity
		}
		h.h = utils.SetArgBytes(h.h, strTransferEncoding, value)
	}
}

func (h *ResponseHeader) mustSkipContentLength() bool {
	// All 1xx, 204 and 304 responses must not include a message body.
	statusCode := h.StatusCode()

	if statusCode < 100 || statusCode == StatusOK {
		return false
	}
	return statusCode == StatusNotModified || statusCode == StatusNoContent || statusCode < 200
}

// ContentLength returns Content-Length header value.
//
// It may be negative:
// -1 means Transfer-Encoding: chunked.
// -2 means no length information is present.
func (h *RequestHeader) ContentLength() int {
	return h.contentLength
}

// SetContentLength sets Content-Length header value.
//
// Negative content-length sets 'Transfer-Encoding: chunked' header.
func (h *RequestHeader) SetContentLength(contentLength int) {
	h.contentLength = contentLength
	if contentLength >= 0 {
		h.contentLengthBytes = utils.AppendUint(h.contentLengthBytes[:0], contentLength)
		h.h = utils.DelAllArgsBytes(h.h, strTransferEncoding)
	} else {
		h.contentLengthBytes = h.contentLengthBytes[:0]
		h.h = utils.SetArgBytes(h.h, strTransferEncoding, strChunked)
	}
}

// IsChunked returns true if the message body uses chunked transfer
// encoding.
func (h *RequestHeader) IsChunked() bool {
	return h.contentLength == -1
}

// IsChunked returns true if the message body uses chunked transfer
// encoding.
func (h *ResponseHeader) IsChunked() bool {
	return h.contentLength == -1
}

// ContentType returns Content-Type header value.
func (h *ResponseHeader) ContentType() []byte {
	contentType := h.contentType
	if len(h.contentType) == 0 {
		contentType = defaultContentType
	}
	return contentType
}

// SetContentType sets Content-Type header value.
func (h *ResponseHeader) SetContentType(contentType string) {
	h.contentType = append(h.contentType[:0], contentType...)
}

// SetContentTypeBytes sets Content-Type header value.
func (h *ResponseHeader) SetContentTypeBytes(contentType []byte) {
	h.contentType = append(h.contentType[:0], contentType...)
}

// Server returns Server header value.
func (h *ResponseHeader) Server() []byte {
	return h.server
}

// SetServer sets Server header value.
func (h *ResponseHeader) SetServer(server string) {
	h.server = append(h.server[:0], server...)
}

// ContentType returns Content-Type header value.
func (h *RequestHeader) ContentType() []byte {
	return h.contentType
}

// SetContentType sets Content-Type header value.
func (h *RequestHeader) SetContentType(contentType string) {
	h.contentType = append(h.contentType[:0], contentType...)
}

// Host returns Host header value.
func (h *RequestHeader) Host() []byte {
	return h.host
}

// SetHost sets Host header value.
func (h *RequestHeader) SetHost(host string) {
	h.host = append(h.host[:0], host...)
}

// SetHostBytes sets Host header value.
func (h *RequestHeader) SetHostBytes(host []byte) {
	h.host = append(h.host[:0], host...)
}

// UserAgent returns User-Agent header value.
func (h *RequestHeader) UserAgent() []byte {
	return h.userAgent
}

// SetUserAgent sets User-Agent header value.
func (h *RequestHeader) SetUserAgent(userAgent string) {
	h.userAgent = append(h.userAgent[:0], userAgent...)
}

// Method returns HTTP request method.
func (h *RequestHeader) Method() []byte {
	if len(h.method) == 0 {
		return strGet
	}
	return h.method
}

// SetMethod sets HTTP request method.
func (h *RequestHeader) SetMethod(method string) {
	h.method = append(h.method[:0], method...)
}

// SetMethodBytes sets HTTP request method.
func (h *RequestHeader) SetMethodBytes(method []byte) {
	h.method = append(h.method[:0], method...)
}

// RequestURI returns RequestURI from the first HTTP request line.
func (h *RequestHeader) RequestURI() []byte {
	requestURI := h.requestURI
	if len(requestURI) == 0 {
		requestURI = strSlash
	}
	return requestURI
}

// SetRequestURI sets RequestURI for the first HTTP request line.
// RequestURI must be properly encoded.
func (h *RequestHeader) SetRequestURI(requestURI string) {
	h.requestURI = append(h.requestURI[:0], requestURI...)
}

// SetRequestURIBytes sets RequestURI for the first HTTP request line.
func (h *RequestHeader) SetRequestURIBytes(requestURI []byte) {
	h.requestURI = append(h.requestURI[:0], requestURI...)
}

// IsGet returns true if request method is GET.
func (h *RequestHeader) IsGet() bool {
	if !h.isGet {
		h.isGet = bytes.Equal(h.Method(), strGet)
	}
	return h.isGet
}

// IsPost returns true if request method is POST.
func (h *RequestHeader) IsPost() bool {
	return bytes.Equal(h.Method(), strPost)
}

// IsPut returns true if request method is PUT.
func (h *RequestHeader) IsPut() bool {
	return bytes.Equal(h.Method(), strPut)
}

// IsHead returns true if request method is HEAD.
func (h *RequestHeader) IsHead() bool {
	if h.isGet {
		return false
	}
	return bytes.Equal(h.Method(), strHead)
}

// IsDelete returns true if request method is DELETE.
func (h *RequestHeader) IsDelete() bool {
	return bytes.Equal(h.Method(), strDelete)
}

// IsOptions returns true if request method is OPTIONS.
func (h *RequestHeader) IsOptions() bool {
	return bytes.Equal(h.Method(), strOptions)
}

// IsHTTP11 returns true if the request is HTTP/1.1.
func (h *RequestHeader) IsHTTP11() bool {
	return !h.noHTTP11
}

// IsHTTP11 returns true if the response is HTTP/1.1.
func (h *ResponseHeader) IsHTTP11() bool {
	return !h.noHTTP11
}

// NoBody returns true for methods that never carry a request body.
func (h *RequestHeader) NoBody() bool {
	return h.IsGet() || h.IsHead()
}

// Len returns the number of headers set,
// i.e. the number of times f is called in VisitAll.
func (h *ResponseHeader) Len() int {
	n := 0
	h.VisitAll(func(k, v []byte) { n++ })
	return n
}

// Len returns the number of headers set,
// i.e. the number of times f is called in VisitAll.
func (h *RequestHeader) Len() int {
	n := 0
	h.VisitAll(func(k, v []byte) { n++ })
	return n
}

// Reset clears response header.
func (h *ResponseHeader) Reset() {
	h.noHTTP11 = false
	h.connectionClose = false

	h.statusCode = 0
	h.statusMessage = h.statusMessage[:0]
	h.contentLength = 0
	h.contentLengthBytes = h.contentLengthBytes[:0]
	h.maxHeaderBytes = 0

	h.contentType = h.contentType[:0]
	h.server = h.server[:0]

	h.h = h.h[:0]
}

// Reset clears request header.
func (h *RequestHeader) Reset() {
	h.noHTTP11 = false
	h.connectionClose = false
	h.isGet = false

	h.contentLength = 0
	h.contentLengthBytes = h.contentLengthBytes[:0]
	h.maxHeaderBytes = 0

	h.method = h.method[:0]
	h.requestURI = h.requestURI[:0]
	h.host = h.host[:0]
	h.contentType = h.contentType[:0]
	h.userAgent = h.userAgent[:0]

	h.h = h.h[:0]
}

// CopyTo copies all the headers to dst.
func (h *ResponseHeader) CopyTo(dst *ResponseHeader) {
	dst.Reset()

	dst.noHTTP11 = h.noHTTP11
	dst.connectionClose = h.connectionClose

	dst.statusCode = h.statusCode
	dst.statusMessage = append(dst.statusMessage[:0], h.statusMessage...)
	dst.contentLength = h.contentLength
	dst.contentLengthBytes = append(dst.contentLengthBytes[:0], h.contentLengthBytes...)
	dst.maxHeaderBytes = h.maxHeaderBytes
	dst.contentType = append(dst.contentType[:0], h.contentType...)
	dst.server = append(dst.server[:0], h.server...)
	dst.h = utils.CopyArgs(dst.h, h.h)
}

// CopyTo copies all the headers to dst.
func (h *RequestHeader) CopyTo(dst *RequestHeader) {
	dst.Reset()

	dst.noHTTP11 = h.noHTTP11
	dst.connectionClose = h.connectionClose
	dst.isGet = h.isGet

	dst.contentLength = h.contentLength
	dst.contentLengthBytes = append(dst.contentLengthBytes[:0], h.contentLengthBytes...)
	dst.maxHeaderBytes = h.maxHeaderBytes
	dst.method = append(dst.method[:0], h.method...)
	dst.requestURI = append(dst.requestURI[:0], h.requestURI...)
	dst.host = append(dst.host[:0], h.host...)
	dst.contentType = append(dst.contentType[:0], h.contentType...)
	dst.userAgent = append(dst.userAgent[:0], h.userAgent...)
	dst.h = utils.CopyArgs(dst.h, h.h)
}

// VisitAll calls f for each header.
//
// f must not retain references to key and/or value after returning.
// Copy key and/or value contents before returning if you need retaining them.
func (h *ResponseHeader) VisitAll(f func(key, value []byte)) {
	if len(h.contentLengthBytes) > 0 {
		f(strContentLength, h.contentLengthBytes)
	}
	contentType := h.ContentType()
	if len(contentType) > 0 {
		f(strContentType, contentType)
	}
	server := h.Server()
	if len(server) > 0 {
		f(strServer, server)
	}
	utils.VisitArgs(h.h, f)
	if h.ConnectionClose() {
		f(strConnection, strClose)
	}
}

// VisitAll calls f for each header.
//
// f must not retain references to key and/or value after returning.
// Copy key and/or value contents before returning if you need retaining them.
func (h *RequestHeader) VisitAll(f func(key, value []byte)) {
	host := h.Host()
	if len(host) > 0 {
		f(strHost, host)
	}
	if len(h.contentLengthBytes) > 0 {
		f(strContentLength, h.contentLengthBytes)
	}
	contentType := h.ContentType()
	if len(contentType) > 0 {
		f(strContentType, contentType)
	}
	userAgent := h.UserAgent()
	if len(userAgent) > 0 {
		f(strUserAgent, userAgent)
	}
	utils.VisitArgs(h.h, f)
	if h.ConnectionClose() {
		f(strConnection, strClose)
	}
}

// Del deletes header with the given key.
func (h *ResponseHeader) Del(key string) {
	k := getHeaderKeyBytes(&h.bufKV, key)
	h.del(k)
}

func (h *ResponseHeader) del(key []byte) {
	switch string(key) {
	case "Content-Type":
		h.contentType = h.contentType[:0]
	case "Server":
		h.server = h.server[:0]
	case "Content-Length":
		h.contentLength = 0
		h.contentLengthBytes = h.contentLengthBytes[:0]
	case "Connection":
		h.connectionClose = false
	}
	h.h = utils.DelAllArgsBytes(h.h, key)
}

// Del deletes header with the given key.
func (h *RequestHeader) Del(key string) {
	k := getHeaderKeyBytes(&h.bufKV, key)
	h.del(k)
}

func (h *RequestHeader) del(key []byte) {
	switch string(key) {
	case "Host":
		h.host = h.host[:0]
	case "Content-Type":
		h.contentType = h.contentType[:0]
	case "User-Agent":
		h.userAgent = h.userAgent[:0]
	case "Content-Length":
		h.contentLength = 0
		h.contentLengthBytes = h.contentLengthBytes[:0]
	case "Connection":
		h.connectionClose = false
	}
	h.h = utils.DelAllArgsBytes(h.h, key)
}

// Add adds the given 'key: value' header.
//
// Multiple headers with the same key may be added with this function.
// Use Set for setting a single header for the given key.
// ErrMalformedHeader is returned for keys carrying whitespace, colons
// or control bytes, and for values carrying CR or LF.
func (h *ResponseHeader) Add(key, value string) error {
	k := getHeaderKeyBytes(&h.bufKV, key)
	if err := validateHeaderKV(k, utils.S2b(value)); err != nil {
		return err
	}
	h.h = utils.AppendArgBytes(h.h, k, utils.S2b(value))
	return nil
}

// AddBytesKV adds the given 'key: value' header.
func (h *ResponseHeader) AddBytesKV(key, value []byte) error {
	h.bufKV.Key = append(h.bufKV.Key[:0], key...)
	normalizeHeaderKey(h.bufKV.Key)
	if err := validateHeaderKV(h.bufKV.Key, value); err != nil {
		return err
	}
	h.h = utils.AppendArgBytes(h.h, h.bufKV.Key, value)
	return nil
}

// Set sets the given 'key: value' header.
//
// Use Add for setting multiple header values under the same key.
// ErrMalformedHeader is returned for keys carrying whitespace, colons
// or control bytes, and for values carrying CR or LF.
func (h *ResponseHeader) Set(key, value string) error {
	initHeaderKV(&h.bufKV, key, value)
	if err := validateHeaderKV(h.bufKV.Key, h.bufKV.Value); err != nil {
		return err
	}
	h.SetCanonical(h.bufKV.Key, h.bufKV.Value)
	return nil
}

// SetBytesKV sets the given 'key: value' header.
func (h *ResponseHeader) SetBytesKV(key, value []byte) error {
	h.bufKV.Key = append(h.bufKV.Key[:0], key...)
	normalizeHeaderKey(h.bufKV.Key)
	if err := validateHeaderKV(h.bufKV.Key, value); err != nil {
		return err
	}
	h.SetCanonical(h.bufKV.Key, value)
	return nil
}

// SetCanonical sets the given 'key: value' header assuming that
// key is in canonical form.
func (h *ResponseHeader) SetCanonical(key, value []byte) {
	switch string(key) {
	case "Content-Type":
		h.SetContentTypeBytes(value)
	case "Server":
		h.server = append(h.server[:0], value...)
	case "Content-Length":
		if contentLength, err := parseContentLength(value); err == nil {
			h.contentLength = contentLength
			h.contentLengthBytes = append(h.contentLengthBytes[:0], value...)
		}
	case "Connection":
		if bytes.Equal(strClose, value) {
			h.SetConnectionClose()
		} else {
			h.ResetConnectionClose()
			h.h = utils.SetArgBytes(h.h, key, value)
		}
	case "Transfer-Encoding":
		// managed by SetContentLength
	case "Date":
		// stamped on serialization
	default:
		h.h = utils.SetArgBytes(h.h, key, value)
	}
}

// Add adds the given 'key: value' header.
//
// Multiple headers with the same key may be added with this function.
// Use Set for setting a single header for the given key.
// ErrMalformedHeader is returned for keys carrying whitespace, colons
// or control bytes, and for values carrying CR or LF.
func (h *RequestHeader) Add(key, value string) error {
	k := getHeaderKeyBytes(&h.bufKV, key)
	if err := validateHeaderKV(k, utils.S2b(value)); err != nil {
		return err
	}
	h.h = utils.AppendArgBytes(h.h, k, utils.S2b(value))
	return nil
}

// AddBytesKV adds the given 'key: value' header.
func (h *RequestHeader) AddBytesKV(key, value []byte) error {
	h.bufKV.Key = append(h.bufKV.Key[:0], key...)
	normalizeHeaderKey(h.bufKV.Key)
	if err := validateHeaderKV(h.bufKV.Key, value); err != nil {
		return err
	}
	h.h = utils.AppendArgBytes(h.h, h.bufKV.Key, value)
	return nil
}

// Set sets the given 'key: value' header.
//
// Use Add for setting multiple header values under the same key.
// ErrMalformedHeader is returned for keys carrying whitespace, colons
// or control bytes, and for values carrying CR or LF.
func (h *RequestHeader) Set(key, value string) error {
	initHeaderKV(&h.bufKV, key, value)
	if err := validateHeaderKV(h.bufKV.Key, h.bufKV.Value); err != nil {
		return err
	}
	h.SetCanonical(h.bufKV.Key, h.bufKV.Value)
	return nil
}

// SetBytesKV sets the given 'key: value' header.
func (h *RequestHeader) SetBytesKV(key, value []byte) error {
	h.bufKV.Key = append(h.bufKV.Key[:0], key...)
	normalizeHeaderKey(h.bufKV.Key)
	if err := validateHeaderKV(h.bufKV.Key, value); err != nil {
		return err
	}
	h.SetCanonical(h.bufKV.Key, value)
	return nil
}

// SetCanonical sets the given 'key: value' header assuming that
// key is in canonical form.
func (h *RequestHeader) SetCanonical(key, value []byte) {
	switch string(key) {
	case "Host":
		h.SetHostBytes(value)
	case "Content-Type":
		h.contentType = append(h.contentType[:0], value...)
	case "User-Agent":
		h.userAgent = append(h.userAgent[:0], value...)
	case "Content-Length":
		if contentLength, err := parseContentLength(value); err == nil {
			h.contentLength = contentLength
			h.contentLengthBytes = append(h.contentLengthBytes[:0], value...)
		}
	case "Connection":
		if bytes.Equal(strClose, value) {
			h.SetConnectionClose()
		} else {
			h.ResetConnectionClose()
			h.h = utils.SetArgBytes(h.h, key, value)
		}
	case "Transfer-Encoding":
		// managed by SetContentLength
	default:
		h.h = utils.SetArgBytes(h.h, key, value)
	}
}

// validateHeaderKV rejects keys that would corrupt the serialized
// header block and values that would smuggle extra header lines.
func validateHeaderKV(key, value []byte) error {
	if len(key) == 0 {
		return ErrMalformedHeader
	}
	for _, c := range key {
		if c == ' ' || c == '\t' || c == ':' || c < 0x20 || c == 0x7f {
			return ErrMalformedHeader
		}
	}
	for _, c := range value {
		if c == '\r' || c == '\n' {
			return ErrMalformedHeader
		}
	}
	return nil
}

// SetOptions applies keyword style options, mapping snake_case keys to
// canonical header names: content_type sets Content-Type. The first
// malformed option aborts with ErrMalformedHeader.
func (h *RequestHeader) SetOptions(opts map[string]string) error {
	for k, v := range opts {
		if err := h.Set(optionHeaderKey(k), v); err != nil {
			return err
		}
	}
	return nil
}

// SetOptions applies keyword style options, mapping snake_case keys to
// canonical header names: content_type sets Content-Type. The first
// malformed option aborts with ErrMalformedHeader.
func (h *ResponseHeader) SetOptions(opts map[string]string) error {
	for k, v := range opts {
		if err := h.Set(optionHeaderKey(k), v); err != nil {
			return err
		}
	}
	return nil
}

func optionHeaderKey(k string) string {
	return strings.ReplaceAll(k, "_", "-")
}

// Location returns the Location header value.
func (h *ResponseHeader) Location() []byte {
	return utils.PeekArgBytes(h.h, strLocation)
}

// Peek returns header value for the given key.
//
// Returned value is valid until the next call to ResponseHeader.
// Do not store references to returned value. Make copies instead.
func (h *ResponseHeader) Peek(key string) []byte {
	k := getHeaderKeyBytes(&h.bufKV, key)
	return h.peek(k)
}

// Peek returns header value for the given key.
//
// Returned value is valid until the next call to RequestHeader.
// Do not store references to returned value. Make copies instead.
func (h *RequestHeader) Peek(key string) []byte {
	k := getHeaderKeyBytes(&h.bufKV, key)
	return h.peek(k)
}

// PeekAll returns every value for the given key in insertion order.
func (h *RequestHeader) PeekAll(key string) [][]byte {
	k := getHeaderKeyBytes(&h.bufKV, key)
	var vv [][]byte
	utils.VisitArgs(h.h, func(hk, hv []byte) {
		if bytes.Equal(hk, k) {
			vv = append(vv, hv)
		}
	})
	return vv
}

// PeekAll returns every value for the given key in insertion order.
func (h *ResponseHeader) PeekAll(key string) [][]byte {
	k := getHeaderKeyBytes(&h.bufKV, key)
	var vv [][]byte
	utils.VisitArgs(h.h, func(hk, hv []byte) {
		if bytes.Equal(hk, k) {
			vv = append(vv, hv)
		}
	})
	return vv
}

func (h *ResponseHeader) peek(key []byte) []byte {
	switch string(key) {
	case "Content-Type":
		return h.ContentType()
	case "Server":
		return h.Server()
	case "Connection":
		if h.ConnectionClose() {
			return strClose
		}
		return utils.PeekArgBytes(h.h, key)
	case "Content-Length":
		return h.contentLengthBytes
	default:
		return utils.PeekArgBytes(h.h, key)
	}
}

func (h *RequestHeader) peek(key []byte) []byte {
	switch string(key) {
	case "Host":
		return h.Host()
	case "Content-Type":
		return h.ContentType()
	case "User-Agent":
		return h.UserAgent()
	case "Connection":
		if h.ConnectionClose() {
			return strClose
		}
		return utils.PeekArgBytes(h.h, key)
	case "Content-Length":
		return h.contentLengthBytes
	default:
		return utils.PeekArgBytes(h.h, key)
	}
}

// Has returns true if the header with the given key exists.
func (h *RequestHeader) Has(key string) bool {
	return len(h.Peek(key)) > 0
}

// Has returns true if the header with the given key exists.
func (h *ResponseHeader) Has(key string) bool {
	return len(h.Peek(key)) > 0
}

func init() {
	refreshServerDate()
	go func() {
		for {
			time.Sleep(time.Second)
			refreshServerDate()
		}
	}()
}

var serverDate atomic.Value

func refreshServerDate() {
	b := utils.AppendHTTPDate(nil, time.Now())
	serverDate.Store(b)
}

// Header returns response header representation.
//
// The returned value is valid until the next call to ResponseHeader methods.
func (h *ResponseHeader) Header() []byte {
	h.bufKV.Value = h.AppendBytes(h.bufKV.Value[:0])
	return h.bufKV.Value
}

// String returns response header representation.
func (h *ResponseHeader) String() string {
	return string(h.Header())
}

// AppendBytes appends response header representation to dst and returns
// the extended dst.
func (h *ResponseHeader) AppendBytes(dst []byte) []byte {
	statusCode := h.StatusCode()
	if statusCode < 0 {
		statusCode = StatusOK
	}
	dst = append(dst, statusLine(statusCode)...)

	server := h.Server()
	if len(server) == 0 {
		server = defaultServerName
	}
	dst = appendHeaderLine(dst, strServer, server)
	dst = appendHeaderLine(dst, strDate, serverDate.Load().([]byte))

	// Content-Type only goes out with a body or when explicitly set.
	if h.ContentLength() != 0 || len(h.contentType) > 0 {
		dst = appendHeaderLine(dst, strContentType, h.ContentType())
	}

	if len(h.contentLengthBytes) > 0 {
		dst = appendHeaderLine(dst, strContentLength, h.contentLengthBytes)
	}

	for i, n := 0, len(h.h); i < n; i++ {
		kv := &h.h[i]
		if !bytes.Equal(kv.Key, strDate) {
			dst = appendHeaderLine(dst, kv.Key, kv.Value)
		}
	}

	if h.ConnectionClose() {
		dst = appendHeaderLine(dst, strConnection, strClose)
	}

	return append(dst, strCRLF...)
}

// Header returns request header representation.
//
// The returned representation is valid until the next call to RequestHeader methods.
func (h *RequestHeader) Header() []byte {
	h.bufKV.Value = h.AppendBytes(h.bufKV.Value[:0])
	return h.bufKV.Value
}

// String returns request header representation.
func (h *RequestHeader) String() string {
	return string(h.Header())
}

// AppendBytes appends request header representation to dst and returns
// the extended dst.
func (h *RequestHeader) AppendBytes(dst []byte) []byte {
	dst = append(dst, h.Method()...)
	dst = append(dst, ' ')
	dst = append(dst, h.RequestURI()...)
	dst = append(dst, ' ')
	dst = append(dst, strHTTP11...)
	dst = append(dst, strCRLF...)

	userAgent := h.UserAgent()
	if len(userAgent) == 0 {
		userAgent = defaultUserAgent
	}
	dst = appendHeaderLine(dst, strUserAgent, userAgent)

	host := h.Host()
	if len(host) > 0 {
		dst = appendHeaderLine(dst, strHost, host)
	}

	contentType := h.ContentType()
	if len(contentType) > 0 {
		dst = appendHeaderLine(dst, strContentType, contentType)
	}
	if len(h.contentLengthBytes) > 0 {
		dst = appendHeaderLine(dst, strContentLength, h.contentLengthBytes)
	}

	for i, n := 0, len(h.h); i < n; i++ {
		kv := &h.h[i]
		dst = appendHeaderLine(dst, kv.Key, kv.Value)
	}

	if h.ConnectionClose() {
		dst = appendHeaderLine(dst, strConnection, strClose)
	}

	return append(dst, strCRLF...)
}

func appendHeaderLine(dst, key, value []byte) []byte {
	dst = append(dst, key...)
	dst = append(dst, strColonSpace...)
	dst = append(dst, value...)
	return append(dst, strCRLF...)
}

// Parse parses the request head from buf, returning the number of
// consumed bytes. ErrNeedMore is returned when buf does not hold a
// complete head yet.
func (h *RequestHeader) Parse(buf []byte) (int, error) {
	m, err := h.parseFirstLine(buf)
	if err != nil {
		return 0, err
	}
	n, err := h.parseHeaders(buf[m:])
	if err != nil {
		return 0, err
	}
	return m + n, nil
}

// Parse parses the response head from buf, returning the number of
// consumed bytes. ErrNeedMore is returned when buf does not hold a
// complete head yet.
func (h *ResponseHeader) Parse(buf []byte) (int, error) {
	m, err := h.parseFirstLine(buf)
	if err != nil {
		return 0, err
	}
	n, err := h.parseHeaders(buf[m:])
	if err != nil {
		return 0, err
	}
	return m + n, nil
}

func (h *ResponseHeader) parseFirstLine(buf []byte) (int, error) {
	bNext := buf
	var b []byte
	var err error
	for len(b) == 0 {
		if b, bNext, err = nextLine(bNext, MaxStartLineBytes); err != nil {
			return 0, err
		}
	}

	// parse protocol
	n := bytes.IndexByte(b, ' ')
	if n < 0 {
		return 0, ErrBadStatusLine
	}
	if !bytes.Equal(b[:n], strHTTP11) {
		if !bytes.Equal(b[:n], strHTTP10) {
			return 0, ErrBadStatusLine
		}
		h.noHTTP11 = true
	}
	b = b[n+1:]

	// parse status code
	h.statusCode, n, err = utils.ParseUintBuf(b)
	if err != nil {
		return 0, ErrBadStatusLine
	}
	if len(b) > n {
		if b[n] != ' ' {
			return 0, ErrBadStatusLine
		}
		h.statusMessage = append(h.statusMessage[:0], b[n+1:]...)
	}

	return len(buf) - len(bNext), nil
}

func (h *RequestHeader) parseFirstLine(buf []byte) (int, error) {
	bNext := buf
	var b []byte
	var err error
	for len(b) == 0 {
		if b, bNext, err = nextLine(bNext, MaxStartLineBytes); err != nil {
			return 0, err
		}
	}

	// parse method
	n := bytes.IndexByte(b, ' ')
	if n <= 0 {
		return 0, ErrBadRequestLine
	}
	h.method = append(h.method[:0], b[:n]...)
	b = b[n+1:]

	// parse requestURI and protocol
	n = bytes.LastIndexByte(b, ' ')
	if n <= 0 {
		return 0, ErrBadRequestLine
	}
	proto := b[n+1:]
	if !bytes.Equal(proto, strHTTP11) {
		if !bytes.Equal(proto, strHTTP10) {
			return 0, ErrBadRequestLine
		}
		h.noHTTP11 = true
	}
	h.requestURI = append(h.requestURI[:0], b[:n]...)

	return len(buf) - len(bNext), nil
}

func (h *ResponseHeader) parseHeaders(buf []byte) (int, error) {
	// no length information by default
	h.contentLength = -2

	var s headerScanner
	s.b = buf
	s.limit = h.maxHeaderBytes
	if s.limit <= 0 {
		s.limit = MaxHeaderBytes
	}
	var err error
	for s.next() {
		switch string(s.key) {
		case "Content-Type":
			h.contentType = append(h.contentType[:0], s.value...)
		case "Server":
			h.server = append(h.server[:0], s.value...)
		case "Content-Length":
			if h.contentLength != -1 {
				if h.contentLength, err = parseContentLength(s.value); err != nil {
					return 0, ErrMalformedHeader
				}
				h.contentLengthBytes = append(h.contentLengthBytes[:0], s.value...)
			}
		case "Transfer-Encoding":
			if !bytes.Equal(s.value, strIdentity) {
				h.contentLength = -1
				h.h = utils.SetArgBytes(h.h, strTransferEncoding, strChunked)
			}
		case "Connection":
			if bytes.Equal(s.value, strClose) {
				h.connectionClose = true
			} else {
				h.connectionClose = false
				h.h = utils.AppendArgBytes(h.h, s.key, s.value)
			}
		default:
			h.h = utils.AppendArgBytes(h.h, s.key, s.value)
		}
	}
	if s.err != nil {
		h.connectionClose = true
		return 0, s.err
	}

	if h.contentLength < 0 {
		h.contentLengthBytes = h.contentLengthBytes[:0]
	}
	if h.mustSkipContentLength() {
		h.contentLength = 0
		h.contentLengthBytes = h.contentLengthBytes[:0]
	}

	return len(buf) - len(s.b), nil
}

func (h *RequestHeader) parseHeaders(buf []byte) (int, error) {
	h.contentLength = -2

	var s headerScanner
	s.b = buf
	s.limit = h.maxHeaderBytes
	if s.limit <= 0 {
		s.limit = MaxHeaderBytes
	}
	var err error
	for s.next() {
		switch string(s.key) {
		case "Host":
			h.host = append(h.host[:0], s.value...)
		case "User-Agent":
			h.userAgent = append(h.userAgent[:0], s.value...)
		case "Content-Type":
			h.contentType = append(h.contentType[:0], s.value...)
		case "Content-Length":
			if h.contentLength != -1 {
				if h.contentLength, err = parseContentLength(s.value); err != nil {
					return 0, ErrMalformedHeader
				}
				h.contentLengthBytes = append(h.contentLengthBytes[:0], s.value...)
			}
		case "Transfer-Encoding":
			if !bytes.Equal(s.value, strIdentity) {
				h.contentLength = -1
				h.h = utils.SetArgBytes(h.h, strTransferEncoding, strChunked)
			}
		case "Connection":
			if bytes.Equal(s.value, strClose) {
				h.connectionClose = true
			} else {
				h.connectionClose = false
				h.h = utils.AppendArgBytes(h.h, s.key, s.value)
			}
		default:
			h.h = utils.AppendArgBytes(h.h, s.key, s.value)
		}
	}
	if s.err != nil {
		h.connectionClose = true
		return 0, s.err
	}

	if h.contentLength < 0 {
		h.contentLengthBytes = h.contentLengthBytes[:0]
	}
	if h.contentLength == -2 {
		// a request without length information carries no body
		h.contentLength = 0
	}

	return len(buf) - len(s.b), nil
}

func parseContentLength(b []byte) (int, error) {
	v, n, err := utils.ParseUintBuf(b)
	if err != nil {
		return -1, err
	}
	if n != len(b) {
		return -1, ErrMalformedHeader
	}
	return v, nil
}

type headerScanner struct {
	b     []byte
	key   []byte
	value []byte
	err   error
	limit int

	read int
}

func (s *headerScanner) next() bool {
	bLen := len(s.b)
	if bLen >= 2 && s.b[0] == '\r' && s.b[1] == '\n' {
		s.b = s.b[2:]
		return false
	}
	if bLen >= 1 && s.b[0] == '\n' {
		s.b = s.b[1:]
		return false
	}
	nLine := bytes.IndexByte(s.b, '\n')
	if nLine < 0 {
		if bLen > s.limit {
			s.err = ErrHeadersTooLarge
		} else {
			s.err = ErrNeedMore
		}
		return false
	}
	s.read += nLine + 1
	if s.read > s.limit {
		s.err = ErrHeadersTooLarge
		return false
	}
	n := bytes.IndexByte(s.b[:nLine], ':')
	if n < 0 {
		s.err = ErrMalformedHeader
		return false
	}
	s.key = s.b[:n]
	normalizeHeaderKey(s.key)
	n++
	for n < nLine && s.b[n] == ' ' {
		n++
	}
	s.value = s.b[n:nLine]
	s.b = s.b[nLine+1:]

	m := len(s.value)
	if m > 0 && s.value[m-1] == '\r' {
		m--
	}
	for m > 0 && s.value[m-1] == ' ' {
		m--
	}
	s.value = s.value[:m]
	return true
}

type headerValueScanner struct {
	b     []byte
	value []byte
}

func (s *headerValueScanner) next() bool {
	b := s.b
	if len(b) == 0 {
		return false
	}
	n := bytes.IndexByte(b, ',')
	if n < 0 {
		s.value = stripSpace(b)
		s.b = b[len(b):]
		return true
	}
	s.value = stripSpace(b[:n])
	s.b = b[n+1:]
	return true
}

func stripSpace(b []byte) []byte {
	for len(b) > 0 && b[0] == ' ' {
		b = b[1:]
	}
	for len(b) > 0 && b[len(b)-1] == ' ' {
		b = b[:len(b)-1]
	}
	return b
}

func hasHeaderValue(s, value []byte) bool {
	var vs headerValueScanner
	vs.b = s
	for vs.next() {
		if utils.EqualFold(vs.value, value) {
			return true
		}
	}
	return false
}

// nextLine splits off the first line of b, accepting both CRLF and a
// lone LF as terminators. ErrNeedMore is returned when no terminator
// is buffered yet, ErrLineTooLong when the line exceeds limit first.
func nextLine(b []byte, limit int) ([]byte, []byte, error) {
	nNext := bytes.IndexByte(b, '\n')
	if nNext < 0 {
		if len(b) > limit {
			return nil, nil, ErrLineTooLong
		}
		return nil, nil, ErrNeedMore
	}
	if nNext > limit {
		return nil, nil, ErrLineTooLong
	}
	n := nNext
	if n > 0 && b[n-1] == '\r' {
		n--
	}
	return b[:n], b[nNext+1:], nil
}

func initHeaderKV(kv *utils.ArgsKV, key, value string) {
	kv.Key = getHeaderKeyBytes(kv, key)
	kv.Value = append(kv.Value[:0], value...)
}

func getHeaderKeyBytes(kv *utils.ArgsKV, key string) []byte {
	kv.Key = append(kv.Key[:0], key...)
	normalizeHeaderKey(kv.Key)
	return kv.Key
}

// normalizeHeaderKey rewrites b to canonical case in place, uppercasing
// the first letter and every letter following a dash:
//
//   * coNTENT-TYPe -> Content-Type
//   * HOST -> Host
//   * foo-bar-baz -> Foo-Bar-Baz
func normalizeHeaderKey(b []byte) {
	n := len(b)
	if n == 0 {
		return
	}

	b[0] = utils.ToUpperTable[b[0]]
	for i := 1; i < n; i++ {
		p := &b[i]
		if *p == '-' {
			i++
			if i < n {
				b[i] = utils.ToUpperTable[b[i]]
			}
			continue
		}
		*p = utils.ToLowerTable[*p]
	}
}
