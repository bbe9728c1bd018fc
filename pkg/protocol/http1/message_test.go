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
	"testing"
)

func TestRequestParseWithBody(t *testing.T) {
	s := "POST /submit HTTP/1.1\r\nHost: a\r\nContent-Length: 5\r\n\r\nhello"
	req := AcquireRequest()
	defer ReleaseRequest(req)

	n, err := req.Parse([]byte(s), 0)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(s) {
		t.Errorf("Expect %d consumed bytes but got %d", len(s), n)
	}
	if string(req.Body()) != "hello" {
		t.Errorf("unexpected body %q", req.Body())
	}
}

func TestRequestParseGetWithBody(t *testing.T) {
	// a declared Content-Length counts for any method, leaving the
	// body bytes buffered would desync a pipelined connection
	first := "GET /a HTTP/1.1\r\nHost: a\r\nContent-Length: 5\r\n\r\nhello"
	second := "GET /b HTTP/1.1\r\nHost: a\r\n\r\n"
	data := []byte(first + second)

	req := AcquireRequest()
	defer ReleaseRequest(req)

	n, err := req.Parse(data, 0)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(first) {
		t.Errorf("Expect %d consumed bytes but got %d", len(first), n)
	}
	if string(req.Body()) != "hello" {
		t.Errorf("unexpected body %q", req.Body())
	}

	req2 := AcquireRequest()
	defer ReleaseRequest(req2)
	if _, err := req2.Parse(data[n:], 0); err != nil {
		t.Fatal(err)
	}
	if string(req2.Header.RequestURI()) != "/b" {
		t.Errorf("unexpected uri %q", req2.Header.RequestURI())
	}
}

func TestRequestParsePipelined(t *testing.T) {
	first := "POST /a HTTP/1.1\r\nHost: a\r\nContent-Length: 3\r\n\r\nabc"
	second := "GET /b HTTP/1.1\r\nHost: a\r\n\r\n"
	data := []byte(first + second)

	req := AcquireRequest()
	defer ReleaseRequest(req)

	n, err := req.Parse(data, 0)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(first) {
		t.Errorf("first parse must stop at message boundary: got %d want %d", n, len(first))
	}

	req2 := AcquireRequest()
	defer ReleaseRequest(req2)
	m, err := req2.Parse(data[n:], 0)
	if err != nil {
		t.Fatal(err)
	}
	if m != len(second) {
		t.Errorf("second parse consumed %d want %d", m, len(second))
	}
	if string(req2.Header.RequestURI()) != "/b" {
		t.Errorf("unexpected uri %q", req2.Header.RequestURI())
	}
}

func TestRequestParseChunkedBody(t *testing.T) {
	s := "POST /up HTTP/1.1\r\nHost: a\r\nTransfer-Encoding: chunked\r\n\r\n3\r\nabc\r\n0\r\n\r\n"
	req := AcquireRequest()
	defer ReleaseRequest(req)

	n, err := req.Parse([]byte(s), 0)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(s) {
		t.Errorf("Expect %d consumed bytes but got %d", len(s), n)
	}
	if string(req.Body()) != "abc" {
		t.Errorf("unexpected body %q", req.Body())
	}
	// decoded length replaces the chunked marker
	if req.Header.ContentLength() != 3 {
		t.Errorf("Expect content length 3 but got %d", req.Header.ContentLength())
	}
}

func TestRequestParseBodyTooLarge(t *testing.T) {
	s := "POST /a HTTP/1.1\r\nHost: a\r\nContent-Length: 100\r\n\r\n"
	req := AcquireRequest()
	defer ReleaseRequest(req)
	if _, err := req.Parse([]byte(s), 10); err != ErrBodyTooLarge {
		t.Errorf("Expect ErrBodyTooLarge but got %v", err)
	}
}

func TestRequestWriteRoundTrip(t *testing.T) {
	req := AcquireRequest()
	defer ReleaseRequest(req)
	req.Header.SetMethod("POST")
	req.Header.SetRequestURI("/echo")
	req.Header.SetHost("example.com")
	req.SetBodyString("payload")

	var wire bytes.Buffer
	if err := req.Write(&wire); err != nil {
		t.Fatal(err)
	}

	parsed := AcquireRequest()
	defer ReleaseRequest(parsed)
	n, err := parsed.Parse(wire.Bytes(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if n != wire.Len() {
		t.Errorf("Expect %d consumed bytes but got %d", wire.Len(), n)
	}
	if string(parsed.Header.Method()) != "POST" {
		t.Errorf("unexpected method %q", parsed.Header.Method())
	}
	if string(parsed.Body()) != "payload" {
		t.Errorf("unexpected body %q", parsed.Body())
	}
}

func TestRequestWriteStreamChunked(t *testing.T) {
	req := AcquireRequest()
	defer ReleaseRequest(req)
	req.Header.SetMethod("POST")
	req.Header.SetRequestURI("/stream")
	req.Header.SetHost("a")
	req.SetBodyStream(strings.NewReader("streamed body"), -1)

	var wire bytes.Buffer
	if err := req.Write(&wire); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(wire.String(), "Transfer-Encoding: chunked\r\n") {
		t.Errorf("missing chunked header in %q", wire.String())
	}

	parsed := AcquireRequest()
	defer ReleaseRequest(parsed)
	if _, err := parsed.Parse(wire.Bytes(), 0); err != nil {
		t.Fatal(err)
	}
	if string(parsed.Body()) != "streamed body" {
		t.Errorf("unexpected body %q", parsed.Body())
	}
}

func TestResponseParseWithBody(t *testing.T) {
	s := "HTTP/1.1 200 OK\r\nContent-Length: 5\r\nContent-Type: text/plain\r\n\r\nhello"
	resp := AcquireResponse()
	defer ReleaseResponse(resp)

	n, err := resp.Parse([]byte(s), 0)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(s) {
		t.Errorf("Expect %d consumed bytes but got %d", len(s), n)
	}
	if resp.StatusCode() != 200 {
		t.Errorf("unexpected status %d", resp.StatusCode())
	}
	if string(resp.Body()) != "hello" {
		t.Errorf("unexpected body %q", resp.Body())
	}
}

func TestResponseParseSkipBodyForHead(t *testing.T) {
	// HEAD response advertises a length but carries no body bytes
	s := "HTTP/1.1 200 OK\r\nContent-Length: 1024\r\n\r\n"
	resp := AcquireResponse()
	defer ReleaseResponse(resp)
	resp.SkipBody = true

	n, err := resp.Parse([]byte(s), 0)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(s) {
		t.Errorf("Expect %d consumed bytes but got %d", len(s), n)
	}
	if len(resp.Body()) != 0 {
		t.Errorf("HEAD response must not decode a body, got %q", resp.Body())
	}
}

func TestResponseParseBodyUntilClose(t *testing.T) {
	s := "HTTP/1.1 200 OK\r\n\r\npartial"
	resp := AcquireResponse()
	defer ReleaseResponse(resp)

	n, err := resp.Parse([]byte(s), 0)
	if err != nil {
		t.Fatal(err)
	}
	if !resp.BodyUntilClose() {
		t.Error("Expect body until close")
	}
	if resp.Header.KeepAlive() {
		t.Error("undeterminable body length must force close")
	}
	if n != len(s)-len("partial") {
		t.Errorf("head only must be consumed, got %d", n)
	}
}

func TestResponseWriteRoundTrip(t *testing.T) {
	resp := AcquireResponse()
	defer ReleaseResponse(resp)
	resp.SetStatusCode(201)
	resp.Header.SetContentType("application/json")
	resp.SetBodyString(`{"ok":true}`)

	var wire bytes.Buffer
	if err := resp.Write(&wire); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(wire.String(), "HTTP/1.1 201 Created\r\n") {
		t.Errorf("unexpected status line in %q", wire.String())
	}

	parsed := AcquireResponse()
	defer ReleaseResponse(parsed)
	n, err := parsed.Parse(wire.Bytes(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if n != wire.Len() {
		t.Errorf("Expect %d consumed bytes but got %d", wire.Len(), n)
	}
	if parsed.StatusCode() != 201 {
		t.Errorf("unexpected status %d", parsed.StatusCode())
	}
	if string(parsed.Body()) != `{"ok":true}` {
		t.Errorf("unexpected body %q", parsed.Body())
	}
}

func TestStatusReason(t *testing.T) {
	cases := map[int]string{
		200: "OK",
		204: "No Content",
		404: "Not Found",
		405: "Method Not Allowed",
		408: "Request Timeout",
		503: "Service Unavailable",
		799: "Unknown Status Code",
	}
	for code, want := range cases {
		if got := StatusReason(code); got != want {
			t.Errorf("StatusReason(%d) = %q, want %q", code, got, want)
		}
	}
}
