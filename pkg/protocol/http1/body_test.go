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
	"testing"

	"conduit/utils"
)

func TestReadBodyChunked(t *testing.T) {
	data := []byte("5\r\nhello\r\n7\r\n, world\r\n0\r\n\r\ntrailing")
	body, trailer, n, err := readBodyChunked(data, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "hello, world" {
		t.Errorf("unexpected body %q", body)
	}
	if len(trailer) != 0 {
		t.Errorf("unexpected trailer %v", trailer)
	}
	if n != len(data)-len("trailing") {
		t.Errorf("Expect %d consumed bytes but got %d", len(data)-len("trailing"), n)
	}
}

func TestReadBodyChunkedWithExtensionAndTrailer(t *testing.T) {
	data := []byte("a;name=val\r\n0123456789\r\n0\r\nChecksum: abc\r\nX-Count: 2\r\n\r\n")
	body, trailer, n, err := readBodyChunked(data, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "0123456789" {
		t.Errorf("unexpected body %q", body)
	}
	if n != len(data) {
		t.Errorf("Expect %d consumed bytes but got %d", len(data), n)
	}
	if string(utils.PeekArgStr(trailer, "Checksum")) != "abc" {
		t.Errorf("missing Checksum trailer in %v", trailer)
	}
	if string(utils.PeekArgStr(trailer, "X-Count")) != "2" {
		t.Errorf("missing X-Count trailer in %v", trailer)
	}
}

func TestReadBodyChunkedNeedMore(t *testing.T) {
	for _, s := range []string{
		"5",
		"5\r\n",
		"5\r\nhel",
		"5\r\nhello\r\n",
		"5\r\nhello\r\n0\r\n",
	} {
		if _, _, _, err := readBodyChunked([]byte(s), 0, nil); err != ErrNeedMore {
			t.Errorf("Expect ErrNeedMore for %q but got %v", s, err)
		}
	}
}

func TestReadBodyChunkedBadSize(t *testing.T) {
	if _, _, _, err := readBodyChunked([]byte("zz\r\nhello\r\n"), 0, nil); err != ErrChunkSizeParse {
		t.Errorf("Expect ErrChunkSizeParse but got %v", err)
	}
}

func TestReadBodyChunkedBadTerminator(t *testing.T) {
	// chunk data not followed by CRLF
	if _, _, _, err := readBodyChunked([]byte("5\r\nhelloXX0\r\n\r\n"), 0, nil); err != ErrUnexpectedBodyData {
		t.Errorf("Expect ErrUnexpectedBodyData but got %v", err)
	}
}

func TestReadBodyChunkedTooLarge(t *testing.T) {
	if _, _, _, err := readBodyChunked([]byte("5\r\nhello\r\n0\r\n\r\n"), 3, nil); err != ErrBodyTooLarge {
		t.Errorf("Expect ErrBodyTooLarge but got %v", err)
	}
}

func TestReadBodyFixedSize(t *testing.T) {
	body, n, err := readBodyFixedSize([]byte("hello, world"), 5, nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "hello" || n != 5 {
		t.Errorf("unexpected body %q consumed %d", body, n)
	}

	if _, _, err := readBodyFixedSize([]byte("hel"), 5, nil); err != ErrNeedMore {
		t.Errorf("Expect ErrNeedMore but got %v", err)
	}
}

func TestFixedBodyWriter(t *testing.T) {
	var sink bytes.Buffer
	bw := NewFixedBodyWriter(&sink, 5)
	if _, err := bw.Write([]byte("hel")); err != nil {
		t.Fatal(err)
	}
	if _, err := bw.Write([]byte("lo")); err != nil {
		t.Fatal(err)
	}
	if err := bw.Finish(nil); err != nil {
		t.Fatal(err)
	}
	if sink.String() != "hello" {
		t.Errorf("unexpected output %q", sink.String())
	}
}

func TestFixedBodyWriterOverflow(t *testing.T) {
	var sink bytes.Buffer
	bw := NewFixedBodyWriter(&sink, 3)
	if _, err := bw.Write([]byte("hello")); err != ErrUnexpectedBodyData {
		t.Errorf("Expect ErrUnexpectedBodyData but got %v", err)
	}
}

func TestFixedBodyWriterTruncated(t *testing.T) {
	var sink bytes.Buffer
	bw := NewFixedBodyWriter(&sink, 5)
	bw.Write([]byte("hel"))
	if err := bw.Finish(nil); err != ErrTruncatedBody {
		t.Errorf("Expect ErrTruncatedBody but got %v", err)
	}
}

func TestChunkedBodyWriterRoundTrip(t *testing.T) {
	var sink bytes.Buffer
	bw := NewChunkedBodyWriter(&sink)
	bw.Write([]byte("hello"))
	bw.Write([]byte(", world"))
	trailer := utils.AppendArgBytes(nil, []byte("Checksum"), []byte("abc"))
	if err := bw.Finish(trailer); err != nil {
		t.Fatal(err)
	}

	body, gotTrailer, n, err := readBodyChunked(sink.Bytes(), 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "hello, world" {
		t.Errorf("unexpected body %q", body)
	}
	if n != sink.Len() {
		t.Errorf("Expect %d consumed bytes but got %d", sink.Len(), n)
	}
	if string(utils.PeekArgStr(gotTrailer, "Checksum")) != "abc" {
		t.Errorf("missing trailer in %v", gotTrailer)
	}
}

func TestChunkedWriterWriteAfterFinish(t *testing.T) {
	var sink bytes.Buffer
	bw := NewChunkedBodyWriter(&sink)
	if err := bw.Finish(nil); err != nil {
		t.Fatal(err)
	}
	if _, err := bw.Write([]byte("x")); err != ErrUnexpectedBodyData {
		t.Errorf("Expect ErrUnexpectedBodyData but got %v", err)
	}
}
