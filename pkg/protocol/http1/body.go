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
	"io"

	"conduit/utils"
)

// readBodyFixedSize copies an n byte body from data into dst.
// ErrNeedMore is returned until data holds the whole body.
func readBodyFixedSize(data []byte, n int, dst []byte) ([]byte, int, error) {
	dst = dst[:0]
	if n == 0 {
		return dst, 0, nil
	}
	if len(data) < n {
		return dst, 0, ErrNeedMore
	}
	return append(dst, data[:n]...), n, nil
}

// readBodyChunked decodes a chunked body from data into dst, returning
// the decoded body, the trailer fields and the number of consumed
// bytes. ErrNeedMore is returned until data holds the whole body
// including the zero chunk and trailer section.
func readBodyChunked(data []byte, maxBodySize int, dst []byte) ([]byte, []utils.ArgsKV, int, error) {
	dst = dst[:0]
	consumed := 0
	for {
		chunkSize, n, err := parseChunkSize(data[consumed:])
		if err != nil {
			return dst, nil, 0, err
		}
		consumed += n

		if chunkSize == 0 {
			trailer, n, err := readTrailer(data[consumed:])
			if err != nil {
				return dst, nil, 0, err
			}
			consumed += n
			return dst, trailer, consumed, nil
		}

		if maxBodySize > 0 && len(dst)+chunkSize > maxBodySize {
			return dst, nil, 0, ErrBodyTooLarge
		}

		// chunk data plus its trailing CRLF
		if len(data)-consumed < chunkSize+2 {
			return dst, nil, 0, ErrNeedMore
		}
		if !bytes.Equal(data[consumed+chunkSize:consumed+chunkSize+2], strCRLF) {
			return dst, nil, 0, ErrUnexpectedBodyData
		}
		dst = append(dst, data[consumed:consumed+chunkSize]...)
		consumed += chunkSize + 2
	}
}

// parseChunkSize parses a chunk size line, ignoring any chunk
// extensions after ';'.
func parseChunkSize(data []byte) (int, int, error) {
	nLine := bytes.IndexByte(data, '\n')
	if nLine < 0 {
		if len(data) > MaxStartLineBytes {
			return 0, 0, ErrChunkSizeParse
		}
		return 0, 0, ErrNeedMore
	}
	line := data[:nLine]
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	if n := bytes.IndexByte(line, ';'); n >= 0 {
		line = line[:n]
	}
	size, err := utils.ParseHexUint(line)
	if err != nil {
		return 0, 0, ErrChunkSizeParse
	}
	return size, nLine + 1, nil
}

// readTrailer parses the trailer section after the zero chunk. An
// empty line means no trailers.
func readTrailer(data []byte) ([]utils.ArgsKV, int, error) {
	var s headerScanner
	s.b = data
	var trailer []utils.ArgsKV
	for s.next() {
		trailer = utils.AppendArgBytes(trailer, s.key, s.value)
	}
	if s.err != nil {
		return nil, 0, s.err
	}
	return trailer, len(data) - len(s.b), nil
}

// appendChunk appends p as a single chunk to dst.
func appendChunk(dst, p []byte) []byte {
	dst = utils.AppendHexUint(dst, len(p))
	dst = append(dst, strCRLF...)
	dst = append(dst, p...)
	return append(dst, strCRLF...)
}

// appendLastChunk appends the zero chunk and the trailer section.
func appendLastChunk(dst []byte, trailer []utils.ArgsKV) []byte {
	dst = append(dst, '0')
	dst = append(dst, strCRLF...)
	for i, n := 0, len(trailer); i < n; i++ {
		dst = appendHeaderLine(dst, trailer[i].Key, trailer[i].Value)
	}
	return append(dst, strCRLF...)
}

// BodyWriter streams a message body to w, either counting down a fixed
// Content-Length or framing each Write as a chunk.
type BodyWriter struct {
	w         io.Writer
	chunked   bool
	remaining int
	finished  bool
	buf       []byte
}

// NewFixedBodyWriter returns a writer for a Content-Length framed body.
func NewFixedBodyWriter(w io.Writer, contentLength int) *BodyWriter {
	return &BodyWriter{w: w, remaining: contentLength}
}

// NewChunkedBodyWriter returns a writer producing chunked transfer
// encoding.
func NewChunkedBodyWriter(w io.Writer) *BodyWriter {
	return &BodyWriter{w: w, chunked: true}
}

func (bw *BodyWriter) Write(p []byte) (int, error) {
	if bw.finished {
		return 0, ErrUnexpectedBodyData
	}
	if len(p) == 0 {
		return 0, nil
	}
	if bw.chunked {
		bw.buf = appendChunk(bw.buf[:0], p)
		if _, err := bw.w.Write(bw.buf); err != nil {
			return 0, err
		}
		return len(p), nil
	}
	if len(p) > bw.remaining {
		return 0, ErrUnexpectedBodyData
	}
	n, err := bw.w.Write(p)
	bw.remaining -= n
	return n, err
}

// Finish terminates the body. A fixed length body finishing short of
// its declared length yields ErrTruncatedBody. A chunked body emits
// the zero chunk and the given trailer fields.
func (bw *BodyWriter) Finish(trailer []utils.ArgsKV) error {
	if bw.finished {
		return nil
	}
	bw.finished = true
	if bw.chunked {
		bw.buf = appendLastChunk(bw.buf[:0], trailer)
		_, err := bw.w.Write(bw.buf)
		return err
	}
	if bw.remaining > 0 {
		return ErrTruncatedBody
	}
	return nil
}

// Finished reports whether Finish has run.
func (bw *BodyWriter) Finished() bool {
	return bw.finished
}
