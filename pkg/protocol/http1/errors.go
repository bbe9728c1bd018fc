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

import "errors"

var (
	// ErrNeedMore means the buffered bytes do not hold a complete
	// element yet. It is not a failure: callers read more bytes and
	// retry the parse from the same position.
	ErrNeedMore = errors.New("need more data: cannot find trailing lf")

	// ErrLineTooLong is returned when a start line or header line
	// exceeds the configured limit before its terminator shows up.
	ErrLineTooLong = errors.New("start line exceeds the read limit")

	// ErrBadRequestLine is returned for a request line that does not
	// match 'METHOD SP TARGET SP HTTP/x.y'.
	ErrBadRequestLine = errors.New("malformed http request line")

	// ErrBadStatusLine is returned for a status line that does not
	// match 'HTTP/x.y SP CODE SP REASON'.
	ErrBadStatusLine = errors.New("malformed http status line")

	// ErrMalformedHeader is returned for a header line with no colon
	// separator, or for a header key or value holding bytes that would
	// corrupt the serialized form.
	ErrMalformedHeader = errors.New("malformed header")

	// ErrHeadersTooLarge is returned when the header block exceeds the
	// configured limit before its terminating empty line.
	ErrHeadersTooLarge = errors.New("header block exceeds the read limit")

	// ErrChunkSizeParse is returned when a chunk size line is not a
	// valid hexadecimal number.
	ErrChunkSizeParse = errors.New("cannot parse chunk size")

	// ErrTruncatedBody is returned when the peer ends the stream
	// before the declared body length is satisfied, or when a fixed
	// length writer finishes short.
	ErrTruncatedBody = errors.New("body truncated before declared length")

	// ErrUnexpectedBodyData is returned when more bytes are written to
	// a fixed length body than its declared length.
	ErrUnexpectedBodyData = errors.New("body data exceeds declared length")

	// ErrBodyTooLarge is returned when a body exceeds the configured
	// size limit.
	ErrBodyTooLarge = errors.New("body size exceeds the given limit")
)
