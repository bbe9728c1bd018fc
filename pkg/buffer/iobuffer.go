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

package buffer

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
)

const (
	// AutoExpand grows the buffer as needed on ReadOnce.
	AutoExpand            = -1
	minRead               = 1 << 9
	maxRead               = 1 << 17
	resetOffMark          = -1
	defaultSize           = 1 << 4
	maxBufferLength       = 1 << 20
	maxThreshold          = 1 << 22
	expandThresholdFactor = 2
)

var nullByte []byte

var (
	ErrEOF               = errors.New("EOF")
	ErrTooLarge          = errors.New("io buffer: too large")
	ErrNegativeCount     = errors.New("io buffer: negative count")
	ErrInvalidWriteCount = errors.New("io buffer: invalid write count")
	ErrDuplicatePut      = errors.New("io buffer: duplicate put")
)

// IoBuffer is a drainable byte buffer shared by the read paths of the
// engine. It keeps an internal cursor so parsed bytes can be consumed
// with Drain while unparsed bytes stay buffered.
type IoBuffer interface {
	// Read reads the next len(p) bytes from the buffer or until the
	// buffer is drained.
	Read(p []byte) (n int, err error)

	// ReadOnce makes one read call to r, filling the buffer.
	ReadOnce(r io.Reader) (n int64, err error)

	// ReadFrom reads data from r until EOF.
	ReadFrom(r io.Reader) (n int64, err error)

	// Write appends the contents of p to the buffer.
	Write(p []byte) (n int, err error)

	// WriteTo writes data to w until the buffer is drained.
	WriteTo(w io.Writer) (n int64, err error)

	// Peek returns n bytes from the buffer without draining.
	Peek(n int) []byte

	// Bytes returns all unread bytes without draining.
	Bytes() []byte

	// Drain drains off bytes from the front of the buffer.
	Drain(off int)

	// Len returns the number of unread bytes.
	Len() int

	// Cap returns the capacity of the underlying byte slice.
	Cap() int

	// Reset resets the buffer to be empty.
	Reset()

	// Count keeps a reference count, used by the put pool.
	Count(count int32) int32

	// EOF marks whether the underlying stream reached EOF.
	EOF() bool
	SetEOF(eof bool)
}

type ioBuffer struct {
	buf     []byte // contents: buf[off : len(buf)]
	off     int    // read at buf[off], write at buf[len(buf)]
	offMark int
	count   int32
	eof     bool

	b *[]byte
}

func newIoBuffer(capacity int) IoBuffer {
	buffer := &ioBuffer{
		offMark: resetOffMark,
		count:   1,
	}
	if capacity <= 0 {
		capacity = defaultSize
	}
	buffer.b = GetBytes(capacity)
	buffer.buf = (*buffer.b)[:0]
	return buffer
}

// NewIoBufferBytes wraps an existing byte slice.
func NewIoBufferBytes(bytes []byte) IoBuffer {
	if bytes == nil {
		return newIoBuffer(0)
	}
	b := &ioBuffer{
		buf:     bytes,
		offMark: resetOffMark,
		count:   1,
	}
	return b
}

// NewIoBufferString builds an IoBuffer over a string copy.
func NewIoBufferString(s string) IoBuffer {
	return NewIoBufferBytes([]byte(s))
}

func (b *ioBuffer) Read(p []byte) (n int, err error) {
	if b.off >= len(b.buf) {
		b.Reset()
		if len(p) == 0 {
			return
		}
		return 0, io.EOF
	}
	n = copy(p, b.buf[b.off:])
	b.off += n
	return
}

func (b *ioBuffer) ReadOnce(r io.Reader) (n int64, err error) {
	if b.off > 0 && b.off >= len(b.buf) {
		b.Reset()
	}

	if b.off == len(b.buf) && cap(b.buf) > maxBufferLength {
		b.Free()
		b.Alloc(maxRead)
	}

	// free space in the tail
	if free := cap(b.buf) - len(b.buf); free < minRead {
		// not enough space at end
		if b.off+free < minRead {
			b.copy(minRead)
		} else {
			b.copy(0)
		}
	}

	m, err := r.Read(b.buf[len(b.buf):cap(b.buf)])
	b.buf = b.buf[0 : len(b.buf)+m]
	n = int64(m)
	return n, err
}

func (b *ioBuffer) ReadFrom(r io.Reader) (n int64, err error) {
	if b.off >= len(b.buf) {
		b.Reset()
	}
	for {
		if free := cap(b.buf) - len(b.buf); free < minRead {
			if b.off+free < minRead {
				b.copy(minRead)
			} else {
				b.copy(0)
			}
		}
		m, e := r.Read(b.buf[len(b.buf):cap(b.buf)])
		b.buf = b.buf[0 : len(b.buf)+m]
		n += int64(m)
		if e == io.EOF {
			break
		}
		if e != nil {
			return n, e
		}
	}
	return
}

func (b *ioBuffer) Write(p []byte) (n int, err error) {
	m, ok := b.tryGrowByReslice(len(p))
	if !ok {
		m = b.grow(len(p))
	}
	return copy(b.buf[m:], p), nil
}

func (b *ioBuffer) tryGrowByReslice(n int) (int, bool) {
	if l := len(b.buf); l+n <= cap(b.buf) {
		b.buf = b.buf[:l+n]
		return l, true
	}
	return 0, false
}

func (b *ioBuffer) grow(n int) int {
	m := b.Len()
	// If buffer is empty, reset to recover space.
	if m == 0 && b.off != 0 {
		b.Reset()
	}
	if i, ok := b.tryGrowByReslice(n); ok {
		return i
	}
	if m+n <= cap(b.buf)/2 {
		// slide data down instead of allocating
		b.copy(0)
	} else {
		b.copy(n)
	}
	b.buf = b.buf[:m+n]
	return m
}

func (b *ioBuffer) WriteTo(w io.Writer) (n int64, err error) {
	for b.off < len(b.buf) {
		nBytes := b.Len()
		m, e := w.Write(b.buf[b.off:])
		if m > nBytes {
			return n, ErrInvalidWriteCount
		}
		b.off += m
		n += int64(m)
		if e != nil {
			return n, e
		}
		if m == 0 || m == nBytes {
			return n, nil
		}
	}
	return
}

func (b *ioBuffer) Peek(n int) []byte {
	if len(b.buf)-b.off < n {
		return nil
	}
	return b.buf[b.off : b.off+n]
}

func (b *ioBuffer) Bytes() []byte {
	return b.buf[b.off:]
}

func (b *ioBuffer) Drain(off int) {
	if b.off+off > len(b.buf) {
		return
	}
	b.off += off
	if b.off == len(b.buf) {
		b.Reset()
	}
}

func (b *ioBuffer) Len() int {
	return len(b.buf) - b.off
}

func (b *ioBuffer) Cap() int {
	return cap(b.buf)
}

func (b *ioBuffer) Reset() {
	b.buf = b.buf[:0]
	b.off = 0
	b.offMark = resetOffMark
	b.eof = false
}

func (b *ioBuffer) Count(count int32) int32 {
	return atomic.AddInt32(&b.count, count)
}

func (b *ioBuffer) EOF() bool {
	return b.eof
}

func (b *ioBuffer) SetEOF(eof bool) {
	b.eof = eof
}

// Free gives the underlying slice back to the byte pool.
func (b *ioBuffer) Free() {
	b.Reset()
	b.giveSlice()
}

// Alloc reallocates the underlying slice from the byte pool.
func (b *ioBuffer) Alloc(size int) {
	if b.buf != nil {
		b.Free()
	}
	if size <= 0 {
		size = defaultSize
	}
	b.b = b.makeSlice(size)
	b.buf = *b.b
	b.buf = b.buf[:0]
}

func (b *ioBuffer) copy(expand int) {
	var newBuf []byte
	var bufp *[]byte

	if expand > 0 {
		// not enough space, create a new slice
		cp := cap(b.buf)*2 + expand
		if cp > maxThreshold {
			cp = cap(b.buf) + expand
		}
		bufp = b.makeSlice(cp)
		newBuf = *bufp
		copy(newBuf, b.buf[b.off:])
		b.giveSlice()
		b.b = bufp
	} else {
		newBuf = b.buf
		copy(newBuf, b.buf[b.off:])
	}
	b.buf = newBuf[:len(b.buf)-b.off]
	b.off = 0
}

func (b *ioBuffer) makeSlice(n int) *[]byte {
	return GetBytes(n)
}

func (b *ioBuffer) giveSlice() {
	if b.b != nil {
		PutBytes(b.b)
		b.b = nil
		b.buf = nullByte
	}
}

// GetIoBuffer returns IoBuffer from the pool.
func GetIoBuffer(size int) IoBuffer {
	return ibPool.take(size)
}

// PutIoBuffer returns IoBuffer to the pool.
func PutIoBuffer(buf IoBuffer) error {
	count := buf.Count(-1)
	if count > 0 {
		return nil
	} else if count < 0 {
		return ErrDuplicatePut
	}
	ibPool.give(buf)
	return nil
}

// ioBufferPool recycles ioBuffer shells.
type ioBufferPool struct {
	pool sync.Pool
}

var ibPool ioBufferPool

func (p *ioBufferPool) take(size int) IoBuffer {
	v := p.pool.Get()
	if v == nil {
		return newIoBuffer(size)
	}
	b := v.(*ioBuffer)
	b.Alloc(size)
	b.count = 1
	return b
}

func (p *ioBufferPool) give(buf IoBuffer) {
	if b, ok := buf.(*ioBuffer); ok {
		b.Free()
		p.pool.Put(b)
	}
}
