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

package utils

import (
	"errors"
	"time"
	"unsafe"
)

// NoCopy may be embedded into structs which must not be copied
// after the first use.
type NoCopy struct{}

// Lock is a no-op used by -copylocks checker from `go vet`.
func (*NoCopy) Lock() {}

// B2s converts byte slice to a string without memory allocation.
//
// Note it may break if string and/or slice header will change
// in the future go versions.
func B2s(b []byte) string {
	return *(*string)(unsafe.Pointer(&b))
}

// S2b converts string to a byte slice without memory allocation.
//
// Note it may break if string and/or slice header will change
// in the future go versions.
func S2b(s string) []byte {
	sh := (*[2]uintptr)(unsafe.Pointer(&s))
	bh := [3]uintptr{sh[0], sh[1], sh[1]}
	return *(*[]byte)(unsafe.Pointer(&bh))
}

// AppendUint appends n to dst and returns the extended dst.
func AppendUint(dst []byte, n int) []byte {
	if n < 0 {
		panic("BUG: int must be positive")
	}

	var b [20]byte
	buf := b[:]
	i := len(buf)
	var q int
	for n >= 10 {
		i--
		q = n / 10
		buf[i] = '0' + byte(n-q*10)
		n = q
	}
	i--
	buf[i] = '0' + byte(n)

	return append(dst, buf[i:]...)
}

var (
	errEmptyInt               = errors.New("empty integer")
	errUnexpectedFirstChar    = errors.New("unexpected first char found. Expecting 0-9")
	errUnexpectedTrailingChar = errors.New("unexpected trailing char found. Expecting 0-9")
	errTooLongInt             = errors.New("too long int")
)

// ParseUint parses uint from buf.
func ParseUint(buf []byte) (int, error) {
	v, n, err := ParseUintBuf(buf)
	if n != len(buf) {
		return -1, errUnexpectedTrailingChar
	}
	return v, err
}

// ParseUintBuf parses uint from the beginning of buf, returning the
// value and the number of bytes consumed.
func ParseUintBuf(b []byte) (int, int, error) {
	n := len(b)
	if n == 0 {
		return -1, 0, errEmptyInt
	}
	v := 0
	for i := 0; i < n; i++ {
		c := b[i]
		k := c - '0'
		if k > 9 {
			if i == 0 {
				return -1, i, errUnexpectedFirstChar
			}
			return v, i, nil
		}
		if i >= maxIntChars {
			return -1, i, errTooLongInt
		}
		v = 10*v + int(k)
	}
	return v, n, nil
}

const maxIntChars = 18

// Hex2intTable maps ascii bytes to their hexadecimal value, 16 meaning
// the byte is not a hex digit.
var Hex2intTable = func() []byte {
	b := make([]byte, 256)
	for i := 0; i < 256; i++ {
		c := byte(16)
		if i >= '0' && i <= '9' {
			c = byte(i) - '0'
		} else if i >= 'a' && i <= 'f' {
			c = byte(i) - 'a' + 10
		} else if i >= 'A' && i <= 'F' {
			c = byte(i) - 'A' + 10
		}
		b[i] = c
	}
	return b
}()

// AppendHexUint appends the hexadecimal representation of n to dst.
func AppendHexUint(dst []byte, n int) []byte {
	if n < 0 {
		panic("BUG: int must be positive")
	}
	var b [16]byte
	buf := b[:]
	i := len(buf)
	for {
		i--
		buf[i] = hexChars[n&0xf]
		n >>= 4
		if n == 0 {
			break
		}
	}
	return append(dst, buf[i:]...)
}

const hexChars = "0123456789abcdef"

// ParseHexUint parses an unsigned hexadecimal integer from b.
func ParseHexUint(b []byte) (int, error) {
	if len(b) == 0 {
		return -1, errEmptyHexNum
	}
	v := 0
	for i := 0; i < len(b); i++ {
		c := Hex2intTable[b[i]]
		if c >= 16 {
			return -1, errInvalidHexNum
		}
		if i >= maxHexIntChars {
			return -1, errTooLongHexNum
		}
		v = (v << 4) | int(c)
	}
	return v, nil
}

const maxHexIntChars = 15

var (
	errEmptyHexNum   = errors.New("empty hex number")
	errInvalidHexNum = errors.New("invalid hex number")
	errTooLongHexNum = errors.New("too long hex number")
)

// AppendHTTPDate appends t formatted per RFC 1123 to dst and returns
// the extended dst.
func AppendHTTPDate(dst []byte, t time.Time) []byte {
	return t.In(time.UTC).AppendFormat(dst, "Mon, 02 Jan 2006 15:04:05 GMT")
}

// ParseHTTPDate parses an RFC 1123 date.
func ParseHTTPDate(b []byte) (time.Time, error) {
	return time.Parse(time.RFC1123, B2s(b))
}
