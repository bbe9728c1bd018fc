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

import "bytes"

// ArgsKV is a single key/value pair. Header fields keep their slices
// alive across resets to reduce allocations.
type ArgsKV struct {
	Key   []byte
	Value []byte
}

// PeekArgBytes returns the first value for the given key.
func PeekArgBytes(h []ArgsKV, k []byte) []byte {
	for i, n := 0, len(h); i < n; i++ {
		kv := &h[i]
		if bytes.Equal(kv.Key, k) {
			return kv.Value
		}
	}
	return nil
}

// PeekArgStr returns the first value for the given key.
func PeekArgStr(h []ArgsKV, k string) []byte {
	for i, n := 0, len(h); i < n; i++ {
		kv := &h[i]
		if string(kv.Key) == k {
			return kv.Value
		}
	}
	return nil
}

// SetArgBytes replaces the first value for the given key, appending a
// new pair if the key is absent.
func SetArgBytes(h []ArgsKV, key, value []byte) []ArgsKV {
	n := len(h)
	for i := 0; i < n; i++ {
		kv := &h[i]
		if bytes.Equal(kv.Key, key) {
			kv.Value = append(kv.Value[:0], value...)
			return h
		}
	}
	return AppendArgBytes(h, key, value)
}

// AppendArgBytes appends the pair without looking for duplicates.
func AppendArgBytes(h []ArgsKV, key, value []byte) []ArgsKV {
	var kv *ArgsKV
	h, kv = AllocArg(h)
	kv.Key = append(kv.Key[:0], key...)
	kv.Value = append(kv.Value[:0], value...)
	return h
}

// DelAllArgsBytes removes every pair with the given key, preserving
// the order of the remaining pairs.
func DelAllArgsBytes(args []ArgsKV, key []byte) []ArgsKV {
	for i, n := 0, len(args); i < n; i++ {
		kv := &args[i]
		if bytes.Equal(kv.Key, key) {
			tmp := *kv
			copy(args[i:], args[i+1:])
			n--
			i--
			args[n] = tmp
			args = args[:n]
		}
	}
	return args
}

// AllocArg extends h by one pair, reusing spare capacity when present.
func AllocArg(h []ArgsKV) ([]ArgsKV, *ArgsKV) {
	n := len(h)
	if cap(h) > n {
		h = h[:n+1]
	} else {
		h = append(h, ArgsKV{})
	}
	return h, &h[n]
}

// CopyArgs copies src pairs into dst, reusing dst storage.
func CopyArgs(dst, src []ArgsKV) []ArgsKV {
	if cap(dst) < len(src) {
		tmp := make([]ArgsKV, len(src))
		copy(tmp, dst)
		dst = tmp
	}
	n := len(src)
	dst = dst[:n]
	for i := 0; i < n; i++ {
		dstKV := &dst[i]
		srcKV := &src[i]
		dstKV.Key = append(dstKV.Key[:0], srcKV.Key...)
		dstKV.Value = append(dstKV.Value[:0], srcKV.Value...)
	}
	return dst
}

// VisitArgs calls f for each pair in order.
func VisitArgs(args []ArgsKV, f func(k, v []byte)) {
	for i, n := 0, len(args); i < n; i++ {
		kv := &args[i]
		f(kv.Key, kv.Value)
	}
}

// EqualFold reports whether a and b are equal ignoring ascii case.
func EqualFold(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i, n := 0, len(a); i < n; i++ {
		if ToLowerTable[a[i]] != ToLowerTable[b[i]] {
			return false
		}
	}
	return true
}

// ToLowerTable maps upper case ascii letters to lower case, leaving
// all other bytes unchanged.
var ToLowerTable = func() [256]byte {
	var t [256]byte
	for i := 0; i < 256; i++ {
		c := byte(i)
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		t[i] = c
	}
	return t
}()

// ToUpperTable maps lower case ascii letters to upper case, leaving
// all other bytes unchanged.
var ToUpperTable = func() [256]byte {
	var t [256]byte
	for i := 0; i < 256; i++ {
		c := byte(i)
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		t[i] = c
	}
	return t
}()
