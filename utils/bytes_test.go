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
	"bytes"
	"testing"
)

func TestAppendParseUint(t *testing.T) {
	for _, n := range []int{0, 1, 9, 10, 123, 7070, 65535, 1<<31 - 1} {
		b := AppendUint(nil, n)
		v, err := ParseUint(b)
		if err != nil {
			t.Fatalf("unexpected error when parsing %q: %v", b, err)
		}
		if v != n {
			t.Errorf("Expect %d but got %d", n, v)
		}
	}
}

func TestParseUintBufStopsAtNonDigit(t *testing.T) {
	v, n, err := ParseUintBuf([]byte("204 No Content"))
	if err != nil {
		t.Fatal(err)
	}
	if v != 204 {
		t.Errorf("Expect value 204 but got %d", v)
	}
	if n != 3 {
		t.Errorf("Expect 3 consumed bytes but got %d", n)
	}
}

func TestParseUintBufError(t *testing.T) {
	if _, _, err := ParseUintBuf(nil); err == nil {
		t.Error("Expect error on empty buf")
	}
	if _, _, err := ParseUintBuf([]byte("x12")); err == nil {
		t.Error("Expect error on leading non-digit")
	}
}

func TestHexUintRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 15, 16, 255, 4096, 0xffff, 0xdeadbeef} {
		b := AppendHexUint(nil, n)
		v, err := ParseHexUint(b)
		if err != nil {
			t.Fatalf("unexpected error when parsing %q: %v", b, err)
		}
		if v != n {
			t.Errorf("Expect %d but got %d", n, v)
		}
	}
}

func TestParseHexUintError(t *testing.T) {
	for _, b := range [][]byte{nil, []byte("zz"), []byte("12g")} {
		if _, err := ParseHexUint(b); err == nil {
			t.Errorf("Expect error for %q", b)
		}
	}
}

func TestB2sS2b(t *testing.T) {
	s := "conduit"
	if B2s(S2b(s)) != s {
		t.Error("b2s(s2b) mismatch")
	}
	if !bytes.Equal(S2b(s), []byte(s)) {
		t.Error("s2b mismatch")
	}
}
