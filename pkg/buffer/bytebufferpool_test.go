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

import "testing"

func TestByteBufferPoolSlabSizes(t *testing.T) {
	pool := newByteBufferPool()

	cases := []struct {
		size int
		cap  int
	}{
		{1, 1 << minShift},
		{63, 1 << minShift},
		{64, 1 << minShift},
		{65, 128},
		{100, 128},
		{128, 128},
		{129, 256},
		{1 << maxShift, 1 << maxShift},
	}
	for _, c := range cases {
		bp := pool.take(c.size)
		if len(*bp) != c.size {
			t.Errorf("Expect len %d but got %d", c.size, len(*bp))
		}
		if cap(*bp) != c.cap {
			t.Errorf("Expect slab size %d for %d bytes but got %d", c.cap, c.size, cap(*bp))
		}
		pool.give(bp)
	}
}

func TestByteBufferPoolLargeBytes(t *testing.T) {
	pool := newByteBufferPool()

	for _, size := range []int{1<<maxShift + 1, 1 << 20} {
		bp := pool.take(size)
		if cap(*bp) != size {
			t.Errorf("Expect exact %d bytes above max slab, but got %d", size, cap(*bp))
		}
		// give is a no-op above the max slab size
		pool.give(bp)
	}
}

func TestByteBufferPoolReuse(t *testing.T) {
	pool := newByteBufferPool()

	bp := pool.take(100)
	(*bp)[0] = 0x7f
	pool.give(bp)

	// same slab, reset length
	bp2 := pool.take(70)
	if len(*bp2) != 70 {
		t.Errorf("Expect len 70 but got %d", len(*bp2))
	}
	if cap(*bp2) != 128 {
		t.Errorf("Expect slab size 128 but got %d", cap(*bp2))
	}
}
