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

package squeue

import "testing"

func TestQueueFIFO(t *testing.T) {
	q := New(8)
	for i := 0; i < 5; i++ {
		if err := q.Push(i); err != nil {
			t.Fatal(err)
		}
	}
	if q.Len() != 5 {
		t.Errorf("Expect len 5 but got %d", q.Len())
	}
	for i := 0; i < 5; i++ {
		v, ok := q.Pop()
		if !ok {
			t.Fatal("queue drained early")
		}
		if v.(int) != i {
			t.Errorf("Expect %d but got %v", i, v)
		}
	}
}

func TestQueueClose(t *testing.T) {
	q := New(4)
	_ = q.Push("a")
	q.Close()

	if err := q.Push("b"); err != ErrClosed {
		t.Errorf("Expect ErrClosed but got %v", err)
	}

	v, ok := q.Pop()
	if !ok || v.(string) != "a" {
		t.Errorf("Expect queued item after close, got %v %v", v, ok)
	}

	if _, ok := q.Pop(); ok {
		t.Error("Expect drained queue to report closed")
	}

	// duplicate close must not panic
	q.Close()
}
