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

package sync

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func demoFunc() {
	time.Sleep(10 * time.Millisecond)
}

func TestWorkerPoolServe(t *testing.T) {
	p := NewWorkerPool(100, 0)
	defer p.Release()

	var wg sync.WaitGroup
	var ran int64
	for i := 0; i < 1000; i++ {
		wg.Add(1)
		p.Serve(func() {
			atomic.AddInt64(&ran, 1)
			wg.Done()
		})
	}
	wg.Wait()
	if ran != 1000 {
		t.Errorf("Expect 1000 tasks ran but got %d", ran)
	}
	if p.Cap() != 100 {
		t.Errorf("Expect capacity 100 but got %d", p.Cap())
	}
}

func TestWorkerPoolBoundsConcurrency(t *testing.T) {
	p := NewWorkerPool(4, 0)
	defer p.Release()

	var peak, cur int64
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		p.Serve(func() {
			n := atomic.AddInt64(&cur, 1)
			for {
				old := atomic.LoadInt64(&peak)
				if n <= old || atomic.CompareAndSwapInt64(&peak, old, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt64(&cur, -1)
			wg.Done()
		})
	}
	wg.Wait()
	if peak > 4 {
		t.Errorf("Expect at most 4 concurrent workers but got %d", peak)
	}
}

func TestWorkerPoolServeAfterRelease(t *testing.T) {
	p := NewWorkerPool(10, 0)
	p.Release()
	if err := p.Serve(demoFunc); err != ErrPoolClosed {
		t.Errorf("Expect ErrPoolClosed but got %v", err)
	}
}

func TestWorkerPoolPanicRecovered(t *testing.T) {
	p := NewWorkerPool(10, 0)
	defer p.Release()
	p.Serve(func() {
		panic("Oops!")
	})
	time.Sleep(50 * time.Millisecond)

	// the pool still serves after a worker panic
	done := make(chan struct{})
	p.Serve(func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("pool did not recover after panic")
	}
}

func TestWorkerPoolPurge(t *testing.T) {
	p := NewWorkerPool(10, 0)
	defer p.Release()

	p.Serve(demoFunc)
	time.Sleep(3 * DEFAULT_PURGE_INTERVAL_TIME * time.Second)
	if p.Running() != 0 {
		t.Error("idle workers should be purged")
	}
}
