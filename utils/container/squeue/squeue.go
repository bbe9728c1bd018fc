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

// Package squeue provides a synchronized FIFO queue with close
// semantics, used to sequence pipelined work items.
package squeue

import (
	"errors"
	"sync"
	"sync/atomic"
)

// Size for queue buffer.
const DefaultQueueSize = 512

var ErrClosed = errors.New("squeue: push on closed queue")

// Queue is a synchronized FIFO. Pop blocks until an item is pushed or
// the queue is closed. A closed queue still drains already queued items.
type Queue struct {
	closed    int32
	closeOnce sync.Once
	c         chan interface{}
}

// New returns an empty queue object.
// Optional parameter <limit> bounds the queue size, DefaultQueueSize
// in default.
func New(limit ...int) *Queue {
	size := DefaultQueueSize
	if len(limit) > 0 {
		size = limit[0]
	}
	return &Queue{
		c: make(chan interface{}, size),
	}
}

// Push appends v to the queue. It returns ErrClosed after Close.
func (q *Queue) Push(v interface{}) (err error) {
	if atomic.LoadInt32(&q.closed) > 0 {
		return ErrClosed
	}
	// When q.c is closed a concurrent Push panics here; recover and
	// report the close instead.
	defer func() {
		if recover() != nil {
			err = ErrClosed
		}
	}()
	q.c <- v
	return nil
}

// Pop removes an item from the queue in FIFO way. It returns
// (nil, false) once the queue is closed and drained.
func (q *Queue) Pop() (interface{}, bool) {
	v, ok := <-q.c
	return v, ok
}

// Close closes the queue. Goroutines blocked in Pop return once the
// remaining items are drained.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		atomic.StoreInt32(&q.closed, 1)
		close(q.c)
	})
}

// Len returns the number of queued items.
func (q *Queue) Len() int {
	return len(q.c)
}
