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

import "sync"

// ByteBuffer holds message body bytes between parse and dispatch.
type ByteBuffer struct {
	B []byte
}

func (b *ByteBuffer) Len() int {
	return len(b.B)
}

func (b *ByteBuffer) Reset() {
	b.B = b.B[:0]
}

func (b *ByteBuffer) Write(p []byte) (int, error) {
	b.B = append(b.B, p...)
	return len(p), nil
}

func (b *ByteBuffer) WriteString(s string) (int, error) {
	b.B = append(b.B, s...)
	return len(s), nil
}

func (b *ByteBuffer) Set(p []byte) {
	b.B = append(b.B[:0], p...)
}

func (b *ByteBuffer) SetString(s string) {
	b.B = append(b.B[:0], s...)
}

func (b *ByteBuffer) String() string {
	return string(b.B)
}

// Pool is a ByteBuffer pool.
type Pool struct {
	pool sync.Pool
}

func (p *Pool) Get() *ByteBuffer {
	v := p.pool.Get()
	if v == nil {
		return &ByteBuffer{}
	}
	return v.(*ByteBuffer)
}

func (p *Pool) Put(b *ByteBuffer) {
	b.Reset()
	p.pool.Put(b)
}
