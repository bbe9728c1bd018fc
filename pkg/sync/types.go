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

// WorkerPool caps the number of goroutines executing submitted tasks.
type WorkerPool interface {
	// Serve runs t on a pooled worker, blocking when the pool is at
	// capacity until a worker frees up.
	Serve(t func()) error

	// Running returns the number of busy workers.
	Running() int

	// Free returns the remaining capacity.
	Free() int

	// Cap returns the pool capacity.
	Cap() int

	// Tune resizes the pool.
	Tune(size int)

	// Release shuts the pool down. Serve fails afterwards.
	Release() error
}
