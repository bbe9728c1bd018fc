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

package network

// ConnState tracks where a connection is within an exchange.
type ConnState int32

const (
	StateIdle ConnState = iota
	StateReadingHead
	StateReadingBody
	StateHandling
	StateWritingHead
	StateWritingBody
	StateClosing
	StateClosed
)

var stateNames = [...]string{
	"Idle",
	"ReadingHead",
	"ReadingBody",
	"Handling",
	"WritingHead",
	"WritingBody",
	"Closing",
	"Closed",
}

func (s ConnState) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "Unknown"
}

// validNext reports whether next is a legal successor of s. The cycle
// runs read head, read body, handle, write head, write body and back
// to idle on the server; the client enters the cycle at write head.
// Closing is reachable from every live state, Closed is terminal.
func validNext(s, next ConnState) bool {
	if s == StateClosed {
		return false
	}
	if next == StateClosing {
		return true
	}
	if next == StateClosed {
		return s == StateClosing
	}
	switch s {
	case StateIdle:
		return next == StateReadingHead || next == StateWritingHead
	case StateReadingHead:
		return next == StateReadingBody || next == StateHandling
	case StateReadingBody:
		return next == StateHandling
	case StateHandling:
		return next == StateWritingHead || next == StateIdle
	case StateWritingHead:
		return next == StateWritingBody || next == StateReadingHead || next == StateIdle
	case StateWritingBody:
		return next == StateIdle || next == StateReadingHead
	}
	return false
}
