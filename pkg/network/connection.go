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

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rcrowley/go-metrics"

	"conduit/pkg/buffer"
)

const defaultBufferReadCapacity = 1 << 12

// ErrClosedConnection is returned on reads and writes after Close.
var ErrClosedConnection = errors.New("connection closed")

// ErrInvalidTransition is returned by MoveState on an illegal state change.
var ErrInvalidTransition = errors.New("invalid connection state transition")

// Connection wraps a raw net.Conn with a buffered read side, an
// exchange state machine and close-once semantics. A Connection is
// owned by exactly one goroutine for the duration of an exchange.
type Connection struct {
	id         string
	rawc       net.Conn
	remoteAddr net.Addr

	state     int32
	closeFlag int32

	readBuffer buffer.IoBuffer

	readTimeout  time.Duration
	writeTimeout time.Duration

	bytesRead    metrics.Counter
	bytesWritten metrics.Counter

	mu        sync.Mutex
	listeners []ConnectionEventListener
}

// NewConnection wraps rawc. The connection starts in the Idle state.
func NewConnection(rawc net.Conn) *Connection {
	return &Connection{
		id:         uuid.New().String(),
		rawc:       rawc,
		remoteAddr: rawc.RemoteAddr(),
		state:      int32(StateIdle),
	}
}

// ID returns unique connection id
func (c *Connection) ID() string {
	return c.id
}

// RawConn returns the underlying net.Conn.
func (c *Connection) RawConn() net.Conn {
	return c.rawc
}

// RemoteAddr returns the remote address of the connection.
func (c *Connection) RemoteAddr() net.Addr {
	return c.remoteAddr
}

// LocalAddr returns the local address of the connection.
func (c *Connection) LocalAddr() net.Addr {
	return c.rawc.LocalAddr()
}

// SetReadTimeout bounds each Fill call.
func (c *Connection) SetReadTimeout(d time.Duration) {
	c.readTimeout = d
}

// SetWriteTimeout bounds each Write call.
func (c *Connection) SetWriteTimeout(d time.Duration) {
	c.writeTimeout = d
}

// SetCounters attaches byte counters, usually from the stats package.
func (c *Connection) SetCounters(read, written metrics.Counter) {
	c.bytesRead = read
	c.bytesWritten = written
}

// State returns the current exchange state.
func (c *Connection) State() ConnState {
	return ConnState(atomic.LoadInt32(&c.state))
}

// MoveState transitions to next, failing on transitions the exchange
// cycle does not allow.
func (c *Connection) MoveState(next ConnState) error {
	for {
		cur := atomic.LoadInt32(&c.state)
		if !validNext(ConnState(cur), next) {
			return fmt.Errorf("%w: %v -> %v", ErrInvalidTransition, ConnState(cur), next)
		}
		if atomic.CompareAndSwapInt32(&c.state, cur, int32(next)) {
			return nil
		}
	}
}

// AddConnectionEventListener add a listener method will be called when connection event occur.
func (c *Connection) AddConnectionEventListener(cb ConnectionEventListener) {
	c.mu.Lock()
	c.listeners = append(c.listeners, cb)
	c.mu.Unlock()
}

// Fill reads once from the socket into the read buffer and returns the
// number of bytes read. It blocks until data arrives, the read timeout
// expires or the peer closes.
func (c *Connection) Fill() (int64, error) {
	if c.IsClosed() {
		return 0, ErrClosedConnection
	}
	if c.readBuffer == nil {
		c.readBuffer = buffer.GetIoBuffer(defaultBufferReadCapacity)
	}
	if c.readTimeout > 0 {
		c.rawc.SetReadDeadline(time.Now().Add(c.readTimeout))
	}
	n, err := c.readBuffer.ReadOnce(c.rawc)
	if n > 0 && c.bytesRead != nil {
		c.bytesRead.Inc(n)
	}
	return n, err
}

// Bytes returns the unconsumed bytes buffered so far.
func (c *Connection) Bytes() []byte {
	if c.readBuffer == nil {
		return nil
	}
	return c.readBuffer.Bytes()
}

// Drain marks n buffered bytes as consumed.
func (c *Connection) Drain(n int) {
	if c.readBuffer != nil {
		c.readBuffer.Drain(n)
	}
}

// BufferedLen returns the number of unconsumed buffered bytes.
func (c *Connection) BufferedLen() int {
	if c.readBuffer == nil {
		return 0
	}
	return c.readBuffer.Len()
}

// Write writes b fully to the socket.
func (c *Connection) Write(b []byte) (int, error) {
	if c.IsClosed() {
		return 0, ErrClosedConnection
	}
	if c.writeTimeout > 0 {
		c.rawc.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	written := 0
	for written < len(b) {
		n, err := c.rawc.Write(b[written:])
		written += n
		if err != nil {
			if c.bytesWritten != nil && written > 0 {
				c.bytesWritten.Inc(int64(written))
			}
			return written, err
		}
	}
	if c.bytesWritten != nil && written > 0 {
		c.bytesWritten.Inc(int64(written))
	}
	return written, nil
}

// IsClosed reports whether Close has been called.
func (c *Connection) IsClosed() bool {
	return atomic.LoadInt32(&c.closeFlag) == 1
}

// Close closes the connection once, releasing the read buffer and
// notifying event listeners with the reason.
func (c *Connection) Close(event ConnectionEvent) error {
	if !atomic.CompareAndSwapInt32(&c.closeFlag, 0, 1) {
		return nil
	}

	atomic.StoreInt32(&c.state, int32(StateClosed))

	if c.readBuffer != nil {
		buffer.PutIoBuffer(c.readBuffer)
		c.readBuffer = nil
	}

	err := c.rawc.Close()

	c.mu.Lock()
	listeners := c.listeners
	c.mu.Unlock()
	for _, cb := range listeners {
		cb.OnEvent(event)
	}
	return err
}
