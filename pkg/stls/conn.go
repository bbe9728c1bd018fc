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

package stls

import (
	"crypto/tls"
	"net"

	"conduit/pkg/buffer"
	"conduit/pkg/log"
)

// stls.TLSConn -> tls.Conn -> stls.Conn

// TLSConn represents a secured connection.
// It implements the net.Conn interface.
type TLSConn struct {
	*tls.Conn
}

// Conn is a generic stream-oriented network connection.
// It implements the net.Conn interface.
type Conn struct {
	net.Conn
	peek    [1]byte
	haspeek bool
}

// Peek returns 1 byte from connection, without draining any buffered data.
func (c *Conn) Peek() []byte {
	if c.haspeek {
		return c.peek[:]
	}
	n, err := c.Conn.Read(c.peek[:])
	if n == 0 {
		log.DefaultLogger.Debugf("tls peek failed: %v", err)
		return nil
	}
	c.haspeek = true
	return c.peek[:]
}

// Read reads data from the connection.
func (c *Conn) Read(b []byte) (int, error) {
	peek := 0
	if c.haspeek {
		c.haspeek = false
		b[0] = c.peek[0]
		if len(b) == 1 {
			return 1, nil
		}
		peek = 1
		b = b[peek:]
	}

	n, err := c.Conn.Read(b)
	return n + peek, err
}

// ConnectionState records basic TLS details about the connection.
func (c *TLSConn) ConnectionState() tls.ConnectionState {
	return c.Conn.ConnectionState()
}

// WriteTo writes the buffered vectors as a single record sized write.
func (c *TLSConn) WriteTo(v *net.Buffers) (int64, error) {
	buffers := (*[][]byte)(v)
	size := 0
	for _, b := range *buffers {
		size += len(b)
	}

	buf := buffer.GetBytes(size)
	off := 0
	for _, b := range *buffers {
		copy((*buf)[off:], b)
		off += len(b)
	}
	*buffers = (*buffers)[:0]

	off = 0
	for off < size {
		l, err := c.Conn.Write((*buf)[off:])
		if err != nil {
			buffer.PutBytes(buf)
			return int64(off), err
		}
		off += l
	}
	buffer.PutBytes(buf)
	return int64(off), nil
}
