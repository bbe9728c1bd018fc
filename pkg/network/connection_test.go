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
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionStateCycle(t *testing.T) {
	local, remote := net.Pipe()
	defer local.Close()
	defer remote.Close()

	c := NewConnection(local)
	require.Equal(t, StateIdle, c.State())

	for _, next := range []ConnState{
		StateReadingHead,
		StateReadingBody,
		StateHandling,
		StateWritingHead,
		StateWritingBody,
		StateIdle,
	} {
		require.NoError(t, c.MoveState(next))
		require.Equal(t, next, c.State())
	}
}

func TestConnectionStateInvalidTransition(t *testing.T) {
	local, remote := net.Pipe()
	defer local.Close()
	defer remote.Close()

	c := NewConnection(local)
	err := c.MoveState(StateHandling)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StateIdle, c.State())
}

func TestConnectionStateClosingFromAnywhere(t *testing.T) {
	local, remote := net.Pipe()
	defer local.Close()
	defer remote.Close()

	c := NewConnection(local)
	require.NoError(t, c.MoveState(StateReadingHead))
	require.NoError(t, c.MoveState(StateClosing))
	require.NoError(t, c.MoveState(StateClosed))

	// terminal
	assert.Error(t, c.MoveState(StateIdle))
	assert.Error(t, c.MoveState(StateClosing))
}

func TestConnectionFillAndDrain(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()

	c := NewConnection(local)
	defer c.Close(LocalClose)

	go func() {
		remote.Write([]byte("GET / HTTP/1.1\r\n"))
	}()

	n, err := c.Fill()
	require.NoError(t, err)
	require.Equal(t, int64(16), n)
	assert.Equal(t, "GET / HTTP/1.1\r\n", string(c.Bytes()))

	c.Drain(6)
	assert.Equal(t, "HTTP/1.1\r\n", string(c.Bytes()))
	assert.Equal(t, 10, c.BufferedLen())
}

func TestConnectionFillTimeout(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()

	c := NewConnection(local)
	defer c.Close(LocalClose)
	c.SetReadTimeout(20 * time.Millisecond)

	_, err := c.Fill()
	require.Error(t, err)
	nerr, ok := err.(net.Error)
	require.True(t, ok)
	assert.True(t, nerr.Timeout())
}

func TestConnectionWriteFull(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()

	c := NewConnection(local)
	defer c.Close(LocalClose)

	payload := []byte("HTTP/1.1 200 OK\r\nContent-Length: 0\r\n\r\n")
	got := make([]byte, len(payload))
	done := make(chan error, 1)
	go func() {
		_, err := remote.Read(got)
		done <- err
	}()

	n, err := c.Write(payload)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)
	require.NoError(t, <-done)
	assert.Equal(t, payload, got)
}

type eventRecorder struct {
	events chan ConnectionEvent
}

func (r *eventRecorder) OnEvent(event ConnectionEvent) {
	r.events <- event
}

func TestConnectionCloseOnce(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()

	c := NewConnection(local)
	rec := &eventRecorder{events: make(chan ConnectionEvent, 2)}
	c.AddConnectionEventListener(rec)

	require.NoError(t, c.Close(RemoteClose))
	assert.True(t, c.IsClosed())
	assert.Equal(t, StateClosed, c.State())
	assert.Equal(t, RemoteClose, <-rec.events)

	// second close is a no-op
	require.NoError(t, c.Close(LocalClose))
	select {
	case e := <-rec.events:
		t.Errorf("unexpected second event %v", e)
	default:
	}

	_, err := c.Write([]byte("x"))
	assert.Equal(t, ErrClosedConnection, err)
	_, err = c.Fill()
	assert.Equal(t, ErrClosedConnection, err)
}

func TestConnectionIDUnique(t *testing.T) {
	local, remote := net.Pipe()
	defer local.Close()
	defer remote.Close()

	a := NewConnection(local)
	b := NewConnection(remote)
	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
}
