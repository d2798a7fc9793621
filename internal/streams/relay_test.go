// Copyright 2025 BARF Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package streams

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type emitted struct {
	event string
	data  interface{}
}

type recordEmitter struct {
	ch chan emitted
}

func newRecordEmitter() *recordEmitter {
	return &recordEmitter{ch: make(chan emitted, 100)}
}

func (e *recordEmitter) Emit(event string, data interface{}) {
	e.ch <- emitted{event: event, data: data}
}

func (e *recordEmitter) next(t *testing.T) emitted {
	t.Helper()
	select {
	case ev := <-e.ch:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for emitted event")
		return emitted{}
	}
}

var upgrader = websocket.Upgrader{}

// newBackendStub serves fake backend websockets and returns the port the
// relay should dial.
func newBackendStub(t *testing.T, mux *http.ServeMux) int {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv.Listener.Addr().(*net.TCPAddr).Port
}

// hang upgrades and then holds the connection open until the client closes.
func hang(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func TestRelayForwardsUARTLines(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/uart", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte("boot ok"))
		conn.WriteMessage(websocket.TextMessage, []byte("sensor ready"))
		// Hold the stream open; the relay closes it on Stop.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	mux.HandleFunc("/ws/i2c", hang)

	emitter := newRecordEmitter()
	relay := NewRelay(emitter)
	relay.Start(newBackendStub(t, mux))
	defer relay.Stop()

	first := emitter.next(t)
	assert.Equal(t, EventUARTLine, first.event)
	assert.Equal(t, "boot ok", first.data)

	second := emitter.next(t)
	assert.Equal(t, EventUARTLine, second.event)
	assert.Equal(t, "sensor ready", second.data)
}

func TestRelayChatRoundTrip(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/uart", hang)
	mux.HandleFunc("/ws/i2c", hang)
	mux.HandleFunc("/ws/chat", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			reply := map[string]string{"type": "content", "delta": "you said " + string(msg)}
			if err := conn.WriteJSON(reply); err != nil {
				return
			}
		}
	})

	emitter := newRecordEmitter()
	relay := NewRelay(emitter)
	relay.Start(newBackendStub(t, mux))
	defer relay.Stop()

	require.NoError(t, relay.SendChat("hello"))

	ev := emitter.next(t)
	assert.Equal(t, EventChatMessage, ev.event)
	raw, ok := ev.data.(json.RawMessage)
	require.True(t, ok, "chat frames are relayed as raw JSON")
	assert.Contains(t, string(raw), "you said hello")
}

func TestRelaySendChatBeforeStart(t *testing.T) {
	relay := NewRelay(newRecordEmitter())
	assert.ErrorIs(t, relay.SendChat("hello"), ErrNotStarted)
}

func TestRelayStopIsIdempotent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/uart", hang)
	mux.HandleFunc("/ws/i2c", hang)

	relay := NewRelay(newRecordEmitter())
	relay.Start(newBackendStub(t, mux))

	relay.Stop()
	relay.Stop() // no panic, no deadlock
}

func TestRelayReconnectsAfterStreamDrop(t *testing.T) {
	var drops int
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/uart", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		drops++
		if drops == 1 {
			// Drop the first connection immediately after one line.
			conn.WriteMessage(websocket.TextMessage, []byte("first"))
			conn.Close()
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte("second"))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	mux.HandleFunc("/ws/i2c", hang)

	emitter := newRecordEmitter()
	relay := NewRelay(emitter)
	relay.Start(newBackendStub(t, mux))
	defer relay.Stop()

	assert.Equal(t, "first", emitter.next(t).data)
	assert.Equal(t, "second", emitter.next(t).data)
}
