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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// UI event names for relayed backend streams.
const (
	EventUARTLine    = "uart:line"
	EventI2CEvent    = "i2c:event"
	EventChatMessage = "chat:message"
)

const reconnectDelay = 1 * time.Second

// ErrNotStarted is returned by SendChat before the relay is running.
var ErrNotStarted = errors.New("stream relay is not running")

// Emitter delivers relayed messages to the UI. The desktop adapter
// implements it with Wails events.
type Emitter interface {
	Emit(event string, data interface{})
}

// Relay bridges the ready backend's websockets into UI events: UART and I2C
// log streams are forwarded line by line, and chat messages flow both ways.
// It reconnects on transient stream failures and stops cleanly with Stop.
type Relay struct {
	emitter Emitter

	mu       sync.Mutex
	port     int
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	chatConn *websocket.Conn
	chatCtx  context.Context
}

// NewRelay creates a Relay that publishes through emitter.
func NewRelay(emitter Emitter) *Relay {
	return &Relay{emitter: emitter}
}

// Start begins forwarding the backend's UART and I2C streams on the given
// port. It returns immediately; stream goroutines reconnect on failure until
// Stop is called.
func (r *Relay) Start(port int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.port = port
	r.cancel = cancel
	r.chatCtx = ctx

	r.wg.Add(2)
	go r.forward(ctx, wsURL(port, "/ws/uart"), EventUARTLine)
	go r.forward(ctx, wsURL(port, "/ws/i2c"), EventI2CEvent)
}

// Stop closes every stream and waits for the forwarders to exit. Safe to
// call when the relay never started.
func (r *Relay) Stop() {
	r.mu.Lock()
	if r.cancel == nil {
		r.mu.Unlock()
		return
	}
	r.cancel()
	r.cancel = nil
	if r.chatConn != nil {
		r.chatConn.Close()
		r.chatConn = nil
	}
	r.mu.Unlock()

	r.wg.Wait()
}

// SendChat writes one user message to the backend's chat websocket, dialing
// it on first use. Replies stream back as chat:message events.
func (r *Relay) SendChat(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.chatCtx == nil || r.chatCtx.Err() != nil {
		return ErrNotStarted
	}

	if r.chatConn == nil {
		conn, _, err := websocket.DefaultDialer.DialContext(r.chatCtx, wsURL(r.port, "/ws/chat"), nil)
		if err != nil {
			return fmt.Errorf("failed to open chat stream: %w", err)
		}
		r.chatConn = conn

		r.wg.Add(1)
		go r.readChat(conn)
	}

	if err := r.chatConn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		// Drop the broken connection; the next send redials with a fresh
		// backend session.
		r.chatConn.Close()
		r.chatConn = nil
		return fmt.Errorf("failed to send chat message: %w", err)
	}
	return nil
}

// forward pumps one backend stream into UI events, redialing after errors
// until the relay stops.
func (r *Relay) forward(ctx context.Context, url, event string) {
	defer r.wg.Done()

	for ctx.Err() == nil {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(reconnectDelay):
			}
			continue
		}

		// Close the connection when the relay stops so the blocked read
		// below unblocks.
		done := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				conn.Close()
			case <-done:
			}
		}()

		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				break
			}
			r.emitter.Emit(event, string(message))
		}
		close(done)
		conn.Close()
	}
}

// readChat pumps the chat stream's JSON frames into UI events until the
// connection drops.
func (r *Relay) readChat(conn *websocket.Conn) {
	defer r.wg.Done()

	for {
		var frame json.RawMessage
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("Chat stream closed: %v", err)
			}
			r.mu.Lock()
			if r.chatConn == conn {
				r.chatConn = nil
			}
			r.mu.Unlock()
			return
		}
		r.emitter.Emit(EventChatMessage, frame)
	}
}

func wsURL(port int, path string) string {
	return fmt.Sprintf("ws://127.0.0.1:%d%s", port, path)
}
