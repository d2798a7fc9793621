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

package main

import (
	"context"
	"errors"
	"sync"

	"github.com/barflabs/barfhost/internal/bootstrap"
	"github.com/barflabs/barfhost/internal/store"
	"github.com/barflabs/barfhost/internal/streams"
	"github.com/barflabs/barfhost/internal/supervisor"
	"github.com/barflabs/barfhost/internal/types"
	"github.com/wailsapp/wails/v2/pkg/runtime"
)

// UI event names emitted by the shell.
const (
	eventStatus        = "bootstrap:status"
	eventSettingsShow  = "settings:prompt"
	eventBootstrapDone = "bootstrap:ready"
)

// WailsEmitter publishes events through the Wails runtime. It implements
// streams.Emitter.
type WailsEmitter struct {
	ctx context.Context
}

// NewWailsEmitter creates a new WailsEmitter
func NewWailsEmitter(ctx context.Context) *WailsEmitter {
	return &WailsEmitter{ctx: ctx}
}

// Emit sends an event through Wails runtime
func (w *WailsEmitter) Emit(event string, data interface{}) {
	runtime.EventsEmit(w.ctx, event, data)
}

// statusSink forwards orchestrator status strings to the splash view.
type statusSink struct {
	emitter *WailsEmitter
}

func (s statusSink) Update(message string) {
	s.emitter.Emit(eventStatus, message)
	runtime.LogInfof(s.emitter.ctx, "bootstrap: %s", message)
}

// WailsPrompt bridges the orchestrator's blocking Show call onto the
// frontend settings form: Show emits a prompt event and parks until the
// frontend answers through the bound SubmitSettings or CancelSettings.
type WailsPrompt struct {
	emitter *WailsEmitter

	mu      sync.Mutex
	pending chan promptReply
}

type promptReply struct {
	settings types.ConnectionSettings
	ok       bool
}

// NewWailsPrompt creates a prompt bridge publishing through emitter.
func NewWailsPrompt(emitter *WailsEmitter) *WailsPrompt {
	return &WailsPrompt{emitter: emitter}
}

// Show implements bootstrap.SettingsPrompt.
func (p *WailsPrompt) Show(ctx context.Context, req types.PromptRequest) (types.ConnectionSettings, bool) {
	p.mu.Lock()
	ch := make(chan promptReply, 1)
	p.pending = ch
	p.mu.Unlock()

	p.emitter.Emit(eventSettingsShow, req)

	select {
	case <-ctx.Done():
		return types.ConnectionSettings{}, false
	case reply := <-ch:
		return reply.settings, reply.ok
	}
}

func (p *WailsPrompt) reply(r promptReply) error {
	p.mu.Lock()
	ch := p.pending
	p.pending = nil
	p.mu.Unlock()

	if ch == nil {
		return errors.New("no settings prompt is waiting for input")
	}
	ch <- r
	return nil
}

// DesktopApp is the Wails-bound adapter: thin wrappers the frontend calls,
// delegating to the orchestrator, supervisor and stream relay.
type DesktopApp struct {
	ctx    context.Context
	orch   *bootstrap.Orchestrator
	sup    *supervisor.Supervisor
	store  *store.Store
	prompt *WailsPrompt
	relay  *streams.Relay
}

// Startup is called by Wails once the runtime context exists. It kicks off
// the bootstrap cycle in the background so the window can render the splash
// and settings views immediately.
func (d *DesktopApp) Startup(ctx context.Context) {
	d.ctx = ctx
	go d.runBootstrap(ctx)
}

// Shutdown tears down streams and the backend process tree. Wails calls it
// on every exit path.
func (d *DesktopApp) Shutdown(ctx context.Context) {
	if d.relay != nil {
		d.relay.Stop()
	}
	if d.sup != nil {
		d.sup.Shutdown()
	}
}

func (d *DesktopApp) runBootstrap(ctx context.Context) {
	switch d.orch.Run(ctx) {
	case bootstrap.OutcomeReady:
		port := d.orch.Port()
		d.relay.Start(port)
		runtime.EventsEmit(d.ctx, eventBootstrapDone, port)
	case bootstrap.OutcomeCancelled:
		runtime.LogInfo(d.ctx, "Setup cancelled by user, quitting")
		runtime.Quit(d.ctx)
	}
}

// SubmitSettings delivers the settings form's values to the waiting prompt.
func (d *DesktopApp) SubmitSettings(remoteAddress, credential, modelName string) error {
	return d.prompt.reply(promptReply{
		settings: types.ConnectionSettings{
			RemoteAddress: remoteAddress,
			Credential:    credential,
			ModelName:     modelName,
		},
		ok: true,
	})
}

// CancelSettings dismisses the settings prompt and ends bootstrap.
func (d *DesktopApp) CancelSettings() error {
	return d.prompt.reply(promptReply{ok: false})
}

// GetBackendPort returns the backend's port once bootstrap reached Ready,
// and 0 before that.
func (d *DesktopApp) GetBackendPort() int {
	return d.orch.Port()
}

// GetBackendStatus returns the supervised process's state for diagnostics.
func (d *DesktopApp) GetBackendStatus() types.BackendStatus {
	return d.sup.Status()
}

// GetSavedSettings returns the persisted connection settings for prefill
// outside the prompt flow (e.g. a settings editor).
func (d *DesktopApp) GetSavedSettings() (types.ConnectionSettings, error) {
	return d.store.GetConnectionSettings()
}

// SendChatMessage forwards one user chat message to the backend.
func (d *DesktopApp) SendChatMessage(text string) error {
	return d.relay.SendChat(text)
}
