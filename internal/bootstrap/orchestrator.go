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

package bootstrap

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/barflabs/barfhost/internal/netprobe"
	"github.com/barflabs/barfhost/internal/supervisor"
	"github.com/barflabs/barfhost/internal/types"
)

// Outcome is the terminal result of a bootstrap run.
type Outcome int

const (
	// OutcomeReady means the backend is up and its port is exposed.
	OutcomeReady Outcome = iota
	// OutcomeCancelled means the user dismissed the settings prompt.
	OutcomeCancelled
)

// state is one node of the bootstrap state machine. Exactly one state is
// active at a time; every retriable failure routes back through
// stateAwaitingSettings so a retry always requires an explicit resubmit.
type state int

const (
	stateAwaitingSettings state = iota
	stateVerifyingRemote
	stateSpawningBackend
	statePollingHealth
	stateReady
	stateCancelled
)

// Prompt-level error messages for retriable failures.
const (
	msgNoDevice           = "No device found at that address"
	msgBackendUnavailable = "Unable to connect to backend"
)

// SettingsPrompt is the settings-prompt presentation surface. Show blocks
// until the user submits (settings, true) or cancels (_, false). The error
// string, when non-empty, must be echoed verbatim next to the fields.
type SettingsPrompt interface {
	Show(ctx context.Context, req types.PromptRequest) (types.ConnectionSettings, bool)
}

// StatusSink receives human-readable progress strings. Fire-and-forget; it
// never influences control flow.
type StatusSink interface {
	Update(message string)
}

// Prober is the bounded-timeout reachability probe contract.
type Prober interface {
	Probe(ctx context.Context, url string) bool
}

// HealthProber polls a local endpoint until success or its deadline.
type HealthProber interface {
	Poll(ctx context.Context, url string, onTick func(remaining int)) bool
}

// Supervisor spawns and tears down the backend process tree.
type Supervisor interface {
	Spawn(settings types.ConnectionSettings, port int) (*supervisor.Handle, error)
	Terminate(h *supervisor.Handle) error
}

// SettingsStore persists connection settings across runs.
type SettingsStore interface {
	GetConnectionSettings() (types.ConnectionSettings, error)
	SaveConnectionSettings(types.ConnectionSettings) error
}

// noopStatus drops status updates. Useful for tests and headless runs.
type noopStatus struct{}

func (noopStatus) Update(string) {}

// Orchestrator drives the acquire -> verify -> spawn -> poll cycle. It is
// the sole owner of the retry loop and of the terminal Ready and Cancelled
// paths; collaborators never retry on their own.
type Orchestrator struct {
	Prompt     SettingsPrompt
	Status     StatusSink
	Store      SettingsStore
	Remote     Prober
	Health     HealthProber
	Allocate   func(preferred int) (int, error)
	Supervisor Supervisor

	// PreferredPort is offered to the allocator first on every attempt.
	PreferredPort int

	mu        sync.RWMutex
	readyPort int
}

// New creates an Orchestrator with production probes and port allocation.
// The prompt, status sink, store and supervisor are the application's
// adapters; a nil status sink is replaced with a no-op.
func New(store SettingsStore, prompt SettingsPrompt, status StatusSink, sup Supervisor) *Orchestrator {
	if status == nil {
		status = noopStatus{}
	}
	return &Orchestrator{
		Prompt:        prompt,
		Status:        status,
		Store:         store,
		Remote:        netprobe.NewChecker(),
		Health:        netprobe.NewHealthPoller(),
		Allocate:      netprobe.AllocatePort,
		Supervisor:    sup,
		PreferredPort: netprobe.DefaultBackendPort,
	}
}

// attempt is the ephemeral record of one bootstrap cycle. It carries the
// submitted settings, the failure message for the next prompt iteration,
// and the resources acquired so far.
type attempt struct {
	settings types.ConnectionSettings
	errMsg   string
	port     int
	handle   *supervisor.Handle
	started  time.Time
}

// Run executes the state machine until a terminal outcome. Intermediate
// states are internal; callers only ever observe Ready or Cancelled.
func (o *Orchestrator) Run(ctx context.Context) Outcome {
	prefill, err := o.Store.GetConnectionSettings()
	if err != nil {
		log.Printf("Failed to load saved settings: %v", err)
	}

	att := &attempt{settings: prefill}
	st := stateAwaitingSettings
	for {
		switch st {
		case stateAwaitingSettings:
			st = o.awaitSettings(ctx, att)
		case stateVerifyingRemote:
			st = o.verifyRemote(ctx, att)
		case stateSpawningBackend:
			st = o.spawnBackend(att)
		case statePollingHealth:
			st = o.pollHealth(ctx, att)
		case stateReady:
			return OutcomeReady
		case stateCancelled:
			return OutcomeCancelled
		}
	}
}

// Port returns the backend's port once Ready, 0 before.
func (o *Orchestrator) Port() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.readyPort
}

func (o *Orchestrator) awaitSettings(ctx context.Context, att *attempt) state {
	o.Status.Update("Waiting for connection settings")

	submitted, ok := o.Prompt.Show(ctx, types.PromptRequest{
		Prefill: att.settings,
		Error:   att.errMsg,
	})
	if !ok {
		o.Status.Update("Setup cancelled")
		return stateCancelled
	}

	// Keep whatever the user typed for the next prompt iteration, valid
	// or not. The address is trimmed because it feeds straight into URLs.
	submitted.RemoteAddress = strings.TrimSpace(submitted.RemoteAddress)
	att.settings = submitted
	att.errMsg = ""
	att.started = time.Now()

	if msg := validateSettings(submitted); msg != "" {
		att.errMsg = msg
		return stateAwaitingSettings
	}
	return stateVerifyingRemote
}

func (o *Orchestrator) verifyRemote(ctx context.Context, att *attempt) state {
	o.Status.Update(fmt.Sprintf("Looking for device at %s...", att.settings.RemoteAddress))

	if !o.Remote.Probe(ctx, supervisor.DeviceURL(att.settings.RemoteAddress)) {
		att.errMsg = msgNoDevice
		return stateAwaitingSettings
	}
	return stateSpawningBackend
}

func (o *Orchestrator) spawnBackend(att *attempt) state {
	o.Status.Update("Starting backend...")

	port, err := o.Allocate(o.PreferredPort)
	if err != nil {
		att.errMsg = err.Error()
		return stateAwaitingSettings
	}
	att.port = port

	handle, err := o.Supervisor.Spawn(att.settings, port)
	if err != nil {
		// Teardown is guaranteed on every failure path. On a spawn error
		// there is no live handle, and Terminate treats nil as a no-op.
		o.teardown(att)
		att.errMsg = err.Error()
		return stateAwaitingSettings
	}
	att.handle = handle
	return statePollingHealth
}

func (o *Orchestrator) pollHealth(ctx context.Context, att *attempt) state {
	healthy := o.Health.Poll(ctx, supervisor.HealthURL(att.port), func(remaining int) {
		o.Status.Update(fmt.Sprintf("Connecting to backend... %ds", remaining))
	})
	if !healthy {
		o.teardown(att)
		att.errMsg = msgBackendUnavailable
		return stateAwaitingSettings
	}

	if err := o.Store.SaveConnectionSettings(att.settings); err != nil {
		// Persistence is best-effort; the session itself is healthy.
		log.Printf("Failed to persist settings: %v", err)
	}

	o.mu.Lock()
	o.readyPort = att.port
	o.mu.Unlock()

	o.Status.Update(fmt.Sprintf("Backend ready on port %d (%.1fs)",
		att.port, time.Since(att.started).Seconds()))
	return stateReady
}

// teardown kills the attempt's process tree, if any, before the cycle
// re-enters the prompt. Run never holds two live handles: the previous one
// is always terminated here before another spawn can happen.
func (o *Orchestrator) teardown(att *attempt) {
	if err := o.Supervisor.Terminate(att.handle); err != nil {
		log.Printf("Teardown failed: %v", err)
	}
	att.handle = nil
	att.port = 0
}
