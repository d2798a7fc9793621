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

package supervisor

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/barflabs/barfhost/internal/types"
)

// DeviceServicePort is the fixed port the BARF device serves MCP, UART and
// I2C endpoints on.
const DeviceServicePort = 8000

// Common errors
var (
	ErrBackendNotFound = errors.New("backend executable not found")
	ErrSpawnFailed     = errors.New("failed to start backend process")
)

// State is the lifecycle state of a supervised backend process.
type State int

const (
	StateNotStarted State = iota
	StateStarting
	StateRunning
	StateTerminated
	StateCrashed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not started"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	case StateCrashed:
		return "crashed"
	default:
		return "unknown"
	}
}

// Handle represents one spawned backend process. It is created by Spawn and
// owned by the Supervisor; other packages only read it.
type Handle struct {
	cmd       *exec.Cmd
	pid       int
	port      int
	startedAt time.Time

	mu    sync.RWMutex
	state State
}

// PID returns the backend's process id.
func (h *Handle) PID() int { return h.pid }

// Port returns the local port the backend was told to bind.
func (h *Handle) Port() int { return h.port }

// StartedAt returns when the process was spawned.
func (h *Handle) StartedAt() time.Time { return h.startedAt }

// State returns the current lifecycle state.
func (h *Handle) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

func (h *Handle) setState(s State) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

// compareAndSetState transitions from want to next and reports whether the
// transition happened.
func (h *Handle) compareAndSetState(want, next State) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != want {
		return false
	}
	h.state = next
	return true
}

// Supervisor spawns the backend as a child process and guarantees the whole
// process tree dies with it. At most one live handle exists at a time.
type Supervisor struct {
	mu        sync.RWMutex
	handle    *Handle
	lastError string

	// OnExit, if set, is called when a running backend exits on its own.
	// It is observational only; readiness failures are detected by the
	// health poller, never by this callback.
	OnExit func(h *Handle, err error)
}

// New creates a Supervisor with no running backend.
func New() *Supervisor {
	return &Supervisor{}
}

// Spawn launches the backend bound to port with an environment overlay
// derived from settings. It returns synchronously: either a handle in the
// Starting state, or an error when the executable is missing or cannot be
// started. It never waits for the backend to become healthy.
func (s *Supervisor) Spawn(settings types.ConnectionSettings, port int) (*Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle != nil && s.handle.State() == StateRunning {
		return nil, fmt.Errorf("%w: previous backend (pid %d) still running", ErrSpawnFailed, s.handle.pid)
	}

	binary, err := ResolveBackendBinary()
	if err != nil {
		s.lastError = err.Error()
		return nil, err
	}

	cmd := exec.Command(binary, "--port", strconv.Itoa(port))
	cmd.Env = append(os.Environ(), backendEnv(settings)...)
	cmd.SysProcAttr = sysProcAttr()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		s.lastError = err.Error()
		return nil, fmt.Errorf("%w: %v", ErrSpawnFailed, err)
	}

	handle := &Handle{
		cmd:       cmd,
		pid:       cmd.Process.Pid,
		port:      port,
		startedAt: time.Now(),
		state:     StateStarting,
	}
	s.handle = handle
	s.lastError = ""

	log.Printf("Started backend process (PID: %d) on port %d", handle.pid, port)

	go logLines("backend", stdout)
	go logLines("backend", stderr)

	// The spawn call returned without error; treat the process as running
	// until its exit or a failed health poll says otherwise. The state must
	// be set before the exit watcher starts so a fast-exiting child is
	// recorded as crashed, not stuck in starting.
	handle.setState(StateRunning)
	go s.watchExit(handle)

	return handle, nil
}

// Terminate kills h's entire process tree. It is idempotent and safe to call
// with a nil or already-dead handle; "no such process" counts as success.
func (s *Supervisor) Terminate(h *Handle) error {
	if h == nil {
		return nil
	}

	switch h.State() {
	case StateNotStarted, StateTerminated, StateCrashed:
		return nil
	}
	h.setState(StateTerminated)

	err := killTree(h.pid)
	if err != nil {
		log.Printf("Failed to terminate backend (PID: %d): %v", h.pid, err)
		return err
	}
	log.Printf("Backend process tree terminated (PID: %d)", h.pid)

	s.mu.Lock()
	if s.handle == h {
		s.handle = nil
	}
	s.mu.Unlock()
	return nil
}

// Shutdown terminates whatever backend is currently supervised. Called on
// application exit, where no caller is holding a handle anymore.
func (s *Supervisor) Shutdown() {
	s.mu.RLock()
	h := s.handle
	s.mu.RUnlock()
	s.Terminate(h)
}

// Status returns the backend state for UI consumers.
func (s *Supervisor) Status() types.BackendStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := types.BackendStatus{Error: s.lastError}
	if s.handle != nil && s.handle.State() == StateRunning {
		status.IsRunning = true
		status.Port = s.handle.port
	}
	return status
}

// watchExit reaps the child and records how it went. A crash is recorded but
// deliberately does not drive the bootstrap state machine: the health
// poller's failure is the single source of truth for readiness, which avoids
// racing two failure signals.
func (s *Supervisor) watchExit(h *Handle) {
	err := h.cmd.Wait()

	if h.compareAndSetState(StateRunning, StateCrashed) {
		msg := "backend exited unexpectedly"
		if err != nil {
			msg = fmt.Sprintf("backend exited unexpectedly: %v", err)
		}
		log.Println(msg)

		s.mu.Lock()
		s.lastError = msg
		s.mu.Unlock()

		if s.OnExit != nil {
			s.OnExit(h, err)
		}
	}
}

// backendEnv builds the environment overlay for the backend: the device
// service URLs derived from the remote address, the credential, and the
// model to run.
func backendEnv(settings types.ConnectionSettings) []string {
	base := fmt.Sprintf("http://%s:%d", settings.RemoteAddress, DeviceServicePort)
	return []string{
		"BARF_MCP_URL=" + base + "/mcp",
		"BARF_MCP_TOKEN=" + settings.Credential,
		"BARF_UART_URL=" + base + "/uart",
		"BARF_I2C_URL=" + base + "/i2c",
		"OPENAI_API_KEY=" + settings.Credential,
		"OPENAI_MODEL=" + settings.ModelName,
	}
}

// DeviceURL returns the URL of the device's MCP endpoint, the well-known
// path used for the reachability probe.
func DeviceURL(remoteAddress string) string {
	return fmt.Sprintf("http://%s:%d/mcp", remoteAddress, DeviceServicePort)
}

// HealthURL returns the local endpoint polled to decide the backend is up.
// Any response means the HTTP server has finished initializing.
func HealthURL(port int) string {
	return fmt.Sprintf("http://127.0.0.1:%d/debug/uart", port)
}

// logLines streams a child pipe into the shell's log with a prefix.
func logLines(prefix string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		log.Printf("%s | %s", prefix, scanner.Text())
	}
}
