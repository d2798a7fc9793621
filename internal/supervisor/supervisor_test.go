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
	"os"
	"path/filepath"
	"testing"

	"github.com/barflabs/barfhost/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackendEnv(t *testing.T) {
	settings := types.ConnectionSettings{
		RemoteAddress: "10.0.0.104",
		Credential:    "k-123",
		ModelName:     "o4-mini",
	}

	env := backendEnv(settings)

	assert.Contains(t, env, "BARF_MCP_URL=http://10.0.0.104:8000/mcp")
	assert.Contains(t, env, "BARF_MCP_TOKEN=k-123")
	assert.Contains(t, env, "BARF_UART_URL=http://10.0.0.104:8000/uart")
	assert.Contains(t, env, "BARF_I2C_URL=http://10.0.0.104:8000/i2c")
	assert.Contains(t, env, "OPENAI_API_KEY=k-123")
	assert.Contains(t, env, "OPENAI_MODEL=o4-mini")
}

func TestDeviceURL(t *testing.T) {
	assert.Equal(t, "http://10.0.0.104:8000/mcp", DeviceURL("10.0.0.104"))
}

func TestHealthURL(t *testing.T) {
	assert.Equal(t, "http://127.0.0.1:8000/debug/uart", HealthURL(8000))
}

func TestResolveBackendBinaryOverride(t *testing.T) {
	dir := t.TempDir()
	fake := filepath.Join(dir, "fake-backend")
	require.NoError(t, os.WriteFile(fake, []byte("#!/bin/sh\n"), 0755))

	t.Setenv(backendEnvOverride, fake)

	got, err := ResolveBackendBinary()
	require.NoError(t, err)
	assert.Equal(t, fake, got)
}

func TestResolveBackendBinaryOverrideMissing(t *testing.T) {
	t.Setenv(backendEnvOverride, filepath.Join(t.TempDir(), "does-not-exist"))

	_, err := ResolveBackendBinary()
	assert.ErrorIs(t, err, ErrBackendNotFound)
}

func TestTerminateNilHandle(t *testing.T) {
	s := New()
	assert.NoError(t, s.Terminate(nil))
}

func TestStatusNotRunning(t *testing.T) {
	s := New()
	status := s.Status()
	assert.False(t, status.IsRunning)
	assert.Equal(t, 0, status.Port)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "not started", StateNotStarted.String())
	assert.Equal(t, "starting", StateStarting.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "terminated", StateTerminated.String())
	assert.Equal(t, "crashed", StateCrashed.String())
}
