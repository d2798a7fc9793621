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
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

const (
	// backendEnvOverride lets developers point the shell at a backend build
	// outside the bundle.
	backendEnvOverride = "BARFHOST_BACKEND"

	backendBinaryName = "barf-backend"
)

// ResolveBackendBinary returns the path to the backend executable.
// It checks in the following order:
// 1. BARFHOST_BACKEND environment variable (dev mode)
// 2. Bundled binary next to the shell executable (production builds)
// 3. System PATH
func ResolveBackendBinary() (string, error) {
	if override := os.Getenv(backendEnvOverride); override != "" {
		if _, err := os.Stat(override); err != nil {
			return "", fmt.Errorf("%w: %s=%s: %v", ErrBackendNotFound, backendEnvOverride, override, err)
		}
		return override, nil
	}

	name := backendBinaryName
	if runtime.GOOS == "windows" {
		name += ".exe"
	}

	if exePath, err := os.Executable(); err == nil {
		bundled := filepath.Join(filepath.Dir(exePath), name)
		if _, err := os.Stat(bundled); err == nil {
			return bundled, nil
		}
	}

	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}

	return "", fmt.Errorf("%w: %s is not bundled, on PATH, or set via %s",
		ErrBackendNotFound, name, backendEnvOverride)
}
