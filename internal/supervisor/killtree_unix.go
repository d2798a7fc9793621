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

//go:build !windows

package supervisor

import (
	"errors"
	"syscall"
	"time"
)

const killGracePeriod = 3 * time.Second

// killTree terminates the backend's whole process group. The backend is
// spawned with Setpgid, so its pid doubles as the pgid and signalling the
// negative pid reaches every descendant. SIGTERM first, then SIGKILL for
// anything still alive after the grace period. An already-gone group counts
// as success.
func killTree(pid int) error {
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil {
		if errors.Is(err, syscall.ESRCH) {
			return nil
		}
		return err
	}

	// Poll for the group to disappear rather than sleeping the whole grace
	// period; Signal(0) only checks existence.
	deadline := time.Now().Add(killGracePeriod)
	for time.Now().Before(deadline) {
		if err := syscall.Kill(-pid, syscall.Signal(0)); err != nil {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return err
	}
	return nil
}
