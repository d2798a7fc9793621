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
	"os/exec"
	"strconv"
	"strings"
)

// killTree terminates the backend and every descendant via taskkill's tree
// mode. A process that already exited counts as success.
func killTree(pid int) error {
	cmd := exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(pid))
	out, err := cmd.CombinedOutput()
	if err == nil {
		return nil
	}

	// taskkill reports "not found" for processes that are already gone;
	// termination is idempotent so that is not a failure.
	if strings.Contains(strings.ToLower(string(out)), "not found") {
		return nil
	}
	return err
}
