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

package netprobe

import (
	"fmt"
	"net"
)

// DefaultBackendPort is the port the backend binds when nothing else has
// claimed it. It matches the backend's own --port default.
const DefaultBackendPort = 8000

// AllocatePort returns a local TCP port the backend can bind. It prefers the
// given port and falls back to an ephemeral one when it is taken. The result
// is never cached: every bootstrap attempt re-resolves so a retry cannot
// inherit a port some other process grabbed in the meantime.
func AllocatePort(preferred int) (int, error) {
	if preferred > 0 {
		l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", preferred))
		if err == nil {
			l.Close()
			return preferred, nil
		}
	}

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("no available ports: %w", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
