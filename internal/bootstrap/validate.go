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
	"regexp"
	"strings"

	"github.com/barflabs/barfhost/internal/types"
)

// ipv4Pattern matches dotted-quad addresses. Octets are not range-checked,
// so "999.999.999.999" passes; that looseness is intentional and relied on
// by existing users who type placeholder addresses.
var ipv4Pattern = regexp.MustCompile(`^(\d{1,3}\.){3}\d{1,3}$`)

// Validation messages surfaced inline next to the prompt.
const (
	msgAddressRequired = "Device address is required"
	msgAddressInvalid  = "Device address must be an IPv4 address, e.g. 10.0.0.104"
	msgKeyRequired     = "API key is required"
	msgModelRequired   = "Model name is required"
)

// validateSettings checks submitted settings purely locally, before any
// network or process action, and short-circuits on the first failure. It
// returns an empty string when all checks pass.
func validateSettings(s types.ConnectionSettings) string {
	addr := strings.TrimSpace(s.RemoteAddress)
	if addr == "" {
		return msgAddressRequired
	}
	if !ipv4Pattern.MatchString(addr) {
		return msgAddressInvalid
	}
	if strings.TrimSpace(s.Credential) == "" {
		return msgKeyRequired
	}
	if strings.TrimSpace(s.ModelName) == "" {
		return msgModelRequired
	}
	return ""
}
