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
	"testing"

	"github.com/barflabs/barfhost/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestValidateSettingsOrder(t *testing.T) {
	// A settings value with several problems reports the first one only.
	got := validateSettings(types.ConnectionSettings{})
	assert.Equal(t, msgAddressRequired, got)

	got = validateSettings(types.ConnectionSettings{RemoteAddress: "not-an-ip"})
	assert.Equal(t, msgAddressInvalid, got)

	got = validateSettings(types.ConnectionSettings{RemoteAddress: "10.0.0.104"})
	assert.Equal(t, msgKeyRequired, got)

	got = validateSettings(types.ConnectionSettings{RemoteAddress: "10.0.0.104", Credential: "k"})
	assert.Equal(t, msgModelRequired, got)

	got = validateSettings(types.ConnectionSettings{RemoteAddress: "10.0.0.104", Credential: "k", ModelName: "m"})
	assert.Empty(t, got)
}

func TestIPv4Pattern(t *testing.T) {
	tests := []struct {
		name  string
		addr  string
		valid bool
	}{
		{name: "Plain address", addr: "10.0.0.104", valid: true},
		{name: "All zeros", addr: "0.0.0.0", valid: true},
		{name: "Broadcast", addr: "255.255.255.255", valid: true},
		// The pattern does not range-check octets; this is documented
		// behavior, not a bug.
		{name: "Out-of-range octets", addr: "999.999.999.999", valid: true},
		{name: "Surrounding whitespace is trimmed", addr: "  10.0.0.104  ", valid: true},

		{name: "Hostname", addr: "barf.local", valid: false},
		{name: "Trailing dot", addr: "10.0.0.", valid: false},
		{name: "Three octets", addr: "10.0.0", valid: false},
		{name: "Five octets", addr: "10.0.0.1.2", valid: false},
		{name: "Four-digit octet", addr: "1000.0.0.1", valid: false},
		{name: "With port", addr: "10.0.0.104:8000", valid: false},
		{name: "With scheme", addr: "http://10.0.0.104", valid: false},
		{name: "Embedded space", addr: "10.0. 0.104", valid: false},
		{name: "IPv6", addr: "::1", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := types.ConnectionSettings{
				RemoteAddress: tt.addr,
				Credential:    "k",
				ModelName:     "m",
			}
			got := validateSettings(settings)
			if tt.valid {
				assert.Empty(t, got, "expected %q to validate", tt.addr)
			} else {
				assert.Equal(t, msgAddressInvalid, got, "expected %q to be rejected", tt.addr)
			}
		})
	}
}
