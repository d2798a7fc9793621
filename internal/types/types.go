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

package types

// ConnectionSettings holds the user-supplied connection parameters for one
// bootstrap attempt: where the BARF device lives, the API credential the
// backend authenticates with, and the model it should run.
type ConnectionSettings struct {
	RemoteAddress string `json:"remoteAddress"`
	Credential    string `json:"credential"`
	ModelName     string `json:"modelName"`
}

// IsZero reports whether no field has been filled in.
func (s ConnectionSettings) IsZero() bool {
	return s.RemoteAddress == "" && s.Credential == "" && s.ModelName == ""
}

// PromptRequest is what the settings prompt surface renders: the values to
// pre-fill and, on a retry, the error from the previous attempt verbatim.
type PromptRequest struct {
	Prefill ConnectionSettings `json:"prefill"`
	Error   string             `json:"error,omitempty"`
}

// BackendStatus represents the current state of the supervised backend for
// UI consumers.
type BackendStatus struct {
	IsRunning bool   `json:"isRunning"`
	Port      int    `json:"port"`
	Error     string `json:"error,omitempty"`
}
