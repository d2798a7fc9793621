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
	"context"
	"net/http"
	"time"
)

const (
	// DefaultReachabilityTimeout bounds one probe of the remote device.
	DefaultReachabilityTimeout = 5 * time.Second

	// DefaultHealthInterval is how often the local backend is probed while
	// waiting for it to come up.
	DefaultHealthInterval = 1 * time.Second

	// DefaultHealthDeadline is how long the backend gets to become healthy
	// before the attempt is abandoned.
	DefaultHealthDeadline = 15 * time.Second
)

// Checker performs a single bounded-timeout HTTP probe. Any response at all,
// including an error status, counts as reachable: the check confirms that
// something answers at the address, not that it is the right service.
type Checker struct {
	Client  *http.Client
	Timeout time.Duration
}

// NewChecker creates a Checker with the default 5 second timeout.
func NewChecker() *Checker {
	return &Checker{Timeout: DefaultReachabilityTimeout}
}

// Probe reports whether url answered within the timeout. It never returns an
// error; a transport failure or timeout is simply "unreachable".
func (c *Checker) Probe(ctx context.Context, url string) bool {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultReachabilityTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

func (c *Checker) httpClient() *http.Client {
	if c.Client != nil {
		return c.Client
	}
	return http.DefaultClient
}

// HealthPoller repeatedly probes the backend's local health endpoint until it
// answers or the deadline elapses.
type HealthPoller struct {
	Client   *http.Client
	Interval time.Duration
	Deadline time.Duration
}

// NewHealthPoller creates a HealthPoller with the default 1 second interval
// and 15 second deadline.
func NewHealthPoller() *HealthPoller {
	return &HealthPoller{
		Interval: DefaultHealthInterval,
		Deadline: DefaultHealthDeadline,
	}
}

// Poll probes url once per interval until it answers or the deadline passes.
// Before each probe it calls onTick (if non-nil) with the whole seconds left,
// so the caller can surface a countdown. A probe still in flight when its
// tick's timeout expires is abandoned; its late response is discarded.
func (p *HealthPoller) Poll(ctx context.Context, url string, onTick func(remaining int)) bool {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultHealthInterval
	}
	deadline := p.Deadline
	if deadline <= 0 {
		deadline = DefaultHealthDeadline
	}

	probe := &Checker{Client: p.Client, Timeout: interval}

	start := time.Now()
	for {
		remaining := deadline - time.Since(start)
		if remaining <= 0 {
			return false
		}
		if onTick != nil {
			onTick(int((remaining + time.Second - 1) / time.Second))
		}

		tickStart := time.Now()
		if probe.Probe(ctx, url) {
			return true
		}

		// Keep the tick cadence even when the probe failed fast (e.g.
		// connection refused before the backend's socket is open).
		if wait := interval - time.Since(tickStart); wait > 0 {
			select {
			case <-ctx.Done():
				return false
			case <-time.After(wait):
			}
		}
		if ctx.Err() != nil {
			return false
		}
	}
}
