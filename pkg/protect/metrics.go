/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package protect

import (
	"sync"
	"time"

	"github.com/carverauto/serviceradar-protect/pkg/logger"
)

// Metrics defines the interface for collecting session and realtime metrics
type Metrics interface {
	// Session metrics
	RecordLoginAttempt(controller string)
	RecordLoginSuccess(controller string, duration time.Duration)
	RecordLoginFailure(controller string, err error)
	RecordRequestRejected(endpoint string)
	RecordRequestFailure(endpoint string, statusCode int)

	// Realtime metrics
	RecordFrame(kind MessageKind)
	RecordDecodeFailure(err error)
	RecordReconnect(controller string)
	RecordDroppedDelivery(consumerID string)

	// Export metrics for monitoring systems
	GetMetrics() map[string]interface{}
}

// NoOpMetrics provides a no-op implementation of the Metrics interface
type NoOpMetrics struct{}

func (*NoOpMetrics) RecordLoginAttempt(string)                {}
func (*NoOpMetrics) RecordLoginSuccess(string, time.Duration) {}
func (*NoOpMetrics) RecordLoginFailure(string, error)         {}
func (*NoOpMetrics) RecordRequestRejected(string)             {}
func (*NoOpMetrics) RecordRequestFailure(string, int)         {}
func (*NoOpMetrics) RecordFrame(MessageKind)                  {}
func (*NoOpMetrics) RecordDecodeFailure(error)                {}
func (*NoOpMetrics) RecordReconnect(string)                   {}
func (*NoOpMetrics) RecordDroppedDelivery(string)             {}
func (*NoOpMetrics) GetMetrics() map[string]interface{}       { return map[string]interface{}{} }

// InMemoryMetrics provides an in-memory implementation of the Metrics interface
type InMemoryMetrics struct {
	mu     sync.RWMutex
	logger logger.Logger

	loginAttempts  int
	loginSuccesses int
	loginFailures  int
	lastLogin      time.Duration
	lastLoginError string

	requestsRejected map[string]int
	requestFailures  map[string]int

	frames            map[MessageKind]int
	decodeFailures    int
	reconnects        int
	droppedDeliveries map[string]int

	lastUpdated time.Time
}

// NewInMemoryMetrics creates a new in-memory metrics collector
func NewInMemoryMetrics(log logger.Logger) *InMemoryMetrics {
	return &InMemoryMetrics{
		logger:            log,
		requestsRejected:  make(map[string]int),
		requestFailures:   make(map[string]int),
		frames:            make(map[MessageKind]int),
		droppedDeliveries: make(map[string]int),
		lastUpdated:       time.Now(),
	}
}

func (m *InMemoryMetrics) RecordLoginAttempt(_ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loginAttempts++
	m.lastUpdated = time.Now()
}

func (m *InMemoryMetrics) RecordLoginSuccess(controller string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loginSuccesses++
	m.lastLogin = duration
	m.lastLoginError = ""
	m.lastUpdated = time.Now()

	m.logger.Debug().
		Str("controller", controller).
		Dur("duration", duration).
		Msg("Login succeeded")
}

func (m *InMemoryMetrics) RecordLoginFailure(_ string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loginFailures++

	if err != nil {
		m.lastLoginError = err.Error()
	}

	m.lastUpdated = time.Now()
}

func (m *InMemoryMetrics) RecordRequestRejected(endpoint string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestsRejected[endpoint]++
	m.lastUpdated = time.Now()
}

func (m *InMemoryMetrics) RecordRequestFailure(endpoint string, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestFailures[endpoint]++
	m.lastUpdated = time.Now()
}

func (m *InMemoryMetrics) RecordFrame(kind MessageKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames[kind]++
	m.lastUpdated = time.Now()
}

func (m *InMemoryMetrics) RecordDecodeFailure(_ error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decodeFailures++
	m.lastUpdated = time.Now()
}

func (m *InMemoryMetrics) RecordReconnect(_ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconnects++
	m.lastUpdated = time.Now()
}

func (m *InMemoryMetrics) RecordDroppedDelivery(consumerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.droppedDeliveries[consumerID]++
	m.lastUpdated = time.Now()
}

// GetMetrics returns a point-in-time copy of all counters.
func (m *InMemoryMetrics) GetMetrics() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	frames := make(map[string]int, len(m.frames))
	for kind, n := range m.frames {
		frames[kind.String()] = n
	}

	return map[string]interface{}{
		"login_attempts":     m.loginAttempts,
		"login_successes":    m.loginSuccesses,
		"login_failures":     m.loginFailures,
		"last_login_ms":      m.lastLogin.Milliseconds(),
		"last_login_error":   m.lastLoginError,
		"requests_rejected":  copyCounts(m.requestsRejected),
		"request_failures":   copyCounts(m.requestFailures),
		"frames":             frames,
		"decode_failures":    m.decodeFailures,
		"reconnects":         m.reconnects,
		"dropped_deliveries": copyCounts(m.droppedDeliveries),
		"last_updated":       m.lastUpdated,
	}
}

func copyCounts(src map[string]int) map[string]int {
	dst := make(map[string]int, len(src))
	for k, v := range src {
		dst[k] = v
	}

	return dst
}
