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
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// NVR is the recorder summary carried in the bootstrap document.
type NVR struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Bootstrap is a full-state snapshot of the controller. LastUpdateID is the
// resume cursor for the realtime stream; Raw keeps the whole document.
type Bootstrap struct {
	LastUpdateID string          `json:"lastUpdateId"`
	NVR          NVR             `json:"nvr"`
	Raw          json.RawMessage `json:"-"`
	FetchedAt    time.Time       `json:"-"`
}

// ParseBootstrap decodes a bootstrap document, keeping the raw bytes.
func ParseBootstrap(data []byte, fetchedAt time.Time) (*Bootstrap, error) {
	var b Bootstrap
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to decode bootstrap: %w", err)
	}

	b.Raw = append(json.RawMessage(nil), data...)
	b.FetchedAt = fetchedAt

	return &b, nil
}

// BootstrapCache holds the latest snapshot and notifies subscribers when it is replaced.
type BootstrapCache struct {
	mu        sync.RWMutex
	snapshot  *Bootstrap
	observers map[uint64]func(*Bootstrap)
	nextID    uint64
}

// NewBootstrapCache creates an empty cache.
func NewBootstrapCache() *BootstrapCache {
	return &BootstrapCache{
		observers: make(map[uint64]func(*Bootstrap)),
	}
}

// Get returns the current snapshot, if one has been fetched.
func (c *BootstrapCache) Get() (*Bootstrap, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.snapshot, c.snapshot != nil
}

// Set replaces the snapshot and notifies every subscriber.
func (c *BootstrapCache) Set(b *Bootstrap) {
	c.mu.Lock()
	c.snapshot = b

	observers := make([]func(*Bootstrap), 0, len(c.observers))
	for _, fn := range c.observers {
		observers = append(observers, fn)
	}
	c.mu.Unlock()

	for _, fn := range observers {
		fn(b)
	}
}

// Subscribe registers fn for future snapshots. The returned func removes it.
func (c *BootstrapCache) Subscribe(fn func(*Bootstrap)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	c.observers[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		delete(c.observers, id)
	}
}
