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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBootstrap(t *testing.T) {
	fetched := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	doc := []byte(`{"lastUpdateId":"u-1","nvr":{"id":"n1","name":"UNVR","version":"4.0.6"},"cameras":[{"id":"c1"}]}`)

	b, err := ParseBootstrap(doc, fetched)
	require.NoError(t, err)

	assert.Equal(t, "u-1", b.LastUpdateID)
	assert.Equal(t, NVR{ID: "n1", Name: "UNVR", Version: "4.0.6"}, b.NVR)
	assert.Equal(t, fetched, b.FetchedAt)
	assert.JSONEq(t, string(doc), string(b.Raw))

	doc[0] = ' '
	assert.Equal(t, byte('{'), b.Raw[0])

	_, err = ParseBootstrap([]byte("not json"), fetched)
	require.Error(t, err)
}

func TestBootstrapCache(t *testing.T) {
	c := NewBootstrapCache()

	_, ok := c.Get()
	assert.False(t, ok)

	var first, second []string

	unsubFirst := c.Subscribe(func(b *Bootstrap) { first = append(first, b.LastUpdateID) })
	unsubSecond := c.Subscribe(func(b *Bootstrap) { second = append(second, b.LastUpdateID) })
	defer unsubSecond()

	c.Set(&Bootstrap{LastUpdateID: "a"})
	unsubFirst()
	c.Set(&Bootstrap{LastUpdateID: "b"})

	b, ok := c.Get()
	require.True(t, ok)
	assert.Equal(t, "b", b.LastUpdateID)
	assert.Equal(t, []string{"a"}, first)
	assert.Equal(t, []string{"a", "b"}, second)
}

func TestBootstrapCache_ObserverMayReadCache(t *testing.T) {
	c := NewBootstrapCache()

	var seen string

	c.Subscribe(func(*Bootstrap) {
		b, _ := c.Get()
		seen = b.LastUpdateID
	})

	c.Set(&Bootstrap{LastUpdateID: "nested"})
	assert.Equal(t, "nested", seen)
}
