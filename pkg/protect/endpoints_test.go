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
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	console := Controller{Host: "192.168.1.1", Variant: VariantConsole}
	legacy := Controller{Host: "nvr.lan", Port: 7443, Variant: VariantLegacy}

	tests := []struct {
		name       string
		controller Controller
		endpoint   Endpoint
		want       string
	}{
		{"console login", console, EndpointLogin, "https://192.168.1.1/api/auth/login"},
		{"console logout", console, EndpointLogout, "https://192.168.1.1/api/auth/logout"},
		{"legacy login", legacy, EndpointLogin, "https://nvr.lan:7443/api/login"},
		{"legacy logout", legacy, EndpointLogout, "https://nvr.lan:7443/api/logout"},
		{"bootstrap", console, EndpointBootstrap, "https://192.168.1.1/proxy/protect/api/bootstrap"},
		{"updates", legacy, EndpointUpdates, "wss://nvr.lan:7443/proxy/protect/ws/updates"},
		{"unknown variant", Controller{Host: "h", Variant: "udm-beta"}, EndpointLogin, "https://h/api/auth/login"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.controller, tt.endpoint))
		})
	}
}

func TestResolveURL(t *testing.T) {
	c := Controller{Host: "fe80::1", Port: 443, Variant: VariantConsole}

	assert.Equal(t, "https://[fe80::1]:443/proxy/protect/api/cameras?id=a",
		ResolveURL(c, ProtocolHTTP, "/proxy/protect/api/cameras", url.Values{"id": {"a"}}))

	c = Controller{Host: "127.0.0.1", Port: 8080, DisableTLS: true}

	assert.Equal(t, "http://127.0.0.1:8080/api/ping", ResolveURL(c, ProtocolHTTP, "/api/ping", nil))
	assert.Equal(t, "ws://127.0.0.1:8080/proxy/protect/ws/updates", ResolveURL(c, ProtocolWS, updatesPath, nil))
}

func TestUpdatesURL(t *testing.T) {
	c := Controller{Host: "10.0.0.2", Variant: VariantConsole}

	assert.Equal(t, "wss://10.0.0.2/proxy/protect/ws/updates", UpdatesURL(c, ""))
	assert.Equal(t, "wss://10.0.0.2/proxy/protect/ws/updates?lastUpdateId=abc-123", UpdatesURL(c, "abc-123"))
}

func TestControllerRetryDelay(t *testing.T) {
	assert.Equal(t, 2*time.Second, Controller{Variant: VariantConsole}.RetryDelay())
	assert.Equal(t, 5*time.Second, Controller{Variant: VariantLegacy}.RetryDelay())
	assert.Equal(t, 2*time.Second, Controller{}.RetryDelay())
}

func TestVariantValid(t *testing.T) {
	assert.True(t, VariantConsole.Valid())
	assert.True(t, VariantLegacy.Valid())
	assert.False(t, Variant("").Valid())
	assert.False(t, Variant("cloudkey").Valid())
}

func TestControllerString(t *testing.T) {
	assert.Equal(t, "nvr.lan:7443 (legacy)", Controller{Host: "nvr.lan", Port: 7443, Variant: VariantLegacy}.String())
	assert.Equal(t, "udm (unifios)", Controller{Host: "udm", Variant: VariantConsole}.String())
}
