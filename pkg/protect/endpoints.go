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

// Package protect keeps an authenticated session against a UniFi Protect
// controller and shares its realtime update stream between consumers.
package protect

import (
	"net"
	"net/url"
	"strconv"
	"time"
)

// Variant selects the controller flavour, which decides the login endpoints.
type Variant string

const (
	// VariantConsole is a UniFi OS console (UDM, UNVR, Cloud Key Gen2+ on UniFi OS).
	VariantConsole Variant = "unifios"
	// VariantLegacy is a standalone controller predating UniFi OS.
	VariantLegacy Variant = "legacy"
)

// Protocol selects the request/response or the streaming URL family.
type Protocol int

const (
	ProtocolHTTP Protocol = iota
	ProtocolWS
)

// Endpoint names a logical controller endpoint.
type Endpoint string

const (
	EndpointLogin     Endpoint = "login"
	EndpointLogout    Endpoint = "logout"
	EndpointBootstrap Endpoint = "bootstrap"
	EndpointUpdates   Endpoint = "updates"
)

const (
	bootstrapPath = "/proxy/protect/api/bootstrap"
	updatesPath   = "/proxy/protect/ws/updates"
)

type variantEndpoints struct {
	login      string
	logout     string
	retryDelay time.Duration
}

//nolint:gochecknoglobals // static lookup table
var variants = map[Variant]variantEndpoints{
	VariantConsole: {login: "/api/auth/login", logout: "/api/auth/logout", retryDelay: 2 * time.Second},
	VariantLegacy:  {login: "/api/login", logout: "/api/logout", retryDelay: 5 * time.Second},
}

// Controller identifies the controller a session talks to.
type Controller struct {
	Host       string
	Port       int // 0 uses the scheme default
	Variant    Variant
	DisableTLS bool // plain http/ws, for lab setups and tests
}

// Valid reports whether v is a known variant.
func (v Variant) Valid() bool {
	_, ok := variants[v]

	return ok
}

func (c Controller) endpoints() variantEndpoints {
	if ep, ok := variants[c.Variant]; ok {
		return ep
	}

	return variants[VariantConsole]
}

// RetryDelay is the wait between failed login attempts and rejected-request resends.
func (c Controller) RetryDelay() time.Duration {
	return c.endpoints().retryDelay
}

// String renders the controller address for logs.
func (c Controller) String() string {
	return c.hostPort() + " (" + string(c.Variant) + ")"
}

func (c Controller) hostPort() string {
	if c.Port == 0 {
		return c.Host
	}

	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c Controller) scheme(p Protocol) string {
	switch {
	case p == ProtocolWS && c.DisableTLS:
		return "ws"
	case p == ProtocolWS:
		return "wss"
	case c.DisableTLS:
		return "http"
	default:
		return "https"
	}
}

// ResolveURL builds scheme://host[:port]path[?query] for the controller.
func ResolveURL(c Controller, p Protocol, path string, query url.Values) string {
	u := url.URL{
		Scheme: c.scheme(p),
		Host:   c.hostPort(),
		Path:   path,
	}

	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	return u.String()
}

// Resolve maps a logical endpoint to its URL.
func Resolve(c Controller, e Endpoint) string {
	switch e {
	case EndpointLogin:
		return ResolveURL(c, ProtocolHTTP, c.endpoints().login, nil)
	case EndpointLogout:
		return ResolveURL(c, ProtocolHTTP, c.endpoints().logout, nil)
	case EndpointBootstrap:
		return ResolveURL(c, ProtocolHTTP, bootstrapPath, nil)
	case EndpointUpdates:
		return ResolveURL(c, ProtocolWS, updatesPath, nil)
	default:
		return ResolveURL(c, ProtocolHTTP, string(e), nil)
	}
}

// UpdatesURL is the realtime stream URL resuming after lastUpdateID.
func UpdatesURL(c Controller, lastUpdateID string) string {
	var q url.Values
	if lastUpdateID != "" {
		q = url.Values{"lastUpdateId": {lastUpdateID}}
	}

	return ResolveURL(c, ProtocolWS, updatesPath, q)
}
