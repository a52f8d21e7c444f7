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
	"context"
	"net/http"
	"time"
)

//go:generate mockgen -destination=mock_protect.go -package=protect github.com/carverauto/serviceradar-protect/pkg/protect CredentialSource,PacketDecoder,Metrics

// HTTPClient defines the interface for making HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// CredentialSource hands out the session credential used to open the realtime stream.
type CredentialSource interface {
	GetCredential(ctx context.Context, forceRegenerate bool) (string, error)
}

// PacketDecoder turns a binary realtime frame into an UpdatePacket.
type PacketDecoder interface {
	Decode(frame []byte) (*UpdatePacket, error)
}

// Dialer opens streaming connections to the controller.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, header http.Header) (Conn, *http.Response, error)
}

// Conn is the subset of a websocket connection the realtime channel uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Clock defines an interface for time-related operations (to mock waits and tickers).
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
	Ticker(d time.Duration) Ticker
}

// Ticker defines an interface for the ticker used in periodic refresh.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}
