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
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/carverauto/serviceradar-protect/pkg/logger"
)

// fakeClock records every requested wait. When immediate is set waits fire at
// once, otherwise they block until release is called.
type fakeClock struct {
	mu        sync.Mutex
	now       time.Time
	immediate bool
	waits     []time.Duration
	pending   []chan time.Time
	tickers   []*fakeTicker
}

func newFakeClock(immediate bool) *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0), immediate: immediate}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.now
}

func (f *fakeClock) After(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.waits = append(f.waits, d)
	ch := make(chan time.Time, 1)

	if f.immediate {
		ch <- f.now
	} else {
		f.pending = append(f.pending, ch)
	}

	return ch
}

func (f *fakeClock) Ticker(time.Duration) Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()

	t := &fakeTicker{ch: make(chan time.Time, 1)}
	f.tickers = append(f.tickers, t)

	return t
}

func (f *fakeClock) Waits() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]time.Duration(nil), f.waits...)
}

// release fires every blocked wait.
func (f *fakeClock) release() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, ch := range f.pending {
		ch <- f.now
	}

	f.pending = nil
}

func (f *fakeClock) ticker(i int) *fakeTicker {
	f.mu.Lock()
	defer f.mu.Unlock()

	if i >= len(f.tickers) {
		return nil
	}

	return f.tickers[i]
}

type fakeTicker struct {
	ch chan time.Time
}

func (t *fakeTicker) Chan() <-chan time.Time { return t.ch }
func (*fakeTicker) Stop()                    {}

// fakeController stands in for a UniFi OS console over TLS.
type fakeController struct {
	t   *testing.T
	srv *httptest.Server

	mu           sync.Mutex
	logins       int
	logouts      int
	logoutCookie string
	requests     []*http.Request

	// loginStatus returns the status of the nth login (1-based). Defaults to 200.
	loginStatus func(n int) int
	// loginGate, when set, is called before answering the nth login.
	loginGate func(n int)
	// api answers every non-auth request; n counts requests to that path.
	api func(w http.ResponseWriter, r *http.Request, n int)

	pathHits map[string]int
}

func newFakeController(t *testing.T) *fakeController {
	t.Helper()

	fc := &fakeController{t: t, pathHits: make(map[string]int)}
	fc.srv = httptest.NewTLSServer(http.HandlerFunc(fc.serveHTTP))
	t.Cleanup(fc.srv.Close)

	return fc
}

func (fc *fakeController) serveHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/auth/login", "/api/login":
		fc.mu.Lock()
		fc.logins++
		n := fc.logins
		statusFn, gate := fc.loginStatus, fc.loginGate
		fc.mu.Unlock()

		if gate != nil {
			gate(n)
		}

		status := http.StatusOK
		if statusFn != nil {
			status = statusFn(n)
		}

		if status == http.StatusOK {
			w.Header().Add("Set-Cookie", fmt.Sprintf("TOKEN=token-%d; Path=/; HttpOnly", n))
		}

		w.WriteHeader(status)

		return
	case "/api/auth/logout", "/api/logout":
		fc.mu.Lock()
		fc.logouts++
		fc.logoutCookie = r.Header.Get("Cookie")
		fc.mu.Unlock()

		w.WriteHeader(http.StatusOK)

		return
	}

	fc.mu.Lock()
	fc.pathHits[r.URL.Path]++
	n := fc.pathHits[r.URL.Path]
	fc.requests = append(fc.requests, r.Clone(r.Context()))
	api := fc.api
	fc.mu.Unlock()

	if api == nil {
		w.WriteHeader(http.StatusNotFound)

		return
	}

	api(w, r, n)
}

func (fc *fakeController) Logins() int {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	return fc.logins
}

func (fc *fakeController) Logouts() int {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	return fc.logouts
}

func (fc *fakeController) LogoutCookie() string {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	return fc.logoutCookie
}

func (fc *fakeController) Hits(path string) int {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	return fc.pathHits[path]
}

func (fc *fakeController) Requests() []*http.Request {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	return append([]*http.Request(nil), fc.requests...)
}

func (fc *fakeController) controller(variant Variant) Controller {
	fc.t.Helper()

	return controllerFor(fc.t, fc.srv.URL, variant)
}

func controllerFor(t *testing.T, rawURL string, variant Variant) Controller {
	t.Helper()

	u, err := url.Parse(rawURL)
	require.NoError(t, err)

	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	return Controller{Host: u.Hostname(), Port: port, Variant: variant, DisableTLS: u.Scheme == "http"}
}

func newTestSession(t *testing.T, fc *fakeController, clock Clock, opts ...Option) *Session {
	t.Helper()

	opts = append([]Option{WithClock(clock)}, opts...)
	s := NewSession(fc.controller(VariantConsole), Credentials{Username: "admin", Password: "secret"},
		logger.NewTestLogger(), opts...)

	t.Cleanup(func() { s.Shutdown(context.Background()) })

	return s
}
