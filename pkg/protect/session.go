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
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/carverauto/serviceradar-protect/pkg/logger"
)

const (
	defaultRefreshInterval = 45 * time.Minute
	defaultHTTPTimeout     = 30 * time.Second
	defaultLogoutTimeout   = 5 * time.Second
	defaultConsumerID      = "serviceradar-protect"

	headerRequestID = "X-Request-Id"
	loginFlightKey  = "login"
	tracerName      = "github.com/carverauto/serviceradar-protect/pkg/protect"
)

// State is the authentication state of a Session.
type State int32

const (
	StateUnauthenticated State = iota
	StateAuthenticating
	StateAuthenticated
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Credentials are the local controller account used to log in.
type Credentials struct {
	Username string
	Password string
}

// ResponseFormat selects the Accept header and body validation of a Request.
type ResponseFormat int

const (
	FormatJSON ResponseFormat = iota
	FormatText
	FormatBinary
)

func (f ResponseFormat) accept() string {
	switch f {
	case FormatText:
		return "text/plain"
	case FormatBinary:
		return "application/octet-stream"
	default:
		return "application/json"
	}
}

// Request describes an authenticated call against the controller.
type Request struct {
	Method     string // defaults to GET
	Path       string // controller-relative, e.g. /proxy/protect/api/cameras
	Query      url.Values
	Body       interface{} // JSON-encoded when non-nil
	Format     ResponseFormat
	ConsumerID string // overrides the session's X-Request-Id
}

// Response is a successful controller response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals a JSON response body into v.
func (r *Response) Decode(v interface{}) error {
	return json.Unmarshal(r.Body, v)
}

// loginResult is the outcome of a login flight. seq numbers the login that
// produced the credential and is zero when the cached credential was returned.
type loginResult struct {
	credential string
	seq        uint64
}

type loginRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

// Option configures a Session.
type Option func(*Session)

// WithHTTPClient replaces the default keep-alive, certificate-skipping client.
func WithHTTPClient(client HTTPClient) Option {
	return func(s *Session) { s.client = client }
}

// WithClock replaces the wall clock used for retry waits and the refresh ticker.
func WithClock(clock Clock) Option {
	return func(s *Session) { s.clock = clock }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithConsumerID sets the default X-Request-Id value.
func WithConsumerID(id string) Option {
	return func(s *Session) { s.consumerID = id }
}

// WithRefreshInterval overrides the 45 minute refresh period.
func WithRefreshInterval(d time.Duration) Option {
	return func(s *Session) { s.refreshInterval = d }
}

// WithRetryDelay overrides the variant's retry delay.
func WithRetryDelay(d time.Duration) Option {
	return func(s *Session) { s.retryDelay = d }
}

// Session owns the credential for one controller. It logs in on demand,
// re-authenticates when requests are rejected, refreshes the bootstrap
// snapshot periodically and logs out on Shutdown.
type Session struct {
	controller      Controller
	credentials     Credentials
	client          HTTPClient
	clock           Clock
	logger          logger.Logger
	metrics         Metrics
	tracer          trace.Tracer
	consumerID      string
	retryDelay      time.Duration
	refreshInterval time.Duration
	bootstrap       *BootstrapCache

	mu          sync.RWMutex
	credential  string
	state       State
	initialized bool

	logins   singleflight.Group
	loginSeq atomic.Uint64

	ctx       context.Context
	cancel    context.CancelFunc
	stopped   atomic.Bool
	stopOnce  sync.Once
	startOnce sync.Once
	ready     chan struct{}
	readyOnce sync.Once
	wg        sync.WaitGroup
}

// NewSession creates a session for the controller. Nothing is sent until the
// first GetCredential, Request or Start.
func NewSession(controller Controller, credentials Credentials, log logger.Logger, opts ...Option) *Session {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		controller:      controller,
		credentials:     credentials,
		client:          newHTTPClient(),
		clock:           realClock{},
		logger:          log,
		metrics:         &NoOpMetrics{},
		tracer:          otel.Tracer(tracerName),
		consumerID:      defaultConsumerID,
		retryDelay:      controller.RetryDelay(),
		refreshInterval: defaultRefreshInterval,
		bootstrap:       NewBootstrapCache(),
		state:           StateUnauthenticated,
		ctx:             ctx,
		cancel:          cancel,
		ready:           make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func newHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		// Controllers ship with self-signed certificates.
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // see above
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	return &http.Client{Transport: transport, Timeout: defaultHTTPTimeout}
}

// Controller returns the controller identity.
func (s *Session) Controller() Controller {
	return s.controller
}

// Bootstrap returns the session's bootstrap cache.
func (s *Session) Bootstrap() *BootstrapCache {
	return s.bootstrap
}

// State returns the current authentication state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state
}

// Initialized reports whether the initial refresh has completed.
func (s *Session) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.initialized
}

// Ready is closed once the initial refresh has completed.
func (s *Session) Ready() <-chan struct{} {
	return s.ready
}

func (s *Session) cachedCredential() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.credential
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateStopped {
		s.state = state
	}
}

// invalidate drops the cached credential. A non-empty stale value only clears
// the cache if it still holds that credential, so a fresh login is not undone.
func (s *Session) invalidate(stale string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stale != "" && s.credential != stale {
		return
	}

	s.credential = ""

	if s.state != StateStopped {
		s.state = StateUnauthenticated
	}
}

// GetCredential returns the cached credential, logging in when none is cached
// or when forceRegenerate is set. Failed logins are retried after the retry
// delay until one succeeds or the session is shut down. Reads of the cached
// credential never wait for a login that is in flight.
func (s *Session) GetCredential(ctx context.Context, forceRegenerate bool) (string, error) {
	if s.stopped.Load() {
		return "", ErrSessionStopped
	}

	if !forceRegenerate {
		if cred := s.cachedCredential(); cred != "" {
			return cred, nil
		}
	}

	// A forced caller only accepts a login that started after it was called.
	after := s.loginSeq.Load()

	for {
		if s.stopped.Load() {
			return "", ErrSessionStopped
		}

		ch := s.logins.DoChan(loginFlightKey, func() (interface{}, error) {
			if !forceRegenerate {
				if cred := s.cachedCredential(); cred != "" {
					return loginResult{credential: cred}, nil
				}
			}

			return s.authenticate()
		})

		select {
		case res := <-ch:
			if res.Err != nil {
				return "", res.Err
			}

			lr := res.Val.(loginResult)
			if forceRegenerate && lr.seq <= after {
				continue
			}

			return lr.credential, nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// authenticate runs the login retry loop on the session lifetime context.
func (s *Session) authenticate() (loginResult, error) {
	seq := s.loginSeq.Add(1)

	for {
		if s.stopped.Load() {
			return loginResult{}, ErrSessionStopped
		}

		s.setState(StateAuthenticating)

		cred, err := s.login(s.ctx)
		if err == nil {
			s.mu.Lock()
			if s.state == StateStopped {
				s.mu.Unlock()

				return loginResult{}, ErrSessionStopped
			}

			s.credential = cred
			s.state = StateAuthenticated
			s.mu.Unlock()

			s.logger.Debug().
				Str("controller", s.controller.String()).
				Msg("Authenticated with controller")

			return loginResult{credential: cred, seq: seq}, nil
		}

		s.invalidate("")

		if s.stopped.Load() {
			return loginResult{}, ErrSessionStopped
		}

		s.logger.Warn().
			Err(err).
			Str("controller", s.controller.String()).
			Dur("retry_in", s.retryDelay).
			Msg("Login failed, retrying")

		select {
		case <-s.clock.After(s.retryDelay):
		case <-s.ctx.Done():
			return loginResult{}, ErrSessionStopped
		}
	}
}

// login performs one login attempt.
func (s *Session) login(ctx context.Context) (string, error) {
	ctx, span := s.tracer.Start(ctx, "protect.login",
		trace.WithAttributes(attribute.String("protect.controller", s.controller.String())))
	defer span.End()

	s.metrics.RecordLoginAttempt(s.controller.String())
	start := s.clock.Now()

	cred, err := s.doLogin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.RecordLoginFailure(s.controller.String(), err)

		return "", err
	}

	s.metrics.RecordLoginSuccess(s.controller.String(), s.clock.Now().Sub(start))

	return cred, nil
}

func (s *Session) doLogin(ctx context.Context) (string, error) {
	payload, err := json.Marshal(loginRequest{
		Username:   s.credentials.Username,
		Password:   s.credentials.Password,
		RememberMe: true,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		Resolve(s.controller, EndpointLogin), bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrAuthenticationFailed, resp.StatusCode)
	}

	cred := credentialFromHeader(resp.Header)
	if cred == "" {
		return "", fmt.Errorf("%w: %w", ErrAuthenticationFailed, errMissingCredential)
	}

	return cred, nil
}

// credentialFromHeader takes the first Set-Cookie value up to its attributes.
func credentialFromHeader(h http.Header) string {
	values := h.Values("Set-Cookie")
	if len(values) == 0 {
		return ""
	}

	token, _, _ := strings.Cut(values[0], ";")

	return strings.TrimSpace(token)
}

// bind derives a context that is also cancelled when the session shuts down.
func (s *Session) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)

	return ctx, func() {
		stop()
		cancel()
	}
}

// Request issues an authenticated call. A 401 clears the credential and the
// same request is resent after the retry delay, for as long as the session
// runs. Every other failure is returned wrapped in ErrRequestFailed.
func (s *Session) Request(ctx context.Context, r Request) (*Response, error) {
	if r.Method == "" {
		r.Method = http.MethodGet
	}

	ctx, cancel := s.bind(ctx)
	defer cancel()

	ctx, span := s.tracer.Start(ctx, "protect.request", trace.WithAttributes(
		attribute.String("http.request.method", r.Method),
		attribute.String("protect.path", r.Path),
	))
	defer span.End()

	for {
		if s.stopped.Load() {
			return nil, ErrSessionStopped
		}

		cred, err := s.GetCredential(ctx, false)
		if err != nil {
			return nil, s.abortErr(err)
		}

		resp, err := s.do(ctx, r, cred)
		if err == nil {
			return resp, nil
		}

		if !errors.Is(err, ErrRequestRejected) {
			if s.stopped.Load() {
				return nil, ErrSessionStopped
			}

			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())

			return nil, err
		}

		s.invalidate(cred)
		s.metrics.RecordRequestRejected(r.Path)

		if s.stopped.Load() {
			return nil, ErrSessionStopped
		}

		s.logger.Info().
			Str("controller", s.controller.String()).
			Str("path", r.Path).
			Dur("retry_in", s.retryDelay).
			Msg("Request rejected, re-authenticating")

		select {
		case <-s.clock.After(s.retryDelay):
		case <-ctx.Done():
			return nil, s.abortErr(ctx.Err())
		}
	}
}

func (s *Session) abortErr(err error) error {
	if s.stopped.Load() {
		return ErrSessionStopped
	}

	return err
}

func (s *Session) do(ctx context.Context, r Request, cred string) (*Response, error) {
	var body io.Reader

	if r.Body != nil {
		payload, err := json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: encode body: %w", ErrRequestFailed, err)
		}

		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method,
		ResolveURL(s.controller, ProtocolHTTP, r.Path, r.Query), body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}

	consumerID := r.ConsumerID
	if consumerID == "" {
		consumerID = s.consumerID
	}

	req.Header.Set("Cookie", cred)
	req.Header.Set(headerRequestID, consumerID)
	req.Header.Set("Accept", r.Format.accept())

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.metrics.RecordRequestFailure(r.Path, 0)

		return nil, fmt.Errorf("%w: %s %s: %w", ErrRequestFailed, r.Method, r.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrRequestRejected
	}

	if err != nil {
		s.metrics.RecordRequestFailure(r.Path, resp.StatusCode)

		return nil, fmt.Errorf("%w: %s %s: reading body: %w", ErrRequestFailed, r.Method, r.Path, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		s.metrics.RecordRequestFailure(r.Path, resp.StatusCode)

		return nil, fmt.Errorf("%w: %s %s returned %d", ErrRequestFailed, r.Method, r.Path, resp.StatusCode)
	}

	if r.Format == FormatJSON && len(data) > 0 && !json.Valid(data) {
		s.metrics.RecordRequestFailure(r.Path, resp.StatusCode)

		return nil, fmt.Errorf("%w: %s %s: %w", ErrRequestFailed, r.Method, r.Path, errInvalidJSON)
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// Refresh regenerates the credential and re-fetches the bootstrap snapshot.
// The initial refresh marks the session initialized and closes Ready.
func (s *Session) Refresh(ctx context.Context, initial bool) error {
	if _, err := s.GetCredential(ctx, true); err != nil {
		return err
	}

	s.fetchBootstrap(ctx)

	if initial {
		s.mu.Lock()
		s.initialized = true
		s.mu.Unlock()

		s.readyOnce.Do(func() { close(s.ready) })
	}

	return nil
}

// fetchBootstrap updates the cache. Controllers without Protect have no
// bootstrap, so failures only leave the cache as it was.
func (s *Session) fetchBootstrap(ctx context.Context) {
	resp, err := s.Request(ctx, Request{Method: http.MethodGet, Path: bootstrapPath, Format: FormatJSON})
	if err != nil {
		s.logger.Trace().Err(err).Str("controller", s.controller.String()).Msg("Bootstrap not available")

		return
	}

	b, err := ParseBootstrap(resp.Body, s.clock.Now())
	if err != nil {
		s.logger.Trace().Err(err).Str("controller", s.controller.String()).Msg("Bootstrap not decodable")

		return
	}

	s.bootstrap.Set(b)

	s.logger.Debug().
		Str("controller", s.controller.String()).
		Str("last_update_id", b.LastUpdateID).
		Msg("Bootstrap refreshed")
}

// Start runs the initial refresh and then refreshes every refresh interval
// until ctx is done or the session is shut down. It returns immediately.
func (s *Session) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.wg.Add(1)

		go s.refreshLoop(ctx)
	})
}

func (s *Session) refreshLoop(ctx context.Context) {
	defer s.wg.Done()

	ctx, cancel := s.bind(ctx)
	defer cancel()

	if err := s.Refresh(ctx, true); err != nil {
		if !s.stopped.Load() {
			s.logger.Error().Err(err).Str("controller", s.controller.String()).Msg("Initial refresh failed")
		}

		return
	}

	ticker := s.clock.Ticker(s.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if err := s.Refresh(ctx, false); err != nil && !s.stopped.Load() {
				s.logger.Error().Err(err).Str("controller", s.controller.String()).Msg("Periodic refresh failed")
			}
		}
	}
}

// Shutdown stops retries and the refresh loop, aborts in-flight calls and
// logs out. Logout errors are logged only. Safe to call more than once.
func (s *Session) Shutdown(ctx context.Context) {
	s.stopOnce.Do(func() {
		s.stopped.Store(true)

		s.mu.Lock()
		cred := s.credential
		s.state = StateStopped
		s.mu.Unlock()

		s.cancel()
		s.wg.Wait()

		s.logout(ctx, cred)
	})
}

func (s *Session) logout(ctx context.Context, cred string) {
	ctx, cancel := context.WithTimeout(ctx, defaultLogoutTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, Resolve(s.controller, EndpointLogout), http.NoBody)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to build logout request")

		return
	}

	if cred != "" {
		req.Header.Set("Cookie", cred)
	}

	req.Header.Set(headerRequestID, s.consumerID)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn().Err(err).Str("controller", s.controller.String()).Msg("Logout failed")

		return
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, resp.Body)

	s.logger.Debug().
		Str("controller", s.controller.String()).
		Int("status_code", resp.StatusCode).
		Msg("Logged out")
}
