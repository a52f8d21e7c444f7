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

// Package admin serves the read-only admin API of the protect bridge.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	srHttp "github.com/carverauto/serviceradar-protect/pkg/http"
	"github.com/carverauto/serviceradar-protect/pkg/logger"
	"github.com/carverauto/serviceradar-protect/pkg/models"
	"github.com/carverauto/serviceradar-protect/pkg/protect"
)

const (
	defaultReadTimeout  = 10 * time.Second
	defaultWriteTimeout = 10 * time.Second
	defaultIdleTimeout  = 60 * time.Second
)

// SessionStatus is the part of protect.Session the admin API reads.
type SessionStatus interface {
	Controller() protect.Controller
	State() protect.State
	Initialized() bool
	Bootstrap() *protect.BootstrapCache
}

// ChannelStatus is the part of protect.Channel the admin API reads.
type ChannelStatus interface {
	Consumers() []string
	Connected() bool
	Cursor() string
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Controller   string     `json:"controller"`
	State        string     `json:"state"`
	Initialized  bool       `json:"initialized"`
	Connected    bool       `json:"connected"`
	Cursor       string     `json:"cursor,omitempty"`
	Consumers    []string   `json:"consumers"`
	Interests    int        `json:"interests"`
	BootstrapAge string     `json:"bootstrap_age,omitempty"`
	FetchedAt    *time.Time `json:"fetched_at,omitempty"`
}

// Server is the admin HTTP server.
type Server struct {
	router  *mux.Router
	session SessionStatus
	channel ChannelStatus
	metrics protect.Metrics
	config  models.AdminConfig
	logger  logger.Logger
	srv     *http.Server
}

// NewServer creates an admin server. channel and metrics may be nil.
func NewServer(cfg models.AdminConfig, session SessionStatus, channel ChannelStatus,
	metrics protect.Metrics, log logger.Logger) *Server {
	if metrics == nil {
		metrics = &protect.NoOpMetrics{}
	}

	s := &Server{
		router:  mux.NewRouter(),
		session: session,
		channel: channel,
		metrics: metrics,
		config:  cfg,
		logger:  log,
	}

	s.setupRoutes()

	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.Use(func(next http.Handler) http.Handler {
		return srHttp.CommonMiddleware(next, s.config.CORS, s.logger)
	})

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet, http.MethodOptions)

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(srHttp.APIKeyMiddleware(s.config.APIKey, s.logger))
	api.HandleFunc("/bootstrap", s.handleBootstrap).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet, http.MethodOptions)
}

// ListenAndServe serves until ctx is done, then shuts the server down.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:         s.config.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		IdleTimeout:  defaultIdleTimeout,
	}

	errCh := make(chan error, 1)

	go func() {
		s.logger.Info().Str("addr", s.config.ListenAddr).Msg("Starting admin API")

		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultWriteTimeout)
		defer cancel()

		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return err
		}

		return nil
	}
}

func (*Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleBootstrap(w http.ResponseWriter, _ *http.Request) {
	snapshot, ok := s.session.Bootstrap().Get()
	if !ok || len(snapshot.Raw) == 0 {
		writeError(w, "bootstrap not available", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Last-Modified", snapshot.FetchedAt.UTC().Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(snapshot.Raw); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to write bootstrap response")
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{
		Controller:  s.session.Controller().String(),
		State:       s.session.State().String(),
		Initialized: s.session.Initialized(),
		Consumers:   []string{},
	}

	if s.channel != nil {
		resp.Connected = s.channel.Connected()
		resp.Cursor = s.channel.Cursor()
		resp.Consumers = s.channel.Consumers()
		resp.Interests = len(resp.Consumers)
	}

	if snapshot, ok := s.session.Bootstrap().Get(); ok {
		fetchedAt := snapshot.FetchedAt
		resp.FetchedAt = &fetchedAt
		resp.BootstrapAge = time.Since(snapshot.FetchedAt).Round(time.Second).String()
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.GetMetrics())
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
