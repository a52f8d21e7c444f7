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

package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"

	"github.com/carverauto/serviceradar-protect/pkg/admin"
	"github.com/carverauto/serviceradar-protect/pkg/logger"
	"github.com/carverauto/serviceradar-protect/pkg/natsutil"
	"github.com/carverauto/serviceradar-protect/pkg/protect"
)

// natsConsumerID is the interest the JetStream sink registers under.
const natsConsumerID = "nats-sink"

var errServiceStarted = errors.New("service already started")

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithSessionOptions passes extra options to the controller session.
func WithSessionOptions(opts ...protect.Option) ServiceOption {
	return func(s *Service) {
		s.sessionOpts = append(s.sessionOpts, opts...)
	}
}

// WithChannelOptions passes extra options to the realtime channel.
func WithChannelOptions(opts ...protect.ChannelOption) ServiceOption {
	return func(s *Service) {
		s.channelOpts = append(s.channelOpts, opts...)
	}
}

// WithPublisher sinks realtime messages into js instead of connecting to the
// configured NATS server.
func WithPublisher(js natsutil.Publisher) ServiceOption {
	return func(s *Service) {
		s.js = js
	}
}

// Service owns the session, bootstrap cache and shared channel of one
// controller plus the sinks fed from the channel.
type Service struct {
	config  *Config
	logger  logger.Logger
	metrics *protect.InMemoryMetrics
	session *protect.Session
	channel *protect.Channel

	sessionOpts []protect.Option
	channelOpts []protect.ChannelOption
	js          natsutil.Publisher
	nc          *nats.Conn

	mu          sync.Mutex
	started     bool
	cancel      context.CancelFunc
	group       *errgroup.Group
	unsubscribe func()
}

// NewService validates cfg and builds the session and channel. Nothing is
// sent to the controller until Start.
func NewService(cfg *Config, log logger.Logger, opts ...ServiceOption) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Service{
		config:  cfg,
		logger:  log,
		metrics: protect.NewInMemoryMetrics(log),
	}

	for _, opt := range opts {
		opt(s)
	}

	controller := cfg.ProtectController()

	sessionOpts := append([]protect.Option{
		protect.WithConsumerID(cfg.ConsumerID),
		protect.WithRefreshInterval(time.Duration(cfg.RefreshInterval)),
		protect.WithMetrics(s.metrics),
	}, s.sessionOpts...)

	s.session = protect.NewSession(controller, protect.Credentials{
		Username: cfg.Controller.Username,
		Password: cfg.Controller.Password,
	}, log, sessionOpts...)

	channelOpts := append([]protect.ChannelOption{
		protect.WithChannelMetrics(s.metrics),
		protect.WithReconnectDelay(time.Duration(cfg.ReconnectDelay)),
		protect.WithMailboxSize(cfg.MailboxSize),
	}, s.channelOpts...)

	s.channel = protect.NewChannel(controller, s.session, nil, log, channelOpts...)

	return s, nil
}

// Session returns the controller session.
func (s *Service) Session() *protect.Session {
	return s.session
}

// Channel returns the shared realtime channel.
func (s *Service) Channel() *protect.Channel {
	return s.channel
}

// Metrics returns the service metrics.
func (s *Service) Metrics() *protect.InMemoryMetrics {
	return s.metrics
}

// RegisterInterest subscribes an in-process consumer to the realtime stream.
func (s *Service) RegisterInterest(consumerID string, interest protect.Interest) error {
	return s.channel.RegisterInterest(consumerID, interest)
}

// DeregisterInterest removes an in-process consumer.
func (s *Service) DeregisterInterest(consumerID string) {
	s.channel.DeregisterInterest(consumerID)
}

// Start logs in, waits for the initial bootstrap and then opens the realtime
// channel and starts the sinks. It returns ctx.Err() if ctx ends first.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()

		return errServiceStarted
	}

	s.started = true

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.group, runCtx = errgroup.WithContext(runCtx)
	s.unsubscribe = s.session.Bootstrap().Subscribe(s.channel.UpdateCursor)
	s.mu.Unlock()

	s.logger.Info().
		Str("controller", s.session.Controller().String()).
		Str("consumer_id", s.config.ConsumerID).
		Msg("Starting protect bridge")

	s.session.Start(runCtx)

	select {
	case <-s.session.Ready():
	case <-ctx.Done():
		return ctx.Err()
	}

	if snapshot, ok := s.session.Bootstrap().Get(); ok {
		s.channel.UpdateCursor(snapshot)
	}

	if err := s.startPublisher(ctx, runCtx); err != nil {
		return err
	}

	s.channel.Start(runCtx)

	if s.config.Admin != nil {
		srv := admin.NewServer(*s.config.Admin, s.session, s.channel, s.metrics, s.logger)

		s.group.Go(func() error {
			return srv.ListenAndServe(runCtx)
		})
	}

	return nil
}

func (s *Service) startPublisher(ctx, runCtx context.Context) error {
	if s.js == nil && s.config.NATS == nil {
		return nil
	}

	prefix := "protect"
	if s.config.NATS != nil {
		prefix = s.config.NATS.SubjectPrefix
	}

	if s.js == nil {
		nc, js, err := natsutil.Connect(ctx, s.config.NATS, s.logger)
		if err != nil {
			return err
		}

		s.mu.Lock()
		s.nc = nc
		s.mu.Unlock()

		s.js = js
	}

	publisher := natsutil.NewEventPublisher(s.js, prefix, s.session.Controller().String(), s.logger)

	if err := s.channel.RegisterInterest(natsConsumerID, protect.Interest{Handler: publisher.Handler(runCtx)}); err != nil {
		return fmt.Errorf("failed to register NATS sink: %w", err)
	}

	return nil
}

// Stop closes the channel, shuts the session down and waits for the sinks.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	group := s.group
	unsubscribe := s.unsubscribe
	nc := s.nc
	s.mu.Unlock()

	s.channel.Close()
	s.session.Shutdown(ctx)

	if unsubscribe != nil {
		unsubscribe()
	}

	if cancel != nil {
		cancel()
	}

	var err error
	if group != nil {
		err = group.Wait()
	}

	if nc != nil {
		if drainErr := nc.Drain(); drainErr != nil {
			s.logger.Warn().Err(drainErr).Msg("Failed to drain NATS connection")
		}
	}

	s.logger.Info().Str("controller", s.session.Controller().String()).Msg("Protect bridge stopped")

	return err
}
