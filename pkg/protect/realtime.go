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
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/carverauto/serviceradar-protect/pkg/logger"
)

const (
	defaultReconnectDelay = 5 * time.Second
	defaultMailboxSize    = 256
	handshakeTimeout      = 30 * time.Second
	pingInterval          = 30 * time.Second
	pongTimeout           = 60 * time.Second
	writeTimeout          = 10 * time.Second
)

var errNoPacket = errors.New("decoder returned no packet")

// wsDialer adapts gorilla/websocket to Dialer.
type wsDialer struct {
	dialer *websocket.Dialer
}

func (w wsDialer) DialContext(ctx context.Context, urlStr string, header http.Header) (Conn, *http.Response, error) {
	conn, resp, err := w.dialer.DialContext(ctx, urlStr, header)
	if err != nil {
		return nil, resp, err
	}

	return conn, resp, nil
}

// NewWebsocketDialer returns a Dialer that, like the session's HTTP client,
// accepts the controller's self-signed certificate.
func NewWebsocketDialer() Dialer {
	return wsDialer{dialer: &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
		TLSClientConfig:  &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // self-signed controller certificates
	}}
}

// ChannelOption configures a Channel.
type ChannelOption func(*Channel)

// WithDialer replaces the websocket dialer.
func WithDialer(d Dialer) ChannelOption {
	return func(c *Channel) { c.dialer = d }
}

// WithPacketDecoder replaces the update packet decoder.
func WithPacketDecoder(d PacketDecoder) ChannelOption {
	return func(c *Channel) { c.decoder = d }
}

// WithChannelClock replaces the wall clock used for reconnect waits and pings.
func WithChannelClock(clock Clock) ChannelOption {
	return func(c *Channel) { c.clock = clock }
}

// WithChannelMetrics sets the metrics sink.
func WithChannelMetrics(m Metrics) ChannelOption {
	return func(c *Channel) { c.metrics = m }
}

// WithReconnectDelay overrides the fixed reconnect delay.
func WithReconnectDelay(d time.Duration) ChannelOption {
	return func(c *Channel) { c.reconnectDelay = d }
}

// WithMailboxSize sets how many undelivered messages each interest may hold.
func WithMailboxSize(n int) ChannelOption {
	return func(c *Channel) { c.mailboxSize = n }
}

// Channel is the single realtime connection to a controller, shared by every
// registered interest. It reconnects after errors and server closes until Close.
type Channel struct {
	controller     Controller
	credentials    CredentialSource
	dialer         Dialer
	decoder        PacketDecoder
	clock          Clock
	logger         logger.Logger
	metrics        Metrics
	reconnectDelay time.Duration
	mailboxSize    int

	mu           sync.RWMutex
	interests    map[string]*subscriber
	lastUpdateID string
	conn         Conn
	forceLogin   bool
	// active is set while a connection or the reconnect loop owns the channel.
	active       bool

	ctx       context.Context
	cancel    context.CancelFunc
	closed    atomic.Bool
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewChannel creates the shared channel for a controller. initial seeds the
// resume cursor and may be nil when no bootstrap is available yet.
func NewChannel(controller Controller, credentials CredentialSource, initial *Bootstrap,
	log logger.Logger, opts ...ChannelOption) *Channel {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Channel{
		controller:     controller,
		credentials:    credentials,
		dialer:         NewWebsocketDialer(),
		decoder:        UpdatePacketDecoder{},
		clock:          realClock{},
		logger:         log,
		metrics:        &NoOpMetrics{},
		reconnectDelay: defaultReconnectDelay,
		mailboxSize:    defaultMailboxSize,
		interests:      make(map[string]*subscriber),
		ctx:            ctx,
		cancel:         cancel,
	}

	if initial != nil {
		c.lastUpdateID = initial.LastUpdateID
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// RegisterInterest adds or replaces the registration for consumerID.
func (c *Channel) RegisterInterest(consumerID string, interest Interest) error {
	if consumerID == "" {
		return errEmptyConsumerID
	}

	if interest.Handler == nil {
		return errNilHandler
	}

	sub := newSubscriber(consumerID, interest, c.mailboxSize, c.logger)

	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		sub.stop()

		return ErrChannelClosed
	}

	old := c.interests[consumerID]
	c.interests[consumerID] = sub
	c.mu.Unlock()

	if old != nil {
		old.stop()
	}

	c.logger.Debug().
		Str("consumer_id", consumerID).
		Str("device_id", interest.DeviceID).
		Msg("Registered realtime interest")

	return nil
}

// DeregisterInterest removes the registration for consumerID, if any.
func (c *Channel) DeregisterInterest(consumerID string) {
	c.mu.Lock()
	sub, ok := c.interests[consumerID]
	delete(c.interests, consumerID)
	c.mu.Unlock()

	if ok {
		sub.stop()

		c.logger.Debug().Str("consumer_id", consumerID).Msg("Deregistered realtime interest")
	}
}

// Consumers lists the registered consumer IDs in sorted order.
func (c *Channel) Consumers() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.interests))
	for id := range c.interests {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}

// UpdateCursor stores the snapshot's lastUpdateId for the next connection.
// The open connection is not touched.
func (c *Channel) UpdateCursor(b *Bootstrap) {
	if b == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastUpdateID = b.LastUpdateID
}

// Cursor returns the resume cursor used for the next connection.
func (c *Channel) Cursor() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.lastUpdateID
}

// Connected reports whether a connection is currently open.
func (c *Channel) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.conn != nil
}

// Connect opens the realtime connection and starts reading from it. When the
// connection later fails the channel reconnects on its own. Calling Connect
// or Start while a connection or reconnect loop is running does nothing.
func (c *Channel) Connect(ctx context.Context) error {
	claimed, err := c.claim()
	if err != nil || !claimed {
		return err
	}

	if err := c.connect(ctx); err != nil {
		c.unclaim()

		return err
	}

	return nil
}

// Start connects, falling back to the reconnect loop when the first attempt fails.
func (c *Channel) Start(ctx context.Context) {
	claimed, err := c.claim()
	if err != nil || !claimed {
		return
	}

	err = c.connect(ctx)
	if err == nil || errors.Is(err, ErrChannelClosed) {
		return
	}

	c.logger.Warn().
		Err(err).
		Str("controller", c.controller.String()).
		Dur("retry_in", c.reconnectDelay).
		Msg("Initial realtime connection failed")

	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()

		return
	}

	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()

		c.reconnect()
	}()
}

// claim marks the channel active. It reports false when it already was.
func (c *Channel) claim() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return false, ErrChannelClosed
	}

	if c.active {
		return false, nil
	}

	c.active = true

	return true, nil
}

func (c *Channel) unclaim() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.active = false
}

func (c *Channel) connect(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}

	if !c.adopt(conn, true) {
		return ErrChannelClosed
	}

	go func() {
		defer c.wg.Done()

		c.serve(conn)
		c.reconnect()
	}()

	return nil
}

// Close stops reconnecting, closes the connection and stops every mailbox.
func (c *Channel) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed.Store(true)
		conn := c.conn
		c.conn = nil
		subs := c.interests
		c.interests = make(map[string]*subscriber)
		c.mu.Unlock()

		c.cancel()

		if conn != nil {
			_ = conn.Close()
		}

		c.wg.Wait()

		for _, sub := range subs {
			sub.stop()
		}

		for _, sub := range subs {
			<-sub.done
		}

		c.logger.Info().Str("controller", c.controller.String()).Msg("Realtime channel closed")
	})
}

// adopt makes conn the current connection unless the channel is closed.
// With track set the caller's goroutine is added to the wait group.
func (c *Channel) adopt(conn Conn, track bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		_ = conn.Close()

		return false
	}

	c.conn = conn

	if track {
		c.wg.Add(1)
	}

	return true
}

func (c *Channel) release(conn Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == conn {
		c.conn = nil
	}
}

func (c *Channel) dial(ctx context.Context) (Conn, error) {
	c.mu.Lock()
	force := c.forceLogin
	c.forceLogin = false
	cursor := c.lastUpdateID
	c.mu.Unlock()

	cred, err := c.credentials.GetCredential(ctx, force)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain credential: %w", err)
	}

	header := http.Header{}
	header.Set("Cookie", cred)

	conn, resp, err := c.dialer.DialContext(ctx, UpdatesURL(c.controller, cursor), header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			c.mu.Lock()
			c.forceLogin = true
			c.mu.Unlock()
		}

		return nil, fmt.Errorf("failed to open realtime stream: %w", err)
	}

	c.logger.Info().
		Str("controller", c.controller.String()).
		Str("last_update_id", cursor).
		Msg("Realtime stream connected")

	return conn, nil
}

// serve reads frames until the connection fails.
func (c *Channel) serve(conn Conn) {
	pingCtx, stopPing := context.WithCancel(c.ctx)
	defer stopPing()

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	_ = conn.SetReadDeadline(time.Now().Add(pongTimeout))

	c.wg.Add(1)

	go c.keepalive(pingCtx, conn)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.release(conn)
			_ = conn.Close()

			if !c.closed.Load() {
				c.logger.Warn().
					Err(fmt.Errorf("%w: %w", ErrStreamDisconnected, err)).
					Str("controller", c.controller.String()).
					Dur("retry_in", c.reconnectDelay).
					Msg("Realtime stream lost")
			}

			return
		}

		c.handleFrame(data)
	}
}

func (c *Channel) keepalive(ctx context.Context, conn Conn) {
	defer c.wg.Done()

	ticker := c.clock.Ticker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}

// reconnect redials after a fixed delay until a connection is established,
// serves it, and starts over when it fails. It returns once the channel closes.
func (c *Channel) reconnect() {
	for {
		if c.closed.Load() {
			return
		}

		select {
		case <-c.clock.After(c.reconnectDelay):
		case <-c.ctx.Done():
			return
		}

		if c.closed.Load() {
			return
		}

		c.metrics.RecordReconnect(c.controller.String())

		conn, err := c.dial(c.ctx)
		if err != nil {
			if !c.closed.Load() {
				c.logger.Warn().
					Err(err).
					Str("controller", c.controller.String()).
					Dur("retry_in", c.reconnectDelay).
					Msg("Realtime reconnect failed")
			}

			continue
		}

		if !c.adopt(conn, false) {
			return
		}

		c.serve(conn)
	}
}

func (c *Channel) handleFrame(data []byte) {
	msg, err := c.decode(data)
	if err != nil {
		c.metrics.RecordDecodeFailure(err)
		c.logger.Warn().
			Err(err).
			Int("frame_size", len(data)).
			Msg("Dropping undecodable realtime frame")

		return
	}

	c.metrics.RecordFrame(msg.Kind)
	c.dispatch(msg)
}

// decode routes well-formed JSON text to the JSON path and everything else
// to the packet decoder.
func (c *Channel) decode(data []byte) (Message, error) {
	now := c.clock.Now()

	if json.Valid(data) {
		return Message{
			Kind:       MessageJSON,
			JSON:       append(json.RawMessage(nil), data...),
			ReceivedAt: now,
		}, nil
	}

	pkt, err := c.decoder.Decode(data)
	if err != nil {
		return Message{}, fmt.Errorf("%w: %w", ErrDecodeFailed, err)
	}

	if pkt == nil {
		return Message{}, fmt.Errorf("%w: %w", ErrDecodeFailed, errNoPacket)
	}

	return Message{Kind: MessageUpdatePacket, Packet: pkt, ReceivedAt: now}, nil
}

// dispatch hands msg to every registered interest.
func (c *Channel) dispatch(msg Message) {
	c.mu.RLock()
	subs := make([]*subscriber, 0, len(c.interests))

	for _, sub := range c.interests {
		subs = append(subs, sub)
	}
	c.mu.RUnlock()

	for _, sub := range subs {
		if !sub.offer(msg) {
			c.metrics.RecordDroppedDelivery(sub.consumerID)
			c.logger.Warn().
				Str("consumer_id", sub.consumerID).
				Msg("Interest mailbox full, dropping realtime message")
		}
	}
}
