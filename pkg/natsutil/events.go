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

// Package natsutil republishes realtime controller updates to NATS JetStream.
package natsutil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/serviceradar-protect/pkg/logger"
	"github.com/carverauto/serviceradar-protect/pkg/models"
	"github.com/carverauto/serviceradar-protect/pkg/protect"
)

const (
	// EventType is the CloudEvent type of every republished realtime message.
	EventType = "com.carverauto.serviceradar.protect.update"

	eventSource           = "serviceradar/protect"
	defaultPublishTimeout = 5 * time.Second
)

var errUnknownMessageKind = errors.New("unknown realtime message kind")

// Publisher is the part of jetstream.JetStream the EventPublisher needs.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// EventPublisher publishes realtime messages as CloudEvents.
type EventPublisher struct {
	js         Publisher
	prefix     string
	controller string
	timeout    time.Duration
	logger     logger.Logger
}

// NewEventPublisher creates a publisher for messages from controller under subjectPrefix.
func NewEventPublisher(js Publisher, subjectPrefix, controller string, log logger.Logger) *EventPublisher {
	return &EventPublisher{
		js:         js,
		prefix:     strings.TrimSuffix(subjectPrefix, "."),
		controller: controller,
		timeout:    defaultPublishTimeout,
		logger:     log,
	}
}

// Subject maps a message to its NATS subject: <prefix>.<modelKey>.<action>
// for update packets and <prefix>.event for JSON messages.
func (p *EventPublisher) Subject(msg protect.Message) string {
	if msg.Kind == protect.MessageUpdatePacket && msg.Packet != nil {
		return p.prefix + "." + subjectToken(msg.Packet.Action.ModelKey) + "." + subjectToken(msg.Packet.Action.Action)
	}

	return p.prefix + ".event"
}

// subjectToken makes s safe to use as a single subject token.
func subjectToken(s string) string {
	if s == "" {
		return "unknown"
	}

	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t':
			return '_'
		default:
			return r
		}
	}, s)
}

// BuildEvent wraps msg in a CloudEvent.
func (p *EventPublisher) BuildEvent(msg protect.Message) (*models.CloudEvent, error) {
	data := models.ProtectUpdateData{
		Controller: p.controller,
		Kind:       msg.Kind.String(),
	}

	switch msg.Kind {
	case protect.MessageJSON:
		data.Payload = msg.JSON
	case protect.MessageUpdatePacket:
		if msg.Packet == nil {
			return nil, errUnknownMessageKind
		}

		pkt := msg.Packet
		data.Action = pkt.Action.Action
		data.ModelKey = pkt.Action.ModelKey
		data.ID = pkt.Action.ID
		data.NewUpdateID = pkt.Action.NewUpdateID
		data.Format = pkt.Format.String()

		switch pkt.Format {
		case protect.PayloadJSON:
			data.Payload = json.RawMessage(pkt.Payload)
		case protect.PayloadText:
			data.Payload = string(pkt.Payload)
		default:
			data.Payload = pkt.Payload
		}
	default:
		return nil, fmt.Errorf("%w: %d", errUnknownMessageKind, msg.Kind)
	}

	ts := msg.ReceivedAt
	if ts.IsZero() {
		ts = time.Now()
	}

	return &models.CloudEvent{
		SpecVersion:     "1.0",
		ID:              uuid.New().String(),
		Source:          eventSource,
		Type:            EventType,
		DataContentType: "application/json",
		Subject:         p.Subject(msg),
		Time:            &ts,
		Data:            data,
	}, nil
}

// Publish sends msg to JetStream. The event ID doubles as the message ID so
// JetStream drops duplicates.
func (p *EventPublisher) Publish(ctx context.Context, msg protect.Message) error {
	event, err := p.BuildEvent(msg)
	if err != nil {
		return err
	}

	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal realtime event: %w", err)
	}

	ack, err := p.js.Publish(ctx, event.Subject, eventBytes, jetstream.WithMsgID(event.ID))
	if err != nil {
		return fmt.Errorf("failed to publish realtime event: %w", err)
	}

	p.logger.Trace().
		Str("event_id", event.ID).
		Str("subject", event.Subject).
		Uint64("seq", ack.Sequence).
		Msg("Published realtime event")

	return nil
}

// Handler adapts the publisher to a realtime interest handler. Each publish
// is bounded by the publish timeout and stops when ctx is done.
func (p *EventPublisher) Handler(ctx context.Context) func(protect.Message) {
	return func(msg protect.Message) {
		if ctx.Err() != nil {
			return
		}

		pubCtx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()

		if err := p.Publish(pubCtx, msg); err != nil {
			p.logger.Warn().Err(err).Str("subject", p.Subject(msg)).Msg("Failed to publish realtime event")
		}
	}
}
