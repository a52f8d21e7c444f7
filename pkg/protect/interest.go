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
	"encoding/json"
	"time"

	"github.com/carverauto/serviceradar-protect/pkg/logger"
)

// MessageKind tags which decode path produced a Message.
type MessageKind int

const (
	MessageJSON MessageKind = iota + 1
	MessageUpdatePacket
)

func (k MessageKind) String() string {
	switch k {
	case MessageJSON:
		return "json"
	case MessageUpdatePacket:
		return "update_packet"
	default:
		return "unknown"
	}
}

// Message is a decoded realtime frame.
type Message struct {
	Kind       MessageKind
	JSON       json.RawMessage // set for MessageJSON
	Packet     *UpdatePacket   // set for MessageUpdatePacket
	ReceivedAt time.Time
}

// Interest is a consumer's subscription to the realtime stream.
//
// DeviceID is recorded with the registration but does not filter delivery:
// every consumer receives every message and is expected to select the
// devices it cares about itself.
type Interest struct {
	DeviceID string
	Handler  func(Message)
}

// subscriber is the mailbox of one registered interest. Messages are handed
// over without blocking and delivered by the subscriber's own goroutine, so a
// slow consumer only delays itself.
type subscriber struct {
	consumerID string
	interest   Interest
	queue      chan Message
	quit       chan struct{}
	done       chan struct{}
	logger     logger.Logger
}

func newSubscriber(consumerID string, interest Interest, size int, log logger.Logger) *subscriber {
	s := &subscriber{
		consumerID: consumerID,
		interest:   interest,
		queue:      make(chan Message, size),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		logger:     log,
	}

	go s.run()

	return s
}

func (s *subscriber) run() {
	defer close(s.done)

	for {
		select {
		case <-s.quit:
			return
		default:
		}

		select {
		case <-s.quit:
			return
		case msg := <-s.queue:
			s.deliver(msg)
		}
	}
}

func (s *subscriber) deliver(msg Message) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("consumer_id", s.consumerID).
				Interface("panic", r).
				Msg("Interest handler panicked")
		}
	}()

	s.interest.Handler(msg)
}

// offer queues msg, reporting false when the mailbox is full.
func (s *subscriber) offer(msg Message) bool {
	select {
	case s.queue <- msg:
		return true
	default:
		return false
	}
}

func (s *subscriber) stop() {
	close(s.quit)
}
