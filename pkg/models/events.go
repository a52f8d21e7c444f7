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

package models

import (
	"errors"
	"time"
)

var errNATSURLRequired = errors.New("nats url is required")

// NATSConfig configures NATS connectivity
type NATSConfig struct {
	URL       string `json:"url" yaml:"url"`
	Domain    string `json:"domain,omitempty" yaml:"domain,omitempty"`
	CredsFile string `json:"creds_file,omitempty" yaml:"creds_file,omitempty"`
	// Stream is the JetStream stream that captures the realtime subjects.
	Stream string `json:"stream,omitempty" yaml:"stream,omitempty"`
	// SubjectPrefix prefixes every published subject.
	SubjectPrefix string `json:"subject_prefix,omitempty" yaml:"subject_prefix,omitempty"`
}

// Validate ensures the NATS configuration is valid
func (c *NATSConfig) Validate() error {
	if c.URL == "" {
		return errNATSURLRequired
	}

	if c.Stream == "" {
		c.Stream = "protect"
	}

	if c.SubjectPrefix == "" {
		c.SubjectPrefix = "protect"
	}

	return nil
}

// CloudEvent represents a CloudEvents v1.0 compliant event.
type CloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	ID              string      `json:"id"`
	Source          string      `json:"source"`
	Type            string      `json:"type"`
	DataContentType string      `json:"datacontenttype"`
	Subject         string      `json:"subject,omitempty"`
	Time            *time.Time  `json:"time,omitempty"`
	Data            interface{} `json:"data,omitempty"`
}

// ProtectUpdateData is the CloudEvent payload for one realtime message.
type ProtectUpdateData struct {
	Controller string `json:"controller"`
	// Kind is "json" or "update_packet".
	Kind        string      `json:"kind"`
	Action      string      `json:"action,omitempty"`
	ModelKey    string      `json:"model_key,omitempty"`
	ID          string      `json:"id,omitempty"`
	NewUpdateID string      `json:"new_update_id,omitempty"`
	Format      string      `json:"format,omitempty"`
	Payload     interface{} `json:"payload"`
}
