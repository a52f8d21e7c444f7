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

// Package bridge runs one controller session, its shared realtime channel and
// the configured sinks as a single service.
package bridge

import (
	"errors"
	"fmt"
	"time"

	"github.com/carverauto/serviceradar-protect/pkg/logger"
	"github.com/carverauto/serviceradar-protect/pkg/models"
	"github.com/carverauto/serviceradar-protect/pkg/protect"
)

const (
	defaultConsumerID      = "serviceradar-protect"
	defaultRefreshInterval = 45 * time.Minute
	defaultReconnectDelay  = 5 * time.Second
	defaultMailboxSize     = 256
	defaultAdminListenAddr = ":8090"
)

var (
	errHostRequired        = errors.New("controller host is required")
	errInvalidVariant      = errors.New("invalid controller variant")
	errCredentialsRequired = errors.New("controller username and password are required")
	errInvalidPort         = errors.New("invalid controller port")
	errInvalidMailboxSize  = errors.New("mailbox size must not be negative")
)

// ControllerConfig identifies the controller and the account used to log in.
type ControllerConfig struct {
	Host       string `json:"host" yaml:"host"`
	Port       int    `json:"port,omitempty" yaml:"port,omitempty"`
	Variant    string `json:"variant" yaml:"variant"`
	Username   string `json:"username" yaml:"username"`
	Password   string `json:"password" yaml:"password"`
	DisableTLS bool   `json:"disable_tls,omitempty" yaml:"disable_tls,omitempty"`
}

// Config is the protect bridge configuration.
type Config struct {
	Controller      ControllerConfig    `json:"controller" yaml:"controller"`
	ConsumerID      string              `json:"consumer_id,omitempty" yaml:"consumer_id,omitempty"`
	RefreshInterval models.Duration     `json:"refresh_interval,omitempty" yaml:"refresh_interval,omitempty"`
	ReconnectDelay  models.Duration     `json:"reconnect_delay,omitempty" yaml:"reconnect_delay,omitempty"`
	MailboxSize     int                 `json:"mailbox_size,omitempty" yaml:"mailbox_size,omitempty"`
	NATS            *models.NATSConfig  `json:"nats,omitempty" yaml:"nats,omitempty"`
	Admin           *models.AdminConfig `json:"admin,omitempty" yaml:"admin,omitempty"`
	Logging         *logger.Config      `json:"logging,omitempty" yaml:"logging,omitempty"`
}

// Validate checks required fields and fills in defaults.
func (c *Config) Validate() error {
	if c.Controller.Host == "" {
		return errHostRequired
	}

	if c.Controller.Variant == "" {
		c.Controller.Variant = string(protect.VariantConsole)
	}

	if !protect.Variant(c.Controller.Variant).Valid() {
		return fmt.Errorf("%w: %q", errInvalidVariant, c.Controller.Variant)
	}

	if c.Controller.Port < 0 || c.Controller.Port > 65535 {
		return fmt.Errorf("%w: %d", errInvalidPort, c.Controller.Port)
	}

	if c.Controller.Username == "" || c.Controller.Password == "" {
		return errCredentialsRequired
	}

	if c.ConsumerID == "" {
		c.ConsumerID = defaultConsumerID
	}

	if c.RefreshInterval <= 0 {
		c.RefreshInterval = models.Duration(defaultRefreshInterval)
	}

	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = models.Duration(defaultReconnectDelay)
	}

	if c.MailboxSize < 0 {
		return errInvalidMailboxSize
	}

	if c.MailboxSize == 0 {
		c.MailboxSize = defaultMailboxSize
	}

	if c.NATS != nil {
		if err := c.NATS.Validate(); err != nil {
			return err
		}
	}

	if c.Admin != nil && c.Admin.ListenAddr == "" {
		c.Admin.ListenAddr = defaultAdminListenAddr
	}

	return nil
}

// ProtectController converts the controller section into a protect.Controller.
func (c *Config) ProtectController() protect.Controller {
	return protect.Controller{
		Host:       c.Controller.Host,
		Port:       c.Controller.Port,
		Variant:    protect.Variant(c.Controller.Variant),
		DisableTLS: c.Controller.DisableTLS,
	}
}
