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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/serviceradar-protect/pkg/models"
	"github.com/carverauto/serviceradar-protect/pkg/protect"
)

func validConfig() *Config {
	return &Config{
		Controller: ControllerConfig{
			Host:     "nvr.local",
			Username: "admin",
			Password: "secret",
		},
	}
}

func TestValidateDefaults(t *testing.T) {
	cfg := validConfig()
	cfg.Admin = &models.AdminConfig{}

	require.NoError(t, cfg.Validate())

	assert.Equal(t, string(protect.VariantConsole), cfg.Controller.Variant)
	assert.Equal(t, defaultConsumerID, cfg.ConsumerID)
	assert.Equal(t, models.Duration(defaultRefreshInterval), cfg.RefreshInterval)
	assert.Equal(t, models.Duration(defaultReconnectDelay), cfg.ReconnectDelay)
	assert.Equal(t, defaultMailboxSize, cfg.MailboxSize)
	assert.Equal(t, defaultAdminListenAddr, cfg.Admin.ListenAddr)
}

func TestValidateKeepsExplicitValues(t *testing.T) {
	cfg := validConfig()
	cfg.Controller.Variant = string(protect.VariantLegacy)
	cfg.ConsumerID = "recorder"
	cfg.RefreshInterval = models.Duration(defaultReconnectDelay)
	cfg.MailboxSize = 8
	cfg.NATS = &models.NATSConfig{URL: "nats://localhost:4222"}

	require.NoError(t, cfg.Validate())

	assert.Equal(t, "recorder", cfg.ConsumerID)
	assert.Equal(t, models.Duration(defaultReconnectDelay), cfg.RefreshInterval)
	assert.Equal(t, 8, cfg.MailboxSize)
	assert.Equal(t, "protect", cfg.NATS.Stream)
	assert.Equal(t, protect.VariantLegacy, cfg.ProtectController().Variant)
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"missing host", func(c *Config) { c.Controller.Host = "" }, errHostRequired},
		{"unknown variant", func(c *Config) { c.Controller.Variant = "cloud" }, errInvalidVariant},
		{"bad port", func(c *Config) { c.Controller.Port = 70000 }, errInvalidPort},
		{"missing username", func(c *Config) { c.Controller.Username = "" }, errCredentialsRequired},
		{"missing password", func(c *Config) { c.Controller.Password = "" }, errCredentialsRequired},
		{"negative mailbox", func(c *Config) { c.MailboxSize = -1 }, errInvalidMailboxSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			require.ErrorIs(t, cfg.Validate(), tt.want)
		})
	}
}

func TestValidateNATS(t *testing.T) {
	cfg := validConfig()
	cfg.NATS = &models.NATSConfig{}

	require.Error(t, cfg.Validate())
}

func TestProtectController(t *testing.T) {
	cfg := validConfig()
	cfg.Controller.Port = 7443
	cfg.Controller.DisableTLS = true
	require.NoError(t, cfg.Validate())

	assert.Equal(t, protect.Controller{
		Host:       "nvr.local",
		Port:       7443,
		Variant:    protect.VariantConsole,
		DisableTLS: true,
	}, cfg.ProtectController())
}
