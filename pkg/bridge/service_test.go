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
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/serviceradar-protect/pkg/logger"
	"github.com/carverauto/serviceradar-protect/pkg/models"
	"github.com/carverauto/serviceradar-protect/pkg/protect"
)

const waitFor = 5 * time.Second

// fakeController serves login, logout, bootstrap and the realtime endpoint,
// pushing one update packet to every realtime connection.
type fakeController struct {
	t       *testing.T
	srv     *httptest.Server
	failing bool

	mu      sync.Mutex
	cursors []string
	logouts int
	open    []*websocket.Conn
}

func newFakeController(t *testing.T, failing bool) *fakeController {
	t.Helper()

	fc := &fakeController{t: t, failing: failing}
	fc.srv = httptest.NewServer(http.HandlerFunc(fc.serveHTTP))

	t.Cleanup(func() {
		fc.mu.Lock()
		for _, conn := range fc.open {
			_ = conn.Close()
		}
		fc.mu.Unlock()

		fc.srv.Close()
	})

	return fc
}

func (fc *fakeController) serveHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/auth/login":
		if fc.failing {
			w.WriteHeader(http.StatusInternalServerError)

			return
		}

		w.Header().Add("Set-Cookie", "TOKEN=abc; Path=/; HttpOnly")
		w.WriteHeader(http.StatusOK)
	case "/api/auth/logout":
		fc.mu.Lock()
		fc.logouts++
		fc.mu.Unlock()

		w.WriteHeader(http.StatusOK)
	case "/proxy/protect/api/bootstrap":
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"lastUpdateId":"u-7","nvr":{"id":"nvr-1","name":"NVR","version":"5.0"}}`))
	case "/proxy/protect/ws/updates":
		fc.serveUpdates(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (fc *fakeController) serveUpdates(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	fc.mu.Lock()
	fc.cursors = append(fc.cursors, r.URL.Query().Get("lastUpdateId"))
	fc.open = append(fc.open, conn)
	fc.mu.Unlock()

	frame, err := protect.EncodeUpdatePacket(protect.PacketAction{
		Action:      "update",
		NewUpdateID: "u-8",
		ModelKey:    "camera",
		ID:          "cam-1",
	}, protect.PayloadJSON, []byte(`{"isMotionDetected":true}`), true)
	if err != nil {
		fc.t.Errorf("encode packet: %v", err)

		return
	}

	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return
	}

	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()
}

func (fc *fakeController) Cursors() []string {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	return append([]string(nil), fc.cursors...)
}

func (fc *fakeController) Logouts() int {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	return fc.logouts
}

func (fc *fakeController) config(t *testing.T) *Config {
	t.Helper()

	u, err := url.Parse(fc.srv.URL)
	require.NoError(t, err)

	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)

	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	return &Config{
		Controller: ControllerConfig{
			Host:       host,
			Port:       port,
			Username:   "admin",
			Password:   "secret",
			DisableTLS: true,
		},
		ReconnectDelay: models.Duration(50 * time.Millisecond),
	}
}

type fakePublisher struct {
	mu       sync.Mutex
	subjects []string
}

func (f *fakePublisher) Publish(_ context.Context, subject string, _ []byte, _ ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.subjects = append(f.subjects, subject)

	return &jetstream.PubAck{Stream: "protect", Sequence: uint64(len(f.subjects))}, nil
}

func (f *fakePublisher) Subjects() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.subjects...)
}

func TestServiceFansOutRealtimeUpdates(t *testing.T) {
	fc := newFakeController(t, false)
	pub := &fakePublisher{}

	cfg := fc.config(t)
	cfg.Admin = &models.AdminConfig{ListenAddr: "127.0.0.1:0"}

	svc, err := NewService(cfg, logger.NewTestLogger(), WithPublisher(pub))
	require.NoError(t, err)

	received := make(chan protect.Message, 4)
	require.NoError(t, svc.RegisterInterest("recorder", protect.Interest{
		Handler: func(msg protect.Message) { received <- msg },
	}))

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()

	require.NoError(t, svc.Start(ctx))
	require.ErrorIs(t, svc.Start(ctx), errServiceStarted)

	select {
	case msg := <-received:
		require.Equal(t, protect.MessageUpdatePacket, msg.Kind)
		require.NotNil(t, msg.Packet)
		assert.Equal(t, "camera", msg.Packet.Action.ModelKey)
	case <-time.After(waitFor):
		t.Fatal("no realtime message delivered")
	}

	require.Eventually(t, func() bool {
		return len(pub.Subjects()) == 1
	}, waitFor, 10*time.Millisecond)

	assert.Equal(t, "protect.camera.update", pub.Subjects()[0])
	assert.Equal(t, []string{"u-7"}, fc.Cursors())
	assert.True(t, svc.Session().Initialized())
	assert.ElementsMatch(t, []string{"recorder", natsConsumerID}, svc.Channel().Consumers())

	snapshot, ok := svc.Session().Bootstrap().Get()
	require.True(t, ok)
	assert.Equal(t, "nvr-1", snapshot.NVR.ID)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), waitFor)
	defer stopCancel()

	require.NoError(t, svc.Stop(stopCtx))
	assert.Equal(t, 1, fc.Logouts())
	assert.Equal(t, protect.StateStopped, svc.Session().State())
	assert.Empty(t, svc.Channel().Consumers())
}

func TestServiceStartGivesUpWhenContextEnds(t *testing.T) {
	fc := newFakeController(t, true)

	svc, err := NewService(fc.config(t), logger.NewTestLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	require.ErrorIs(t, svc.Start(ctx), context.DeadlineExceeded)
	assert.False(t, svc.Session().Initialized())

	stopCtx, stopCancel := context.WithTimeout(context.Background(), waitFor)
	defer stopCancel()

	require.NoError(t, svc.Stop(stopCtx))
}

func TestNewServiceRejectsInvalidConfig(t *testing.T) {
	_, err := NewService(&Config{}, logger.NewTestLogger())
	require.ErrorIs(t, err, errHostRequired)
}

func TestStopWithoutStart(t *testing.T) {
	fc := newFakeController(t, false)

	svc, err := NewService(fc.config(t), logger.NewTestLogger())
	require.NoError(t, err)

	require.NoError(t, svc.Stop(context.Background()))
}
