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

package lifecycle

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/serviceradar-protect/pkg/logger"
)

type stubService struct {
	startErr error
	stopErr  error
	started  atomic.Bool
	stopped  atomic.Bool
	stopCtx  context.Context
}

func (s *stubService) Start(context.Context) error {
	s.started.Store(true)

	return s.startErr
}

func (s *stubService) Stop(ctx context.Context) error {
	s.stopCtx = ctx
	s.stopped.Store(true)

	return s.stopErr
}

func TestCreateComponentLogger(t *testing.T) {
	l, err := CreateComponentLogger("protect", &logger.Config{Level: "warn"})
	require.NoError(t, err)

	c := l.WithComponent("realtime")
	assert.Equal(t, zerolog.WarnLevel, c.GetLevel())

	l.SetDebug(true)
	c = l.WithComponent("realtime")
	assert.Equal(t, zerolog.DebugLevel, c.GetLevel())

	_, err = CreateComponentLogger("protect", &logger.Config{Level: "chatty"})
	require.Error(t, err)
}

func TestCreateLogger_Defaults(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("DEBUG", "false")

	l, err := CreateLogger(nil)
	require.NoError(t, err)

	fields := l.WithFields(map[string]interface{}{"controller": "udm"})
	assert.Equal(t, zerolog.ErrorLevel, fields.GetLevel())
}

func TestRunService_StopsWhenContextDone(t *testing.T) {
	svc := &stubService{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)

	go func() {
		done <- RunService(ctx, &ServiceOptions{ServiceName: "protect-bridge", Service: svc, ShutdownTimeout: time.Second})
	}()

	require.Eventually(t, svc.started.Load, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("RunService did not return")
	}

	assert.True(t, svc.stopped.Load())

	deadline, ok := svc.stopCtx.Deadline()
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Second), deadline, time.Second)
}

func TestRunService_Errors(t *testing.T) {
	require.ErrorIs(t, RunService(context.Background(), nil), errNilService)

	boom := errors.New("boom")

	err := RunService(context.Background(), &ServiceOptions{Service: &stubService{startErr: boom}})
	require.ErrorIs(t, err, boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := &stubService{stopErr: boom}
	err = RunService(ctx, &ServiceOptions{Service: svc})
	require.ErrorIs(t, err, boom)
	assert.True(t, svc.stopped.Load())
}
