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

package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeTracing_WithoutExporter(t *testing.T) {
	tp, ctx, span, err := InitializeTracing(context.Background(), TracingConfig{
		ServiceVersion: "1.2.3",
		Logger:         NewTestLogger(),
	})
	require.NoError(t, err)

	defer func() { _ = tp.Shutdown(context.Background()) }()
	defer span.End()

	assert.True(t, span.SpanContext().IsValid())

	_, child := GetTracer("protect").Start(ctx, "child")
	defer child.End()

	assert.Equal(t, span.SpanContext().TraceID(), child.SpanContext().TraceID())
}

func TestInitializeTracing_RequiresEndpoint(t *testing.T) {
	_, _, _, err := InitializeTracing(context.Background(), TracingConfig{
		OTel: &OTelConfig{Enabled: true},
	})
	require.ErrorIs(t, err, ErrOTelEndpointRequired)
}
