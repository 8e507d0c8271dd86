// SPDX-License-Identifier: MIT

package telemetry

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestNewProvider_DisabledInstallsNoop(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{ServiceName: "teamarr-test"})
	require.NoError(t, err)
	require.Nil(t, p.tp)

	_, span := otel.Tracer("check").Start(context.Background(), "op")
	defer span.End()
	assert.False(t, span.IsRecording())
}

func TestNewProvider_RejectsUnknownExporter(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{
		Enabled:      true,
		ServiceName:  "teamarr-test",
		ExporterType: "udp",
	})
	require.Error(t, err)
	assert.Equal(t, "unsupported exporter type: udp (supported: grpc, http)", err.Error())
}

func TestSamplerBounds(t *testing.T) {
	cases := []struct {
		rate float64
		want string
	}{
		{1.0, sdktrace.AlwaysSample().Description()},
		{1.7, sdktrace.AlwaysSample().Description()},
		{0.0, sdktrace.NeverSample().Description()},
		{-0.2, sdktrace.NeverSample().Description()},
		{0.25, sdktrace.TraceIDRatioBased(0.25).Description()},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, sampler(tc.rate).Description(), "rate %v", tc.rate)
	}
}

func TestShutdown_DisabledProvider(t *testing.T) {
	p := &Provider{}
	require.NoError(t, p.Shutdown(context.Background()))

	// A canceled parent context must not matter when nothing flushes.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, p.Shutdown(ctx))
}

func TestShutdown_Concurrent(t *testing.T) {
	p := &Provider{}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, p.Shutdown(context.Background()))
		}()
	}
	wg.Wait()
}

func TestTracer_StartsSpansInContext(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{ServiceName: "teamarr-test"})
	require.NoError(t, err)

	ctx, span := Tracer("teamarr.test").Start(context.Background(), "teamarr.test.op")
	defer span.End()
	assert.Equal(t, span, trace.SpanFromContext(ctx))
}
