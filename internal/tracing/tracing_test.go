package tracing

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"renamebot/internal/config"
)

func TestInitWithoutAPIKeyIsDisabled(t *testing.T) {
	cfg := config.NewMockConfig(nil)

	p, err := Init(context.Background(), cfg)
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	require.NotNil(t, p.Tracer())

	_, span := p.Tracer().Start(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsValid(), "noop tracer must not produce real spans")
	span.End()

	require.NoError(t, p.Shutdown(context.Background()))
}

func TestInitStdoutExporter(t *testing.T) {
	cfg := config.NewMockConfig(map[string]interface{}{
		"trace_exporter": "stdout",
		"service_name":   "renamebot-test",
	})
	var buf bytes.Buffer

	p, err := initWithWriter(context.Background(), cfg, &buf)
	require.NoError(t, err)
	require.True(t, p.Enabled())

	_, span := p.Tracer().Start(context.Background(), "interactionCreate")
	span.End()

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "interactionCreate")
	assert.Contains(t, buf.String(), "renamebot-test")
}

func TestInitUnknownExporter(t *testing.T) {
	cfg := config.NewMockConfig(map[string]interface{}{
		"trace_exporter":    "zipkin",
		"honeycomb_api_key": "key",
	})

	_, err := Init(context.Background(), cfg)
	require.ErrorIs(t, err, ErrUnknownExporter)
}

func TestStartSpanAndRecordError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	p := NewProvider(tp)
	defer func() { _ = p.Shutdown(context.Background()) }()

	ctx, parent := StartSpan(context.Background(), p.Tracer(), "parent")
	_, child := StartSpan(ctx, p.Tracer(), "child", attribute.String("k", "v"))
	RecordError(child, errors.New("boom"))
	RecordError(child, nil)
	child.End()
	parent.End()

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "child", spans[0].Name())
	assert.Equal(t, spans[1].SpanContext().SpanID(), spans[0].Parent().SpanID())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.String("k", "v"))
}

func TestStartSpanNilTracer(t *testing.T) {
	ctx := context.Background()
	got, span := StartSpan(ctx, nil, "anything")
	assert.Equal(t, ctx, got)
	assert.False(t, span.SpanContext().IsValid())
}

func TestStartSpanNilTracerLeavesParentOpen(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	p := NewProvider(tp)
	defer func() { _ = p.Shutdown(context.Background()) }()

	ctx, root := StartSpan(context.Background(), p.Tracer(), "interactionCreate")
	got, child := StartSpan(ctx, nil, "updateNickname")
	child.End()

	assert.Empty(t, recorder.Ended(), "ending the untraced step must not end its parent")
	assert.True(t, root.IsRecording())
	assert.Equal(t, root.SpanContext(), trace.SpanContextFromContext(got))

	root.End()
	require.Len(t, recorder.Ended(), 1)
}

func TestInstrumentClientRecordsClientSpans(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	recorder := tracetest.NewSpanRecorder()
	p := NewProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	defer func() { _ = p.Shutdown(context.Background()) }()

	client := &http.Client{}
	p.InstrumentClient(client)
	require.NotNil(t, client.Transport)

	resp, err := client.Get(srv.URL + "/api/v9/users/@me")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "discordAPI GET", spans[0].Name())
	assert.Equal(t, trace.SpanKindClient, spans[0].SpanKind())
}

func TestInstrumentClientDisabled(t *testing.T) {
	client := &http.Client{}
	Disabled().InstrumentClient(client)
	assert.Nil(t, client.Transport)

	require.NotPanics(t, func() { NewProvider(sdktrace.NewTracerProvider()).InstrumentClient(nil) })
}
