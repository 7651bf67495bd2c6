package tracing

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestSafeAttributesDropsBlockedKeys(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/api/v1/sync"),
		attribute.String("Authorization", "Bearer secret"),
		attribute.String("note", strings.Repeat("x", 400)),
	)

	require.Len(t, attrs, 2)
	assert.Equal(t, "http.route", string(attrs[0].Key))
	assert.Len(t, attrs[1].Value.AsString(), maxAttributeLength)
}

func TestSafeError(t *testing.T) {
	assert.Nil(t, SafeError(nil))

	short := errors.New("boom")
	assert.Same(t, short, SafeError(short))

	long := SafeError(errors.New(strings.Repeat("y", 1000)))
	assert.Len(t, long.Error(), maxAttributeLength)
}

func TestExtractContextReadsTraceparent(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	header := http.Header{}
	header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")

	ctx := ExtractContext(context.Background(), propagation.HeaderCarrier(header))
	sc := trace.SpanContextFromContext(ctx)
	require.True(t, sc.IsValid())
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", sc.TraceID().String())
}
