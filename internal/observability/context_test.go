package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestIDFromContext(ctx))

	ctx = WithRequestID(ctx, "req-123")
	assert.Equal(t, "req-123", RequestIDFromContext(ctx))
}

func TestRequestIDFromContextWrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), requestIDKey, 42)

	assert.Empty(t, RequestIDFromContext(ctx))
}
