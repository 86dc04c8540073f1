package requestid

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	ctx, id := New(context.Background())
	assert.NotEmpty(t, id)
	assert.Equal(t, id, FromContext(ctx))
}

func TestFromContext_Missing(t *testing.T) {
	assert.Empty(t, FromContext(context.Background()))
}

func TestWithRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "test-123")
	assert.Equal(t, "test-123", FromContext(ctx))
}

func TestEnsure(t *testing.T) {
	ctx, id := Ensure(context.Background())
	assert.NotEmpty(t, id)

	same, again := Ensure(ctx)
	assert.Equal(t, id, again)
	assert.Equal(t, id, FromContext(same))
}
