package reqctx

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithVisit(t *testing.T) {
	ctx := WithVisit(context.Background())
	id := ID(ctx)
	_, err := uuid.Parse(id)
	require.NoError(t, err)

	// nested calls keep the outer id
	assert.Equal(t, id, ID(WithVisit(ctx)))
	assert.NotEqual(t, id, ID(WithVisit(context.Background())))
}

func TestFromContext_Unknown(t *testing.T) {
	assert.Equal(t, "unknown", ID(context.Background()))
}
