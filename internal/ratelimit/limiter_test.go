package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shortCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	t.Cleanup(cancel)
	return ctx
}

func TestSiteLimiterSharesBudgetAcrossSubdomains(t *testing.T) {
	l := NewSiteLimiter(time.Hour, 1)

	require.NoError(t, l.Wait(shortCtx(t), "https://www.example.com/a"))
	assert.Error(t, l.Wait(shortCtx(t), "https://news.example.com/b"))
	assert.NoError(t, l.Wait(shortCtx(t), "https://other.org/"))
}

func TestSiteLimiterDisabled(t *testing.T) {
	l := NewSiteLimiter(0, 0)
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Wait(shortCtx(t), "https://example.com/"))
	}
}

func TestSiteLimiterWaitCanceled(t *testing.T) {
	l := NewSiteLimiter(time.Hour, 1)
	require.NoError(t, l.Wait(context.Background(), "https://example.com/"))
	assert.Error(t, l.Wait(shortCtx(t), "https://example.com/"))
}

func TestSiteLimiterInvalidURL(t *testing.T) {
	l := NewSiteLimiter(time.Hour, 1)
	require.NoError(t, l.Wait(shortCtx(t), "://bad"))
	require.NoError(t, l.Wait(shortCtx(t), "://bad"))
}
