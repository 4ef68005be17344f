// Package reqctx carries the identity of one visit through its context.
package reqctx

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type key int

const visitKey key = 0

// VisitContext identifies one logical visit, redirects included.
type VisitContext struct {
	VisitID   string
	StartTime time.Time
}

// WithVisit returns ctx carrying a fresh VisitContext. An existing one
// is kept so nested calls share the same id.
func WithVisit(ctx context.Context) context.Context {
	if _, ok := ctx.Value(visitKey).(*VisitContext); ok {
		return ctx
	}
	return context.WithValue(ctx, visitKey, &VisitContext{
		VisitID:   uuid.NewString(),
		StartTime: time.Now(),
	})
}

// FromContext returns the VisitContext of ctx, or one with id "unknown".
func FromContext(ctx context.Context) *VisitContext {
	if vc, ok := ctx.Value(visitKey).(*VisitContext); ok {
		return vc
	}
	return &VisitContext{VisitID: "unknown", StartTime: time.Now()}
}

// ID is shorthand for FromContext(ctx).VisitID.
func ID(ctx context.Context) string {
	return FromContext(ctx).VisitID
}
