// Package context carries invocation tracing data through orchestrator operations
package context

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ctxKey is unexported so keys cannot collide with other packages
type ctxKey int

const (
	invocationIDKey ctxKey = iota
	operationKey
	startTimeKey
)

const (
	unknownInvocation = "unknown-invocation"
	unknownOperation  = "unknown-operation"
)

// WithInvocationID tags the context with the id of the current devenv invocation
func WithInvocationID(parent context.Context, id string) context.Context {
	if id == "" {
		id = GenerateInvocationID()
	}
	return context.WithValue(parent, invocationIDKey, id)
}

// GetInvocationID retrieves the invocation ID from context
func GetInvocationID(ctx context.Context) string {
	if id, ok := ctx.Value(invocationIDKey).(string); ok && id != "" {
		return id
	}
	return unknownInvocation
}

// WithOperation adds an operation name to the context and stamps its start time
func WithOperation(parent context.Context, operation string) context.Context {
	ctx := context.WithValue(parent, operationKey, operation)
	return context.WithValue(ctx, startTimeKey, time.Now())
}

// GetOperation retrieves the operation name from context
func GetOperation(ctx context.Context) string {
	if op, ok := ctx.Value(operationKey).(string); ok && op != "" {
		return op
	}
	return unknownOperation
}

// GetDuration reports the time elapsed since the innermost WithOperation call.
// It returns zero when no operation was started.
func GetDuration(ctx context.Context) time.Duration {
	if t, ok := ctx.Value(startTimeKey).(time.Time); ok {
		return time.Since(t)
	}
	return 0
}

// GenerateInvocationID creates a new unique invocation ID
func GenerateInvocationID() string {
	return "inv_" + uuid.New().String()
}

// EnrichContext adds an invocation ID if the context has none yet
func EnrichContext(parent context.Context) context.Context {
	if GetInvocationID(parent) == unknownInvocation {
		return WithInvocationID(parent, GenerateInvocationID())
	}
	return parent
}
