package logger

import (
	"context"

	pcontext "github.com/devenvgo/devenv/pkg/context"
)

// LoggerContext extends the Logger interface with context-aware methods.
type LoggerContext interface {
	Logger
	InfoContext(ctx context.Context, message string, fields ...Field)
	ErrorContext(ctx context.Context, message string, fields ...Field)
	WarnContext(ctx context.Context, message string, fields ...Field)
	DebugContext(ctx context.Context, message string, fields ...Field)
}

var _ LoggerContext = (*ComponentLogger)(nil)

// InfoContext logs an info message with context tracing
func (l *ComponentLogger) InfoContext(ctx context.Context, message string, fields ...Field) {
	l.Info(message, append(contextFields(ctx), fields...)...)
}

// ErrorContext logs an error message with context tracing
func (l *ComponentLogger) ErrorContext(ctx context.Context, message string, fields ...Field) {
	l.Error(message, append(contextFields(ctx), fields...)...)
}

// WarnContext logs a warning message with context tracing
func (l *ComponentLogger) WarnContext(ctx context.Context, message string, fields ...Field) {
	l.Warn(message, append(contextFields(ctx), fields...)...)
}

// DebugContext logs a debug message with context tracing
func (l *ComponentLogger) DebugContext(ctx context.Context, message string, fields ...Field) {
	l.Debug(message, append(contextFields(ctx), fields...)...)
}

// contextFields extracts tracing fields from context
func contextFields(ctx context.Context) []Field {
	if ctx == nil {
		return nil
	}

	var fields []Field
	if op := pcontext.GetOperation(ctx); op != "unknown-operation" {
		fields = append(fields, WithField("op", op))
	}
	return fields
}

// FromContext returns a logger that tags every entry with the operation
// stored in ctx. Loggers that are not context-aware are returned as is.
func FromContext(ctx context.Context, log Logger) Logger {
	if ctx == nil {
		return log
	}
	if _, ok := log.(LoggerContext); !ok {
		return log
	}
	return &contextualLogger{ctx: ctx, logger: log.(LoggerContext)}
}

type contextualLogger struct {
	ctx    context.Context
	logger LoggerContext
}

func (cl *contextualLogger) Info(message string, fields ...Field) {
	cl.logger.InfoContext(cl.ctx, message, fields...)
}

func (cl *contextualLogger) Error(message string, fields ...Field) {
	cl.logger.ErrorContext(cl.ctx, message, fields...)
}

func (cl *contextualLogger) Warn(message string, fields ...Field) {
	cl.logger.WarnContext(cl.ctx, message, fields...)
}

// Debug is the only level that carries the invocation id
func (cl *contextualLogger) Debug(message string, fields ...Field) {
	id := pcontext.GetInvocationID(cl.ctx)
	cl.logger.DebugContext(cl.ctx, message, append(fields, WithField("invocation", id))...)
}

func (cl *contextualLogger) Success(message string, fields ...Field) {
	cl.logger.Success(message, append(contextFields(cl.ctx), fields...)...)
}

func (cl *contextualLogger) WithComponent(component string) Logger {
	return FromContext(cl.ctx, cl.logger.WithComponent(component))
}
