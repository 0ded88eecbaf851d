// Package progress carries pipeline progress to the outside world:
// composable sink middleware (logging, timing, panic recovery) chained
// around the caller-supplied sink, and a Redis publisher the frontend
// polls.
package progress

import (
	"context"
	"fmt"
	"time"

	"github.com/veridocs/trainforge/internal/logger"
	"github.com/veridocs/trainforge/internal/types"
)

// Sink matches pipeline.ProgressSink's shape without importing the
// pipeline package, so middleware here has no dependency on it.
type Sink interface {
	OnProgress(descriptor types.StageDescriptor, fraction float64)
}

// SinkFunc adapts a plain function to Sink.
type SinkFunc func(descriptor types.StageDescriptor, fraction float64)

func (f SinkFunc) OnProgress(descriptor types.StageDescriptor, fraction float64) {
	f(descriptor, fraction)
}

// Middleware wraps a Sink with additional behavior.
type Middleware func(Sink) Sink

// WithLogging logs every progress notification at debug level.
func WithLogging(ctx context.Context) Middleware {
	return func(next Sink) Sink {
		return SinkFunc(func(d types.StageDescriptor, fraction float64) {
			logger.GetLogger(ctx).Debugf("progress: stage=%s fraction=%.2f detail=%q", d.Stage, fraction, d.Detail)
			next.OnProgress(d, fraction)
		})
	}
}

// WithTiming logs the wall-clock gap since the previous notification,
// useful for spotting a stage that stalls between progress events.
func WithTiming(ctx context.Context) Middleware {
	var last time.Time
	return func(next Sink) Sink {
		return SinkFunc(func(d types.StageDescriptor, fraction float64) {
			now := time.Now()
			if !last.IsZero() {
				logger.GetLogger(ctx).Debugf("progress: %s since previous notification", now.Sub(last))
			}
			last = now
			next.OnProgress(d, fraction)
		})
	}
}

// WithRecovery guards against a caller-supplied Sink panicking mid-job —
// the pipeline must never be brought down by a progress callback.
func WithRecovery(ctx context.Context) Middleware {
	return func(next Sink) Sink {
		return SinkFunc(func(d types.StageDescriptor, fraction float64) {
			defer func() {
				if r := recover(); r != nil {
					logger.GetLogger(ctx).Errorf("progress sink panic recovered: %v", r)
				}
			}()
			next.OnProgress(d, fraction)
		})
	}
}

// Chain composes middlewares around base, applied in the order given, so
// the first middleware is the outermost wrapper.
func Chain(base Sink, middlewares ...Middleware) Sink {
	sink := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		sink = middlewares[i](sink)
	}
	return sink
}

// PanicError describes a panic raised by a progress sink. WithRecovery
// logs the recovered value and does not construct a PanicError.
type PanicError struct{ Panic interface{} }

func (e *PanicError) Error() string { return fmt.Sprintf("panic in progress sink: %v", e.Panic) }
