package async

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/m-mizutani/ctxlog"
)

type options struct {
	task    string
	timeout time.Duration
}

// Option configures a dispatched task
type Option func(*options)

// WithTask names the task in log records
func WithTask(name string) Option {
	return func(o *options) {
		o.task = name
	}
}

// WithTimeout bounds the execution of the task. Zero means no deadline.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// Dispatch runs handler in a new goroutine. The handler gets a background context
// carrying the logger of ctx, so cancelling ctx does not stop it. Panics and returned
// errors are logged.
func Dispatch(ctx context.Context, handler func(ctx context.Context) error, opts ...Option) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := ctxlog.From(ctx)
	if o.task != "" {
		logger = logger.With("task", o.task)
	}
	newCtx := ctxlog.With(context.Background(), logger)

	go func() {
		taskCtx := newCtx
		if o.timeout > 0 {
			var cancel context.CancelFunc
			taskCtx, cancel = context.WithTimeout(newCtx, o.timeout)
			defer cancel()
		}

		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic in async handler",
					"recover", r,
					"stack", string(debug.Stack()))
			}
		}()

		start := time.Now()
		if err := handler(taskCtx); err != nil {
			logger.Error("error in async handler", "error", err, "duration", time.Since(start))
			return
		}
		logger.Debug("async handler completed", "duration", time.Since(start))
	}()
}
