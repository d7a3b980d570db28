package worker

import (
	"context"
	"errors"
	"time"

	"github.com/ducdigital/fairy-go/internal/logger"
	"github.com/ducdigital/fairy-go/internal/metrics"
	"github.com/ducdigital/fairy-go/internal/queue"
)

// Executor wraps a queue.Handler with a per-call timeout and structured
// logging/metrics, the seam between a Pool's worker loop and user business
// logic. A handler's own panic recovery is already done inside
// queue.Queue.Run; Executor only adds the concerns a worker cares about.
type Executor struct {
	handler queue.Handler
	timeout time.Duration
}

// NewExecutor wraps handler. timeout <= 0 means no per-call deadline.
func NewExecutor(handler queue.Handler, timeout time.Duration) *Executor {
	return &Executor{handler: handler, timeout: timeout}
}

// Handler returns a queue.Handler bound to a worker id for logging and
// metrics, applying the executor's timeout as a context deadline around
// every invocation.
func (e *Executor) Handler(workerID string) queue.Handler {
	log := logger.WithWorker(workerID)
	return func(ctx context.Context, args []interface{}) (interface{}, *queue.HandlerError) {
		callCtx := ctx
		if e.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, e.timeout)
			defer cancel()
		}

		start := time.Now()
		result, herr := e.handler(callCtx, args)
		duration := time.Since(start)
		metrics.RecordWorkerBusyTime(workerID, duration.Seconds())

		if herr != nil {
			if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
				log.Warn().Dur("duration", duration).Msg("handler timed out")
				return nil, queue.NewHandlerError("handler timed out", herr.Do)
			}
			log.Error().Str("error", herr.Message).Dur("duration", duration).Msg("handler failed")
			return nil, herr
		}

		log.Debug().Dur("duration", duration).Msg("handler succeeded")
		return result, nil
	}
}
