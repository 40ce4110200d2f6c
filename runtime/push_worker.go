package runtime

import (
	"context"
	"log/slog"

	"market-chat/contract"
)

// PushWorker pumps events from the server push channel into the router.
// It terminates cleanly when the source channel closes or the context
// is cancelled; anything else is the supervisor's problem.
type PushWorker struct {
	source contract.EventSource
	router *Router
	log    *slog.Logger
}

func NewPushWorker(source contract.EventSource, router *Router, log *slog.Logger) *PushWorker {
	if log == nil {
		log = slog.Default()
	}
	return &PushWorker{source: source, router: router, log: log}
}

func (w *PushWorker) Run(ctx context.Context) error {
	events := w.source.Events()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("push worker stopping, context done")
			return nil
		case e, ok := <-events:
			if !ok {
				w.log.Info("push channel closed")
				return nil
			}
			w.router.Dispatch(ctx, e)
		}
	}
}
