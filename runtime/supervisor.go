package runtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"market-chat/contract"
	"market-chat/errors"
)

const restartDelay = 200 * time.Millisecond

// Supervisor runs workers in goroutines, recovers their panics, and
// restarts crashed workers until the context is cancelled. A worker
// returning nil is finished and never restarted. One worker crashing
// never takes the supervisor or its siblings down.
type Supervisor struct {
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	log     *slog.Logger
	workers []contract.Worker
}

func NewSupervisor(log *slog.Logger) *Supervisor {
	if log == nil {
		log = slog.Default()
	}
	return &Supervisor{log: log}
}

func (s *Supervisor) Add(workers ...contract.Worker) *Supervisor {
	s.workers = append(s.workers, workers...)
	return s
}

// Run blocks until every worker has terminated. Cancelling ctx, or
// calling Stop, asks all of them to stop.
func (s *Supervisor) Run(ctx context.Context) {
	supervised, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	defer cancel()

	for _, w := range s.workers {
		s.start(supervised, w)
	}
	s.wg.Wait()
}

func (s *Supervisor) start(ctx context.Context, worker contract.Worker) {
	s.wg.Add(1)
	name := contract.GetWorkerName(worker)

	go func() {
		defer s.wg.Done()

		for {
			if ctx.Err() != nil {
				s.log.Info("worker stopped", "name", name)
				return
			}

			err := func() (err error) {
				defer func() {
					if r := recover(); r != nil {
						s.log.Error("worker panicked", "name", name, "panic", r)
						err = errors.ErrWorkerPanic
					}
				}()
				return worker.Run(ctx)
			}()

			if err == nil {
				s.log.Info("worker finished", "name", name)
				return
			}
			if ctx.Err() != nil {
				s.log.Info("worker stopped", "name", name)
				return
			}

			s.log.Warn("worker crashed, restarting", "name", name, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(restartDelay):
			}
		}
	}()
}

func (s *Supervisor) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}
