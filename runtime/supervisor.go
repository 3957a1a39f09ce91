package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"chat-hub/contract"
	"chat-hub/errors"
)

// Supervisor runs each worker in a goroutine, recovers panics, restarts the
// worker after a delay, and shuts everything down when the parent context is
// cancelled. A failure in one worker must not stop the supervisor itself.
type Supervisor struct {
	wg              *sync.WaitGroup
	log             *slog.Logger
	restartInterval time.Duration
	workers         []contract.Worker
}

func NewSupervisor(log *slog.Logger, restartInterval time.Duration) *Supervisor {
	return &Supervisor{wg: &sync.WaitGroup{}, log: log, restartInterval: restartInterval}
}

func (s *Supervisor) Add(worker ...contract.Worker) contract.ISupervisor {
	s.workers = append(s.workers, worker...)
	return s
}

// Run starts every registered worker and blocks until all of them return.
func (s *Supervisor) Run(ctx context.Context) {
	for _, worker := range s.workers {
		s.Start(ctx, worker)
	}
	s.wg.Wait()
}

// Start runs a worker under supervision in a dedicated goroutine. If Run
// panics, the supervisor recovers and restarts the worker; a clean return
// ends supervision for that worker.
func (s *Supervisor) Start(ctx context.Context, worker contract.Worker) {
	s.wg.Add(1)
	workerName := contract.GetWorkerName(worker)

	go func() {
		defer s.wg.Done()

		for {
			if ctx.Err() != nil {
				s.log.Info(fmt.Sprintf("Stopping : %s", workerName))
				return
			}

			err := func() (err error) {
				defer func() {
					if r := recover(); r != nil {
						err = fmt.Errorf("%w: %v", errors.ErrWorkerPanic, r)
					}
				}()
				return worker.Run(ctx)
			}()

			switch {
			case err == nil:
				// Terminated properly, never restart !
				s.log.Info(fmt.Sprintf("Worker finished : %s", workerName))
				return
			case ctx.Err() != nil:
				s.log.Info(fmt.Sprintf("Stopping : %s", workerName))
				return
			default:
				s.log.Error(fmt.Sprintf("Worker %s failed, restarting", workerName), "error", err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(s.restartInterval):
				}
			}
		}
	}()
}
