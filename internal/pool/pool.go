package pool

import (
	"context"
	"log/slog"
	"sync"

	"github.com/joshu-sajeev/syncqueue/internal/worker"
)

type WorkerPool struct {
	workers []*worker.Worker
	ctx     context.Context
	cancel  context.CancelFunc
	once    sync.Once
}

func NewWorkerPool(count int, queue worker.Queue, executor worker.Executor, opts worker.Options) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())
	p := &WorkerPool{ctx: ctx, cancel: cancel}

	for i := 1; i <= count; i++ {
		p.workers = append(p.workers, worker.NewWorker(i, queue, executor, opts))
	}
	return p
}

func (p *WorkerPool) Start() {
	for _, w := range p.workers {
		w.Start(p.ctx)
	}
	slog.Info("worker pool started", "workers", len(p.workers))
}

func (p *WorkerPool) Size() int {
	return len(p.workers)
}

// Stop signals every worker and waits for in-flight jobs to be reported.
// New claims stop immediately; running syncs see their context cancelled.
func (p *WorkerPool) Stop() {
	p.once.Do(func() {
		p.cancel()

		var wg sync.WaitGroup
		for _, w := range p.workers {
			wg.Add(1)
			go func(w *worker.Worker) {
				defer wg.Done()
				w.Stop()
			}(w)
		}
		wg.Wait()
		slog.Info("worker pool stopped")
	})
}
