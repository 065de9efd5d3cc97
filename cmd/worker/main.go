package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joshu-sajeev/syncqueue/internal/app"
	"github.com/joshu-sajeev/syncqueue/internal/pool"
	"github.com/joshu-sajeev/syncqueue/internal/scheduler"
	"github.com/joshu-sajeev/syncqueue/internal/worker"
)

func main() {
	app.SetupLogging()
	slog.Info("starting sync worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx)
	if err != nil {
		slog.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	sched, err := scheduler.New(a.Service, *a.Config)
	if err != nil {
		slog.Error("invalid schedule", "error", err)
		os.Exit(1)
	}

	workerPool := pool.NewWorkerPool(a.Config.Workers, a.Service, worker.LogExecutor, worker.Options{
		PollInterval:     a.Config.PollInterval,
		MaxPollInterval:  a.Config.MaxPollInterval,
		ExecutionTimeout: a.Config.ExecutionTimeout,
	})

	sched.Start()
	workerPool.Start()
	slog.Info("worker pool active, press Ctrl+C to stop")

	<-ctx.Done()

	sched.Stop()
	workerPool.Stop()
	slog.Info("shutdown complete")
}
