// The worker binary consumes queued pipeline jobs and runs them to
// completion.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"go.uber.org/dig"

	"github.com/veridocs/trainforge/internal/container"
	"github.com/veridocs/trainforge/internal/logger"
	"github.com/veridocs/trainforge/internal/queue"
	"github.com/veridocs/trainforge/internal/tracing"
)

func main() {
	ctx := context.Background()
	logger.SetLevel(os.Getenv("LOG_LEVEL"))

	c := container.BuildContainer(dig.New())

	err := c.Invoke(func(server *asynq.Server, handler *queue.Handler, _ *tracing.Tracer, cleaner *container.Cleaner) error {
		defer cleaner.Cleanup(ctx)

		mux := queue.RegisterMux(handler)

		errCh := make(chan error, 1)
		go func() {
			logger.GetLogger(ctx).Infof("worker consuming %s tasks", queue.TypePipelineRun)
			errCh <- server.Run(mux)
		}()

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		select {
		case err := <-errCh:
			return err
		case sig := <-stop:
			logger.GetLogger(ctx).Infof("received %s, shutting down", sig)
			server.Shutdown()
			return nil
		}
	})
	if err != nil {
		logger.GetLogger(ctx).Errorf("worker exited: %v", err)
		os.Exit(1)
	}
}
