// The server binary runs database migrations and serves the job API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/dig"

	"github.com/veridocs/trainforge/internal/container"
	"github.com/veridocs/trainforge/internal/database"
	"github.com/veridocs/trainforge/internal/logger"
	"github.com/veridocs/trainforge/internal/tracing"
	"github.com/veridocs/trainforge/internal/types"
)

func main() {
	ctx := context.Background()
	logger.SetLevel(os.Getenv("LOG_LEVEL"))

	c := container.BuildContainer(dig.New())

	err := c.Invoke(func(cfg *types.Config, _ *tracing.Tracer, router *gin.Engine, cleaner *container.Cleaner) error {
		defer cleaner.Cleanup(ctx)

		if err := database.RunMigrations(cfg.DatabaseDSN); err != nil {
			return err
		}

		errCh := make(chan error, 1)
		go func() {
			logger.GetLogger(ctx).Infof("serving job API on %s", cfg.HTTPAddr)
			errCh <- router.Run(cfg.HTTPAddr)
		}()

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		select {
		case err := <-errCh:
			return err
		case sig := <-stop:
			logger.GetLogger(ctx).Infof("received %s, shutting down", sig)
			return nil
		}
	})
	if err != nil {
		logger.GetLogger(ctx).Errorf("server exited: %v", err)
		os.Exit(1)
	}
}
