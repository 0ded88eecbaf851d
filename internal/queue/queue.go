// Package queue defines the queue-driven worker dispatch around the
// pipeline: one asynq task type carrying a job ID, and a handler that
// loads the job, runs the pipeline, and persists the result.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/veridocs/trainforge/internal/types"
)

// TypePipelineRun is the one task type this package defines — a pipeline
// invocation is the only unit of queued work.
const TypePipelineRun = "pipeline:run"

// RunPayload is TypePipelineRun's task payload: just the job ID. The job's
// actual request (transcript, URLs, config) lives in the job store, not
// duplicated onto the queue.
type RunPayload struct {
	JobID string `json:"job_id"`
}

// NewRunTask builds an asynq.Task for jobID, queued at the given priority
// ("critical", "default", or "low").
func NewRunTask(jobID, priority string) (*asynq.Task, error) {
	payload, err := json.Marshal(RunPayload{JobID: jobID})
	if err != nil {
		return nil, fmt.Errorf("queue: marshal payload: %w", err)
	}
	return asynq.NewTask(TypePipelineRun, payload, asynq.Queue(priority)), nil
}

// RedisOpt builds the asynq Redis connection options from the process
// config.
func RedisOpt(addr, password string) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:         addr,
		Password:     password,
		ReadTimeout:  100 * time.Millisecond,
		WriteTimeout: 200 * time.Millisecond,
	}
}

// NewClient builds an asynq.Client for enqueuing TypePipelineRun tasks.
func NewClient(opt asynq.RedisClientOpt) *asynq.Client {
	return asynq.NewClient(opt)
}

// NewServer builds an asynq.Server with three-tier priority queue
// weighting: critical work starves low-priority jobs only under sustained
// load, never outright.
func NewServer(opt asynq.RedisClientOpt, concurrency int) *asynq.Server {
	return asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			"critical": 6,
			"default":  3,
			"low":      1,
		},
	})
}

// RunFunc executes one job end-to-end: load its request, run the
// pipeline, persist status/result. It is the dependency the handler needs
// injected — internal/container wires it to the real job store + pipeline
// + blob store, keeping this package free of a direct pipeline import.
type RunFunc func(ctx context.Context, jobID string) error

// Handler adapts a RunFunc to asynq's task-handling contract and registers
// it on a ServeMux.
type Handler struct {
	Run RunFunc
}

// NewHandler builds a Handler.
func NewHandler(run RunFunc) *Handler { return &Handler{Run: run} }

// ProcessTask implements asynq.Handler.
func (h *Handler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var payload RunPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("queue: unmarshal payload: %w", err)
	}
	return h.Run(ctx, payload.JobID)
}

// RegisterMux builds a ServeMux with TypePipelineRun routed to h.
func RegisterMux(h *Handler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(TypePipelineRun, h)
	return mux
}

// ErrorKindOf extracts the pipeline error kind from err, if any, for
// status reporting on the job record without importing the pipeline
// package's concrete error type here.
func ErrorKindOf(err error) (types.ErrorKind, bool) {
	return types.KindOf(err)
}
