// Package worker executes queued pipeline jobs end-to-end: load the job
// request, run the pipeline, render the document, and persist both
// artifacts before flipping the job's status.
package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/veridocs/trainforge/internal/common"
	"github.com/veridocs/trainforge/internal/knowledge"
	"github.com/veridocs/trainforge/internal/logger"
	"github.com/veridocs/trainforge/internal/pipeline"
	"github.com/veridocs/trainforge/internal/progress"
	"github.com/veridocs/trainforge/internal/render"
	"github.com/veridocs/trainforge/internal/store/blobstore"
	"github.com/veridocs/trainforge/internal/store/jobstore"
	"github.com/veridocs/trainforge/internal/types"
)

// Worker runs one job per Execute call. It owns no per-job state itself;
// everything job-scoped lives inside the pipeline invocation.
type Worker struct {
	jobs     *jobstore.Store
	blobs    *blobstore.Store
	llm      pipeline.LLMService
	embedder pipeline.EmbeddingService
	http     types.HTTPClient
	cache    types.CacheStore
	renderer render.Renderer
	publish  progress.Publisher
	baseCfg  *types.Config
}

// New builds a Worker. embedder and publish may be nil; the pipeline falls
// back to lexical scoring and progress events are only logged.
func New(
	jobs *jobstore.Store,
	blobs *blobstore.Store,
	llm pipeline.LLMService,
	embedder pipeline.EmbeddingService,
	httpClient types.HTTPClient,
	cache types.CacheStore,
	renderer render.Renderer,
	publish progress.Publisher,
	baseCfg *types.Config,
) *Worker {
	return &Worker{
		jobs:     jobs,
		blobs:    blobs,
		llm:      llm,
		embedder: embedder,
		http:     httpClient,
		cache:    cache,
		renderer: renderer,
		publish:  publish,
		baseCfg:  baseCfg,
	}
}

// Execute runs the job with the given ID. Job-level pipeline failures are
// recorded on the job row and do not surface as a handler error (the queue
// must not retry a job the pipeline itself rejected); infrastructure
// failures (store unreachable) do surface, so the queue retries them.
func (w *Worker) Execute(ctx context.Context, jobID string) error {
	ctx = logger.WithJobID(ctx, jobID)

	rec, err := w.jobs.Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("worker: load job %s: %w", jobID, err)
	}
	if err := w.jobs.UpdateStatus(ctx, jobID, types.JobStatusRunning, ""); err != nil {
		return fmt.Errorf("worker: mark running: %w", err)
	}

	cfg := w.effectiveConfig(rec.Request.Config)
	fetcher := knowledge.NewFetcher(w.http, w.cache, cfg)
	p := pipeline.New(w.llm, w.embedder, fetcher, cfg)

	sink := progress.Chain(
		w.progressSink(ctx, jobID),
		progress.WithRecovery(ctx),
		progress.WithLogging(ctx),
	)

	result, perr := p.Run(ctx, pipeline.Input{
		RawTranscriptText: rec.Request.Transcript,
		KnowledgeURLs:     rec.Request.KnowledgeURLs,
	}, sinkAdapter{sink})
	if perr != nil {
		common.PipelineError(ctx, types.StageAssembleResult, "job_failed", map[string]interface{}{
			"kind": string(perr.Kind), "error": perr.Message,
		})
		if serr := w.jobs.UpdateStatus(ctx, jobID, types.JobStatusFailed, perr.Error()); serr != nil {
			return fmt.Errorf("worker: mark failed: %w", serr)
		}
		return nil
	}

	if err := w.persist(ctx, jobID, result); err != nil {
		if serr := w.jobs.UpdateStatus(ctx, jobID, types.JobStatusFailed, err.Error()); serr != nil {
			return fmt.Errorf("worker: mark failed after persist error: %w", serr)
		}
		return fmt.Errorf("worker: persist job %s: %w", jobID, err)
	}

	return w.jobs.UpdateStatus(ctx, jobID, types.JobStatusCompleted, "")
}

func (w *Worker) persist(ctx context.Context, jobID string, result *types.PipelineResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := w.blobs.PutResult(ctx, jobID, resultJSON); err != nil {
		return fmt.Errorf("store result: %w", err)
	}

	doc, err := w.renderer.Render(result)
	if err != nil {
		return fmt.Errorf("render document: %w", err)
	}
	if err := w.blobs.PutArtifact(ctx, jobID, doc); err != nil {
		return fmt.Errorf("store artifact: %w", err)
	}
	return nil
}

// effectiveConfig overlays the per-job config (if any) on the process
// baseline: per-job requests may tune thresholds and step counts but
// connection settings always come from the baseline.
func (w *Worker) effectiveConfig(jobCfg *types.Config) *types.Config {
	if jobCfg == nil {
		cfg := *w.baseCfg
		return &cfg
	}
	cfg := *jobCfg
	cfg.LLMModel = w.baseCfg.LLMModel
	cfg.LLMBaseURL = w.baseCfg.LLMBaseURL
	cfg.LLMAPIKey = w.baseCfg.LLMAPIKey
	cfg.EmbeddingModel = w.baseCfg.EmbeddingModel
	cfg.EmbeddingBaseURL = w.baseCfg.EmbeddingBaseURL
	cfg.DatabaseDSN = w.baseCfg.DatabaseDSN
	cfg.RedisAddr = w.baseCfg.RedisAddr
	cfg.RedisPassword = w.baseCfg.RedisPassword
	cfg.BlobEndpoint = w.baseCfg.BlobEndpoint
	cfg.BlobAccessKey = w.baseCfg.BlobAccessKey
	cfg.BlobSecretKey = w.baseCfg.BlobSecretKey
	cfg.BlobBucket = w.baseCfg.BlobBucket
	cfg.BlobUseSSL = w.baseCfg.BlobUseSSL
	cfg.OTLPEndpoint = w.baseCfg.OTLPEndpoint
	cfg.HTTPAddr = w.baseCfg.HTTPAddr
	cfg.CacheDir = w.baseCfg.CacheDir
	return &cfg
}

func (w *Worker) progressSink(ctx context.Context, jobID string) progress.Sink {
	if w.publish == nil {
		return progress.SinkFunc(func(types.StageDescriptor, float64) {})
	}
	return progress.NewPublisherSink(ctx, w.publish, jobID)
}

// sinkAdapter bridges progress.Sink to pipeline.ProgressSink without the
// progress package importing the pipeline package.
type sinkAdapter struct {
	sink progress.Sink
}

func (a sinkAdapter) OnProgress(d types.StageDescriptor, fraction float64) {
	a.sink.OnProgress(d, fraction)
}
