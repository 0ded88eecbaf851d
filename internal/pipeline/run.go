package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/veridocs/trainforge/internal/common"
	"github.com/veridocs/trainforge/internal/tracing"
)

// KnowledgeFetcher retrieves URL contents for a job. It never fails the
// job: per-URL failures are recorded on the returned KnowledgeSource.Error.
// Concrete implementations (internal/knowledge) handle HTTP, caching, and
// content-type dispatch; Run only needs this contract.
type KnowledgeFetcher interface {
	FetchAll(ctx context.Context, urls []string) []KnowledgeSource
}

// Input is the single structure the pipeline accepts per job.
type Input struct {
	RawTranscriptText string
	KnowledgeURLs     []string
}

// Pipeline is the nine-stage orchestrator. Every external collaborator is
// constructor-injected. A Pipeline is safe to reuse across sequential jobs
// but processes exactly one job per Run call — it owns no cross-job
// mutable state itself.
type Pipeline struct {
	llm      LLMService
	embedder EmbeddingService
	fetcher  KnowledgeFetcher
	cfg      *Config
}

// New constructs a Pipeline. embedder may be nil; the segmenter, excerpt
// selector, and source binder then use their lexical fallbacks.
func New(llm LLMService, embedder EmbeddingService, fetcher KnowledgeFetcher, cfg *Config) *Pipeline {
	return &Pipeline{llm: llm, embedder: embedder, fetcher: fetcher, cfg: cfg}
}

// Run executes the full pipeline for one job, synchronous from the
// caller's standpoint. progress is optional; pass NoopProgressSink if no
// reporting is needed.
func (p *Pipeline) Run(ctx context.Context, input Input, progress ProgressSink) (*PipelineResult, *Error) {
	if progress == nil {
		progress = NoopProgressSink{}
	}

	jobTimeout := p.cfg.JobTimeout()
	if jobTimeout <= 0 {
		jobTimeout = 10 * time.Minute
	}
	jobCtx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	job := newJobState()

	// Stage 1: normalize.
	var sentences []Sentence
	if err := timeStage(jobCtx, job, StageNormalize, func(context.Context) *Error {
		s, nerr := normalize(input.RawTranscriptText)
		if nerr != nil {
			return nerr
		}
		sentences = s
		return nil
	}); err != nil {
		return nil, err
	}
	job.sentences = sentences
	emitStage(progress, StageNormalize, 1, 9, fmt.Sprintf("%d sentences", len(sentences)))

	if cerr := checkContext(jobCtx); cerr != nil {
		return nil, cerr
	}

	// Stage 2: fetch knowledge. Bounded concurrent fan-out; never fails
	// the job.
	var sources []KnowledgeSource
	if err := timeStage(jobCtx, job, StageFetchKnowledge, func(sctx context.Context) *Error {
		if p.fetcher == nil || len(input.KnowledgeURLs) == 0 {
			return nil
		}
		sources = p.fetcher.FetchAll(sctx, input.KnowledgeURLs)
		return nil
	}); err != nil {
		return nil, err
	}
	job.knowledgeSources = sources
	emitStage(progress, StageFetchKnowledge, 2, 9, fmt.Sprintf("%d sources", len(sources)))

	if cerr := checkContext(jobCtx); cerr != nil {
		return nil, cerr
	}

	// Sentence embeddings are computed once and shared by the segmenter's
	// drift signal and the source binder's semantic scoring.
	sentenceEmbeddings, embErr := embedSentencesMap(jobCtx, sentences, p.embedder, p.cfg.EmbeddingEnabled)
	embeddingEnabled := p.cfg.EmbeddingEnabled && p.embedder != nil && embErr == nil
	if embErr != nil {
		common.PipelineWarn(jobCtx, StageSegment, "embedding_backend_unavailable", map[string]interface{}{"error": embErr.Error()})
	}

	// Stage 3: segment.
	seg := newSegmenter(p.embedder, embeddingEnabled)
	want := chunkRange{Min: p.cfg.MinSteps, Target: p.cfg.TargetSteps, Max: p.cfg.MaxSteps}
	var chunks []TopicChunk
	if err := timeStage(jobCtx, job, StageSegment, func(sctx context.Context) *Error {
		c, serr := seg.segment(sctx, sentences, want)
		if serr != nil {
			return serr
		}
		chunks = c
		return nil
	}); err != nil {
		return nil, err
	}
	emitStage(progress, StageSegment, 3, 9, fmt.Sprintf("%d chunks", len(chunks)))

	if cerr := checkContext(jobCtx); cerr != nil {
		return nil, cerr
	}

	// Stage 4: filter/rank.
	var survivors []TopicChunk
	if err := timeStage(jobCtx, job, StageFilterRank, func(sctx context.Context) *Error {
		s, ferr := filterRank(sctx, chunks, sentences, p.cfg.ImportanceThreshold, p.cfg.QADensityThreshold)
		if ferr != nil {
			return ferr
		}
		survivors = s
		return nil
	}); err != nil {
		return nil, err
	}
	job.chunks = survivors
	emitStage(progress, StageFilterRank, 4, 9, fmt.Sprintf("%d survivors of %d", len(survivors), len(chunks)))

	if cerr := checkContext(jobCtx); cerr != nil {
		return nil, cerr
	}

	// Stages 5-8: per-chunk excerpt selection, generation, binding, and
	// validation. Generation runs up to MaxConcurrentGenerations chunks
	// concurrently; chunk-id order is restored before assembly.
	emitStage(progress, StageSelectExcerpts, 5, 9, fmt.Sprintf("%d chunks", len(survivors)))
	steps, generatedCount, failureCounts, perr := p.processChunks(jobCtx, job, survivors, sentences, sentenceEmbeddings, embeddingEnabled, progress)
	if perr != nil {
		return nil, perr
	}
	emitStage(progress, StageBindSources, 8, 9, "")
	emitStage(progress, StageValidateSteps, 8, 9, fmt.Sprintf("%d of %d chunks produced a step", generatedCount, len(survivors)))

	if cerr := checkContext(jobCtx); cerr != nil {
		return nil, cerr
	}

	// Stage 9: assemble.
	var result *PipelineResult
	if err := timeStage(jobCtx, job, StageAssembleResult, func(context.Context) *Error {
		r, aerr := assembleResult(steps, len(survivors), sources, failureCounts, job.stageDurations, job.inputTokens, job.outputTokens)
		if aerr != nil {
			return aerr
		}
		result = r
		return nil
	}); err != nil {
		return nil, err
	}
	emitStage(progress, StageAssembleResult, 9, 9, fmt.Sprintf("%d accepted of %d generated", len(result.Steps), generatedCount))

	return result, nil
}

// chunkPipelineResult is the per-chunk outcome carried through the bounded
// concurrent fan-out before being folded back into the ordered step list.
type chunkPipelineResult struct {
	chunkID int
	step    *ValidatedStep
}

func (p *Pipeline) processChunks(
	ctx context.Context,
	job *jobState,
	chunks []TopicChunk,
	sentences []Sentence,
	sentenceEmbeddings map[int][]float32,
	embeddingEnabled bool,
	progress ProgressSink,
) ([]ValidatedStep, int, map[string]int, *Error) {
	genPool, err := newBoundedPool(maxInt(1, p.cfg.MaxConcurrentGenerations))
	if err != nil {
		return nil, 0, nil, NewError(KindInternal, "failed to create generation pool", err)
	}
	defer genPool.Release()

	// Excerpt embedding batches run on their own pool: a task already
	// holding a genPool worker must not submit to genPool and wait, or the
	// fan-out can wedge with every worker blocked on a submission.
	embedPool, err := newBoundedPool(maxInt(1, p.cfg.MaxConcurrentGenerations))
	if err != nil {
		return nil, 0, nil, NewError(KindInternal, "failed to create embedding pool", err)
	}
	defer embedPool.Release()

	excerptSel := newExcerptSelector(p.embedder, embeddingEnabled, embedPool, defaultExcerptSelectorConfig())
	generator := newStepGenerator(p.llm, p.cfg)

	results := make([]chunkPipelineResult, len(chunks))
	outcomes := make([]chunkOutcome, len(chunks))
	total := len(chunks)
	completed := make(chan int, total)

	// Per-chunk completions are emitted as they happen, not after the
	// whole fan-out drains.
	reporterDone := make(chan struct{})
	go func() {
		defer close(reporterDone)
		current := 0
		for range completed {
			current++
			emitChunkProgress(progress, current, total)
		}
	}()

	genPool.Run(total, func(i int) {
		defer func() { completed <- i }()

		select {
		case <-ctx.Done():
			return
		default:
		}

		chunk := chunks[i]

		selectStart := time.Now()
		excerpts, _ := excerptSel.selectExcerpts(ctx, chunk, job.knowledgeSources)
		job.recordStage(StageSelectExcerpts, time.Since(selectStart))

		generateStart := time.Now()
		outcome := generator.generate(ctx, chunk, excerpts)
		job.recordStage(StageGenerateSteps, time.Since(generateStart))
		job.addTokens(outcome.InputTokens, outcome.OutputTokens)
		outcomes[i] = outcome
		if outcome.Draft == nil {
			return
		}

		bindStart := time.Now()
		stepEmbedding := embedOne(ctx, p.embedder, embeddingEnabled, draftText(*outcome.Draft))
		sources := bindSources(*outcome.Draft, sentences, sentenceEmbeddings, stepEmbedding,
			p.cfg.SemanticMatchWeight, p.cfg.WordMatchWeight, excerpts)
		job.recordStage(StageBindSources, time.Since(bindStart))

		validateStart := time.Now()
		validated := validateStep(*outcome.Draft, sources, p.cfg)
		job.recordStage(StageValidateSteps, time.Since(validateStart))
		if !titleStartsWithActionOrGerund(outcome.Draft.Title) {
			common.PipelineWarn(ctx, StageValidateSteps, "title_not_imperative", map[string]interface{}{
				"chunk_id": chunk.ID, "title": outcome.Draft.Title,
			})
		}

		results[i] = chunkPipelineResult{chunkID: chunk.ID, step: &validated}
	})
	close(completed)
	<-reporterDone

	if cerr := checkContext(ctx); cerr != nil {
		return nil, 0, nil, cerr
	}

	var steps []ValidatedStep
	generated := 0
	for _, r := range results {
		if r.step != nil {
			steps = append(steps, *r.step)
			generated++
		}
	}

	failureCounts := map[string]int{}
	for _, o := range outcomes {
		switch {
		case o.GenerationFailed:
			failureCounts["generation failed"]++
		case o.ParseFailed:
			failureCounts["unparseable response"]++
		}
	}
	return steps, generated, failureCounts, nil
}

func draftText(d StepDraft) string {
	text := d.Title + " " + d.Overview + " " + d.Content
	for _, a := range d.Actions {
		text += " " + a
	}
	return text
}

func embedSentencesMap(ctx context.Context, sentences []Sentence, embedder EmbeddingService, enabled bool) (map[int][]float32, error) {
	if !enabled || embedder == nil || len(sentences) == 0 {
		return nil, nil
	}
	texts := make([]string, len(sentences))
	for i, s := range sentences {
		texts[i] = s.Text
	}
	vectors, err := embedder.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	out := make(map[int][]float32, len(sentences))
	for i, s := range sentences {
		if i < len(vectors) {
			out[s.ID] = vectors[i]
		}
	}
	return out, nil
}

func embedOne(ctx context.Context, embedder EmbeddingService, enabled bool, text string) []float32 {
	if !enabled || embedder == nil {
		return nil
	}
	vectors, err := embedder.Embed(ctx, []string{text})
	if err != nil || len(vectors) == 0 {
		return nil
	}
	return vectors[0]
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func emitStage(progress ProgressSink, stage StageID, current, total int, detail string) {
	c, t := current, total
	progress.OnProgress(StageDescriptor{Stage: stage, CurrentStep: &c, TotalSteps: &t, Detail: detail}, float64(current)/float64(total))
}

// emitChunkProgress confines per-chunk fractions to the generation band
// between the select-excerpts and bind-sources stage transitions, keeping
// the reported fraction non-decreasing across the whole job.
func emitChunkProgress(progress ProgressSink, current, total int) {
	if total == 0 {
		return
	}
	c, t := current, total
	base := 5.0 / 9.0
	band := 3.0 / 9.0
	fraction := base + band*float64(current)/float64(total)
	progress.OnProgress(StageDescriptor{Stage: StageGenerateSteps, CurrentStep: &c, TotalSteps: &t}, fraction)
}

// timeStage runs fn under a stage span, recording its wall-clock duration
// and its error (if any) on the span.
func timeStage(ctx context.Context, j *jobState, stage StageID, fn func(context.Context) *Error) *Error {
	sctx, end := tracing.StartStage(ctx, stage)
	start := time.Now()
	err := fn(sctx)
	j.recordStage(stage, time.Since(start))
	if err != nil {
		end(err)
		return err
	}
	end(nil)
	return nil
}

// checkContext translates context cancellation and deadline expiry into
// the closed error taxonomy.
func checkContext(ctx context.Context) *Error {
	err := ctx.Err()
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(KindJobTimeout, "pipeline exceeded the configured job timeout", err)
	}
	return NewError(KindCancelled, "pipeline was cancelled", err)
}
