package pipeline

import (
	"context"
	"sort"
	"strings"

	"github.com/veridocs/trainforge/internal/common"
)

const excerptOverlapRatio = 0.20

// excerptSelectorConfig bundles the selection knobs: global top-K, the
// per-source cap, the target excerpt length, and the minimum score kept.
type excerptSelectorConfig struct {
	K            int
	PerSourceCap int
	ExcerptChars int
	MinScore     float64
}

func defaultExcerptSelectorConfig() excerptSelectorConfig {
	return excerptSelectorConfig{K: 5, PerSourceCap: 2, ExcerptChars: 600, MinScore: 0.10}
}

// excerptSelector splits knowledge sources into overlapping excerpts,
// scores them against a chunk's text, and returns the top-K. Falls back to
// Jaccard similarity when the embedding backend is unavailable — a
// genuinely separate, deterministic code path, not an embedding emulation.
type excerptSelector struct {
	embedder EmbeddingService
	enabled  bool
	pool     *boundedPool
	cfg      excerptSelectorConfig
}

func newExcerptSelector(embedder EmbeddingService, embeddingEnabled bool, pool *boundedPool, cfg excerptSelectorConfig) *excerptSelector {
	return &excerptSelector{embedder: embedder, enabled: embeddingEnabled && embedder != nil, pool: pool, cfg: cfg}
}

// splitExcerpts splits one source's content into overlapping, word-aligned
// excerpts of ~ExcerptChars length with ~20% overlap.
func splitExcerpts(source KnowledgeSource, excerptChars int) []Excerpt {
	words := strings.Fields(source.Content)
	if len(words) == 0 {
		return nil
	}

	var excerpts []Excerpt
	step := estimateWordsPerExcerpt(words, excerptChars)
	overlap := int(float64(step) * excerptOverlapRatio)
	if overlap >= step {
		overlap = step - 1
	}
	if overlap < 0 {
		overlap = 0
	}
	stride := step - overlap
	if stride < 1 {
		stride = 1
	}

	offset := 0
	for start := 0; start < len(words); start += stride {
		end := start + step
		if end > len(words) {
			end = len(words)
		}
		text := strings.Join(words[start:end], " ")
		excerpts = append(excerpts, Excerpt{
			SourceURL:   source.URL,
			SourceTitle: source.Title,
			Text:        text,
			Offset:      offset,
		})
		for _, w := range words[start : start+stride] {
			offset += len(w) + 1
		}
		if end == len(words) {
			break
		}
	}
	return excerpts
}

// estimateWordsPerExcerpt picks a word count whose average rendering is
// close to excerptChars characters.
func estimateWordsPerExcerpt(words []string, excerptChars int) int {
	if len(words) == 0 {
		return 0
	}
	totalChars := 0
	for _, w := range words {
		totalChars += len(w) + 1
	}
	avgWordLen := float64(totalChars) / float64(len(words))
	if avgWordLen <= 0 {
		avgWordLen = 5
	}
	wordsPerExcerpt := int(float64(excerptChars) / avgWordLen)
	if wordsPerExcerpt < 5 {
		wordsPerExcerpt = 5
	}
	if wordsPerExcerpt > len(words) {
		wordsPerExcerpt = len(words)
	}
	return wordsPerExcerpt
}

type scoredExcerptInternal struct {
	excerpt ScoredExcerpt
}

func (s scoredExcerptInternal) GetScore() float64 { return s.excerpt.Score }

// selectExcerpts returns the top-K scored excerpts for chunk across all
// healthy sources, capped per source, sorted by score descending with ties
// broken by source input order.
func (es *excerptSelector) selectExcerpts(ctx context.Context, chunk TopicChunk, sources []KnowledgeSource) ([]ScoredExcerpt, error) {
	var allExcerpts []Excerpt
	var sourceOrder []string
	for _, src := range sources {
		if src.Error != "" {
			continue
		}
		excerpts := splitExcerpts(src, es.cfg.ExcerptChars)
		if len(excerpts) > 0 {
			sourceOrder = append(sourceOrder, src.URL)
			allExcerpts = append(allExcerpts, excerpts...)
		}
	}
	if len(allExcerpts) == 0 {
		return nil, nil
	}

	scores, err := es.score(ctx, chunk.Text, allExcerpts)
	if err != nil {
		return nil, err
	}

	perSource := make(map[string][]scoredExcerptInternal)
	for i, excerpt := range allExcerpts {
		if scores[i] < es.cfg.MinScore {
			continue
		}
		s := scoredExcerptInternal{excerpt: ScoredExcerpt{Excerpt: excerpt, Score: scores[i]}}
		perSource[excerpt.SourceURL] = append(perSource[excerpt.SourceURL], s)
	}

	// Iterate sources in input order, not map order, so equal-scored
	// excerpts from different sources always land in the same positions.
	var capped []ScoredExcerpt
	for _, url := range sourceOrder {
		top := common.DeduplicateWithScore(func(s scoredExcerptInternal) string { return s.excerpt.Excerpt.Text }, perSource[url]...)
		if len(top) > es.cfg.PerSourceCap {
			top = top[:es.cfg.PerSourceCap]
		}
		for _, t := range top {
			capped = append(capped, t.excerpt)
		}
	}

	sort.SliceStable(capped, func(i, j int) bool { return capped[i].Score > capped[j].Score })
	if len(capped) > es.cfg.K {
		capped = capped[:es.cfg.K]
	}
	return capped, nil
}

// score returns one relevance score per excerpt, using cosine similarity
// over embeddings when enabled, or Jaccard similarity deterministically
// otherwise.
func (es *excerptSelector) score(ctx context.Context, chunkText string, excerpts []Excerpt) ([]float64, error) {
	if !es.enabled {
		scores := make([]float64, len(excerpts))
		for i, e := range excerpts {
			scores[i] = jaccardSimilarity(chunkText, e.Text)
		}
		return scores, nil
	}

	texts := make([]string, 0, len(excerpts)+1)
	texts = append(texts, chunkText)
	for _, e := range excerpts {
		texts = append(texts, e.Text)
	}

	vectors, err := embedInBatches(ctx, es.embedder, es.pool, texts)
	if err != nil {
		// Documented fallback: embedding failure at call time degrades to
		// lexical scoring for this chunk rather than failing the job.
		scores := make([]float64, len(excerpts))
		for i, e := range excerpts {
			scores[i] = jaccardSimilarity(chunkText, e.Text)
		}
		return scores, nil
	}

	chunkVec := vectors[0]
	scores := make([]float64, len(excerpts))
	for i := range excerpts {
		scores[i] = cosineSimilarity(chunkVec, vectors[i+1])
	}
	return scores, nil
}

// embedInBatches fans texts out across the bounded pool in fixed-size
// batches and reassembles the vectors in input order.
func embedInBatches(ctx context.Context, embedder EmbeddingService, pool *boundedPool, texts []string) ([][]float32, error) {
	const batchSize = 16
	if len(texts) <= batchSize || pool == nil {
		return embedder.Embed(ctx, texts)
	}

	numBatches := (len(texts) + batchSize - 1) / batchSize
	results := make([][][]float32, numBatches)
	errs := make([]error, numBatches)

	pool.Run(numBatches, func(i int) {
		start := i * batchSize
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := embedder.Embed(ctx, texts[start:end])
		results[i] = vecs
		errs[i] = err
	})

	var out [][]float32
	for i, err := range errs {
		if err != nil {
			return nil, err
		}
		out = append(out, results[i]...)
	}
	return out, nil
}
