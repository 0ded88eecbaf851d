// Package types holds the data model shared by every pipeline stage: the
// entities of a single job, the closed stage/error vocabularies,
// and the job configuration. Nothing here is mutated once a stage hands it
// to the next; entities are owned by the job that created them and released
// at completion.
package types

import "time"

// SpeakerRole classifies who uttered a Sentence.
type SpeakerRole string

const (
	SpeakerInstructor  SpeakerRole = "instructor"
	SpeakerParticipant SpeakerRole = "participant"
	SpeakerUnknown     SpeakerRole = "unknown"
)

// Sentence is produced by the normalizer and is immutable thereafter. IDs
// are dense and sequential, starting at 0, in source order.
type Sentence struct {
	ID               int
	Text             string
	TimestampSeconds *float64
	SpeakerRole      SpeakerRole
	IsQuestion       bool
	IsTransition     bool
	EmphasisScore    float64
}

// MediaType is how a KnowledgeSource's content was decoded.
type MediaType string

const (
	MediaWeb  MediaType = "web"
	MediaPDF  MediaType = "pdf"
	MediaText MediaType = "text"
)

// KnowledgeSource is one fetched URL. If Error is non-empty, Content is
// empty and the source is a non-fatal, per-URL failure.
type KnowledgeSource struct {
	URL       string
	Title     string
	Content   string
	MediaType MediaType
	Error     string
	FetchedAt time.Time
}

// Excerpt is a word-aligned substring of a KnowledgeSource's content,
// materialized on demand during semantic search. It is never persisted
// across jobs.
type Excerpt struct {
	SourceURL   string
	SourceTitle string
	Text        string
	Offset      int
}

// ScoredExcerpt pairs an Excerpt with the relevance score that selected it.
type ScoredExcerpt struct {
	Excerpt Excerpt
	Score   float64
}

// ChunkClassification is the topic filter/ranker's verdict on a TopicChunk.
type ChunkClassification string

const (
	ClassInstructional    ChunkClassification = "instructional"
	ClassQASubstantive    ChunkClassification = "qa_substantive"
	ClassQAClarification  ChunkClassification = "qa_clarification"
	ClassAdministrative   ChunkClassification = "administrative"
)

// TopicChunk is a contiguous, ordered range of sentences forming one
// coherent topic — the unit of step generation. Created by the segmenter;
// Importance and Classification are set by the ranker.
type TopicChunk struct {
	ID             int
	SentenceIDs    []int
	Text           string
	QADensity      float64
	Importance     float64
	Classification ChunkClassification
}

// StepDraft is the step generator's output for one chunk, before binding
// and validation.
type StepDraft struct {
	ChunkID  int
	Title    string
	Overview string
	Content  string
	Actions  []string
}

// SourceKind distinguishes a SourceRef's origin.
type SourceKind string

const (
	SourceTranscript SourceKind = "transcript"
	SourceKnowledge  SourceKind = "knowledge"
)

// SourceRef attaches provenance to a ValidatedStep. It identifies its
// target by sentence ID or URL, never by pointer.
type SourceRef struct {
	Kind        SourceKind
	ExcerptText string
	SentenceID  *int
	URL         string
	MatchScore  float64
}

// QualityLevel is derived monotonically from a ValidatedStep's confidence
//.
type QualityLevel string

const (
	QualityVeryLow  QualityLevel = "very_low"
	QualityLow      QualityLevel = "low"
	QualityMedium   QualityLevel = "medium"
	QualityHigh     QualityLevel = "high"
	QualityVeryHigh QualityLevel = "very_high"
)

// ValidatedStep is the validator's final verdict on one StepDraft.
type ValidatedStep struct {
	Draft            StepDraft
	Sources          []SourceRef
	Confidence       float64
	QualityLevel     QualityLevel
	Accepted         bool
	RejectionReasons []string
}

// PipelineStats carries the assembler's aggregate statistics.
type PipelineStats struct {
	ChunksConsidered     int
	ChunksAccepted       int
	StepsGenerated       int
	StepsAccepted        int
	AverageConfidence    float64
	HighConfidenceCount  int
	KnowledgeUsageRate   float64
	InputTokens          int
	OutputTokens         int
	StageDurations       map[StageID]time.Duration
	RejectionReasonCounts map[string]int
}

// PipelineResult is released to the caller at the end of a successful run.
// It fails the job if zero steps were accepted.
type PipelineResult struct {
	Steps            []ValidatedStep
	Stats            PipelineStats
	KnowledgeSources []KnowledgeSource
}
