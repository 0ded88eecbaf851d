package pipeline

import "github.com/veridocs/trainforge/internal/types"

// Aliases into internal/types so pipeline source reads naturally
// (pipeline.StageID, pipeline.Error, ...) without repeating the import
// qualifier on every line — the package boundary is organizational, the
// vocabulary is shared.
type (
	StageID         = types.StageID
	StageDescriptor = types.StageDescriptor
	ErrorKind       = types.ErrorKind
	Error           = types.Error
	Config          = types.Config

	HTTPClient      = types.HTTPClient
	CacheStore      = types.CacheStore

	Sentence        = types.Sentence
	SpeakerRole     = types.SpeakerRole
	KnowledgeSource = types.KnowledgeSource
	MediaType       = types.MediaType
	Excerpt         = types.Excerpt
	ScoredExcerpt   = types.ScoredExcerpt
	TopicChunk      = types.TopicChunk
	ChunkClassification = types.ChunkClassification
	StepDraft       = types.StepDraft
	SourceRef       = types.SourceRef
	SourceKind      = types.SourceKind
	ValidatedStep   = types.ValidatedStep
	QualityLevel    = types.QualityLevel
	PipelineResult  = types.PipelineResult
	PipelineStats   = types.PipelineStats
)

const (
	StageNormalize      = types.StageNormalize
	StageFetchKnowledge = types.StageFetchKnowledge
	StageSegment        = types.StageSegment
	StageFilterRank     = types.StageFilterRank
	StageSelectExcerpts = types.StageSelectExcerpts
	StageGenerateSteps  = types.StageGenerateSteps
	StageBindSources    = types.StageBindSources
	StageValidateSteps  = types.StageValidateSteps
	StageAssembleResult = types.StageAssembleResult
)

const (
	KindInvalidInput                = types.KindInvalidInput
	KindKnowledgeFetchError         = types.KindKnowledgeFetchError
	KindEmbeddingBackendUnavailable = types.KindEmbeddingBackendUnavailable
	KindGenerationError             = types.KindGenerationError
	KindInsufficientContent         = types.KindInsufficientContent
	KindNoValidSteps                = types.KindNoValidSteps
	KindJobTimeout                  = types.KindJobTimeout
	KindCancelled                   = types.KindCancelled
	KindInternal                    = types.KindInternal
)

const (
	SpeakerInstructor  = types.SpeakerInstructor
	SpeakerParticipant = types.SpeakerParticipant
	SpeakerUnknown     = types.SpeakerUnknown

	MediaWeb  = types.MediaWeb
	MediaPDF  = types.MediaPDF
	MediaText = types.MediaText

	ClassInstructional   = types.ClassInstructional
	ClassQASubstantive   = types.ClassQASubstantive
	ClassQAClarification = types.ClassQAClarification
	ClassAdministrative  = types.ClassAdministrative

	SourceTranscript = types.SourceTranscript
	SourceKnowledge  = types.SourceKnowledge

	QualityVeryLow  = types.QualityVeryLow
	QualityLow      = types.QualityLow
	QualityMedium   = types.QualityMedium
	QualityHigh     = types.QualityHigh
	QualityVeryHigh = types.QualityVeryHigh
)

var NewError = types.NewError

var (
	strongVerbs            = types.StrongVerbs
	weakVerbs               = types.WeakVerbs
	emphasisTokens          = types.EmphasisTokens
	transitionPhrases       = types.TransitionPhrases
	interrogativeTokens     = types.InterrogativeTokens
	instructorRoleAliases   = types.InstructorRoleAliases
	participantRoleAliases  = types.ParticipantRoleAliases
)
