package types

// StageID is a closed set of pipeline stage identifiers. Progress events
// and per-stage logging always carry one of these — never a string built
// at runtime.
type StageID string

const (
	StageNormalize       StageID = "normalize"
	StageFetchKnowledge  StageID = "fetch_knowledge"
	StageSegment         StageID = "segment"
	StageFilterRank      StageID = "filter_rank"
	StageSelectExcerpts  StageID = "select_excerpts"
	StageGenerateSteps   StageID = "generate_steps"
	StageBindSources     StageID = "bind_sources"
	StageValidateSteps   StageID = "validate_steps"
	StageAssembleResult  StageID = "assemble_result"
)

// AllStages is the fixed execution order of the pipeline.
var AllStages = []StageID{
	StageNormalize,
	StageFetchKnowledge,
	StageSegment,
	StageFilterRank,
	StageSelectExcerpts,
	StageGenerateSteps,
	StageBindSources,
	StageValidateSteps,
	StageAssembleResult,
}

// StageDescriptor is the structured payload handed to a ProgressSink at
// stage transitions and per-chunk generation completions. CurrentStep and
// TotalSteps are nil unless the stage is reporting progress within itself
// (e.g. per-chunk generation).
type StageDescriptor struct {
	Stage       StageID
	CurrentStep *int
	TotalSteps  *int
	Detail      string
}
