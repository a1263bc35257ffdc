package pipeline

// PipelineID identifies the one pipeline this service runs. Job ids reuse
// the stage number.
const PipelineID int64 = 1

// Pipeline stages, in execution order. A pipeline execution row starts at
// stage 0 and advances as each stage's job opens.
const (
	StageAnalysisRequest = 1
	StagePreprocessing   = 2
	StageCollectingData  = 3
	StageAnalysisStart   = 4
	StageBuildResult     = 5
)

var jobNames = map[int]string{
	StageAnalysisRequest: "ANALYSIS_REQUEST",
	StagePreprocessing:   "PREPROCESSING",
	StageCollectingData:  "COLLECTING_DATA",
	StageAnalysisStart:   "ANALYSIS_START",
	StageBuildResult:     "BUILD_RESULT",
}

// JobName returns the job identifier for a stage, or an empty string for an
// unknown stage.
func JobName(stage int) string { return jobNames[stage] }
