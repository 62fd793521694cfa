package movers

import "fmt"

// Stage names used in StageError entries.
const (
	StageIngestion  = "ingestion"
	StageEnrichment = "enrichment"
	StageAnalysis   = "analysis"
	StageProcessing = "processing"
)

// StageError is a typed failure descriptor captured as data on the smallest
// entity it applies to. Errors never unwind the scheduler; they bubble up only
// as counts and flags.
type StageError struct {
	Stage        string `json:"stage"`
	ErrorType    string `json:"error_type"`
	ErrorMessage string `json:"error_message"`
	URL          string `json:"url,omitempty"`
	FallbackUsed bool   `json:"fallback_used,omitempty"`
}

func (e StageError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Stage, e.ErrorType, e.ErrorMessage)
}

// NewStageError wraps an arbitrary error into a StageError for a stage.
func NewStageError(stage, errType string, err error, url string) StageError {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return StageError{Stage: stage, ErrorType: errType, ErrorMessage: msg, URL: url}
}

// IngestionError aborts the run before any task starts. It is the only fatal
// error in the taxonomy; everything downstream is recorded as data.
type IngestionError struct {
	Message string
	URL     string
}

func (e *IngestionError) Error() string { return e.Message }
