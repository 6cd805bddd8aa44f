package review

import "github.com/dshills/critic/internal/gitctx"

// Outcome tags how a review run ended.
type Outcome string

const (
	// OutcomeNoChanges means the index was empty and no API call was made.
	OutcomeNoChanges Outcome = "no-changes"
	// OutcomeReviewed means the model returned a review.
	OutcomeReviewed Outcome = "reviewed"
	// OutcomeAPIFailure means the API call failed; Result.Err says why.
	OutcomeAPIFailure Outcome = "api-failure"
)

// Prompt is the immutable pair sent to the model.
type Prompt struct {
	System string
	User   string
}

// Timing contains performance metrics.
type Timing struct {
	GitMs   int64 `json:"gitMs"`
	LLMMs   int64 `json:"llmMs"`
	TotalMs int64 `json:"totalMs"`
}

// Result is the outcome of one review run. It never carries an API failure
// inside Text; failures are reported through Outcome and Err.
type Result struct {
	Outcome    Outcome
	Text       string
	Err        error
	Files      []string
	TokensUsed int
	Model      string
	RunID      string
	Repo       gitctx.RepoMeta
	Redactions int
	Timing     Timing
}

// Failed reports whether the API call failed.
func (r Result) Failed() bool { return r.Outcome == OutcomeAPIFailure }
