package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dshills/critic/internal/gitctx"
	"github.com/dshills/critic/internal/review"
)

// JSONWriter outputs the result as a single JSON document.
type JSONWriter struct{}

type jsonReport struct {
	Tool       string          `json:"tool"`
	RunID      string          `json:"runId"`
	Model      string          `json:"model,omitempty"`
	Outcome    review.Outcome  `json:"outcome"`
	Repo       gitctx.RepoMeta `json:"repo"`
	Files      []string        `json:"files"`
	Review     string          `json:"review,omitempty"`
	Error      string          `json:"error,omitempty"`
	TokensUsed int             `json:"tokensUsed,omitempty"`
	Redactions int             `json:"redactions,omitempty"`
	Timing     review.Timing   `json:"timing"`
}

func (j *JSONWriter) Write(w io.Writer, res review.Result) error {
	report := jsonReport{
		Tool:       "critic",
		RunID:      res.RunID,
		Model:      res.Model,
		Outcome:    res.Outcome,
		Repo:       res.Repo,
		Files:      res.Files,
		Review:     res.Text,
		TokensUsed: res.TokensUsed,
		Redactions: res.Redactions,
		Timing:     res.Timing,
	}
	if report.Files == nil {
		report.Files = []string{}
	}
	if res.Err != nil {
		report.Error = res.Err.Error()
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing JSON: %w", err)
	}
	_, err = fmt.Fprintln(w)
	return err
}
