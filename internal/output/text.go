package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dshills/critic/internal/review"
	"github.com/dshills/critic/internal/stream"
)

const (
	bannerTitle = "Code Review"
	ruleWidth   = 60
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99"))
	ruleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))
)

// TextWriter prints the review inside a fixed banner.
type TextWriter struct{}

func (t *TextWriter) Write(w io.Writer, res review.Result) error {
	ew := &errWriter{w: w}
	if res.Outcome == review.OutcomeNoChanges {
		ew.println(NoChangesMessage)
		return ew.err
	}

	writeHeader(ew)
	if res.Failed() {
		ew.println(stream.ErrorPrefix + errText(res.Err))
	} else {
		ew.println(strings.TrimRight(res.Text, "\n"))
	}
	writeFooter(ew, res)
	return ew.err
}

// StreamHeader opens the banner before a streamed review.
func (t *TextWriter) StreamHeader(w io.Writer) error {
	ew := &errWriter{w: w}
	writeHeader(ew)
	return ew.err
}

// StreamFooter closes the banner after a streamed review. A failed stream
// gets its error line first.
func (t *TextWriter) StreamFooter(w io.Writer, res review.Result) error {
	ew := &errWriter{w: w}
	if res.Text != "" && !strings.HasSuffix(res.Text, "\n") {
		ew.println("")
	}
	if res.Failed() {
		ew.println(stream.ErrorPrefix + errText(res.Err))
	}
	writeFooter(ew, res)
	return ew.err
}

func writeHeader(ew *errWriter) {
	rule := ruleStyle.Render(strings.Repeat("─", ruleWidth))
	ew.println(rule)
	ew.println(titleStyle.Render(bannerTitle))
	ew.println(rule)
}

func writeFooter(ew *errWriter, res review.Result) {
	ew.println(ruleStyle.Render(strings.Repeat("─", ruleWidth)))
	line := fmt.Sprintf("Completed in %dms (git: %dms, LLM: %dms)",
		res.Timing.TotalMs, res.Timing.GitMs, res.Timing.LLMMs)
	if res.Model != "" {
		line += " · " + res.Model
	}
	if res.TokensUsed > 0 {
		line += fmt.Sprintf(" · %d tokens", res.TokensUsed)
	}
	ew.println(footerStyle.Render(line))
}

func errText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
