package output

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"

	"github.com/dshills/critic/internal/fanout"
)

// StreamPrinter writes fan-out progress as it happens. It implements
// fanout.Observer. Every callback is one Write on the destination, so output
// from concurrent tasks interleaves at fragment granularity.
type StreamPrinter struct {
	mu     sync.Mutex
	w      io.Writer
	header *color.Color
	label  *color.Color
	err    error
}

// NewStreamPrinter returns a printer writing to w. Colours follow
// color.NoColor.
func NewStreamPrinter(w io.Writer) *StreamPrinter {
	return &StreamPrinter{
		w:      w,
		header: color.New(color.FgBlue, color.Bold),
		label:  color.New(color.FgCyan),
	}
}

func (p *StreamPrinter) OnStart(index int, prompt string) {
	p.write(p.header.Sprintf("--- Prompt %d: %s ---", index+1, prompt) + "\n")
}

// OnFragment writes the fragment immediately with no added newline.
func (p *StreamPrinter) OnFragment(index int, text string) {
	p.write(p.label.Sprintf("Prompt %d:", index+1) + " " + text)
}

func (p *StreamPrinter) OnEnd(index int, result fanout.TaskResult) {
	p.write("\n" + p.header.Sprintf("--- End of Prompt %d ---", index+1) + "\n\n")
}

// Err returns the first write error, if any.
func (p *StreamPrinter) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *StreamPrinter) write(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return
	}
	if _, err := io.WriteString(p.w, s); err != nil {
		p.err = fmt.Errorf("writing stream output: %w", err)
	}
}
