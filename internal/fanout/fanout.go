package fanout

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/critic/internal/providers"
	"github.com/dshills/critic/internal/stream"
)

// State is the lifecycle position of one task.
type State int

const (
	Pending State = iota
	Streaming
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Streaming:
		return "streaming"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// TaskResult is the terminal record of one prompt.
type TaskResult struct {
	Index  int
	Prompt string
	State  State
	// Text is the concatenation of the delivered fragments, without the
	// error fragment of a failed task.
	Text string
	// Fragments counts delivered fragments, not the error fragment.
	Fragments int
	Err       error
	Elapsed   time.Duration
}

// Observer receives task progress. Methods are called from the task
// goroutines and must be safe for concurrent use. For a given index the
// calls arrive in order: OnStart, zero or more OnFragment, OnEnd.
type Observer interface {
	OnStart(index int, prompt string)
	OnFragment(index int, text string)
	OnEnd(index int, result TaskResult)
}

// TaskError identifies the task whose failure stopped a fail-fast run.
type TaskError struct {
	Index int
	Err   error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("prompt %d: %v", e.Index+1, e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }

// Coordinator streams many prompts concurrently.
type Coordinator struct {
	Source       stream.Source
	Observer     Observer
	SystemPrompt string
	MaxTokens    int
	// Timeout bounds each task; 0 means no per-task deadline.
	Timeout time.Duration
	// FailFast cancels the remaining tasks after the first failure.
	FailFast bool
	// MaxConcurrency caps the running tasks; 0 means one goroutine per prompt.
	MaxConcurrency int
	Logger         *slog.Logger
}

// RunAll starts one task per prompt and returns when every task is
// terminal. Result i always belongs to prompts[i]. The error is non-nil only
// in fail-fast mode, where it is the first *TaskError.
func (c *Coordinator) RunAll(ctx context.Context, prompts []string) ([]TaskResult, error) {
	results := make([]TaskResult, len(prompts))
	for i, p := range prompts {
		results[i] = TaskResult{Index: i, Prompt: p, State: Pending}
	}
	if len(prompts) == 0 {
		return results, nil
	}

	g := &errgroup.Group{}
	gctx := ctx
	if c.FailFast {
		g, gctx = errgroup.WithContext(ctx)
	}
	if c.MaxConcurrency > 0 {
		g.SetLimit(c.MaxConcurrency)
	}

	for i := range prompts {
		g.Go(func() error {
			results[i] = c.runTask(gctx, i, prompts[i])
			if c.FailFast && results[i].State == Failed {
				return &TaskError{Index: i, Err: results[i].Err}
			}
			return nil
		})
	}
	err := g.Wait()
	return results, err
}

func (c *Coordinator) runTask(ctx context.Context, index int, prompt string) TaskResult {
	logger := c.logger().With("index", index)
	obs := c.Observer
	if obs == nil {
		obs = nopObserver{}
	}

	start := time.Now()
	res := TaskResult{Index: index, Prompt: prompt, State: Streaming}
	logger.Debug("task started")
	obs.OnStart(index, prompt)

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	req := providers.Request{
		SystemPrompt: c.SystemPrompt,
		UserPrompt:   prompt,
		MaxTokens:    c.MaxTokens,
	}
	var text strings.Builder
	for f := range stream.Fragments(ctx, c.Source, req) {
		obs.OnFragment(index, f.Text)
		if f.Failed() {
			res.State = Failed
			res.Err = f.Err
			break
		}
		res.Fragments++
		text.WriteString(f.Text)
	}
	if res.State != Failed {
		res.State = Completed
	}
	res.Text = text.String()
	res.Elapsed = time.Since(start)

	if res.Err != nil {
		logger.Warn("task failed", "error", res.Err, "fragments", res.Fragments, "elapsed", res.Elapsed)
	} else {
		logger.Debug("task completed", "fragments", res.Fragments, "elapsed", res.Elapsed)
	}
	obs.OnEnd(index, res)
	return res
}

func (c *Coordinator) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// Count tallies completed and failed results.
func Count(results []TaskResult) (completed, failed int) {
	for _, r := range results {
		switch r.State {
		case Completed:
			completed++
		case Failed:
			failed++
		}
	}
	return completed, failed
}

type nopObserver struct{}

func (nopObserver) OnStart(int, string)    {}
func (nopObserver) OnFragment(int, string) {}
func (nopObserver) OnEnd(int, TaskResult)  {}
