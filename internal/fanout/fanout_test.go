package fanout

import (
	"context"
	"errors"
	"iter"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dshills/critic/internal/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sourceFunc func(ctx context.Context, req providers.Request) iter.Seq2[string, error]

func (f sourceFunc) Stream(ctx context.Context, req providers.Request) iter.Seq2[string, error] {
	return f(ctx, req)
}

// scripted streams the listed fragments for each prompt; a prompt mapped to
// an error fragment list ends with that error.
func scripted(chunks map[string][]string, failures map[string]error) sourceFunc {
	return func(ctx context.Context, req providers.Request) iter.Seq2[string, error] {
		return func(yield func(string, error) bool) {
			for _, c := range chunks[req.UserPrompt] {
				if !yield(c, nil) {
					return
				}
			}
			if err := failures[req.UserPrompt]; err != nil {
				yield("", err)
			}
		}
	}
}

// blocking never yields and fails once ctx is done.
func blocking(ctx context.Context, req providers.Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		<-ctx.Done()
		yield("", ctx.Err())
	}
}

type event struct {
	kind  string
	index int
	text  string
}

type recorder struct {
	mu     sync.Mutex
	events []event
	ends   map[int]TaskResult
}

func (r *recorder) OnStart(index int, prompt string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{"start", index, prompt})
}

func (r *recorder) OnFragment(index int, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{"fragment", index, text})
}

func (r *recorder) OnEnd(index int, result TaskResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ends == nil {
		r.ends = make(map[int]TaskResult)
	}
	r.ends[index] = result
	r.events = append(r.events, event{"end", index, ""})
}

func (r *recorder) forIndex(index int) []event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []event
	for _, e := range r.events {
		if e.index == index {
			out = append(out, e)
		}
	}
	return out
}

func TestRunAll_NoPrompts(t *testing.T) {
	rec := &recorder{}
	c := &Coordinator{Source: scripted(nil, nil), Observer: rec}

	results, err := c.RunAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, rec.events)
}

func TestRunAll_OneMidStreamFailure(t *testing.T) {
	prompts := []string{"joke", "story", "threat"}
	src := scripted(
		map[string][]string{
			"joke":   {"Why ", "did ", "it?"},
			"story":  {"Once "},
			"threat": {"Life ", "ends."},
		},
		map[string]error{"story": errors.New("stream ended unexpectedly")},
	)
	rec := &recorder{}
	c := &Coordinator{Source: src, Observer: rec}

	results, err := c.RunAll(context.Background(), prompts)
	require.NoError(t, err, "failures stay local without fail-fast")
	require.Len(t, results, 3)

	for i, r := range results {
		assert.Equal(t, i, r.Index)
		assert.Equal(t, prompts[i], r.Prompt)
	}
	assert.Equal(t, Completed, results[0].State)
	assert.Equal(t, "Why did it?", results[0].Text)
	assert.Equal(t, 3, results[0].Fragments)

	assert.Equal(t, Failed, results[1].State)
	assert.Equal(t, "Once ", results[1].Text)
	assert.Equal(t, 1, results[1].Fragments)
	assert.EqualError(t, results[1].Err, "stream ended unexpectedly")

	assert.Equal(t, Completed, results[2].State)

	assert.Len(t, rec.ends, 3, "every task reports completion")
	errorFragments := 0
	for _, e := range rec.events {
		if e.kind == "fragment" && strings.HasPrefix(e.text, "Error: ") {
			errorFragments++
			assert.Equal(t, 1, e.index)
		}
	}
	assert.Equal(t, 1, errorFragments)

	completed, failed := Count(results)
	assert.Equal(t, 2, completed)
	assert.Equal(t, 1, failed)
}

func TestRunAll_PerTaskEventOrder(t *testing.T) {
	prompts := []string{"a", "b"}
	src := scripted(map[string][]string{"a": {"1", "2"}, "b": {"3"}}, nil)
	rec := &recorder{}
	c := &Coordinator{Source: src, Observer: rec}

	_, err := c.RunAll(context.Background(), prompts)
	require.NoError(t, err)

	assert.Equal(t, []event{
		{"start", 0, "a"},
		{"fragment", 0, "1"},
		{"fragment", 0, "2"},
		{"end", 0, ""},
	}, rec.forIndex(0))
	assert.Equal(t, []event{
		{"start", 1, "b"},
		{"fragment", 1, "3"},
		{"end", 1, ""},
	}, rec.forIndex(1))
}

func TestRunAll_FirstFragmentFailure(t *testing.T) {
	src := scripted(nil, map[string]error{"x": errors.New("connection refused")})
	rec := &recorder{}
	c := &Coordinator{Source: src, Observer: rec}

	results, err := c.RunAll(context.Background(), []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, Failed, results[0].State)
	assert.Zero(t, results[0].Fragments)
	assert.Equal(t, []event{
		{"start", 0, "x"},
		{"fragment", 0, "Error: connection refused"},
		{"end", 0, ""},
	}, rec.forIndex(0))
}

func TestRunAll_FailFastCancelsSiblings(t *testing.T) {
	boom := errors.New("quota exceeded")
	src := sourceFunc(func(ctx context.Context, req providers.Request) iter.Seq2[string, error] {
		if req.UserPrompt == "bad" {
			return func(yield func(string, error) bool) { yield("", boom) }
		}
		return blocking(ctx, req)
	})
	c := &Coordinator{Source: src, FailFast: true}

	done := make(chan struct{})
	var results []TaskResult
	var err error
	go func() {
		defer close(done)
		results, err = c.RunAll(context.Background(), []string{"slow", "bad", "slower"})
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("fail-fast did not cancel blocked tasks")
	}

	require.Error(t, err)
	var taskErr *TaskError
	require.ErrorAs(t, err, &taskErr)
	assert.Equal(t, 1, taskErr.Index)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "prompt 2: quota exceeded", err.Error())

	for _, r := range results {
		assert.Equal(t, Failed, r.State, "prompt %q", r.Prompt)
	}
	assert.ErrorIs(t, results[0].Err, context.Canceled)
}

func TestRunAll_Timeout(t *testing.T) {
	c := &Coordinator{Source: sourceFunc(blocking), Timeout: 20 * time.Millisecond}

	results, err := c.RunAll(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	for _, r := range results {
		assert.Equal(t, Failed, r.State)
		assert.ErrorIs(t, r.Err, context.DeadlineExceeded)
	}
}

func TestRunAll_MaxConcurrency(t *testing.T) {
	var active, peak atomic.Int32
	src := sourceFunc(func(ctx context.Context, req providers.Request) iter.Seq2[string, error] {
		return func(yield func(string, error) bool) {
			n := active.Add(1)
			defer active.Add(-1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			yield("ok", nil)
		}
	})
	c := &Coordinator{Source: src, MaxConcurrency: 2}

	results, err := c.RunAll(context.Background(), []string{"1", "2", "3", "4", "5"})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(2))
	for i, r := range results {
		assert.Equal(t, i, r.Index)
		assert.Equal(t, Completed, r.State)
	}
}

func TestRunAll_ParentCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := &Coordinator{Source: scripted(map[string][]string{"a": {"never"}}, nil)}

	results, err := c.RunAll(ctx, []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, Failed, results[0].State)
	assert.ErrorIs(t, results[0].Err, context.Canceled)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "pending", Pending.String())
	assert.Equal(t, "streaming", Streaming.String())
	assert.Equal(t, "completed", Completed.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "State(9)", State(9).String())
}
