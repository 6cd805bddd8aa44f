package stream

import (
	"context"
	"errors"
	"iter"
	"slices"
	"testing"

	"github.com/dshills/critic/internal/providers"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type step struct {
	text string
	err  error
}

type scriptedSource struct {
	steps   []step
	calls   int
	yielded int
}

func (s *scriptedSource) Stream(ctx context.Context, req providers.Request) iter.Seq2[string, error] {
	s.calls++
	return func(yield func(string, error) bool) {
		for _, st := range s.steps {
			s.yielded++
			if !yield(st.text, st.err) || st.err != nil {
				return
			}
		}
	}
}

func TestFragments_InOrder(t *testing.T) {
	src := &scriptedSource{steps: []step{{text: "a"}, {text: "b"}, {text: "c"}}}

	got := slices.Collect(Fragments(context.Background(), src, providers.Request{}))
	want := []Fragment{{Text: "a"}, {Text: "b"}, {Text: "c"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("fragments mismatch (-want +got):\n%s", diff)
	}
}

func TestFragments_FailureBeforeFirstFragment(t *testing.T) {
	boom := errors.New("connection refused")
	src := &scriptedSource{steps: []step{{err: boom}}}

	got := slices.Collect(Fragments(context.Background(), src, providers.Request{}))
	require.Len(t, got, 1)
	assert.Equal(t, "Error: connection refused", got[0].Text)
	assert.ErrorIs(t, got[0].Err, boom)
	assert.True(t, got[0].Failed())
}

func TestFragments_MidStreamFailure(t *testing.T) {
	src := &scriptedSource{steps: []step{{text: "hello "}, {err: errors.New("stream ended unexpectedly")}, {text: "ignored"}}}

	got := slices.Collect(Fragments(context.Background(), src, providers.Request{}))
	want := []Fragment{{Text: "hello "}, {Text: "Error: stream ended unexpectedly"}}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(Fragment{}, "Err")); diff != "" {
		t.Errorf("fragments mismatch (-want +got):\n%s", diff)
	}
	assert.False(t, got[0].Failed())
	assert.True(t, got[1].Failed())
}

func TestFragments_EarlyStop(t *testing.T) {
	src := &scriptedSource{steps: []step{{text: "1"}, {text: "2"}, {text: "3"}}}

	for f := range Fragments(context.Background(), src, providers.Request{}) {
		assert.Equal(t, "1", f.Text)
		break
	}
	assert.Equal(t, 1, src.yielded)
}

func TestFragments_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := &scriptedSource{steps: []step{{text: "never"}}}

	got := slices.Collect(Fragments(ctx, src, providers.Request{}))
	require.Len(t, got, 1)
	assert.Equal(t, "Error: context canceled", got[0].Text)
	assert.Zero(t, src.calls)
}

func TestFragments_Empty(t *testing.T) {
	got := slices.Collect(Fragments(context.Background(), &scriptedSource{}, providers.Request{}))
	assert.Empty(t, got)
}
