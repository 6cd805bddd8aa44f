package review

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dshills/critic/internal/gitctx"
	"github.com/dshills/critic/internal/projctx"
	"github.com/dshills/critic/internal/providers"
	"github.com/dshills/critic/internal/redact"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGit struct {
	diff      gitctx.DiffText
	stagedErr error
	log       string
	root      string
	extended  bool
}

func (f *fakeGit) Staged(ctx context.Context, extended bool) (gitctx.DiffText, error) {
	f.extended = extended
	return f.diff, f.stagedErr
}

func (f *fakeGit) RecentSubjects(ctx context.Context, n int) (string, error) {
	return f.log, nil
}

func (f *fakeGit) Meta(ctx context.Context) (gitctx.RepoMeta, error) {
	return gitctx.RepoMeta{Root: f.root, Branch: "main"}, nil
}

type fakeGenerator struct {
	content  string
	tokens   int
	err      error
	chunks   []string
	chunkErr error
	calls    int
	last     providers.Request
}

func (g *fakeGenerator) Generate(ctx context.Context, req providers.Request) (providers.Response, error) {
	g.calls++
	g.last = req
	if g.err != nil {
		return providers.Response{}, g.err
	}
	return providers.Response{Content: g.content, TokensUsed: g.tokens}, nil
}

func (g *fakeGenerator) Stream(ctx context.Context, req providers.Request) iter.Seq2[string, error] {
	g.calls++
	g.last = req
	return func(yield func(string, error) bool) {
		for _, c := range g.chunks {
			if !yield(c, nil) {
				return
			}
		}
		if g.chunkErr != nil {
			yield("", g.chunkErr)
		}
	}
}

func (g *fakeGenerator) Name() string  { return "fake" }
func (g *fakeGenerator) Model() string { return "fake-model" }

const sampleDiff = `diff --git a/main.go b/main.go
--- a/main.go
+++ b/main.go
@@ -1 +1,2 @@
 package main
+const password = "correct-horse-battery"
diff --git a/old.go b/old.go
deleted file mode 100644
--- a/old.go
+++ /dev/null
@@ -1 +0,0 @@
-package main
`

func sampleRepo(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("# Sample\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n\nconst password = \"correct-horse-battery\"\n"), 0o644))
	return root
}

func TestRun_NoChangesSkipsAPI(t *testing.T) {
	git := &fakeGit{diff: "  \n"}
	gen := &fakeGenerator{content: "should not be used"}

	res, err := Run(context.Background(), git, gen, Options{RunID: "run-1"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoChanges, res.Outcome)
	assert.Equal(t, "run-1", res.RunID)
	assert.Zero(t, gen.calls)
}

func TestRun_ToolUnavailableSkipsAPI(t *testing.T) {
	git := &fakeGit{stagedErr: gitctx.ErrToolUnavailable}
	gen := &fakeGenerator{}

	_, err := Run(context.Background(), git, gen, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, gitctx.ErrToolUnavailable)
	assert.Zero(t, gen.calls)
}

func TestRun_Reviewed(t *testing.T) {
	root := sampleRepo(t)
	git := &fakeGit{diff: sampleDiff, log: "initial commit", root: root}
	gen := &fakeGenerator{content: "Summary: adds a constant.", tokens: 42}

	res, err := Run(context.Background(), git, gen, Options{
		ExtendedContext:     true,
		IncludeFileContents: true,
		Context:             projctx.Options{Tree: projctx.TreeOptions{IgnoreDirs: projctx.DefaultIgnoreDirs()}},
	})
	require.NoError(t, err)

	assert.True(t, git.extended)
	assert.Equal(t, OutcomeReviewed, res.Outcome)
	assert.Equal(t, "Summary: adds a constant.", res.Text)
	assert.Equal(t, 42, res.TokensUsed)
	assert.Equal(t, "fake-model", res.Model)
	assert.Equal(t, []string{"main.go"}, res.Files, "deleted files are not reported")
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, root, res.Repo.Root)

	assert.Equal(t, SystemPrompt(), gen.last.SystemPrompt)
	assert.Equal(t, DefaultMaxTokens, gen.last.MaxTokens)
	assert.Contains(t, gen.last.UserPrompt, "# Sample")
	assert.Contains(t, gen.last.UserPrompt, "initial commit")
	assert.Contains(t, gen.last.UserPrompt, "=== main.go ===")
	assert.Contains(t, gen.last.UserPrompt, "README.md\nmain.go")
}

func TestRun_RedactsDiffAndFiles(t *testing.T) {
	root := sampleRepo(t)
	git := &fakeGit{diff: sampleDiff, root: root}
	gen := &fakeGenerator{content: "ok"}

	res, err := Run(context.Background(), git, gen, Options{
		IncludeFileContents: true,
		Redactor:            &redact.Redactor{},
	})
	require.NoError(t, err)
	assert.NotContains(t, gen.last.UserPrompt, "correct-horse-battery")
	assert.Contains(t, gen.last.UserPrompt, redact.Placeholder)
	assert.Equal(t, 2, res.Redactions)
}

func TestRun_RedactsBeforeTruncating(t *testing.T) {
	root := sampleRepo(t)
	git := &fakeGit{diff: sampleDiff, root: root}
	gen := &fakeGenerator{content: "ok"}

	// The limit falls inside the secret literal of the raw diff.
	limit := strings.Index(sampleDiff, "correct-horse") + len("correct")
	_, err := Run(context.Background(), git, gen, Options{
		Redactor:     &redact.Redactor{},
		MaxDiffBytes: limit,
	})
	require.NoError(t, err)
	assert.NotContains(t, gen.last.UserPrompt, "correct")
	assert.Contains(t, gen.last.UserPrompt, redact.Placeholder)
	assert.Contains(t, gen.last.UserPrompt, gitctx.TruncationNotice)
}

func TestRun_TruncatesWithoutRedactor(t *testing.T) {
	root := sampleRepo(t)
	git := &fakeGit{diff: sampleDiff, root: root}
	gen := &fakeGenerator{content: "ok"}

	limit := strings.Index(sampleDiff, "correct-horse") + len("correct")
	_, err := Run(context.Background(), git, gen, Options{MaxDiffBytes: limit})
	require.NoError(t, err)
	assert.NotContains(t, gen.last.UserPrompt, "correct")
	assert.Contains(t, gen.last.UserPrompt, " package main\n"+gitctx.TruncationNotice)
}

func TestRun_WithoutRedaction(t *testing.T) {
	root := sampleRepo(t)
	git := &fakeGit{diff: sampleDiff, root: root}
	gen := &fakeGenerator{content: "ok"}

	_, err := Run(context.Background(), git, gen, Options{})
	require.NoError(t, err)
	assert.Contains(t, gen.last.UserPrompt, "correct-horse-battery")
	assert.Contains(t, gen.last.UserPrompt, NoFileContents)
}

func TestRun_APIFailureIsTagged(t *testing.T) {
	root := sampleRepo(t)
	git := &fakeGit{diff: sampleDiff, root: root}
	apiErr := &providers.APIError{StatusCode: 500, Body: "boom"}
	gen := &fakeGenerator{err: fmt.Errorf("sending request: %w", apiErr)}

	res, err := Run(context.Background(), git, gen, Options{})
	require.NoError(t, err, "API failures are results, not errors")
	assert.Equal(t, OutcomeAPIFailure, res.Outcome)
	assert.True(t, res.Failed())
	assert.Empty(t, res.Text)

	var target *providers.APIError
	assert.True(t, errors.As(res.Err, &target))
}

func TestRunStream(t *testing.T) {
	root := sampleRepo(t)
	git := &fakeGit{diff: sampleDiff, root: root}
	gen := &fakeGenerator{chunks: []string{"Summary: ", "fine."}}

	var started int
	var got []string
	opts := Options{OnPrepared: func(p Prepared) {
		started++
		assert.Equal(t, []string{"main.go"}, p.Files)
	}}
	res, err := RunStream(context.Background(), git, gen, opts, func(text string) { got = append(got, text) })
	require.NoError(t, err)
	assert.Equal(t, 1, started)
	assert.Equal(t, []string{"Summary: ", "fine."}, got)
	assert.Equal(t, OutcomeReviewed, res.Outcome)
	assert.Equal(t, "Summary: fine.", res.Text)
}

func TestRunStream_MidStreamFailure(t *testing.T) {
	root := sampleRepo(t)
	git := &fakeGit{diff: sampleDiff, root: root}
	gen := &fakeGenerator{chunks: []string{"partial"}, chunkErr: errors.New("stream ended unexpectedly")}

	var got []string
	res, err := RunStream(context.Background(), git, gen, Options{}, func(text string) { got = append(got, text) })
	require.NoError(t, err)
	assert.Equal(t, []string{"partial"}, got, "error fragments are not forwarded as text")
	assert.Equal(t, OutcomeAPIFailure, res.Outcome)
	assert.EqualError(t, res.Err, "stream ended unexpectedly")
	assert.Equal(t, "partial", res.Text)
}

func TestRunStream_NoChangesSkipsStart(t *testing.T) {
	git := &fakeGit{diff: ""}
	gen := &fakeGenerator{}

	opts := Options{OnPrepared: func(Prepared) {
		t.Error("OnPrepared must not run without staged changes")
	}}
	res, err := RunStream(context.Background(), git, gen, opts, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoChanges, res.Outcome)
	assert.Zero(t, gen.calls)
}

func TestPrepare_GatherError(t *testing.T) {
	git := &fakeGit{diff: sampleDiff, root: filepath.Join(t.TempDir(), "missing")}

	_, err := Prepare(context.Background(), git, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gathering project context")
}
