package review

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/critic/internal/gitctx"
	"github.com/dshills/critic/internal/projctx"
	"github.com/dshills/critic/internal/providers"
	"github.com/dshills/critic/internal/redact"
	"github.com/dshills/critic/internal/stream"
)

// DefaultCommitLimit is how many commit subjects are sent as context.
const DefaultCommitLimit = 15

// DefaultMaxTokens caps the review length.
const DefaultMaxTokens = 8192

// DiffSource is the repository side of a review; *gitctx.Collector
// implements it.
type DiffSource interface {
	Staged(ctx context.Context, extended bool) (gitctx.DiffText, error)
	RecentSubjects(ctx context.Context, n int) (string, error)
	Meta(ctx context.Context) (gitctx.RepoMeta, error)
}

// Options controls how a review is assembled.
type Options struct {
	// Root is the working tree read for context; empty means the repository
	// top level reported by git.
	Root            string
	RunID           string
	ExtendedContext bool
	CommitLimit     int
	Context         projctx.Options
	// IncludeFileContents sends the current content of every changed file.
	IncludeFileContents bool
	MaxFileBytes        int64
	// Redactor scrubs the diff and file contents; nil sends them unchanged.
	Redactor *redact.Redactor
	// MaxDiffBytes caps the diff sent after redaction; zero sends it whole.
	MaxDiffBytes int
	MaxTokens int
	Logger    *slog.Logger
	// OnPrepared is called once, just before the request is sent, and never
	// when nothing is staged.
	OnPrepared func(Prepared)
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Prepared is a review that is ready to be sent.
type Prepared struct {
	Prompt Prompt
	Files  []string
	Repo   gitctx.RepoMeta
	// Empty is set when there were no staged changes; Prompt is then unset.
	Empty      bool
	Redactions int
	GitMs      int64
}

// Prepare collects the staged diff and its context and builds the prompt.
// Repository failures are returned as errors; an empty index is reported
// through Prepared.Empty.
func Prepare(ctx context.Context, git DiffSource, opts Options) (Prepared, error) {
	logger := opts.logger()
	start := time.Now()

	diff, err := git.Staged(ctx, opts.ExtendedContext)
	if err != nil {
		return Prepared{}, fmt.Errorf("collecting staged changes: %w", err)
	}
	if diff.Empty() {
		logger.Debug("no staged changes")
		return Prepared{Empty: true, GitMs: time.Since(start).Milliseconds()}, nil
	}

	meta, err := git.Meta(ctx)
	if err != nil {
		return Prepared{}, fmt.Errorf("reading repository metadata: %w", err)
	}
	root := opts.Root
	if root == "" {
		root = meta.Root
	}

	limit := opts.CommitLimit
	if limit == 0 {
		limit = DefaultCommitLimit
	}
	commitLog, err := git.RecentSubjects(ctx, limit)
	if err != nil {
		return Prepared{}, fmt.Errorf("reading commit history: %w", err)
	}

	pc, err := projctx.Gather(root, opts.Context, commitLog)
	if err != nil {
		return Prepared{}, fmt.Errorf("gathering project context: %w", err)
	}

	paths := gitctx.ExtractPaths(diff)
	var files []gitctx.ChangedFile
	if opts.IncludeFileContents {
		files = gitctx.LoadChangedFiles(root, paths, opts.MaxFileBytes, logger)
	} else {
		files = make([]gitctx.ChangedFile, len(paths))
		for i, p := range paths {
			files[i] = gitctx.ChangedFile{Path: p}
		}
	}

	redactions := 0
	if opts.Redactor != nil {
		var clean string
		clean, redactions = opts.Redactor.Diff(string(diff))
		diff = gitctx.DiffText(clean)
		for i := range files {
			if !files[i].Loaded {
				continue
			}
			var n int
			files[i].Content, n = opts.Redactor.File(files[i].Path, files[i].Content)
			redactions += n
		}
		if redactions > 0 {
			logger.Info("redacted secrets", "count", redactions)
		}
	}
	if opts.MaxDiffBytes > 0 && len(diff) > opts.MaxDiffBytes {
		logger.Warn("diff truncated", "bytes", len(diff), "limit", opts.MaxDiffBytes)
		diff = gitctx.Truncate(diff, opts.MaxDiffBytes)
	}

	logger.Debug("review prepared",
		"files", len(paths),
		"tree_entries", len(pc.FileTree),
		"overview", pc.OverviewPath,
		"diff_bytes", len(diff))

	return Prepared{
		Prompt: BuildPrompt(PromptInput{
			Overview:      pc.Overview,
			CommitLog:     pc.CommitLog,
			FileTree:      pc.FileTree,
			TreeTruncated: pc.Truncated,
			Diff:          diff,
			Files:         files,
		}),
		Files:      paths,
		Repo:       meta,
		Redactions: redactions,
		GitMs:      time.Since(start).Milliseconds(),
	}, nil
}

// Review sends p with one blocking call. Transport and API errors become
// OutcomeAPIFailure; they are never folded into Text.
func Review(ctx context.Context, gen providers.Generator, p Prompt, maxTokens int) Result {
	if maxTokens == 0 {
		maxTokens = DefaultMaxTokens
	}
	start := time.Now()
	resp, err := gen.Generate(ctx, providers.Request{
		SystemPrompt: p.System,
		UserPrompt:   p.User,
		MaxTokens:    maxTokens,
	})
	res := Result{Model: gen.Model(), Timing: Timing{LLMMs: time.Since(start).Milliseconds()}}
	if err != nil {
		res.Outcome = OutcomeAPIFailure
		res.Err = err
		return res
	}
	res.Outcome = OutcomeReviewed
	res.Text = resp.Content
	res.TokensUsed = resp.TokensUsed
	return res
}

// ReviewStream sends p as a stream and forwards every fragment to
// onFragment as it arrives. A failure ends the stream with
// OutcomeAPIFailure; the text received up to that point is kept.
func ReviewStream(ctx context.Context, gen providers.Generator, p Prompt, maxTokens int, onFragment func(string)) Result {
	if maxTokens == 0 {
		maxTokens = DefaultMaxTokens
	}
	start := time.Now()
	req := providers.Request{SystemPrompt: p.System, UserPrompt: p.User, MaxTokens: maxTokens}

	res := Result{Model: gen.Model(), Outcome: OutcomeReviewed}
	var text strings.Builder
	for f := range stream.Fragments(ctx, gen, req) {
		if f.Failed() {
			res.Outcome = OutcomeAPIFailure
			res.Err = f.Err
			break
		}
		text.WriteString(f.Text)
		if onFragment != nil {
			onFragment(f.Text)
		}
	}
	res.Text = text.String()
	res.Timing.LLMMs = time.Since(start).Milliseconds()
	return res
}

// Run performs a complete blocking review. With nothing staged it returns
// OutcomeNoChanges without calling gen.
func Run(ctx context.Context, git DiffSource, gen providers.Generator, opts Options) (Result, error) {
	return run(ctx, git, opts, func(p Prompt) Result {
		return Review(ctx, gen, p, opts.MaxTokens)
	})
}

// RunStream is Run with a streamed response; fragments are passed to
// onFragment as they arrive.
func RunStream(ctx context.Context, git DiffSource, gen providers.Generator, opts Options, onFragment func(string)) (Result, error) {
	return run(ctx, git, opts, func(p Prompt) Result {
		return ReviewStream(ctx, gen, p, opts.MaxTokens, onFragment)
	})
}

func run(ctx context.Context, git DiffSource, opts Options, send func(Prompt) Result) (Result, error) {
	start := time.Now()
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger := opts.logger()

	prep, err := Prepare(ctx, git, opts)
	if err != nil {
		return Result{RunID: runID}, err
	}
	if prep.Empty {
		return Result{
			Outcome: OutcomeNoChanges,
			RunID:   runID,
			Timing:  Timing{GitMs: prep.GitMs, TotalMs: time.Since(start).Milliseconds()},
		}, nil
	}

	if opts.OnPrepared != nil {
		opts.OnPrepared(prep)
	}
	logger.Info("requesting review", "files", len(prep.Files))
	res := send(prep.Prompt)
	res.RunID = runID
	res.Files = prep.Files
	res.Repo = prep.Repo
	res.Redactions = prep.Redactions
	res.Timing.GitMs = prep.GitMs
	res.Timing.TotalMs = time.Since(start).Milliseconds()
	if res.Failed() {
		logger.Warn("review request failed", "error", res.Err)
	} else {
		logger.Debug("review received", "tokens", res.TokensUsed, "llm_ms", res.Timing.LLMMs)
	}
	return res, nil
}
