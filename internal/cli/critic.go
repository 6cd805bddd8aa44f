package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dshills/critic/internal/config"
	"github.com/dshills/critic/internal/gitctx"
	"github.com/dshills/critic/internal/logging"
	"github.com/dshills/critic/internal/output"
	"github.com/dshills/critic/internal/projctx"
	"github.com/dshills/critic/internal/providers"
	"github.com/dshills/critic/internal/redact"
	"github.com/dshills/critic/internal/review"
)

// Review flags
var (
	flagRepo           string
	flagExtended       bool
	flagContextLines   int
	flagCommits        int
	flagInclude        string
	flagExclude        string
	flagIgnoreDirs     string
	flagStream         bool
	flagFormat         string
	flagNoRedact       bool
	flagNoFileContents bool
	flagStrict         bool
)

func newCriticCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "critic",
		Short: "Review staged git changes with Gemini",
		Long: "Critic sends the staged diff to Gemini together with the project overview, " +
			"recent commit subjects, the file tree and the changed files, and prints the review.",
		Args:    cobra.NoArgs,
		RunE:    runCritic,
		Version: version,
	}

	f := cmd.Flags()
	f.StringVar(&flagRepo, "repo", ".", "Repository directory")
	f.BoolVarP(&flagExtended, "extended-context", "e", false, "Send the diff with a wider context window")
	f.IntVar(&flagContextLines, "context-lines", 0, "Context lines for --extended-context")
	f.IntVar(&flagCommits, "commits", 0, "Number of recent commit subjects to include")
	f.StringVar(&flagInclude, "include", "", "Only review paths matching these globs (comma-separated)")
	f.StringVar(&flagExclude, "exclude", "", "Skip paths matching these globs (comma-separated)")
	f.StringVar(&flagIgnoreDirs, "ignore-dirs", "", "Directory names left out of the file tree (comma-separated)")
	f.StringVar(&flagModel, "model", "", "Gemini model name")
	f.BoolVar(&flagStream, "stream", false, "Print the review as it is generated")
	f.StringVar(&flagFormat, "format", "", "Output format (text, json)")
	f.BoolVar(&flagNoRedact, "no-redact", false, "Disable secret redaction (use with caution)")
	f.BoolVar(&flagNoFileContents, "no-file-contents", false, "Do not send the contents of changed files")
	f.BoolVar(&flagStrict, "strict", false, "Exit non-zero when the review request fails")
	f.IntVar(&flagTimeout, "timeout", 0, "Request timeout in seconds")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")

	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd("critic"))
	return cmd
}

func buildOverrides() map[string]string {
	m := make(map[string]string)
	if flagModel != "" {
		m["model"] = flagModel
	}
	if flagFormat != "" {
		m["format"] = flagFormat
	}
	if flagContextLines > 0 {
		m["contextLines"] = strconv.Itoa(flagContextLines)
	}
	if flagCommits > 0 {
		m["commitLimit"] = strconv.Itoa(flagCommits)
	}
	if flagInclude != "" {
		m["include"] = flagInclude
	}
	if flagExclude != "" {
		m["exclude"] = flagExclude
	}
	if flagIgnoreDirs != "" {
		m["ignoreDirs"] = flagIgnoreDirs
	}
	if flagTimeout > 0 {
		m["timeoutSeconds"] = strconv.Itoa(flagTimeout)
	}
	if flagNoFileContents {
		m["includeFileContents"] = "false"
	}
	if flagNoRedact {
		m["privacy.redactSecrets"] = "false"
	}
	return m
}

func buildReviewOpts(cfg config.Config, runID string) review.Options {
	opts := review.Options{
		RunID:           runID,
		ExtendedContext: flagExtended,
		CommitLimit:     cfg.CommitLimit,
		Context: projctx.Options{
			Tree: projctx.TreeOptions{
				IgnoreDirs: cfg.IgnoreDirs,
				Exclude:    cfg.Exclude,
				MaxEntries: cfg.MaxTreeEntries,
			},
			OverviewFiles: cfg.OverviewFiles,
		},
		IncludeFileContents: cfg.IncludeFileContents,
		MaxFileBytes:        cfg.MaxFileBytes,
		MaxDiffBytes:        cfg.MaxDiffBytes,
	}
	if cfg.Privacy.RedactSecrets {
		opts.Redactor = &redact.Redactor{Paths: cfg.Privacy.RedactPaths}
	}
	return opts
}

func runCritic(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(buildOverrides())
	if err != nil {
		return err
	}
	writer, err := output.GetWriter(cfg.Format)
	if err != nil {
		return err
	}
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()

	runID := uuid.NewString()
	logger, closeLog, err := logging.New(stderr, logging.Options{Debug: flagDebug, RunID: runID})
	if err != nil {
		return err
	}
	defer closeLog()
	ctx := logging.WithLogger(cmd.Context(), logger)

	// The credential is checked before git runs.
	gen, err := newGenerator("gemini", cfg.Model)
	if err != nil {
		return fail(stderr, exitFor(err), err)
	}

	header(stderr, "--- Running Criticize Agent ---")
	if !cfg.Privacy.RedactSecrets {
		warning(stderr, "WARNING: secret redaction is disabled")
	}

	if cfg.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(cfg.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	git := &gitctx.Collector{
		Dir:    flagRepo,
		Binary: gitBinary,
		Options: gitctx.DiffOptions{
			ContextLines: cfg.ContextLines,
			Include:      cfg.Include,
			Exclude:      cfg.Exclude,
		},
	}
	opts := buildReviewOpts(cfg, runID)
	opts.Logger = logger
	opts.OnPrepared = func(p review.Prepared) {
		header(stderr, "\n--- Found Staged Changes ---")
		printPaths(stderr, p.Files)
		info(stderr, "Requesting review from %s...", gen.Model())
	}

	tw, streaming := writer.(*output.TextWriter)
	if flagStream && !streaming {
		warning(stderr, "--stream is ignored with --format %s", cfg.Format)
	}
	streaming = streaming && flagStream

	var res review.Result
	var writeErr error
	if streaming {
		prepared := opts.OnPrepared
		opts.OnPrepared = func(p review.Prepared) {
			prepared(p)
			writeErr = tw.StreamHeader(stdout)
		}
		res, err = review.RunStream(ctx, git, gen, opts, func(fragment string) {
			if writeErr == nil {
				_, writeErr = io.WriteString(stdout, fragment)
			}
		})
	} else {
		res, err = review.Run(ctx, git, gen, opts)
	}
	if err != nil {
		return fail(stderr, exitFor(err), err)
	}

	if streaming && res.Outcome != review.OutcomeNoChanges {
		if writeErr == nil {
			writeErr = tw.StreamFooter(stdout, res)
		}
	} else {
		writeErr = writer.Write(stdout, res)
	}
	if writeErr != nil {
		return fail(stderr, ExitRuntimeError, fmt.Errorf("writing output: %w", writeErr))
	}

	if res.Failed() {
		switch {
		case providers.IsAuthError(res.Err):
			exitCode = ExitAuthError
		case flagStrict:
			exitCode = ExitAPIFailure
		}
	}
	return nil
}
