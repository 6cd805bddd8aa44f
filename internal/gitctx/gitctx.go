package gitctx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultContextLines is the unified context window used for extended diffs.
const DefaultContextLines = 10

var (
	// ErrToolUnavailable means the git binary could not be found.
	ErrToolUnavailable = errors.New("git is not installed or not in PATH")
	// ErrNotARepository means the working directory is not inside a git work tree.
	ErrNotARepository = errors.New("not a git repository")
)

// ToolError reports a git invocation that exited non-zero for a reason other
// than a missing repository.
type ToolError struct {
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("git %s exited with status %d", strings.Join(e.Args, " "), e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *ToolError) Unwrap() error { return e.Err }

// DiffText is the raw output of a git diff invocation.
type DiffText string

// Empty reports whether the diff holds no changes.
func (d DiffText) Empty() bool {
	return strings.TrimSpace(string(d)) == ""
}

// DiffOptions controls how diffs are gathered.
type DiffOptions struct {
	ContextLines int
	Include      []string
	Exclude      []string
}

// RepoMeta contains git repository metadata.
type RepoMeta struct {
	Root   string `json:"root"`
	Head   string `json:"head,omitempty"`
	Branch string `json:"branch,omitempty"`
}

// Runner executes binary with args inside dir. It must report failures the
// way os/exec does: exec.ErrNotFound for a missing binary and an error with
// an ExitCode() int method for non-zero exits.
type Runner func(ctx context.Context, dir, binary string, args ...string) (stdout, stderr string, err error)

// Collector runs git against a single working tree.
type Collector struct {
	// Dir is the working directory; empty means the process directory.
	Dir string
	// Binary defaults to "git".
	Binary  string
	Options DiffOptions
	// Run defaults to an os/exec based runner.
	Run Runner
}

// Staged returns the diff of the index against HEAD. When extended is set the
// unified context window is widened to Options.ContextLines. Excluded files are
// dropped; the diff is not truncated.
func (c *Collector) Staged(ctx context.Context, extended bool) (DiffText, error) {
	// Outside a work tree "git diff" falls back to --no-index mode and rejects
	// --staged as a usage error, so check membership first.
	inside, err := c.git(ctx, "rev-parse", "--is-inside-work-tree")
	if err != nil {
		return "", fmt.Errorf("git rev-parse: %w", err)
	}
	if strings.TrimSpace(inside) != "true" {
		return "", fmt.Errorf("%w: %s is not inside a work tree", ErrNotARepository, c.dirName())
	}

	args := append([]string{"diff", "--staged"}, buildDiffArgs(c.Options, extended)...)
	out, err := c.git(ctx, args...)
	if err != nil {
		return "", fmt.Errorf("git diff --staged: %w", err)
	}
	if len(c.Options.Exclude) > 0 {
		out = filterExcluded(out, c.Options.Exclude)
	}
	return DiffText(out), nil
}

// TruncationNotice is appended to a diff cut by Truncate.
const TruncationNotice = "... (diff truncated at max-diff-bytes limit)\n"

// Truncate limits diff to maxBytes, cutting at the last line boundary within
// the limit and appending TruncationNotice. A non-positive maxBytes disables
// the limit. Callers that redact must do so before truncating.
func Truncate(diff DiffText, maxBytes int) DiffText {
	if maxBytes <= 0 || len(diff) <= maxBytes {
		return diff
	}
	cut := string(diff[:maxBytes])
	if i := strings.LastIndexByte(cut, '\n'); i >= 0 {
		cut = cut[:i+1]
	} else {
		cut = ""
	}
	return DiffText(cut + TruncationNotice)
}

func (c *Collector) dirName() string {
	if c.Dir == "" {
		return "."
	}
	return c.Dir
}

// RecentSubjects returns the subject lines of the last n commits, newest
// first, one per line. A repository without commits yields an empty string.
func (c *Collector) RecentSubjects(ctx context.Context, n int) (string, error) {
	if n <= 0 {
		return "", nil
	}
	out, err := c.git(ctx, "log", "-n", strconv.Itoa(n), "--format=%s")
	if err != nil {
		var toolErr *ToolError
		if errors.As(err, &toolErr) && isEmptyHistory(toolErr.Stderr) {
			return "", nil
		}
		return "", fmt.Errorf("git log: %w", err)
	}
	return strings.TrimRight(out, "\n"), nil
}

// RepoRoot returns the top-level directory of the working tree.
func (c *Collector) RepoRoot(ctx context.Context) (string, error) {
	root, err := c.git(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", fmt.Errorf("git rev-parse: %w", err)
	}
	return strings.TrimSpace(root), nil
}

// Meta collects repository metadata. Head and Branch are empty in a
// repository without commits.
func (c *Collector) Meta(ctx context.Context) (RepoMeta, error) {
	root, err := c.RepoRoot(ctx)
	if err != nil {
		return RepoMeta{}, err
	}
	head, err := c.git(ctx, "rev-parse", "HEAD")
	if err != nil {
		head = "" // new repo with no commits
	}
	branch, err := c.git(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		branch = ""
	}
	return RepoMeta{
		Root:   root,
		Head:   strings.TrimSpace(head),
		Branch: strings.TrimSpace(branch),
	}, nil
}

func (c *Collector) git(ctx context.Context, args ...string) (string, error) {
	binary := c.Binary
	if binary == "" {
		binary = "git"
	}
	run := c.Run
	if run == nil {
		run = execRunner
	}
	stdout, stderr, err := run(ctx, c.Dir, binary, args...)
	if err != nil {
		return stdout, classify(args, stderr, err)
	}
	return stdout, nil
}

func execRunner(ctx context.Context, dir, binary string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

func classify(args []string, stderr string, err error) error {
	if errors.Is(err, exec.ErrNotFound) {
		return ErrToolUnavailable
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	stderr = strings.TrimSpace(stderr)
	if strings.Contains(strings.ToLower(stderr), "not a git repository") {
		return fmt.Errorf("%w: %s", ErrNotARepository, stderr)
	}
	code := -1
	var exitErr interface{ ExitCode() int }
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	}
	return &ToolError{Args: args, ExitCode: code, Stderr: stderr, Err: err}
}

func isEmptyHistory(stderr string) bool {
	s := strings.ToLower(stderr)
	return strings.Contains(s, "does not have any commits") ||
		strings.Contains(s, "bad default revision")
}

func buildDiffArgs(opts DiffOptions, extended bool) []string {
	var args []string
	if extended {
		n := opts.ContextLines
		if n <= 0 {
			n = DefaultContextLines
		}
		args = append(args, fmt.Sprintf("-U%d", n))
	}
	args = append(args, "--")
	for _, p := range opts.Include {
		if p != "**/*" {
			args = append(args, p)
		}
	}
	return args
}

func filterExcluded(diff string, excludes []string) string {
	sections := SplitSections(diff)
	var kept []string
	for _, section := range sections {
		path := SectionPath(section)
		if path == "" || !MatchesAny(path, excludes) {
			kept = append(kept, section)
		}
	}
	return strings.Join(kept, "")
}

// SplitSections splits a multi-file diff at each "diff --git" header. Text
// before the first header forms its own section.
func SplitSections(diff string) []string {
	var sections []string
	var current strings.Builder
	for _, line := range strings.SplitAfter(diff, "\n") {
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "diff --git") && current.Len() > 0 {
			sections = append(sections, current.String())
			current.Reset()
		}
		current.WriteString(line)
	}
	if current.Len() > 0 {
		sections = append(sections, current.String())
	}
	return sections
}

// SectionPath returns the path a single-file diff section refers to: the new
// side, or the old side for a deletion. It is empty when the section has no
// file headers.
func SectionPath(section string) string {
	var path string
	scanHeaders(section, func(h fileHeader) {
		if path != "" {
			return
		}
		path = h.New
		if path == "" {
			path = h.Old
		}
	})
	return path
}

// MatchesAny returns true if the path matches any of the given glob patterns.
func MatchesAny(path string, patterns []string) bool {
	for _, pattern := range patterns {
		matched, err := filepath.Match(pattern, path)
		if err == nil && matched {
			return true
		}
		clean := strings.TrimPrefix(pattern, "**/")
		if clean != pattern {
			matched, err = filepath.Match(clean, filepath.Base(path))
			if err == nil && matched {
				return true
			}
			matched, err = filepath.Match(clean, path)
			if err == nil && matched {
				return true
			}
		}
		// "dir/**" matches everything below dir, "**/dir/**" at any depth
		if prefix, ok := strings.CutSuffix(clean, "/**"); ok && prefix != "" && !strings.ContainsAny(prefix, "*?[") {
			if strings.HasPrefix(path, prefix+"/") {
				return true
			}
			if clean != pattern && strings.Contains("/"+path, "/"+prefix+"/") {
				return true
			}
		}
	}
	return false
}
