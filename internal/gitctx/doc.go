// Package gitctx collects staged changes and commit metadata from a git
// working tree.
//
// A [Collector] shells out to git for the staged diff ("git diff --staged",
// optionally with a wider -U context window) and for recent commit subjects.
// Failures are classified as [ErrToolUnavailable], [ErrNotARepository] or a
// [*ToolError] carrying the captured stderr, so callers can match them with
// errors.Is and errors.As.
//
// [ExtractPaths] is a best-effort scan of diff file headers that yields the
// paths a diff adds or modifies; [LoadChangedFiles] pairs them with their
// current content, skipping unreadable files with a warning.
package gitctx
