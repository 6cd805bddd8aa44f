package gitctx

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const nullDevice = "/dev/null"

// ChangedFile is a path touched by the staged diff, optionally paired with
// its current working-tree content.
type ChangedFile struct {
	Path    string `json:"path"`
	Content string `json:"-"`
	Loaded  bool   `json:"loaded"`
}

// fileHeader is one "--- old" / "+++ new" pair. An empty side is either the
// null device or, when HasNew is false, a missing "+++" line.
type fileHeader struct {
	Old    string
	New    string
	HasNew bool
}

// ExtractPaths returns the deduplicated paths a diff adds or modifies, in
// order of first appearance. It is a heuristic scan of file header lines, not
// a diff parser: renames without content changes, binary files and combined
// merge diffs are not reported.
func ExtractPaths(diff DiffText) []string {
	var paths []string
	seen := make(map[string]bool)
	scanHeaders(string(diff), func(h fileHeader) {
		path := h.New
		if !h.HasNew {
			path = h.Old
		}
		if path == "" || seen[path] {
			return
		}
		seen[path] = true
		paths = append(paths, path)
	})
	return paths
}

// scanHeaders walks diff line by line and reports every file header. Hunk
// bodies are skipped using the line counts in their "@@" header so content
// lines starting with "---" or "+++" are not mistaken for headers. A "--- "
// line directly followed by a "+++ " line always ends the current hunk, so an
// overstated count cannot swallow the next file's headers.
func scanHeaders(diff string, emit func(fileHeader)) {
	var (
		pendingOld  string
		havePending bool
		oldLeft     int
		newLeft     int
	)
	flush := func() {
		if havePending {
			emit(fileHeader{Old: pendingOld})
			havePending = false
		}
	}

	lines := strings.Split(diff, "\n")
	for i, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		if oldLeft > 0 || newLeft > 0 {
			if !startsHeaderPair(lines, i) && consumeHunkLine(line, &oldLeft, &newLeft) {
				continue
			}
			// Hunk ended early or is malformed; resume header scanning.
			oldLeft, newLeft = 0, 0
		}

		switch {
		case strings.HasPrefix(line, "diff "):
			flush()
		case strings.HasPrefix(line, "--- "):
			flush()
			pendingOld, havePending = parseHeaderPath(line[len("--- "):]), true
		case strings.HasPrefix(line, "+++ "):
			h := fileHeader{New: parseHeaderPath(line[len("+++ "):]), HasNew: true}
			if havePending {
				h.Old = pendingOld
				havePending = false
			}
			emit(h)
		case strings.HasPrefix(line, "@@ "):
			flush()
			oldLeft, newLeft = parseHunkHeader(line)
		}
	}
	flush()
}

func startsHeaderPair(lines []string, i int) bool {
	return strings.HasPrefix(lines[i], "--- ") &&
		i+1 < len(lines) && strings.HasPrefix(lines[i+1], "+++ ")
}

func consumeHunkLine(line string, oldLeft, newLeft *int) bool {
	switch {
	case strings.HasPrefix(line, `\`): // "\ No newline at end of file"
		return true
	case strings.HasPrefix(line, "-") && *oldLeft > 0:
		*oldLeft--
		return true
	case strings.HasPrefix(line, "+") && *newLeft > 0:
		*newLeft--
		return true
	case (line == "" || strings.HasPrefix(line, " ")) && *oldLeft > 0 && *newLeft > 0:
		*oldLeft--
		*newLeft--
		return true
	}
	return false
}

// parseHunkHeader reads the old and new line counts from
// "@@ -a[,b] +c[,d] @@". A malformed header yields zero counts.
func parseHunkHeader(line string) (int, int) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return 0, 0
	}
	oldCount, ok1 := rangeCount(fields[1], '-')
	newCount, ok2 := rangeCount(fields[2], '+')
	if !ok1 || !ok2 {
		return 0, 0
	}
	return oldCount, newCount
}

func rangeCount(field string, sign byte) (int, bool) {
	if len(field) < 2 || field[0] != sign {
		return 0, false
	}
	_, count, found := strings.Cut(field[1:], ",")
	if !found {
		return 1, true
	}
	n, err := strconv.Atoi(count)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// parseHeaderPath turns the text after "--- " or "+++ " into a repository
// path. The null device maps to "".
func parseHeaderPath(raw string) string {
	if i := strings.IndexByte(raw, '\t'); i >= 0 {
		raw = raw[:i]
	}
	if strings.HasPrefix(raw, `"`) {
		if unquoted, err := strconv.Unquote(raw); err == nil {
			raw = unquoted
		}
	}
	if raw == nullDevice {
		return ""
	}
	if rest, ok := strings.CutPrefix(raw, "a/"); ok {
		return rest
	}
	if rest, ok := strings.CutPrefix(raw, "b/"); ok {
		return rest
	}
	return raw
}

// LoadChangedFiles reads the current content of each path relative to root.
// Missing, unreadable, binary and oversized files are logged and returned
// with Loaded=false; they never fail the load.
func LoadChangedFiles(root string, paths []string, maxBytes int64, logger *slog.Logger) []ChangedFile {
	if logger == nil {
		logger = slog.Default()
	}
	files := make([]ChangedFile, 0, len(paths))
	for _, p := range paths {
		cf := ChangedFile{Path: p}
		full := filepath.Join(root, filepath.FromSlash(p))

		info, err := os.Stat(full)
		switch {
		case err != nil:
			logger.Warn("skipping unreadable file", "path", p, "error", err)
		case !info.Mode().IsRegular():
			logger.Warn("skipping non-regular file", "path", p)
		case maxBytes > 0 && info.Size() > maxBytes:
			logger.Warn("skipping oversized file", "path", p, "size", info.Size(), "limit", maxBytes)
		default:
			data, err := os.ReadFile(full)
			if err != nil {
				logger.Warn("skipping unreadable file", "path", p, "error", err)
				break
			}
			if bytes.IndexByte(data, 0) >= 0 {
				logger.Warn("skipping binary file", "path", p)
				break
			}
			cf.Content = string(data)
			cf.Loaded = true
		}
		files = append(files, cf)
	}
	return files
}
