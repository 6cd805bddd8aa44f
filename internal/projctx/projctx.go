package projctx

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/dshills/critic/internal/gitctx"
)

// DefaultOverviewFiles are the overview document names tried, in order.
var DefaultOverviewFiles = []string{"README.md", "README", "README.rst", "README.txt"}

// DefaultIgnoreDirs returns the directory names pruned from the file tree.
func DefaultIgnoreDirs() []string {
	return []string{".git", "node_modules", "vendor", "__pycache__", ".venv", "venv", "dist", "build", ".idea", ".vscode"}
}

// Context is the project background sent alongside a diff. It is built once
// per run and not mutated afterwards.
type Context struct {
	Overview     string   `json:"-"`
	OverviewPath string   `json:"overviewPath,omitempty"`
	FileTree     []string `json:"-"`
	CommitLog    string   `json:"-"`
	// Truncated is set when the file tree hit TreeOptions.MaxEntries.
	Truncated bool `json:"treeTruncated,omitempty"`
}

// TreeOptions controls the file tree walk.
type TreeOptions struct {
	IgnoreDirs []string
	Include    []string
	Exclude    []string
	// MaxEntries stops the walk after this many files; 0 means no limit.
	MaxEntries int
}

// Options controls Gather.
type Options struct {
	Tree          TreeOptions
	OverviewFiles []string
}

// Doc is an optional project document.
type Doc struct {
	Path    string
	Content string
}

// errTreeFull stops the walk once MaxEntries files were collected.
var errTreeFull = errors.New("tree entry limit reached")

// FileTree lists the files below root as slash-separated relative paths in
// walk order. Directories named in IgnoreDirs are never entered. The second
// return value reports whether the MaxEntries cap cut the listing short.
func FileTree(root string, opts TreeOptions) ([]string, bool, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			// unreadable entries below root are left out of the tree
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != root && slices.Contains(opts.IgnoreDirs, d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if len(opts.Include) > 0 && !gitctx.MatchesAny(rel, opts.Include) {
			return nil
		}
		if len(opts.Exclude) > 0 && gitctx.MatchesAny(rel, opts.Exclude) {
			return nil
		}
		if opts.MaxEntries > 0 && len(files) >= opts.MaxEntries {
			return errTreeFull
		}
		files = append(files, rel)
		return nil
	})
	if errors.Is(err, errTreeFull) {
		return files, true, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("walk %s: %w", root, err)
	}
	return files, false, nil
}

// ReadOptionalDoc returns the first candidate below root that exists and can
// be read as a regular file. The boolean is false when none qualifies.
func ReadOptionalDoc(root string, candidates []string) (Doc, bool) {
	for _, name := range candidates {
		full := filepath.Join(root, name)
		info, err := os.Stat(full)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		data, err := os.ReadFile(full)
		if err != nil {
			continue
		}
		return Doc{Path: name, Content: string(data)}, true
	}
	return Doc{}, false
}

// Gather builds the project context for root. commitLog is passed through
// unchanged; it comes from the git collector.
func Gather(root string, opts Options, commitLog string) (Context, error) {
	candidates := opts.OverviewFiles
	if len(candidates) == 0 {
		candidates = DefaultOverviewFiles
	}

	c := Context{CommitLog: commitLog}
	if doc, ok := ReadOptionalDoc(root, candidates); ok {
		c.Overview = doc.Content
		c.OverviewPath = doc.Path
	}

	tree, truncated, err := FileTree(root, opts.Tree)
	if err != nil {
		return Context{}, err
	}
	c.FileTree = tree
	c.Truncated = truncated
	return c, nil
}
