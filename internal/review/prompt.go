package review

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dshills/critic/internal/gitctx"
)

// Placeholders stand in for missing prompt sections.
const (
	NoOverview     = "No overview document found."
	NoCommitLog    = "No commit history available."
	NoFiles        = "No files found."
	NoFileContents = "No changed file contents available."
	NoDiff         = "No staged changes."
)

const systemPrompt = `You are a strict, expert code reviewer. You review the staged changes of a git repository before they are committed.

Rules:
1. Review only the staged changes. Use the project overview, recent commits, file tree and current file contents as background.
2. Focus on bugs, security issues, performance problems and correctness. Mention style only when it hurts readability.
3. Be concise and actionable. Every issue must come with a concrete suggestion.
4. Reference file paths and, where possible, line numbers from the diff hunks.

Structure your answer as:
Summary: one short paragraph describing what the change does.
Issues: a list grouped by severity (high, medium, low). Write "None" when there are no issues.
Suggestions: optional improvements that are not defects.`

// SystemPrompt returns the system instruction for reviews.
func SystemPrompt() string {
	return systemPrompt
}

// PromptInput is everything a review prompt is built from.
type PromptInput struct {
	Overview  string
	CommitLog string
	FileTree  []string
	// TreeTruncated adds a note that the file tree listing is incomplete.
	TreeTruncated bool
	Diff          gitctx.DiffText
	Files         []gitctx.ChangedFile
}

// BuildPrompt renders the review prompt. It is pure: equal inputs give
// byte-identical prompts, and every empty section gets its fixed
// placeholder.
func BuildPrompt(in PromptInput) Prompt {
	var b strings.Builder

	b.WriteString("Review the following staged changes.\n")
	if langs := detectLanguages(in.Files); len(langs) > 0 {
		fmt.Fprintf(&b, "Languages: %s\n", strings.Join(langs, ", "))
	}

	section(&b, "PROJECT OVERVIEW", orPlaceholder(in.Overview, NoOverview))
	section(&b, "RECENT COMMITS", orPlaceholder(in.CommitLog, NoCommitLog))

	tree := NoFiles
	if len(in.FileTree) > 0 {
		tree = strings.Join(in.FileTree, "\n")
		if in.TreeTruncated {
			tree += "\n... (file tree truncated)"
		}
	}
	section(&b, "FILE TREE", tree)
	section(&b, "CHANGED FILES", changedFiles(in.Files))
	section(&b, "DIFF", orPlaceholder(string(in.Diff), NoDiff))

	return Prompt{System: systemPrompt, User: b.String()}
}

func section(b *strings.Builder, name, body string) {
	fmt.Fprintf(b, "\n--- BEGIN %s ---\n", name)
	b.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		b.WriteByte('\n')
	}
	fmt.Fprintf(b, "--- END %s ---\n", name)
}

func orPlaceholder(s, placeholder string) string {
	if strings.TrimSpace(s) == "" {
		return placeholder
	}
	return s
}

func changedFiles(files []gitctx.ChangedFile) string {
	var b strings.Builder
	for _, f := range files {
		if !f.Loaded {
			continue
		}
		fmt.Fprintf(&b, "=== %s ===\n", f.Path)
		b.WriteString(f.Content)
		if !strings.HasSuffix(f.Content, "\n") {
			b.WriteByte('\n')
		}
	}
	if b.Len() == 0 {
		return NoFileContents
	}
	return b.String()
}

var langMap = map[string]string{
	".go":    "Go",
	".py":    "Python",
	".js":    "JavaScript",
	".ts":    "TypeScript",
	".tsx":   "TypeScript/React",
	".jsx":   "JavaScript/React",
	".rs":    "Rust",
	".java":  "Java",
	".rb":    "Ruby",
	".cpp":   "C++",
	".c":     "C",
	".h":     "C/C++",
	".cs":    "C#",
	".php":   "PHP",
	".swift": "Swift",
	".kt":    "Kotlin",
	".sql":   "SQL",
	".sh":    "Shell",
	".yaml":  "YAML",
	".yml":   "YAML",
	".tf":    "Terraform",
}

// detectLanguages lists languages in order of first appearance.
func detectLanguages(files []gitctx.ChangedFile) []string {
	seen := make(map[string]bool)
	var langs []string
	for _, f := range files {
		lang, ok := langMap[filepath.Ext(f.Path)]
		if ok && !seen[lang] {
			seen[lang] = true
			langs = append(langs, lang)
		}
	}
	return langs
}
