package redact

import (
	"regexp"
	"strings"

	"github.com/dshills/critic/internal/gitctx"
)

// Placeholder replaces every redacted value.
const Placeholder = "[REDACTED]"

const pathPolicyNote = Placeholder + " (file content redacted by path policy)\n"

type rule struct {
	name string
	re   *regexp.Regexp
}

// rules are ordered so provider-specific shapes win over the generic
// assignment heuristics.
var rules = []rule{
	{"google-api-key", regexp.MustCompile(`AIza[0-9A-Za-z_-]{35}`)},
	{"aws-access-key-id", regexp.MustCompile(`AKIA[0-9A-Z]{16}`)},
	{"github-token", regexp.MustCompile(`gh[pousr]_[A-Za-z0-9_]{36,}`)},
	{"slack-token", regexp.MustCompile(`xox[bporas]-[A-Za-z0-9-]{10,}`)},
	{"anthropic-key", regexp.MustCompile(`sk-ant-[A-Za-z0-9_-]{20,}`)},
	{"openai-key", regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`)},
	{"jwt", regexp.MustCompile(`eyJ[A-Za-z0-9_-]{10,}\.eyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}`)},
	{"private-key", regexp.MustCompile(`-----BEGIN\s+([A-Z]+\s+)?PRIVATE KEY-----`)},
	{"bearer", regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9._-]{20,}`)},
	{"database-url", regexp.MustCompile(`(?i)\b(postgres(?:ql)?|mysql|mongodb(?:\+srv)?|redis|amqp)://[^\s:@/]+:[^\s@/]+@[^\s"']+`)},
	{"aws-secret", regexp.MustCompile(`(?i)(aws[_-]?secret[_-]?access[_-]?key)\s*[:=]\s*["']?[A-Za-z0-9/+=]{40}["']?`)},
	{"api-key-assignment", regexp.MustCompile(`(?i)(api[_-]?key|apikey|api[_-]?secret)\s*[:=]\s*["']?[A-Za-z0-9/+=_-]{20,}["']?`)},
	{"secret-assignment", regexp.MustCompile(`(?i)(secret|token|password|passwd|credential)\s*[:=]\s*["'][^"']{8,}["']`)},
	{"hex-assignment", regexp.MustCompile(`(?i)(key|secret|token)\s*[:=]\s*["']?[0-9a-f]{32,}["']?`)},
}

// Secrets replaces detected secrets in text with [REDACTED] and reports how
// many values were replaced.
func Secrets(text string) (string, int) {
	count := 0
	for _, r := range rules {
		text = r.re.ReplaceAllStringFunc(text, func(string) string {
			count++
			return Placeholder
		})
	}
	return text, count
}

// Redactor scrubs review input. Files matching Paths have their whole
// content dropped; everything else is scanned for secrets.
type Redactor struct {
	Paths []string
}

// ShouldRedactPath reports whether path falls under the path policy.
func (r *Redactor) ShouldRedactPath(path string) bool {
	return r != nil && len(r.Paths) > 0 && gitctx.MatchesAny(path, r.Paths)
}

// File redacts the content of a single file.
func (r *Redactor) File(path, content string) (string, int) {
	if r.ShouldRedactPath(path) {
		return pathPolicyNote, 1
	}
	return Secrets(content)
}

// Diff redacts a multi-file diff section by section. A section whose path is
// under the path policy keeps its header lines and loses its hunks.
func (r *Redactor) Diff(diff string) (string, int) {
	sections := gitctx.SplitSections(diff)
	var b strings.Builder
	total := 0
	for _, section := range sections {
		path := gitctx.SectionPath(section)
		if path != "" && r.ShouldRedactPath(path) {
			b.WriteString(sectionHeader(section))
			b.WriteString(pathPolicyNote)
			total++
			continue
		}
		out, n := Secrets(section)
		b.WriteString(out)
		total += n
	}
	return b.String(), total
}

// sectionHeader returns the lines of section up to the first hunk.
func sectionHeader(section string) string {
	if i := strings.Index(section, "\n@@"); i >= 0 {
		return section[:i+1]
	}
	if strings.HasPrefix(section, "@@") {
		return ""
	}
	if !strings.HasSuffix(section, "\n") {
		section += "\n"
	}
	return section
}
