// Package ignore decides which paths a snapshot leaves out. Patterns are
// evaluated in file order and the last matching pattern wins, so a later
// line can undo an earlier negation and the other way round.
package ignore

import (
	"bufio"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Kind is the match strategy of a pattern, fixed when the line is parsed.
type Kind int

const (
	// Glob is a plain shell-style pattern such as "*.tmp".
	Glob Kind = iota
	// Directory patterns end in "/" and cover everything below the directory.
	Directory
	// RootFile patterns start with "/" and only match at the tracked root.
	RootFile
	// Recursive patterns contain "**".
	Recursive
)

func (k Kind) String() string {
	switch k {
	case Directory:
		return "directory"
	case RootFile:
		return "root-file"
	case Recursive:
		return "recursive"
	default:
		return "glob"
	}
}

// Pattern is one parsed ignore rule.
type Pattern struct {
	// Text is the pattern with any leading "!" removed.
	Text    string
	Negated bool
	Kind    Kind
	// body is Text without the anchoring "/" that selected the kind.
	body string
}

// ParsePattern classifies a single trimmed pattern line.
func ParsePattern(line string) Pattern {
	p := Pattern{Text: line}
	if strings.HasPrefix(p.Text, "!") {
		p.Negated = true
		p.Text = p.Text[1:]
	}

	switch {
	case strings.HasPrefix(p.Text, "/"):
		p.Kind = RootFile
		p.body = p.Text[1:]
	case strings.HasSuffix(p.Text, "/"):
		p.Kind = Directory
		p.body = strings.TrimSuffix(p.Text, "/")
	case strings.Contains(p.Text, "**"):
		p.Kind = Recursive
		p.body = p.Text
	default:
		p.Kind = Glob
		p.body = p.Text
	}
	return p
}

// String renders the pattern the way it appears in an ignore file.
func (p Pattern) String() string {
	if p.Negated {
		return "!" + p.Text
	}
	return p.Text
}

// Matches reports whether the pattern selects the given path, ignoring
// negation. The path is relative to the tracked root.
func (p Pattern) Matches(candidate string) bool {
	normalized := normalize(candidate)
	name := path.Base(normalized)

	switch p.Kind {
	case Glob:
		if globMatch(p.body, normalized) || globMatch(p.body, name) {
			return true
		}
		return strings.Contains(normalized, p.body) || name == p.body
	case Directory:
		return strings.HasPrefix(normalized, p.body) ||
			strings.Contains(normalized, "/"+p.body+"/") ||
			strings.HasSuffix(normalized, "/"+p.body)
	case RootFile:
		return !strings.Contains(normalized, "/") && normalized == p.body
	case Recursive:
		return globMatch(p.body, normalized) || strings.HasSuffix(normalized, p.body)
	}
	return false
}

// Parse reads ignore file content. Blank lines and "#" comments are skipped
// and the order of the remaining lines is preserved.
func Parse(content string) []Pattern {
	var patterns []Pattern
	sc := bufio.NewScanner(strings.NewReader(content))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, ParsePattern(line))
	}
	return patterns
}

// Engine evaluates an ordered pattern list.
type Engine struct {
	patterns []Pattern
}

// New returns an engine over patterns, evaluated in the given order.
func New(patterns []Pattern) *Engine {
	return &Engine{patterns: patterns}
}

// Default returns an engine using DefaultPatterns.
func Default() *Engine {
	return New(DefaultPatterns())
}

// Load parses the ignore file at path. A missing file is reported as an
// error satisfying os.IsNotExist so callers can fall back to defaults.
func Load(file string) (*Engine, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	return New(Parse(string(data))), nil
}

// Patterns returns the engine's patterns in evaluation order.
func (e *Engine) Patterns() []Pattern {
	return e.patterns
}

// IsIgnored applies every pattern in order; the last one that matches decides.
// Directories and files are matched the same way, by path.
func (e *Engine) IsIgnored(candidate string) bool {
	ignored, _ := e.Explain(candidate)
	return ignored
}

// Explain returns the verdict for candidate together with every pattern
// that matched it, in evaluation order.
func (e *Engine) Explain(candidate string) (bool, []Pattern) {
	ignored := false
	var matched []Pattern
	for _, p := range e.patterns {
		if p.Matches(candidate) {
			ignored = !p.Negated
			matched = append(matched, p)
		}
	}
	return ignored, matched
}

var defaultPatternText = []string{
	".DS_Store",
	"Thumbs.db",
	"desktop.ini",
	"*.tmp",
	"*.temp",
	"*.swp",
	"*~",
	".*~",
	"*.bak",
	"*.backup",
}

// DefaultPatterns is the built-in list used when no ignore file exists:
// OS metadata files plus temp, swap and backup files.
func DefaultPatterns() []Pattern {
	patterns := make([]Pattern, 0, len(defaultPatternText))
	for _, line := range defaultPatternText {
		patterns = append(patterns, ParsePattern(line))
	}
	return patterns
}

const template = `# gam ignore rules
#
# Syntax:
#   *.ext      any file with this extension, anywhere
#   dirname/   a whole directory
#   /file      a file at the top of the save directory only
#   **/*.ext   recursive match
#   !pattern   keep files an earlier line ignored
#
# The last matching line decides.

# Operating system files
.DS_Store
Thumbs.db
desktop.ini

# Temporary files
*.tmp
*.temp
*.swp
*~
.*~

# Logs (uncomment if needed)
# *.log
# logs/

# Backups
*.bak
*.backup

# Game specific (adjust as needed)
# screenshots/
# mods/backup/
`

// Template returns a commented starter ignore file.
func Template() string {
	return template
}

// WriteTemplate writes Template to file unless it exists and force is false.
func WriteTemplate(file string, force bool) error {
	if !force {
		if _, err := os.Stat(file); err == nil {
			return fmt.Errorf("%s: %w", file, os.ErrExist)
		}
	}
	if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
		return err
	}
	return os.WriteFile(file, []byte(Template()), 0644)
}

func normalize(candidate string) string {
	p := filepath.ToSlash(candidate)
	p = strings.TrimPrefix(p, "./")
	return strings.TrimSuffix(p, "/")
}

func globMatch(pattern, name string) bool {
	ok, err := doublestar.Match(pattern, name)
	return err == nil && ok
}
