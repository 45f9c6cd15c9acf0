package chunker

import (
	"bytes"
	"errors"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dshills/ragctx/internal/parser"
	"github.com/dshills/ragctx/pkg/types"
)

const (
	// DefaultMaxChars is the target maximum rune count per chunk
	DefaultMaxChars = 2000

	// sectionSeparator joins nested markdown headings into a section path
	sectionSeparator = " > "
)

// ErrNotText is returned for content that is not valid UTF-8 text
var ErrNotText = errors.New("content is not text")

var headingPattern = regexp.MustCompile(`^(#{1,6})\s+(.+?)\s*#*\s*$`)

var codeExtensions = map[string]bool{
	".go": true, ".py": true, ".js": true, ".ts": true, ".tsx": true, ".jsx": true,
	".rs": true, ".java": true, ".kt": true, ".rb": true, ".c": true, ".h": true,
	".cpp": true, ".cs": true, ".swift": true, ".sql": true, ".proto": true,
	".sh": true, ".yaml": true, ".yml": true, ".json": true, ".toml": true,
}

// Options configures chunk sizing
type Options struct {
	MaxChars int // <= 0 uses DefaultMaxChars
}

// Chunker splits source files into chunks along natural boundaries: markdown
// heading sections, top-level Go declarations, or blank-line paragraphs.
type Chunker struct {
	parser   *parser.Parser
	maxChars int
}

// New creates a Chunker with default options
func New() *Chunker {
	return NewWithOptions(Options{})
}

// NewWithOptions creates a Chunker
func NewWithOptions(opts Options) *Chunker {
	if opts.MaxChars <= 0 {
		opts.MaxChars = DefaultMaxChars
	}
	return &Chunker{parser: parser.New(), maxChars: opts.MaxChars}
}

// DetectSourceType maps a file extension to its source type
func DetectSourceType(path string) types.SourceType {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case ext == ".md" || ext == ".mdx" || ext == ".markdown":
		return types.SourceMarkdown
	case codeExtensions[ext]:
		return types.SourceCode
	default:
		return types.SourceText
	}
}

// section is a piece of a file before size splitting
type section struct {
	path string
	text string
}

// ChunkFile splits content into chunks for the given collection. Whitespace-only
// content yields no chunks. Sequence numbers run across the whole file.
func (c *Chunker) ChunkFile(path, collection string, content []byte) ([]types.Chunk, error) {
	if bytes.IndexByte(content, 0) >= 0 || !utf8.Valid(content) {
		return nil, ErrNotText
	}

	text := strings.ReplaceAll(string(content), "\r\n", "\n")
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	sourceType := DetectSourceType(path)

	var sections []section
	switch {
	case sourceType == types.SourceMarkdown:
		sections = markdownSections(text)
	case strings.EqualFold(filepath.Ext(path), ".go"):
		sections = c.goSections(path, text)
	default:
		sections = []section{{text: text}}
	}

	chunks := make([]types.Chunk, 0, len(sections))
	seq := 0
	for _, s := range sections {
		for _, piece := range splitText(s.text, c.maxChars) {
			chunks = append(chunks, types.NewChunk(collection, path, sourceType, s.path, seq, piece))
			seq++
		}
	}
	return chunks, nil
}

// markdownSections splits on ATX headings outside fenced code blocks. Each
// section path is the trail of enclosing headings.
func markdownSections(text string) []section {
	type heading struct {
		level int
		title string
	}

	var (
		sections []section
		trail    []heading
		current  strings.Builder
		inFence  bool
		fence    string
	)

	sectionPath := func() string {
		titles := make([]string, len(trail))
		for i, h := range trail {
			titles[i] = h.title
		}
		return strings.Join(titles, sectionSeparator)
	}
	flush := func() {
		if strings.TrimSpace(current.String()) != "" {
			sections = append(sections, section{path: sectionPath(), text: current.String()})
		}
		current.Reset()
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			marker := trimmed[:3]
			switch {
			case !inFence:
				inFence, fence = true, marker
			case marker == fence:
				inFence = false
			}
		}

		if !inFence {
			if m := headingPattern.FindStringSubmatch(line); m != nil {
				flush()
				level := len(m[1])
				for len(trail) > 0 && trail[len(trail)-1].level >= level {
					trail = trail[:len(trail)-1]
				}
				trail = append(trail, heading{level: level, title: m[2]})
			}
		}

		current.WriteString(line)
		current.WriteByte('\n')
	}
	flush()
	return sections
}

// goSections cuts a Go file along top-level declarations. Files without any
// declaration, including ones that fail to parse entirely, become one section.
func (c *Chunker) goSections(path, text string) []section {
	file := c.parser.ParseSource(path, []byte(text))
	if len(file.Decls) == 0 {
		return []section{{text: text}}
	}

	lines := strings.Split(text, "\n")
	sections := make([]section, 0, len(file.Decls))
	for _, d := range file.Decls {
		if d.StartLine <= 0 || d.StartLine > len(lines) {
			continue
		}
		end := d.EndLine
		if end > len(lines) {
			end = len(lines)
		}
		sections = append(sections, section{
			path: d.QualifiedName(),
			text: strings.Join(lines[d.StartLine-1:end], "\n"),
		})
	}
	return sections
}

// splitText breaks text into trimmed pieces of at most maxChars runes,
// preferring blank-line paragraph boundaries, then line boundaries.
func splitText(text string, maxChars int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if utf8.RuneCountInString(text) <= maxChars {
		return []string{text}
	}

	var (
		pieces []string
		buf    strings.Builder
		size   int
	)
	emit := func() {
		if s := strings.TrimSpace(buf.String()); s != "" {
			pieces = append(pieces, s)
		}
		buf.Reset()
		size = 0
	}
	add := func(part, sep string) {
		n := utf8.RuneCountInString(part)
		if size > 0 && size+len(sep)+n > maxChars {
			emit()
		}
		if size > 0 {
			buf.WriteString(sep)
			size += len(sep)
		}
		buf.WriteString(part)
		size += n
	}

	for _, para := range strings.Split(text, "\n\n") {
		if utf8.RuneCountInString(para) <= maxChars {
			add(para, "\n\n")
			continue
		}
		for _, line := range strings.Split(para, "\n") {
			for _, part := range hardSplit(line, maxChars) {
				add(part, "\n")
			}
		}
	}
	emit()
	return pieces
}

// hardSplit cuts a line into runs of at most maxChars runes
func hardSplit(line string, maxChars int) []string {
	runes := []rune(line)
	if len(runes) <= maxChars {
		return []string{line}
	}
	parts := make([]string, 0, len(runes)/maxChars+1)
	for start := 0; start < len(runes); start += maxChars {
		end := start + maxChars
		if end > len(runes) {
			end = len(runes)
		}
		parts = append(parts, string(runes[start:end]))
	}
	return parts
}
