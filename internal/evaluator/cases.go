package evaluator

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dshills/ragctx/pkg/types"
)

var (
	// ErrInvalidCase is returned for malformed evaluation dataset lines
	ErrInvalidCase = errors.New("invalid eval case")
	// ErrNoCases is returned when a dataset holds no cases
	ErrNoCases = errors.New("no eval cases")
)

// maxLineSize bounds a single JSONL record
const maxLineSize = 1 << 20

// LoadCases reads a JSONL dataset of {id?, q, collection, mustContain} records.
// Blank lines and lines starting with // are skipped. Cases without an id get
// their line number as id. Errors name the offending line.
func LoadCases(r io.Reader) ([]types.EvalCase, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var cases []types.EvalCase
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "//") {
			continue
		}

		var c types.EvalCase
		if err := json.Unmarshal([]byte(text), &c); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidCase, line, err)
		}
		if strings.TrimSpace(c.Query) == "" {
			return nil, fmt.Errorf("%w: line %d: missing q", ErrInvalidCase, line)
		}
		if len(c.MustContainSources) == 0 {
			return nil, fmt.Errorf("%w: line %d: mustContain is empty", ErrInvalidCase, line)
		}
		if c.ID == "" {
			c.ID = strconv.Itoa(line)
		}
		cases = append(cases, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read eval cases: %w", err)
	}
	if len(cases) == 0 {
		return nil, ErrNoCases
	}
	return cases, nil
}

// Matches reports whether a selected source satisfies a label. The source is
// a path, optionally followed by #section. A label matches when its path part
// is a prefix or substring of the normalized source path, or when it equals
// the full path#section citation.
func Matches(source, label string) bool {
	label = strings.TrimSpace(label)
	if label == "" {
		return false
	}

	srcPath, srcSection, _ := strings.Cut(source, "#")
	srcPath = types.NormalizePath(srcPath)
	labelPath, labelSection, hasSection := strings.Cut(label, "#")
	labelPath = types.NormalizePath(labelPath)

	if hasSection && labelPath == srcPath && labelSection == srcSection {
		return true
	}
	if labelPath == "" {
		return false
	}
	return strings.HasPrefix(srcPath, labelPath) || strings.Contains(srcPath, labelPath)
}

// FirstHit returns the 1-based rank of the first source matching any label, or 0
func FirstHit(sources, labels []string) int {
	for i, src := range sources {
		for _, label := range labels {
			if Matches(src, label) {
				return i + 1
			}
		}
	}
	return 0
}
