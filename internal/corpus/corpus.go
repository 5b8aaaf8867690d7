// Package corpus loads the searchable text: one unit per line, trimmed,
// blank lines skipped. A Corpus is read once at startup and shared
// read-only by every model index build.
package corpus

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/context-search/internal/indexer/tokenizer"
)

// maxLineBytes bounds a single corpus line.
const maxLineBytes = 1 << 20

// Corpus is an ordered, immutable sequence of non-empty lines.
type Corpus struct {
	lines []string
}

// Load reads the corpus file at path.
func Load(path string) (*Corpus, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening corpus %s: %w", path, err)
	}
	defer f.Close()
	c, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading corpus %s: %w", path, err)
	}
	return c, nil
}

// Read consumes r line by line.
func Read(r io.Reader) (*Corpus, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	var lines []string
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return &Corpus{lines: lines}, nil
}

// New builds a Corpus from in-memory lines, applying the same trimming and
// blank-line filtering as Read.
func New(lines []string) *Corpus {
	kept := make([]string, 0, len(lines))
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			kept = append(kept, l)
		}
	}
	return &Corpus{lines: kept}
}

// Lines returns the corpus lines. Callers must not modify the slice.
func (c *Corpus) Lines() []string {
	return c.lines
}

func (c *Corpus) Len() int {
	return len(c.lines)
}

// Vocabulary returns the distinct tokens of the whole corpus in sorted
// order.
func (c *Corpus) Vocabulary() []string {
	seen := make(map[string]struct{})
	for _, line := range c.lines {
		for _, tok := range tokenizer.Tokenize(line) {
			seen[tok] = struct{}{}
		}
	}
	words := make([]string, 0, len(seen))
	for w := range seen {
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}
