// Package words provides the fixed word list a room draws its secret words from.
package words

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// yamlWordFile is the top-level YAML structure for word list files.
type yamlWordFile struct {
	Words []string `yaml:"words"`
}

// ErrEmptyWordList is returned when a bank would be constructed with no words.
// An empty word list is a fatal misconfiguration, not a runtime condition.
var ErrEmptyWordList = errors.New("word list is empty")

// Bank is an immutable list of candidate secret words.
// Pick is safe for concurrent use.
type Bank struct {
	words []string
}

// New creates a Bank from the given word list.
//
// Precondition: list must contain at least one non-blank word.
// Postcondition: Returns a Bank holding a private copy of the list,
// or ErrEmptyWordList.
func New(list []string) (*Bank, error) {
	cleaned := make([]string, 0, len(list))
	for _, w := range list {
		w = strings.TrimSpace(w)
		if w != "" {
			cleaned = append(cleaned, w)
		}
	}
	if len(cleaned) == 0 {
		return nil, ErrEmptyWordList
	}
	return &Bank{words: cleaned}, nil
}

// LoadFromFile reads a word list from a YAML file.
//
// Precondition: path must point to a YAML file with a top-level "words" sequence.
// Postcondition: Returns a validated Bank or a non-nil error.
func LoadFromFile(path string) (*Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading word file %s: %w", path, err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes parses a word list from YAML bytes.
//
// Postcondition: Returns a validated Bank or a non-nil error.
func LoadFromBytes(data []byte) (*Bank, error) {
	var f yamlWordFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing word file: %w", err)
	}
	return New(f.Words)
}

// Pick returns one word chosen uniformly at random.
//
// Postcondition: The returned word is an element of the bank's list.
func (b *Bank) Pick() string {
	return b.words[rand.Intn(len(b.words))]
}

// Len returns the number of words in the bank.
func (b *Bank) Len() int {
	return len(b.words)
}

// Contains reports whether w is in the bank's list.
func (b *Bank) Contains(w string) bool {
	for _, cand := range b.words {
		if cand == w {
			return true
		}
	}
	return false
}
