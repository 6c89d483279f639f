package index

import (
	"regexp"
	"strings"
)

// tokenRegex matches alphanumeric sequences.
var tokenRegex = regexp.MustCompile(`[a-zA-Z0-9]+`)

// Tokenizer splits document and query text into index terms.
type Tokenizer struct {
	minLength int
	stopWords map[string]struct{}
}

// NewTokenizer creates a tokenizer. Tokens shorter than minLength and
// stop words are dropped; all tokens are lowercased.
func NewTokenizer(minLength int, stopWords []string) *Tokenizer {
	if minLength <= 0 {
		minLength = 2
	}
	return &Tokenizer{
		minLength: minLength,
		stopWords: BuildStopWordMap(stopWords),
	}
}

// Tokenize splits text into lowercased terms.
func (t *Tokenizer) Tokenize(text string) []string {
	var tokens []string
	for _, word := range tokenRegex.FindAllString(text, -1) {
		lower := strings.ToLower(word)
		if len(lower) < t.minLength {
			continue
		}
		if _, stop := t.stopWords[lower]; stop {
			continue
		}
		tokens = append(tokens, lower)
	}
	return tokens
}

// BuildStopWordMap converts a slice of stop words to a lookup map.
func BuildStopWordMap(stopWords []string) map[string]struct{} {
	m := make(map[string]struct{}, len(stopWords))
	for _, word := range stopWords {
		m[strings.ToLower(word)] = struct{}{}
	}
	return m
}

// DefaultStopWords is the default English stop word list applied
// during indexing and query tokenization.
var DefaultStopWords = []string{
	"a", "an", "and", "are", "as", "at", "be", "but", "by", "for",
	"if", "in", "into", "is", "it", "no", "not", "of", "on", "or",
	"such", "that", "the", "their", "then", "there", "these", "they",
	"this", "to", "was", "will", "with",
}
