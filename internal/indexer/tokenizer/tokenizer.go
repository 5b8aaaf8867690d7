// Package tokenizer splits text into the lowercase alphabetic tokens that
// embedding lookups operate on. Tokens containing any digit, punctuation or
// symbol are dropped whole rather than stripped, so "don't" and "mp3" never
// reach the vocabulary.
package tokenizer

import (
	"strings"
	"unicode"
)

// Tokenize splits text on whitespace and returns the lowercased tokens made
// up entirely of letters, in input order. Duplicates are preserved.
func Tokenize(text string) []string {
	words := strings.Fields(text)
	tokens := make([]string, 0, len(words))
	for _, word := range words {
		if !isAlpha(word) {
			continue
		}
		tokens = append(tokens, strings.ToLower(word))
	}
	return tokens
}

func isAlpha(word string) bool {
	if word == "" {
		return false
	}
	for _, r := range word {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
