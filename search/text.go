package search

import (
	"strings"
	"unicode"
)

// stopWords are ignored when matching query words against record text.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"but": {}, "by": {}, "do": {}, "for": {}, "from": {}, "have": {}, "in": {},
	"is": {}, "it": {}, "not": {}, "of": {}, "on": {}, "that": {}, "the": {},
	"this": {}, "to": {}, "was": {}, "with": {}, "you": {},
}

// tokenize lower-cases text and splits it on anything that is not a letter
// or digit, dropping stop words.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	words := fields[:0]
	for _, field := range fields {
		if _, stop := stopWords[field]; !stop {
			words = append(words, field)
		}
	}
	return words
}

// containsAllQueryWords reports whether every non-stop word of query occurs
// in document. A query made only of stop words never matches.
func containsAllQueryWords(document, query string) bool {
	queryWords := tokenize(query)
	if len(queryWords) == 0 {
		return false
	}

	present := make(map[string]struct{})
	for _, word := range tokenize(document) {
		present[word] = struct{}{}
	}
	for _, word := range queryWords {
		if _, ok := present[word]; !ok {
			return false
		}
	}
	return true
}
