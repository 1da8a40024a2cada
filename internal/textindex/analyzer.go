// Package textindex is an in-memory inverted index over verse text. Verses
// are keyed by their flat verse index so posting lists are roaring bitmaps
// and a bitmap walk yields hits in canonical order.
package textindex

import (
	"strings"
	"unicode"

	snowballeng "github.com/kljensen/snowball/english"
	"golang.org/x/text/cases"

	"github.com/FocuswithJustin/JuniperReader/core/display"
)

// Terms splits text into folded, stemmed tokens. Stopwords are kept so that
// they remain searchable on their own.
func Terms(text string) []string {
	return analyze(text, false)
}

// QueryTerms analyzes a query. Stopwords are dropped unless the query has
// nothing else.
func QueryTerms(query string) []string {
	terms := analyze(query, true)
	if len(terms) == 0 {
		terms = analyze(query, false)
	}
	return dedupe(terms)
}

func analyze(text string, dropStopwords bool) []string {
	fold := cases.Fold()
	tokens := strings.FieldsFunc(text, isSeparator)
	out := tokens[:0]
	for _, tok := range tokens {
		tok = fold.String(tok)
		if dropStopwords && isStopword(tok) {
			continue
		}
		out = append(out, snowballeng.Stem(tok, true))
	}
	return out
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsNumber(r)
}

// Highlighter returns a function marking the tokens of a text whose
// analyzed form is one of query's terms, so "created" is marked for the
// query "create". Spans are byte offsets in text order.
func Highlighter(query string) func(text string) []display.Span {
	want := make(map[string]struct{})
	for _, t := range QueryTerms(query) {
		want[t] = struct{}{}
	}
	fold := cases.Fold()
	return func(text string) []display.Span {
		if len(want) == 0 {
			return nil
		}
		var spans []display.Span
		start := -1
		mark := func(end int) {
			term := snowballeng.Stem(fold.String(text[start:end]), true)
			if _, ok := want[term]; ok {
				spans = append(spans, display.Span{Start: start, End: end})
			}
		}
		for i, r := range text {
			if isSeparator(r) {
				if start >= 0 {
					mark(i)
					start = -1
				}
				continue
			}
			if start < 0 {
				start = i
			}
		}
		if start >= 0 {
			mark(len(text))
		}
		return spans
	}
}

func dedupe(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := terms[:0]
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func isStopword(token string) bool {
	_, ok := stopwords[token]
	return ok
}

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"but": {}, "by": {}, "for": {}, "from": {}, "he": {}, "her": {}, "his": {},
	"i": {}, "in": {}, "into": {}, "is": {}, "it": {}, "me": {}, "my": {},
	"not": {}, "of": {}, "on": {}, "or": {}, "so": {}, "that": {}, "the": {},
	"their": {}, "them": {}, "then": {}, "there": {}, "they": {}, "this": {},
	"to": {}, "unto": {}, "was": {}, "we": {}, "were": {}, "which": {},
	"with": {}, "ye": {}, "you": {},
}
