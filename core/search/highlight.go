package search

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/FocuswithJustin/JuniperReader/core/display"
)

// HighlightTerms returns the byte spans of text matching any of terms,
// compared case-insensitively. Overlapping spans are merged and the result
// is sorted.
func HighlightTerms(text string, terms []string) []display.Span {
	if text == "" || len(terms) == 0 {
		return nil
	}

	var spans []display.Span
	for _, term := range terms {
		n := utf8.RuneCountInString(term)
		if n == 0 {
			continue
		}
		for start := 0; start < len(text); {
			end := advanceRunes(text, start, n)
			if end < 0 {
				break
			}
			if strings.EqualFold(text[start:end], term) {
				spans = append(spans, display.Span{Start: start, End: end})
			}
			_, size := utf8.DecodeRuneInString(text[start:])
			start += size
		}
	}
	return mergeSpans(spans)
}

// advanceRunes returns the byte offset n runes after start, or -1 if text
// is too short.
func advanceRunes(text string, start, n int) int {
	i := start
	for ; n > 0; n-- {
		if i >= len(text) {
			return -1
		}
		_, size := utf8.DecodeRuneInString(text[i:])
		i += size
	}
	return i
}

func mergeSpans(spans []display.Span) []display.Span {
	if len(spans) < 2 {
		return spans
	}
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].Start != spans[j].Start {
			return spans[i].Start < spans[j].Start
		}
		return spans[i].End < spans[j].End
	})
	out := spans[:1]
	for _, s := range spans[1:] {
		last := &out[len(out)-1]
		if s.Start <= last.End {
			if s.End > last.End {
				last.End = s.End
			}
			continue
		}
		out = append(out, s)
	}
	return out
}
