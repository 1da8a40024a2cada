// Package search merges full-text hits and annotation-filtered hits into a
// single sectioned list, and runs those merges under last-write-wins
// semantics through Session.
package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/FocuswithJustin/JuniperReader/core/annotate"
	"github.com/FocuswithJustin/JuniperReader/core/canon"
	"github.com/FocuswithJustin/JuniperReader/core/display"
)

// DefaultSummaryFormat is used when Input.SummaryFormat is empty.
const DefaultSummaryFormat = "%d results"

// cancelCheckInterval is how many plain rows are merged between context checks.
const cancelCheckInterval = 256

// Hit is a verse whose text matched the query.
type Hit struct {
	Coordinate canon.Coordinate
	Text       string
}

// Match is an annotation whose verse (or note text) matched the query.
type Match struct {
	Record    annotate.Record
	VerseText string
}

// Books resolves book indices to display names.
type Books struct {
	Names      []string
	ShortNames []string
}

func (b Books) name(i int) string {
	if i >= 0 && i < len(b.Names) {
		return b.Names[i]
	}
	return ""
}

func (b Books) shortName(i int) string {
	if i >= 0 && i < len(b.ShortNames) {
		return b.ShortNames[i]
	}
	return ""
}

// Include selects which annotation sections are produced.
type Include struct {
	Notes      bool `yaml:"notes"`
	Bookmarks  bool `yaml:"bookmarks"`
	Highlights bool `yaml:"highlights"`
}

// Titles are the section headers for the annotation sections.
type Titles struct {
	Notes      string `yaml:"notes"`
	Bookmarks  string `yaml:"bookmarks"`
	Highlights string `yaml:"highlights"`
}

// Input is everything one merge needs.
type Input struct {
	Query      string
	Hits       []Hit
	Notes      []Match
	Bookmarks  []Match
	Highlights []Match
	Include    Include
	Titles     Titles
	Books      Books

	// Colors holds the highlight color of plain hits. Missing means ColorNone.
	Colors map[canon.Coordinate]display.Color

	// SummaryFormat receives the total count, e.g. "%d results".
	SummaryFormat string

	// Highlight marks the query's matches in a text. When nil, the query's
	// whitespace separated words are matched case-insensitively.
	Highlight func(text string) []display.Span
}

// Result is a merged, sectioned list.
type Result struct {
	Query string         `json:"query"`
	Items []display.Item `json:"items"`

	// Count is the number of rows across all included sections.
	Count int `json:"count"`

	// Summary is empty until a search has completed.
	Summary    string `json:"summary,omitempty"`
	HasSummary bool   `json:"has_summary"`
}

// Merge builds the sectioned list for in. An empty query yields an empty
// Result with no summary.
func Merge(in Input) Result {
	res, _ := MergeContext(context.Background(), in)
	return res
}

// MergeContext is Merge with cancellation. When ctx is done it returns
// ctx.Err() and a zero Result.
//
// Sections appear in a fixed order, each only when included and non-empty:
// notes, bookmarks, highlights, then the plain hits grouped by book.
func MergeContext(ctx context.Context, in Input) (Result, error) {
	if IsUnset(in.Query) {
		return Result{}, nil
	}

	highlight := in.Highlight
	if highlight == nil {
		terms := strings.Fields(in.Query)
		highlight = func(text string) []display.Span { return HighlightTerms(text, terms) }
	}
	var items []display.Item
	count := len(in.Hits)

	sections := []struct {
		include bool
		title   string
		matches []Match
		kind    display.AnnotationKind
	}{
		{in.Include.Notes, in.Titles.Notes, in.Notes, display.AnnotationNote},
		{in.Include.Bookmarks, in.Titles.Bookmarks, in.Bookmarks, display.AnnotationBookmark},
		{in.Include.Highlights, in.Titles.Highlights, in.Highlights, display.AnnotationHighlight},
	}
	for _, sec := range sections {
		if !sec.include || len(sec.matches) == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		items = append(items, display.NewHeader(sec.title))
		for _, m := range sec.matches {
			items = append(items, display.NewRow(annotationRow(m, sec.kind, in.Books, highlight)))
		}
		count += len(sec.matches)
	}

	prevBook := -1
	for i, h := range in.Hits {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}
		}
		book := h.Coordinate.Book
		if book != prevBook {
			items = append(items, display.NewHeader(in.Books.name(book)))
			prevBook = book
		}
		name := in.Books.name(book)
		items = append(items, display.NewRow(display.Row{
			Coordinate:    h.Coordinate,
			BookName:      name,
			BookShortName: in.Books.shortName(book),
			Title:         display.Title(name, h.Coordinate),
			Text:          h.Text,
			Annotation:    display.AnnotationNone,
			Color:         in.Colors[h.Coordinate],
			Matches:       highlight(h.Text),
		}))
	}

	if len(items) > 0 && items[0].Kind == display.KindHeader {
		items[0].Header.HideDivider = true
	}

	format := in.SummaryFormat
	if format == "" {
		format = DefaultSummaryFormat
	}
	return Result{
		Query:      in.Query,
		Items:      items,
		Count:      count,
		Summary:    fmt.Sprintf(format, count),
		HasSummary: true,
	}, nil
}

func annotationRow(m Match, kind display.AnnotationKind, books Books, highlight func(string) []display.Span) display.Row {
	r := m.Record
	name := books.name(r.Coordinate.Book)
	row := display.Row{
		Coordinate:    r.Coordinate,
		BookName:      name,
		BookShortName: books.shortName(r.Coordinate.Book),
		Title:         display.Title(name, r.Coordinate),
		Text:          m.VerseText,
		Annotation:    kind,
		Timestamp:     r.Timestamp,
		Color:         display.ColorNone,
		Matches:       highlight(m.VerseText),
	}
	switch kind {
	case display.AnnotationNote:
		row.Note = r.Note
		row.NoteMatches = highlight(r.Note)
	case display.AnnotationHighlight:
		row.Color = r.Color
	}
	return row
}

// IsUnset reports whether query is empty or blank, the state before any
// search has been entered.
func IsUnset(query string) bool {
	return strings.TrimSpace(query) == ""
}
