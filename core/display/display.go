// Package display defines the list items produced by the annotation
// grouping and search merge engines. A renderer switches on Item.Kind.
package display

import (
	"fmt"
	"time"

	"github.com/FocuswithJustin/JuniperReader/core/canon"
)

// Kind discriminates the Item union.
type Kind int

const (
	// KindHeader is a non-selectable section divider.
	KindHeader Kind = iota
	// KindRow is a single verse row.
	KindRow
)

func (k Kind) String() string {
	switch k {
	case KindHeader:
		return "header"
	case KindRow:
		return "row"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// MarshalText encodes the kind as "header" or "row".
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "header":
		*k = KindHeader
	case "row":
		*k = KindRow
	default:
		return fmt.Errorf("display: unknown item kind %q", b)
	}
	return nil
}

// AnnotationKind names the annotation a row was produced from.
type AnnotationKind int

const (
	// AnnotationNone marks a plain search hit.
	AnnotationNone AnnotationKind = iota
	AnnotationBookmark
	AnnotationHighlight
	AnnotationNote
)

var annotationKindNames = [...]string{"none", "bookmark", "highlight", "note"}

func (k AnnotationKind) String() string {
	if k >= 0 && int(k) < len(annotationKindNames) {
		return annotationKindNames[k]
	}
	return fmt.Sprintf("AnnotationKind(%d)", int(k))
}

// MarshalText encodes the kind by name.
func (k AnnotationKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText accepts any name MarshalText produces, including "none".
func (k *AnnotationKind) UnmarshalText(b []byte) error {
	for i, name := range annotationKindNames {
		if name == string(b) {
			*k = AnnotationKind(i)
			return nil
		}
	}
	return fmt.Errorf("display: unknown annotation kind %q", b)
}

// ParseAnnotationKind maps "bookmark", "highlight" or "note" to a kind.
func ParseAnnotationKind(s string) (AnnotationKind, bool) {
	for i, name := range annotationKindNames {
		if name == s && i != int(AnnotationNone) {
			return AnnotationKind(i), true
		}
	}
	return AnnotationNone, false
}

// Color is a highlight color id. ColorNone means "not highlighted".
type Color int

// ColorNone is the absence of a highlight.
const ColorNone Color = 0

// Span is a half-open byte range [Start, End) in a row's text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Header is a section divider.
type Header struct {
	Text string `json:"text"`

	// HideDivider is set when the header is also the first item and should
	// render without a leading divider.
	HideDivider bool `json:"hide_divider,omitempty"`
}

// Row is one verse in a list.
type Row struct {
	Coordinate    canon.Coordinate `json:"coordinate"`
	BookName      string           `json:"book_name"`
	BookShortName string           `json:"book_short_name"`

	// Title is the formatted reference, e.g. "Genesis 1:1".
	Title      string         `json:"title"`
	Text       string         `json:"text"`
	Annotation AnnotationKind `json:"annotation"`
	Timestamp  time.Time      `json:"timestamp,omitempty"`
	Note       string         `json:"note,omitempty"`
	Color      Color          `json:"color"`

	// Matches marks query hits in Text.
	Matches []Span `json:"matches,omitempty"`

	// NoteMatches marks query hits in Note.
	NoteMatches []Span `json:"note_matches,omitempty"`
}

// Item is either a Header or a Row, selected by Kind.
type Item struct {
	Kind   Kind    `json:"kind"`
	Header *Header `json:"header,omitempty"`
	Row    *Row    `json:"row,omitempty"`
}

// NewHeader returns a header item.
func NewHeader(text string) Item {
	return Item{Kind: KindHeader, Header: &Header{Text: text}}
}

// NewRow returns a row item.
func NewRow(r Row) Item {
	return Item{Kind: KindRow, Row: &r}
}

// Title formats a one-based reference title such as "Genesis 1:1".
func Title(bookName string, c canon.Coordinate) string {
	return fmt.Sprintf("%s %d:%d", bookName, c.Chapter+1, c.Verse+1)
}

// Headers returns the header texts of items in order.
func Headers(items []Item) []string {
	var out []string
	for _, it := range items {
		if it.Kind == KindHeader {
			out = append(out, it.Header.Text)
		}
	}
	return out
}

// Rows returns the rows of items in order.
func Rows(items []Item) []Row {
	var out []Row
	for _, it := range items {
		if it.Kind == KindRow {
			out = append(out, *it.Row)
		}
	}
	return out
}
