// Package annotate groups annotated verses into a sectioned display list,
// either by calendar day (ByDate) or by book (ByBook).
//
// The input must already be sorted by the mode's key: by timestamp for
// ByDate, by coordinate for ByBook. Group never reorders; unsorted input
// produces fragmented sections rather than an error. CheckSorted exists for
// tests and debug builds that want to verify the storage ordering.
package annotate

import (
	"fmt"
	"time"

	"github.com/FocuswithJustin/JuniperReader/core/canon"
	"github.com/FocuswithJustin/JuniperReader/core/display"
	"github.com/FocuswithJustin/JuniperReader/core/errors"
)

// Mode selects the grouping key.
type Mode int

const (
	// ByDate inserts a header whenever the calendar day changes.
	ByDate Mode = iota
	// ByBook inserts a header whenever the book changes.
	ByBook
)

func (m Mode) String() string {
	switch m {
	case ByDate:
		return "date"
	case ByBook:
		return "book"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode maps "date" or "book" to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "date":
		return ByDate, nil
	case "book":
		return ByBook, nil
	}
	return 0, errors.NewUnsupported("grouping mode", fmt.Sprintf("%q", s))
}

// Record is one stored annotation. It is read-only input.
type Record struct {
	ID         string                 `json:"id"`
	Kind       display.AnnotationKind `json:"kind"`
	Coordinate canon.Coordinate       `json:"coordinate"`
	Timestamp  time.Time              `json:"timestamp"`
	Note       string                 `json:"note,omitempty"`
	Color      display.Color          `json:"color,omitempty"`
}

// Entry pairs a record with the text and book names needed to display it.
type Entry struct {
	Record        Record
	VerseText     string
	BookName      string
	BookShortName string
}

// Options controls Group.
type Options struct {
	Mode Mode

	// Placeholder is the single header returned for an empty list.
	Placeholder string

	// Now decides whether a date header needs a year suffix.
	Now time.Time

	// Locale supplies month names and date templates for ByDate.
	Locale Locale

	// Calendar decomposes timestamps; nil means UTC.
	Calendar Calendar
}

// Group converts entries into display items.
//
// An empty input yields exactly one header carrying Placeholder. Otherwise
// each entry yields one row, preceded by a header whenever its group key
// differs from the previous entry's.
func Group(entries []Entry, opts Options) ([]display.Item, error) {
	if opts.Mode != ByDate && opts.Mode != ByBook {
		return nil, errors.NewUnsupported("grouping mode", opts.Mode.String())
	}
	if opts.Mode == ByDate {
		if err := opts.Locale.Validate(); err != nil {
			return nil, err
		}
	}

	if len(entries) == 0 {
		return []display.Item{placeholder(opts.Placeholder)}, nil
	}

	var items []display.Item
	switch opts.Mode {
	case ByBook:
		items = groupByBook(entries)
	case ByDate:
		items = groupByDate(entries, opts)
	}
	if items[0].Kind == display.KindHeader {
		items[0].Header.HideDivider = true
	}
	return items, nil
}

func placeholder(text string) display.Item {
	item := display.NewHeader(text)
	item.Header.HideDivider = true
	return item
}

func groupByBook(entries []Entry) []display.Item {
	items := make([]display.Item, 0, len(entries)+len(entries)/4+1)
	prevBook := -1
	for _, e := range entries {
		if book := e.Record.Coordinate.Book; book != prevBook {
			items = append(items, display.NewHeader(e.BookName))
			prevBook = book
		}
		items = append(items, display.NewRow(row(e)))
	}
	return items
}

func groupByDate(entries []Entry, opts Options) []display.Item {
	cal := opts.Calendar
	if cal == nil {
		cal = UTC
	}
	nowYear := cal.Date(opts.Now).Year

	items := make([]display.Item, 0, len(entries)*2)
	prevYear, prevDay := -1, -1
	for _, e := range entries {
		d := cal.Date(e.Record.Timestamp)
		if d.Year != prevYear || d.YearDay != prevDay {
			items = append(items, display.NewHeader(opts.Locale.FormatDate(d, nowYear)))
			prevYear, prevDay = d.Year, d.YearDay
		}
		items = append(items, display.NewRow(row(e)))
	}
	return items
}

func row(e Entry) display.Row {
	r := e.Record
	return display.Row{
		Coordinate:    r.Coordinate,
		BookName:      e.BookName,
		BookShortName: e.BookShortName,
		Title:         display.Title(e.BookName, r.Coordinate),
		Text:          e.VerseText,
		Annotation:    r.Kind,
		Timestamp:     r.Timestamp,
		Note:          r.Note,
		Color:         r.Color,
	}
}

// CheckSorted reports the first entry that breaks the ordering Group
// expects for mode: descending timestamps for ByDate, ascending
// coordinates for ByBook.
func CheckSorted(entries []Entry, mode Mode) error {
	for i := 1; i < len(entries); i++ {
		prev, cur := entries[i-1].Record, entries[i].Record
		var ok bool
		switch mode {
		case ByDate:
			ok = !cur.Timestamp.After(prev.Timestamp)
		case ByBook:
			ok = canon.Compare(prev.Coordinate, cur.Coordinate) <= 0
		default:
			return errors.NewUnsupported("grouping mode", mode.String())
		}
		if !ok {
			return &errors.ValidationError{
				Field:   "entries",
				Value:   fmt.Sprint(i),
				Message: fmt.Sprintf("entry %d is out of %s order", i, mode),
			}
		}
	}
	return nil
}
