// Package reader ties the store, the text index and the core engines
// together into the operations the server and CLI expose.
package reader

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/FocuswithJustin/JuniperReader/core/annotate"
	"github.com/FocuswithJustin/JuniperReader/core/canon"
	"github.com/FocuswithJustin/JuniperReader/core/display"
	"github.com/FocuswithJustin/JuniperReader/core/errors"
	"github.com/FocuswithJustin/JuniperReader/core/search"
	"github.com/FocuswithJustin/JuniperReader/internal/cache"
	"github.com/FocuswithJustin/JuniperReader/internal/config"
	"github.com/FocuswithJustin/JuniperReader/internal/logging"
	"github.com/FocuswithJustin/JuniperReader/internal/store"
	"github.com/FocuswithJustin/JuniperReader/internal/textindex"
)

// Service answers reader queries for one translation.
type Service struct {
	store       *store.Store
	layout      *canon.Layout
	index       atomic.Pointer[textindex.Index]
	cfg         *config.Config
	calendar    annotate.Calendar
	translation string
	books       search.Books
	chapters    *cache.TTLCache[int, []string]

	// now is replaced in tests.
	now func() time.Time
}

// New builds a Service and indexes every verse of cfg.Translation.
func New(ctx context.Context, st *store.Store, layout *canon.Layout, cfg *config.Config) (*Service, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	s := &Service{
		store:       st,
		layout:      layout,
		cfg:         cfg,
		calendar:    annotate.LocationCalendar{Location: loc},
		translation: cfg.Translation,
		chapters:    cache.New[int, []string](time.Duration(cfg.Pager.CacheTTL)),
		now:         time.Now,
	}
	if err := s.loadBooks(ctx); err != nil {
		return nil, err
	}
	if err := s.Reindex(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// loadBooks prefers the translation's own book names and falls back to the
// layout's.
func (s *Service) loadBooks(ctx context.Context) error {
	s.books = search.Books{Names: s.layout.Names(), ShortNames: s.layout.ShortNames()}
	infos, err := s.store.Books(ctx, s.translation)
	if err != nil {
		return err
	}
	for _, b := range infos {
		if b.Index >= 0 && b.Index < len(s.books.Names) {
			s.books.Names[b.Index] = b.Name
			s.books.ShortNames[b.Index] = b.ShortName
		}
	}
	return nil
}

// Reindex rebuilds the text index from the store and drops cached chapters.
func (s *Service) Reindex(ctx context.Context) error {
	start := time.Now()
	ix := textindex.New(s.layout)
	err := s.store.EachVerse(ctx, s.translation, func(v store.Verse) error {
		return ix.Add(v.Coordinate, v.Text)
	})
	if err != nil {
		return fmt.Errorf("indexing %s: %w", s.translation, err)
	}
	s.index.Store(ix)
	s.chapters.Invalidate()
	logging.Info("text index built",
		"translation", s.translation,
		"verses", ix.Len(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Layout returns the canon layout the service navigates.
func (s *Service) Layout() *canon.Layout {
	return s.layout
}

// Books returns the display names of every book.
func (s *Service) Books() search.Books {
	return s.books
}

// Translation returns the translation code being served.
func (s *Service) Translation() string {
	return s.translation
}

// ChapterVerses returns the verse texts of one chapter, cached.
func (s *Service) ChapterVerses(ctx context.Context, book, chapter int) ([]string, error) {
	pos, err := s.layout.Flatten(book, chapter)
	if err != nil {
		return nil, err
	}
	return s.chapters.GetOrLoad(pos, func() ([]string, error) {
		return s.store.ChapterVerses(ctx, s.translation, book, chapter)
	})
}

// ChapterTitle is the header of a chapter page, e.g. "Genesis 1".
func (s *Service) ChapterTitle(book, chapter int) string {
	name := ""
	if book >= 0 && book < len(s.books.Names) {
		name = s.books.Names[book]
	}
	return fmt.Sprintf("%s %d", name, chapter+1)
}

// ChapterAnnotations lists all annotations in one chapter, bookmarks first,
// then highlights, then notes.
func (s *Service) ChapterAnnotations(ctx context.Context, book, chapter int) ([]annotate.Record, error) {
	var out []annotate.Record
	for _, kind := range []display.AnnotationKind{display.AnnotationBookmark, display.AnnotationHighlight, display.AnnotationNote} {
		recs, err := s.store.ChapterAnnotations(ctx, kind, book, chapter)
		if err != nil {
			return nil, err
		}
		out = append(out, recs...)
	}
	return out, nil
}

// AddAnnotation validates the coordinate against the layout and stores r.
func (s *Service) AddAnnotation(ctx context.Context, r annotate.Record) (annotate.Record, error) {
	if err := s.layout.Validate(r.Coordinate); err != nil {
		return annotate.Record{}, err
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = s.now()
	}
	return s.store.AddAnnotation(ctx, r)
}

// EditAnnotation changes the text of a note or the color of a highlight.
// A nil field is left as it is; at least one must be set.
func (s *Service) EditAnnotation(ctx context.Context, id string, note *string, color *display.Color) (annotate.Record, error) {
	if note == nil && color == nil {
		return annotate.Record{}, errors.NewValidation("annotation", "nothing to change")
	}
	rec, err := s.store.Annotation(ctx, id)
	if err != nil {
		return annotate.Record{}, err
	}
	if note != nil {
		if rec.Kind != display.AnnotationNote {
			return annotate.Record{}, errors.NewValidation("note", fmt.Sprintf("a %s has no note text", rec.Kind))
		}
		if err := s.store.UpdateNote(ctx, id, *note); err != nil {
			return annotate.Record{}, err
		}
	}
	if color != nil {
		if rec.Kind != display.AnnotationHighlight {
			return annotate.Record{}, errors.NewValidation("color", fmt.Sprintf("a %s has no color", rec.Kind))
		}
		if err := s.store.UpdateColor(ctx, id, *color); err != nil {
			return annotate.Record{}, err
		}
	}
	return s.store.Annotation(ctx, id)
}

// DeleteAnnotation removes an annotation by id.
func (s *Service) DeleteAnnotation(ctx context.Context, id string) error {
	return s.store.DeleteAnnotation(ctx, id)
}

// Annotated lists one kind of annotation grouped by mode.
func (s *Service) Annotated(ctx context.Context, kind display.AnnotationKind, mode annotate.Mode) ([]display.Item, error) {
	records, err := s.store.Annotations(ctx, kind, mode)
	if err != nil {
		return nil, err
	}
	entries := make([]annotate.Entry, 0, len(records))
	for _, r := range records {
		entries = append(entries, s.entry(r))
	}
	if err := annotate.CheckSorted(entries, mode); err != nil {
		return nil, fmt.Errorf("store returned %s annotations out of order: %w", kind, err)
	}
	return annotate.Group(entries, annotate.Options{
		Mode:        mode,
		Placeholder: s.cfg.Locale.NoResults,
		Now:         s.now(),
		Locale:      s.cfg.Locale.Locale,
		Calendar:    s.calendar,
	})
}

func (s *Service) entry(r annotate.Record) annotate.Entry {
	text, _ := s.index.Load().Text(r.Coordinate)
	e := annotate.Entry{Record: r, VerseText: text}
	if b := r.Coordinate.Book; b >= 0 && b < len(s.books.Names) {
		e.BookName = s.books.Names[b]
		e.BookShortName = s.books.ShortNames[b]
	}
	return e
}
