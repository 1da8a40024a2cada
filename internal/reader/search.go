package reader

import (
	"context"
	"time"

	"github.com/RoaringBitmap/roaring"

	"github.com/FocuswithJustin/JuniperReader/core/annotate"
	"github.com/FocuswithJustin/JuniperReader/core/display"
	"github.com/FocuswithJustin/JuniperReader/core/search"
	"github.com/FocuswithJustin/JuniperReader/internal/logging"
	"github.com/FocuswithJustin/JuniperReader/internal/textindex"
)

// Fetch gathers everything search.Merge needs for query. It satisfies
// search.Fetcher.
func (s *Service) Fetch(ctx context.Context, query string) (search.Input, error) {
	ix := s.index.Load()
	in := search.Input{
		Query:         query,
		Include:       s.cfg.Search.Include,
		Titles:        s.cfg.Search.Titles,
		Books:         s.books,
		SummaryFormat: s.cfg.Search.Summary,
		Highlight:     textindex.Highlighter(query),
	}
	if search.IsUnset(query) {
		return in, nil
	}

	bm := ix.Lookup(query)
	hits, err := ix.Hits(ctx, bm, s.cfg.Search.Limit)
	if err != nil {
		return search.Input{}, err
	}
	in.Hits = hits

	if in.Include.Notes {
		if in.Notes, err = s.matches(ctx, ix, bm, display.AnnotationNote, query); err != nil {
			return search.Input{}, err
		}
	}
	if in.Include.Bookmarks {
		if in.Bookmarks, err = s.matches(ctx, ix, bm, display.AnnotationBookmark, query); err != nil {
			return search.Input{}, err
		}
	}
	if in.Include.Highlights {
		if in.Highlights, err = s.matches(ctx, ix, bm, display.AnnotationHighlight, query); err != nil {
			return search.Input{}, err
		}
	}
	if in.Colors, err = s.store.HighlightColors(ctx); err != nil {
		return search.Input{}, err
	}
	return in, nil
}

// matches returns annotations of kind whose verse is in bm or, for notes,
// whose note text matches query. Matches come in canonical order.
func (s *Service) matches(ctx context.Context, ix *textindex.Index, bm *roaring.Bitmap, kind display.AnnotationKind, query string) ([]search.Match, error) {
	records, err := s.store.Annotations(ctx, kind, annotate.ByBook)
	if err != nil {
		return nil, err
	}
	var out []search.Match
	for _, r := range records {
		hit := ix.Contains(bm, r.Coordinate)
		if !hit && kind == display.AnnotationNote {
			hit = textindex.MatchText(r.Note, query)
		}
		if !hit {
			continue
		}
		text, _ := ix.Text(r.Coordinate)
		out = append(out, search.Match{Record: r, VerseText: text})
	}
	return out, nil
}

// Search runs one merge synchronously.
func (s *Service) Search(ctx context.Context, query string) (search.Result, error) {
	start := time.Now()
	in, err := s.Fetch(ctx, query)
	if err != nil {
		return search.Result{}, err
	}
	res, err := search.MergeContext(ctx, in)
	if err != nil {
		return search.Result{}, err
	}
	logging.DebugContext(ctx, "search merged",
		"query", query,
		"count", res.Count,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// NewSession starts a last-write-wins search session backed by Fetch.
func (s *Service) NewSession(opts ...search.SessionOption) *search.Session {
	opts = append([]search.SessionOption{search.WithDebounce(time.Duration(s.cfg.Search.Debounce))}, opts...)
	return search.NewSession(s.Fetch, opts...)
}
