package textindex

import (
	"context"
	"sync"

	"github.com/RoaringBitmap/roaring"

	"github.com/FocuswithJustin/JuniperReader/core/canon"
	"github.com/FocuswithJustin/JuniperReader/core/search"
)

// Index maps analyzed terms to the verses that contain them.
// It is safe for concurrent use.
type Index struct {
	layout *canon.Layout

	mu       sync.RWMutex
	postings map[string]*roaring.Bitmap
	texts    map[uint32]string
	all      *roaring.Bitmap
}

// New returns an empty index over layout.
func New(layout *canon.Layout) *Index {
	return &Index{
		layout:   layout,
		postings: make(map[string]*roaring.Bitmap),
		texts:    make(map[uint32]string),
		all:      roaring.NewBitmap(),
	}
}

// Add indexes the text of the verse at c, replacing any earlier text.
func (ix *Index) Add(c canon.Coordinate, text string) error {
	id, err := ix.layout.FlattenVerse(c)
	if err != nil {
		return err
	}
	doc := uint32(id)

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if old, ok := ix.texts[doc]; ok {
		for _, term := range Terms(old) {
			if bm := ix.postings[term]; bm != nil {
				bm.Remove(doc)
			}
		}
	}
	for _, term := range Terms(text) {
		bm := ix.postings[term]
		if bm == nil {
			bm = roaring.NewBitmap()
			ix.postings[term] = bm
		}
		bm.Add(doc)
	}
	ix.texts[doc] = text
	ix.all.Add(doc)
	return nil
}

// Len is the number of indexed verses.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return int(ix.all.GetCardinality())
}

// Lookup returns the verses containing every term of query. The bitmap is a
// copy owned by the caller.
func (ix *Index) Lookup(query string) *roaring.Bitmap {
	terms := QueryTerms(query)
	if len(terms) == 0 {
		return roaring.NewBitmap()
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var result *roaring.Bitmap
	for _, term := range terms {
		bm := ix.postings[term]
		if bm == nil {
			return roaring.NewBitmap()
		}
		if result == nil {
			result = bm.Clone()
		} else {
			result.And(bm)
		}
		if result.IsEmpty() {
			break
		}
	}
	return result
}

// Contains reports whether the verse at c is in bm.
func (ix *Index) Contains(bm *roaring.Bitmap, c canon.Coordinate) bool {
	id, err := ix.layout.FlattenVerse(c)
	if err != nil {
		return false
	}
	return bm.Contains(uint32(id))
}

// Hits resolves up to limit verses of bm, in canonical order. A limit of
// zero or less means no limit.
func (ix *Index) Hits(ctx context.Context, bm *roaring.Bitmap, limit int) ([]search.Hit, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var hits []search.Hit
	it := bm.Iterator()
	for it.HasNext() {
		if limit > 0 && len(hits) >= limit {
			break
		}
		if len(hits)%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		doc := it.Next()
		c, err := ix.layout.UnflattenVerse(int(doc))
		if err != nil {
			return nil, err
		}
		hits = append(hits, search.Hit{Coordinate: c, Text: ix.texts[doc]})
	}
	return hits, nil
}

// Text returns the indexed text of the verse at c.
func (ix *Index) Text(c canon.Coordinate) (string, bool) {
	id, err := ix.layout.FlattenVerse(c)
	if err != nil {
		return "", false
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	text, ok := ix.texts[uint32(id)]
	return text, ok
}

// MatchText reports whether text contains every term of query.
func MatchText(text, query string) bool {
	terms := QueryTerms(query)
	if len(terms) == 0 {
		return false
	}
	have := make(map[string]struct{})
	for _, t := range Terms(text) {
		have[t] = struct{}{}
	}
	for _, t := range terms {
		if _, ok := have[t]; !ok {
			return false
		}
	}
	return true
}
