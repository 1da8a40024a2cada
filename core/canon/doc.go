// Package canon describes the hierarchical structure of a scripture canon
// (books, chapters, verses) and the transforms between a (book, chapter)
// pair and a flat, sequential position used for paging.
//
// A Layout is an immutable value. Build one with NewLayout, or use KJV for
// the standard 66-book table, and pass it to every component that needs
// position math. All indices are zero-based.
//
// The central property is the inverse law:
//
//	b, c, _ := l.Unflatten(p)   // for every 0 <= p < l.TotalChapterCount()
//	q, _ := l.Flatten(b, c)     // q == p
//
// Out-of-range inputs return a *errors.RangeError; nothing is clamped.
package canon
