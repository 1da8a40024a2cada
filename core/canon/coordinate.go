package canon

import "fmt"

// Coordinate identifies a single verse. All fields are zero-based.
type Coordinate struct {
	Book    int `json:"book"`
	Chapter int `json:"chapter"`
	Verse   int `json:"verse"`
}

// Invalid is the "no selection" coordinate.
var Invalid = Coordinate{Book: -1, Chapter: -1, Verse: -1}

// At returns the coordinate for book, chapter and verse.
func At(book, chapter, verse int) Coordinate {
	return Coordinate{Book: book, Chapter: chapter, Verse: verse}
}

// IsValid reports whether every field is non-negative. It does not check
// the coordinate against a layout; use Layout.Validate for that.
func (c Coordinate) IsValid() bool {
	return c.Book >= 0 && c.Chapter >= 0 && c.Verse >= 0
}

// Less reports whether c sorts before other.
func (c Coordinate) Less(other Coordinate) bool {
	return Compare(c, other) < 0
}

// String returns the zero-based "book:chapter:verse" form.
func (c Coordinate) String() string {
	if !c.IsValid() {
		return "invalid"
	}
	return fmt.Sprintf("%d:%d:%d", c.Book, c.Chapter, c.Verse)
}

// Compare orders coordinates lexicographically on (book, chapter, verse).
// It returns -1, 0 or +1.
func Compare(a, b Coordinate) int {
	switch {
	case a.Book != b.Book:
		return sign(a.Book - b.Book)
	case a.Chapter != b.Chapter:
		return sign(a.Chapter - b.Chapter)
	default:
		return sign(a.Verse - b.Verse)
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}
