package canon

import (
	"github.com/FocuswithJustin/JuniperReader/core/errors"
)

// Book describes one book of a canon.
type Book struct {
	OSIS      string // OSIS book ID (e.g., "Gen", "1John")
	Name      string // Display name (e.g., "Genesis")
	ShortName string // Abbreviated display name
	Verses    []int  // Verse counts per chapter
}

// ChapterCount returns the number of chapters in the book.
func (b Book) ChapterCount() int {
	return len(b.Verses)
}

// Layout is the static chapter/verse table of a canon.
type Layout struct {
	books         []Book
	totalChapters int
	totalVerses   int
}

// NewLayout validates books and returns a Layout owning a private copy.
// Every book must have at least one chapter and every chapter at least one verse.
func NewLayout(books []Book) (*Layout, error) {
	if len(books) == 0 {
		return nil, errors.NewValidation("books", "layout needs at least one book")
	}

	l := &Layout{books: make([]Book, len(books))}
	for i, b := range books {
		if len(b.Verses) == 0 {
			return nil, errors.Wrapf(errors.NewValidation("verses", "book has no chapters"), "book %d (%s)", i, b.OSIS)
		}
		verses := make([]int, len(b.Verses))
		for c, n := range b.Verses {
			if n <= 0 {
				return nil, errors.Wrapf(errors.NewValidation("verses", "chapter has no verses"), "book %d (%s) chapter %d", i, b.OSIS, c)
			}
			verses[c] = n
			l.totalVerses += n
		}
		b.Verses = verses
		l.books[i] = b
		l.totalChapters += len(verses)
	}
	return l, nil
}

// BookCount returns the number of books.
func (l *Layout) BookCount() int {
	return len(l.books)
}

// TotalChapterCount returns the number of chapters across all books.
func (l *Layout) TotalChapterCount() int {
	return l.totalChapters
}

// TotalVerseCount returns the number of verses across all books.
func (l *Layout) TotalVerseCount() int {
	return l.totalVerses
}

// Book returns the book at index.
func (l *Layout) Book(book int) (Book, error) {
	if err := l.checkBook(book); err != nil {
		return Book{}, err
	}
	return l.books[book], nil
}

// BookIndex returns the index of the book with the given OSIS ID, or -1.
func (l *Layout) BookIndex(osis string) int {
	for i, b := range l.books {
		if b.OSIS == osis {
			return i
		}
	}
	return -1
}

// ChapterCount returns the number of chapters in book.
func (l *Layout) ChapterCount(book int) (int, error) {
	if err := l.checkBook(book); err != nil {
		return 0, err
	}
	return len(l.books[book].Verses), nil
}

// VerseCount returns the number of verses in a chapter.
func (l *Layout) VerseCount(book, chapter int) (int, error) {
	if err := l.checkChapter(book, chapter); err != nil {
		return 0, err
	}
	return l.books[book].Verses[chapter], nil
}

// Names returns the display names of all books in order.
func (l *Layout) Names() []string {
	names := make([]string, len(l.books))
	for i, b := range l.books {
		names[i] = b.Name
	}
	return names
}

// ShortNames returns the abbreviated names of all books in order.
func (l *Layout) ShortNames() []string {
	names := make([]string, len(l.books))
	for i, b := range l.books {
		names[i] = b.ShortName
	}
	return names
}

// Validate checks that c addresses an existing verse.
func (l *Layout) Validate(c Coordinate) error {
	if err := l.checkChapter(c.Book, c.Chapter); err != nil {
		return err
	}
	if n := l.books[c.Book].Verses[c.Chapter]; c.Verse < 0 || c.Verse >= n {
		return errors.NewRange("verse", c.Verse, 0, n)
	}
	return nil
}

// Flatten returns the flat position of (book, chapter): the chapter counts
// of all preceding books plus chapter.
func (l *Layout) Flatten(book, chapter int) (int, error) {
	if err := l.checkChapter(book, chapter); err != nil {
		return 0, err
	}
	pos := chapter
	for i := 0; i < book; i++ {
		pos += len(l.books[i].Verses)
	}
	return pos, nil
}

// Unflatten is the inverse of Flatten.
func (l *Layout) Unflatten(position int) (book, chapter int, err error) {
	if position < 0 || position >= l.totalChapters {
		return 0, 0, errors.NewRange("position", position, 0, l.totalChapters)
	}
	remaining := position
	for i, b := range l.books {
		if remaining < len(b.Verses) {
			return i, remaining, nil
		}
		remaining -= len(b.Verses)
	}
	// Unreachable while totalChapters matches the table.
	return 0, 0, errors.NewRange("position", position, 0, l.totalChapters)
}

// FlattenVerse returns the dense index of a verse across the whole canon.
func (l *Layout) FlattenVerse(c Coordinate) (int, error) {
	if err := l.Validate(c); err != nil {
		return 0, err
	}
	index := c.Verse
	for i := 0; i < c.Book; i++ {
		for _, n := range l.books[i].Verses {
			index += n
		}
	}
	for ch := 0; ch < c.Chapter; ch++ {
		index += l.books[c.Book].Verses[ch]
	}
	return index, nil
}

// UnflattenVerse is the inverse of FlattenVerse.
func (l *Layout) UnflattenVerse(index int) (Coordinate, error) {
	if index < 0 || index >= l.totalVerses {
		return Invalid, errors.NewRange("verse index", index, 0, l.totalVerses)
	}
	remaining := index
	for bi, b := range l.books {
		for ci, n := range b.Verses {
			if remaining < n {
				return At(bi, ci, remaining), nil
			}
			remaining -= n
		}
	}
	return Invalid, errors.NewRange("verse index", index, 0, l.totalVerses)
}

func (l *Layout) checkBook(book int) error {
	if book < 0 || book >= len(l.books) {
		return errors.NewRange("book", book, 0, len(l.books))
	}
	return nil
}

func (l *Layout) checkChapter(book, chapter int) error {
	if err := l.checkBook(book); err != nil {
		return err
	}
	if n := len(l.books[book].Verses); chapter < 0 || chapter >= n {
		return errors.NewRange("chapter", chapter, 0, n)
	}
	return nil
}
