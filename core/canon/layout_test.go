package canon

import (
	"testing"

	"github.com/FocuswithJustin/JuniperReader/core/errors"
)

func smallLayout(t *testing.T) *Layout {
	t.Helper()
	l, err := NewLayout([]Book{
		{OSIS: "A", Name: "Alpha", ShortName: "Al", Verses: []int{3, 2}},
		{OSIS: "B", Name: "Beta", ShortName: "Be", Verses: []int{1}},
		{OSIS: "C", Name: "Gamma", ShortName: "Ga", Verses: []int{4, 4, 1}},
	})
	if err != nil {
		t.Fatalf("NewLayout failed: %v", err)
	}
	return l
}

func TestKJVTotals(t *testing.T) {
	l := KJV()
	if got := l.BookCount(); got != 66 {
		t.Errorf("BookCount() = %d, want 66", got)
	}
	if got := l.TotalChapterCount(); got != 1189 {
		t.Errorf("TotalChapterCount() = %d, want 1189", got)
	}
	if got := l.TotalVerseCount(); got != 31102 {
		t.Errorf("TotalVerseCount() = %d, want 31102", got)
	}
	if KJV() != l {
		t.Error("KJV() should return the shared layout")
	}
}

func TestFlatten(t *testing.T) {
	l := KJV()
	tests := []struct {
		name    string
		book    int
		chapter int
		want    int
	}{
		{"Genesis 1", 0, 0, 0},
		{"Genesis 50", 0, 49, 49},
		{"Exodus 1", 1, 0, 50},
		{"Matthew 1", 39, 0, 929},
		{"Revelation 22", 65, 21, 1188},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := l.Flatten(tt.book, tt.chapter)
			if err != nil {
				t.Fatalf("Flatten(%d, %d) error: %v", tt.book, tt.chapter, err)
			}
			if got != tt.want {
				t.Errorf("Flatten(%d, %d) = %d, want %d", tt.book, tt.chapter, got, tt.want)
			}
		})
	}
}

func TestFlattenOutOfRange(t *testing.T) {
	l := KJV()
	tests := []struct {
		name    string
		book    int
		chapter int
	}{
		{"negative book", -1, 0},
		{"book past end", 66, 0},
		{"negative chapter", 0, -1},
		{"chapter past end", 0, 50},
		{"obadiah chapter 2", 30, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.Flatten(tt.book, tt.chapter)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, errors.ErrOutOfRange) {
				t.Errorf("error %v should match ErrOutOfRange", err)
			}
			if !errors.Is(err, errors.ErrInvalidInput) {
				t.Errorf("error %v should match ErrInvalidInput", err)
			}
		})
	}
}

func TestUnflattenOutOfRange(t *testing.T) {
	l := KJV()
	for _, pos := range []int{-1, 1189, 5000} {
		if _, _, err := l.Unflatten(pos); !errors.Is(err, errors.ErrOutOfRange) {
			t.Errorf("Unflatten(%d) error = %v, want ErrOutOfRange", pos, err)
		}
	}
}

func TestFlattenUnflattenInverse(t *testing.T) {
	for _, l := range []*Layout{KJV(), smallLayout(t)} {
		for b := 0; b < l.BookCount(); b++ {
			n, _ := l.ChapterCount(b)
			for c := 0; c < n; c++ {
				pos, err := l.Flatten(b, c)
				if err != nil {
					t.Fatalf("Flatten(%d, %d): %v", b, c, err)
				}
				gb, gc, err := l.Unflatten(pos)
				if err != nil {
					t.Fatalf("Unflatten(%d): %v", pos, err)
				}
				if gb != b || gc != c {
					t.Fatalf("Unflatten(Flatten(%d, %d)) = (%d, %d)", b, c, gb, gc)
				}
			}
		}

		for pos := 0; pos < l.TotalChapterCount(); pos++ {
			b, c, err := l.Unflatten(pos)
			if err != nil {
				t.Fatalf("Unflatten(%d): %v", pos, err)
			}
			got, err := l.Flatten(b, c)
			if err != nil {
				t.Fatalf("Flatten(%d, %d): %v", b, c, err)
			}
			if got != pos {
				t.Fatalf("Flatten(Unflatten(%d)) = %d", pos, got)
			}
		}
	}
}

func TestSmallLayoutPositions(t *testing.T) {
	l := smallLayout(t)
	want := [][2]int{{0, 0}, {0, 1}, {1, 0}, {2, 0}, {2, 1}, {2, 2}}
	if l.TotalChapterCount() != len(want) {
		t.Fatalf("TotalChapterCount() = %d, want %d", l.TotalChapterCount(), len(want))
	}
	for pos, bc := range want {
		b, c, err := l.Unflatten(pos)
		if err != nil {
			t.Fatalf("Unflatten(%d): %v", pos, err)
		}
		if b != bc[0] || c != bc[1] {
			t.Errorf("Unflatten(%d) = (%d, %d), want (%d, %d)", pos, b, c, bc[0], bc[1])
		}
	}
}

func TestVerseInverse(t *testing.T) {
	l := KJV()
	for i := 0; i < l.TotalVerseCount(); i++ {
		c, err := l.UnflattenVerse(i)
		if err != nil {
			t.Fatalf("UnflattenVerse(%d): %v", i, err)
		}
		got, err := l.FlattenVerse(c)
		if err != nil {
			t.Fatalf("FlattenVerse(%v): %v", c, err)
		}
		if got != i {
			t.Fatalf("FlattenVerse(UnflattenVerse(%d)) = %d", i, got)
		}
	}

	exod, err := l.FlattenVerse(At(1, 0, 0))
	if err != nil {
		t.Fatal(err)
	}
	if exod != 1533 {
		t.Errorf("FlattenVerse(Exod 1:1) = %d, want 1533", exod)
	}
	if _, err := l.UnflattenVerse(31102); !errors.Is(err, errors.ErrOutOfRange) {
		t.Errorf("UnflattenVerse(31102) error = %v", err)
	}
	if _, err := l.FlattenVerse(At(0, 0, 31)); !errors.Is(err, errors.ErrOutOfRange) {
		t.Errorf("FlattenVerse(Gen 1:32) error = %v", err)
	}
}

func TestNewLayoutRejectsEmpty(t *testing.T) {
	tests := []struct {
		name  string
		books []Book
	}{
		{"no books", nil},
		{"book without chapters", []Book{{OSIS: "X"}}},
		{"chapter without verses", []Book{{OSIS: "X", Verses: []int{3, 0}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewLayout(tt.books); !errors.Is(err, errors.ErrInvalidInput) {
				t.Errorf("NewLayout error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestNewLayoutCopiesInput(t *testing.T) {
	verses := []int{2, 2}
	l, err := NewLayout([]Book{{OSIS: "X", Verses: verses}})
	if err != nil {
		t.Fatal(err)
	}
	verses[0] = 99
	if n, _ := l.VerseCount(0, 0); n != 2 {
		t.Errorf("VerseCount after caller mutation = %d, want 2", n)
	}
}

func TestNames(t *testing.T) {
	l := smallLayout(t)
	names := l.Names()
	short := l.ShortNames()
	if names[2] != "Gamma" || short[2] != "Ga" {
		t.Errorf("Names()[2] = %q, ShortNames()[2] = %q", names[2], short[2])
	}
	if l.BookIndex("B") != 1 || l.BookIndex("Z") != -1 {
		t.Error("BookIndex mismatch")
	}
}
