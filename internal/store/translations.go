package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/FocuswithJustin/JuniperReader/core/canon"
	"github.com/FocuswithJustin/JuniperReader/core/errors"
)

// Translation describes one imported text.
type Translation struct {
	Code       string    `json:"code"`
	Name       string    `json:"name"`
	Hash       string    `json:"hash"`
	ImportedAt time.Time `json:"imported_at"`
}

// BookInfo is the per-translation naming of a canon book.
type BookInfo struct {
	Index     int    `json:"index"`
	OSIS      string `json:"osis"`
	Name      string `json:"name"`
	ShortName string `json:"short_name"`
}

// Verse is one verse of text.
type Verse struct {
	Coordinate canon.Coordinate
	Text       string
}

// PutTranslation replaces the translation with t.Code, its books and its
// verses in one transaction.
func (s *Store) PutTranslation(ctx context.Context, t Translation, books []BookInfo, verses []Verse) error {
	if t.Code == "" {
		return errors.NewValidation("code", "translation code is required")
	}
	if t.ImportedAt.IsZero() {
		t.ImportedAt = time.Now()
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM translations WHERE code = ?`, t.Code); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO translations (code, name, hash, imported_at) VALUES (?, ?, ?, ?)`,
			t.Code, t.Name, t.Hash, t.ImportedAt.UnixNano()); err != nil {
			return err
		}

		bookStmt, err := tx.PrepareContext(ctx,
			`INSERT INTO books (translation, book, osis, name, short_name) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer bookStmt.Close()
		for _, b := range books {
			if _, err := bookStmt.ExecContext(ctx, t.Code, b.Index, b.OSIS, b.Name, b.ShortName); err != nil {
				return err
			}
		}

		verseStmt, err := tx.PrepareContext(ctx,
			`INSERT INTO verses (translation, book, chapter, verse, text) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer verseStmt.Close()
		for _, v := range verses {
			c := v.Coordinate
			if _, err := verseStmt.ExecContext(ctx, t.Code, c.Book, c.Chapter, c.Verse, v.Text); err != nil {
				return err
			}
		}
		return nil
	})
}

// Translation returns the translation with the given code.
func (s *Store) Translation(ctx context.Context, code string) (Translation, error) {
	return s.scanTranslation(s.db.QueryRowContext(ctx,
		`SELECT code, name, hash, imported_at FROM translations WHERE code = ?`, code), "translation", code)
}

// TranslationByHash returns the translation imported from content with hash.
func (s *Store) TranslationByHash(ctx context.Context, hash string) (Translation, error) {
	return s.scanTranslation(s.db.QueryRowContext(ctx,
		`SELECT code, name, hash, imported_at FROM translations WHERE hash = ?`, hash), "translation hash", hash)
}

func (s *Store) scanTranslation(row *sql.Row, what, key string) (Translation, error) {
	var t Translation
	var ts int64
	if err := row.Scan(&t.Code, &t.Name, &t.Hash, &ts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Translation{}, errors.NewNotFound(what, key)
		}
		return Translation{}, err
	}
	t.ImportedAt = time.Unix(0, ts)
	return t, nil
}

// Translations lists imported translations ordered by code.
func (s *Store) Translations(ctx context.Context) ([]Translation, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT code, name, hash, imported_at FROM translations ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Translation
	for rows.Next() {
		var t Translation
		var ts int64
		if err := rows.Scan(&t.Code, &t.Name, &t.Hash, &ts); err != nil {
			return nil, err
		}
		t.ImportedAt = time.Unix(0, ts)
		out = append(out, t)
	}
	return out, rows.Err()
}

// Books returns the book names of a translation ordered by canon index.
func (s *Store) Books(ctx context.Context, translation string) ([]BookInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT book, osis, name, short_name FROM books WHERE translation = ? ORDER BY book`, translation)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BookInfo
	for rows.Next() {
		var b BookInfo
		if err := rows.Scan(&b.Index, &b.OSIS, &b.Name, &b.ShortName); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// VerseText returns the text of one verse.
func (s *Store) VerseText(ctx context.Context, translation string, c canon.Coordinate) (string, error) {
	var text string
	err := s.db.QueryRowContext(ctx,
		`SELECT text FROM verses WHERE translation = ? AND book = ? AND chapter = ? AND verse = ?`,
		translation, c.Book, c.Chapter, c.Verse).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", errors.NewNotFound("verse", c.String())
	}
	return text, err
}

// ChapterVerses returns the verse texts of one chapter in verse order.
// Missing verses are returned as empty strings.
func (s *Store) ChapterVerses(ctx context.Context, translation string, book, chapter int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT verse, text FROM verses WHERE translation = ? AND book = ? AND chapter = ? ORDER BY verse`,
		translation, book, chapter)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var verse int
		var text string
		if err := rows.Scan(&verse, &text); err != nil {
			return nil, err
		}
		for len(out) < verse {
			out = append(out, "")
		}
		out = append(out, text)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, errors.NewNotFound("chapter", canon.At(book, chapter, 0).String())
	}
	return out, nil
}

// EachVerse calls fn for every verse of a translation in canonical order.
// Iteration stops at the first error fn returns.
func (s *Store) EachVerse(ctx context.Context, translation string, fn func(Verse) error) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT book, chapter, verse, text FROM verses WHERE translation = ? ORDER BY book, chapter, verse`,
		translation)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var v Verse
		if err := rows.Scan(&v.Coordinate.Book, &v.Coordinate.Chapter, &v.Coordinate.Verse, &v.Text); err != nil {
			return err
		}
		if err := fn(v); err != nil {
			return err
		}
	}
	return rows.Err()
}
