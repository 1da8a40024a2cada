package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/JuniperReader/core/annotate"
	"github.com/FocuswithJustin/JuniperReader/core/canon"
	"github.com/FocuswithJustin/JuniperReader/core/display"
	"github.com/FocuswithJustin/JuniperReader/core/errors"
)

const annotationColumns = `id, kind, book, chapter, verse, timestamp, note, color`

// AddAnnotation stores r. An empty ID is replaced by a new UUID and a zero
// Timestamp by the current time. The stored record is returned.
func (s *Store) AddAnnotation(ctx context.Context, r annotate.Record) (annotate.Record, error) {
	if _, ok := display.ParseAnnotationKind(r.Kind.String()); !ok {
		return annotate.Record{}, errors.NewValidation("kind", fmt.Sprintf("unknown annotation kind %s", r.Kind))
	}
	if !r.Coordinate.IsValid() {
		return annotate.Record{}, errors.NewValidation("coordinate", "annotation needs a valid coordinate")
	}
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	if r.Kind != display.AnnotationNote {
		r.Note = ""
	}
	if r.Kind != display.AnnotationHighlight {
		r.Color = display.ColorNone
	}

	c := r.Coordinate
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO annotations (`+annotationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Kind.String(), c.Book, c.Chapter, c.Verse, r.Timestamp.UnixNano(), r.Note, int(r.Color))
	if err != nil {
		return annotate.Record{}, err
	}
	return r, nil
}

// Annotation returns the annotation with id.
func (s *Store) Annotation(ctx context.Context, id string) (annotate.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+annotationColumns+` FROM annotations WHERE id = ?`, id)
	if err != nil {
		return annotate.Record{}, err
	}
	out, err := scanAnnotations(rows)
	if err != nil {
		return annotate.Record{}, err
	}
	if len(out) == 0 {
		return annotate.Record{}, errors.NewNotFound("annotation", id)
	}
	return out[0], nil
}

// UpdateNote replaces the text of a note and bumps its timestamp.
func (s *Store) UpdateNote(ctx context.Context, id, note string) error {
	return s.update(ctx, id,
		`UPDATE annotations SET note = ?, timestamp = ? WHERE id = ? AND kind = 'note'`,
		note, time.Now().UnixNano(), id)
}

// UpdateColor changes the color of a highlight.
func (s *Store) UpdateColor(ctx context.Context, id string, color display.Color) error {
	if color == display.ColorNone {
		return errors.NewValidation("color", "highlight color must be set")
	}
	return s.update(ctx, id,
		`UPDATE annotations SET color = ?, timestamp = ? WHERE id = ? AND kind = 'highlight'`,
		int(color), time.Now().UnixNano(), id)
}

// DeleteAnnotation removes the annotation with id.
func (s *Store) DeleteAnnotation(ctx context.Context, id string) error {
	return s.update(ctx, id, `DELETE FROM annotations WHERE id = ?`, id)
}

func (s *Store) update(ctx context.Context, id, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.NewNotFound("annotation", id)
	}
	return nil
}

// Annotations lists every annotation of kind in the order mode expects:
// newest first for ByDate, canonical order for ByBook.
func (s *Store) Annotations(ctx context.Context, kind display.AnnotationKind, mode annotate.Mode) ([]annotate.Record, error) {
	var order string
	switch mode {
	case annotate.ByDate:
		order = `timestamp DESC, book, chapter, verse`
	case annotate.ByBook:
		order = `book, chapter, verse, timestamp DESC`
	default:
		return nil, errors.NewUnsupported("grouping mode", mode.String())
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+annotationColumns+` FROM annotations WHERE kind = ? ORDER BY `+order, kind.String())
	if err != nil {
		return nil, err
	}
	return scanAnnotations(rows)
}

// ChapterAnnotations lists annotations of kind inside one chapter in verse order.
func (s *Store) ChapterAnnotations(ctx context.Context, kind display.AnnotationKind, book, chapter int) ([]annotate.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+annotationColumns+` FROM annotations
		 WHERE kind = ? AND book = ? AND chapter = ?
		 ORDER BY verse, timestamp DESC`,
		kind.String(), book, chapter)
	if err != nil {
		return nil, err
	}
	return scanAnnotations(rows)
}

// HighlightColors maps each highlighted verse to its most recent color.
func (s *Store) HighlightColors(ctx context.Context) (map[canon.Coordinate]display.Color, error) {
	records, err := s.Annotations(ctx, display.AnnotationHighlight, annotate.ByDate)
	if err != nil {
		return nil, err
	}
	colors := make(map[canon.Coordinate]display.Color, len(records))
	for _, r := range records {
		if _, seen := colors[r.Coordinate]; !seen {
			colors[r.Coordinate] = r.Color
		}
	}
	return colors, nil
}

func scanAnnotations(rows *sql.Rows) ([]annotate.Record, error) {
	defer rows.Close()

	var out []annotate.Record
	for rows.Next() {
		var r annotate.Record
		var kind string
		var ts int64
		var color int
		if err := rows.Scan(&r.ID, &kind, &r.Coordinate.Book, &r.Coordinate.Chapter, &r.Coordinate.Verse,
			&ts, &r.Note, &color); err != nil {
			return nil, err
		}
		k, ok := display.ParseAnnotationKind(kind)
		if !ok {
			return nil, errors.NewValidation("kind", fmt.Sprintf("stored annotation %s has kind %q", r.ID, kind))
		}
		r.Kind = k
		r.Timestamp = time.Unix(0, ts)
		r.Color = display.Color(color)
		out = append(out, r)
	}
	return out, rows.Err()
}
