// Package importer loads OSIS XML translations into the store.
package importer

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
	"github.com/gofrs/flock"
	"github.com/ulikunitz/xz"
	"github.com/zeebo/blake3"

	"github.com/FocuswithJustin/JuniperReader/core/canon"
	"github.com/FocuswithJustin/JuniperReader/core/errors"
	"github.com/FocuswithJustin/JuniperReader/internal/logging"
	"github.com/FocuswithJustin/JuniperReader/internal/store"
)

var (
	verseExpr = xpath.MustCompile(`//*[local-name()='verse'][@osisID or @sID]`)
	workExpr  = xpath.MustCompile(`//*[local-name()='osisText']`)
	titleExpr = xpath.MustCompile(`//*[local-name()='work']/*[local-name()='title']`)
)

var xzMagic = []byte{0xFD, '7', 'z', 'X', 'Z', 0x00}

// DefaultLockTimeout bounds how long Import waits for a concurrent import.
const DefaultLockTimeout = 30 * time.Second

// Result describes one import.
type Result struct {
	Translation store.Translation `json:"translation"`
	Verses      int               `json:"verses"`
	Books       int               `json:"books"`
	Skipped     int               `json:"skipped"`

	// Unchanged is set when identical content was already imported.
	Unchanged bool `json:"unchanged"`
}

// Importer writes parsed translations to a store. Imports are serialized
// across processes through a lock file.
type Importer struct {
	store       *store.Store
	layout      *canon.Layout
	lockPath    string
	lockTimeout time.Duration
}

// New returns an Importer. lockPath names the lock file guarding imports.
func New(s *store.Store, layout *canon.Layout, lockPath string) *Importer {
	return &Importer{
		store:       s,
		layout:      layout,
		lockPath:    lockPath,
		lockTimeout: DefaultLockTimeout,
	}
}

// SetLockTimeout changes how long Import waits for the lock.
func (im *Importer) SetLockTimeout(d time.Duration) {
	im.lockTimeout = d
}

// ImportFile imports the OSIS document at path, which may be xz-compressed.
// code overrides the translation code declared by the document. A document
// already stored under another code is rejected rather than copied.
func (im *Importer) ImportFile(ctx context.Context, path, code string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, errors.NewIO("read", path, err)
	}
	return im.Import(ctx, data, code)
}

// Import imports an OSIS document held in memory.
func (im *Importer) Import(ctx context.Context, data []byte, code string) (Result, error) {
	data, err := decompress(data)
	if err != nil {
		return Result{}, err
	}

	unlock, err := im.lock(ctx)
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	sum := blake3.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	if existing, err := im.store.TranslationByHash(ctx, hash); err == nil {
		if code != "" && code != existing.Code {
			return Result{}, &errors.ValidationError{
				Field:   "code",
				Value:   code,
				Message: fmt.Sprintf("this document is already stored as %s", existing.Code),
			}
		}
		logging.ImportEvent("unchanged", existing.Code, "hash", hash)
		return Result{Translation: existing, Unchanged: true}, nil
	} else if !errors.Is(err, errors.ErrNotFound) {
		return Result{}, err
	}

	doc, err := Parse(im.layout, data)
	if err != nil {
		return Result{}, err
	}
	if code != "" {
		doc.Code = code
	}
	if doc.Code == "" {
		return Result{}, errors.NewValidation("code", "document declares no osisIDWork; pass a translation code")
	}

	t := store.Translation{Code: doc.Code, Name: doc.Name, Hash: hash, ImportedAt: time.Now()}
	if t.Name == "" {
		t.Name = doc.Code
	}
	books := im.books(doc.Verses)

	logging.ImportEvent("started", t.Code, "verses", len(doc.Verses))
	if err := im.store.PutTranslation(ctx, t, books, doc.Verses); err != nil {
		return Result{}, errors.Wrapf(err, "storing %s", t.Code)
	}
	logging.ImportEvent("completed", t.Code, "verses", len(doc.Verses), "books", len(books), "skipped", doc.Skipped)

	return Result{
		Translation: t,
		Verses:      len(doc.Verses),
		Books:       len(books),
		Skipped:     doc.Skipped,
	}, nil
}

// books names every book present in verses, which must be sorted.
func (im *Importer) books(verses []store.Verse) []store.BookInfo {
	var out []store.BookInfo
	last := -1
	for _, v := range verses {
		if v.Coordinate.Book == last {
			continue
		}
		last = v.Coordinate.Book
		b, err := im.layout.Book(last)
		if err != nil {
			continue
		}
		out = append(out, store.BookInfo{Index: last, OSIS: b.OSIS, Name: b.Name, ShortName: b.ShortName})
	}
	return out
}

func (im *Importer) lock(ctx context.Context) (func(), error) {
	if im.lockPath == "" {
		return func() {}, nil
	}
	l := flock.New(im.lockPath)
	deadline := time.Now().Add(im.lockTimeout)
	for {
		locked, err := l.TryLock()
		if err != nil {
			return nil, errors.NewIO("lock", im.lockPath, err)
		}
		if locked {
			return func() { _ = l.Unlock() }, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("another import is in progress (lock: %s)", im.lockPath)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
}

func decompress(data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, xzMagic) {
		return data, nil
	}
	r, err := xz.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "opening xz stream")
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "decompressing xz stream")
	}
	return out, nil
}

// Document is a parsed OSIS text.
type Document struct {
	Code   string
	Name   string
	Verses []store.Verse

	// Skipped counts verses whose osisID is not in the layout.
	Skipped int
}

// Parse extracts verses from an OSIS document. Both container verses and
// sID/eID milestone pairs are understood. Verses are returned in canonical
// order; a verse that appears twice keeps its last text.
func Parse(layout *canon.Layout, data []byte) (*Document, error) {
	root, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, &errors.ValidationError{Field: "document", Message: "parsing OSIS XML", Err: err}
	}

	doc := &Document{}
	if n := xmlquery.QuerySelector(root, workExpr); n != nil {
		doc.Code = n.SelectAttr("osisIDWork")
	}
	if n := xmlquery.QuerySelector(root, titleExpr); n != nil {
		doc.Name = strings.TrimSpace(n.InnerText())
	}

	byCoord := make(map[canon.Coordinate]string)
	for _, n := range xmlquery.QuerySelectorAll(root, verseExpr) {
		if n.SelectAttr("eID") != "" {
			continue
		}
		id := n.SelectAttr("osisID")
		if id == "" {
			id = n.SelectAttr("sID")
		}
		var text string
		if n.SelectAttr("sID") != "" {
			text = milestoneText(n)
		} else {
			text = n.InnerText()
		}
		text = normalizeSpace(text)

		// osisID may list several verses; the text belongs to the first.
		ref := strings.Fields(id)
		if len(ref) == 0 {
			continue
		}
		c, err := layout.ParseRef(ref[0])
		if err != nil {
			doc.Skipped++
			continue
		}
		byCoord[c] = text
	}
	if len(byCoord) == 0 {
		return nil, errors.NewValidation("document", "no verses found")
	}

	doc.Verses = make([]store.Verse, 0, len(byCoord))
	for c, text := range byCoord {
		doc.Verses = append(doc.Verses, store.Verse{Coordinate: c, Text: text})
	}
	slices.SortFunc(doc.Verses, func(a, b store.Verse) int {
		return canon.Compare(a.Coordinate, b.Coordinate)
	})
	return doc, nil
}

// milestoneText collects the text between a verse start milestone and the
// matching end milestone among its following siblings.
func milestoneText(start *xmlquery.Node) string {
	sid := start.SelectAttr("sID")
	var sb strings.Builder
	for n := start.NextSibling; n != nil; n = n.NextSibling {
		if n.Type == xmlquery.ElementNode && n.Data == "verse" {
			if n.SelectAttr("eID") == sid || n.SelectAttr("sID") != "" {
				break
			}
		}
		sb.WriteString(n.InnerText())
	}
	return sb.String()
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
