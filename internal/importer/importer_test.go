package importer

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/gofrs/flock"
	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/JuniperReader/core/canon"
	"github.com/FocuswithJustin/JuniperReader/core/errors"
	"github.com/FocuswithJustin/JuniperReader/internal/store"
)

const sampleOSIS = `<?xml version="1.0" encoding="UTF-8"?>
<osis xmlns="http://www.bibletechnologies.net/2003/OSIS/namespace">
<osisText osisIDWork="KJV" xml:lang="en">
<header><work osisWork="KJV"><title>King James Version</title></work></header>
<div type="book" osisID="Gen"><chapter osisID="Gen.1">
<verse osisID="Gen.1.1">In the beginning God created the heaven and the earth.</verse>
<verse osisID="Gen.1.2">And the earth was without form,
  and void.</verse>
</chapter></div>
<div type="book" osisID="Exod"><chapter osisID="Exod.1">
<p><verse sID="Exod.1.1" osisID="Exod.1.1"/>Now these are the <w>names</w>.<verse eID="Exod.1.1"/>
<verse sID="Exod.1.2" osisID="Exod.1.2"/>Reuben, Simeon.<verse eID="Exod.1.2"/></p>
</chapter></div>
<div type="book" osisID="Tob"><chapter osisID="Tob.1"><verse osisID="Tob.1.1">Tobit</verse></chapter></div>
</osisText>
</osis>`

func newTestImporter(t *testing.T) (*Importer, *store.Store, string) {
	t.Helper()
	s, err := store.OpenMemory()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	lockPath := filepath.Join(t.TempDir(), "import.lock")
	return New(s, canon.KJV(), lockPath), s, lockPath
}

func TestParse(t *testing.T) {
	doc, err := Parse(canon.KJV(), []byte(sampleOSIS))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.Code != "KJV" || doc.Name != "King James Version" {
		t.Errorf("Code/Name = %q/%q", doc.Code, doc.Name)
	}
	if doc.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", doc.Skipped)
	}
	want := []store.Verse{
		{Coordinate: canon.At(0, 0, 0), Text: "In the beginning God created the heaven and the earth."},
		{Coordinate: canon.At(0, 0, 1), Text: "And the earth was without form, and void."},
		{Coordinate: canon.At(1, 0, 0), Text: "Now these are the names."},
		{Coordinate: canon.At(1, 0, 1), Text: "Reuben, Simeon."},
	}
	if !reflect.DeepEqual(doc.Verses, want) {
		t.Errorf("Verses =\n%+v\nwant\n%+v", doc.Verses, want)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"malformed", "<osis><verse"},
		{"no verses", `<osis><osisText osisIDWork="X"></osisText></osis>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(canon.KJV(), []byte(tt.data)); !errors.Is(err, errors.ErrInvalidInput) {
				t.Errorf("error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestImportFile(t *testing.T) {
	im, s, _ := newTestImporter(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "kjv.osis.xml")
	if err := os.WriteFile(path, []byte(sampleOSIS), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := im.ImportFile(ctx, path, "")
	if err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	if res.Verses != 4 || res.Books != 2 || res.Skipped != 1 || res.Unchanged {
		t.Errorf("Result = %+v", res)
	}
	if len(res.Translation.Hash) != 64 {
		t.Errorf("hash = %q, want 64 hex chars", res.Translation.Hash)
	}

	verses, err := s.ChapterVerses(ctx, "KJV", 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(verses, []string{"Now these are the names.", "Reuben, Simeon."}) {
		t.Errorf("Exodus 1 = %q", verses)
	}
	books, err := s.Books(ctx, "KJV")
	if err != nil || len(books) != 2 || books[1].Name != "Exodus" {
		t.Errorf("Books = %+v, %v", books, err)
	}

	again, err := im.ImportFile(ctx, path, "")
	if err != nil {
		t.Fatal(err)
	}
	if !again.Unchanged || again.Translation.Code != "KJV" {
		t.Errorf("second import = %+v, want unchanged", again)
	}

	same, err := im.ImportFile(ctx, path, "KJV")
	if err != nil || !same.Unchanged {
		t.Errorf("import with matching code = %+v, %v", same, err)
	}
	if _, err := im.ImportFile(ctx, path, "AKJV"); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("import under another code error = %v, want ErrInvalidInput", err)
	}
	if _, err := s.Translation(ctx, "AKJV"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("AKJV should not be stored, got %v", err)
	}
}

func TestImportXZ(t *testing.T) {
	im, s, _ := newTestImporter(t)

	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(sampleOSIS)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	res, err := im.Import(context.Background(), buf.Bytes(), "AKJV")
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if res.Translation.Code != "AKJV" || res.Verses != 4 {
		t.Errorf("Result = %+v", res)
	}
	if _, err := s.VerseText(context.Background(), "AKJV", canon.At(0, 0, 0)); err != nil {
		t.Errorf("VerseText: %v", err)
	}
}

func TestImportNeedsCode(t *testing.T) {
	im, _, _ := newTestImporter(t)
	data := `<osis><osisText><verse osisID="Gen.1.1">x</verse></osisText></osis>`
	if _, err := im.Import(context.Background(), []byte(data), ""); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
}

func TestImportLocked(t *testing.T) {
	im, _, lockPath := newTestImporter(t)
	im.SetLockTimeout(0)

	hold := flock.New(lockPath)
	locked, err := hold.TryLock()
	if err != nil || !locked {
		t.Fatalf("TryLock = %v, %v", locked, err)
	}
	defer hold.Unlock()

	if _, err := im.Import(context.Background(), []byte(sampleOSIS), ""); err == nil {
		t.Error("expected lock contention error")
	}
}
