// Command juniper-reader serves and queries a scripture reader database:
// chapter navigation, annotations and search.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/JuniperReader/core/annotate"
	"github.com/FocuswithJustin/JuniperReader/core/canon"
	"github.com/FocuswithJustin/JuniperReader/core/display"
	"github.com/FocuswithJustin/JuniperReader/core/errors"
	"github.com/FocuswithJustin/JuniperReader/internal/config"
	"github.com/FocuswithJustin/JuniperReader/internal/importer"
	"github.com/FocuswithJustin/JuniperReader/internal/logging"
	"github.com/FocuswithJustin/JuniperReader/internal/reader"
	"github.com/FocuswithJustin/JuniperReader/internal/server"
	"github.com/FocuswithJustin/JuniperReader/internal/sqlite"
	"github.com/FocuswithJustin/JuniperReader/internal/store"
)

const version = "0.1.0"

// stdout is where commands print results.
var stdout io.Writer = os.Stdout

// Globals are flags shared by every command.
type Globals struct {
	Config      string `short:"c" help:"Path to YAML config file" env:"JUNIPER_READER_CONFIG" type:"path"`
	Database    string `help:"Override the database path"`
	Translation string `help:"Override the translation code"`
	LogLevel    string `name:"log-level" help:"Override the log level (debug, info, warn, error)"`
	JSON        bool   `help:"Print results as JSON"`
}

// CLI defines the command-line interface.
type CLI struct {
	Globals

	Serve       ServeCmd         `cmd:"" help:"Start the HTTP and websocket server"`
	Import      ImportCmd        `cmd:"" help:"Import an OSIS XML translation (.xml or .xml.xz)"`
	Search      SearchCmd        `cmd:"" help:"Search verses, notes, bookmarks and highlights"`
	Annotations AnnotationsGroup `cmd:"" help:"List, add and delete annotations"`
	Nav         NavGroup         `cmd:"" help:"Chapter position arithmetic"`
	ConfigCmd   ConfigGroup      `cmd:"" name:"config" help:"Configuration file helpers"`
	Version     VersionCmd       `cmd:"" help:"Print version information"`
}

// AnnotationsGroup contains annotation operations.
type AnnotationsGroup struct {
	List   AnnotationsListCmd   `cmd:"" help:"List annotations of one kind"`
	Add    AnnotationsAddCmd    `cmd:"" help:"Add a bookmark, highlight or note"`
	Edit   AnnotationsEditCmd   `cmd:"" help:"Change a note's text or a highlight's color"`
	Delete AnnotationsDeleteCmd `cmd:"" help:"Delete an annotation by id"`
}

// NavGroup contains navigation operations.
type NavGroup struct {
	Flatten   NavFlattenCmd   `cmd:"" help:"Convert a book and chapter to a flat position"`
	Unflatten NavUnflattenCmd `cmd:"" help:"Convert a flat position to a book and chapter"`
	Parse     NavParseCmd     `cmd:"" help:"Parse an OSIS reference such as Gen.1.1"`
}

// ConfigGroup contains config file operations.
type ConfigGroup struct {
	Init ConfigInitCmd `cmd:"" help:"Write the default configuration to a file"`
}

// env is the opened state most commands need.
type env struct {
	cfg   *config.Config
	store *store.Store
}

// load reads the config file and applies flag overrides.
func (g *Globals) load() (*config.Config, error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return nil, err
	}
	if g.Database != "" {
		cfg.Database = g.Database
	}
	if g.Translation != "" {
		cfg.Translation = g.Translation
	}
	if g.LogLevel != "" {
		cfg.Log.Level = g.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	level, _ := logging.ParseLevel(cfg.Log.Level)
	format, _ := logging.ParseFormat(cfg.Log.Format)
	logging.InitLoggerTo(os.Stderr, level, format)
	return cfg, nil
}

// open opens the configured database. Read-only commands need an
// existing database and never create one.
func (g *Globals) open(readOnly bool) (*env, error) {
	cfg, err := g.load()
	if err != nil {
		return nil, err
	}
	path, err := config.ExpandPath(cfg.Database)
	if err != nil {
		return nil, err
	}
	var st *store.Store
	if readOnly {
		if _, err := os.Stat(path); err != nil {
			return nil, errors.NewNotFound("database", path)
		}
		st, err = store.OpenReadOnly(path)
	} else {
		st, err = store.Open(path)
	}
	if err != nil {
		return nil, err
	}
	logging.Debug("database opened", "path", path, "driver", sqlite.DriverType(), "read_only", readOnly)
	return &env{cfg: cfg, store: st}, nil
}

func (e *env) Close() error {
	return e.store.Close()
}

func (g *Globals) service(ctx context.Context, readOnly bool) (*env, *reader.Service, error) {
	e, err := g.open(readOnly)
	if err != nil {
		return nil, nil, err
	}
	svc, err := reader.New(ctx, e.store, canon.KJV(), e.cfg)
	if err != nil {
		e.Close()
		return nil, nil, err
	}
	return e, svc, nil
}

func (g *Globals) print(v any, text func(w io.Writer)) error {
	if g.JSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(stdout)
	return nil
}

// ServeCmd starts the server.
type ServeCmd struct {
	Listen string `help:"Override the listen address"`
}

func (c *ServeCmd) Run(g *Globals) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, svc, err := g.service(ctx, false)
	if err != nil {
		return err
	}
	defer e.Close()

	addr := e.cfg.Listen
	if c.Listen != "" {
		addr = c.Listen
	}

	pager := reader.NewPager(svc)
	go pager.Run(ctx)

	return server.New(svc, pager, e.cfg.AllowedOrigins).ListenAndServe(ctx, addr)
}

// ImportCmd imports a translation.
type ImportCmd struct {
	Path string `arg:"" help:"OSIS file to import" type:"existingfile"`
	Code string `help:"Translation code to store the text under. A document already stored under another code is rejected."`
}

func (c *ImportCmd) Run(g *Globals) error {
	e, err := g.open(false)
	if err != nil {
		return err
	}
	defer e.Close()

	dbPath, err := config.ExpandPath(e.cfg.Database)
	if err != nil {
		return err
	}
	im := importer.New(e.store, canon.KJV(), dbPath+".lock")
	res, err := im.ImportFile(context.Background(), c.Path, c.Code)
	if err != nil {
		return err
	}
	return g.print(res, func(w io.Writer) {
		if res.Unchanged {
			fmt.Fprintf(w, "%s is already up to date\n", res.Translation.Code)
			return
		}
		fmt.Fprintf(w, "imported %s: %d verses in %d books", res.Translation.Code, res.Verses, res.Books)
		if res.Skipped > 0 {
			fmt.Fprintf(w, " (%d skipped)", res.Skipped)
		}
		fmt.Fprintln(w)
	})
}

// SearchCmd runs one search.
type SearchCmd struct {
	Query []string `arg:"" help:"Search terms"`
}

func (c *SearchCmd) Run(g *Globals) error {
	ctx := context.Background()
	e, svc, err := g.service(ctx, true)
	if err != nil {
		return err
	}
	defer e.Close()

	res, err := svc.Search(ctx, strings.Join(c.Query, " "))
	if err != nil {
		return err
	}
	return g.print(res, func(w io.Writer) {
		printItems(w, res.Items)
		if res.HasSummary {
			fmt.Fprintln(w, res.Summary)
		}
	})
}

// AnnotationsListCmd lists annotations.
type AnnotationsListCmd struct {
	Kind string `arg:"" help:"bookmark, highlight or note" enum:"bookmark,highlight,note"`
	Sort string `help:"Group by date or book" enum:"date,book" default:"date"`
}

func (c *AnnotationsListCmd) Run(g *Globals) error {
	ctx := context.Background()
	e, svc, err := g.service(ctx, true)
	if err != nil {
		return err
	}
	defer e.Close()

	kind, _ := display.ParseAnnotationKind(c.Kind)
	mode, err := annotate.ParseMode(c.Sort)
	if err != nil {
		return err
	}
	items, err := svc.Annotated(ctx, kind, mode)
	if err != nil {
		return err
	}
	return g.print(items, func(w io.Writer) { printItems(w, items) })
}

// AnnotationsAddCmd adds an annotation.
type AnnotationsAddCmd struct {
	Kind  string `arg:"" help:"bookmark, highlight or note" enum:"bookmark,highlight,note"`
	Ref   string `arg:"" help:"OSIS reference, e.g. Gen.1.1"`
	Note  string `help:"Note text (notes only)"`
	Color int    `help:"Highlight color id (highlights only)" default:"1"`
}

func (c *AnnotationsAddCmd) Run(g *Globals) error {
	ctx := context.Background()
	e, svc, err := g.service(ctx, false)
	if err != nil {
		return err
	}
	defer e.Close()

	kind, _ := display.ParseAnnotationKind(c.Kind)
	coord, err := svc.Layout().ParseRef(c.Ref)
	if err != nil {
		return err
	}
	rec, err := svc.AddAnnotation(ctx, annotate.Record{
		Kind:       kind,
		Coordinate: coord,
		Note:       c.Note,
		Color:      display.Color(c.Color),
	})
	if err != nil {
		return err
	}
	return g.print(rec, func(w io.Writer) {
		fmt.Fprintf(w, "added %s %s\n", rec.Kind, rec.ID)
	})
}

// AnnotationsEditCmd edits a note or a highlight.
type AnnotationsEditCmd struct {
	ID    string `arg:"" help:"Annotation id"`
	Note  string `help:"New note text (notes only)"`
	Color int    `help:"New highlight color id (highlights only)"`
}

func (c *AnnotationsEditCmd) Run(g *Globals) error {
	ctx := context.Background()
	e, svc, err := g.service(ctx, false)
	if err != nil {
		return err
	}
	defer e.Close()

	var note *string
	if c.Note != "" {
		note = &c.Note
	}
	var color *display.Color
	if c.Color != 0 {
		col := display.Color(c.Color)
		color = &col
	}
	rec, err := svc.EditAnnotation(ctx, c.ID, note, color)
	if err != nil {
		return err
	}
	return g.print(rec, func(w io.Writer) {
		fmt.Fprintf(w, "edited %s %s\n", rec.Kind, rec.ID)
	})
}

// AnnotationsDeleteCmd deletes an annotation.
type AnnotationsDeleteCmd struct {
	ID string `arg:"" help:"Annotation id"`
}

func (c *AnnotationsDeleteCmd) Run(g *Globals) error {
	e, err := g.open(false)
	if err != nil {
		return err
	}
	defer e.Close()
	if err := e.store.DeleteAnnotation(context.Background(), c.ID); err != nil {
		return err
	}
	return g.print(map[string]string{"deleted": c.ID}, func(w io.Writer) {
		fmt.Fprintf(w, "deleted %s\n", c.ID)
	})
}

// NavFlattenCmd prints the flat position of a chapter.
type NavFlattenCmd struct {
	Book    string `arg:"" help:"OSIS book name (Gen) or zero-based book index"`
	Chapter int    `arg:"" help:"Zero-based chapter index"`
}

func (c *NavFlattenCmd) Run(g *Globals) error {
	layout := canon.KJV()
	book, err := bookArg(layout, c.Book)
	if err != nil {
		return err
	}
	pos, err := layout.Flatten(book, c.Chapter)
	if err != nil {
		return err
	}
	return g.print(map[string]int{"position": pos}, func(w io.Writer) {
		fmt.Fprintln(w, pos)
	})
}

// NavUnflattenCmd prints the chapter at a flat position.
type NavUnflattenCmd struct {
	Position int `arg:"" help:"Zero-based flat chapter position"`
}

func (c *NavUnflattenCmd) Run(g *Globals) error {
	layout := canon.KJV()
	book, chapter, err := layout.Unflatten(c.Position)
	if err != nil {
		return err
	}
	b, _ := layout.Book(book)
	return g.print(map[string]int{"book": book, "chapter": chapter}, func(w io.Writer) {
		fmt.Fprintf(w, "%d %d (%s %d)\n", book, chapter, b.Name, chapter+1)
	})
}

// NavParseCmd parses a reference.
type NavParseCmd struct {
	Ref string `arg:"" help:"OSIS reference, e.g. Exod.23.19"`
}

func (c *NavParseCmd) Run(g *Globals) error {
	layout := canon.KJV()
	coord, err := layout.ParseRef(c.Ref)
	if err != nil {
		return err
	}
	verse, err := layout.FlattenVerse(coord)
	if err != nil {
		return err
	}
	osis, err := layout.FormatRef(coord)
	if err != nil {
		return err
	}
	return g.print(map[string]any{"ref": osis, "coordinate": coord, "verse_index": verse}, func(w io.Writer) {
		fmt.Fprintf(w, "%s %s (verse %d)\n", osis, coord, verse)
	})
}

// ConfigInitCmd writes the default config.
type ConfigInitCmd struct {
	Path string `arg:"" help:"Destination file" type:"path"`
}

func (c *ConfigInitCmd) Run(g *Globals) error {
	if err := config.Save(c.Path, config.Default()); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %s\n", c.Path)
	return nil
}

// VersionCmd prints the version.
type VersionCmd struct{}

func (c *VersionCmd) Run(g *Globals) error {
	info := sqlite.GetInfo()
	return g.print(map[string]any{"version": version, "sqlite": info}, func(w io.Writer) {
		fmt.Fprintf(w, "juniper-reader version %s (sqlite: %s via %s)\n", version, info.DriverType, info.Package)
	})
}

func bookArg(layout *canon.Layout, s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	if i := layout.BookIndex(s); i >= 0 {
		return i, nil
	}
	return 0, errors.NewNotFound("book", s)
}

func printItems(w io.Writer, items []display.Item) {
	for _, item := range items {
		switch item.Kind {
		case display.KindHeader:
			fmt.Fprintf(w, "== %s ==\n", item.Header.Text)
		case display.KindRow:
			r := item.Row
			fmt.Fprintf(w, "  %-16s %s\n", r.Title, r.Text)
			if r.Note != "" {
				fmt.Fprintf(w, "  %-16s > %s\n", "", r.Note)
			}
		}
	}
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("juniper-reader"),
		kong.Description("Juniper Reader - chapter navigation, annotations and search"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	err := ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}
