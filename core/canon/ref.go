package canon

import (
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/FocuswithJustin/JuniperReader/core/errors"
)

// refGrammar is the participle grammar for OSIS-style references.
// Examples: "Gen", "Gen.1", "Gen.1.1", "1John.3.16"
type refGrammar struct {
	BookPrefix string       `parser:"@Int?"`
	BookName   string       `parser:"@Ident"`
	ChapterRef *chapterPart `parser:"( \".\" @@ )?"`
}

type chapterPart struct {
	Chapter int  `parser:"@Int"`
	Verse   *int `parser:"( \".\" @Int )?"`
}

var refLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Ident", Pattern: `[A-Z][A-Za-z]*`},
	{Name: "Punct", Pattern: `[.]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var refParser = participle.MustBuild[refGrammar](
	participle.Lexer(refLexer),
	participle.Elide("Whitespace"),
)

// ParseRef parses a one-based OSIS reference ("Gen.1.1") into a zero-based
// Coordinate. Missing chapter or verse parts resolve to the first chapter
// or verse. The result is validated against the layout.
func (l *Layout) ParseRef(s string) (Coordinate, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Invalid, errors.NewValidation("reference", "empty reference string")
	}

	parsed, err := refParser.ParseString("", s)
	if err != nil {
		return Invalid, &errors.ValidationError{
			Field:   "reference",
			Value:   s,
			Message: "invalid reference format",
			Err:     err,
		}
	}

	osis := parsed.BookPrefix + parsed.BookName
	book := l.BookIndex(osis)
	if book < 0 {
		return Invalid, errors.NewNotFound("book", osis)
	}

	c := At(book, 0, 0)
	if parsed.ChapterRef != nil {
		c.Chapter = parsed.ChapterRef.Chapter - 1
		if parsed.ChapterRef.Verse != nil {
			c.Verse = *parsed.ChapterRef.Verse - 1
		}
	}
	if err := l.Validate(c); err != nil {
		return Invalid, errors.Wrapf(err, "reference %q", s)
	}
	return c, nil
}

// FormatRef returns the one-based OSIS form of c ("Gen.1.1").
func (l *Layout) FormatRef(c Coordinate) (string, error) {
	if err := l.Validate(c); err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.WriteString(l.books[c.Book].OSIS)
	sb.WriteByte('.')
	sb.WriteString(strconv.Itoa(c.Chapter + 1))
	sb.WriteByte('.')
	sb.WriteString(strconv.Itoa(c.Verse + 1))
	return sb.String(), nil
}
