package lineage

import (
	"errors"
	"regexp"
	"strings"

	"github.com/leapstack-labs/ezql/pkg/parser"
)

// Kind names a statement kind the locator can isolate.
type Kind string

// Statement kinds, plus the procedure wrapper.
const (
	KindInsert      Kind = "INSERT"
	KindReplace     Kind = "REPLACE"
	KindUpdate      Kind = "UPDATE"
	KindDelete      Kind = "DELETE"
	KindCreateTable Kind = "CREATE TABLE"
	KindDropTable   Kind = "DROP TABLE"
	KindTruncate    Kind = "TRUNCATE"
	KindProcedure   Kind = "PROCEDURE"
)

// ErrUnknownKind is returned for a kind the extractor has no routine for.
var ErrUnknownKind = errors.New("unknown statement kind")

// Kinds returns the statement kinds in extraction order.
func Kinds() []Kind {
	return []Kind{
		KindInsert,
		KindReplace,
		KindUpdate,
		KindDelete,
		KindCreateTable,
		KindDropTable,
		KindTruncate,
	}
}

// Mode selects how a text is split into units.
type Mode string

// Parsing modes.
const (
	// ModeProcedure extracts statements from CREATE PROCEDURE bodies.
	ModeProcedure Mode = "procedure"
	// ModeDDL treats a whole file as one unit of standalone statements.
	ModeDDL Mode = "ddl"
)

// ident matches a possibly qualified object name right after the keywords.
const ident = `[\w$.]+`

var prefixes = map[Kind]*regexp.Regexp{
	KindInsert:      regexp.MustCompile(`(?i)\bINSERT\s+(?:(?:LOW_PRIORITY|DELAYED|HIGH_PRIORITY)\s+)?(?:IGNORE\s+)?INTO\s+` + ident),
	KindReplace:     regexp.MustCompile(`(?i)\bREPLACE\s+(?:(?:LOW_PRIORITY|DELAYED)\s+)?INTO\s+` + ident),
	KindUpdate:      regexp.MustCompile(`(?i)\bUPDATE\s+(?:LOW_PRIORITY\s+)?(?:IGNORE\s+)?` + ident),
	KindDelete:      regexp.MustCompile(`(?i)\bDELETE\s+(?:LOW_PRIORITY\s+)?(?:QUICK\s+)?(?:IGNORE\s+)?FROM\s+` + ident),
	KindCreateTable: regexp.MustCompile(`(?i)\bCREATE\s+(?:TEMPORARY\s+)?TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?` + ident),
	KindDropTable:   regexp.MustCompile(`(?i)\bDROP\s+(?:TEMPORARY\s+)?TABLE\s+(?:IF\s+EXISTS\s+)?` + ident),
	KindTruncate:    regexp.MustCompile(`(?i)\bTRUNCATE\s+(?:TABLE\s+)?` + ident),
	KindProcedure:   regexp.MustCompile(`(?i)\bCREATE\s+(?:DEFINER\s*=\s*\S+\s+)?PROCEDURE\s`),
}

var (
	setKeyword    = regexp.MustCompile(`(?i)\sSET\s`)
	procedureName = regexp.MustCompile(`(?i)\bCREATE\s+(?:DEFINER\s*=\s*\S+\s+)?PROCEDURE\s+(?:IF\s+NOT\s+EXISTS\s+)?([A-Za-z0-9._$-]+)`)
)

// Match is one located statement. Text runs from the leading keyword
// through the terminating delimiter; Start and End are byte offsets into the
// searched text.
type Match struct {
	Kind  Kind
	Text  string
	Start int
	End   int
}

// Miss is a keyword occurrence with no terminating delimiter after it.
type Miss struct {
	Kind  Kind
	Start int
	Text  string
}

// Locator isolates statements of known kinds in a text blob. It holds only
// compiled patterns and is safe for concurrent use.
type Locator struct {
	prefixes map[Kind]*regexp.Regexp
}

// NewLocator returns a locator for every kind in Kinds and for procedures.
func NewLocator() *Locator {
	return &Locator{prefixes: prefixes}
}

// Find returns the non-overlapping statements of the given kind in text,
// in source order. A statement ends at the first delimiter outside a quoted
// string. Unknown kinds yield nothing.
func (l *Locator) Find(kind Kind, delimiter, text string) ([]Match, []Miss) {
	re, ok := l.prefixes[kind]
	if !ok || delimiter == "" {
		return nil, nil
	}

	var (
		matches []Match
		misses  []Miss
	)
	pos := 0
	for pos < len(text) {
		loc := re.FindStringIndex(text[pos:])
		if loc == nil {
			break
		}
		start, prefixEnd := pos+loc[0], pos+loc[1]

		end := parser.IndexDelimiter(text, prefixEnd, delimiter)
		if end < 0 {
			misses = append(misses, Miss{Kind: kind, Start: start, Text: text[start:]})
			pos = prefixEnd
			continue
		}
		end += len(delimiter)

		// An UPDATE without SET before its terminator is not an UPDATE
		// statement (e.g. ON DUPLICATE KEY UPDATE).
		if kind == KindUpdate && !setKeyword.MatchString(text[start:end]) {
			pos = prefixEnd
			continue
		}

		matches = append(matches, Match{Kind: kind, Text: text[start:end], Start: start, End: end})
		pos = end
	}
	return matches, misses
}

// FindProcedures locates CREATE PROCEDURE bodies terminated by delimiter.
func (l *Locator) FindProcedures(delimiter, text string) ([]Match, []Miss) {
	return l.Find(KindProcedure, delimiter, text)
}

// StatementDelimiter returns the delimiter that ends inner statements. In
// procedure mode the custom delimiter only closes procedure bodies and
// statements end with ';'.
func (l *Locator) StatementDelimiter(mode Mode, delimiter string) string {
	if mode == ModeProcedure {
		return ";"
	}
	return delimiter
}

// Classify reports the kind a standalone statement starts with.
func (l *Locator) Classify(text string) (Kind, bool) {
	text = strings.TrimSpace(text)
	for _, kind := range Kinds() {
		if loc := l.prefixes[kind].FindStringIndex(text); loc != nil && loc[0] == 0 {
			return kind, true
		}
	}
	return "", false
}

// ProcedureName returns the lower-cased, possibly qualified name declared by
// a CREATE PROCEDURE header.
func ProcedureName(body string) (string, bool) {
	m := procedureName.FindStringSubmatch(body)
	if m == nil {
		return "", false
	}
	return strings.ToLower(m[1]), true
}
