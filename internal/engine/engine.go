// Package engine runs lineage extraction over files and directories.
// It turns raw SQL text into procedure records: procedure bodies (or whole
// files in ddl mode) are located, each statement kind is isolated and parsed,
// and failures are recorded per statement without aborting the file.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/leapstack-labs/ezql/pkg/lineage"
	"github.com/leapstack-labs/ezql/pkg/parser"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultDelimiter closes procedure bodies unless configured otherwise.
const DefaultDelimiter = ";;"

// ErrNotSQLFile is returned when a file input does not have a .sql extension.
var ErrNotSQLFile = errors.New("input file must have a .sql extension")

// ErrUnsupportedStatement is returned by Extract for text that does not start
// with a statement kind the extractor handles.
var ErrUnsupportedStatement = errors.New("unsupported statement")

// Config holds engine configuration.
type Config struct {
	// DefaultSchema qualifies table and procedure names written without one.
	DefaultSchema string
	// Delimiter terminates procedure bodies in procedure mode and every
	// statement in ddl mode.
	Delimiter string
	// Mode is procedure (default) or ddl.
	Mode lineage.Mode
	// Workers bounds the files parsed concurrently (0 means NumCPU).
	Workers int
	// KeepSingleTableUpdates keeps UPDATE statements without a JOIN.
	KeepSingleTableUpdates bool
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// Engine extracts lineage. It is safe for concurrent use.
type Engine struct {
	mode      lineage.Mode
	delimiter string
	workers   int
	logger    *slog.Logger
	resolver  lineage.Resolver
	locator   *lineage.Locator
	extractor *lineage.Extractor
}

// New creates an engine from cfg.
func New(cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	mode := cfg.Mode
	if mode == "" {
		mode = lineage.ModeProcedure
	}
	if mode != lineage.ModeProcedure && mode != lineage.ModeDDL {
		return nil, fmt.Errorf("invalid mode %q: must be %q or %q", mode, lineage.ModeProcedure, lineage.ModeDDL)
	}

	delimiter := cfg.Delimiter
	if delimiter == "" {
		delimiter = DefaultDelimiter
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	resolver := lineage.Resolver{DefaultSchema: cfg.DefaultSchema}

	logger.Debug("initializing engine", "mode", mode, "delimiter", delimiter, "default_schema", cfg.DefaultSchema)

	return &Engine{
		mode:      mode,
		delimiter: delimiter,
		workers:   workers,
		logger:    logger,
		resolver:  resolver,
		locator:   lineage.NewLocator(),
		extractor: lineage.NewExtractor(resolver, lineage.WithSingleTableUpdates(cfg.KeepSingleTableUpdates)),
	}, nil
}

// Mode returns the parsing mode.
func (e *Engine) Mode() lineage.Mode {
	return e.mode
}

// Preprocess normalizes raw SQL before location: upper-cased, backticks
// removed, comments stripped, surrounding whitespace trimmed.
func Preprocess(raw string) string {
	// Casers are stateful, so one is built per call.
	text := cases.Upper(language.Und).String(raw)
	text = strings.ReplaceAll(text, "`", "")
	text, _ = parser.StripComments(text)
	return strings.TrimSpace(text)
}

// ParseText extracts lineage from text read from path.
func (e *Engine) ParseText(path, text string) lineage.Result {
	text = Preprocess(text)

	if e.mode == lineage.ModeDDL {
		proc, errored := e.parseUnit(path, path, "", text)
		return lineage.Result{Procedures: []lineage.Procedure{proc}, Errored: errored}
	}

	var result lineage.Result
	bodies, misses := e.locator.FindProcedures(e.delimiter, text)
	for _, m := range misses {
		result.Errored = append(result.Errored, missErrored(path, "", m, e.delimiter))
	}
	for _, body := range bodies {
		qualified, ok := lineage.ProcedureName(body.Text)
		if !ok {
			e.logger.Debug("procedure header without a name", "path", path, "offset", body.Start)
			result.Errored = append(result.Errored, lineage.Errored{
				Path:      path,
				Kind:      lineage.KindProcedure,
				Reason:    lineage.ReasonProcedureName,
				Statement: snippet(body.Text),
				Message:   "no procedure name after CREATE PROCEDURE",
			})
			continue
		}
		schema, name := e.resolver.Resolve(qualified)
		proc, errored := e.parseUnit(path, name, schema, body.Text)
		result.Procedures = append(result.Procedures, proc)
		result.Errored = append(result.Errored, errored...)
	}
	return result
}

// parseUnit extracts every statement kind from one procedure body or file.
func (e *Engine) parseUnit(path, name, schema, body string) (lineage.Procedure, []lineage.Errored) {
	proc := lineage.Procedure{Path: path, Name: name, Schema: schema, Statements: []lineage.Statement{}}
	delim := e.locator.StatementDelimiter(e.mode, e.delimiter)

	var errored []lineage.Errored
	for _, kind := range lineage.Kinds() {
		matches, misses := e.locator.Find(kind, delim, body)
		for _, m := range misses {
			e.logger.Debug("statement without terminator", "kind", kind, "procedure", name, "offset", m.Start)
			errored = append(errored, missErrored(path, name, m, delim))
		}

		for _, m := range matches {
			stmt, err := e.extractor.Extract(kind, m.Text)
			if err != nil {
				e.logger.Debug("statement failed to parse", "kind", kind, "procedure", name, "error", err)
				errored = append(errored, lineage.Errored{
					Path:      path,
					Procedure: name,
					Kind:      kind,
					Reason:    lineage.ReasonParse,
					Statement: m.Text,
					Message:   err.Error(),
				})
				continue
			}
			if stmt == nil {
				e.logger.Debug("statement discarded", "kind", kind, "procedure", name)
				continue
			}
			proc.Statements = append(proc.Statements, stmt.WithProcedure(name))
		}
	}
	return proc, errored
}

func missErrored(path, procedure string, m lineage.Miss, delim string) lineage.Errored {
	return lineage.Errored{
		Path:      path,
		Procedure: procedure,
		Kind:      m.Kind,
		Reason:    lineage.ReasonUnterminated,
		Statement: snippet(m.Text),
		Message:   fmt.Sprintf("no %q before end of input", delim),
	}
}

const snippetLen = 120

func snippet(s string) string {
	if r := []rune(s); len(r) > snippetLen {
		return string(r[:snippetLen]) + "..."
	}
	return s
}

// Extract extracts the lineage of one standalone statement. The statement
// is attributed to no procedure. ok is false when the statement carries
// no lineage and was discarded.
func (e *Engine) Extract(sql string) (stmt lineage.Statement, ok bool, err error) {
	text := Preprocess(sql)
	if !strings.HasSuffix(text, ";") {
		text += ";"
	}
	kind, ok := e.locator.Classify(text)
	if !ok {
		return lineage.Statement{}, false, fmt.Errorf("%w: %s", ErrUnsupportedStatement, snippet(text))
	}
	extracted, err := e.extractor.Extract(kind, text)
	if err != nil {
		return lineage.Statement{}, false, fmt.Errorf("failed to parse %s statement: %w", kind, err)
	}
	if extracted == nil {
		e.logger.Debug("statement discarded", "kind", kind)
		return lineage.Statement{}, false, nil
	}
	return *extracted, true, nil
}

// ParseFile reads and parses one file.
func (e *Engine) ParseFile(path string) (lineage.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return lineage.Result{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	result := e.ParseText(path, string(data))
	e.logger.Debug("file parsed", "path", path, "procedures", len(result.Procedures), "errored", len(result.Errored))
	return result, nil
}

// ValidatePath checks that path is a directory or a .sql file.
func ValidatePath(path string) (os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !info.IsDir() && filepath.Ext(path) != ".sql" {
		return nil, fmt.Errorf("%s: %w", path, ErrNotSQLFile)
	}
	return info, nil
}

// Run parses a file or, recursively, every .sql file of a directory.
func (e *Engine) Run(ctx context.Context, path string) (lineage.Result, error) {
	start := time.Now()

	info, err := ValidatePath(path)
	if err != nil {
		return lineage.Result{}, err
	}

	var result lineage.Result
	if info.IsDir() {
		result, err = e.ParseDir(ctx, path)
	} else {
		result, err = e.ParseFile(path)
	}
	if err != nil {
		return lineage.Result{}, err
	}

	e.logger.Info("completed",
		"path", path,
		"procedures", len(result.Procedures),
		"statements", len(result.Statements()),
		"errored", len(result.Errored),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return result, nil
}
