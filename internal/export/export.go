// Package export writes lineage results as JSON, YAML or a Mermaid HTML
// chart.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/ezql/pkg/lineage"
	"gopkg.in/yaml.v3"
)

// Format is an export file format.
type Format string

// Export formats.
const (
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatChart Format = "html"
)

// Options controls what goes into an export.
type Options struct {
	// IncludeErrors wraps the grouped procedures in a document that also
	// lists errored statements.
	IncludeErrors bool
}

// Grouped maps each file path to its procedures, in parse order.
type Grouped map[string][]lineage.Procedure

// Document is the export shape when errored statements are included.
type Document struct {
	Procedures Grouped           `json:"procedures" yaml:"procedures"`
	Errored    []lineage.Errored `json:"errored" yaml:"errored"`
}

// Group groups procedures by path.
func Group(r lineage.Result) Grouped {
	g := make(Grouped)
	for _, p := range r.Procedures {
		g[p.Path] = append(g[p.Path], p)
	}
	return g
}

func payload(r lineage.Result, opts Options) any {
	if !opts.IncludeErrors {
		return Group(r)
	}
	errored := r.Errored
	if errored == nil {
		errored = []lineage.Errored{}
	}
	return Document{Procedures: Group(r), Errored: errored}
}

// JSON writes r as indented JSON.
func JSON(w io.Writer, r lineage.Result, opts Options) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	if err := enc.Encode(payload(r, opts)); err != nil {
		return fmt.Errorf("failed to encode json: %w", err)
	}
	return nil
}

// YAML writes r as YAML.
func YAML(w io.Writer, r lineage.Result, opts Options) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(payload(r, opts)); err != nil {
		return fmt.Errorf("failed to encode yaml: %w", err)
	}
	return enc.Close()
}

// FormatOf returns the format implied by a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".html", ".htm":
		return FormatChart, nil
	}
	return "", fmt.Errorf("unsupported output file %q: use .json, .yaml, .yml or .html", path)
}

// ValidatePath checks that path has the extension of the expected format
// and that its directory exists.
func ValidatePath(path string, want Format) error {
	got, err := FormatOf(path)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("output file %q must have a %s extension", path, want)
	}
	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("output directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("output directory %s is not a directory", dir)
	}
	return nil
}

// WriteFile exports r to path in the format its extension names.
func WriteFile(path string, r lineage.Result, opts Options) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	switch format {
	case FormatJSON:
		err = JSON(f, r, opts)
	case FormatYAML:
		err = YAML(f, r, opts)
	case FormatChart:
		err = Chart(f, r)
	}
	if err != nil {
		return err
	}
	return f.Close()
}
