package engine

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/leapstack-labs/ezql/pkg/lineage"
	"golang.org/x/sync/errgroup"
)

// DiscoverFiles returns every .sql file under dir, sorted by path.
func DiscoverFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ".sql" {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

// ParseDir parses every .sql file under dir with up to Workers files in
// flight. A file that cannot be read becomes an io Errored record; the other
// files continue. Results are ordered by path.
func (e *Engine) ParseDir(ctx context.Context, dir string) (lineage.Result, error) {
	files, err := DiscoverFiles(dir)
	if err != nil {
		return lineage.Result{}, err
	}
	e.logger.Debug("discovered files", "dir", dir, "count", len(files), "workers", e.workers)

	results := make([]lineage.Result, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := e.ParseFile(path)
			if err != nil {
				e.logger.Warn("skipping unreadable file", "path", path, "error", err)
				res = lineage.Result{Errored: []lineage.Errored{{
					Path:    path,
					Reason:  lineage.ReasonIO,
					Message: err.Error(),
				}}}
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return lineage.Result{}, fmt.Errorf("failed to parse %s: %w", dir, err)
	}

	var merged lineage.Result
	for _, r := range results {
		merged.Merge(r)
	}
	return merged, nil
}
