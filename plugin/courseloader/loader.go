package courseloader

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/lectern-io/lectern/plugin/vectorstore"
)

const ingestConcurrency = 4

// Loader ingests transcript files into the vector store.
type Loader struct {
	index *vectorstore.Store
}

// New creates a loader over the given index.
func New(index *vectorstore.Store) *Loader {
	return &Loader{index: index}
}

// LoadFile parses and ingests one transcript. The returned bool reports
// whether the course was new; already-indexed titles are no-ops.
func (l *Loader) LoadFile(ctx context.Context, path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, errors.Wrap(err, "open transcript")
	}
	defer f.Close()

	fallback := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	doc, err := Parse(f, fallback)
	if err != nil {
		return false, errors.Wrapf(err, "parse %s", path)
	}
	return l.index.AddCourse(ctx, doc)
}

// LoadDir ingests every .txt and .md transcript in dir and returns the
// number of newly indexed courses. A file that fails to parse or embed is
// logged and skipped; it does not abort the rest of the directory.
func (l *Loader) LoadDir(ctx context.Context, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, errors.Wrapf(err, "read docs dir %s", dir)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".txt", ".md":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(ingestConcurrency)
	var added atomic.Int64
	for _, path := range files {
		g.Go(func() error {
			ok, err := l.LoadFile(ctx, path)
			if err != nil {
				slog.Warn("skipping transcript", "file", path, "err", err)
				return nil
			}
			if ok {
				added.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(added.Load()), err
	}

	slog.Info("transcripts loaded", "dir", dir, "files", len(files), "new_courses", added.Load())
	return int(added.Load()), nil
}
