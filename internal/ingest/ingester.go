package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Larry-Leee/progressVisualisation/internal/aggregate"
	"github.com/Larry-Leee/progressVisualisation/internal/extract"
	"github.com/Larry-Leee/progressVisualisation/internal/fileid"
	"github.com/Larry-Leee/progressVisualisation/internal/models"
	"github.com/Larry-Leee/progressVisualisation/internal/projectindex"
	"github.com/Larry-Leee/progressVisualisation/internal/storage"
)

// Ingester reads report files, runs them through a Pipeline and upserts the records.
type Ingester struct {
	store         storage.Storage
	reader        *extract.Reader
	pipeline      *Pipeline
	projects      projectindex.Index // optional
	workers       int
	skipUnchanged bool
	extensions    []string
	logger        *zap.Logger // optional
}

// Option configures an Ingester.
type Option func(*Ingester)

// WithLogger sets a logger for ingest events and dropped-row warnings.
func WithLogger(l *zap.Logger) Option {
	return func(in *Ingester) { in.logger = l }
}

// WithWorkers bounds how many files IngestDirectory processes at once.
func WithWorkers(n int) Option {
	return func(in *Ingester) {
		if n > 0 {
			in.workers = n
		}
	}
}

// WithProjectIndex keeps idx updated with the project names of ingested records.
func WithProjectIndex(idx projectindex.Index) Option {
	return func(in *Ingester) { in.projects = idx }
}

// WithSkipUnchanged skips documents whose content was already ingested for the same period.
func WithSkipUnchanged(skip bool) Option {
	return func(in *Ingester) { in.skipUnchanged = skip }
}

// WithExtensions restricts IngestDirectory to the given extensions.
func WithExtensions(exts []string) Option {
	return func(in *Ingester) {
		if len(exts) > 0 {
			in.extensions = exts
		}
	}
}

// NewIngester creates an ingester. reader may be nil; a default extract.Reader is used.
func NewIngester(store storage.Storage, reader *extract.Reader, pipeline *Pipeline, opts ...Option) *Ingester {
	if reader == nil {
		reader = extract.NewReader()
	}
	in := &Ingester{
		store:      store,
		reader:     reader,
		pipeline:   pipeline,
		workers:    1,
		extensions: extract.SupportedExtensions,
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// IngestBytes ingests one document. name becomes the records' source
// document; it may be a slash-separated relative path. When period is empty
// it is inferred from the base name, then from the whole name. Rows sharing a
// project within the document are summed before the upsert, so ingesting the
// same document twice leaves the store unchanged.
func (in *Ingester) IngestBytes(ctx context.Context, name string, content []byte, period models.Period) (*Result, error) {
	if period == "" {
		p, ok := models.PeriodFromName(path.Base(name))
		if !ok {
			p, ok = models.PeriodFromName(name)
		}
		if !ok {
			return nil, fmt.Errorf("%w: cannot infer period from %q", models.ErrInvalidPeriod, name)
		}
		period = p
	} else if _, err := models.ParsePeriod(string(period)); err != nil {
		return nil, err
	}

	docID := fileid.ContentID(content)
	if in.skipUnchanged {
		prev, err := in.store.GetIngest(ctx, docID, period)
		switch {
		case err == nil:
			if in.logger != nil {
				in.logger.Debug("ingest skipping unchanged document",
					zap.String("name", name), zap.String("period", string(period)))
			}
			return &Result{
				Source:     prev.Name,
				Period:     period,
				TableIndex: prev.TableIndex,
				Dropped:    prev.Dropped,
				Skipped:    true,
				RunID:      prev.RunID,
			}, nil
		case !errors.Is(err, models.ErrNotFound):
			return nil, err
		}
	}

	doc, err := in.reader.ReadBytes(name, content)
	if err != nil {
		return nil, err
	}
	res, err := in.pipeline.Process(doc, period)
	if err != nil {
		return nil, err
	}
	res.Records = aggregate.Merge(res.Records)
	res.RunID = uuid.New().String()

	if err := in.store.UpsertRecords(ctx, res.Records); err != nil {
		return nil, fmt.Errorf("persist %s: %w", name, err)
	}
	if err := in.store.RecordIngest(ctx, &models.IngestedDocument{
		ID:         docID,
		Name:       name,
		Period:     period,
		TableIndex: res.TableIndex,
		Records:    len(res.Records),
		Dropped:    res.Dropped,
		RunID:      res.RunID,
	}); err != nil {
		return nil, fmt.Errorf("record ingest of %s: %w", name, err)
	}
	if in.projects != nil {
		if err := in.projects.IndexRecords(ctx, res.Records); err != nil && in.logger != nil {
			in.logger.Warn("project index update failed", zap.String("name", name), zap.Error(err))
		}
	}

	if in.logger != nil {
		fields := []zap.Field{
			zap.String("name", name),
			zap.String("period", string(period)),
			zap.Int("table_index", res.TableIndex),
			zap.Int("records", len(res.Records)),
			zap.Int("dropped", res.Dropped),
			zap.String("run_id", res.RunID),
		}
		if res.Dropped > 0 {
			in.logger.Warn("ingest dropped rows with unparseable numbers", fields...)
		} else {
			in.logger.Info("ingested document", fields...)
		}
	}
	return res, nil
}

// IngestFile reads path and ingests it under its base name.
func (in *Ingester) IngestFile(ctx context.Context, path string, period models.Period) (*Result, error) {
	return in.IngestFileAs(ctx, path, filepath.Base(path), period)
}

// IngestFileAs reads path and ingests it with source as the source document.
// Callers walking a tree pass the path relative to its root so that reports
// sharing a file name in different folders stay distinct.
func (in *Ingester) IngestFileAs(ctx context.Context, path, source string, period models.Period) (*Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return in.IngestBytes(ctx, source, content, period)
}

// SourceName returns path relative to root with forward slashes, the source
// document name used for files found under a directory.
func SourceName(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.Base(path)
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return filepath.Base(path)
	}
	return rel
}

// FileError is a per-file failure of IngestDirectory.
type FileError struct {
	Path string `json:"path"`
	Err  error  `json:"-"`
}

func (e *FileError) Error() string { return e.Path + ": " + e.Err.Error() }

func (e *FileError) Unwrap() error { return e.Err }

// BatchResult summarizes IngestDirectory.
type BatchResult struct {
	Results []*Result    `json:"results"`
	Failed  []*FileError `json:"failed"`
}

// IngestDirectory ingests every file under dir with an allowed extension,
// up to the configured number of workers at a time. A failing file is
// recorded in the result and does not stop the batch. period applies to
// every file; leave it empty to infer each file's period from its name.
// Each file's source document is its path relative to dir. Results are
// ordered by path.
func (in *Ingester) IngestDirectory(ctx context.Context, dir string, period models.Period) (*BatchResult, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}
	var paths []string
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		// Configured extensions without a table reader would only fail.
		if ext := filepath.Ext(path); !extensionAllowed(ext, in.extensions) || !extract.Supported(ext) {
			return nil
		}
		// Office lock files share the report's extension.
		if strings.HasPrefix(d.Name(), "~$") {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(paths)

	results := make([]*Result, len(paths))
	errs := make([]error, len(paths))
	sem := make(chan struct{}, in.workers)
	var wg sync.WaitGroup
	for i, path := range paths {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, path string) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return
			}
			results[i], errs[i] = in.IngestFileAs(ctx, path, SourceName(dir, path), period)
		}(i, path)
	}
	wg.Wait()

	batch := &BatchResult{}
	for i, path := range paths {
		if errs[i] != nil {
			if in.logger != nil {
				in.logger.Warn("ingest failed", zap.String("path", path), zap.Error(errs[i]))
			}
			batch.Failed = append(batch.Failed, &FileError{Path: path, Err: errs[i]})
			continue
		}
		batch.Results = append(batch.Results, results[i])
	}
	return batch, nil
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}

// BackfillProjects loads the project index from every stored record when the
// index is empty, as after deleting its directory. It returns the number of
// records indexed.
func (in *Ingester) BackfillProjects(ctx context.Context) (int, error) {
	if in.projects == nil {
		return 0, nil
	}
	n, err := in.projects.DocCount()
	if err != nil {
		return 0, fmt.Errorf("project index count: %w", err)
	}
	if n > 0 {
		return 0, nil
	}
	records, err := in.store.AllRecords(ctx)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}
	if err := in.projects.IndexRecords(ctx, records); err != nil {
		return 0, fmt.Errorf("backfill project index: %w", err)
	}
	if in.logger != nil {
		in.logger.Info("project index backfilled", zap.Int("records", len(records)))
	}
	return len(records), nil
}
