package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/kilianp07/octowatt/core/failure"
	"github.com/kilianp07/octowatt/core/logger"
	"github.com/kilianp07/octowatt/core/model"
	"github.com/kilianp07/octowatt/core/series"
)

// Load outcomes. Every load error wraps exactly one of these.
var (
	ErrNotFound       = errors.New("cache file not found")
	ErrCorrupt        = errors.New("cache file unreadable")
	ErrSchemaMismatch = errors.New("cache file schema mismatch")
)

// Mirror receives a copy of every saved file.
type Mirror interface {
	Upload(ctx context.Context, name, path string) error
}

// Store reads and writes series files under one directory.
type Store struct {
	dir    string
	mirror Mirror
	log    logger.Logger
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithMirror uploads each saved file to m. Upload failures are logged only.
func WithMirror(m Mirror) Option {
	return func(s *Store) { s.mirror = m }
}

func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// NewStore creates dir if needed.
func NewStore(dir string, opts ...Option) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("cache dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	s := &Store{dir: dir, log: logger.Nop{}, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Path returns the absolute location of name.
func (s *Store) Path(name string) string { return filepath.Join(s.dir, name) }

// LoadSamples reads a consumption series.
func (s *Store) LoadSamples(name string) ([]model.Sample, error) {
	rows, err := load[sampleRow](s.Path(name), sampleColumns)
	if err != nil {
		return nil, failure.New(failure.KindCacheUnavailable, "load "+name, err)
	}
	return series.Merge(fromSampleRows(rows)), nil
}

// SaveSamples replaces the file with series.
func (s *Store) SaveSamples(ctx context.Context, name string, samples []model.Sample) error {
	return s.save(ctx, name, func(path string) error { return write(path, toSampleRows(samples)) })
}

// LoadTariff reads a tariff series.
func (s *Store) LoadTariff(name string) ([]model.TariffRate, error) {
	rows, err := load[tariffRow](s.Path(name), tariffColumns)
	if err != nil {
		return nil, failure.New(failure.KindCacheUnavailable, "load "+name, err)
	}
	return series.Merge(fromTariffRows(rows)), nil
}

// SaveTariff replaces the file with rates.
func (s *Store) SaveTariff(ctx context.Context, name string, rates []model.TariffRate) error {
	return s.save(ctx, name, func(path string) error { return write(path, toTariffRows(rates)) })
}

// Quarantine moves name aside as name.corrupt-<unix> and returns the new path.
func (s *Store) Quarantine(name string) (string, error) {
	src := s.Path(name)
	dst := fmt.Sprintf("%s.corrupt-%d", src, s.now().Unix())
	if err := os.Rename(src, dst); err != nil {
		return "", fmt.Errorf("quarantine %s: %w", name, err)
	}
	s.log.Warnf("cache: moved unreadable %s to %s", name, filepath.Base(dst))
	return dst, nil
}

// save writes into a temp file next to the target and renames it over the
// target, so readers see either the old or the new file.
func (s *Store) save(ctx context.Context, name string, fill func(path string) error) error {
	tmp, err := os.CreateTemp(s.dir, "."+name+".tmp-*")
	if err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(tmpPath)

	if err := fill(tmpPath); err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	if err := os.Rename(tmpPath, s.Path(name)); err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	if s.mirror != nil {
		if err := s.mirror.Upload(ctx, name, s.Path(name)); err != nil {
			s.log.Warnf("cache: mirror upload of %s failed: %v", name, err)
		}
	}
	return nil
}

func write[R any](path string, rows []R) (err error) {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := fw.Close(); err == nil {
			err = cerr
		}
	}()
	pw, err := writer.NewParquetWriter(fw, new(R), 1)
	if err != nil {
		return fmt.Errorf("parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, r := range rows {
		if err := pw.Write(r); err != nil {
			_ = pw.WriteStop()
			return fmt.Errorf("write row: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("finalize parquet: %w", err)
	}
	return nil
}

// load reads every row of path after checking its columns. parquet-go panics
// on some damaged inputs; those surface as ErrCorrupt.
func load[R any](path string, columns []string) (rows []R, err error) {
	if _, statErr := os.Stat(path); statErr != nil {
		if errors.Is(statErr, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, filepath.Base(path))
		}
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, statErr)
	}
	defer func() {
		if r := recover(); r != nil {
			rows, err = nil, fmt.Errorf("%w: %v", ErrCorrupt, r)
		}
	}()
	if err := checkSchema(path, columns); err != nil {
		return nil, err
	}

	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	defer fr.Close()
	pr, err := reader.NewParquetReader(fr, new(R), 1)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	defer pr.ReadStop()

	rows = make([]R, int(pr.GetNumRows()))
	if len(rows) == 0 {
		return rows, nil
	}
	if err := pr.Read(&rows); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return rows, nil
}

func checkSchema(path string, want []string) error {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	defer fr.Close()
	pr, err := reader.NewParquetReader(fr, nil, 1)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	defer pr.ReadStop()

	// The first element is the root group.
	elems := pr.Footer.GetSchema()
	if len(elems) == 0 {
		return fmt.Errorf("%w: empty schema", ErrCorrupt)
	}
	var got []string
	for _, e := range elems[1:] {
		got = append(got, e.GetName())
	}
	if len(got) != len(want) {
		return fmt.Errorf("%w: columns %v, want %v", ErrSchemaMismatch, got, want)
	}
	for i := range want {
		if !strings.EqualFold(got[i], want[i]) {
			return fmt.Errorf("%w: columns %v, want %v", ErrSchemaMismatch, got, want)
		}
	}
	return nil
}
