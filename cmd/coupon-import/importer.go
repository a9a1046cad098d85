package main

import (
	"bufio"
	"context"
	"os"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

const (
	bloomFPR      = 0.001
	maxLineSize   = 1 << 20
	progressEvery = 100_000
	evictBatch    = 1000
)

// Store persists imported coupons, replacing any coupon with the same code.
type Store interface {
	Upsert(ctx context.Context, def coupon.Definition) (coupon.Definition, error)
}

// Cache drops cached copies of coupons the import replaced.
type Cache interface {
	Evict(ctx context.Context, ids ...int64) error
}

// Summary counts the outcome of an import run.
type Summary struct {
	Lines      int64
	Imported   int64
	Invalid    int64
	Duplicates int64
}

type counters struct {
	lines, imported, invalid, duplicates atomic.Int64
}

func (c *counters) summary() Summary {
	return Summary{
		Lines:      c.lines.Load(),
		Imported:   c.imported.Load(),
		Invalid:    c.invalid.Load(),
		Duplicates: c.duplicates.Load(),
	}
}

// codeSet tracks codes seen across all files. The bloom filter answers the
// common "never seen" case; positives are confirmed against the exact set.
type codeSet struct {
	mu             sync.Mutex
	filter         *bloom.BloomFilter
	exact          map[string]struct{}
	falsePositives int
}

func newCodeSet(expected uint) *codeSet {
	return &codeSet{
		filter: bloom.NewWithEstimates(max(expected, 1), bloomFPR),
		exact:  make(map[string]struct{}, expected),
	}
}

// Add records code and reports whether it had not been seen before.
func (s *codeSet) Add(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.filter.TestString(code) {
		if _, ok := s.exact[code]; ok {
			return false
		}
		s.falsePositives++
	}
	s.filter.AddString(code)
	s.exact[code] = struct{}{}
	return true
}

// Importer streams coupon documents from gzip-compressed NDJSON files into a
// Store. The first occurrence of a code wins; later occurrences in any file
// are counted as duplicates.
type Importer struct {
	store   Store
	cache   Cache
	lg      *zap.Logger
	workers int
	seen    *codeSet
}

// Option configures an Importer.
type Option func(*Importer)

// WithCache evicts every stored coupon from c once the run ends.
func WithCache(c Cache) Option {
	return func(im *Importer) {
		im.cache = c
	}
}

// NewImporter returns an Importer writing through workers concurrent
// upserts. expected sizes the duplicate filter.
func NewImporter(store Store, lg *zap.Logger, workers int, expected uint, opts ...Option) *Importer {
	im := &Importer{
		store:   store,
		lg:      lg,
		workers: max(workers, 1),
		seen:    newCodeSet(expected),
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// Run reads every file concurrently and upserts the valid, unique coupons.
// Invalid and duplicate lines are logged and skipped. Read and store
// failures abort the run.
func (im *Importer) Run(ctx context.Context, files []string) (Summary, error) {
	var (
		c       counters
		readers sync.WaitGroup
		defs    = make(chan coupon.Definition, 1024)
		stored  = make([][]int64, im.workers)
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, path := range files {
		readers.Add(1)
		g.Go(func() error {
			defer readers.Done()
			return im.readFile(gctx, path, defs, &c)
		})
	}
	g.Go(func() error {
		readers.Wait()
		close(defs)
		return nil
	})
	for w := range im.workers {
		g.Go(func() error {
			for def := range defs {
				saved, err := im.store.Upsert(gctx, def)
				if err != nil {
					return errors.Wrapf(err, "upsert %q", def.Code)
				}
				stored[w] = append(stored[w], saved.ID)
				c.imported.Add(1)
			}
			return nil
		})
	}

	err := g.Wait()
	// Coupons stored before a failure are evicted too.
	if evictErr := im.evict(context.WithoutCancel(ctx), stored); evictErr != nil && err == nil {
		err = evictErr
	}
	s := c.summary()
	im.lg.Info("Import finished",
		zap.Int64("lines", s.Lines),
		zap.Int64("imported", s.Imported),
		zap.Int64("invalid", s.Invalid),
		zap.Int64("duplicates", s.Duplicates),
		zap.Int("bloom_false_positives", im.seen.falsePositives),
	)
	return s, err
}

func (im *Importer) evict(ctx context.Context, stored [][]int64) error {
	if im.cache == nil {
		return nil
	}
	var ids []int64
	for _, w := range stored {
		ids = append(ids, w...)
	}
	if len(ids) == 0 {
		return nil
	}
	for batch := range slices.Chunk(ids, evictBatch) {
		if err := im.cache.Evict(ctx, batch...); err != nil {
			return errors.Wrap(err, "evict cache")
		}
	}
	im.lg.Info("Cache evicted", zap.Int("coupons", len(ids)))
	return nil
}

func (im *Importer) readFile(ctx context.Context, path string, out chan<- coupon.Definition, c *counters) error {
	lg := im.lg.With(zap.String("file", path))
	var line int64

	err := streamGzFile(ctx, path, func(data []byte) error {
		line++
		if len(data) == 0 {
			return nil
		}
		if n := c.lines.Add(1); n%progressEvery == 0 {
			lg.Info("Import progress", zap.Int64("lines", n))
		}

		def, err := parseDocument(data)
		if err != nil {
			c.invalid.Add(1)
			lg.Warn("Skipping invalid coupon", zap.Int64("line", line), zap.Error(err))
			return nil
		}
		if !im.seen.Add(def.Code) {
			c.duplicates.Add(1)
			lg.Warn("Skipping duplicate coupon", zap.Int64("line", line), zap.String("code", def.Code))
			return nil
		}

		select {
		case out <- def:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	if err != nil {
		return errors.Wrapf(err, "import %s", path)
	}
	lg.Info("File complete", zap.Int64("lines", line))
	return nil
}

// streamGzFile opens a gzip-compressed file and calls fn for each line. The
// slice passed to fn is only valid until fn returns.
func streamGzFile(ctx context.Context, path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(scanner.Bytes()); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}
