// Command coupon-import loads coupons from gzip-compressed NDJSON files.
//
//	coupon-import -database-url postgres://... coupons1.ndjson.gz coupons2.ndjson.gz
package main

import (
	"context"
	"flag"
	"os"
	"runtime"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/coupon-engine/internal/domain/coupon"
	"github.com/xenking/coupon-engine/internal/storage/postgres"
	"github.com/xenking/coupon-engine/internal/storage/rediscache"
)

func main() {
	var (
		databaseURL string
		redisURL    string
		workers     int
		expected    uint
		dryRun      bool
	)
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&redisURL, "redis-url", "", "Redis URL of the service cache to evict after import (or REDIS_URL env)")
	flag.IntVar(&workers, "workers", runtime.GOMAXPROCS(0), "concurrent database writers")
	flag.UintVar(&expected, "expected", 1_000_000, "expected number of distinct codes, sizes the duplicate filter")
	flag.BoolVar(&dryRun, "dry-run", false, "validate files without writing to the database")
	flag.Parse()

	app.Run(func(ctx context.Context, lg *zap.Logger, _ *app.Telemetry) error {
		files := flag.Args()
		if len(files) == 0 {
			return errors.New("no input files: pass one or more .ndjson.gz paths")
		}

		var (
			store Store = discardStore{}
			opts  []Option
		)
		if !dryRun {
			if databaseURL == "" {
				databaseURL = os.Getenv("DATABASE_URL")
			}
			if databaseURL == "" {
				return errors.New("database URL is required: set -database-url or DATABASE_URL")
			}
			pool, err := postgres.NewPool(ctx, databaseURL)
			if err != nil {
				return errors.Wrap(err, "connect to database")
			}
			defer pool.Close()
			if err := postgres.RunMigrations(ctx, pool); err != nil {
				return errors.Wrap(err, "run migrations")
			}
			store = postgres.NewCouponRepository(pool)

			if redisURL == "" {
				redisURL = os.Getenv("REDIS_URL")
			}
			if redisURL != "" {
				redisOpts, err := redis.ParseURL(redisURL)
				if err != nil {
					return errors.Wrap(err, "parse redis url")
				}
				client := redis.NewClient(redisOpts)
				defer func() { _ = client.Close() }()
				opts = append(opts, WithCache(redisCache{client: client}))
			} else {
				lg.Warn("No Redis URL, cached coupons expire by TTL only")
			}
		}

		lg.Info("Importing coupons", zap.Strings("files", files), zap.Bool("dry_run", dryRun))
		s, err := NewImporter(store, lg, workers, expected, opts...).Run(ctx, files)
		if err != nil {
			return err
		}
		if s.Imported == 0 && s.Lines > 0 {
			lg.Warn("No coupons imported")
		}
		return nil
	})
}

type discardStore struct{}

func (discardStore) Upsert(_ context.Context, def coupon.Definition) (coupon.Definition, error) {
	return def, nil
}

type redisCache struct {
	client redis.UniversalClient
}

func (c redisCache) Evict(ctx context.Context, ids ...int64) error {
	return rediscache.Evict(ctx, c.client, ids...)
}
