// Package rediscache provides a Redis read-through cache in front of a
// coupon.Repository.
package rediscache

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

const (
	keyPrefix = "coupons:"
	validKey  = keyPrefix + "valid"
)

func idKey(id int64) string {
	return keyPrefix + "id:" + strconv.FormatInt(id, 10)
}

var _ coupon.Repository = (*Repository)(nil)

// Repository caches FindByID and ListValid results. Writes go to the
// underlying repository and invalidate affected keys. Redis failures are
// logged and fall back to the underlying repository.
type Repository struct {
	next   coupon.Repository
	client redis.UniversalClient
	ttl    time.Duration
}

// New wraps next with a cache stored in client.
func New(next coupon.Repository, client redis.UniversalClient, ttl time.Duration) *Repository {
	return &Repository{next: next, client: client, ttl: ttl}
}

func (r *Repository) Create(ctx context.Context, def coupon.Definition) (coupon.Definition, error) {
	created, err := r.next.Create(ctx, def)
	if err != nil {
		return coupon.Definition{}, err
	}
	r.invalidate(ctx, validKey)
	return created, nil
}

func (r *Repository) Update(ctx context.Context, def coupon.Definition) (coupon.Definition, error) {
	updated, err := r.next.Update(ctx, def)
	if err != nil {
		return coupon.Definition{}, err
	}
	r.invalidate(ctx, validKey, idKey(def.ID))
	return updated, nil
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	if err := r.next.Delete(ctx, id); err != nil {
		return err
	}
	r.invalidate(ctx, validKey, idKey(id))
	return nil
}

func (r *Repository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	return r.next.ExistsByCode(ctx, code)
}

func (r *Repository) List(ctx context.Context) ([]coupon.Definition, error) {
	return r.next.List(ctx)
}

func (r *Repository) FindByID(ctx context.Context, id int64) (coupon.Definition, error) {
	key := idKey(id)
	if data, ok := r.get(ctx, key); ok {
		def, err := unmarshalDefinition(data)
		if err == nil {
			return def, nil
		}
		r.warn(ctx, "Dropping undecodable cache entry", key, err)
		r.invalidate(ctx, key)
	}

	def, err := r.next.FindByID(ctx, id)
	if err != nil {
		return coupon.Definition{}, err
	}
	r.set(ctx, key, marshalDefinition(def))
	return def, nil
}

// ListValid serves the cached valid set, re-filtered at now so coupons that
// expired after caching are not returned.
func (r *Repository) ListValid(ctx context.Context, now time.Time) ([]coupon.Definition, error) {
	if data, ok := r.get(ctx, validKey); ok {
		defs, err := unmarshalDefinitions(data)
		if err == nil {
			return filterValid(defs, now), nil
		}
		r.warn(ctx, "Dropping undecodable cache entry", validKey, err)
		r.invalidate(ctx, validKey)
	}

	defs, err := r.next.ListValid(ctx, now)
	if err != nil {
		return nil, err
	}
	r.set(ctx, validKey, marshalDefinitions(defs))
	return defs, nil
}

func filterValid(defs []coupon.Definition, now time.Time) []coupon.Definition {
	out := defs[:0]
	for _, def := range defs {
		if def.IsValid(now) {
			out = append(out, def)
		}
	}
	return out
}

// Evict drops the cached valid-coupon list and the entries for ids. Bulk
// writers that store coupons without going through Repository call it
// afterwards.
func Evict(ctx context.Context, client redis.UniversalClient, ids ...int64) error {
	keys := make([]string, 0, len(ids)+1)
	keys = append(keys, validKey)
	for _, id := range ids {
		keys = append(keys, idKey(id))
	}
	if err := client.Del(ctx, keys...).Err(); err != nil {
		return errors.Wrap(err, "evict cached coupons")
	}
	return nil
}

func (r *Repository) get(ctx context.Context, key string) ([]byte, bool) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.warn(ctx, "Cache read failed", key, err)
		}
		return nil, false
	}
	return data, true
}

func (r *Repository) set(ctx context.Context, key string, data []byte) {
	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		r.warn(ctx, "Cache write failed", key, err)
	}
}

func (r *Repository) invalidate(ctx context.Context, keys ...string) {
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		r.warn(ctx, "Cache invalidation failed", keys[0], err)
	}
}

func (r *Repository) warn(ctx context.Context, msg, key string, err error) {
	zctx.From(ctx).Warn(msg, zap.String("key", key), zap.Error(err))
}
