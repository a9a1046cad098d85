package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// CreateInput holds the fields of a new coupon. Config is the raw
// configuration document for Type.
type CreateInput struct {
	Code        string
	Type        Type
	Description string
	Config      []byte
	ExpiresAt   *time.Time
	Active      *bool
}

// Patch is a partial update. Nil fields are left unchanged. The coupon type
// cannot be changed.
type Patch struct {
	Code        *string
	Description *string
	Config      []byte
	ExpiresAt   *time.Time
	Active      *bool
}

// Manager implements coupon lifecycle operations on top of a Repository.
type Manager struct {
	repo Repository
}

// NewManager creates a Manager backed by the given Repository.
func NewManager(repo Repository) *Manager {
	return &Manager{repo: repo}
}

// Create validates the configuration for the declared type, enforces code
// uniqueness and stores the coupon. Coupons are active unless stated
// otherwise.
func (m *Manager) Create(ctx context.Context, in CreateInput) (Definition, error) {
	lg := zctx.From(ctx)
	lg.Info("Creating coupon", zap.String("code", in.Code), zap.String("type", string(in.Type)))

	t, err := ParseType(string(in.Type))
	if err != nil {
		return Definition{}, err
	}
	exists, err := m.repo.ExistsByCode(ctx, in.Code)
	if err != nil {
		return Definition{}, errors.Wrap(err, "check code")
	}
	if exists {
		return Definition{}, &DuplicateCodeError{Code: in.Code}
	}
	cfg, err := ParseConfiguration(t, in.Config)
	if err != nil {
		return Definition{}, err
	}

	active := true
	if in.Active != nil {
		active = *in.Active
	}
	created, err := m.repo.Create(ctx, Definition{
		Code:        in.Code,
		Type:        t,
		Description: in.Description,
		Config:      cfg,
		ExpiresAt:   in.ExpiresAt,
		Active:      active,
	})
	if err != nil {
		return Definition{}, errors.Wrap(err, "create coupon")
	}
	lg.Info("Coupon created", zap.Int64("coupon_id", created.ID))
	return created, nil
}

// List returns every coupon ordered by id.
func (m *Manager) List(ctx context.Context) ([]Definition, error) {
	defs, err := m.repo.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list coupons")
	}
	return defs, nil
}

// Get returns the coupon with the given id.
func (m *Manager) Get(ctx context.Context, id int64) (Definition, error) {
	def, err := m.repo.FindByID(ctx, id)
	if err != nil {
		return Definition{}, errors.Wrapf(err, "get coupon %d", id)
	}
	return def, nil
}

// Update applies a partial update. A changed code is re-checked for
// uniqueness and a new configuration is validated against the stored type.
func (m *Manager) Update(ctx context.Context, id int64, p Patch) (Definition, error) {
	lg := zctx.From(ctx)
	lg.Info("Updating coupon", zap.Int64("coupon_id", id))

	def, err := m.repo.FindByID(ctx, id)
	if err != nil {
		return Definition{}, errors.Wrapf(err, "get coupon %d", id)
	}

	if p.Code != nil && *p.Code != def.Code {
		exists, err := m.repo.ExistsByCode(ctx, *p.Code)
		if err != nil {
			return Definition{}, errors.Wrap(err, "check code")
		}
		if exists {
			return Definition{}, &DuplicateCodeError{Code: *p.Code}
		}
		def.Code = *p.Code
	}
	if p.Description != nil {
		def.Description = *p.Description
	}
	if p.Config != nil {
		cfg, err := ParseConfiguration(def.Type, p.Config)
		if err != nil {
			return Definition{}, err
		}
		def.Config = cfg
	}
	if p.ExpiresAt != nil {
		def.ExpiresAt = p.ExpiresAt
	}
	if p.Active != nil {
		def.Active = *p.Active
	}

	updated, err := m.repo.Update(ctx, def)
	if err != nil {
		return Definition{}, errors.Wrapf(err, "update coupon %d", id)
	}
	return updated, nil
}

// Delete removes the coupon with the given id.
func (m *Manager) Delete(ctx context.Context, id int64) error {
	zctx.From(ctx).Info("Deleting coupon", zap.Int64("coupon_id", id))
	if err := m.repo.Delete(ctx, id); err != nil {
		return errors.Wrapf(err, "delete coupon %d", id)
	}
	return nil
}
