package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/imzleep/abibuilder-sub000/types"
	"github.com/jmoiron/sqlx"
)

// WeaponRepository reads the weapon reference table.
type WeaponRepository struct {
	db *sqlx.DB
}

// NewWeaponRepository creates a new WeaponRepository.
func NewWeaponRepository(db *sqlx.DB) *WeaponRepository {
	return &WeaponRepository{db: db}
}

func (r *WeaponRepository) Weapons(ctx context.Context) ([]types.Weapon, error) {
	const stmt = `SELECT id, name, category, image_url FROM weapons ORDER BY name`
	weapons := []types.Weapon{}
	if err := r.db.SelectContext(ctx, &weapons, stmt); err != nil {
		return nil, err
	}
	return weapons, nil
}

// WeaponIDsByCategories returns the ids of weapons whose category is any of
// categories.
func (r *WeaponRepository) WeaponIDsByCategories(ctx context.Context, categories []string) ([]int64, error) {
	if len(categories) == 0 {
		return nil, nil
	}
	stmt, args, err := sqlx.In(`SELECT id FROM weapons WHERE category IN (?) ORDER BY id`, categories)
	if err != nil {
		return nil, err
	}
	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, r.db.Rebind(stmt), args...); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *WeaponRepository) GetByID(ctx context.Context, id int64) (types.Weapon, error) {
	const stmt = `SELECT id, name, category, image_url FROM weapons WHERE id = $1`
	var weapon types.Weapon
	if err := r.db.GetContext(ctx, &weapon, stmt, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Weapon{}, ErrNotFound
		}
		return types.Weapon{}, err
	}
	return weapon, nil
}

// GetByName matches the weapon name case-insensitively.
func (r *WeaponRepository) GetByName(ctx context.Context, name string) (types.Weapon, error) {
	const stmt = `SELECT id, name, category, image_url FROM weapons WHERE LOWER(name) = LOWER($1)`
	var weapon types.Weapon
	if err := r.db.GetContext(ctx, &weapon, stmt, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Weapon{}, ErrNotFound
		}
		return types.Weapon{}, err
	}
	return weapon, nil
}
