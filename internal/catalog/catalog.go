// Package catalog caches the read-only weapon reference table in process.
package catalog

import (
	"context"
	"slices"
	"sort"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru"
	"github.com/imzleep/abibuilder-sub000/types"
)

const defaultCacheSize = 256

const allWeaponsKey = "weapons"

// WeaponSource is the backing store of the catalog.
type WeaponSource interface {
	Weapons(ctx context.Context) ([]types.Weapon, error)
	WeaponIDsByCategories(ctx context.Context, categories []string) ([]int64, error)
	GetByID(ctx context.Context, id int64) (types.Weapon, error)
	GetByName(ctx context.Context, name string) (types.Weapon, error)
}

// Catalog is an LRU cache in front of a WeaponSource. Errors are never
// cached.
type Catalog struct {
	source WeaponSource
	cache  *lru.Cache
}

// New returns a catalog over source holding up to size entries. A
// non-positive size uses the default.
func New(source WeaponSource, size int) *Catalog {
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, _ := lru.New(size)
	return &Catalog{source: source, cache: cache}
}

// Weapons returns every weapon. The result is a copy the caller may modify.
func (c *Catalog) Weapons(ctx context.Context) ([]types.Weapon, error) {
	if v, ok := c.cache.Get(allWeaponsKey); ok {
		return slices.Clone(v.([]types.Weapon)), nil
	}
	weapons, err := c.source.Weapons(ctx)
	if err != nil {
		return nil, err
	}
	c.cache.Add(allWeaponsKey, slices.Clone(weapons))
	return weapons, nil
}

func (c *Catalog) WeaponIDsByCategories(ctx context.Context, categories []string) ([]int64, error) {
	key := categoryKey(categories)
	if v, ok := c.cache.Get(key); ok {
		return slices.Clone(v.([]int64)), nil
	}
	ids, err := c.source.WeaponIDsByCategories(ctx, categories)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, slices.Clone(ids))
	return ids, nil
}

func (c *Catalog) GetByID(ctx context.Context, id int64) (types.Weapon, error) {
	key := weaponIDKey(id)
	if v, ok := c.cache.Get(key); ok {
		return v.(types.Weapon), nil
	}
	weapon, err := c.source.GetByID(ctx, id)
	if err != nil {
		return types.Weapon{}, err
	}
	c.cache.Add(key, weapon)
	return weapon, nil
}

func (c *Catalog) GetByName(ctx context.Context, name string) (types.Weapon, error) {
	key := "name:" + strings.ToLower(strings.TrimSpace(name))
	if v, ok := c.cache.Get(key); ok {
		return v.(types.Weapon), nil
	}
	weapon, err := c.source.GetByName(ctx, name)
	if err != nil {
		return types.Weapon{}, err
	}
	c.cache.Add(key, weapon)
	c.cache.Add(weaponIDKey(weapon.ID), weapon)
	return weapon, nil
}

// Purge drops every cached entry.
func (c *Catalog) Purge() {
	c.cache.Purge()
}

func categoryKey(categories []string) string {
	sorted := append([]string(nil), categories...)
	sort.Strings(sorted)
	return "category:" + strings.Join(sorted, "|")
}

func weaponIDKey(id int64) string {
	return "id:" + strconv.FormatInt(id, 10)
}
