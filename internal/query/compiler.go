// Package query compiles listing filters into a typed build predicate.
//
// Compilation is two-phase: auxiliary lookups (usernames, category and
// weapon slugs, streamer sets) run first and their id sets gate the main
// predicate that the store renders to SQL. A lookup that resolves to no
// ids constrains the predicate to an impossible id instead of dropping the
// filter, so an over-restrictive filter yields an empty page.
package query

import (
	"context"
	"strings"

	"github.com/imzleep/abibuilder-sub000/types"
	"go.uber.org/zap"
)

// Scope is the visibility part of a listing predicate.
type Scope struct {
	// Statuses restricts builds to these statuses. Empty means any.
	Statuses []types.BuildStatus

	// VisibleTo widens Statuses with the builds authored by this profile.
	VisibleTo int64

	// OwnerID restricts builds to one author. Zero means any.
	OwnerID int64

	// BookmarkedBy restricts builds to those bookmarked by a user.
	BookmarkedBy int64
}

// PublicScope lists verified builds only.
func PublicScope() Scope {
	return Scope{Statuses: []types.BuildStatus{types.BuildStatusVerified}}
}

// OwnerScope lists the builds of ownerID. allStatuses lifts the verified
// restriction for the owner viewing their own builds.
func OwnerScope(ownerID int64, allStatuses bool) Scope {
	s := Scope{OwnerID: ownerID}
	if !allStatuses {
		s.Statuses = []types.BuildStatus{types.BuildStatusVerified}
	}
	return s
}

// BookmarkScope lists the builds bookmarked by userID as seen by viewerID:
// verified builds plus the viewer's own. allStatuses lifts the restriction
// for moderators.
func BookmarkScope(userID, viewerID int64, allStatuses bool) Scope {
	s := Scope{BookmarkedBy: userID}
	if !allStatuses {
		s.Statuses = []types.BuildStatus{types.BuildStatusVerified}
		s.VisibleTo = viewerID
	}
	return s
}

// ModerationScope lists builds waiting for review.
func ModerationScope() Scope {
	return Scope{Statuses: []types.BuildStatus{types.BuildStatusPending}}
}

// TextMatch is the free-text clause: title OR weapon name OR author.
type TextMatch struct {
	Term string

	// AuthorIDs are the profiles whose username matched Term. The author
	// alternative is only part of the clause when this is non-empty.
	AuthorIDs []int64
}

// Query is a compiled listing predicate plus ordering and page window.
// All restrictions are combined with AND.
type Query struct {
	Scope

	Text *TextMatch

	// WeaponSets each restrict weapon_id to the listed ids.
	WeaponSets [][]int64

	// AuthorSets each restrict user_id to the listed ids.
	AuthorSets [][]int64

	// Tag restricts builds to those whose stored tags contain it.
	Tag string

	Sort   Sort
	Offset int
	Limit  int
}

// WeaponLookup resolves weapon reference data.
type WeaponLookup interface {
	Weapons(ctx context.Context) ([]types.Weapon, error)
	WeaponIDsByCategories(ctx context.Context, categories []string) ([]int64, error)
}

// ProfileLookup resolves usernames and streamer sets.
type ProfileLookup interface {
	MatchUsernames(ctx context.Context, term string) ([]int64, error)
	IDsByUsername(ctx context.Context, username string) ([]int64, error)
	StreamerIDs(ctx context.Context) ([]int64, error)
}

// Compiler turns a FilterSet into a Query.
type Compiler struct {
	weapons  WeaponLookup
	profiles ProfileLookup
	logger   *zap.Logger
}

// NewCompiler returns a compiler resolving slugs through weapons and
// profiles. A nil logger discards lookup failures.
func NewCompiler(weapons WeaponLookup, profiles ProfileLookup, logger *zap.Logger) *Compiler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Compiler{weapons: weapons, profiles: profiles, logger: logger}
}

// Compile resolves every auxiliary lookup of f and returns the predicate
// for scope. Lookup failures are logged and treated as empty matches.
func (c *Compiler) Compile(ctx context.Context, f FilterSet, scope Scope, pageSize int) Query {
	q := Query{Scope: scope, Sort: f.Sort}
	q.Offset, q.Limit = f.Window(pageSize)

	if term := strings.TrimSpace(f.Query); term != "" {
		q.Text = &TextMatch{Term: term}
		ids, err := c.profiles.MatchUsernames(ctx, term)
		if err != nil {
			c.logger.Warn("username lookup failed", zap.String("term", term), zap.Error(err))
		} else {
			q.Text.AuthorIDs = ids
		}
	}

	if category := strings.ToLower(strings.TrimSpace(f.Category)); category != "" && category != All {
		q.WeaponSets = append(q.WeaponSets, c.categoryWeaponIDs(ctx, category))
	}

	if len(f.Weapons) > 0 {
		q.WeaponSets = append(q.WeaponSets, c.weaponIDsBySlug(ctx, f.Weapons))
	}

	if streamer := strings.TrimSpace(f.Streamer); streamer != "" && !isAllStreamers(streamer) {
		ids, err := c.profiles.IDsByUsername(ctx, streamer)
		if err != nil {
			c.logger.Warn("streamer lookup failed", zap.String("streamer", streamer), zap.Error(err))
			ids = nil
		}
		q.AuthorSets = append(q.AuthorSets, orSentinel(ids))
	}

	switch tag := strings.ToLower(strings.TrimSpace(f.Tag)); tag {
	case "", All:
	case TagSlugStreamer:
		// "Streamer Build" is derived from the author, not stored.
		ids, err := c.profiles.StreamerIDs(ctx)
		if err != nil {
			c.logger.Warn("streamer set lookup failed", zap.Error(err))
			ids = nil
		}
		q.AuthorSets = append(q.AuthorSets, orSentinel(ids))
	default:
		q.Tag = TagLabel(tag)
	}

	return q
}

func (c *Compiler) categoryWeaponIDs(ctx context.Context, slug string) []int64 {
	categories := []string{slug}
	if label, ok := CategoryLabel(slug); ok && label != slug {
		categories = append(categories, label)
	}
	ids, err := c.weapons.WeaponIDsByCategories(ctx, categories)
	if err != nil {
		c.logger.Warn("category lookup failed", zap.String("category", slug), zap.Error(err))
		return []int64{sentinelID}
	}
	return orSentinel(ids)
}

func (c *Compiler) weaponIDsBySlug(ctx context.Context, slugs []string) []int64 {
	weapons, err := c.weapons.Weapons(ctx)
	if err != nil {
		c.logger.Warn("weapon lookup failed", zap.Strings("weapons", slugs), zap.Error(err))
		return []int64{sentinelID}
	}

	wanted := make(map[string]struct{}, len(slugs))
	for _, slug := range slugs {
		wanted[WeaponSlug(slug)] = struct{}{}
	}

	var ids []int64
	for _, w := range weapons {
		if _, ok := wanted[WeaponSlug(w.Name)]; ok {
			ids = append(ids, w.ID)
		}
	}
	return orSentinel(ids)
}

// IsSentinel reports whether ids is the impossible-id set produced for a
// filter that matched nothing.
func IsSentinel(ids []int64) bool {
	return len(ids) == 1 && ids[0] == sentinelID
}

func orSentinel(ids []int64) []int64 {
	if len(ids) == 0 {
		return []int64{sentinelID}
	}
	return ids
}

func isAllStreamers(v string) bool {
	return strings.EqualFold(v, All) || strings.EqualFold(v, AllStreamers)
}
