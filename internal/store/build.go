package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/imzleep/abibuilder-sub000/internal/db"
	"github.com/imzleep/abibuilder-sub000/internal/query"
	"github.com/imzleep/abibuilder-sub000/types"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const buildColumns = `
	b.id, b.user_id, b.weapon_id, b.weapon_name, b.weapon_image, b.image_url,
	b.title, b.description, b.build_code, b.price,
	b.vertical_recoil, b.horizontal_recoil, b.ergonomics, b.weapon_stability,
	b.accuracy, b.hipfire_stability, b.effective_range, b.muzzle_velocity,
	b.tags, b.status, b.upvotes, b.downvotes, b.created_at, b.updated_at,
	p.username AS author_username, p.display_name AS author_display_name,
	p.avatar_url AS author_avatar_url, p.is_admin AS author_is_admin,
	p.is_moderator AS author_is_moderator, p.is_streamer AS author_is_streamer,
	p.is_verified AS author_is_verified, p.is_supporter AS author_is_supporter`

const buildFrom = `
	FROM builds b
	JOIN profiles p ON p.id = b.user_id`

var orderColumns = map[query.Field]string{
	query.FieldUpvotes:   "b.upvotes",
	query.FieldCreatedAt: "b.created_at",
	query.FieldPrice:     "b.price",
	query.FieldID:        "b.id",
}

// buildRecord is the flat row shape of a build joined with its author.
type buildRecord struct {
	ID               int64          `db:"id"`
	UserID           int64          `db:"user_id"`
	WeaponID         int64          `db:"weapon_id"`
	WeaponName       string         `db:"weapon_name"`
	WeaponImage      string         `db:"weapon_image"`
	ImageURL         string         `db:"image_url"`
	Title            string         `db:"title"`
	Description      string         `db:"description"`
	BuildCode        string         `db:"build_code"`
	Price            int64          `db:"price"`
	VerticalRecoil   int            `db:"vertical_recoil"`
	HorizontalRecoil int            `db:"horizontal_recoil"`
	Ergonomics       int            `db:"ergonomics"`
	WeaponStability  int            `db:"weapon_stability"`
	Accuracy         int            `db:"accuracy"`
	HipfireStability int            `db:"hipfire_stability"`
	EffectiveRange   int            `db:"effective_range"`
	MuzzleVelocity   int            `db:"muzzle_velocity"`
	Tags             pq.StringArray `db:"tags"`
	Status           string         `db:"status"`
	Upvotes          int            `db:"upvotes"`
	Downvotes        int            `db:"downvotes"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`

	AuthorUsername    string `db:"author_username"`
	AuthorDisplayName string `db:"author_display_name"`
	AuthorAvatarURL   string `db:"author_avatar_url"`
	AuthorIsAdmin     bool   `db:"author_is_admin"`
	AuthorIsModerator bool   `db:"author_is_moderator"`
	AuthorIsStreamer  bool   `db:"author_is_streamer"`
	AuthorIsVerified  bool   `db:"author_is_verified"`
	AuthorIsSupporter bool   `db:"author_is_supporter"`
}

func (r buildRecord) toRow() types.BuildRow {
	return types.BuildRow{
		Build: types.Build{
			ID:          r.ID,
			UserID:      r.UserID,
			WeaponID:    r.WeaponID,
			WeaponName:  r.WeaponName,
			WeaponImage: r.WeaponImage,
			ImageURL:    r.ImageURL,
			Title:       r.Title,
			Description: r.Description,
			BuildCode:   r.BuildCode,
			Price:       r.Price,
			Stats: types.Stats{
				VerticalRecoil:   r.VerticalRecoil,
				HorizontalRecoil: r.HorizontalRecoil,
				Ergonomics:       r.Ergonomics,
				WeaponStability:  r.WeaponStability,
				Accuracy:         r.Accuracy,
				HipfireStability: r.HipfireStability,
				EffectiveRange:   r.EffectiveRange,
				MuzzleVelocity:   r.MuzzleVelocity,
			},
			Tags:      []string(r.Tags),
			Status:    types.BuildStatus(r.Status),
			Upvotes:   r.Upvotes,
			Downvotes: r.Downvotes,
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
		},
		Author: types.Author{
			Username:    r.AuthorUsername,
			DisplayName: r.AuthorDisplayName,
			AvatarURL:   r.AuthorAvatarURL,
			IsAdmin:     r.AuthorIsAdmin,
			IsModerator: r.AuthorIsModerator,
			IsStreamer:  r.AuthorIsStreamer,
			IsVerified:  r.AuthorIsVerified,
			IsSupporter: r.AuthorIsSupporter,
		},
	}
}

// BuildRepository handles persistence for builds.
type BuildRepository struct {
	db *sqlx.DB
}

// NewBuildRepository creates a new BuildRepository.
func NewBuildRepository(db *sqlx.DB) *BuildRepository {
	return &BuildRepository{db: db}
}

// List runs a compiled listing query. It returns one page of rows and the
// number of rows matching the same predicate without paging.
func (r *BuildRepository) List(ctx context.Context, q query.Query) ([]types.BuildRow, int, error) {
	where, args := whereClause(q)

	countQuery, countArgs, err := sqlx.In(`SELECT COUNT(*)`+buildFrom+where, args...)
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := r.db.GetContext(ctx, &total, r.db.Rebind(countQuery), countArgs...); err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []types.BuildRow{}, 0, nil
	}

	pageArgs := append(append([]any{}, args...), q.Limit, q.Offset)
	pageQuery, pageArgs, err := sqlx.In(
		`SELECT`+buildColumns+buildFrom+where+orderClause(q.Sort)+` LIMIT ? OFFSET ?`,
		pageArgs...,
	)
	if err != nil {
		return nil, 0, err
	}

	var records []buildRecord
	if err := r.db.SelectContext(ctx, &records, r.db.Rebind(pageQuery), pageArgs...); err != nil {
		return nil, 0, err
	}

	rows := make([]types.BuildRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, rec.toRow())
	}
	return rows, total, nil
}

func whereClause(q query.Query) (string, []any) {
	var (
		conds []string
		args  []any
	)

	if len(q.Statuses) > 0 {
		statuses := make([]string, 0, len(q.Statuses))
		for _, s := range q.Statuses {
			statuses = append(statuses, string(s))
		}
		if q.VisibleTo > 0 {
			conds = append(conds, "(b.status IN (?) OR b.user_id = ?)")
			args = append(args, statuses, q.VisibleTo)
		} else {
			conds = append(conds, "b.status IN (?)")
			args = append(args, statuses)
		}
	}
	if q.OwnerID > 0 {
		conds = append(conds, "b.user_id = ?")
		args = append(args, q.OwnerID)
	}
	if q.BookmarkedBy > 0 {
		conds = append(conds, "EXISTS (SELECT 1 FROM bookmarks bm WHERE bm.build_id = b.id AND bm.user_id = ?)")
		args = append(args, q.BookmarkedBy)
	}
	if q.Text != nil {
		pattern := query.LikePattern(q.Text.Term)
		if len(q.Text.AuthorIDs) > 0 {
			conds = append(conds, "(b.title ILIKE ? OR b.weapon_name ILIKE ? OR b.user_id IN (?))")
			args = append(args, pattern, pattern, q.Text.AuthorIDs)
		} else {
			conds = append(conds, "(b.title ILIKE ? OR b.weapon_name ILIKE ?)")
			args = append(args, pattern, pattern)
		}
	}
	for _, ids := range q.WeaponSets {
		conds = append(conds, "b.weapon_id IN (?)")
		args = append(args, ids)
	}
	for _, ids := range q.AuthorSets {
		conds = append(conds, "b.user_id IN (?)")
		args = append(args, ids)
	}
	if q.Tag != "" {
		conds = append(conds, "? = ANY(b.tags)")
		args = append(args, q.Tag)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return "\n\tWHERE " + strings.Join(conds, "\n\tAND "), args
}

func orderClause(s query.Sort) string {
	terms := s.Terms()
	parts := make([]string, 0, len(terms))
	for _, term := range terms {
		dir := "ASC"
		if term.Desc {
			dir = "DESC"
		}
		parts = append(parts, fmt.Sprintf("%s %s", orderColumns[term.Field], dir))
	}
	return "\n\tORDER BY " + strings.Join(parts, ", ")
}

// GetRow loads a single build joined with its author.
func (r *BuildRepository) GetRow(ctx context.Context, id int64) (types.BuildRow, error) {
	var rec buildRecord
	err := r.db.GetContext(ctx, &rec, `SELECT`+buildColumns+buildFrom+`
	WHERE b.id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.BuildRow{}, ErrNotFound
		}
		return types.BuildRow{}, err
	}
	return rec.toRow(), nil
}

func (r *BuildRepository) Create(ctx context.Context, build types.Build) (types.Build, error) {
	now := time.Now()
	build.CreatedAt = now
	build.UpdatedAt = now

	const stmt = `
		INSERT INTO builds (
			user_id, weapon_id, weapon_name, weapon_image, image_url,
			title, description, build_code, price,
			vertical_recoil, horizontal_recoil, ergonomics, weapon_stability,
			accuracy, hipfire_stability, effective_range, muzzle_velocity,
			tags, status, upvotes, downvotes, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, 0, 0, $20, $21)
		RETURNING id`
	if err := r.db.QueryRowxContext(
		ctx,
		stmt,
		build.UserID,
		build.WeaponID,
		build.WeaponName,
		build.WeaponImage,
		build.ImageURL,
		build.Title,
		build.Description,
		build.BuildCode,
		build.Price,
		build.Stats.VerticalRecoil,
		build.Stats.HorizontalRecoil,
		build.Stats.Ergonomics,
		build.Stats.WeaponStability,
		build.Stats.Accuracy,
		build.Stats.HipfireStability,
		build.Stats.EffectiveRange,
		build.Stats.MuzzleVelocity,
		tagArray(build.Tags),
		string(build.Status),
		build.CreatedAt,
		build.UpdatedAt,
	).Scan(&build.ID); err != nil {
		return types.Build{}, err
	}
	build.Upvotes = 0
	build.Downvotes = 0
	return build, nil
}

// UpdateContent persists the editable content of a build. Status and vote
// counters are left untouched.
func (r *BuildRepository) UpdateContent(ctx context.Context, build types.Build) (types.Build, error) {
	build.UpdatedAt = time.Now()

	const stmt = `
		UPDATE builds
		SET weapon_id = $1,
			weapon_name = $2,
			weapon_image = $3,
			image_url = $4,
			title = $5,
			description = $6,
			build_code = $7,
			price = $8,
			vertical_recoil = $9,
			horizontal_recoil = $10,
			ergonomics = $11,
			weapon_stability = $12,
			accuracy = $13,
			hipfire_stability = $14,
			effective_range = $15,
			muzzle_velocity = $16,
			tags = $17,
			updated_at = $18
		WHERE id = $19`
	result, err := r.db.ExecContext(
		ctx,
		stmt,
		build.WeaponID,
		build.WeaponName,
		build.WeaponImage,
		build.ImageURL,
		build.Title,
		build.Description,
		build.BuildCode,
		build.Price,
		build.Stats.VerticalRecoil,
		build.Stats.HorizontalRecoil,
		build.Stats.Ergonomics,
		build.Stats.WeaponStability,
		build.Stats.Accuracy,
		build.Stats.HipfireStability,
		build.Stats.EffectiveRange,
		build.Stats.MuzzleVelocity,
		tagArray(build.Tags),
		build.UpdatedAt,
		build.ID,
	)
	if err != nil {
		return types.Build{}, err
	}
	if err := expectAffected(result); err != nil {
		return types.Build{}, err
	}
	return build, nil
}

func (r *BuildRepository) UpdateStatus(ctx context.Context, id int64, status types.BuildStatus) error {
	const stmt = `UPDATE builds SET status = $1, updated_at = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, stmt, string(status), time.Now(), id)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

// Delete removes a build together with its votes and bookmarks in one
// transaction.
func (r *BuildRepository) Delete(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM votes WHERE build_id = $1`, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM bookmarks WHERE build_id = $1`, id); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM builds WHERE id = $1`, id)
		if err != nil {
			return err
		}
		return expectAffected(result)
	})
}

// RecountVotes recomputes the cached counters of a build from the vote
// ledger and returns them.
func (r *BuildRepository) RecountVotes(ctx context.Context, buildID int64) (types.VoteCounts, error) {
	const stmt = `
		UPDATE builds
		SET upvotes = (SELECT COUNT(*) FROM votes WHERE build_id = $1 AND direction = 'up'),
			downvotes = (SELECT COUNT(*) FROM votes WHERE build_id = $1 AND direction = 'down')
		WHERE id = $1
		RETURNING upvotes, downvotes`
	var counts types.VoteCounts
	if err := r.db.GetContext(ctx, &counts, stmt, buildID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.VoteCounts{}, ErrNotFound
		}
		return types.VoteCounts{}, err
	}
	return counts, nil
}

// CountByUser returns the number of builds authored by userID. When
// statuses is non-empty only builds in those statuses are counted.
func (r *BuildRepository) CountByUser(ctx context.Context, userID int64, statuses ...types.BuildStatus) (int, error) {
	q := query.Query{Scope: query.Scope{OwnerID: userID, Statuses: statuses}}
	where, args := whereClause(q)
	countQuery, countArgs, err := sqlx.In(`SELECT COUNT(*) FROM builds b`+where, args...)
	if err != nil {
		return 0, err
	}
	var total int
	if err := r.db.GetContext(ctx, &total, r.db.Rebind(countQuery), countArgs...); err != nil {
		return 0, err
	}
	return total, nil
}

func tagArray(tags []string) pq.StringArray {
	if tags == nil {
		return pq.StringArray{}
	}
	return pq.StringArray(tags)
}

func expectAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
