package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/imzleep/abibuilder-sub000/internal/query"
	"github.com/imzleep/abibuilder-sub000/types"
	"github.com/jmoiron/sqlx"
)

const profileColumns = `
	id, username, email, display_name, avatar_url, bio,
	is_admin, is_moderator, is_streamer, is_verified, is_supporter,
	username_changed_at, password_hash, created_at, updated_at`

// ProfileRepository handles persistence for profiles.
type ProfileRepository struct {
	db *sqlx.DB
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) GetByID(ctx context.Context, id int64) (types.Profile, error) {
	return r.getOne(ctx, `SELECT`+profileColumns+` FROM profiles WHERE id = $1`, id)
}

// GetByUsername matches the username case-insensitively.
func (r *ProfileRepository) GetByUsername(ctx context.Context, username string) (types.Profile, error) {
	return r.getOne(ctx, `SELECT`+profileColumns+` FROM profiles WHERE LOWER(username) = LOWER($1)`, username)
}

func (r *ProfileRepository) getOne(ctx context.Context, stmt string, args ...any) (types.Profile, error) {
	var profile types.Profile
	if err := r.db.GetContext(ctx, &profile, stmt, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Profile{}, ErrNotFound
		}
		return types.Profile{}, err
	}
	return profile, nil
}

// MatchUsernames returns the ids of profiles whose username contains term,
// ignoring case.
func (r *ProfileRepository) MatchUsernames(ctx context.Context, term string) ([]int64, error) {
	const stmt = `SELECT id FROM profiles WHERE username ILIKE $1 ORDER BY id`
	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, stmt, query.LikePattern(term)); err != nil {
		return nil, err
	}
	return ids, nil
}

// IDsByUsername returns the id of the profile with exactly this username,
// ignoring case. The result is empty when nobody matches.
func (r *ProfileRepository) IDsByUsername(ctx context.Context, username string) ([]int64, error) {
	const stmt = `SELECT id FROM profiles WHERE LOWER(username) = LOWER($1)`
	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, stmt, username); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *ProfileRepository) StreamerIDs(ctx context.Context) ([]int64, error) {
	const stmt = `SELECT id FROM profiles WHERE is_streamer ORDER BY id`
	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, stmt); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *ProfileRepository) ListStreamers(ctx context.Context) ([]types.Profile, error) {
	profiles := []types.Profile{}
	stmt := `SELECT` + profileColumns + ` FROM profiles WHERE is_streamer ORDER BY LOWER(username)`
	if err := r.db.SelectContext(ctx, &profiles, stmt); err != nil {
		return nil, err
	}
	return profiles, nil
}

func (r *ProfileRepository) Create(ctx context.Context, profile types.Profile) (types.Profile, error) {
	now := time.Now()
	profile.CreatedAt = now
	profile.UpdatedAt = now

	const stmt = `
		INSERT INTO profiles (username, email, display_name, avatar_url, bio, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	if err := r.db.QueryRowxContext(
		ctx,
		stmt,
		profile.Username,
		profile.Email,
		profile.DisplayName,
		profile.AvatarURL,
		profile.Bio,
		profile.PasswordHash,
		profile.CreatedAt,
		profile.UpdatedAt,
	).Scan(&profile.ID); err != nil {
		if isUniqueViolation(err) {
			return types.Profile{}, ErrConflict
		}
		return types.Profile{}, err
	}
	return profile, nil
}

// Update persists the self-service fields of a profile. Role flags are
// written only by UpdateRoles.
func (r *ProfileRepository) Update(ctx context.Context, profile types.Profile) (types.Profile, error) {
	profile.UpdatedAt = time.Now()

	const stmt = `
		UPDATE profiles
		SET username = $1,
			display_name = $2,
			avatar_url = $3,
			bio = $4,
			username_changed_at = $5,
			updated_at = $6
		WHERE id = $7`
	result, err := r.db.ExecContext(
		ctx,
		stmt,
		profile.Username,
		profile.DisplayName,
		profile.AvatarURL,
		profile.Bio,
		profile.UsernameChangedAt,
		profile.UpdatedAt,
		profile.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.Profile{}, ErrConflict
		}
		return types.Profile{}, err
	}
	if err := expectAffected(result); err != nil {
		return types.Profile{}, err
	}
	return profile, nil
}

func (r *ProfileRepository) UpdateRoles(ctx context.Context, id int64, roles types.RoleFlags) error {
	const stmt = `
		UPDATE profiles
		SET is_admin = $1,
			is_moderator = $2,
			is_streamer = $3,
			is_verified = $4,
			is_supporter = $5,
			updated_at = $6
		WHERE id = $7`
	result, err := r.db.ExecContext(
		ctx,
		stmt,
		roles.IsAdmin,
		roles.IsModerator,
		roles.IsStreamer,
		roles.IsVerified,
		roles.IsSupporter,
		time.Now(),
		id,
	)
	if err != nil {
		return err
	}
	return expectAffected(result)
}
