package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/imzleep/abibuilder-sub000/types"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// LedgerRepository handles the vote and bookmark ledgers.
type LedgerRepository struct {
	db *sqlx.DB
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// GetVote returns the user's vote on a build. ok is false when there is none.
func (r *LedgerRepository) GetVote(ctx context.Context, userID, buildID int64) (dir types.VoteDirection, ok bool, err error) {
	const stmt = `SELECT direction FROM votes WHERE user_id = $1 AND build_id = $2`
	var raw string
	if err := r.db.GetContext(ctx, &raw, stmt, userID, buildID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return types.VoteDirection(raw), true, nil
}

// UpsertVote records a vote, flipping the direction of an existing row in
// place.
func (r *LedgerRepository) UpsertVote(ctx context.Context, userID, buildID int64, dir types.VoteDirection) error {
	const stmt = `
		INSERT INTO votes (user_id, build_id, direction, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (user_id, build_id)
		DO UPDATE SET direction = EXCLUDED.direction, updated_at = EXCLUDED.updated_at`
	_, err := r.db.ExecContext(ctx, stmt, userID, buildID, string(dir), time.Now())
	return err
}

func (r *LedgerRepository) DeleteVote(ctx context.Context, userID, buildID int64) error {
	const stmt = `DELETE FROM votes WHERE user_id = $1 AND build_id = $2`
	_, err := r.db.ExecContext(ctx, stmt, userID, buildID)
	return err
}

func (r *LedgerRepository) HasBookmark(ctx context.Context, userID, buildID int64) (bool, error) {
	const stmt = `SELECT EXISTS (SELECT 1 FROM bookmarks WHERE user_id = $1 AND build_id = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, stmt, userID, buildID); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *LedgerRepository) AddBookmark(ctx context.Context, userID, buildID int64) error {
	const stmt = `
		INSERT INTO bookmarks (user_id, build_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, build_id) DO NOTHING`
	_, err := r.db.ExecContext(ctx, stmt, userID, buildID, time.Now())
	return err
}

func (r *LedgerRepository) RemoveBookmark(ctx context.Context, userID, buildID int64) error {
	const stmt = `DELETE FROM bookmarks WHERE user_id = $1 AND build_id = $2`
	_, err := r.db.ExecContext(ctx, stmt, userID, buildID)
	return err
}

// ViewerMarks returns the user's votes and bookmarks across buildIDs in a
// single query.
func (r *LedgerRepository) ViewerMarks(ctx context.Context, userID int64, buildIDs []int64) (map[int64]types.VoteDirection, map[int64]bool, error) {
	votes := make(map[int64]types.VoteDirection)
	bookmarks := make(map[int64]bool)
	if userID < 1 || len(buildIDs) == 0 {
		return votes, bookmarks, nil
	}

	const stmt = `
		SELECT ids.id AS build_id,
			COALESCE(v.direction, '') AS direction,
			(bm.user_id IS NOT NULL) AS bookmarked
		FROM UNNEST($2::bigint[]) AS ids(id)
		LEFT JOIN votes v ON v.build_id = ids.id AND v.user_id = $1
		LEFT JOIN bookmarks bm ON bm.build_id = ids.id AND bm.user_id = $1`

	var marks []struct {
		BuildID    int64  `db:"build_id"`
		Direction  string `db:"direction"`
		Bookmarked bool   `db:"bookmarked"`
	}
	if err := r.db.SelectContext(ctx, &marks, stmt, userID, pq.Array(buildIDs)); err != nil {
		return nil, nil, err
	}

	for _, m := range marks {
		if m.Direction != "" {
			votes[m.BuildID] = types.VoteDirection(m.Direction)
		}
		if m.Bookmarked {
			bookmarks[m.BuildID] = true
		}
	}
	return votes, bookmarks, nil
}

// CountBookmarks returns the number of builds bookmarked by userID.
func (r *LedgerRepository) CountBookmarks(ctx context.Context, userID int64) (int, error) {
	const stmt = `SELECT COUNT(*) FROM bookmarks WHERE user_id = $1`
	var total int
	if err := r.db.GetContext(ctx, &total, stmt, userID); err != nil {
		return 0, err
	}
	return total, nil
}
