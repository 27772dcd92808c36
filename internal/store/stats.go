package store

import (
	"context"

	"github.com/imzleep/abibuilder-sub000/types"
	"github.com/jmoiron/sqlx"
)

// StatsRepository reads the aggregate counters of the landing page.
type StatsRepository struct {
	db *sqlx.DB
}

// NewStatsRepository creates a new StatsRepository.
func NewStatsRepository(db *sqlx.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

func (r *StatsRepository) LandingStats(ctx context.Context) (types.LandingStats, error) {
	const stmt = `
		SELECT
			(SELECT COUNT(*) FROM builds WHERE status = 'verified') AS builds,
			(SELECT COUNT(*) FROM profiles) AS profiles,
			(SELECT COUNT(*) FROM votes) AS votes`
	var stats types.LandingStats
	if err := r.db.GetContext(ctx, &stats, stmt); err != nil {
		return types.LandingStats{}, err
	}
	return stats, nil
}
