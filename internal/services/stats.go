package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/imzleep/abibuilder-sub000/types"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	landingStatsKey = "abibuilder:landing-stats"
	landingStatsTTL = 5 * time.Minute
)

// StatsRepository reads aggregate counters.
type StatsRepository interface {
	LandingStats(ctx context.Context) (types.LandingStats, error)
}

// StatsCache is the subset of the redis client used for counters.
type StatsCache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// StatsService serves the landing page counters. They are display-only, so
// every failure degrades to zeroed counters instead of an error.
type StatsService struct {
	repo   StatsRepository
	cache  StatsCache
	logger *zap.Logger
}

// NewStatsService constructs a StatsService. cache may be nil.
func NewStatsService(repo StatsRepository, cache StatsCache, logger *zap.Logger) *StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsService{repo: repo, cache: cache, logger: logger}
}

func (s *StatsService) Landing(ctx context.Context) types.LandingStats {
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, landingStatsKey).Result()
		switch {
		case err == nil:
			var stats types.LandingStats
			if err := json.Unmarshal([]byte(raw), &stats); err == nil {
				return stats
			}
			s.logger.Warn("discarding malformed cached landing stats")
		case !errors.Is(err, redis.Nil):
			s.logger.Warn("landing stats cache read failed", zap.Error(err))
		}
	}

	stats, err := s.repo.LandingStats(ctx)
	if err != nil {
		s.logger.Error("load landing stats", zap.Error(err))
		return types.LandingStats{}
	}

	if s.cache != nil {
		data, _ := json.Marshal(stats)
		if err := s.cache.Set(ctx, landingStatsKey, data, landingStatsTTL).Err(); err != nil {
			s.logger.Warn("landing stats cache write failed", zap.Error(err))
		}
	}
	return stats
}
