package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/imzleep/abibuilder-sub000/types"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeStatsRepo struct {
	stats types.LandingStats
	err   error
	calls int
}

func (r *fakeStatsRepo) LandingStats(context.Context) (types.LandingStats, error) {
	r.calls++
	return r.stats, r.err
}

type fakeCache struct {
	values map[string]string
	ttl    time.Duration
	getErr error
	setErr error
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: map[string]string{}}
}

func (c *fakeCache) Get(_ context.Context, key string) *redis.StringCmd {
	if c.getErr != nil {
		return redis.NewStringResult("", c.getErr)
	}
	v, ok := c.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (c *fakeCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if c.setErr != nil {
		return redis.NewStatusResult("", c.setErr)
	}
	c.values[key] = string(value.([]byte))
	c.ttl = expiration
	return redis.NewStatusResult("OK", nil)
}

func TestLandingStats_MissThenHit(t *testing.T) {
	repo := &fakeStatsRepo{stats: types.LandingStats{Builds: 12, Profiles: 5, Votes: 40}}
	cache := newFakeCache()
	svc := NewStatsService(repo, cache, nil)

	first := svc.Landing(context.Background())
	second := svc.Landing(context.Background())

	assert.Equal(t, repo.stats, first)
	assert.Equal(t, repo.stats, second)
	assert.Equal(t, 1, repo.calls)
	assert.Equal(t, landingStatsTTL, cache.ttl)

	var cached types.LandingStats
	require.NoError(t, json.Unmarshal([]byte(cache.values[landingStatsKey]), &cached))
	assert.Equal(t, repo.stats, cached)
}

func TestLandingStats_MalformedCacheFallsThrough(t *testing.T) {
	repo := &fakeStatsRepo{stats: types.LandingStats{Builds: 1}}
	cache := newFakeCache()
	cache.values[landingStatsKey] = "{not json"
	svc := NewStatsService(repo, cache, nil)

	assert.Equal(t, repo.stats, svc.Landing(context.Background()))
	assert.Equal(t, 1, repo.calls)
}

func TestLandingStats_CacheFailuresAreLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	repo := &fakeStatsRepo{stats: types.LandingStats{Votes: 3}}
	cache := newFakeCache()
	cache.getErr = errors.New("redis down")
	cache.setErr = errors.New("redis down")
	svc := NewStatsService(repo, cache, zap.New(core))

	assert.Equal(t, repo.stats, svc.Landing(context.Background()))
	assert.Equal(t, 1, logs.FilterMessage("landing stats cache read failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("landing stats cache write failed").Len())
}

func TestLandingStats_StoreFailureDegradesToZero(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	repo := &fakeStatsRepo{err: errors.New("db down")}
	cache := newFakeCache()
	svc := NewStatsService(repo, cache, zap.New(core))

	assert.Equal(t, types.LandingStats{}, svc.Landing(context.Background()))
	assert.Equal(t, 1, logs.FilterMessage("load landing stats").Len())
	assert.Empty(t, cache.values)
}

func TestLandingStats_WithoutCache(t *testing.T) {
	repo := &fakeStatsRepo{stats: types.LandingStats{Profiles: 2}}
	svc := NewStatsService(repo, nil, nil)

	assert.Equal(t, repo.stats, svc.Landing(context.Background()))
	assert.Equal(t, repo.stats, svc.Landing(context.Background()))
	assert.Equal(t, 2, repo.calls)
}
