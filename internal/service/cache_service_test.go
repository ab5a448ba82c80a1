package service

import (
	"context"
	"encoding/json"
	"errors"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type memoryCacheRepo struct {
	mu      sync.Mutex
	entries map[string][]byte
	getErr  error
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{entries: make(map[string][]byte)}
}

func (r *memoryCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return r.getErr
	}
	raw, ok := r.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (r *memoryCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key] = raw
	return nil
}

func (r *memoryCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.entries {
		if ok, _ := path.Match(pattern, key); ok {
			delete(r.entries, key)
		}
	}
	return nil
}

func TestCacheServiceDisabledIsMiss(t *testing.T) {
	var nilSvc *CacheService
	hit, err := nilSvc.Get(context.Background(), "k", &struct{}{})
	assert.False(t, hit)
	assert.NoError(t, err)
	assert.NoError(t, nilSvc.Set(context.Background(), "k", 1, 0))
	assert.NoError(t, nilSvc.Invalidate(context.Background(), "*"))

	off := NewCacheService(newMemoryCacheRepo(), nil, 0, nil, false)
	require.NoError(t, off.Set(context.Background(), "k", 1, 0))
	hit, err = off.Get(context.Background(), "k", new(int))
	assert.False(t, hit)
	assert.NoError(t, err)
}

func TestCacheServiceRoundTripAndMetrics(t *testing.T) {
	metrics := NewMetricsService()
	repo := newMemoryCacheRepo()
	svc := NewCacheService(repo, metrics, time.Minute, nil, true)
	ctx := context.Background()

	var out []string
	hit, err := svc.Get(ctx, "courses:list", &out)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, svc.Set(ctx, "courses:list", []string{"a"}, 0))
	hit, err = svc.Get(ctx, "courses:list", &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []string{"a"}, out)

	snap := metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.CacheHits)
	assert.Equal(t, uint64(1), snap.CacheMisses)

	require.NoError(t, svc.Invalidate(ctx, "courses:*"))
	hit, _ = svc.Get(ctx, "courses:list", &out)
	assert.False(t, hit)
}

func TestCacheServiceBackendError(t *testing.T) {
	repo := newMemoryCacheRepo()
	repo.getErr = errors.New("connection refused")
	svc := NewCacheService(repo, nil, 0, nil, true)

	hit, err := svc.Get(context.Background(), "k", new(int))
	assert.False(t, hit)
	assert.Error(t, err)
}

func TestCourseListCacheInvalidatedOnCreate(t *testing.T) {
	env := newLMSEnv(t)
	ctx := context.Background()
	env.courses.cache = NewCacheService(newMemoryCacheRepo(), env.metrics, time.Minute, nil, true)
	teacher := env.user(t, "grace", models.RoleTeacher)
	env.course(t, teacher, "Algebra")

	_, cached, err := env.courses.List(ctx)
	require.NoError(t, err)
	assert.False(t, cached)

	courses, cached, err := env.courses.List(ctx)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Len(t, courses, 1)

	env.course(t, teacher, "Biology")
	courses, cached, err = env.courses.List(ctx)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Len(t, courses, 2)
}

func TestDashboardCacheKey(t *testing.T) {
	assert.Equal(t, "dashboard:STUDENT:u1", dashboardCacheKey(models.Actor{ID: "u1", Role: models.RoleStudent}))
}
