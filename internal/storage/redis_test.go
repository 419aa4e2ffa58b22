package storage

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"job-match-go/internal/config"
	"job-match-go/internal/types"
)

func newTestRedis(t *testing.T) *Redis {
	t.Helper()
	if testing.Short() {
		t.Skip("跳过集成测试 (-short)")
	}
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("未设置REDIS_ADDR，跳过集成测试")
	}

	r, err := NewRedisAdapter(&config.RedisConfig{Address: addr})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestRedisMatchListRoundTrip(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()
	vid := "test-vid-roundtrip"

	_, err := r.GetMatchList(ctx, vid)
	assert.ErrorIs(t, err, ErrNotFound, "未写入前应是缓存未命中")

	entries := []types.MatchListEntry{{JobID: "job-1", Score: 87}, {JobID: "job-2", Score: 62}}
	require.NoError(t, r.SetMatchList(ctx, vid, entries))

	got, err := r.GetMatchList(ctx, vid)
	require.NoError(t, err)
	assert.Equal(t, entries, got)
}

func TestRedisMatchResultRoundTrip(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()

	result := &types.MatchResult{
		ResumeID:      "resume-it",
		JobID:         "job-it",
		VectorScore:   80,
		FinalScore:    72,
		MatchedSkills: []string{"Go"},
		MissingSkills: []string{},
	}
	require.NoError(t, r.SetMatchResult(ctx, result.ResumeID, result.JobID, result))

	got, err := r.GetMatchResult(ctx, result.ResumeID, result.JobID)
	require.NoError(t, err)
	assert.Equal(t, result, got)
}
