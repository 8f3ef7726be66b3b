package collector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexer_UnionWithoutDuplicates(t *testing.T) {
	src := newFakeRiot()
	src.lists["p1"] = []string{"KR_1", "KR_2", "KR_3"}
	src.lists["p2"] = []string{"KR_3", "KR_4", "KR_1"}
	src.lists["p3"] = []string{"KR_2"}

	ids, err := NewIndexer(src, 0).Expand(context.Background(), []string{"p1", "p2", "p3"}, 20)
	require.NoError(t, err)
	assert.Equal(t, []string{"KR_1", "KR_2", "KR_3", "KR_4"}, ids)
	assert.Equal(t, 3, src.listCalls)

	seen := map[string]bool{}
	for _, id := range ids {
		assert.False(t, seen[id], "duplicate %s", id)
		seen[id] = true
	}
}

func TestIndexer_SkipsFailedIdentity(t *testing.T) {
	src := newFakeRiot()
	src.lists["p1"] = []string{"KR_1"}
	src.failList["p2"] = true
	src.lists["p3"] = []string{"KR_9"}

	ids, err := NewIndexer(src, 0).Expand(context.Background(), []string{"p1", "p2", "p3"}, 20)
	require.NoError(t, err)
	assert.Equal(t, []string{"KR_1", "KR_9"}, ids)
}

func TestIndexer_PerIdentityCount(t *testing.T) {
	src := newFakeRiot()
	src.lists["p1"] = []string{"KR_1", "KR_2", "KR_3"}

	ids, err := NewIndexer(src, 0).Expand(context.Background(), []string{"p1"}, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"KR_1", "KR_2"}, ids)
}

func TestIndexer_CancelledContext(t *testing.T) {
	src := newFakeRiot()
	src.lists["p1"] = []string{"KR_1"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewIndexer(src, 0).Expand(ctx, []string{"p1"}, 5)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIndexer_WaitsAfterEachSlowCall(t *testing.T) {
	const delay = 50 * time.Millisecond
	src := newSlowRiot(80 * time.Millisecond)
	src.lists["p1"] = []string{"KR_1"}
	src.lists["p2"] = []string{"KR_2"}
	src.lists["p3"] = []string{"KR_3"}

	_, err := NewIndexer(src, delay).Expand(context.Background(), []string{"p1", "p2", "p3"}, 5)
	require.NoError(t, err)

	gaps := src.gaps()
	require.Len(t, gaps, 2)
	for i, gap := range gaps {
		assert.GreaterOrEqual(t, gap, delay, "gap before call %d", i+2)
	}
}

func TestIndexer_CancelDuringDelay(t *testing.T) {
	src := newFakeRiot()
	src.lists["p1"] = []string{"KR_1"}
	src.lists["p2"] = []string{"KR_2"}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	ids, err := NewIndexer(src, time.Minute).Expand(ctx, []string{"p1", "p2"}, 5)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, []string{"KR_1"}, ids)
	assert.Equal(t, 1, src.listCalls)
}
