package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"match-collector/internal/riot"
)

func TestDiscovery_PagedStopsOnEmptyPage(t *testing.T) {
	src := newFakeRiot()
	src.pages["GOLD_II"] = [][]riot.LeagueEntry{
		entries("a", "b", "c"),
		entries("c", "d"),
	}

	ids, err := NewDiscovery(src, 0).Collect(context.Background(), TierSpec{Tier: "GOLD", Division: "II"}, 100)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids)
	assert.Equal(t, 3, src.pageCalls)
}

func TestDiscovery_TruncatesToTarget(t *testing.T) {
	src := newFakeRiot()
	src.pages["SILVER_I"] = [][]riot.LeagueEntry{
		entries("a", "b", "c"),
		entries("d", "e", "f"),
		entries("g"),
	}

	ids, err := NewDiscovery(src, 0).Collect(context.Background(), TierSpec{Tier: "SILVER", Division: "I"}, 4)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids)
	assert.Equal(t, 2, src.pageCalls)
}

func TestDiscovery_ApexSingleCall(t *testing.T) {
	src := newFakeRiot()
	src.apex["CHALLENGER"] = entries("x", "y", "z", "x")

	ids, err := NewDiscovery(src, 0).Collect(context.Background(), TierSpec{Tier: "CHALLENGER"}, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y", "z"}, ids)
	assert.Equal(t, 1, src.pageCalls)
}

func TestDiscovery_MissingDivision(t *testing.T) {
	src := newFakeRiot()

	_, err := NewDiscovery(src, 0).Collect(context.Background(), TierSpec{Tier: "GOLD"}, 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, riot.ErrConfiguration))
	assert.Equal(t, 0, src.pageCalls)
}

func TestDiscovery_PageFailureKeepsPartialSet(t *testing.T) {
	src := newFakeRiot()
	src.pages["BRONZE_IV"] = [][]riot.LeagueEntry{entries("a", "b"), entries("c")}
	src.failPage["BRONZE_IV"] = 2

	ids, err := NewDiscovery(src, 0).Collect(context.Background(), TierSpec{Tier: "BRONZE", Division: "IV"}, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestDiscovery_FirstPageFailure(t *testing.T) {
	src := newFakeRiot()
	src.failPage["IRON_I"] = 1

	_, err := NewDiscovery(src, 0).Collect(context.Background(), TierSpec{Tier: "IRON", Division: "I"}, 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, riot.ErrHardFailure))
}

func TestNewTierSpec(t *testing.T) {
	spec, err := NewTierSpec("gm", "II")
	require.NoError(t, err)
	assert.Equal(t, TierSpec{Tier: "GRANDMASTER"}, spec)
	assert.Equal(t, "GRANDMASTER", spec.Label())

	spec, err = NewTierSpec("E", "4")
	require.NoError(t, err)
	assert.Equal(t, "EMERALD_IV", spec.Label())
	assert.Equal(t, "EMERALD IV", spec.String())
}

func TestDiscovery_WaitsAfterEachSlowPage(t *testing.T) {
	const delay = 50 * time.Millisecond
	src := newSlowRiot(80 * time.Millisecond)
	src.pages["GOLD_I"] = [][]riot.LeagueEntry{entries("a"), entries("b")}

	ids, err := NewDiscovery(src, delay).Collect(context.Background(), TierSpec{Tier: "GOLD", Division: "I"}, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	// two pages plus the empty page that ends the walk
	gaps := src.gaps()
	require.Len(t, gaps, 2)
	for i, gap := range gaps {
		assert.GreaterOrEqual(t, gap, delay, "gap before page %d", i+2)
	}
}
