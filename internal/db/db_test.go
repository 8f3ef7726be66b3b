package db

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"match-collector/internal/collector"
	"match-collector/internal/features"
)

func sampleUnit() *collector.UnitResult {
	opp := "Gnar"
	return &collector.UnitResult{
		RunID: "run-1",
		Label: "GOLD_II",
		Rows: []features.Row{
			{MatchID: "KR_1", GameDuration: 1800, PUUID: "p1", TeamID: 100, Win: true, Role: "TOP", Champion: "Aatrox", OpposingChampion: &opp},
			{MatchID: "KR_1", GameDuration: 1800, PUUID: "p6", TeamID: 200, Win: false, Role: "TOP", Champion: "Gnar"},
		},
		Features: []*features.MatchFeatures{
			{MatchID: "KR_1", GameDuration: 120, MaxMinute: 2, Rows: []features.FeatureRow{
				{MatchID: "KR_1", Minute: 0},
				{MatchID: "KR_1", Minute: 1, GoldDiff: 150},
				{MatchID: "KR_1", Minute: 2, GoldDiff: 300, DragonDiff: 1},
			}},
		},
	}
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "?, ?, ?", placeholders(3, false))
	assert.Equal(t, "$1, $2, $3, $4, $5, $6, $7, $8, $9, $10", placeholders(10, true))
}

func TestUnitMatches_DistinctWithMaxMinute(t *testing.T) {
	got := unitMatches(sampleUnit())
	require.Len(t, got, 1)
	assert.Equal(t, matchRecord{MatchID: "KR_1", GameDuration: 1800, MaxMinute: 2}, got[0])
}

func TestUnitBatch_QueuesMatchesFirst(t *testing.T) {
	b := unitBatch(sampleUnit())
	require.Equal(t, 1+2+3, b.Len())

	assert.True(t, strings.HasPrefix(b.QueuedQueries[0].SQL, "INSERT INTO matches"))
	assert.Equal(t, []interface{}{"KR_1", "run-1", "GOLD_II", int64(1800), 2}, b.QueuedQueries[0].Arguments)
	assert.True(t, strings.HasPrefix(b.QueuedQueries[1].SQL, "INSERT INTO participants"))
	assert.Contains(t, b.QueuedQueries[5].SQL, "$16")
	assert.Len(t, b.QueuedQueries[5].Arguments, len(featureColumns)+2)
}

func TestUnitBatch_Empty(t *testing.T) {
	b := unitBatch(&collector.UnitResult{Label: "IRON_IV"})
	assert.Equal(t, 0, b.Len())
}

func TestSQLStore_WriteUnit(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	store := NewSQLStore(sqlDB, "sqlite")

	mock.ExpectBegin()
	mock.ExpectPrepare(regexp.QuoteMeta("INSERT OR IGNORE INTO matches"))
	mock.ExpectExec(regexp.QuoteMeta("INSERT OR IGNORE INTO matches")).
		WithArgs("KR_1", "run-1", "GOLD_II", int64(1800), 2).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectPrepare(regexp.QuoteMeta("INSERT OR IGNORE INTO participants"))
	mock.ExpectExec(regexp.QuoteMeta("INSERT OR IGNORE INTO participants")).
		WithArgs("KR_1", "p1", 100, 1, "TOP", "Aatrox", "Gnar").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT OR IGNORE INTO participants")).
		WithArgs("KR_1", "p6", 200, 0, "TOP", "Gnar", nil).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectPrepare(regexp.QuoteMeta("INSERT OR IGNORE INTO timeline_features"))
	for i := 0; i < 3; i++ {
		mock.ExpectExec(regexp.QuoteMeta("INSERT OR IGNORE INTO timeline_features")).
			WillReturnResult(sqlmock.NewResult(int64(i+1), 1))
	}
	mock.ExpectCommit()

	require.NoError(t, store.WriteUnit(context.Background(), sampleUnit()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_WriteUnitRollsBackOnError(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	store := NewSQLStore(sqlDB, "turso")

	mock.ExpectBegin()
	mock.ExpectPrepare(regexp.QuoteMeta("INSERT OR IGNORE INTO matches"))
	mock.ExpectExec(regexp.QuoteMeta("INSERT OR IGNORE INTO matches")).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err = store.WriteUnit(context.Background(), sampleUnit())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert matches")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_SQLiteIdempotent(t *testing.T) {
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "matches.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.CreateTables(ctx))
	require.NoError(t, store.WriteUnit(ctx, sampleUnit()))
	require.NoError(t, store.WriteUnit(ctx, sampleUnit()))

	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"matches": 1, "participants": 2, "timeline_features": 3}, counts)
}
