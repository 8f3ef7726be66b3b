package collector

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"match-collector/internal/riot"
)

// tracingSource wraps fakeRiot and records when each element starts and ends
type tracingSource struct {
	*fakeRiot
	mu     sync.Mutex
	seq    int
	starts map[string]int
	ends   map[string]int
}

func newTracingSource(f *fakeRiot) *tracingSource {
	return &tracingSource{fakeRiot: f, starts: map[string]int{}, ends: map[string]int{}}
}

func (s *tracingSource) GetMatch(ctx context.Context, id string) (*riot.Match, error) {
	s.mu.Lock()
	s.seq++
	s.starts[id] = s.seq
	s.mu.Unlock()
	time.Sleep(5 * time.Millisecond)
	return s.fakeRiot.GetMatch(ctx, id)
}

func (s *tracingSource) GetTimeline(ctx context.Context, id string) (*riot.Timeline, error) {
	tl, err := s.fakeRiot.GetTimeline(ctx, id)
	s.mu.Lock()
	s.seq++
	s.ends[id] = s.seq
	s.mu.Unlock()
	return tl, err
}

func TestFetcher_BatchesAreSequential(t *testing.T) {
	f := newFakeRiot()
	var ids []string
	for i := 1; i <= 7; i++ {
		id := fmt.Sprintf("KR_%d", i)
		f.addMatch(id, riot.RankedSoloQueueID, 5)
		ids = append(ids, id)
	}
	src := newTracingSource(f)

	fetcher := NewFetcher(src, FetcherConfig{BatchSize: 3}, nil)

	var batches [][]string
	stats, err := fetcher.FetchEach(context.Background(), ids, func(batch []FetchResult) error {
		var got []string
		for _, r := range batch {
			got = append(got, r.MatchID)
		}
		batches = append(batches, got)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, FetchStats{Fetched: 7}, stats)

	require.Len(t, batches, 3)
	assert.ElementsMatch(t, ids[0:3], batches[0])
	assert.ElementsMatch(t, ids[3:6], batches[1])
	assert.ElementsMatch(t, ids[6:7], batches[2])

	for b := 1; b < len(batches); b++ {
		for _, prev := range batches[b-1] {
			for _, next := range batches[b] {
				assert.Less(t, src.ends[prev], src.starts[next], "%s started before %s finished", next, prev)
			}
		}
	}
}

func TestFetcher_DropsFailedElements(t *testing.T) {
	f := newFakeRiot()
	f.addMatch("KR_1", riot.RankedSoloQueueID, 5)
	f.addMatch("KR_2", riot.RankedSoloQueueID, 5)
	f.failMatch["KR_2"] = true
	f.addMatch("KR_3", riot.RankedSoloQueueID, 5)
	delete(f.timelines, "KR_3")

	results, err := NewFetcher(f, FetcherConfig{BatchSize: 3}, nil).FetchAll(context.Background(), []string{"KR_1", "KR_2", "KR_3"})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, "KR_1", results[0].MatchID)
	assert.NotNil(t, results[0].Match)
	assert.NotNil(t, results[0].Timeline)
}

func TestFetcher_CooldownBetweenBatchesOnly(t *testing.T) {
	f := newFakeRiot()
	f.addMatch("KR_1", riot.RankedSoloQueueID, 5)
	f.addMatch("KR_2", riot.RankedSoloQueueID, 5)

	fetcher := NewFetcher(f, FetcherConfig{BatchSize: 1, Cooldown: 30 * time.Millisecond}, nil)

	start := time.Now()
	results, err := fetcher.FetchAll(context.Background(), []string{"KR_1", "KR_2"})
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
}

func TestFetcher_CallbackErrorStops(t *testing.T) {
	f := newFakeRiot()
	f.addMatch("KR_1", riot.RankedSoloQueueID, 5)
	f.addMatch("KR_2", riot.RankedSoloQueueID, 5)

	stop := fmt.Errorf("sink full")
	calls := 0
	_, err := NewFetcher(f, FetcherConfig{BatchSize: 1}, nil).FetchEach(context.Background(), []string{"KR_1", "KR_2"},
		func(batch []FetchResult) error {
			calls++
			return stop
		})

	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, f.matchCalls["KR_2"])
}

func TestFetcher_CountsKeyRejections(t *testing.T) {
	f := newFakeRiot()
	f.addMatch("KR_1", riot.RankedSoloQueueID, 5)
	f.addMatch("KR_2", riot.RankedSoloQueueID, 5)
	f.failMatch["KR_3"] = true

	fetcher := NewFetcher(f, FetcherConfig{BatchSize: 3}, nil)
	stats, err := fetcher.FetchEach(context.Background(), []string{"KR_1", "KR_3"}, func([]FetchResult) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, FetchStats{Fetched: 1, Dropped: 1}, stats, "a 404 is not a key rejection")

	f.rejectKey = true
	stats, err = fetcher.FetchEach(context.Background(), []string{"KR_1", "KR_2"}, func([]FetchResult) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, FetchStats{Dropped: 2, KeyRejected: 2}, stats)
}

func TestFetcher_FetchAllReturnsCancellation(t *testing.T) {
	f := newFakeRiot()
	f.addMatch("KR_1", riot.RankedSoloQueueID, 5)
	f.addMatch("KR_2", riot.RankedSoloQueueID, 5)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	results, err := NewFetcher(f, FetcherConfig{BatchSize: 1, Cooldown: time.Minute}, nil).
		FetchAll(ctx, []string{"KR_1", "KR_2"})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	require.Len(t, results, 1)
	assert.Equal(t, "KR_1", results[0].MatchID)
}

func TestFetcher_PauseWithinBounds(t *testing.T) {
	fetcher := NewFetcher(newFakeRiot(), DefaultFetcherConfig(), nil)
	for i := 0; i < 100; i++ {
		p := fetcher.pause()
		assert.GreaterOrEqual(t, p, DefaultPauseMin)
		assert.LessOrEqual(t, p, DefaultPauseMax)
	}
}
