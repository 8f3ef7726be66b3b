package collector

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"match-collector/internal/logger"
	"match-collector/internal/metrics"
	"match-collector/internal/riot"
)

const (
	DefaultBatchSize     = 3
	DefaultBatchCooldown = 3 * time.Second
	DefaultPauseMin      = 300 * time.Millisecond
	DefaultPauseMax      = 700 * time.Millisecond
)

// MatchSource fetches match summaries and timelines. *riot.Client implements it.
type MatchSource interface {
	GetMatch(ctx context.Context, matchID string) (*riot.Match, error)
	GetTimeline(ctx context.Context, matchID string) (*riot.Timeline, error)
}

// FetchResult pairs a match id with its summary and timeline
type FetchResult struct {
	MatchID  string
	Match    *riot.Match
	Timeline *riot.Timeline
	Err      error
}

// FetcherConfig holds batch pacing for the fetcher
type FetcherConfig struct {
	BatchSize int
	Cooldown  time.Duration // between batches, not after the last
	PauseMin  time.Duration // random pause before each call
	PauseMax  time.Duration
}

// DefaultFetcherConfig returns batches of 3 with a 3s cooldown and 0.3-0.7s pauses
func DefaultFetcherConfig() FetcherConfig {
	return FetcherConfig{
		BatchSize: DefaultBatchSize,
		Cooldown:  DefaultBatchCooldown,
		PauseMin:  DefaultPauseMin,
		PauseMax:  DefaultPauseMax,
	}
}

// Fetcher downloads match/timeline pairs in small sequential batches.
// Within a batch ids run concurrently; the next batch starts only after
// every element of the current one has resolved.
type Fetcher struct {
	src     MatchSource
	cfg     FetcherConfig
	metrics *metrics.Collector
	log     *logger.Entry

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewFetcher(src MatchSource, cfg FetcherConfig, m *metrics.Collector) *Fetcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.PauseMax < cfg.PauseMin {
		cfg.PauseMax = cfg.PauseMin
	}
	return &Fetcher{
		src:     src,
		cfg:     cfg,
		metrics: m,
		log:     logger.Component("fetcher"),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// FetchStats counts what FetchEach did with the ids it was given
type FetchStats struct {
	Fetched     int
	Dropped     int
	KeyRejected int // dropped because the upstream refused the API key (401/403)
}

// FetchAll fetches every id and returns the successful pairs.
// Failed elements are logged and dropped; the error is ctx's if the fetch
// was cut short, and the pairs resolved so far are still returned.
func (f *Fetcher) FetchAll(ctx context.Context, matchIDs []string) ([]FetchResult, error) {
	var out []FetchResult
	_, err := f.FetchEach(ctx, matchIDs, func(batch []FetchResult) error {
		out = append(out, batch...)
		return nil
	})
	return out, err
}

// FetchEach hands each batch's successful pairs to fn as soon as the batch
// resolves. An error from fn or cancellation of ctx stops further batches.
func (f *Fetcher) FetchEach(ctx context.Context, matchIDs []string, fn func(batch []FetchResult) error) (FetchStats, error) {
	var stats FetchStats
	total := len(matchIDs)
	for start := 0; start < total; start += f.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		end := start + f.cfg.BatchSize
		if end > total {
			end = total
		}

		results := f.fetchBatch(ctx, matchIDs[start:end])

		ok := make([]FetchResult, 0, len(results))
		rejected := 0
		for _, r := range results {
			if r.Err != nil {
				if riot.IsAPIKeyError(r.Err) {
					rejected++
				}
				f.log.WithError(r.Err).WithFields(logger.Fields{"match_id": r.MatchID}).Warn("fetch failed, dropping match")
				continue
			}
			ok = append(ok, r)
		}
		stats.Fetched += len(ok)
		stats.Dropped += len(results) - len(ok)
		stats.KeyRejected += rejected
		f.metrics.Match("fetched", len(ok))
		f.metrics.Match("dropped", len(results)-len(ok))
		f.metrics.Match("key_rejected", rejected)

		if err := fn(ok); err != nil {
			return stats, err
		}

		if end < total {
			fmt.Printf("  [Fetch] %d/%d matches resolved\n", end, total)
			if err := sleepCtx(ctx, f.cfg.Cooldown); err != nil {
				return stats, err
			}
		}
	}
	return stats, nil
}

func (f *Fetcher) fetchBatch(ctx context.Context, ids []string) []FetchResult {
	results := make([]FetchResult, len(ids))

	var g errgroup.Group
	for i, id := range ids {
		g.Go(func() error {
			results[i] = f.fetchOne(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// fetchOne fetches the summary, then the timeline, each after a random pause
func (f *Fetcher) fetchOne(ctx context.Context, matchID string) FetchResult {
	res := FetchResult{MatchID: matchID}

	if res.Err = sleepCtx(ctx, f.pause()); res.Err != nil {
		return res
	}
	res.Match, res.Err = f.src.GetMatch(ctx, matchID)
	if res.Err != nil {
		res.Err = fmt.Errorf("match %s: %w", matchID, res.Err)
		return res
	}

	if res.Err = sleepCtx(ctx, f.pause()); res.Err != nil {
		return res
	}
	res.Timeline, res.Err = f.src.GetTimeline(ctx, matchID)
	if res.Err != nil {
		res.Err = fmt.Errorf("timeline %s: %w", matchID, res.Err)
	}
	return res
}

func (f *Fetcher) pause() time.Duration {
	spread := f.cfg.PauseMax - f.cfg.PauseMin
	if spread <= 0 {
		return f.cfg.PauseMin
	}
	f.rngMu.Lock()
	defer f.rngMu.Unlock()
	return f.cfg.PauseMin + time.Duration(f.rng.Int63n(int64(spread)+1))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
