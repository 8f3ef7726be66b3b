package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/google/uuid"

	"match-collector/internal/features"
	"match-collector/internal/logger"
	"match-collector/internal/metrics"
	"match-collector/internal/riot"
)

const (
	DefaultMatchesPerPlayer = 20
	DefaultUnitDelay        = 3 * time.Second

	// Sizing of the run-wide match filter
	defaultExpectedMatches = 500000
	bloomFalsePositiveRate = 0.001
)

// Sink persists the output of one unit
type Sink interface {
	Name() string
	WriteUnit(ctx context.Context, res *UnitResult) error
}

// Archiver keeps the raw documents of every fetched match
type Archiver interface {
	Archive(match *riot.Match, timeline *riot.Timeline) error
}

// IdentityWriter records the identities discovered for a unit
type IdentityWriter interface {
	WriteIdentities(label string, identities []string) error
}

// Notifier is told about a finished run, and once per run about the
// upstream refusing the API key. summary holds the units finished so far.
type Notifier interface {
	NotifyRun(ctx context.Context, summary *Summary) error
	NotifyKeyRejected(ctx context.Context, summary *Summary) error
}

// UnitResult is everything one unit produced
type UnitResult struct {
	RunID      string
	Label      string
	Identities []string
	MatchIDs   int // distinct ids listed for the unit
	Duplicates int // ids already fetched earlier in the run
	Fetched    int
	Skipped    int // not ranked solo
	Malformed  int // unusable timeline
	Rejected   int // dropped on 401/403
	Rows       []features.Row
	Features   []*features.MatchFeatures
	Duration   time.Duration
}

// FeatureRows counts the per-minute rows of the unit
func (r *UnitResult) FeatureRows() int {
	n := 0
	for _, mf := range r.Features {
		n += len(mf.Rows)
	}
	return n
}

// Options tunes the orchestrator
type Options struct {
	MatchesPerPlayer int
	UnitDelay        time.Duration
	ExpectedMatches  uint
}

// Deps wires the pipeline stages and outputs. Only the three stages are required.
type Deps struct {
	Discovery  *Discovery
	Indexer    *Indexer
	Fetcher    *Fetcher
	Sinks      []Sink
	Archiver   Archiver
	Identities IdentityWriter
	Notifier   Notifier
	Metrics    *metrics.Collector
}

// Orchestrator runs plans unit by unit. A failing unit is logged and the
// run moves on; match ids are fetched at most once per run.
type Orchestrator struct {
	deps  Deps
	opts  Options
	runID string
	log   *logger.Entry

	seenMu sync.Mutex
	seen   *bloom.BloomFilter

	keyAlert sync.Once
}

func NewOrchestrator(deps Deps, opts Options) *Orchestrator {
	if opts.MatchesPerPlayer <= 0 {
		opts.MatchesPerPlayer = DefaultMatchesPerPlayer
	}
	if opts.ExpectedMatches == 0 {
		opts.ExpectedMatches = defaultExpectedMatches
	}
	runID := uuid.NewString()
	return &Orchestrator{
		deps:  deps,
		opts:  opts,
		runID: runID,
		log:   logger.Component("orchestrator").WithFields(logger.Fields{"run_id": runID}),
		seen:  bloom.NewWithEstimates(opts.ExpectedMatches, bloomFalsePositiveRate),
	}
}

func (o *Orchestrator) RunID() string {
	return o.runID
}

// Run validates the whole plan, then executes its units in order with
// UnitDelay between them. It returns ctx's error if the run was interrupted.
func (o *Orchestrator) Run(ctx context.Context, plan Plan) (*Summary, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	summary := newSummary(o.runID)
	o.log.WithFields(logger.Fields{"units": len(plan.Units)}).Info("run started")

	for i, u := range plan.Units {
		if i > 0 {
			if err := sleepCtx(ctx, o.opts.UnitDelay); err != nil {
				break
			}
		}

		fmt.Printf("\n[Unit %d/%d] %s (%d players)\n", i+1, len(plan.Units), u.Spec, u.Players)
		res, err := o.RunUnit(ctx, u)
		summary.add(u.Spec.Label(), res, err)
		if err != nil {
			o.log.WithError(err).WithFields(logger.Fields{"unit": u.Spec.Label()}).Error("unit failed")
		}
		o.checkKey(ctx, summary)
		if ctx.Err() != nil {
			break
		}
	}

	return o.finish(ctx, summary)
}

// RunUnit discovers identities for one unit and processes them
func (o *Orchestrator) RunUnit(ctx context.Context, u Unit) (*UnitResult, error) {
	start := time.Now()
	label := u.Spec.Label()

	ids, err := o.deps.Discovery.Collect(ctx, u.Spec, u.Players)
	if err != nil {
		o.deps.Metrics.Unit("failed", time.Since(start))
		return nil, err
	}
	if o.deps.Identities != nil {
		if err := o.deps.Identities.WriteIdentities(label, ids); err != nil {
			o.log.WithError(err).WithFields(logger.Fields{"unit": label}).Warn("failed to save identities")
		}
	}

	return o.process(ctx, label, ids, start)
}

// RunIdentities processes a pre-built identity list as a single unit
func (o *Orchestrator) RunIdentities(ctx context.Context, label string, identities []string) (*Summary, error) {
	if len(identities) == 0 {
		return nil, fmt.Errorf("no identities for %s: %w", label, riot.ErrConfiguration)
	}
	summary := newSummary(o.runID)

	fmt.Printf("\n[Unit 1/1] %s (%d players from list)\n", label, len(identities))
	res, err := o.process(ctx, label, identities, time.Now())
	summary.add(label, res, err)
	if err != nil {
		o.log.WithError(err).WithFields(logger.Fields{"unit": label}).Error("unit failed")
	}
	o.checkKey(ctx, summary)

	return o.finish(ctx, summary)
}

func (o *Orchestrator) process(ctx context.Context, label string, identities []string, start time.Time) (*UnitResult, error) {
	res := &UnitResult{RunID: o.runID, Label: label, Identities: identities}
	log := o.log.WithFields(logger.Fields{"unit": label})

	matchIDs, err := o.deps.Indexer.Expand(ctx, identities, o.opts.MatchesPerPlayer)
	res.MatchIDs = len(matchIDs)
	fresh := o.claim(matchIDs)
	res.Duplicates = len(matchIDs) - len(fresh)

	fmt.Printf("  [Index] %d identities -> %d match ids (%d new this run)\n", len(identities), len(matchIDs), len(fresh))

	if err == nil {
		var stats FetchStats
		stats, err = o.deps.Fetcher.FetchEach(ctx, fresh, func(batch []FetchResult) error {
			for _, r := range batch {
				o.absorb(res, r)
			}
			return nil
		})
		res.Rejected = stats.KeyRejected
		if err == nil && res.Rejected > 0 {
			err = fmt.Errorf("%d matches refused: %w", res.Rejected, riot.ErrKeyRejected)
		}
	}
	res.Duration = time.Since(start)

	// Whatever was gathered is written even when the run is being interrupted
	writeCtx := context.WithoutCancel(ctx)
	for _, s := range o.deps.Sinks {
		if werr := s.WriteUnit(writeCtx, res); werr != nil {
			log.WithError(werr).WithFields(logger.Fields{"sink": s.Name()}).Error("sink write failed")
		}
	}
	o.deps.Metrics.RowsWritten("matches", len(res.Rows))
	o.deps.Metrics.RowsWritten("timeline", res.FeatureRows())

	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	o.deps.Metrics.Unit(outcome, res.Duration)

	log.WithFields(logger.Fields{
		"fetched":      res.Fetched,
		"rows":         len(res.Rows),
		"feature_rows": res.FeatureRows(),
		"malformed":    res.Malformed,
		"skipped":      res.Skipped,
		"rejected":     res.Rejected,
		"duration":     res.Duration.String(),
	}).Info("unit complete")

	return res, err
}

// absorb turns one fetched pair into rows and features
func (o *Orchestrator) absorb(res *UnitResult, r FetchResult) {
	res.Fetched++

	if o.deps.Archiver != nil {
		if err := o.deps.Archiver.Archive(r.Match, r.Timeline); err != nil {
			o.log.WithError(err).WithFields(logger.Fields{"match_id": r.MatchID}).Warn("archive failed")
		}
	}

	rows := features.ExtractRows(r.Match)
	if len(rows) == 0 {
		res.Skipped++
		o.deps.Metrics.Match("skipped", 1)
		return
	}
	res.Rows = append(res.Rows, rows...)

	mf, err := features.Featurize(r.Match, r.Timeline)
	if err != nil {
		res.Malformed++
		o.deps.Metrics.Match("malformed", 1)
		o.log.WithError(err).WithFields(logger.Fields{"match_id": r.MatchID}).Warn("timeline unusable, no features")
		return
	}
	res.Features = append(res.Features, mf)
}

// claim returns the ids not yet fetched in this run and marks them
func (o *Orchestrator) claim(ids []string) []string {
	o.seenMu.Lock()
	defer o.seenMu.Unlock()

	fresh := make([]string, 0, len(ids))
	for _, id := range ids {
		if o.seen.TestOrAddString(id) {
			continue
		}
		fresh = append(fresh, id)
	}
	return fresh
}

// checkKey sends the key-rejected notification the first time the run
// sees a 401/403. The run itself carries on.
func (o *Orchestrator) checkKey(ctx context.Context, summary *Summary) {
	if summary.KeyRejected == 0 || o.deps.Notifier == nil {
		return
	}
	o.keyAlert.Do(func() {
		snapshot := *summary
		snapshot.Elapsed = time.Since(summary.Started)
		if err := o.deps.Notifier.NotifyKeyRejected(context.WithoutCancel(ctx), &snapshot); err != nil {
			o.log.WithError(err).Warn("key rejected notification failed")
		}
	})
}

func (o *Orchestrator) finish(ctx context.Context, summary *Summary) (*Summary, error) {
	summary.Elapsed = time.Since(summary.Started)
	summary.Print()

	if o.deps.Notifier != nil {
		if err := o.deps.Notifier.NotifyRun(context.WithoutCancel(ctx), summary); err != nil {
			o.log.WithError(err).Warn("run notification failed")
		}
	}
	return summary, ctx.Err()
}
