package collector

import (
	"context"
	"fmt"
	"time"

	"match-collector/internal/logger"
	"match-collector/internal/riot"
)

// DefaultPageDelay separates consecutive league page requests
const DefaultPageDelay = 1 * time.Second

// LeagueSource lists ranked players. *riot.Client implements it.
type LeagueSource interface {
	GetLeagueEntries(ctx context.Context, tier, division string, page int) ([]riot.LeagueEntry, error)
	GetApexLeague(ctx context.Context, tier string) (*riot.LeagueList, error)
}

// TierSpec names one tier, plus a division for paged tiers
type TierSpec struct {
	Tier     string
	Division string
}

// NewTierSpec normalizes tier (short codes allowed) and division.
// Apex tiers drop any division.
func NewTierSpec(tier, division string) (TierSpec, error) {
	t, err := riot.NormalizeTier(tier)
	if err != nil {
		return TierSpec{}, err
	}
	if riot.IsApexTier(t) {
		return TierSpec{Tier: t}, nil
	}
	d, err := riot.NormalizeDivision(division)
	if err != nil {
		return TierSpec{}, err
	}
	return TierSpec{Tier: t, Division: d}, nil
}

func (s TierSpec) IsApex() bool {
	return riot.IsApexTier(s.Tier)
}

// Validate rejects unknown tiers and paged tiers without a division
func (s TierSpec) Validate() error {
	if _, ok := riot.TierOrder[s.Tier]; !ok {
		return fmt.Errorf("unknown tier %q: %w", s.Tier, riot.ErrConfiguration)
	}
	if s.IsApex() {
		return nil
	}
	if s.Division == "" {
		return fmt.Errorf("tier %s requires a division (I-IV): %w", s.Tier, riot.ErrConfiguration)
	}
	if _, ok := riot.DivisionOrder[s.Division]; !ok {
		return fmt.Errorf("unknown division %q: %w", s.Division, riot.ErrConfiguration)
	}
	return nil
}

// Label is the file/table prefix of the unit, e.g. GOLD_II or CHALLENGER
func (s TierSpec) Label() string {
	if s.Division == "" {
		return s.Tier
	}
	return s.Tier + "_" + s.Division
}

func (s TierSpec) String() string {
	if s.Division == "" {
		return s.Tier
	}
	return s.Tier + " " + s.Division
}

// Discovery gathers player identities for one tier/division
type Discovery struct {
	src   LeagueSource
	delay time.Duration
	log   *logger.Entry
}

// NewDiscovery waits pageDelay after each page call returns before asking
// for the next one (0 disables pacing)
func NewDiscovery(src LeagueSource, pageDelay time.Duration) *Discovery {
	return &Discovery{
		src:   src,
		delay: pageDelay,
		log:   logger.Component("discovery"),
	}
}

// Collect returns up to target distinct identities in first-seen order.
// Apex tiers take one roster call. Paged tiers walk pages from 1 until a page
// comes back empty or target is reached. A failed page ends the walk; the
// error is returned only when nothing was gathered.
func (d *Discovery) Collect(ctx context.Context, spec TierSpec, target int) ([]string, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if target <= 0 {
		return nil, nil
	}

	seen := make(map[string]struct{}, target)
	ids := make([]string, 0, target)
	add := func(entries []riot.LeagueEntry) bool {
		for _, e := range entries {
			if e.PUUID == "" {
				continue
			}
			if _, dup := seen[e.PUUID]; dup {
				continue
			}
			seen[e.PUUID] = struct{}{}
			ids = append(ids, e.PUUID)
			if len(ids) >= target {
				return true
			}
		}
		return false
	}

	if spec.IsApex() {
		league, err := d.src.GetApexLeague(ctx, spec.Tier)
		if err != nil {
			return nil, fmt.Errorf("discover %s: %w", spec, err)
		}
		add(league.Entries)
		d.log.WithFields(logger.Fields{"unit": spec.Label(), "roster": len(league.Entries), "kept": len(ids)}).Info("apex roster loaded")
		return ids, nil
	}

	for page := 1; ; page++ {
		if page > 1 {
			if err := sleepCtx(ctx, d.delay); err != nil {
				return ids, err
			}
		} else if err := ctx.Err(); err != nil {
			return nil, err
		}
		entries, err := d.src.GetLeagueEntries(ctx, spec.Tier, spec.Division, page)
		if err != nil {
			if len(ids) == 0 {
				return nil, fmt.Errorf("discover %s page %d: %w", spec, page, err)
			}
			d.log.WithError(err).WithFields(logger.Fields{"unit": spec.Label(), "page": page}).
				Warn("page failed, keeping identities gathered so far")
			break
		}
		if len(entries) == 0 {
			break
		}
		if add(entries) {
			break
		}
		d.log.WithFields(logger.Fields{"unit": spec.Label(), "page": page, "total": len(ids)}).Debug("page collected")
	}

	d.log.WithFields(logger.Fields{"unit": spec.Label(), "identities": len(ids), "target": target}).Info("discovery complete")
	return ids, nil
}
