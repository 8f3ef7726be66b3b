package collector

import (
	"context"
	"time"

	"match-collector/internal/logger"
)

// DefaultListDelay separates consecutive match-list requests
const DefaultListDelay = 1 * time.Second

// MatchListSource lists a player's recent match ids. *riot.Client implements it.
type MatchListSource interface {
	GetMatchIDs(ctx context.Context, puuid string, count int) ([]string, error)
}

// Indexer expands identities into a de-duplicated set of match ids
type Indexer struct {
	src   MatchListSource
	delay time.Duration
	log   *logger.Entry
}

// NewIndexer waits listDelay after each match-list call returns (0 disables)
func NewIndexer(src MatchListSource, listDelay time.Duration) *Indexer {
	return &Indexer{
		src:   src,
		delay: listDelay,
		log:   logger.Component("indexer"),
	}
}

// Expand issues one match-list call per identity and returns the union of
// the results in first-seen order. A failed identity is logged and skipped;
// only cancellation of ctx returns an error, along with the ids gathered.
func (ix *Indexer) Expand(ctx context.Context, identities []string, perIdentity int) ([]string, error) {
	seen := make(map[string]struct{})
	var matchIDs []string

	for i, puuid := range identities {
		if i > 0 {
			if err := sleepCtx(ctx, ix.delay); err != nil {
				return matchIDs, err
			}
		} else if err := ctx.Err(); err != nil {
			return matchIDs, err
		}

		ids, err := ix.src.GetMatchIDs(ctx, puuid, perIdentity)
		if err != nil {
			if ctx.Err() != nil {
				return matchIDs, ctx.Err()
			}
			ix.log.WithError(err).WithFields(logger.Fields{"puuid": shortID(puuid)}).Warn("match list failed, skipping identity")
			continue
		}

		for _, id := range ids {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			matchIDs = append(matchIDs, id)
		}

		if (i+1)%25 == 0 || i == len(identities)-1 {
			ix.log.WithFields(logger.Fields{
				"identities": i + 1,
				"of":         len(identities),
				"match_ids":  len(matchIDs),
			}).Info("indexing progress")
		}
	}

	return matchIDs, nil
}

func shortID(id string) string {
	if len(id) > 16 {
		return id[:16]
	}
	return id
}
