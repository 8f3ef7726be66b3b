package db

import (
	"strconv"
	"strings"

	"match-collector/internal/collector"
	"match-collector/internal/features"
)

// featureColumns of timeline_features after match_id and minute
var featureColumns = []string{
	"gold_diff", "kill_diff", "total_kill_diff",
	"dragon_diff", "elder_diff", "herald_diff", "baron_diff", "atakhan_diff", "grub_diff",
	"outer_tower_diff", "inner_tower_diff", "base_tower_diff", "nexus_tower_diff", "inhibitor_diff",
}

func featureColumnDefs() string {
	defs := make([]string, len(featureColumns))
	for i, c := range featureColumns {
		defs[i] = c + " INTEGER NOT NULL"
	}
	return strings.Join(defs, ",\n\t\t\t")
}

func featureArgs(r features.FeatureRow) []interface{} {
	return []interface{}{
		r.MatchID, r.Minute,
		r.GoldDiff, r.KillDiff, r.TotalKillDiff,
		r.DragonDiff, r.ElderDiff, r.HeraldDiff, r.BaronDiff, r.AtakhanDiff, r.GrubDiff,
		r.OuterTowerDiff, r.InnerTowerDiff, r.BaseTowerDiff, r.NexusTowerDiff, r.InhibitorDiff,
	}
}

// matchRecord is one row of the matches table
type matchRecord struct {
	MatchID      string
	GameDuration int64
	MaxMinute    int
}

// unitMatches lists the distinct matches of a unit in first-seen order
func unitMatches(res *collector.UnitResult) []matchRecord {
	maxMinute := make(map[string]int, len(res.Features))
	for _, mf := range res.Features {
		maxMinute[mf.MatchID] = mf.MaxMinute
	}

	seen := make(map[string]struct{})
	var out []matchRecord
	for _, r := range res.Rows {
		if _, dup := seen[r.MatchID]; dup {
			continue
		}
		seen[r.MatchID] = struct{}{}
		out = append(out, matchRecord{MatchID: r.MatchID, GameDuration: r.GameDuration, MaxMinute: maxMinute[r.MatchID]})
	}
	return out
}

// placeholders renders "?, ?, ?" or "$1, $2, $3"
func placeholders(n int, numbered bool) string {
	ph := make([]string, n)
	for i := range ph {
		if numbered {
			ph[i] = "$" + strconv.Itoa(i+1)
		} else {
			ph[i] = "?"
		}
	}
	return strings.Join(ph, ", ")
}

func featureInsertColumns() string {
	return "match_id, minute, " + strings.Join(featureColumns, ", ")
}
