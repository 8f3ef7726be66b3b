package features

import (
	"fmt"
	"sort"
	"strconv"

	"match-collector/internal/riot"
)

const msPerMinute = 60000

// FeatureRow holds team 100 minus team 200 differentials at one minute.
// Gold and kills describe the frame for that minute; every other column
// counts all events up to and including the minute mark.
type FeatureRow struct {
	MatchID        string
	Minute         int
	GoldDiff       int
	KillDiff       int
	TotalKillDiff  int
	DragonDiff     int
	ElderDiff      int
	HeraldDiff     int
	BaronDiff      int
	AtakhanDiff    int
	GrubDiff       int
	OuterTowerDiff int
	InnerTowerDiff int
	BaseTowerDiff  int
	NexusTowerDiff int
	InhibitorDiff  int
}

// MatchFeatures is the per-minute feature series of one match
type MatchFeatures struct {
	MatchID      string
	GameDuration int64 // seconds
	MaxMinute    int
	Rows         []FeatureRow
}

// featureColumns is the fixed per-minute column order
var featureColumns = []string{
	"goldDiff", "killDiff", "totalKillDiff",
	"dragonDiff", "elderDiff", "heraldDiff", "baronDiff", "atakhanDiff", "grubDiff",
	"outerTowerDiff", "innerTowerDiff", "baseTowerDiff", "nexusTowerDiff", "inhibitorDiff",
}

// FeatureHeader is the column layout of the long-format timeline table
var FeatureHeader = append([]string{"matchId", "minute"}, featureColumns...)

type timedEvent struct {
	ts   int64
	cat  Category
	team int
}

// Featurize derives one FeatureRow per minute 0..floor(duration/60).
// Timelines without a positive frame interval or without frames are
// rejected with riot.ErrMalformedDocument.
func Featurize(m *riot.Match, tl *riot.Timeline) (*MatchFeatures, error) {
	if m == nil || tl == nil {
		return nil, fmt.Errorf("featurize: missing match or timeline: %w", riot.ErrMalformedDocument)
	}
	matchID := m.MatchID()
	interval := tl.Info.FrameInterval
	if interval <= 0 {
		return nil, fmt.Errorf("featurize %s: frameInterval=%d: %w", matchID, interval, riot.ErrMalformedDocument)
	}
	frames := tl.Info.Frames
	if len(frames) == 0 {
		return nil, fmt.Errorf("featurize %s: no frames: %w", matchID, riot.ErrMalformedDocument)
	}

	duration := m.DurationSeconds()
	maxMinute := int(duration / 60)
	teamOf := m.TeamOf()

	var cumulative []timedEvent
	for _, f := range frames {
		for _, ev := range f.Events {
			cat, team := ClassifyEvent(ev, teamOf)
			if cat == CategoryNone || cat == CategoryChampionKill {
				continue
			}
			cumulative = append(cumulative, timedEvent{ts: ev.Timestamp, cat: cat, team: team})
		}
	}
	sort.SliceStable(cumulative, func(i, j int) bool {
		return cumulative[i].ts < cumulative[j].ts
	})

	var diff [numCategories]int
	next := 0
	totalKills := 0

	rows := make([]FeatureRow, 0, maxMinute+1)
	for minute := 0; minute <= maxMinute; minute++ {
		cutoff := int64(minute) * msPerMinute
		for next < len(cumulative) && cumulative[next].ts <= cutoff {
			e := cumulative[next]
			diff[e.cat] += teamSign(e.team)
			next++
		}

		frame := &frames[frameIndex(minute, interval, len(frames))]
		kills := frameKillDiff(frame, teamOf)
		totalKills += kills

		rows = append(rows, FeatureRow{
			MatchID:        matchID,
			Minute:         minute,
			GoldDiff:       frameGoldDiff(frame, teamOf),
			KillDiff:       kills,
			TotalKillDiff:  totalKills,
			DragonDiff:     diff[CategoryDragon],
			ElderDiff:      diff[CategoryElder],
			HeraldDiff:     diff[CategoryHerald],
			BaronDiff:      diff[CategoryBaron],
			AtakhanDiff:    diff[CategoryAtakhan],
			GrubDiff:       diff[CategoryGrub],
			OuterTowerDiff: diff[CategoryOuterTower],
			InnerTowerDiff: diff[CategoryInnerTower],
			BaseTowerDiff:  diff[CategoryBaseTower],
			NexusTowerDiff: diff[CategoryNexusTower],
			InhibitorDiff:  diff[CategoryInhibitor],
		})
	}

	return &MatchFeatures{
		MatchID:      matchID,
		GameDuration: duration,
		MaxMinute:    maxMinute,
		Rows:         rows,
	}, nil
}

// frameIndex maps a minute to its frame, clamped to the last frame
func frameIndex(minute int, interval int64, n int) int {
	idx := int64(minute) * msPerMinute / interval
	if idx >= int64(n) {
		return n - 1
	}
	return int(idx)
}

func frameGoldDiff(f *riot.Frame, teamOf map[int]int) int {
	d := 0
	for key, pf := range f.ParticipantFrames {
		pid := pf.ParticipantID
		if pid == 0 {
			pid, _ = strconv.Atoi(key)
		}
		d += teamSign(teamOf[pid]) * pf.TotalGold
	}
	return d
}

func frameKillDiff(f *riot.Frame, teamOf map[int]int) int {
	d := 0
	for _, ev := range f.Events {
		if cat, team := ClassifyEvent(ev, teamOf); cat == CategoryChampionKill {
			d += teamSign(team)
		}
	}
	return d
}

func teamSign(team int) int {
	switch team {
	case 100:
		return 1
	case 200:
		return -1
	}
	return 0
}

func (r FeatureRow) values() []int {
	return []int{
		r.GoldDiff, r.KillDiff, r.TotalKillDiff,
		r.DragonDiff, r.ElderDiff, r.HeraldDiff, r.BaronDiff, r.AtakhanDiff, r.GrubDiff,
		r.OuterTowerDiff, r.InnerTowerDiff, r.BaseTowerDiff, r.NexusTowerDiff, r.InhibitorDiff,
	}
}

// Record renders the row in FeatureHeader order
func (r FeatureRow) Record() []string {
	rec := make([]string, 0, len(FeatureHeader))
	rec = append(rec, r.MatchID, strconv.Itoa(r.Minute))
	for _, v := range r.values() {
		rec = append(rec, strconv.Itoa(v))
	}
	return rec
}

// WideHeader is the one-row-per-match layout: matchId, gameDuration,
// maxMinute, then every feature column suffixed _0.._maxMinute.
func WideHeader(maxMinute int) []string {
	h := []string{"matchId", "gameDuration", "maxMinute"}
	for m := 0; m <= maxMinute; m++ {
		suffix := "_" + strconv.Itoa(m)
		for _, c := range featureColumns {
			h = append(h, c+suffix)
		}
	}
	return h
}

// Wide renders the match in WideHeader(maxMinute) order.
// Minutes past the end of the game are left empty.
func (mf *MatchFeatures) Wide(maxMinute int) []string {
	rec := []string{
		mf.MatchID,
		strconv.FormatInt(mf.GameDuration, 10),
		strconv.Itoa(mf.MaxMinute),
	}
	for m := 0; m <= maxMinute; m++ {
		if m >= len(mf.Rows) {
			for range featureColumns {
				rec = append(rec, "")
			}
			continue
		}
		for _, v := range mf.Rows[m].values() {
			rec = append(rec, strconv.Itoa(v))
		}
	}
	return rec
}
