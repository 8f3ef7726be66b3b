package collector

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"match-collector/internal/riot"
)

// fakeRiot serves league, match-list, match and timeline documents from memory
type fakeRiot struct {
	mu sync.Mutex

	pages     map[string][][]riot.LeagueEntry // label -> pages (1-based when requested)
	failPage  map[string]int                  // label -> page that returns an error
	apex      map[string][]riot.LeagueEntry
	lists     map[string][]string
	failList  map[string]bool
	matches   map[string]*riot.Match
	timelines map[string]*riot.Timeline
	failMatch map[string]bool
	rejectKey bool // every match call answers 403

	pageCalls  int
	listCalls  int
	matchCalls map[string]int
}

func newFakeRiot() *fakeRiot {
	return &fakeRiot{
		pages:      map[string][][]riot.LeagueEntry{},
		failPage:   map[string]int{},
		apex:       map[string][]riot.LeagueEntry{},
		lists:      map[string][]string{},
		failList:   map[string]bool{},
		matches:    map[string]*riot.Match{},
		timelines:  map[string]*riot.Timeline{},
		failMatch:  map[string]bool{},
		matchCalls: map[string]int{},
	}
}

func (f *fakeRiot) GetLeagueEntries(ctx context.Context, tier, division string, page int) ([]riot.LeagueEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageCalls++

	label := tier + "_" + division
	if f.failPage[label] == page {
		return nil, &riot.StatusError{StatusCode: 500}
	}
	pages := f.pages[label]
	if page > len(pages) {
		return []riot.LeagueEntry{}, nil
	}
	return pages[page-1], nil
}

func (f *fakeRiot) GetApexLeague(ctx context.Context, tier string) (*riot.LeagueList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageCalls++
	return &riot.LeagueList{Tier: tier, Entries: f.apex[tier]}, nil
}

func (f *fakeRiot) GetMatchIDs(ctx context.Context, puuid string, count int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.failList[puuid] {
		return nil, &riot.StatusError{StatusCode: 404}
	}
	ids := f.lists[puuid]
	if len(ids) > count {
		ids = ids[:count]
	}
	return ids, nil
}

func (f *fakeRiot) GetMatch(ctx context.Context, matchID string) (*riot.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.matchCalls[matchID]++
	if f.rejectKey {
		return nil, &riot.StatusError{StatusCode: 403}
	}
	if f.failMatch[matchID] {
		return nil, &riot.StatusError{StatusCode: 404}
	}
	m, ok := f.matches[matchID]
	if !ok {
		return nil, &riot.StatusError{StatusCode: 404}
	}
	return m, nil
}

func (f *fakeRiot) GetTimeline(ctx context.Context, matchID string) (*riot.Timeline, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tl, ok := f.timelines[matchID]
	if !ok {
		return nil, &riot.StatusError{StatusCode: 404}
	}
	return tl, nil
}

// addMatch registers a ranked solo match of durationMin minutes with a usable timeline
func (f *fakeRiot) addMatch(id string, queue int, durationMin int) {
	m := &riot.Match{
		Metadata: riot.MatchMetadata{MatchID: id},
		Info: riot.MatchInfo{
			QueueID:          queue,
			GameDuration:     int64(durationMin * 60),
			GameEndTimestamp: 1700000000000,
		},
	}
	for i := 1; i <= 10; i++ {
		team := 100
		if i > 5 {
			team = 200
		}
		m.Info.Participants = append(m.Info.Participants, riot.Participant{
			ParticipantID: i,
			PUUID:         fmt.Sprintf("%s-p%d", id, i),
			TeamID:        team,
			ChampionName:  "Champ" + strconv.Itoa(i),
		})
	}

	tl := &riot.Timeline{Info: riot.TimelineInfo{FrameInterval: 60000}}
	for i := 0; i <= durationMin; i++ {
		tl.Info.Frames = append(tl.Info.Frames, riot.Frame{Timestamp: int64(i) * 60000})
	}

	f.mu.Lock()
	f.matches[id] = m
	f.timelines[id] = tl
	f.mu.Unlock()
}

func entries(ids ...string) []riot.LeagueEntry {
	out := make([]riot.LeagueEntry, 0, len(ids))
	for _, id := range ids {
		out = append(out, riot.LeagueEntry{PUUID: id})
	}
	return out
}

type callSpan struct {
	start, end time.Time
}

// slowRiot answers league pages and match lists after a fixed latency and
// records when each call started and returned
type slowRiot struct {
	*fakeRiot
	latency time.Duration

	spanMu sync.Mutex
	spans  []callSpan
}

func newSlowRiot(latency time.Duration) *slowRiot {
	return &slowRiot{fakeRiot: newFakeRiot(), latency: latency}
}

func (s *slowRiot) record(start time.Time) {
	s.spanMu.Lock()
	s.spans = append(s.spans, callSpan{start: start, end: time.Now()})
	s.spanMu.Unlock()
}

func (s *slowRiot) GetLeagueEntries(ctx context.Context, tier, division string, page int) ([]riot.LeagueEntry, error) {
	start := time.Now()
	defer s.record(start)
	time.Sleep(s.latency)
	return s.fakeRiot.GetLeagueEntries(ctx, tier, division, page)
}

func (s *slowRiot) GetMatchIDs(ctx context.Context, puuid string, count int) ([]string, error) {
	start := time.Now()
	defer s.record(start)
	time.Sleep(s.latency)
	return s.fakeRiot.GetMatchIDs(ctx, puuid, count)
}

// gaps returns the idle time between each call returning and the next starting
func (s *slowRiot) gaps() []time.Duration {
	s.spanMu.Lock()
	defer s.spanMu.Unlock()
	var out []time.Duration
	for i := 1; i < len(s.spans); i++ {
		out = append(out, s.spans[i].start.Sub(s.spans[i-1].end))
	}
	return out
}
