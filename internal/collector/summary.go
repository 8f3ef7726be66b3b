package collector

import (
	"fmt"
	"time"
)

// Summary aggregates the units of a run
type Summary struct {
	RunID       string
	Started     time.Time
	Elapsed     time.Duration
	Units       int
	FailedUnits []string
	Identities  int
	MatchIDs    int
	Duplicates  int
	Fetched     int
	Skipped     int
	Malformed   int
	KeyRejected int // matches dropped because the API key was refused
	MatchRows   int
	FeatureRows int
}

func newSummary(runID string) *Summary {
	return &Summary{RunID: runID, Started: time.Now()}
}

func (s *Summary) add(label string, res *UnitResult, err error) {
	s.Units++
	if err != nil {
		s.FailedUnits = append(s.FailedUnits, label)
	}
	if res == nil {
		return
	}
	s.Identities += len(res.Identities)
	s.MatchIDs += res.MatchIDs
	s.Duplicates += res.Duplicates
	s.Fetched += res.Fetched
	s.Skipped += res.Skipped
	s.Malformed += res.Malformed
	s.KeyRejected += res.Rejected
	s.MatchRows += len(res.Rows)
	s.FeatureRows += res.FeatureRows()
}

// Print writes the end-of-run report to stdout
func (s *Summary) Print() {
	fmt.Printf("\n=== Collection Complete ===\n")
	fmt.Printf("Run: %s\n", s.RunID)
	fmt.Printf("Total time: %s\n", formatDuration(s.Elapsed))
	fmt.Printf("Units: %d (%d failed)\n", s.Units, len(s.FailedUnits))
	for _, label := range s.FailedUnits {
		fmt.Printf("  failed: %s\n", label)
	}
	fmt.Printf("Identities: %d\n", s.Identities)
	fmt.Printf("Match ids: %d (%d already fetched this run)\n", s.MatchIDs, s.Duplicates)
	fmt.Printf("Matches fetched: %d (%d not ranked solo, %d unusable timelines)\n", s.Fetched, s.Skipped, s.Malformed)
	if s.KeyRejected > 0 {
		fmt.Printf("API key rejected: %d matches dropped (401/403)\n", s.KeyRejected)
	}
	fmt.Printf("Match rows: %d\n", s.MatchRows)
	fmt.Printf("Timeline rows: %d\n", s.FeatureRows)

	if s.Fetched > 0 && s.Elapsed > 0 {
		fmt.Printf("Avg time per match: %s\n", formatDuration(s.Elapsed/time.Duration(s.Fetched)))
		fmt.Printf("Throughput: %.1f matches/min\n", float64(s.Fetched)/s.Elapsed.Minutes())
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	} else if d < time.Hour {
		mins := int(d.Minutes())
		secs := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%02ds", mins, secs)
	}
	hours := int(d.Hours())
	mins := int(d.Minutes()) % 60
	secs := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh%02dm%02ds", hours, mins, secs)
}
