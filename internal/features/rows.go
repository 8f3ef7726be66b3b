package features

import (
	"strconv"

	"match-collector/internal/riot"
)

// RoleLabels are assigned to each team's participants in array order.
// The server-side teamPosition is not trusted.
var RoleLabels = []string{"TOP", "JUNGLE", "MID", "ADC", "SUPPORT"}

// Row is one participant of a ranked solo match
type Row struct {
	MatchID          string
	GameDuration     int64 // seconds
	PUUID            string
	TeamID           int
	Win              bool
	Role             string
	Champion         string
	OpposingChampion *string // same slot on the other team, nil when that slot is empty
}

// RowHeader is the column layout of the matches table
var RowHeader = []string{
	"matchId", "gameDuration", "playerPuuid", "teamId", "win", "lane", "champion", "enemyLaneChampion",
}

// ExtractRows turns a match summary into one row per participant.
// Matches outside the ranked solo queue produce no rows.
func ExtractRows(m *riot.Match) []Row {
	if m == nil || !m.IsRankedSolo() {
		return nil
	}

	slots := map[int][]riot.Participant{}
	for _, p := range m.Info.Participants {
		if p.TeamID != 100 && p.TeamID != 200 {
			continue
		}
		slots[p.TeamID] = append(slots[p.TeamID], p)
	}

	duration := m.DurationSeconds()
	rows := make([]Row, 0, len(slots[100])+len(slots[200]))
	for _, team := range []int{100, 200} {
		other := 300 - team
		for i, p := range slots[team] {
			row := Row{
				MatchID:      m.MatchID(),
				GameDuration: duration,
				PUUID:        p.PUUID,
				TeamID:       team,
				Win:          p.Win,
				Champion:     p.ChampionName,
			}
			if i < len(RoleLabels) {
				row.Role = RoleLabels[i]
			}
			if i < len(slots[other]) {
				champ := slots[other][i].ChampionName
				row.OpposingChampion = &champ
			}
			rows = append(rows, row)
		}
	}
	return rows
}

// Record renders the row in RowHeader order
func (r Row) Record() []string {
	win := "0"
	if r.Win {
		win = "1"
	}
	opp := ""
	if r.OpposingChampion != nil {
		opp = *r.OpposingChampion
	}
	return []string{
		r.MatchID,
		strconv.FormatInt(r.GameDuration, 10),
		r.PUUID,
		strconv.Itoa(r.TeamID),
		win,
		r.Role,
		r.Champion,
		opp,
	}
}
