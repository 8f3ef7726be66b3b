package riot

// RankedSoloQueueID is the queue id of ranked solo/duo games
const RankedSoloQueueID = 420

// Durations above this many "seconds" can only be legacy millisecond values
const legacyDurationThreshold = 36000

// LeagueEntry represents one player from /lol/league/v4/entries
type LeagueEntry struct {
	PUUID        string `json:"puuid"`
	SummonerID   string `json:"summonerId,omitempty"`
	QueueType    string `json:"queueType"`
	Tier         string `json:"tier"`
	Rank         string `json:"rank"` // I, II, III, IV
	LeaguePoints int    `json:"leaguePoints"`
	Wins         int    `json:"wins"`
	Losses       int    `json:"losses"`
}

// LeagueList represents the response from the master/grandmaster/challenger league endpoints
type LeagueList struct {
	LeagueID string        `json:"leagueId"`
	Tier     string        `json:"tier"`
	Name     string        `json:"name"`
	Queue    string        `json:"queue"`
	Entries  []LeagueEntry `json:"entries"`
}

// Match represents the response from /lol/match/v5/matches/{matchId}
type Match struct {
	Metadata MatchMetadata `json:"metadata"`
	Info     MatchInfo     `json:"info"`
}

type MatchMetadata struct {
	MatchID      string   `json:"matchId"`
	Participants []string `json:"participants"` // PUUIDs
}

type MatchInfo struct {
	GameCreation     int64         `json:"gameCreation"`
	GameDuration     int64         `json:"gameDuration"`
	GameEndTimestamp int64         `json:"gameEndTimestamp,omitempty"`
	GameVersion      string        `json:"gameVersion"`
	QueueID          int           `json:"queueId"`
	Participants     []Participant `json:"participants"`
	Teams            []Team        `json:"teams"`
}

type Participant struct {
	ParticipantID  int    `json:"participantId"`
	PUUID          string `json:"puuid"`
	TeamID         int    `json:"teamId"`
	ChampionID     int    `json:"championId"`
	ChampionName   string `json:"championName"`
	TeamPosition   string `json:"teamPosition"` // unreliable, not used for role assignment
	Win            bool   `json:"win"`
	Kills          int    `json:"kills"`
	Deaths         int    `json:"deaths"`
	Assists        int    `json:"assists"`
	GoldEarned     int    `json:"goldEarned"`
	ChampLevel     int    `json:"champLevel"`
	TotalMinions   int    `json:"totalMinionsKilled"`
	NeutralMinions int    `json:"neutralMinionsKilled"`
	DamageDealt    int    `json:"totalDamageDealtToChampions"`
	VisionScore    int    `json:"visionScore"`
}

// Team holds the end-of-game objective aggregates for one side
type Team struct {
	TeamID     int        `json:"teamId"`
	Win        bool       `json:"win"`
	Objectives Objectives `json:"objectives"`
}

type Objectives struct {
	Atakhan    Objective `json:"atakhan"`
	Baron      Objective `json:"baron"`
	Champion   Objective `json:"champion"`
	Dragon     Objective `json:"dragon"`
	Horde      Objective `json:"horde"`
	Inhibitor  Objective `json:"inhibitor"`
	RiftHerald Objective `json:"riftHerald"`
	Tower      Objective `json:"tower"`
}

type Objective struct {
	First bool `json:"first"`
	Kills int  `json:"kills"`
}

// MatchID returns the metadata match id
func (m *Match) MatchID() string {
	return m.Metadata.MatchID
}

// IsRankedSolo reports whether the match was played in the ranked solo queue
func (m *Match) IsRankedSolo() bool {
	return m.Info.QueueID == RankedSoloQueueID
}

// DurationSeconds returns the game length in seconds.
// Matches recorded before gameEndTimestamp existed report gameDuration in milliseconds.
func (m *Match) DurationSeconds() int64 {
	d := m.Info.GameDuration
	if m.Info.GameEndTimestamp == 0 && d > legacyDurationThreshold {
		return d / 1000
	}
	return d
}

// TeamOf maps participantId to teamId
func (m *Match) TeamOf() map[int]int {
	teams := make(map[int]int, len(m.Info.Participants))
	for _, p := range m.Info.Participants {
		teams[p.ParticipantID] = p.TeamID
	}
	return teams
}

// Timeline represents the response from /lol/match/v5/matches/{matchId}/timeline
type Timeline struct {
	Metadata MatchMetadata `json:"metadata"`
	Info     TimelineInfo  `json:"info"`
}

type TimelineInfo struct {
	FrameInterval int64                 `json:"frameInterval"`
	Frames        []Frame               `json:"frames"`
	Participants  []TimelineParticipant `json:"participants,omitempty"`
}

type TimelineParticipant struct {
	ParticipantID int    `json:"participantId"`
	PUUID         string `json:"puuid"`
}

type Frame struct {
	Timestamp         int64                       `json:"timestamp"`
	ParticipantFrames map[string]ParticipantFrame `json:"participantFrames"`
	Events            []Event                     `json:"events"`
}

type ParticipantFrame struct {
	ParticipantID       int `json:"participantId"`
	TotalGold           int `json:"totalGold"`
	CurrentGold         int `json:"currentGold"`
	Level               int `json:"level"`
	XP                  int `json:"xp"`
	MinionsKilled       int `json:"minionsKilled"`
	JungleMinionsKilled int `json:"jungleMinionsKilled"`
}

// Event covers every timeline event shape the featurizer reads.
// Fields absent from a given shape decode to their zero value.
type Event struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`

	ParticipantID int `json:"participantId,omitempty"`
	KillerID      int `json:"killerId,omitempty"`
	VictimID      int `json:"victimId,omitempty"`
	KillerTeamID  int `json:"killerTeamId,omitempty"`
	TeamID        int `json:"teamId,omitempty"`

	// ELITE_MONSTER_KILL
	MonsterType    string `json:"monsterType,omitempty"`
	MonsterSubType string `json:"monsterSubType,omitempty"`

	// BUILDING_KILL
	BuildingType string `json:"buildingType,omitempty"`
	TowerType    string `json:"towerType,omitempty"`
	LaneType     string `json:"laneType,omitempty"`

	// KILL_PREDEFINED_TARGET (older patches)
	KillType           string `json:"killType,omitempty"`
	PredefinedTargetID string `json:"predefinedTargetId,omitempty"`

	ItemID int `json:"itemId,omitempty"`
}
