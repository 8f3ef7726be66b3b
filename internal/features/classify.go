package features

import "match-collector/internal/riot"

// Category is the normalized kind of a timeline event
type Category int

const (
	CategoryNone Category = iota
	CategoryChampionKill
	CategoryDragon
	CategoryElder
	CategoryHerald
	CategoryBaron
	CategoryAtakhan
	CategoryGrub
	CategoryOuterTower
	CategoryInnerTower
	CategoryBaseTower
	CategoryNexusTower
	CategoryInhibitor

	numCategories
)

var categoryNames = [...]string{
	CategoryNone:         "none",
	CategoryChampionKill: "champion_kill",
	CategoryDragon:       "dragon",
	CategoryElder:        "elder",
	CategoryHerald:       "herald",
	CategoryBaron:        "baron",
	CategoryAtakhan:      "atakhan",
	CategoryGrub:         "grub",
	CategoryOuterTower:   "outer_tower",
	CategoryInnerTower:   "inner_tower",
	CategoryBaseTower:    "base_tower",
	CategoryNexusTower:   "nexus_tower",
	CategoryInhibitor:    "inhibitor",
}

func (c Category) String() string {
	if c < 0 || c >= numCategories {
		return "unknown"
	}
	return categoryNames[c]
}

// Event types and identifiers as they appear in timeline documents
const (
	eventChampionKill     = "CHAMPION_KILL"
	eventEliteMonsterKill = "ELITE_MONSTER_KILL"
	eventBuildingKill     = "BUILDING_KILL"
	eventPredefinedKill   = "KILL_PREDEFINED_TARGET"

	monsterElder   = "ELDER_DRAGON"
	monsterDragon  = "DRAGON"
	monsterHerald  = "RIFTHERALD"
	monsterBaron   = "BARON_NASHOR"
	monsterAtakhan = "ATAKHAN"
	monsterHorde   = "HORDE"

	buildingTower     = "TOWER_BUILDING"
	buildingInhibitor = "INHIBITOR_BUILDING"
)

var towerCategories = map[string]Category{
	"OUTER_TURRET": CategoryOuterTower,
	"INNER_TURRET": CategoryInnerTower,
	"BASE_TURRET":  CategoryBaseTower,
	"NEXUS_TURRET": CategoryNexusTower,
}

// ClassifyEvent maps an event to its category and the team (100 or 200)
// credited with it. teamOf resolves participant ids for champion kills.
// Events that count for nobody return CategoryNone.
func ClassifyEvent(ev riot.Event, teamOf map[int]int) (Category, int) {
	var cat Category
	var team int

	switch ev.Type {
	case eventChampionKill:
		if ev.KillerID == 0 {
			return CategoryNone, 0
		}
		cat, team = CategoryChampionKill, teamOf[ev.KillerID]

	case eventEliteMonsterKill:
		cat, team = monsterCategory(ev), ev.KillerTeamID

	case eventPredefinedKill:
		// Void grubs before they were reported as HORDE monsters
		kind := ev.KillType
		if kind == "" {
			kind = ev.PredefinedTargetID
		}
		if kind != "VOID_GRUB" && kind != "VOID_LARVA" {
			return CategoryNone, 0
		}
		cat, team = CategoryGrub, ev.KillerTeamID
		if team == 0 {
			team = ev.TeamID
		}

	case eventBuildingKill:
		// teamId is the owner of the destroyed building
		switch ev.BuildingType {
		case buildingTower:
			cat = towerCategories[ev.TowerType]
		case buildingInhibitor:
			cat = CategoryInhibitor
		}
		team = opponentOf(ev.TeamID)
	}

	if cat == CategoryNone || (team != 100 && team != 200) {
		return CategoryNone, 0
	}
	return cat, team
}

func monsterCategory(ev riot.Event) Category {
	if ev.MonsterSubType == monsterElder {
		return CategoryElder
	}
	switch ev.MonsterType {
	case monsterElder:
		return CategoryElder
	case monsterDragon:
		return CategoryDragon
	case monsterHerald:
		return CategoryHerald
	case monsterBaron:
		return CategoryBaron
	case monsterAtakhan:
		return CategoryAtakhan
	case monsterHorde:
		return CategoryGrub
	}
	return CategoryNone
}

func opponentOf(team int) int {
	switch team {
	case 100:
		return 200
	case 200:
		return 100
	}
	return 0
}
