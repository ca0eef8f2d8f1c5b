// Package leveling maps accumulated experience points to planet levels and
// the visual attributes derived from them.
package leveling

import "math"

const (
	MinLevel = 1
	MaxLevel = 10

	// DefaultBaseSize is the planet size at level zero.
	DefaultBaseSize = 0.5

	levelExponent = 0.6
	xpPerStep     = 100.0

	// absorbs float error at exact powers such as 3200 XP -> level 8
	epsilon = 1e-9
)

// CalculateLevel returns floor((xp/100)^0.6) clamped to [1,10].
func CalculateLevel(xp int) int {
	if xp <= 0 {
		return MinLevel
	}
	level := int(math.Floor(math.Pow(float64(xp)/xpPerStep, levelExponent) + epsilon))
	return clampLevel(level)
}

// XPForLevel returns the total XP needed to reach level.
func XPForLevel(level int) int {
	if level <= MinLevel {
		return 0
	}
	return int(math.Ceil(math.Pow(float64(level), 1/levelExponent)*xpPerStep - epsilon))
}

// XPForNextLevel returns the total XP needed to reach currentLevel+1.
func XPForNextLevel(currentLevel int) int {
	return XPForLevel(currentLevel + 1)
}

// LevelProgress returns how far xp is between its level and the next, 0-100.
func LevelProgress(xp int) float64 {
	level := CalculateLevel(xp)
	if level >= MaxLevel {
		return 100
	}
	lo := XPForLevel(level)
	hi := XPForLevel(level + 1)

	progress := float64(xp-lo) / float64(hi-lo) * 100
	return math.Max(0, math.Min(100, progress))
}

// XPToNextLevel returns the XP still missing for the next level.
func XPToNextLevel(xp int) int {
	level := CalculateLevel(xp)
	if level >= MaxLevel {
		return 0
	}
	return max(0, XPForLevel(level+1)-xp)
}

// PlanetScale grows the planet 0.15 units per level on top of baseSize.
func PlanetScale(level int, baseSize float64) float64 {
	return baseSize + float64(level)*0.15
}

// GlowIntensity is the aura strength for level.
func GlowIntensity(level int) float64 {
	return 0.3 + float64(level)*0.08
}

// OrbitBrightness brightens the orbit ring with total XP, capped at 1.5.
func OrbitBrightness(xp int) float64 {
	return math.Min(0.5+float64(xp)/5000, 1.5)
}

var planetTitles = map[int]string{
	1:  "Baby Pebble",
	2:  "Dusty Dumpling",
	3:  "Cloudy Berry",
	4:  "Shiny Marble",
	5:  "Mega Marble",
	6:  "Hot Puffy Boy",
	7:  "Gas Wizard",
	8:  "Blazing Champion",
	9:  "Space Guardian",
	10: "Titan of the Stars",
}

// PlanetTitle returns the evolution title for level.
func PlanetTitle(level int) string {
	if title, ok := planetTitles[level]; ok {
		return title
	}
	return planetTitles[MinLevel]
}

// LevelUpInfo describes the effect of adding XP.
type LevelUpInfo struct {
	LeveledUp bool `json:"leveledUp"`
	OldLevel  int  `json:"oldLevel"`
	NewLevel  int  `json:"newLevel"`
	NewXP     int  `json:"newXP"`
}

// WillLevelUp reports whether adding xpToAdd crosses a level boundary.
func WillLevelUp(currentXP, xpToAdd int) bool {
	return CalculateLevel(currentXP+xpToAdd) > CalculateLevel(currentXP)
}

// LevelUp computes the level change caused by adding xpToAdd.
func LevelUp(currentXP, xpToAdd int) LevelUpInfo {
	oldLevel := CalculateLevel(currentXP)
	newXP := currentXP + xpToAdd
	newLevel := CalculateLevel(newXP)

	return LevelUpInfo{
		LeveledUp: newLevel > oldLevel,
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
		NewXP:     newXP,
	}
}

// Snapshot bundles every attribute derived from an XP total.
type Snapshot struct {
	XP              int     `json:"xp"`
	Level           int     `json:"level"`
	Progress        float64 `json:"progress"`
	XPToNext        int     `json:"xpToNext"`
	Scale           float64 `json:"scale"`
	Glow            float64 `json:"glow"`
	OrbitBrightness float64 `json:"orbitBrightness"`
	Title           string  `json:"title"`
}

// SnapshotFor derives a Snapshot from xp.
func SnapshotFor(xp int) Snapshot {
	level := CalculateLevel(xp)
	return Snapshot{
		XP:              xp,
		Level:           level,
		Progress:        LevelProgress(xp),
		XPToNext:        XPToNextLevel(xp),
		Scale:           PlanetScale(level, DefaultBaseSize),
		Glow:            GlowIntensity(level),
		OrbitBrightness: OrbitBrightness(xp),
		Title:           PlanetTitle(level),
	}
}

func clampLevel(level int) int {
	return max(MinLevel, min(level, MaxLevel))
}
