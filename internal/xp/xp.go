// Package xp holds the experience-point arithmetic: how much a completion
// is worth and what level a total maps to.
package xp

// DefaultPerCompletion is awarded when a habit has no recognized difficulty.
const DefaultPerCompletion = 10

var difficultyXP = map[string]int{
	"easy":   5,
	"medium": 10,
	"hard":   20,
}

// ForDifficulty returns the XP earned per completion for a difficulty
// level. The value is fixed on the habit at creation time.
func ForDifficulty(difficulty string) int {
	if v, ok := difficultyXP[difficulty]; ok {
		return v
	}
	return DefaultPerCompletion
}

// Level derives a user's level from total XP. Zero XP is level 0; the
// first point of XP puts a user at level 1, with another level every
// 100 XP after that.
func Level(totalXP int) int {
	if totalXP <= 0 {
		return 0
	}
	return totalXP/100 + 1
}
