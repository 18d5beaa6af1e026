package model

// RankLess is the single leaderboard ordering: xp desc, level desc,
// createdAt asc, then id asc so equal rows still have a stable order.
// Both the top-N view and the neighbourhood view sort with it.
func RankLess(a, b *User) bool {
	if a.XP != b.XP {
		return a.XP > b.XP
	}
	if a.Level != b.Level {
		return a.Level > b.Level
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
