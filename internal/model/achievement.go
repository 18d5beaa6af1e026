package model

import "time"

// Achievement is a badge a user can unlock once. Points are added to the
// user's XP the first time it is unlocked.
type Achievement struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Points      int       `json:"points"`
	Criteria    string    `json:"criteria"`
	IconURL     string    `json:"iconUrl"`
	Hidden      bool      `json:"hidden"`
	CreatedAt   time.Time `json:"createdAt"`
}
