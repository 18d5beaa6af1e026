// Package model defines the data structures used throughout the application.
package model

import (
	"slices"
	"time"
)

// Role is the access level carried in the session token and checked by the
// role gate.
type Role string

const (
	RoleYouth     Role = "jovem"
	RoleAdmin     Role = "administrador"
	RoleEditor    Role = "editor"
	RoleModerator Role = "moderador"
)

// User is a registered account together with its gamification state.
//
// The identity fields (name, email, credential hash, social provider) are
// opaque to the gamification core; it only reads and mutates the XP, level and
// the per-kind collections below.
//
// VERSION:
// Version is an optimistic-concurrency counter. Stores only persist a User if
// the stored version still equals the one that was loaded, and then bump it.
// Two requests that raced on the same user cannot both win.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Provider     string    `json:"provider,omitempty"` // "google" for social accounts
	ProviderID   string    `json:"-"`
	Role         Role      `json:"role"`
	Active       bool      `json:"active"`
	AvatarURL    string    `json:"avatarUrl,omitempty"`
	XP           int       `json:"xp"`
	Level        int       `json:"level"`
	Version      int64     `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`

	Enrollments  map[Kind][]string   `json:"enrollments"`
	Reminders    map[Kind][]Reminder `json:"reminders"`
	CheckIns     []CheckIn           `json:"checkins"`
	Likes        map[Kind][]string   `json:"likes"`
	Achievements []string            `json:"achievements"`
}

// Reminder is one "remember this item" entry. RemindAt is optional.
type Reminder struct {
	TargetID  string     `json:"targetId"`
	RemindAt  *time.Time `json:"remindAt"`
	CreatedAt time.Time  `json:"createdAt"`
}

// CheckIn is an entry in the append-only attendance log. There is at most one
// entry per (Kind, TargetID).
type CheckIn struct {
	Kind       Kind      `json:"kind"`
	TargetID   string    `json:"targetId"`
	XPAwarded  int       `json:"xpAwarded"`
	OccurredAt time.Time `json:"occurredAt"`
}

// NewUser returns a user with the registration defaults: active, youth role,
// zero XP, level 1.
func NewUser(name, email string) *User {
	return &User{
		Name:   name,
		Email:  email,
		Role:   RoleYouth,
		Active: true,
		Level:  LevelForXP(0),
	}
}

// AddXP adjusts XP by delta, clamps at zero, and recomputes the level. It is
// the only code path that changes XP or Level.
func (u *User) AddXP(delta int) {
	u.XP += delta
	if u.XP < 0 {
		u.XP = 0
	}
	u.Level = LevelForXP(u.XP)
}

// IsEnrolled reports whether the user holds a seat in the given offering.
func (u *User) IsEnrolled(kind Kind, offeringID string) bool {
	return slices.Contains(u.Enrollments[kind], offeringID)
}

// AddEnrollment adds offeringID to the kind's enrollment set. It is a no-op
// if already present.
func (u *User) AddEnrollment(kind Kind, offeringID string) {
	if u.IsEnrolled(kind, offeringID) {
		return
	}
	if u.Enrollments == nil {
		u.Enrollments = make(map[Kind][]string)
	}
	u.Enrollments[kind] = append(u.Enrollments[kind], offeringID)
}

// RemoveEnrollment removes offeringID and reports whether it was present.
func (u *User) RemoveEnrollment(kind Kind, offeringID string) bool {
	ids := u.Enrollments[kind]
	i := slices.Index(ids, offeringID)
	if i < 0 {
		return false
	}
	u.Enrollments[kind] = slices.Delete(slices.Clone(ids), i, i+1)
	return true
}

// HasCheckIn reports whether an attendance entry exists for the target.
func (u *User) HasCheckIn(kind Kind, targetID string) bool {
	return slices.ContainsFunc(u.CheckIns, func(c CheckIn) bool {
		return c.Kind == kind && c.TargetID == targetID
	})
}

// ReminderIndex returns the position of the target in the kind's reminder
// list, or -1.
func (u *User) ReminderIndex(kind Kind, targetID string) int {
	return slices.IndexFunc(u.Reminders[kind], func(r Reminder) bool {
		return r.TargetID == targetID
	})
}

// AddReminder appends a reminder entry.
func (u *User) AddReminder(kind Kind, r Reminder) {
	if u.Reminders == nil {
		u.Reminders = make(map[Kind][]Reminder)
	}
	u.Reminders[kind] = append(u.Reminders[kind], r)
}

// RemoveReminderAt drops the reminder at index i of the kind's list.
func (u *User) RemoveReminderAt(kind Kind, i int) {
	u.Reminders[kind] = slices.Delete(slices.Clone(u.Reminders[kind]), i, i+1)
}

// HasLike reports whether the user has liked the target.
func (u *User) HasLike(kind Kind, targetID string) bool {
	return slices.Contains(u.Likes[kind], targetID)
}

// HasAchievement reports whether the achievement is already unlocked.
func (u *User) HasAchievement(achievementID string) bool {
	return slices.Contains(u.Achievements, achievementID)
}

// Clone returns a deep copy. Stores and test fakes hand out clones so callers
// can never mutate persisted state by accident.
func (u *User) Clone() *User {
	c := *u
	c.Enrollments = cloneIDMap(u.Enrollments)
	c.Likes = cloneIDMap(u.Likes)
	if u.Reminders != nil {
		c.Reminders = make(map[Kind][]Reminder, len(u.Reminders))
		for k, v := range u.Reminders {
			c.Reminders[k] = slices.Clone(v)
		}
	}
	c.CheckIns = slices.Clone(u.CheckIns)
	c.Achievements = slices.Clone(u.Achievements)
	return &c
}

func cloneIDMap(m map[Kind][]string) map[Kind][]string {
	if m == nil {
		return nil
	}
	out := make(map[Kind][]string, len(m))
	for k, v := range m {
		out[k] = slices.Clone(v)
	}
	return out
}
