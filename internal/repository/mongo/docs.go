package mongo

import (
	"time"

	"github.com/sakif/youthhub/internal/model"
)

// Documents mirror the model types with storage field names. Keeping them
// separate means model can change JSON tags without touching stored data.

type reminderDoc struct {
	TargetID  string     `bson:"target_id"`
	RemindAt  *time.Time `bson:"remind_at"`
	CreatedAt time.Time  `bson:"created_at"`
}

type checkInDoc struct {
	Kind       string    `bson:"kind"`
	TargetID   string    `bson:"target_id"`
	XPAwarded  int       `bson:"xp_awarded"`
	OccurredAt time.Time `bson:"occurred_at"`
}

type userDoc struct {
	ID           string                   `bson:"_id"`
	Name         string                   `bson:"name"`
	Email        string                   `bson:"email"`
	PasswordHash string                   `bson:"password_hash"`
	Provider     string                   `bson:"provider"`
	ProviderID   string                   `bson:"provider_id"`
	Role         string                   `bson:"role"`
	Active       bool                     `bson:"active"`
	AvatarURL    string                   `bson:"avatar_url"`
	XP           int                      `bson:"xp"`
	Level        int                      `bson:"level"`
	Version      int64                    `bson:"version"`
	CreatedAt    time.Time                `bson:"created_at"`
	UpdatedAt    time.Time                `bson:"updated_at"`
	Enrollments  map[string][]string      `bson:"enrollments"`
	Reminders    map[string][]reminderDoc `bson:"reminders"`
	CheckIns     []checkInDoc             `bson:"checkin_history"`
	Likes        map[string][]string      `bson:"likes"`
	Achievements []string                 `bson:"achievements"`
}

func newUserDoc(u *model.User) *userDoc {
	d := &userDoc{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Provider:     u.Provider,
		ProviderID:   u.ProviderID,
		Role:         string(u.Role),
		Active:       u.Active,
		AvatarURL:    u.AvatarURL,
		XP:           u.XP,
		Level:        u.Level,
		Version:      u.Version,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
		Enrollments:  map[string][]string{},
		Reminders:    map[string][]reminderDoc{},
		CheckIns:     []checkInDoc{},
		Likes:        map[string][]string{},
		Achievements: append([]string{}, u.Achievements...),
	}
	for k, ids := range u.Enrollments {
		d.Enrollments[string(k)] = append([]string{}, ids...)
	}
	for k, ids := range u.Likes {
		d.Likes[string(k)] = append([]string{}, ids...)
	}
	for k, rs := range u.Reminders {
		docs := make([]reminderDoc, 0, len(rs))
		for _, r := range rs {
			docs = append(docs, reminderDoc{TargetID: r.TargetID, RemindAt: r.RemindAt, CreatedAt: r.CreatedAt})
		}
		d.Reminders[string(k)] = docs
	}
	for _, c := range u.CheckIns {
		d.CheckIns = append(d.CheckIns, checkInDoc{
			Kind: string(c.Kind), TargetID: c.TargetID, XPAwarded: c.XPAwarded, OccurredAt: c.OccurredAt,
		})
	}
	return d
}

func (d *userDoc) model() *model.User {
	u := &model.User{
		ID:           d.ID,
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Provider:     d.Provider,
		ProviderID:   d.ProviderID,
		Role:         model.Role(d.Role),
		Active:       d.Active,
		AvatarURL:    d.AvatarURL,
		XP:           d.XP,
		Level:        d.Level,
		Version:      d.Version,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
		Enrollments:  map[model.Kind][]string{},
		Reminders:    map[model.Kind][]model.Reminder{},
		CheckIns:     []model.CheckIn{},
		Likes:        map[model.Kind][]string{},
		Achievements: append([]string{}, d.Achievements...),
	}
	for k, ids := range d.Enrollments {
		u.Enrollments[model.Kind(k)] = ids
	}
	for k, ids := range d.Likes {
		u.Likes[model.Kind(k)] = ids
	}
	for k, docs := range d.Reminders {
		rs := make([]model.Reminder, 0, len(docs))
		for _, r := range docs {
			rs = append(rs, model.Reminder{TargetID: r.TargetID, RemindAt: r.RemindAt, CreatedAt: r.CreatedAt})
		}
		u.Reminders[model.Kind(k)] = rs
	}
	for _, c := range d.CheckIns {
		u.CheckIns = append(u.CheckIns, model.CheckIn{
			Kind: model.Kind(c.Kind), TargetID: c.TargetID, XPAwarded: c.XPAwarded, OccurredAt: c.OccurredAt,
		})
	}
	return u
}

type offeringDoc struct {
	ID          string     `bson:"_id"`
	Kind        string     `bson:"kind"`
	Title       string     `bson:"title"`
	Description string     `bson:"description"`
	Status      string     `bson:"status"`
	Capacity    *int       `bson:"capacity"` // null = unlimited
	SeatsTaken  int        `bson:"seats_taken"`
	XPReward    int        `bson:"xp_reward"`
	LikesCount  int        `bson:"likes_count"`
	StartsAt    *time.Time `bson:"starts_at,omitempty"`
	EndsAt      *time.Time `bson:"ends_at,omitempty"`
	CreatedAt   time.Time  `bson:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at"`
}

func newOfferingDoc(o *model.Offering) *offeringDoc {
	return &offeringDoc{
		ID:          o.ID,
		Kind:        string(o.Kind),
		Title:       o.Title,
		Description: o.Description,
		Status:      string(o.State),
		Capacity:    o.Capacity,
		SeatsTaken:  o.SeatsTaken,
		XPReward:    o.XPReward,
		LikesCount:  o.LikesCount,
		StartsAt:    o.StartsAt,
		EndsAt:      o.EndsAt,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
}

func (d *offeringDoc) model() *model.Offering {
	return &model.Offering{
		ID:          d.ID,
		Kind:        model.Kind(d.Kind),
		Title:       d.Title,
		Description: d.Description,
		State:       model.LifecycleState(d.Status),
		Capacity:    d.Capacity,
		SeatsTaken:  d.SeatsTaken,
		XPReward:    d.XPReward,
		LikesCount:  d.LikesCount,
		StartsAt:    d.StartsAt,
		EndsAt:      d.EndsAt,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

type achievementDoc struct {
	ID          string    `bson:"_id"`
	Name        string    `bson:"name"`
	Description string    `bson:"description"`
	Category    string    `bson:"category"`
	Points      int       `bson:"points"`
	Criteria    string    `bson:"criteria"`
	IconURL     string    `bson:"icon_url"`
	Hidden      bool      `bson:"hidden"`
	CreatedAt   time.Time `bson:"created_at"`
}

func (d *achievementDoc) model() *model.Achievement {
	return &model.Achievement{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Category:    d.Category,
		Points:      d.Points,
		Criteria:    d.Criteria,
		IconURL:     d.IconURL,
		Hidden:      d.Hidden,
		CreatedAt:   d.CreatedAt,
	}
}
