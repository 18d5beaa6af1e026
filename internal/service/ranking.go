package service

import (
	"context"
	"fmt"
	"slices"

	"github.com/sakif/youthhub/internal/apperror"
	"github.com/sakif/youthhub/internal/model"
	"github.com/sakif/youthhub/internal/repository"
)

// NeighbourWindow is how many ranked users MyPosition shows on each side.
const NeighbourWindow = 4

// RankEntry is one leaderboard row. Rank is 1-based.
type RankEntry struct {
	Rank      int    `json:"rank"`
	UserID    string `json:"userId"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	XP        int    `json:"xp"`
	Level     int    `json:"level"`
}

// Position is the caller's place on the leaderboard with the users around it.
type Position struct {
	Rank       int         `json:"rank"`
	Total      int         `json:"total"`
	Me         RankEntry   `json:"me"`
	Neighbours []RankEntry `json:"neighbours"`
}

// RankingService projects active users onto the leaderboard. It is
// read-only.
type RankingService struct {
	users repository.UserRepository
}

func NewRankingService(users repository.UserRepository) *RankingService {
	return &RankingService{users: users}
}

// TopN returns the n best-ranked active users. n is clamped to
// [1, MaxListLimit].
func (s *RankingService) TopN(ctx context.Context, n int) ([]RankEntry, error) {
	n = max(1, min(n, MaxListLimit))
	users, err := s.users.TopActiveUsers(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("service/ranking: top %d: %w", n, err)
	}
	sortRanked(users)
	if len(users) > n {
		users = users[:n]
	}
	return entries(users, 0), nil
}

// MyPosition returns the user's rank among all active users and up to
// NeighbourWindow entries above and below it (the slice includes the user).
func (s *RankingService) MyPosition(ctx context.Context, userID string) (*Position, error) {
	users, err := s.users.ListActiveUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/ranking: listing active users: %w", err)
	}
	sortRanked(users)

	i := slices.IndexFunc(users, func(u model.User) bool { return u.ID == userID })
	if i < 0 {
		return nil, apperror.NotFound("ranked user", userID)
	}

	lo := max(0, i-NeighbourWindow)
	hi := min(len(users), i+NeighbourWindow+1)
	window := entries(users[lo:hi], lo)

	return &Position{
		Rank:       i + 1,
		Total:      len(users),
		Me:         window[i-lo],
		Neighbours: window,
	}, nil
}

// sortRanked re-applies model.RankLess so the order does not depend on how a
// store breaks ties.
func sortRanked(users []model.User) {
	slices.SortStableFunc(users, func(a, b model.User) int {
		switch {
		case model.RankLess(&a, &b):
			return -1
		case model.RankLess(&b, &a):
			return 1
		}
		return 0
	})
}

func entries(users []model.User, offset int) []RankEntry {
	out := make([]RankEntry, len(users))
	for i, u := range users {
		out[i] = RankEntry{
			Rank:      offset + i + 1,
			UserID:    u.ID,
			Name:      u.Name,
			AvatarURL: u.AvatarURL,
			XP:        u.XP,
			Level:     u.Level,
		}
	}
	return out
}
