package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/youthhub/internal/apperror"
	"github.com/sakif/youthhub/internal/model"
	"github.com/sakif/youthhub/internal/repository"
)

// UnlockResult reports an unlock and the user's XP afterwards.
type UnlockResult struct {
	Type          Outcome `json:"type"`
	AchievementID string  `json:"achievementId"`
	PointsAwarded int     `json:"pointsAwarded"`
	XP            int     `json:"xp"`
	Level         int     `json:"level"`
}

// AchievementService manages the badge catalogue and unlocks badges for
// users. Deciding WHEN a badge is earned is left to whoever calls Unlock.
type AchievementService struct {
	achievements repository.AchievementRepository
	users        repository.UserRepository
	logger       *slog.Logger
}

func NewAchievementService(
	achievements repository.AchievementRepository,
	users repository.UserRepository,
	logger *slog.Logger,
) *AchievementService {
	return &AchievementService{achievements: achievements, users: users, logger: logger}
}

func (s *AchievementService) List(ctx context.Context) ([]model.Achievement, error) {
	list, err := s.achievements.ListAchievements(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/achievement: listing: %w", err)
	}
	return list, nil
}

func (s *AchievementService) Create(ctx context.Context, a *model.Achievement) error {
	a.Name = strings.TrimSpace(a.Name)
	if a.Name == "" {
		return apperror.ValidationFailed("name", "name is required")
	}
	if a.Points < 0 {
		return apperror.ValidationFailed("points", "points must not be negative")
	}
	if err := s.achievements.CreateAchievement(ctx, a); err != nil {
		return fmt.Errorf("service/achievement: creating %q: %w", a.Name, err)
	}
	s.logger.Info("achievement created", slog.String("achievement_id", a.ID), slog.String("name", a.Name))
	return nil
}

// Unlock adds the achievement to the user's set and its points to the
// user's XP. Unlocking twice is a duplicate and awards nothing.
func (s *AchievementService) Unlock(ctx context.Context, userID, achievementID string) (*UnlockResult, error) {
	a, err := s.achievements.GetAchievement(ctx, achievementID)
	if err != nil {
		return nil, fmt.Errorf("service/achievement: loading %s: %w", achievementID, err)
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/achievement: loading user %s: %w", userID, err)
	}

	saved, changed, err := mutateUser(ctx, s.users, user, func(u *model.User) error {
		if u.HasAchievement(a.ID) {
			return errUnchanged
		}
		u.Achievements = append(u.Achievements, a.ID)
		u.AddXP(a.Points)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("service/achievement: unlocking %s for %s: %w", achievementID, userID, err)
	}

	res := &UnlockResult{AchievementID: a.ID, XP: saved.XP, Level: saved.Level}
	if !changed {
		res.Type = OutcomeDuplicate
		return res, nil
	}
	res.Type = OutcomeSuccess
	res.PointsAwarded = a.Points

	s.logger.Info("achievement unlocked",
		slog.String("user_id", userID),
		slog.String("achievement_id", a.ID),
		slog.Int("points", a.Points),
	)
	return res, nil
}
