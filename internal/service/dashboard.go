package service

import (
	"context"
	"fmt"
	"math"

	"github.com/sakif/youthhub/internal/model"
	"github.com/sakif/youthhub/internal/repository"
)

// Summary is the admin dashboard payload.
type Summary struct {
	Users     UserTotals      `json:"users"`
	Content   ContentTotals   `json:"content"`
	Metrics   Metrics         `json:"metrics"`
	Highlight *model.Offering `json:"highlight"`
}

type UserTotals struct {
	Total int64 `json:"total"`
}

type ContentTotals struct {
	Courses           int64 `json:"courses"`
	Events            int64 `json:"events"`
	Opportunities     int64 `json:"opportunities"`
	TotalAchievements int64 `json:"totalAchievements"`
}

// Metrics holds engagement figures. AverageScore is the mean xp of youth
// accounts, two decimals.
type Metrics struct {
	AverageScore float64 `json:"averageScore"`
}

// DashboardService aggregates platform totals for administrators. Only
// youth accounts count as users; staff are left out of both the total and
// the average.
type DashboardService struct {
	stats repository.StatsRepository
}

func NewDashboardService(stats repository.StatsRepository) *DashboardService {
	return &DashboardService{stats: stats}
}

func (s *DashboardService) Summary(ctx context.Context) (*Summary, error) {
	var (
		sum Summary
		err error
	)
	if sum.Users.Total, err = s.stats.CountUsers(ctx, model.RoleYouth); err != nil {
		return nil, fmt.Errorf("service/dashboard: counting users: %w", err)
	}

	counts := map[model.Kind]*int64{
		model.KindCourse:      &sum.Content.Courses,
		model.KindEvent:       &sum.Content.Events,
		model.KindOpportunity: &sum.Content.Opportunities,
	}
	for _, kind := range model.Kinds() {
		n, err := s.stats.CountOfferings(ctx, kind)
		if err != nil {
			return nil, fmt.Errorf("service/dashboard: counting %s: %w", kind, err)
		}
		*counts[kind] = n
	}
	if sum.Content.TotalAchievements, err = s.stats.CountAchievements(ctx); err != nil {
		return nil, fmt.Errorf("service/dashboard: counting achievements: %w", err)
	}

	avg, ok, err := s.stats.AverageXP(ctx, model.RoleYouth)
	if err != nil {
		return nil, fmt.Errorf("service/dashboard: averaging xp: %w", err)
	}
	if ok {
		sum.Metrics.AverageScore = math.Round(avg*100) / 100
	}

	if sum.Highlight, err = s.stats.LatestOffering(ctx); err != nil {
		return nil, fmt.Errorf("service/dashboard: loading highlight: %w", err)
	}
	return &sum, nil
}
