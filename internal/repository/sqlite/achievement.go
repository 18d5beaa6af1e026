package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/xid"

	"github.com/sakif/youthhub/internal/apperror"
	"github.com/sakif/youthhub/internal/model"
	"github.com/sakif/youthhub/internal/repository"
)

var _ repository.AchievementRepository = (*DB)(nil)

const achievementColumns = `id, name, description, category, points, criteria, icon_url, hidden, created_at`

func scanAchievement(s rowScanner) (*model.Achievement, error) {
	var a model.Achievement
	err := s.Scan(&a.ID, &a.Name, &a.Description, &a.Category, &a.Points, &a.Criteria, &a.IconURL, &a.Hidden, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateAchievement adds an achievement to the catalogue. Names are unique.
func (db *DB) CreateAchievement(ctx context.Context, a *model.Achievement) error {
	a.ID = xid.New().String()
	a.CreatedAt = utcNow()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO achievements (`+achievementColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.Description, a.Category, a.Points, a.Criteria, a.IconURL, a.Hidden, a.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("achievement", a.Name)
		}
		return fmt.Errorf("sqlite: inserting achievement %q: %w", a.Name, err)
	}
	return nil
}

func (db *DB) GetAchievement(ctx context.Context, id string) (*model.Achievement, error) {
	a, err := scanAchievement(db.conn.QueryRowContext(ctx,
		`SELECT `+achievementColumns+` FROM achievements WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("achievement", id)
		}
		return nil, fmt.Errorf("sqlite: getting achievement %s: %w", id, err)
	}
	return a, nil
}

// ListAchievements returns the catalogue grouped by category.
func (db *DB) ListAchievements(ctx context.Context) ([]model.Achievement, error) {
	out := []model.Achievement{}
	err := eachRow(ctx, db.conn,
		`SELECT `+achievementColumns+` FROM achievements ORDER BY category, name`, nil,
		func(rows *sql.Rows) error {
			a, err := scanAchievement(rows)
			if err != nil {
				return err
			}
			out = append(out, *a)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing achievements: %w", err)
	}
	return out, nil
}
