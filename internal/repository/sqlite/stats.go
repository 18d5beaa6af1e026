package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sakif/youthhub/internal/model"
	"github.com/sakif/youthhub/internal/repository"
)

var _ repository.StatsRepository = (*DB)(nil)

func (db *DB) CountUsers(ctx context.Context, role model.Role) (int64, error) {
	return db.count(ctx, "users", `SELECT COUNT(*) FROM users WHERE role = ?`, string(role))
}

// AverageXP relies on AVG yielding NULL over an empty set.
func (db *DB) AverageXP(ctx context.Context, role model.Role) (float64, bool, error) {
	var avg sql.NullFloat64
	err := db.conn.QueryRowContext(ctx,
		`SELECT AVG(xp) FROM users WHERE role = ?`, string(role),
	).Scan(&avg)
	if err != nil {
		return 0, false, fmt.Errorf("sqlite: averaging xp of %s: %w", role, err)
	}
	return avg.Float64, avg.Valid, nil
}

func (db *DB) CountOfferings(ctx context.Context, kind model.Kind) (int64, error) {
	return db.count(ctx, string(kind), `SELECT COUNT(*) FROM offerings WHERE kind = ?`, string(kind))
}

func (db *DB) CountAchievements(ctx context.Context) (int64, error) {
	return db.count(ctx, "achievements", `SELECT COUNT(*) FROM achievements`)
}

func (db *DB) count(ctx context.Context, what, query string, args ...any) (int64, error) {
	var n int64
	if err := db.conn.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting %s: %w", what, err)
	}
	return n, nil
}

// LatestOffering returns nil, nil on an empty catalogue.
func (db *DB) LatestOffering(ctx context.Context) (*model.Offering, error) {
	o, err := scanOffering(db.conn.QueryRowContext(ctx,
		`SELECT `+offeringColumns+` FROM offerings ORDER BY created_at DESC, id DESC LIMIT 1`,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlite: getting latest offering: %w", err)
	}
	return o, nil
}
