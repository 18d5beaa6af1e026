package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/xid"

	"github.com/sakif/youthhub/internal/apperror"
	"github.com/sakif/youthhub/internal/model"
	"github.com/sakif/youthhub/internal/repository"
)

var _ repository.OfferingRepository = (*DB)(nil)

const offeringColumns = `id, kind, title, description, status, capacity, seats_taken,
	xp_reward, likes_count, starts_at, ends_at, created_at, updated_at`

// rowScanner is the common subset of *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanOffering(s rowScanner) (*model.Offering, error) {
	var (
		o        model.Offering
		kind     string
		status   string
		capacity sql.NullInt64
		startsAt sql.NullTime
		endsAt   sql.NullTime
	)
	err := s.Scan(
		&o.ID, &kind, &o.Title, &o.Description, &status, &capacity, &o.SeatsTaken,
		&o.XPReward, &o.LikesCount, &startsAt, &endsAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.Kind = model.Kind(kind)
	o.State = model.LifecycleState(status)
	if capacity.Valid {
		c := int(capacity.Int64)
		o.Capacity = &c
	}
	if startsAt.Valid {
		o.StartsAt = &startsAt.Time
	}
	if endsAt.Valid {
		o.EndsAt = &endsAt.Time
	}
	return &o, nil
}

// CreateOffering inserts a new offering and fills in its ID and timestamps.
func (db *DB) CreateOffering(ctx context.Context, o *model.Offering) error {
	o.ID = xid.New().String()
	now := utcNow()
	o.CreatedAt = now
	o.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO offerings (`+offeringColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, string(o.Kind), o.Title, o.Description, string(o.State), nullableInt(o.Capacity), o.SeatsTaken,
		o.XPReward, o.LikesCount, nullableTime(o.StartsAt), nullableTime(o.EndsAt), o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting %s: %w", o.Kind, err)
	}
	return nil
}

// GetOffering returns apperror.ErrNotFound if no offering of that kind has the id.
func (db *DB) GetOffering(ctx context.Context, kind model.Kind, id string) (*model.Offering, error) {
	return getOffering(ctx, db.conn, kind, id)
}

func getOffering(ctx context.Context, q querier, kind model.Kind, id string) (*model.Offering, error) {
	o, err := scanOffering(q.QueryRowContext(ctx,
		`SELECT `+offeringColumns+` FROM offerings WHERE kind = ? AND id = ?`,
		string(kind), id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound(string(kind), id)
		}
		return nil, fmt.Errorf("sqlite: getting %s %s: %w", kind, id, err)
	}
	return o, nil
}

// ListOfferings returns offerings of one kind, newest first.
func (db *DB) ListOfferings(ctx context.Context, kind model.Kind, opts repository.ListOptions) ([]model.Offering, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+offeringColumns+` FROM offerings
		 WHERE kind = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`,
		string(kind), limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing %s: %w", kind, err)
	}
	defer rows.Close()

	offerings := []model.Offering{}
	for rows.Next() {
		o, err := scanOffering(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning %s row: %w", kind, err)
		}
		offerings = append(offerings, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating %s rows: %w", kind, err)
	}
	return offerings, nil
}

// ListOfferingsByIDs returns the offerings in the order of ids. Unknown ids
// are skipped.
func (db *DB) ListOfferingsByIDs(ctx context.Context, kind model.Kind, ids []string) ([]model.Offering, error) {
	if len(ids) == 0 {
		return []model.Offering{}, nil
	}

	args := make([]any, 0, len(ids)+1)
	args = append(args, string(kind))
	for _, id := range ids {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+offeringColumns+` FROM offerings WHERE kind = ? AND id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing %s by ids: %w", kind, err)
	}
	defer rows.Close()

	byID := make(map[string]model.Offering, len(ids))
	for rows.Next() {
		o, err := scanOffering(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning %s row: %w", kind, err)
		}
		byID[o.ID] = *o
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating %s rows: %w", kind, err)
	}

	out := make([]model.Offering, 0, len(byID))
	for _, id := range ids {
		if o, ok := byID[id]; ok {
			out = append(out, o)
		}
	}
	return out, nil
}

// SetLifecycleState moves an offering to a new lifecycle state.
func (db *DB) SetLifecycleState(ctx context.Context, kind model.Kind, id string, state model.LifecycleState) (*model.Offering, error) {
	var o *model.Offering
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE offerings SET status = ?, updated_at = ? WHERE kind = ? AND id = ?`,
			string(state), utcNow(), string(kind), id,
		)
		if err != nil {
			return fmt.Errorf("sqlite: setting status of %s %s: %w", kind, id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperror.NotFound(string(kind), id)
		}
		o, err = getOffering(ctx, tx, kind, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// UpdateSeats is the compare-and-increment behind the capacity ledger.
//
// RESERVE (+1):
// The capacity test lives in the WHERE clause of the same UPDATE that
// increments, so two concurrent reservations for the last seat cannot both
// match: the second one sees seats_taken == capacity and touches no row.
//
// RELEASE (-1):
// MAX(seats_taken - 1, 0) floors at zero in the same statement.
//
// The snapshot is read back inside the same transaction, so it shows exactly
// the state this update produced. When no row matched, the read tells
// "does not exist" (ErrNotFound) from "full" (applied=false).
func (db *DB) UpdateSeats(ctx context.Context, kind model.Kind, id string, delta int) (*model.Offering, bool, error) {
	var query string
	switch delta {
	case 1:
		query = `UPDATE offerings SET seats_taken = seats_taken + 1, updated_at = ?
			WHERE kind = ? AND id = ? AND (capacity IS NULL OR seats_taken < capacity)`
	case -1:
		query = `UPDATE offerings SET seats_taken = MAX(seats_taken - 1, 0), updated_at = ?
			WHERE kind = ? AND id = ?`
	default:
		return nil, false, fmt.Errorf("sqlite: seat delta must be +1 or -1, got %d", delta)
	}

	var (
		o       *model.Offering
		applied bool
	)
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query, utcNow(), string(kind), id)
		if err != nil {
			return fmt.Errorf("sqlite: updating seats of %s %s: %w", kind, id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlite: rows affected for %s %s: %w", kind, id, err)
		}
		applied = n == 1

		o, err = getOffering(ctx, tx, kind, id)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return o, applied, nil
}
