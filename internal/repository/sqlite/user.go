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

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, name, email, password_hash, provider, provider_id, role, active,
	avatar_url, xp, level, version, created_at, updated_at`

func scanUser(s rowScanner) (*model.User, error) {
	var (
		u    model.User
		role string
	)
	err := s.Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Provider, &u.ProviderID, &role, &u.Active,
		&u.AvatarURL, &u.XP, &u.Level, &u.Version, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.Role = model.Role(role)
	return &u, nil
}

// CreateUser inserts a new account. ID and timestamps are assigned here;
// a CreatedAt set by the caller is kept.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()
	now := utcNow()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.CreatedAt = user.CreatedAt.UTC()
	user.UpdatedAt = now
	user.Version = 1
	if user.Level < 1 {
		user.Level = model.LevelForXP(user.XP)
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Name, user.Email, user.PasswordHash, user.Provider, user.ProviderID, string(user.Role), user.Active,
		user.AvatarURL, user.XP, user.Level, user.Version, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Email)
		}
		return fmt.Errorf("sqlite: inserting user %q: %w", user.Email, err)
	}
	return nil
}

// GetUserByID retrieves a user with all of its collections.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return db.getUserWhere(ctx, "id = ?", id)
}

// GetUserByEmail is the lookup behind password login.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return db.getUserWhere(ctx, "email = ? AND email <> ''", email)
}

// GetUserByProvider finds a social-login account.
func (db *DB) GetUserByProvider(ctx context.Context, provider, providerID string) (*model.User, error) {
	return db.getUserWhere(ctx, "provider = ? AND provider_id = ?", provider, providerID)
}

func (db *DB) getUserWhere(ctx context.Context, where string, args ...any) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+where, args...,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", fmt.Sprint(args[len(args)-1]))
		}
		return nil, fmt.Errorf("sqlite: getting user: %w", err)
	}

	if err := loadCollections(ctx, db.conn, u); err != nil {
		return nil, err
	}
	return u, nil
}

// loadCollections fills the per-kind sets, reminder lists, check-in log,
// like sets and achievements. Each query is fully drained before the next
// one starts, which matters with a single pooled connection.
func loadCollections(ctx context.Context, q querier, u *model.User) error {
	u.Enrollments = map[model.Kind][]string{}
	u.Reminders = map[model.Kind][]model.Reminder{}
	u.Likes = map[model.Kind][]string{}
	u.CheckIns = []model.CheckIn{}
	u.Achievements = []string{}

	err := eachRow(ctx, q,
		`SELECT kind, offering_id FROM user_enrollments WHERE user_id = ? ORDER BY position`,
		[]any{u.ID},
		func(rows *sql.Rows) error {
			var kind, id string
			if err := rows.Scan(&kind, &id); err != nil {
				return err
			}
			k := model.Kind(kind)
			u.Enrollments[k] = append(u.Enrollments[k], id)
			return nil
		})
	if err != nil {
		return fmt.Errorf("sqlite: loading enrollments of %s: %w", u.ID, err)
	}

	err = eachRow(ctx, q,
		`SELECT kind, target_id, remind_at, created_at FROM user_reminders WHERE user_id = ? ORDER BY position`,
		[]any{u.ID},
		func(rows *sql.Rows) error {
			var (
				kind     string
				r        model.Reminder
				remindAt sql.NullTime
			)
			if err := rows.Scan(&kind, &r.TargetID, &remindAt, &r.CreatedAt); err != nil {
				return err
			}
			if remindAt.Valid {
				r.RemindAt = &remindAt.Time
			}
			k := model.Kind(kind)
			u.Reminders[k] = append(u.Reminders[k], r)
			return nil
		})
	if err != nil {
		return fmt.Errorf("sqlite: loading reminders of %s: %w", u.ID, err)
	}

	err = eachRow(ctx, q,
		`SELECT kind, target_id, xp_awarded, occurred_at FROM user_checkins WHERE user_id = ? ORDER BY position`,
		[]any{u.ID},
		func(rows *sql.Rows) error {
			var (
				kind string
				c    model.CheckIn
			)
			if err := rows.Scan(&kind, &c.TargetID, &c.XPAwarded, &c.OccurredAt); err != nil {
				return err
			}
			c.Kind = model.Kind(kind)
			u.CheckIns = append(u.CheckIns, c)
			return nil
		})
	if err != nil {
		return fmt.Errorf("sqlite: loading check-ins of %s: %w", u.ID, err)
	}

	err = eachRow(ctx, q,
		`SELECT kind, target_id FROM user_likes WHERE user_id = ? ORDER BY rowid`,
		[]any{u.ID},
		func(rows *sql.Rows) error {
			var kind, id string
			if err := rows.Scan(&kind, &id); err != nil {
				return err
			}
			k := model.Kind(kind)
			u.Likes[k] = append(u.Likes[k], id)
			return nil
		})
	if err != nil {
		return fmt.Errorf("sqlite: loading likes of %s: %w", u.ID, err)
	}

	err = eachRow(ctx, q,
		`SELECT achievement_id FROM user_achievements WHERE user_id = ? ORDER BY position`,
		[]any{u.ID},
		func(rows *sql.Rows) error {
			var id string
			if err := rows.Scan(&id); err != nil {
				return err
			}
			u.Achievements = append(u.Achievements, id)
			return nil
		})
	if err != nil {
		return fmt.Errorf("sqlite: loading achievements of %s: %w", u.ID, err)
	}

	return nil
}

func eachRow(ctx context.Context, q querier, query string, args []any, fn func(*sql.Rows) error) error {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// SaveUser persists the gamification state of a user in one transaction.
//
// OPTIMISTIC CONCURRENCY:
// The UPDATE matches only if version is still the one the caller loaded.
// If another request saved in between, zero rows match and we return
// ErrConflict instead of silently overwriting its enrollment or XP.
// The collection tables are rewritten inside the same transaction, so
// readers never see new XP with an old check-in log.
//
// Active and role are admin-owned and are not written here.
func (db *DB) SaveUser(ctx context.Context, user *model.User) error {
	now := utcNow()
	user.Level = model.LevelForXP(user.XP)

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE users
			 SET name = ?, email = ?, avatar_url = ?, xp = ?, level = ?,
			     version = version + 1, updated_at = ?
			 WHERE id = ? AND version = ?`,
			user.Name, user.Email, user.AvatarURL, user.XP, user.Level, now,
			user.ID, user.Version,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlite: rows affected for user %s: %w", user.ID, err)
		}
		if n == 0 {
			var exists int
			if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE id = ?`, user.ID).Scan(&exists); err != nil {
				return fmt.Errorf("sqlite: checking user %s: %w", user.ID, err)
			}
			if exists == 0 {
				return apperror.NotFound("user", user.ID)
			}
			return apperror.Conflict("user", user.ID)
		}

		return writeCollections(ctx, tx, user)
	})
	if err != nil {
		return err
	}

	user.Version++
	user.UpdatedAt = now
	return nil
}

func writeCollections(ctx context.Context, tx *sql.Tx, user *model.User) error {
	for _, table := range []string{"user_enrollments", "user_reminders", "user_checkins", "user_achievements"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE user_id = ?`, user.ID); err != nil {
			return fmt.Errorf("sqlite: clearing %s of %s: %w", table, user.ID, err)
		}
	}

	for _, kind := range model.Kinds() {
		for i, id := range user.Enrollments[kind] {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO user_enrollments (user_id, kind, offering_id, position) VALUES (?, ?, ?, ?)`,
				user.ID, string(kind), id, i,
			)
			if err != nil {
				return fmt.Errorf("sqlite: writing enrollment %s/%s: %w", kind, id, err)
			}
		}
		for i, r := range user.Reminders[kind] {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO user_reminders (user_id, kind, target_id, remind_at, created_at, position)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				user.ID, string(kind), r.TargetID, nullableTime(r.RemindAt), r.CreatedAt.UTC(), i,
			)
			if err != nil {
				return fmt.Errorf("sqlite: writing reminder %s/%s: %w", kind, r.TargetID, err)
			}
		}
	}

	for i, c := range user.CheckIns {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO user_checkins (user_id, kind, target_id, xp_awarded, occurred_at, position)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			user.ID, string(c.Kind), c.TargetID, c.XPAwarded, c.OccurredAt.UTC(), i,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return apperror.Conflict("check-in", c.TargetID)
			}
			return fmt.Errorf("sqlite: writing check-in %s/%s: %w", c.Kind, c.TargetID, err)
		}
	}

	for i, id := range user.Achievements {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO user_achievements (user_id, achievement_id, position) VALUES (?, ?, ?)`,
			user.ID, id, i,
		)
		if err != nil {
			return fmt.Errorf("sqlite: writing achievement %s: %w", id, err)
		}
	}

	return nil
}

// SetActive flips the account's active flag (the ranking filter).
func (db *DB) SetActive(ctx context.Context, id string, active bool) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET active = ?, updated_at = ? WHERE id = ?`,
		active, utcNow(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: setting active on %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected for %s: %w", id, err)
	}
	if n == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}

const rankingOrder = `ORDER BY xp DESC, level DESC, created_at ASC, id ASC`

// ListActiveUsers returns every active user, ranked.
func (db *DB) ListActiveUsers(ctx context.Context) ([]model.User, error) {
	return db.listRanked(ctx, `SELECT `+userColumns+` FROM users WHERE active = 1 `+rankingOrder)
}

// TopActiveUsers returns the first n active users, ranked.
func (db *DB) TopActiveUsers(ctx context.Context, n int) ([]model.User, error) {
	return db.listRanked(ctx, `SELECT `+userColumns+` FROM users WHERE active = 1 `+rankingOrder+` LIMIT ?`, n)
}

func (db *DB) listRanked(ctx context.Context, query string, args ...any) ([]model.User, error) {
	users := []model.User{}
	err := eachRow(ctx, db.conn, query, args, func(rows *sql.Rows) error {
		u, err := scanUser(rows)
		if err != nil {
			return err
		}
		users = append(users, *u)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing ranked users: %w", err)
	}
	return users, nil
}

// SetLike applies a like or unlike and the matching counter change in one
// transaction, so the like sets and likes_count cannot drift apart.
func (db *DB) SetLike(ctx context.Context, userID string, kind model.Kind, targetID string, liked bool) (int, error) {
	var count int

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var userExists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE id = ?`, userID).Scan(&userExists); err != nil {
			return fmt.Errorf("sqlite: checking user %s: %w", userID, err)
		}
		if userExists == 0 {
			return apperror.NotFound("user", userID)
		}

		var present int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM user_likes WHERE user_id = ? AND kind = ? AND target_id = ?`,
			userID, string(kind), targetID,
		).Scan(&present)
		if err != nil {
			return fmt.Errorf("sqlite: reading like %s/%s: %w", kind, targetID, err)
		}

		if (present > 0) == liked {
			o, err := getOffering(ctx, tx, kind, targetID)
			if err != nil {
				return err
			}
			count = o.LikesCount
			return nil
		}

		var counterSQL string
		if liked {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO user_likes (user_id, kind, target_id) VALUES (?, ?, ?)`,
				userID, string(kind), targetID,
			)
			counterSQL = `likes_count + 1`
		} else {
			_, err = tx.ExecContext(ctx,
				`DELETE FROM user_likes WHERE user_id = ? AND kind = ? AND target_id = ?`,
				userID, string(kind), targetID,
			)
			counterSQL = `MAX(likes_count - 1, 0)`
		}
		if err != nil {
			return fmt.Errorf("sqlite: writing like %s/%s: %w", kind, targetID, err)
		}

		err = tx.QueryRowContext(ctx,
			`UPDATE offerings SET likes_count = `+counterSQL+`
			 WHERE kind = ? AND id = ?
			 RETURNING likes_count`,
			string(kind), targetID,
		).Scan(&count)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperror.NotFound(string(kind), targetID)
			}
			return fmt.Errorf("sqlite: updating likes of %s %s: %w", kind, targetID, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}
