package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/supportops/owner-relay/internal/domain"
)

// SQLiteTimeLayout is fixed width so text ordering in SQLite matches time ordering.
const SQLiteTimeLayout = "2006-01-02 15:04:05.000000000"

// Layouts accepted when reading updated_at written by other tools, such as
// SQLite's CURRENT_TIMESTAMP.
var sqliteReadLayouts = []string{
	SQLiteTimeLayout,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
}

// maxCASAttempts bounds retries when concurrent writers advance the same row.
const maxCASAttempts = 16

const (
	sqliteSelectOldestOnline = `
SELECT name, COALESCE(id, ''), status, updated_at
FROM support_list
WHERE status = 'online'
ORDER BY updated_at IS NOT NULL, updated_at ASC, name ASC
LIMIT 1`

	sqliteCompareAndStamp = `
UPDATE support_list
SET updated_at = ?
WHERE name = ? AND status = 'online' AND updated_at IS ?`
)

// SQLite has no SELECT ... FOR UPDATE, so the stamp is a conditional update
// keyed on the updated_at value that was read.
type sqliteSupportListRepository struct {
	db *sql.DB
}

// NewSQLiteSupportListRepository instantiates the sqlite repository.
func NewSQLiteSupportListRepository(db *sql.DB) SupportListRepository {
	return &sqliteSupportListRepository{db: db}
}

func (r *sqliteSupportListRepository) AcquireOldestOnline(ctx context.Context, now time.Time) (*domain.StaffRecord, error) {
	if r.db == nil {
		return nil, ErrStoreNotConfigured
	}
	stamp := now.UTC().Format(SQLiteTimeLayout)

	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		var (
			staff    domain.StaffRecord
			previous sql.NullString
		)
		err := r.db.QueryRowContext(ctx, sqliteSelectOldestOnline).Scan(&staff.Name, &staff.ID, &staff.Status, &previous)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, ErrNoEligibleStaff
			}
			return nil, fmt.Errorf("select oldest online: %w", err)
		}

		var prevArg any
		if previous.Valid {
			// The swap compares the raw text, so an unreadable stamp only
			// leaves LastAssigned empty.
			prevArg = previous.String
			staff.LastAssigned = parseSQLiteTime(previous.String)
		}

		res, err := r.db.ExecContext(ctx, sqliteCompareAndStamp, stamp, staff.Name, prevArg)
		if err != nil {
			return nil, fmt.Errorf("stamp %s: %w", staff.Name, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("stamp %s: %w", staff.Name, err)
		}
		if affected == 1 {
			return &staff, nil
		}
		// Another writer advanced this row first; re-read the rotation.
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return nil, ErrRotationConflict
}

func parseSQLiteTime(v string) *time.Time {
	for _, layout := range sqliteReadLayouts {
		if ts, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			return &ts
		}
	}
	return nil
}

func (r *sqliteSupportListRepository) Ping(ctx context.Context) error {
	if r.db == nil {
		return ErrStoreNotConfigured
	}
	return r.db.PingContext(ctx)
}
