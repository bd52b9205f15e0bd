package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/supportops/owner-relay/internal/domain"
)

var (
	// ErrNoEligibleStaff is returned when no support_list row is online.
	ErrNoEligibleStaff = errors.New("no online support staff")
	// ErrStoreNotConfigured is returned when the repository has no backing handle.
	ErrStoreNotConfigured = errors.New("staff store not configured")
	// ErrRotationConflict is returned when a compare-and-swap rotation lost every retry.
	ErrRotationConflict = errors.New("rotation conflict: retries exhausted")
)

// SupportListRepository reads and advances the on-duty rotation.
type SupportListRepository interface {
	// AcquireOldestOnline atomically picks the online record with the oldest
	// updated_at, stamps it with now and returns it as it was before the stamp.
	AcquireOldestOnline(ctx context.Context, now time.Time) (*domain.StaffRecord, error)
	Ping(ctx context.Context) error
}

// Under READ COMMITTED a blocked FOR UPDATE re-checks the row it waited on
// but does not re-sort, so two concurrent callers would both receive the
// same "oldest" row. SKIP LOCKED hands the second caller the next oldest row
// instead; the blocking form only runs when every online row is locked.
const (
	selectOldestOnlineSkipLocked = `
        SELECT name, COALESCE(id, ''), status, updated_at
        FROM support_list
        WHERE status = 'online'
        ORDER BY updated_at ASC NULLS FIRST, name ASC
        LIMIT 1
        FOR UPDATE SKIP LOCKED`

	selectOldestOnlineForUpdate = `
        SELECT name, COALESCE(id, ''), status, updated_at
        FROM support_list
        WHERE status = 'online'
        ORDER BY updated_at ASC NULLS FIRST, name ASC
        LIMIT 1
        FOR UPDATE`

	stampAssigned = `
        UPDATE support_list
        SET updated_at = $1
        WHERE name = $2`
)

type supportListRepository struct {
	pool *pgxpool.Pool
}

// NewSupportListRepository instantiates the postgres repository.
func NewSupportListRepository(pool *pgxpool.Pool) SupportListRepository {
	return &supportListRepository{pool: pool}
}

func (r *supportListRepository) AcquireOldestOnline(ctx context.Context, now time.Time) (*domain.StaffRecord, error) {
	if r.pool == nil {
		return nil, ErrStoreNotConfigured
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	// No-op after a successful commit.
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	staff, err := lockOldestOnline(ctx, tx, selectOldestOnlineSkipLocked)
	if errors.Is(err, pgx.ErrNoRows) {
		staff, err = lockOldestOnline(ctx, tx, selectOldestOnlineForUpdate)
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoEligibleStaff
		}
		return nil, fmt.Errorf("select oldest online: %w", err)
	}

	cmd, err := tx.Exec(ctx, stampAssigned, now, staff.Name)
	if err != nil {
		return nil, fmt.Errorf("stamp %s: %w", staff.Name, err)
	}
	if cmd.RowsAffected() != 1 {
		return nil, fmt.Errorf("stamp %s: %d rows affected", staff.Name, cmd.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return staff, nil
}

func (r *supportListRepository) Ping(ctx context.Context) error {
	if r.pool == nil {
		return ErrStoreNotConfigured
	}
	return r.pool.Ping(ctx)
}

func lockOldestOnline(ctx context.Context, tx pgx.Tx, query string) (*domain.StaffRecord, error) {
	var staff domain.StaffRecord
	if err := tx.QueryRow(ctx, query).Scan(
		&staff.Name,
		&staff.ID,
		&staff.Status,
		&staff.LastAssigned,
	); err != nil {
		return nil, err
	}
	return &staff, nil
}
