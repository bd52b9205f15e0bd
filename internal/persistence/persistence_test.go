package persistence

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/supportops/owner-relay/internal/config"
)

func TestOpenSQLiteMigratesAndReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.db")
	ctx := context.Background()

	db, err := OpenSQLite(ctx, config.SQLiteConfig{Path: path}, zap.NewNop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO support_list (name, status) VALUES ('Ada', 'online')`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO support_list (name, status) VALUES ('Ben', 'away')`); err == nil {
		t.Fatalf("status check constraint not enforced")
	}
	_ = db.Close()

	// migrations are re-applied on every open and must not clobber data
	db, err = OpenSQLite(ctx, config.SQLiteConfig{Path: path}, zap.NewNop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	var id string
	var updated *string
	if err := db.QueryRow(`SELECT id, updated_at FROM support_list WHERE name = 'Ada'`).Scan(&id, &updated); err != nil {
		t.Fatalf("select: %v", err)
	}
	if id != "" || updated != nil {
		t.Fatalf("defaults: id=%q updated_at=%v", id, updated)
	}
}

func TestLoadMigrationsSorted(t *testing.T) {
	for _, dir := range []string{"migrations/postgres", "migrations/sqlite"} {
		ms, err := loadMigrations(dir)
		if err != nil {
			t.Fatalf("%s: %v", dir, err)
		}
		if len(ms) == 0 || ms[0].name != "001_support_list.sql" {
			t.Fatalf("%s: migrations = %+v", dir, ms)
		}
	}
}

func TestNewPostgresWithoutDSN(t *testing.T) {
	pg, err := NewPostgres(context.Background(), config.PostgresConfig{}, zap.NewNop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if pg.PoolHandle() != nil {
		t.Fatalf("expected nil pool")
	}
	if err := pg.Ping(context.Background()); err == nil {
		t.Fatalf("ping without pool must fail")
	}
	pg.Close()
}

func TestNewPostgresRejectsInvalidDSN(t *testing.T) {
	if _, err := NewPostgres(context.Background(), config.PostgresConfig{DSN: "postgres://%zz"}, zap.NewNop()); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestNewRedisDisabled(t *testing.T) {
	r := NewRedis(context.Background(), config.RedisConfig{}, zap.NewNop())
	if r.Configured() {
		t.Fatalf("redis without address must be unconfigured")
	}
	if err := r.Ping(context.Background()); err == nil {
		t.Fatalf("ping on unconfigured redis must fail")
	}
	r.Close()
}
