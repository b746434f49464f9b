package organizer_test

import (
	"io/fs"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"

	"github.com/notefold/notefold/internal/db"
	"github.com/notefold/notefold/internal/kv"
	"github.com/notefold/notefold/internal/organizer"
	"github.com/notefold/notefold/internal/store"
	"github.com/notefold/notefold/internal/testutil"
)

// fakeClock makes timestamps and the echo-suppression window deterministic.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type env struct {
	svc       *organizer.Service
	syncArea  *kv.MemArea
	localArea *kv.MemArea
	records   *store.Store
	clock     *fakeClock
}

func newEnv(t *testing.T) *env {
	t.Helper()
	return newEnvWith(t, kv.NewMemArea(0), kv.NewMemArea(0), testutil.NewTestDB(t))
}

// newEnvWith builds a service over explicit areas and database, so tests can
// share backing stores between service instances the way device replicas do.
func newEnvWith(t *testing.T, syncArea, localArea *kv.MemArea, database *sqlx.DB) *env {
	t.Helper()
	records := store.New(database)
	clock := newFakeClock()
	svc := organizer.New(organizer.Options{
		Records:   records,
		SyncArea:  syncArea,
		LocalArea: localArea,
		Clock:     clock.Now,
	})
	return &env{svc: svc, syncArea: syncArea, localArea: localArea, records: records, clock: clock}
}

// newNamedTestDB is testutil.NewTestDB with a suffix, for tests that need a
// second independent database in the same test.
func newNamedTestDB(t *testing.T, suffix string) *sqlx.DB {
	t.Helper()

	dsn := "file:" + t.Name() + suffix + "?mode=memory&cache=shared&_busy_timeout=5000"
	conn, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open in-memory sqlite: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	if err := goose.SetDialect("sqlite3"); err != nil {
		t.Fatalf("set goose dialect: %v", err)
	}
	sub, err := fs.Sub(db.Migrations, "migrations")
	if err != nil {
		t.Fatalf("sub migrations fs: %v", err)
	}
	goose.SetBaseFS(sub)
	if err := goose.Up(conn.DB, "."); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	goose.SetBaseFS(nil)

	return conn
}
