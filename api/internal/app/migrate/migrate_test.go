package migrate

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pressly/goose/v3"
	"github.com/reframedb/reframe/db/migrations"
)

func newRunner(t *testing.T) (Runner, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	runner, err := New(db, nil)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	return runner, mock
}

func TestNewRejectsNilDatabase(t *testing.T) {
	if _, err := New(nil, nil); err == nil {
		t.Fatalf("expected error for nil database")
	}
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	names, err := fs.Glob(migrations.FS, "*.sql")
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	want := map[string]bool{"00001_users.sql": false, "00002_blacklist_tokens.sql": false}
	for _, name := range names {
		if _, ok := want[name]; ok {
			want[name] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Fatalf("migration %s not embedded", name)
		}
	}
}

func TestEnsureRunsGooseFromRoot(t *testing.T) {
	runner, _ := newRunner(t)

	orig := gooseUpContext
	t.Cleanup(func() { gooseUpContext = orig })
	var gotDir string
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		gotDir = dir
		if _, ok := ctx.Deadline(); !ok {
			t.Fatalf("expected a deadline on the migration context")
		}
		return nil
	}

	if err := runner.Ensure(context.Background()); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if gotDir != "." {
		t.Fatalf("expected root dir, got %q", gotDir)
	}
}

func TestEnsureWrapsGooseError(t *testing.T) {
	runner, _ := newRunner(t)

	orig := gooseUpContext
	t.Cleanup(func() { gooseUpContext = orig })
	boom := errors.New("boom")
	gooseUpContext = func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error { return boom }

	if err := runner.Ensure(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
}

func TestDownChoosesTarget(t *testing.T) {
	runner, _ := newRunner(t)

	origDown, origDownTo := gooseDownContext, gooseDownToContext
	t.Cleanup(func() {
		gooseDownContext = origDown
		gooseDownToContext = origDownTo
	})
	var latest int
	var target int64
	gooseDownContext = func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error {
		latest++
		return nil
	}
	gooseDownToContext = func(_ context.Context, _ *sql.DB, _ string, version int64, _ ...goose.OptionsFunc) error {
		target = version
		return nil
	}

	if err := runner.Down(context.Background(), 0); err != nil {
		t.Fatalf("down latest: %v", err)
	}
	if err := runner.Down(context.Background(), 1); err != nil {
		t.Fatalf("down to: %v", err)
	}
	if latest != 1 || target != 1 {
		t.Fatalf("unexpected calls: latest=%d target=%d", latest, target)
	}
}

func TestStatusDelegates(t *testing.T) {
	runner, _ := newRunner(t)

	orig := gooseStatusContext
	t.Cleanup(func() { gooseStatusContext = orig })
	called := false
	gooseStatusContext = func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error {
		called = true
		return nil
	}
	if err := runner.Status(context.Background()); err != nil || !called {
		t.Fatalf("status: called=%v err=%v", called, err)
	}
}

func TestPing(t *testing.T) {
	runner, mock := newRunner(t)
	mock.ExpectPing()
	if err := runner.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
