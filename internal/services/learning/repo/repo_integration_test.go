//go:build integration_pg
// +build integration_pg

package repo

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"redpen/internal/core/learning"
	"redpen/internal/platform/store"

	"github.com/rs/zerolog"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startPostgres launches a disposable Postgres and returns DSN + stop func
func startPostgres(t *testing.T) (dsn string, stop func()) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)

	req := tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "postgres",
			"POSTGRES_PASSWORD": "postgres",
			"POSTGRES_DB":       "postgres",
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("5432/tcp"),
			wait.ForLog("database system is ready to accept connections"),
		).WithDeadline(2 * time.Minute),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		cancel()
		t.Fatalf("failed to start postgres container: %v", err)
	}

	host, err := c.Host(ctx)
	if err != nil {
		_ = c.Terminate(context.Background())
		cancel()
		t.Fatalf("failed to get container host: %v", err)
	}
	mp, err := c.MappedPort(ctx, "5432/tcp")
	if err != nil {
		_ = c.Terminate(context.Background())
		cancel()
		t.Fatalf("failed to get mapped port: %v", err)
	}

	dsn = fmt.Sprintf("postgres://postgres:postgres@%s:%s/postgres?sslmode=disable", host, mp.Port())
	stop = func() {
		_ = c.Terminate(context.Background())
		cancel()
	}
	return dsn, stop
}

func openTestStore(t *testing.T, ctx context.Context, dsn string) *store.Store {
	t.Helper()

	st, err := store.Open(ctx, store.Config{
		PG: store.PGConfig{Enabled: true, URL: dsn, MaxConns: 2},
	}, store.WithLogger(zerolog.New(io.Discard)))
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	t.Cleanup(func() { _ = st.Close(context.Background()) })
	return st
}

func createSchema(t *testing.T, ctx context.Context, st *store.Store) {
	t.Helper()

	ddl := []string{`
		CREATE TABLE IF NOT EXISTS rule_effectiveness (
			rule_id         TEXT PRIMARY KEY,
			issues_found    BIGINT NOT NULL DEFAULT 0,
			issues_accepted BIGINT NOT NULL DEFAULT 0,
			issues_rejected BIGINT NOT NULL DEFAULT 0,
			issues_ignored  BIGINT NOT NULL DEFAULT 0,
			score           DOUBLE PRECISION NOT NULL DEFAULT 0,
			last_updated    TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`, `
		CREATE TABLE IF NOT EXISTS analysis_runs (
			id              TEXT PRIMARY KEY,
			subject_id      TEXT NOT NULL,
			started_at      TIMESTAMPTZ NOT NULL,
			finished_at     TIMESTAMPTZ NOT NULL,
			status          TEXT NOT NULL,
			files_analyzed  INT NOT NULL DEFAULT 0,
			issues_found    INT NOT NULL DEFAULT 0,
			comments_posted INT NOT NULL DEFAULT 0,
			rule_usage      JSONB,
			err_text        TEXT
		)
	`}
	for _, q := range ddl {
		if _, err := st.PG.Exec(ctx, q); err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
}

func TestRepo_Integration_GetUpsertList(t *testing.T) {
	dsn, stop := startPostgres(t)
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	st := openTestStore(t, ctx, dsn)
	createSchema(t, ctx, st)

	r := NewPG().Bind(st.PG)

	// Get on an unknown rule returns a zero record carrying the id
	rec, err := r.Get(ctx, "missing-rule")
	if err != nil {
		t.Fatalf("get unknown: %v", err)
	}
	if rec.RuleID != "missing-rule" || rec.Found != 0 {
		t.Fatalf("unexpected zero record: %+v", rec)
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	want := learning.Record{
		RuleID:      "magic-number",
		Found:       10,
		Accepted:    6,
		Rejected:    2,
		Ignored:     2,
		Score:       0.5,
		LastUpdated: now,
	}
	if err := r.Upsert(ctx, want); err != nil {
		t.Fatalf("upsert insert: %v", err)
	}

	got, err := r.Get(ctx, "magic-number")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Found != want.Found || got.Accepted != want.Accepted || got.Score != want.Score {
		t.Fatalf("get mismatch: got=%+v want=%+v", got, want)
	}
	if !got.LastUpdated.Equal(want.LastUpdated) {
		t.Fatalf("last_updated mismatch: got=%v want=%v", got.LastUpdated, want.LastUpdated)
	}

	// Conflict path replaces counters
	want.Found = 11
	want.Accepted = 7
	want.LastUpdated = now.Add(time.Second)
	if err := r.Upsert(ctx, want); err != nil {
		t.Fatalf("upsert update: %v", err)
	}
	got, err = r.Get(ctx, "magic-number")
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if got.Found != 11 || got.Accepted != 7 {
		t.Fatalf("conflict update not applied: %+v", got)
	}

	// List returns every rule keyed by id
	other := learning.Record{RuleID: "print-debugging", Found: 3, LastUpdated: now}
	if err := r.Upsert(ctx, other); err != nil {
		t.Fatalf("upsert other: %v", err)
	}
	all, err := r.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("list size: got=%d want=2", len(all))
	}
	if all["print-debugging"].Found != 3 {
		t.Fatalf("list missing rule: %+v", all)
	}
}

func TestRepo_Integration_RunTotals(t *testing.T) {
	dsn, stop := startPostgres(t)
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	st := openTestStore(t, ctx, dsn)
	createSchema(t, ctx, st)

	r := NewPG().Bind(st.PG)

	runs, issues, err := r.RunTotals(ctx)
	if err != nil {
		t.Fatalf("run totals empty: %v", err)
	}
	if runs != 0 || issues != 0 {
		t.Fatalf("expected zero totals, got runs=%d issues=%d", runs, issues)
	}

	now := time.Now().UTC()
	for i, found := range []int{3, 5} {
		_, err := st.PG.Exec(ctx, `
			INSERT INTO analysis_runs
				(id, subject_id, started_at, finished_at, status, files_analyzed, issues_found, comments_posted)
			VALUES ($1,$2,$3,$4,'ok',1,$5,0)
		`, fmt.Sprintf("run-%d", i), "subj-1", now, now, found)
		if err != nil {
			t.Fatalf("seed run: %v", err)
		}
	}

	runs, issues, err = r.RunTotals(ctx)
	if err != nil {
		t.Fatalf("run totals: %v", err)
	}
	if runs != 2 || issues != 8 {
		t.Fatalf("totals mismatch: runs=%d issues=%d", runs, issues)
	}
}
