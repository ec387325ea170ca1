package session

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Prithvi164/LMSQMS-sub006/internal/db/migrate"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
)

// Integration tests are enabled when LMS_DATABASE_URL is set.
// In non-CI runs, unreachable Postgres skips these tests to keep local runs fast.

func TestPostgresStore_AdmitThenContest(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pool := mustIntegrationPool(ctx, t)
	defer pool.Close()

	store := mustPostgresStore(t, pool)
	userID := newTestULID(t)
	t.Cleanup(func() { cleanupSessions(ctx, t, pool, userID) })

	now := time.Now().UTC()

	first, err := store.TryActivate(ctx, TryActivateInput{UserID: userID, DeviceInfo: "laptop", Now: now, PendingTTL: time.Minute})
	if err != nil {
		t.Fatalf("TryActivate: %v", err)
	}
	if first.Contested() {
		t.Fatalf("first login must be admitted")
	}

	second, err := store.TryActivate(ctx, TryActivateInput{UserID: userID, DeviceInfo: "phone", Now: now, PendingTTL: time.Minute})
	if err != nil {
		t.Fatalf("TryActivate: %v", err)
	}
	if !second.Contested() {
		t.Fatalf("second login must be contested")
	}
	if second.Transfer.ExistingSessionID != first.Admitted.ID {
		t.Fatalf("incumbent=%q want %q", second.Transfer.ExistingSessionID, first.Admitted.ID)
	}

	tr, err := store.GetTransfer(ctx, second.Pending.ID)
	if err != nil {
		t.Fatalf("GetTransfer: %v", err)
	}
	if tr.UserID != userID {
		t.Fatalf("transfer user=%q want %q", tr.UserID, userID)
	}
}

func TestPostgresStore_ConcurrentTryActivate_SingleActive(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pool := mustIntegrationPool(ctx, t)
	defer pool.Close()

	store := mustPostgresStore(t, pool)
	userID := newTestULID(t)
	t.Cleanup(func() { cleanupSessions(ctx, t, pool, userID) })

	const n = 8
	results := make([]Activation, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = store.TryActivate(ctx, TryActivateInput{
				UserID:     userID,
				DeviceInfo: "dev",
				PendingTTL: time.Minute,
			})
		}(i)
	}
	wg.Wait()

	admitted := 0
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("TryActivate[%d]: %v", i, errs[i])
		}
		if results[i].Admitted != nil {
			admitted++
		}
	}
	if admitted != 1 {
		t.Fatalf("admitted=%d want exactly 1", admitted)
	}

	var activeRows int
	err := pool.QueryRow(ctx,
		`SELECT count(*) FROM lms.sessions WHERE user_id = $1 AND status = 'active'`,
		userID,
	).Scan(&activeRows)
	if err != nil {
		t.Fatalf("count active: %v", err)
	}
	if activeRows != 1 {
		t.Fatalf("active rows=%d want 1", activeRows)
	}
}

func TestPostgresStore_Resolve_ApproveAndEcho(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pool := mustIntegrationPool(ctx, t)
	defer pool.Close()

	store := mustPostgresStore(t, pool)
	userID := newTestULID(t)
	t.Cleanup(func() { cleanupSessions(ctx, t, pool, userID) })

	now := time.Now().UTC()
	first, _ := store.TryActivate(ctx, TryActivateInput{UserID: userID, Now: now, PendingTTL: time.Minute})
	second, _ := store.TryActivate(ctx, TryActivateInput{UserID: userID, Now: now, PendingTTL: time.Minute})

	res, err := store.Resolve(ctx, ResolveInput{SessionID: second.Pending.ID, Outcome: StatusApproved, Now: now})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Applied || res.Session.Status != StatusActive {
		t.Fatalf("resolve: applied=%v status=%q", res.Applied, res.Session.Status)
	}

	incumbent, err := store.GetByID(ctx, first.Admitted.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if incumbent.Status != StatusExpired {
		t.Fatalf("incumbent status=%q want expired", incumbent.Status)
	}

	// Duplicate resolve (including a conflicting outcome) echoes the first.
	echo, err := store.Resolve(ctx, ResolveInput{SessionID: second.Pending.ID, Outcome: StatusDenied, Now: now})
	if err != nil {
		t.Fatalf("Resolve echo: %v", err)
	}
	if echo.Applied || echo.Outcome != StatusApproved {
		t.Fatalf("echo: applied=%v outcome=%q", echo.Applied, echo.Outcome)
	}
}

func TestPostgresStore_Resolve_DenyAndInvalidate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pool := mustIntegrationPool(ctx, t)
	defer pool.Close()

	store := mustPostgresStore(t, pool)
	userID := newTestULID(t)
	t.Cleanup(func() { cleanupSessions(ctx, t, pool, userID) })

	now := time.Now().UTC()
	first, _ := store.TryActivate(ctx, TryActivateInput{UserID: userID, Now: now, PendingTTL: time.Minute})
	second, _ := store.TryActivate(ctx, TryActivateInput{UserID: userID, Now: now, PendingTTL: time.Minute})

	res, err := store.Resolve(ctx, ResolveInput{SessionID: second.Pending.ID, Outcome: StatusDenied, Now: now})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Applied || res.Session.Status != StatusDenied {
		t.Fatalf("deny: applied=%v status=%q", res.Applied, res.Session.Status)
	}

	incumbent, _ := store.GetByID(ctx, first.Admitted.ID)
	if incumbent.Status != StatusActive {
		t.Fatalf("incumbent status=%q want active after deny", incumbent.Status)
	}

	if err := store.Invalidate(ctx, now, userID); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	gone, _ := store.GetByID(ctx, first.Admitted.ID)
	if gone.Status != StatusExpired {
		t.Fatalf("status=%q want expired after invalidate", gone.Status)
	}
}

func TestPostgresStore_UnresolvedTransfers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pool := mustIntegrationPool(ctx, t)
	defer pool.Close()

	store := mustPostgresStore(t, pool)
	userID := newTestULID(t)
	t.Cleanup(func() { cleanupSessions(ctx, t, pool, userID) })

	now := time.Now().UTC()
	_, _ = store.TryActivate(ctx, TryActivateInput{UserID: userID, Now: now, PendingTTL: time.Minute})
	second, _ := store.TryActivate(ctx, TryActivateInput{UserID: userID, Now: now, PendingTTL: time.Minute})

	// Other tests share the database, so assert on membership, not counts.
	listed := func() *PendingExpiry {
		got, err := store.UnresolvedTransfers(ctx)
		if err != nil {
			t.Fatalf("UnresolvedTransfers: %v", err)
		}
		for i := range got {
			if got[i].SessionID == second.Pending.ID {
				return &got[i]
			}
		}
		return nil
	}

	p := listed()
	if p == nil {
		t.Fatalf("pending transfer %q not listed", second.Pending.ID)
	}
	if p.ExpiresAt.IsZero() {
		t.Fatalf("listed transfer has no deadline")
	}

	_, err := store.Resolve(ctx, ResolveInput{SessionID: second.Pending.ID, Outcome: StatusExpired, Now: now})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if listed() != nil {
		t.Fatalf("resolved transfer still listed")
	}
}

func TestPostgresStore_Resolve_UnknownSession(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pool := mustIntegrationPool(ctx, t)
	defer pool.Close()

	store := mustPostgresStore(t, pool)

	_, err := store.Resolve(ctx, ResolveInput{SessionID: newTestULID(t), Outcome: StatusDenied})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v want ErrNotFound", err)
	}
}

// ---- helpers ----

var migrateOnce sync.Once

func mustIntegrationPool(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()

	dbURL := os.Getenv("LMS_DATABASE_URL")
	if dbURL == "" {
		t.Skip("LMS_DATABASE_URL is not set; skipping Postgres integration test")
	}

	migrateOnce.Do(func() {
		if err := migrate.Run(dbURL, "up"); err != nil {
			t.Logf("migrate: %v", err)
		}
	})

	cfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		t.Fatalf("pgxpool.ParseConfig: %v", err)
	}
	cfg.MaxConns = 4
	cfg.MinConns = 0
	cfg.MaxConnLifetime = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("pgxpool.NewWithConfig: %v", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		if shouldSkipIntegration(err) {
			t.Skipf("integration test skipped: Postgres unreachable (LMS_DATABASE_URL set): %v", err)
		}
		t.Fatalf("pool.Ping: %v", err)
	}

	return pool
}

func mustPostgresStore(t *testing.T, pool *pgxpool.Pool) *PostgresStore {
	t.Helper()

	store, err := NewPostgresStore(pool)
	if err != nil {
		t.Fatalf("NewPostgresStore: %v", err)
	}
	return store
}

func shouldSkipIntegration(err error) bool {
	if err == nil {
		return false
	}
	if os.Getenv("CI") != "" {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "dial tcp") ||
		strings.Contains(msg, "no such host") {
		return true
	}
	return false
}

func newTestULID(t *testing.T) string {
	t.Helper()
	return ulid.Make().String()
}

func cleanupSessions(ctx context.Context, t *testing.T, pool *pgxpool.Pool, userID string) {
	t.Helper()

	_, _ = pool.Exec(ctx, `DELETE FROM lms.pending_transfers WHERE user_id = $1`, userID)
	_, _ = pool.Exec(ctx, `DELETE FROM lms.sessions WHERE user_id = $1`, userID)
}
