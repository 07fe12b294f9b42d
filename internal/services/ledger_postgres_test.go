package services

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"pix-server/internal/repository"
)

const (
	pgCPFA = "910.000.000-01"
	pgCPFB = "910.000.000-02"
)

// Runs against a live database only when DB_URL is set.
func newPostgresLedger(t *testing.T) *Ledger {
	t.Helper()
	url := os.Getenv("DB_URL")
	if url == "" {
		t.Skip("DB_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		t.Fatalf("pgxpool.New: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Skipf("postgres unavailable: %v", err)
	}
	if err := repository.Migrate(pool); err != nil {
		pool.Close()
		t.Fatalf("Migrate: %v", err)
	}

	cpfs := []string{pgCPFA, pgCPFB}
	clean := func() {
		_, _ = pool.Exec(context.Background(),
			`DELETE FROM transfers WHERE sender_cpf = ANY($1) OR receiver_cpf = ANY($1)`, cpfs)
		_, _ = pool.Exec(context.Background(), `DELETE FROM accounts WHERE cpf = ANY($1)`, cpfs)
	}
	clean()
	t.Cleanup(func() {
		clean()
		pool.Close()
	})

	l := newTestLedger(t, repository.NewPostgresStore(pool))
	mustCreate(t, l, pgCPFA)
	mustCreate(t, l, pgCPFB)
	return l
}

func TestPostgresTransferConservesMoney(t *testing.T) {
	ctx := context.Background()
	l := newPostgresLedger(t)
	if _, err := l.Deposit(ctx, pgCPFA, dec("100")); err != nil {
		t.Fatal(err)
	}

	for _, amount := range []string{"0.01", "33.33", "66.66"} {
		before := balanceOf(t, l, pgCPFA).Add(balanceOf(t, l, pgCPFB))
		if _, err := l.Transfer(ctx, pgCPFA, pgCPFB, dec(amount)); err != nil {
			t.Fatalf("Transfer(%s): %v", amount, err)
		}
		after := balanceOf(t, l, pgCPFA).Add(balanceOf(t, l, pgCPFB))
		if !before.Equal(after) {
			t.Fatalf("sum changed from %s to %s", before, after)
		}
	}

	if _, err := l.Transfer(ctx, pgCPFA, pgCPFB, dec("0.01")); !errors.Is(err, repository.ErrInsufficientFunds) {
		t.Fatalf("overdraft err=%v want ErrInsufficientFunds", err)
	}
	if got := balanceOf(t, l, pgCPFA); !got.IsZero() {
		t.Fatalf("sender balance=%s want 0", got)
	}
	entries, err := l.History(ctx, pgCPFA, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 4 {
		t.Fatalf("history has %d records want 4 (rejected transfer leaves none)", len(entries))
	}
}

func TestPostgresConcurrentTransfersNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	l := newPostgresLedger(t)
	_, _ = l.Deposit(ctx, pgCPFA, dec("100"))
	_, _ = l.Deposit(ctx, pgCPFB, dec("100"))

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sender, receiver := pgCPFA, pgCPFB
			if i%2 == 1 {
				sender, receiver = pgCPFB, pgCPFA
			}
			_, err := l.Transfer(ctx, sender, receiver, dec("15"))
			if err != nil && !errors.Is(err, repository.ErrInsufficientFunds) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	a, b := balanceOf(t, l, pgCPFA), balanceOf(t, l, pgCPFB)
	if a.IsNegative() || b.IsNegative() {
		t.Fatalf("overdrawn: a=%s b=%s", a, b)
	}
	if !a.Add(b).Equal(dec("200")) {
		t.Fatalf("sum=%s want 200", a.Add(b))
	}
}
