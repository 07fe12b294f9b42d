package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"pix-server/internal/models"
)

const (
	pgCPFA = "900.000.000-01"
	pgCPFB = "900.000.000-02"
)

// Runs against a live database only when DB_URL is set. Rows are scoped to
// this file's CPFs so other packages can share the database.
func openTestPostgres(t *testing.T, cpfs ...string) *PostgresStore {
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
	if err := Migrate(pool); err != nil {
		pool.Close()
		t.Fatalf("Migrate: %v", err)
	}

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
	return NewPostgresStore(pool)
}

func seedPostgres(t *testing.T, store *PostgresStore, cpf string, balance int64) {
	t.Helper()
	err := store.CreateAccount(context.Background(), &models.Account{
		CPF:        cpf,
		Name:       "Conta " + cpf,
		SecretHash: "hash",
		Balance:    decimal.NewFromInt(balance),
		CreatedAt:  epoch,
	})
	if err != nil {
		t.Fatalf("CreateAccount(%s): %v", cpf, err)
	}
}

func TestPostgresCreateAccountDuplicate(t *testing.T) {
	store := openTestPostgres(t, pgCPFA)
	seedPostgres(t, store, pgCPFA, 5)

	err := store.CreateAccount(context.Background(), &models.Account{
		CPF: pgCPFA, Name: "Outra", SecretHash: "x", CreatedAt: epoch,
	})
	if !errors.Is(err, ErrDuplicateIdentity) {
		t.Fatalf("err=%v want ErrDuplicateIdentity", err)
	}
	account, err := store.GetAccount(context.Background(), pgCPFA)
	if err != nil {
		t.Fatal(err)
	}
	if account.Name != "Conta "+pgCPFA || !account.Balance.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("first account changed: %+v", account)
	}
}

func TestPostgresRollbackLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	store := openTestPostgres(t, pgCPFA, pgCPFB)
	seedPostgres(t, store, pgCPFA, 10)
	seedPostgres(t, store, pgCPFB, 0)

	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := tx.UpdateBalance(ctx, pgCPFA, decimal.NewFromInt(3), epoch); err != nil {
		t.Fatal(err)
	}
	if err := tx.UpdateBalance(ctx, pgCPFB, decimal.NewFromInt(7), epoch); err != nil {
		t.Fatal(err)
	}
	transfer := &models.Transfer{
		ID: uuid.NewString(), Amount: decimal.NewFromInt(7),
		SenderCPF: pgCPFA, ReceiverCPF: pgCPFB, CreatedAt: epoch, UpdatedAt: epoch,
	}
	if err := tx.InsertTransfer(ctx, transfer); err != nil {
		t.Fatal(err)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Fatal(err)
	}

	a, _ := store.GetAccount(ctx, pgCPFA)
	b, _ := store.GetAccount(ctx, pgCPFB)
	if !a.Balance.Equal(decimal.NewFromInt(10)) || !b.Balance.IsZero() {
		t.Fatalf("rolled back balances visible: a=%s b=%s", a.Balance, b.Balance)
	}
	entries, err := store.ListTransfers(ctx, pgCPFA, epoch.Add(-time.Hour), epoch.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("rolled back transfer listed: %+v", entries)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("second Rollback: %v", err)
	}
}

func TestPostgresForUpdateSerializesWriters(t *testing.T) {
	ctx := context.Background()
	store := openTestPostgres(t, pgCPFA)
	seedPostgres(t, store, pgCPFA, 10)

	first, err := store.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer first.Rollback(ctx)
	if _, err := first.GetAccountForUpdate(ctx, pgCPFA); err != nil {
		t.Fatal(err)
	}

	seen := make(chan decimal.Decimal, 1)
	go func() {
		second, err := store.Begin(ctx)
		if err != nil {
			t.Errorf("Begin: %v", err)
			close(seen)
			return
		}
		defer second.Rollback(ctx)
		account, err := second.GetAccountForUpdate(ctx, pgCPFA)
		if err != nil {
			t.Errorf("GetAccountForUpdate: %v", err)
			close(seen)
			return
		}
		seen <- account.Balance
	}()

	select {
	case <-seen:
		t.Fatal("second writer read a locked row")
	case <-time.After(200 * time.Millisecond):
	}

	if err := first.UpdateBalance(ctx, pgCPFA, decimal.NewFromInt(50), epoch); err != nil {
		t.Fatal(err)
	}
	if err := first.Commit(ctx); err != nil {
		t.Fatal(err)
	}

	select {
	case balance := <-seen:
		if !balance.Equal(decimal.NewFromInt(50)) {
			t.Fatalf("second writer saw %s want the committed 50", balance)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("second writer still blocked after commit")
	}
}

func TestPostgresListTransfersOrderAndRange(t *testing.T) {
	ctx := context.Background()
	store := openTestPostgres(t, pgCPFA, pgCPFB)
	seedPostgres(t, store, pgCPFA, 0)
	seedPostgres(t, store, pgCPFB, 0)

	insert := func(sender, receiver string, amount int64, at time.Time) string {
		t.Helper()
		tx, err := store.Begin(ctx)
		if err != nil {
			t.Fatal(err)
		}
		defer tx.Rollback(ctx)
		id := uuid.NewString()
		err = tx.InsertTransfer(ctx, &models.Transfer{
			ID: id, Amount: decimal.NewFromInt(amount),
			SenderCPF: sender, ReceiverCPF: receiver, CreatedAt: at, UpdatedAt: at,
		})
		if err != nil {
			t.Fatal(err)
		}
		if err := tx.Commit(ctx); err != nil {
			t.Fatal(err)
		}
		return id
	}

	firstAtEpoch := insert(pgCPFA, pgCPFA, 1, epoch)
	secondAtEpoch := insert(pgCPFA, pgCPFB, 2, epoch)
	atUpperBound := insert(pgCPFB, pgCPFA, 3, epoch.Add(time.Hour))
	insert(pgCPFA, pgCPFB, 4, epoch.Add(48*time.Hour))

	if err := store.DeleteAccount(ctx, pgCPFB); err != nil {
		t.Fatal(err)
	}

	entries, err := store.ListTransfers(ctx, pgCPFA, epoch, epoch.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries want 3 (both bounds inclusive)", len(entries))
	}
	want := []string{atUpperBound, secondAtEpoch, firstAtEpoch}
	for i, id := range want {
		if entries[i].Transfer.ID != id {
			t.Fatalf("entry %d is %s want %s", i, entries[i].Transfer.ID, id)
		}
	}
	if entries[0].Sender != nil || entries[0].Receiver == nil || entries[0].Receiver.CPF != pgCPFA {
		t.Fatalf("parties of deleted sender not resolved: %+v", entries[0])
	}
	if !entries[0].Transfer.Amount.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("amount=%s want 3", entries[0].Transfer.Amount)
	}
}
