package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"pix-server/internal/models"
)

// MemoryStore is a process-local Store. A unit of work holds the store lock
// from Begin until Commit or Rollback, so units of work are serialized.
type MemoryStore struct {
	mu        sync.Mutex
	accounts  map[string]models.Account
	transfers []models.Transfer
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[string]models.Account)}
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() {}

func (s *MemoryStore) Begin(ctx context.Context) (Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	return &memoryTx{
		store:    s,
		balances: make(map[string]balanceChange),
	}, nil
}

func (s *MemoryStore) CreateAccount(_ context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[account.CPF]; exists {
		return ErrDuplicateIdentity
	}
	account.UpdatedAt = account.CreatedAt
	s.accounts[account.CPF] = *account
	return nil
}

func (s *MemoryStore) GetAccount(_ context.Context, cpf string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[cpf]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return &account, nil
}

func (s *MemoryStore) UpdateProfile(_ context.Context, cpf string, name, secretHash *string, at time.Time) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[cpf]
	if !ok {
		return nil, ErrAccountNotFound
	}
	if name != nil {
		account.Name = *name
	}
	if secretHash != nil {
		account.SecretHash = *secretHash
	}
	account.UpdatedAt = at
	s.accounts[cpf] = account
	return &account, nil
}

func (s *MemoryStore) DeleteAccount(_ context.Context, cpf string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[cpf]; !ok {
		return ErrAccountNotFound
	}
	delete(s.accounts, cpf)
	return nil
}

func (s *MemoryStore) ListTransfers(_ context.Context, cpf string, from, to time.Time) ([]models.TransferEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	type indexed struct {
		seq   int
		entry models.TransferEntry
	}
	matches := make([]indexed, 0)
	for i, t := range s.transfers {
		if t.SenderCPF != cpf && t.ReceiverCPF != cpf {
			continue
		}
		if t.CreatedAt.Before(from) || t.CreatedAt.After(to) {
			continue
		}
		matches = append(matches, indexed{seq: i, entry: models.TransferEntry{
			Transfer: t,
			Sender:   s.party(t.SenderCPF),
			Receiver: s.party(t.ReceiverCPF),
		}})
	}

	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if !a.entry.Transfer.CreatedAt.Equal(b.entry.Transfer.CreatedAt) {
			return a.entry.Transfer.CreatedAt.After(b.entry.Transfer.CreatedAt)
		}
		return a.seq > b.seq
	})

	entries := make([]models.TransferEntry, 0, len(matches))
	for _, m := range matches {
		entries = append(entries, m.entry)
	}
	return entries, nil
}

func (s *MemoryStore) party(cpf string) *models.Account {
	account, ok := s.accounts[cpf]
	if !ok {
		return nil
	}
	return &models.Account{CPF: account.CPF, Name: account.Name}
}

type balanceChange struct {
	balance decimal.Decimal
	at      time.Time
}

// memoryTx stages writes and applies them to the store on Commit.
type memoryTx struct {
	store     *MemoryStore
	balances  map[string]balanceChange
	transfers []models.Transfer
	done      bool
}

func (t *memoryTx) GetAccountForUpdate(_ context.Context, cpf string) (*models.Account, error) {
	if t.done {
		return nil, ErrTxDone
	}
	account, ok := t.store.accounts[cpf]
	if !ok {
		return nil, ErrAccountNotFound
	}
	if staged, ok := t.balances[cpf]; ok {
		account.Balance = staged.balance
		account.UpdatedAt = staged.at
	}
	return &account, nil
}

func (t *memoryTx) UpdateBalance(_ context.Context, cpf string, balance decimal.Decimal, at time.Time) error {
	if t.done {
		return ErrTxDone
	}
	if _, ok := t.store.accounts[cpf]; !ok {
		return ErrAccountNotFound
	}
	t.balances[cpf] = balanceChange{balance: balance, at: at}
	return nil
}

func (t *memoryTx) InsertTransfer(_ context.Context, transfer *models.Transfer) error {
	if t.done {
		return ErrTxDone
	}
	t.transfers = append(t.transfers, *transfer)
	return nil
}

func (t *memoryTx) Commit(ctx context.Context) error {
	if t.done {
		return ErrTxDone
	}
	defer t.finish()

	if err := ctx.Err(); err != nil {
		return err
	}
	for cpf, change := range t.balances {
		account := t.store.accounts[cpf]
		account.Balance = change.balance
		account.UpdatedAt = change.at
		t.store.accounts[cpf] = account
	}
	t.store.transfers = append(t.store.transfers, t.transfers...)
	return nil
}

func (t *memoryTx) Rollback(context.Context) error {
	if t.done {
		return nil
	}
	t.finish()
	return nil
}

func (t *memoryTx) finish() {
	t.done = true
	t.balances = nil
	t.transfers = nil
	t.store.mu.Unlock()
}
