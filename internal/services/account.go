package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"pix-server/internal/models"
	"pix-server/internal/repository"
	"pix-server/internal/utils"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrSelfTransfer       = errors.New("sender and receiver are the same account")
	ErrInvalidRange       = errors.New("invalid history range")
)

// AccountCache serves account snapshots for reads. Implementations swallow
// their own failures.
type AccountCache interface {
	GetAccount(ctx context.Context, cpf string) (*models.Account, bool)
	SetAccount(ctx context.Context, account *models.Account)
	InvalidateAccounts(ctx context.Context, cpfs ...string)
}

type LedgerOptions struct {
	StartingBalance decimal.Decimal
	HistoryMaxSpan  time.Duration
	Cache           AccountCache
}

// Ledger owns every change to accounts and balances.
type Ledger struct {
	store           repository.Store
	auth            *AuthService
	cache           AccountCache
	startingBalance decimal.Decimal
	maxSpan         time.Duration
	now             func() time.Time

	// cacheGen counts invalidations; a snapshot read before one of them is
	// never written back to the cache.
	cacheMu  sync.Mutex
	cacheGen uint64
}

func NewLedger(store repository.Store, auth *AuthService, opts LedgerOptions) *Ledger {
	utils.LogSuccess("Ledger", "Ledger ready (starting balance %s, history window %v)",
		opts.StartingBalance.StringFixed(2), opts.HistoryMaxSpan)
	return &Ledger{
		store:           store,
		auth:            auth,
		cache:           opts.Cache,
		startingBalance: opts.StartingBalance,
		maxSpan:         opts.HistoryMaxSpan,
		now:             time.Now,
	}
}

// clock returns the current time at the precision the wire format carries.
func (l *Ledger) clock() time.Time {
	return l.now().UTC().Truncate(time.Second)
}

func (l *Ledger) Create(ctx context.Context, cpf, name, secret string) (*models.Account, error) {
	hash, err := l.auth.HashSecret(secret)
	if err != nil {
		return nil, err
	}

	account := &models.Account{
		CPF:        cpf,
		Name:       name,
		SecretHash: hash,
		Balance:    l.startingBalance,
		CreatedAt:  l.clock(),
	}
	if err := l.store.CreateAccount(ctx, account); err != nil {
		if !errors.Is(err, repository.ErrDuplicateIdentity) {
			utils.LogError("Ledger", "Create account "+cpf+" failed", err)
		}
		return nil, err
	}

	utils.LogSuccess("Ledger", "Account %s created", cpf)
	return account, nil
}

// Authenticate checks a secret. Unknown identities and wrong secrets are
// indistinguishable to the caller.
func (l *Ledger) Authenticate(ctx context.Context, cpf, secret string) error {
	account, err := l.store.GetAccount(ctx, cpf)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return ErrInvalidCredentials
		}
		return err
	}
	return l.auth.CheckSecret(secret, account.SecretHash)
}

func (l *Ledger) Read(ctx context.Context, cpf string) (*models.Account, error) {
	if l.cache == nil {
		return l.store.GetAccount(ctx, cpf)
	}
	if account, ok := l.cache.GetAccount(ctx, cpf); ok {
		return account, nil
	}

	gen := l.cacheGeneration()
	account, err := l.store.GetAccount(ctx, cpf)
	if err != nil {
		return nil, err
	}
	l.fillCache(ctx, gen, account)
	return account, nil
}

// Update applies the fields present in the patch. An empty patch changes
// nothing and returns the current snapshot.
func (l *Ledger) Update(ctx context.Context, cpf string, patch models.AccountPatch) (*models.Account, error) {
	if patch.IsEmpty() {
		return l.store.GetAccount(ctx, cpf)
	}

	var secretHash *string
	if patch.Secret != nil {
		hash, err := l.auth.HashSecret(*patch.Secret)
		if err != nil {
			return nil, err
		}
		secretHash = &hash
	}

	account, err := l.store.UpdateProfile(ctx, cpf, patch.Name, secretHash, l.clock())
	if err != nil {
		return nil, err
	}
	l.invalidate(ctx, cpf)

	utils.LogInfo("Ledger", "Account %s updated", cpf)
	return account, nil
}

// Delete removes the account. Its transfer records stay in storage.
func (l *Ledger) Delete(ctx context.Context, cpf string) error {
	if err := l.store.DeleteAccount(ctx, cpf); err != nil {
		return err
	}
	l.invalidate(ctx, cpf)

	utils.LogInfo("Ledger", "Account %s deleted", cpf)
	return nil
}

func (l *Ledger) cacheGeneration() uint64 {
	l.cacheMu.Lock()
	defer l.cacheMu.Unlock()
	return l.cacheGen
}

// fillCache stores account unless an invalidation ran since gen was taken.
func (l *Ledger) fillCache(ctx context.Context, gen uint64, account *models.Account) {
	l.cacheMu.Lock()
	defer l.cacheMu.Unlock()
	if l.cacheGen != gen {
		utils.LogDebug("Ledger", "Skipping cache fill of %s: changed while reading", account.CPF)
		return
	}
	l.cache.SetAccount(ctx, account)
}

func (l *Ledger) invalidate(ctx context.Context, cpfs ...string) {
	if l.cache == nil {
		return
	}
	l.cacheMu.Lock()
	defer l.cacheMu.Unlock()
	l.cacheGen++
	l.cache.InvalidateAccounts(ctx, cpfs...)
}
