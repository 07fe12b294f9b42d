package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"pix-server/internal/models"
)

var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrDuplicateIdentity = errors.New("account already exists")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrTxDone            = errors.New("unit of work already finished")
)

// Store is the external storage for accounts and transfer records. Balance
// changes only go through a Tx.
type Store interface {
	Begin(ctx context.Context) (Tx, error)

	CreateAccount(ctx context.Context, account *models.Account) error
	GetAccount(ctx context.Context, cpf string) (*models.Account, error)
	UpdateProfile(ctx context.Context, cpf string, name, secretHash *string, at time.Time) (*models.Account, error)
	DeleteAccount(ctx context.Context, cpf string) error

	// ListTransfers returns records where cpf is sender or receiver and
	// the creation time lies in [from, to], newest first.
	ListTransfers(ctx context.Context, cpf string, from, to time.Time) ([]models.TransferEntry, error)

	Ping(ctx context.Context) error
	Close()
}

// Tx is a unit of work. Nothing it writes is visible to others until Commit;
// Rollback after Commit is a no-op so it can always be deferred.
type Tx interface {
	GetAccountForUpdate(ctx context.Context, cpf string) (*models.Account, error)
	UpdateBalance(ctx context.Context, cpf string, balance decimal.Decimal, at time.Time) error
	InsertTransfer(ctx context.Context, transfer *models.Transfer) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
