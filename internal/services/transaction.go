package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pix-server/internal/models"
	"pix-server/internal/repository"
	"pix-server/internal/utils"
)

// Deposit credits the account and records a transfer whose sender and
// receiver are both cpf.
func (l *Ledger) Deposit(ctx context.Context, cpf string, amount decimal.Decimal) (*models.Transfer, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	now := l.clock()
	transfer := newTransfer(cpf, cpf, amount, now)

	err := l.inTx(ctx, func(tx repository.Tx) error {
		account, err := tx.GetAccountForUpdate(ctx, cpf)
		if err != nil {
			return err
		}
		if err := tx.UpdateBalance(ctx, cpf, account.Balance.Add(amount), now); err != nil {
			return err
		}
		return tx.InsertTransfer(ctx, transfer)
	})
	if err != nil {
		return nil, err
	}
	l.invalidate(ctx, cpf)

	utils.LogSuccess("Ledger", "Deposit %s: %s +%s", transfer.ID, cpf, amount.StringFixed(2))
	return transfer, nil
}

// Transfer moves amount from sender to receiver. Both rows are locked in
// ascending cpf order, so opposing transfers cannot deadlock.
func (l *Ledger) Transfer(ctx context.Context, sender, receiver string, amount decimal.Decimal) (*models.Transfer, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if sender == receiver {
		return nil, ErrSelfTransfer
	}

	now := l.clock()
	transfer := newTransfer(sender, receiver, amount, now)

	err := l.inTx(ctx, func(tx repository.Tx) error {
		first, second := sender, receiver
		if second < first {
			first, second = second, first
		}
		locked := make(map[string]*models.Account, 2)
		for _, cpf := range []string{first, second} {
			account, err := tx.GetAccountForUpdate(ctx, cpf)
			if err != nil {
				return err
			}
			locked[cpf] = account
		}

		from, to := locked[sender], locked[receiver]
		if from.Balance.LessThan(amount) {
			return repository.ErrInsufficientFunds
		}
		if err := tx.UpdateBalance(ctx, sender, from.Balance.Sub(amount), now); err != nil {
			return err
		}
		if err := tx.UpdateBalance(ctx, receiver, to.Balance.Add(amount), now); err != nil {
			return err
		}
		return tx.InsertTransfer(ctx, transfer)
	})
	if err != nil {
		if !isBusinessError(err) {
			utils.LogError("Ledger", fmt.Sprintf("Transfer %s -> %s rolled back", sender, receiver), err)
		}
		return nil, err
	}
	l.invalidate(ctx, sender, receiver)

	utils.LogSuccess("Ledger", "Transfer %s: %s -> %s (%s)", transfer.ID, sender, receiver, amount.StringFixed(2))
	return transfer, nil
}

// History lists the records of cpf created in [from, to], newest first.
func (l *Ledger) History(ctx context.Context, cpf string, from, to time.Time) ([]models.TransferEntry, error) {
	if from.After(to) {
		return nil, ErrInvalidRange
	}
	if l.maxSpan > 0 && calendarSpan(from, to) > l.maxSpan {
		return nil, ErrInvalidRange
	}
	if _, err := l.store.GetAccount(ctx, cpf); err != nil {
		return nil, err
	}

	entries, err := l.store.ListTransfers(ctx, cpf, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	utils.LogDebug("Ledger", "History of %s: %d records", cpf, len(entries))
	return entries, nil
}

// calendarSpan is the distance between the UTC dates of from and to; the
// time of day does not count.
func calendarSpan(from, to time.Time) time.Duration {
	const day = 24 * time.Hour
	return to.UTC().Truncate(day).Sub(from.UTC().Truncate(day))
}

// inTx runs fn in one unit of work and commits only if fn succeeds.
func (l *Ledger) inTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	tx, err := l.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil {
			utils.LogError("Ledger", "Rollback failed", err)
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func newTransfer(sender, receiver string, amount decimal.Decimal, at time.Time) *models.Transfer {
	return &models.Transfer{
		ID:          uuid.NewString(),
		Amount:      amount,
		SenderCPF:   sender,
		ReceiverCPF: receiver,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
}

func isBusinessError(err error) bool {
	return errors.Is(err, repository.ErrAccountNotFound) ||
		errors.Is(err, repository.ErrInsufficientFunds)
}
