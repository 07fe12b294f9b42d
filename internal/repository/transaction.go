package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"pix-server/internal/models"
	"pix-server/internal/utils"
)

// Begin opens a unit of work at read-committed isolation; rows read through
// GetAccountForUpdate stay locked until Commit or Rollback.
func (r *PostgresStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &pgTx{tx: tx}, nil
}

func (r *PostgresStore) ListTransfers(ctx context.Context, cpf string, from, to time.Time) ([]models.TransferEntry, error) {
	query := `
		SELECT t.id, t.amount::text, t.sender_cpf, t.receiver_cpf, t.created_at, t.updated_at,
		       s.name, r.name
		FROM transfers t
		LEFT JOIN accounts s ON s.cpf = t.sender_cpf
		LEFT JOIN accounts r ON r.cpf = t.receiver_cpf
		WHERE (t.sender_cpf = $1 OR t.receiver_cpf = $1)
		  AND t.created_at BETWEEN $2 AND $3
		ORDER BY t.created_at DESC, t.seq DESC
	`

	rows, err := r.db.Query(ctx, query, cpf, from, to)
	if err != nil {
		return nil, fmt.Errorf("query transfers: %w", err)
	}
	defer rows.Close()

	entries := make([]models.TransferEntry, 0)
	for rows.Next() {
		var (
			entry                    models.TransferEntry
			amount                   string
			senderName, receiverName *string
		)
		err := rows.Scan(
			&entry.Transfer.ID,
			&amount,
			&entry.Transfer.SenderCPF,
			&entry.Transfer.ReceiverCPF,
			&entry.Transfer.CreatedAt,
			&entry.Transfer.UpdatedAt,
			&senderName,
			&receiverName,
		)
		if err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		if entry.Transfer.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse amount of %s: %w", entry.Transfer.ID, err)
		}
		entry.Transfer.CreatedAt = entry.Transfer.CreatedAt.UTC()
		entry.Transfer.UpdatedAt = entry.Transfer.UpdatedAt.UTC()
		if senderName != nil {
			entry.Sender = &models.Account{CPF: entry.Transfer.SenderCPF, Name: *senderName}
		}
		if receiverName != nil {
			entry.Receiver = &models.Account{CPF: entry.Transfer.ReceiverCPF, Name: *receiverName}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transfers: %w", err)
	}
	return entries, nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) GetAccountForUpdate(ctx context.Context, cpf string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE cpf = $1 FOR UPDATE`
	return scanAccount(t.tx.QueryRow(ctx, query, cpf))
}

func (t *pgTx) UpdateBalance(ctx context.Context, cpf string, balance decimal.Decimal, at time.Time) error {
	result, err := t.tx.Exec(ctx,
		`UPDATE accounts SET balance = $2::numeric, updated_at = $3 WHERE cpf = $1`,
		cpf, balance.StringFixed(2), at,
	)
	if err != nil {
		return fmt.Errorf("update balance of %s: %w", cpf, err)
	}
	if result.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (t *pgTx) InsertTransfer(ctx context.Context, transfer *models.Transfer) error {
	query := `
		INSERT INTO transfers (id, amount, sender_cpf, receiver_cpf, created_at, updated_at)
		VALUES ($1, $2::numeric, $3, $4, $5, $6)
	`

	utils.LogDB("INSERT TRANSFER", transfer.ID)

	_, err := t.tx.Exec(ctx, query,
		transfer.ID,
		transfer.Amount.StringFixed(2),
		transfer.SenderCPF,
		transfer.ReceiverCPF,
		transfer.CreatedAt,
		transfer.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transfer %s: %w", transfer.ID, err)
	}
	return nil
}

func (t *pgTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (t *pgTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("rollback transaction: %w", err)
	}
	return nil
}
