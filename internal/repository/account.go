package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"pix-server/internal/models"
	"pix-server/internal/utils"
)

const uniqueViolation = "23505"

const accountColumns = `cpf, name, secret_hash, balance::text, created_at, updated_at`

// PostgresStore keeps accounts and transfers in PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	utils.LogSuccess("PostgresStore", "Account storage ready")
	return &PostgresStore{db: db}
}

func (r *PostgresStore) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func (r *PostgresStore) Close() {
	r.db.Close()
}

func (r *PostgresStore) CreateAccount(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts (cpf, name, secret_hash, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $5)
	`

	utils.LogDB("CREATE ACCOUNT", account.CPF)

	_, err := r.db.Exec(ctx, query,
		account.CPF,
		account.Name,
		account.SecretHash,
		account.Balance.StringFixed(2),
		account.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateIdentity
		}
		return fmt.Errorf("insert account: %w", err)
	}
	account.UpdatedAt = account.CreatedAt
	return nil
}

func (r *PostgresStore) GetAccount(ctx context.Context, cpf string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE cpf = $1`

	account, err := scanAccount(r.db.QueryRow(ctx, query, cpf))
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (r *PostgresStore) UpdateProfile(ctx context.Context, cpf string, name, secretHash *string, at time.Time) (*models.Account, error) {
	query := `
		UPDATE accounts
		SET name = COALESCE($2, name),
		    secret_hash = COALESCE($3, secret_hash),
		    updated_at = $4
		WHERE cpf = $1
		RETURNING ` + accountColumns

	utils.LogDB("UPDATE ACCOUNT", cpf)

	return scanAccount(r.db.QueryRow(ctx, query, cpf, name, secretHash, at))
}

func (r *PostgresStore) DeleteAccount(ctx context.Context, cpf string) error {
	utils.LogDB("DELETE ACCOUNT", cpf)

	result, err := r.db.Exec(ctx, `DELETE FROM accounts WHERE cpf = $1`, cpf)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var (
		account models.Account
		balance string
	)
	err := row.Scan(
		&account.CPF,
		&account.Name,
		&account.SecretHash,
		&balance,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}

	account.Balance, err = decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("parse balance of %s: %w", account.CPF, err)
	}
	account.CreatedAt = account.CreatedAt.UTC()
	account.UpdatedAt = account.UpdatedAt.UTC()
	return &account, nil
}
