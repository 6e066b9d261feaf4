package store

import (
	"context"
	"database/sql"
	"errors"
)

func (s *Store) CreateAccount(ctx context.Context, name string, startingBalance int) (int64, error) {
	var id int64
	err := s.DB.QueryRowContext(ctx, `
		INSERT INTO accounts (name, balance)
		VALUES ($1,$2) RETURNING id
	`, name, startingBalance).Scan(&id)
	return id, err
}

func (s *Store) GetBalance(ctx context.Context, accountID int64) (int, error) {
	var balance int
	err := s.DB.QueryRowContext(ctx,
		`SELECT balance FROM accounts WHERE id=$1`, accountID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return balance, err
}

// Reserve debits exactly one credit; the balance >= 1 predicate keeps
// the check and the decrement in one statement.
func (s *Store) Reserve(ctx context.Context, accountID int64) error {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE accounts SET balance = balance - 1
		WHERE id=$1 AND balance >= 1
	`, accountID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	var exists bool
	if err := s.DB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE id=$1)`, accountID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrInsufficientBalance
}

// AddCredits is the payment-webhook top-up.
func (s *Store) AddCredits(ctx context.Context, accountID int64, credits int) error {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE accounts SET balance = balance + $2
		WHERE id=$1
	`, accountID, credits)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
