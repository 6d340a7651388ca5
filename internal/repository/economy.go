package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/arkade-labs/guildxp/internal/domain"
)

// EconomyRepository defines persistence operations for the coin wallet.
type EconomyRepository interface {
	AddCoins(ctx context.Context, userID int64, amount int64) error
	RemoveCoins(ctx context.Context, userID int64, amount int64) (bool, error)
	DebitClamped(ctx context.Context, userID int64, amount int64) error
	GetWallet(ctx context.Context, userID int64) (domain.Wallet, error)
	TopByBalance(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
}

type economyRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewEconomyRepository creates a SQL-backed economy repository.
func NewEconomyRepository(db *sql.DB, log *slog.Logger) EconomyRepository {
	return &economyRepository{
		db:  db,
		log: log,
	}
}

// AddCoins credits the wallet, creating it on first use. Amount must be
// non-negative.
func (r *economyRepository) AddCoins(ctx context.Context, userID int64, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("add coins: negative amount %d", amount)
	}

	const query = `
		INSERT INTO economy (user_id, balance, total_earned)
		VALUES ($1, $2, $2)
		ON CONFLICT (user_id) DO UPDATE
			SET balance = economy.balance + EXCLUDED.balance,
			    total_earned = economy.total_earned + EXCLUDED.balance
	`

	if _, err := r.db.ExecContext(ctx, query, userID, amount); err != nil {
		r.logError("add coins", userID, err)
		return fmt.Errorf("add coins: %w", err)
	}

	return nil
}

// RemoveCoins debits the wallet only if the balance covers the full amount.
// It reports whether the debit was applied; the conditional UPDATE makes the
// check-and-debit a single atomic statement.
func (r *economyRepository) RemoveCoins(ctx context.Context, userID int64, amount int64) (bool, error) {
	if amount < 0 {
		return false, fmt.Errorf("remove coins: negative amount %d", amount)
	}

	const query = `
		UPDATE economy
		SET balance = balance - $1
		WHERE user_id = $2 AND balance >= $1
	`

	res, err := r.db.ExecContext(ctx, query, amount, userID)
	if err != nil {
		r.logError("remove coins", userID, err)
		return false, fmt.Errorf("remove coins: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove coins: rows affected: %w", err)
	}

	return affected == 1, nil
}

// DebitClamped debits the wallet but never below zero. Used for penalties,
// which always apply even when the balance cannot cover them.
func (r *economyRepository) DebitClamped(ctx context.Context, userID int64, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("debit clamped: negative amount %d", amount)
	}

	const query = `
		INSERT INTO economy (user_id, balance, total_earned)
		VALUES ($1, 0, 0)
		ON CONFLICT (user_id) DO UPDATE
			SET balance = GREATEST(economy.balance - $2, 0)
	`

	if _, err := r.db.ExecContext(ctx, query, userID, amount); err != nil {
		r.logError("debit clamped", userID, err)
		return fmt.Errorf("debit clamped: %w", err)
	}

	return nil
}

// GetWallet returns the wallet for a user. Users without one read as empty.
func (r *economyRepository) GetWallet(ctx context.Context, userID int64) (domain.Wallet, error) {
	const query = `
		SELECT balance, total_earned
		FROM economy
		WHERE user_id = $1
	`

	wallet := domain.Wallet{UserID: userID}

	err := r.db.QueryRowContext(ctx, query, userID).Scan(&wallet.Balance, &wallet.TotalEarned)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return wallet, nil
		}

		r.logError("get wallet", userID, err)
		return wallet, fmt.Errorf("select wallet: %w", err)
	}

	return wallet, nil
}

func (r *economyRepository) TopByBalance(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	const query = `
		SELECT user_id, balance
		FROM economy
		ORDER BY balance DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		r.logError("top by balance", 0, err)
		return nil, fmt.Errorf("top by balance: %w", err)
	}
	defer rows.Close()

	var entries []domain.LeaderboardEntry
	for rows.Next() {
		var entry domain.LeaderboardEntry
		if err := rows.Scan(&entry.UserID, &entry.Value); err != nil {
			return nil, fmt.Errorf("top by balance: scan: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

func (r *economyRepository) logError(op string, userID int64, err error) {
	if r.log == nil {
		return
	}

	r.log.Error("economy repository operation failed",
		slog.String("operation", op),
		slog.Int64("user_id", userID),
		slog.Any("error", err),
	)
}
