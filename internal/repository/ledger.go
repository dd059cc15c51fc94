package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/apimeter/backend/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const txColumns = `id, account_id, type, amount, reason, actor_id, endpoint_id,
	balance_after, idempotency_key, created_at`

// uniqueViolation is the Postgres error code for unique index conflicts.
const uniqueViolation = "23505"

// LedgerRepository owns the append-only credit ledger and the materialized
// balance on the accounts row. Every append runs in a single transaction that
// locks the account row, so concurrent debits serialize per account and the
// cached balance can never drift from the ledger.
type LedgerRepository struct {
	db *pgxpool.Pool
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(db *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func scanTransaction(row pgx.Row) (*domain.CreditTransaction, error) {
	var t domain.CreditTransaction
	err := row.Scan(&t.ID, &t.AccountID, &t.Type, &t.Amount, &t.Reason, &t.ActorID,
		&t.EndpointID, &t.BalanceAfter, &t.IdempotencyKey, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Append records a ledger entry and updates the account's materialized
// balance atomically. Returns the stored entry, which is the previously
// stored one when the idempotency key has been seen before.
func (r *LedgerRepository) Append(ctx context.Context, entry *domain.CreditTransaction, allowNegative bool) (*domain.CreditTransaction, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin ledger transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	stored, err := r.appendLocked(ctx, tx, entry, allowNegative)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit ledger transaction: %w", err)
	}
	return stored, nil
}

// appendLocked performs the check-then-append-then-project sequence under the
// account row lock. Callers own the surrounding transaction.
func (r *LedgerRepository) appendLocked(ctx context.Context, tx pgx.Tx, entry *domain.CreditTransaction, allowNegative bool) (*domain.CreditTransaction, error) {
	if entry.IdempotencyKey != nil {
		existing, err := r.findByIdempotencyKey(ctx, tx, entry.AccountID, *entry.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	var remaining int64
	err := tx.QueryRow(ctx,
		`SELECT credits_remaining FROM accounts WHERE id = $1 FOR UPDATE`,
		entry.AccountID).Scan(&remaining)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrAccountNotFound()
		}
		return nil, fmt.Errorf("failed to lock account row: %w", err)
	}

	newRemaining := remaining + entry.SignedAmount()
	if newRemaining < 0 && !allowNegative {
		return nil, domain.ErrInsufficientBalance(
			"insufficient credit balance: have " + strconv.FormatInt(remaining, 10) +
				", need " + strconv.FormatInt(entry.Amount, 10))
	}
	entry.BalanceAfter = newRemaining

	_, err = tx.Exec(ctx, `
		INSERT INTO credit_transactions
			(id, account_id, type, amount, reason, actor_id, endpoint_id, balance_after, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, entry.ID, entry.AccountID, entry.Type, entry.Amount, entry.Reason, entry.ActorID,
		entry.EndpointID, entry.BalanceAfter, entry.IdempotencyKey, entry.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			// Lost a race on the idempotency key: the other writer's entry
			// is the entry of record.
			return nil, domain.ErrConcurrentModification()
		}
		return nil, fmt.Errorf("failed to append ledger entry: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE accounts SET credits_remaining = $1, updated_at = NOW() WHERE id = $2`,
		newRemaining, entry.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to project balance: %w", err)
	}

	return entry, nil
}

func (r *LedgerRepository) findByIdempotencyKey(ctx context.Context, tx pgx.Tx, accountID, key string) (*domain.CreditTransaction, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+txColumns+` FROM credit_transactions WHERE account_id = $1 AND idempotency_key = $2`,
		accountID, key)
	t, err := scanTransaction(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up idempotency key: %w", err)
	}
	return t, nil
}

// ApplyPlanChange swaps the account's plan and allotment under the row lock,
// appending a compensating ledger entry for the credit delta so replay still
// balances. The top-up-delta policy applies: remaining moves by
// newTotal - oldTotal, floored at zero on downgrade.
func (r *LedgerRepository) ApplyPlanChange(ctx context.Context, accountID, planID string, newTotal int64) (*domain.Account, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin plan change: %w", err)
	}
	defer tx.Rollback(ctx)

	var remaining, oldTotal int64
	err = tx.QueryRow(ctx,
		`SELECT credits_remaining, credits_total FROM accounts WHERE id = $1 FOR UPDATE`,
		accountID).Scan(&remaining, &oldTotal)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrAccountNotFound()
		}
		return nil, fmt.Errorf("failed to lock account row: %w", err)
	}

	delta := newTotal - oldTotal
	newRemaining := remaining + delta
	if newRemaining < 0 {
		// Downgrade may not create debt; the removal is clamped.
		delta = -remaining
		newRemaining = 0
	}

	if delta != 0 {
		entryType := domain.TransactionAdd
		amount := delta
		if delta < 0 {
			entryType = domain.TransactionRemove
			amount = -delta
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO credit_transactions
				(id, account_id, type, amount, reason, actor_id, balance_after, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		`, domain.NewID(), accountID, entryType, amount,
			"plan change to "+planID, domain.SystemActor, newRemaining)
		if err != nil {
			return nil, fmt.Errorf("failed to append plan-change entry: %w", err)
		}
	}

	row := tx.QueryRow(ctx, `
		UPDATE accounts
		SET plan_id = $1, credits_total = $2, credits_remaining = $3, updated_at = NOW()
		WHERE id = $4
		RETURNING `+accountColumns,
		planID, newTotal, newRemaining, accountID)
	account, err := scanAccount(row)
	if err != nil {
		return nil, fmt.Errorf("failed to apply plan change: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit plan change: %w", err)
	}
	return account, nil
}

// History returns ledger entries in reverse-chronological order.
func (r *LedgerRepository) History(ctx context.Context, accountID string, f domain.HistoryFilter) ([]*domain.CreditTransaction, error) {
	query := `SELECT ` + txColumns + ` FROM credit_transactions WHERE account_id = $1`
	args := []interface{}{accountID}

	if f.Type != "" {
		args = append(args, f.Type)
		query += fmt.Sprintf(` AND type = $%d`, len(args))
	}
	if !f.From.IsZero() {
		args = append(args, f.From)
		query += fmt.Sprintf(` AND created_at >= $%d`, len(args))
	}
	if !f.To.IsZero() {
		args = append(args, f.To)
		query += fmt.Sprintf(` AND created_at < $%d`, len(args))
	}

	query += ` ORDER BY created_at DESC, id DESC`
	args = append(args, f.Limit)
	query += fmt.Sprintf(` LIMIT $%d`, len(args))
	args = append(args, f.Offset)
	query += fmt.Sprintf(` OFFSET $%d`, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger history: %w", err)
	}
	defer rows.Close()

	var entries []*domain.CreditTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, t)
	}
	return entries, nil
}

// Replay computes the signed sum of all entries for an account in timestamp
// order. For a consistent ledger it equals the materialized balance.
func (r *LedgerRepository) Replay(ctx context.Context, accountID string) (int64, error) {
	var balance int64
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(CASE WHEN type IN ('ADD', 'REFUND') THEN amount ELSE -amount END), 0)
		FROM credit_transactions WHERE account_id = $1
	`, accountID).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("failed to replay ledger: %w", err)
	}
	return balance, nil
}

// DailyTotals returns per-day USAGE rollups since the given instant. Days
// without activity are absent; the service layer zero-fills them.
func (r *LedgerRepository) DailyTotals(ctx context.Context, accountID string, from time.Time) ([]domain.DailyUsagePoint, error) {
	rows, err := r.db.Query(ctx, `
		SELECT to_char(date_trunc('day', created_at AT TIME ZONE 'UTC'), 'YYYY-MM-DD'),
		       COALESCE(SUM(amount), 0), COUNT(*)
		FROM credit_transactions
		WHERE account_id = $1 AND type = 'USAGE' AND created_at >= $2
		GROUP BY 1 ORDER BY 1
	`, accountID, from)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily totals: %w", err)
	}
	defer rows.Close()

	var points []domain.DailyUsagePoint
	for rows.Next() {
		var p domain.DailyUsagePoint
		if err := rows.Scan(&p.Date, &p.CreditsConsumed, &p.RequestCount); err != nil {
			return nil, fmt.Errorf("failed to scan daily total: %w", err)
		}
		points = append(points, p)
	}
	return points, nil
}

// UsageByEndpoint returns per-endpoint USAGE rollups. Percentages are left to
// the service layer. Entries for deleted endpoints keep their raw ID.
func (r *LedgerRepository) UsageByEndpoint(ctx context.Context, accountID string) ([]domain.EndpointUsage, error) {
	rows, err := r.db.Query(ctx, `
		SELECT COALESCE(e.name, t.endpoint_id, 'unknown'),
		       COALESCE(SUM(t.amount), 0), COUNT(*)
		FROM credit_transactions t
		LEFT JOIN endpoints e ON e.id = t.endpoint_id
		WHERE t.account_id = $1 AND t.type = 'USAGE'
		GROUP BY 1 ORDER BY 2 DESC
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query endpoint usage: %w", err)
	}
	defer rows.Close()

	var usage []domain.EndpointUsage
	for rows.Next() {
		var u domain.EndpointUsage
		if err := rows.Scan(&u.Endpoint, &u.Credits, &u.Requests); err != nil {
			return nil, fmt.Errorf("failed to scan endpoint usage: %w", err)
		}
		usage = append(usage, u)
	}
	return usage, nil
}

// Count returns the total number of ledger entries.
func (r *LedgerRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM credit_transactions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count ledger entries: %w", err)
	}
	return n, nil
}
