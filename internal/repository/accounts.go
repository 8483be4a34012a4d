package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"chefbot/internal/model"
)

// balanceTTL bounds how long a cached balance can outlive a missed
// invalidation. Postgres stays the authority either way.
const balanceTTL = time.Hour

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrPaymentNotFound = errors.New("payment not found")
)

// AccountingRepo owns the durable accounting state: accounts, payments and
// the recipe journal live in Postgres, balances are mirrored into Redis for
// cheap reads, and settled events go out over the bus.
type AccountingRepo struct {
	dbPool       *pgxpool.Pool
	redisClient  *redis.Client
	bus          MessageBus
	startBalance int
}

func NewAccountingRepo(db *pgxpool.Pool, rdb *redis.Client, bus MessageBus, startBalance int) *AccountingRepo {
	return &AccountingRepo{
		dbPool:       db,
		redisClient:  rdb,
		bus:          bus,
		startBalance: startBalance,
	}
}

// GetOrCreate returns the account for userID, inserting it with the starting
// balance on first contact. Existing rows only get their profile fields and
// last_seen refreshed — the balance is never touched here.
func (r *AccountingRepo) GetOrCreate(ctx context.Context, userID int64, username, fullName string) (*model.Account, error) {
	query := `
		INSERT INTO accounts (user_id, username, full_name, tokens_balance)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET username = EXCLUDED.username, full_name = EXCLUDED.full_name, last_seen = now()
		RETURNING user_id, username, full_name, tokens_balance, total_spent, total_recipes, created_at, last_seen`

	var acc model.Account
	err := r.dbPool.QueryRow(ctx, query, userID, username, fullName, r.startBalance).Scan(
		&acc.UserID, &acc.Username, &acc.FullName, &acc.TokensBalance,
		&acc.TotalSpent, &acc.TotalRecipes, &acc.CreatedAt, &acc.LastSeen,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert account %d: %w", userID, err)
	}
	return &acc, nil
}

// Balance returns the current balance, serving from the Redis mirror when it
// is warm. Accounts that were never seen report the starting balance without
// creating a row. Redis faults degrade to a Postgres read.
func (r *AccountingRepo) Balance(ctx context.Context, userID int64) (int, error) {
	key := balanceKey(userID)

	cached, err := r.redisClient.Get(ctx, key).Result()
	if err == nil {
		if bal, convErr := strconv.Atoi(cached); convErr == nil {
			return bal, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		slog.Warn("balance cache read failed, falling back to db", "user_id", userID, "error", err)
	}

	var bal int
	err = r.dbPool.QueryRow(ctx, `SELECT tokens_balance FROM accounts WHERE user_id = $1`, userID).Scan(&bal)
	if errors.Is(err, pgx.ErrNoRows) {
		return r.startBalance, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read balance %d: %w", userID, err)
	}

	if err := r.redisClient.Set(ctx, key, bal, balanceTTL).Err(); err != nil {
		slog.Warn("balance cache write failed", "user_id", userID, "error", err)
	}
	return bal, nil
}

// DebitIfPositive burns one recipe token and bumps the usage counter, but
// only if the balance is still positive. The conditional UPDATE is the sole
// concurrency guard: two concurrent debits against a balance of 1 yield
// exactly one success. Returns the remaining balance and whether the debit
// happened.
func (r *AccountingRepo) DebitIfPositive(ctx context.Context, userID int64) (int, bool, error) {
	query := `
		UPDATE accounts
		SET tokens_balance = tokens_balance - 1, total_recipes = total_recipes + 1, last_seen = now()
		WHERE user_id = $1 AND tokens_balance > 0
		RETURNING tokens_balance`

	var bal int
	err := r.dbPool.QueryRow(ctx, query, userID).Scan(&bal)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("debit account %d: %w", userID, err)
	}

	r.dropBalanceCache(ctx, userID)
	return bal, true, nil
}

// Credit adds units to the balance and the paid amount to the spend
// accumulator. It runs inside the settlement transaction and is deliberately
// not idempotent — the payment ledger's pending→succeeded gate is the only
// caller allowed to invoke it.
func (r *AccountingRepo) Credit(ctx context.Context, tx pgx.Tx, userID int64, units int, amount int64) (int, error) {
	query := `
		UPDATE accounts
		SET tokens_balance = tokens_balance + $2, total_spent = total_spent + $3
		WHERE user_id = $1
		RETURNING tokens_balance`

	var bal int
	err := tx.QueryRow(ctx, query, userID, units, amount).Scan(&bal)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrAccountNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("credit account %d: %w", userID, err)
	}
	return bal, nil
}

// dropBalanceCache invalidates the Redis mirror after a write. The next
// Balance call re-warms it from Postgres.
func (r *AccountingRepo) dropBalanceCache(ctx context.Context, userID int64) {
	if err := r.redisClient.Del(ctx, balanceKey(userID)).Err(); err != nil {
		slog.Warn("balance cache invalidation failed", "user_id", userID, "error", err)
	}
}

func balanceKey(userID int64) string {
	return fmt.Sprintf("balance:%d", userID)
}
