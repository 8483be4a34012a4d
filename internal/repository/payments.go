package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"chefbot/internal/model"
)

// CreatePayment records a payment attempt in pending state. Re-creating the
// same payment id replaces the prior record, so the purchase flow can retry
// provider calls safely before anything has settled.
func (r *AccountingRepo) CreatePayment(ctx context.Context, p *model.Payment) error {
	query := `
		INSERT INTO payments (id, user_id, package_key, amount, recipes, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET user_id = EXCLUDED.user_id, package_key = EXCLUDED.package_key,
		    amount = EXCLUDED.amount, recipes = EXCLUDED.recipes, status = EXCLUDED.status`

	status := p.Status
	if status == "" {
		status = model.PaymentPending
	}
	if _, err := r.dbPool.Exec(ctx, query, p.ID, p.UserID, p.PackageKey, p.Amount, p.Recipes, status); err != nil {
		return fmt.Errorf("create payment %s: %w", p.ID, err)
	}
	return nil
}

// Settle finalizes a payment's status. The account is credited only on the
// first pending→succeeded transition; the credit and the status write share
// one transaction so a crash can never grant tokens without recording the
// settlement, or vice versa. Later notifications rewrite the status but skip
// the credit. Unknown payment ids return ErrPaymentNotFound.
func (r *AccountingRepo) Settle(ctx context.Context, paymentID string, status model.PaymentStatus) (*model.Settlement, error) {
	tx, err := r.dbPool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin settle %s: %w", paymentID, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		SELECT id, user_id, package_key, amount, recipes, status, created_at
		FROM payments
		WHERE id = $1
		FOR UPDATE`

	var p model.Payment
	err = tx.QueryRow(ctx, query, paymentID).Scan(
		&p.ID, &p.UserID, &p.PackageKey, &p.Amount, &p.Recipes, &p.Status, &p.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock payment %s: %w", paymentID, err)
	}

	res := &model.Settlement{Payment: p}

	// The one gate against double-crediting: only pending may mint tokens.
	if p.Status == model.PaymentPending && status == model.PaymentSucceeded {
		bal, err := r.Credit(ctx, tx, p.UserID, p.Recipes, p.Amount)
		if err != nil {
			return nil, fmt.Errorf("settle %s: %w", paymentID, err)
		}
		res.BalanceAfter = bal
		res.Credited = true
	}

	if _, err := tx.Exec(ctx, `UPDATE payments SET status = $2 WHERE id = $1`, paymentID, status); err != nil {
		return nil, fmt.Errorf("update payment %s status: %w", paymentID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit settle %s: %w", paymentID, err)
	}
	res.Payment.Status = status

	if res.Credited {
		r.dropBalanceCache(ctx, p.UserID)
		r.publishSettled(res)
	}
	return res, nil
}

// publishSettled announces a first-time credit on the bus. Publishing happens
// after commit: a lost event costs one notification, a phantom event would
// cost trust in the ledger.
func (r *AccountingRepo) publishSettled(res *model.Settlement) {
	event := model.SettlementEvent{
		PaymentID:    res.Payment.ID,
		UserID:       res.Payment.UserID,
		PackageKey:   res.Payment.PackageKey,
		Recipes:      res.Payment.Recipes,
		Amount:       res.Payment.Amount,
		BalanceAfter: res.BalanceAfter,
		SettledAt:    time.Now(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("marshal settlement event", "payment_id", res.Payment.ID, "error", err)
		return
	}
	if err := r.bus.Publish(model.TopicPaymentSettled, data); err != nil {
		slog.Error("publish settlement event", "payment_id", res.Payment.ID, "error", err)
	}
}
