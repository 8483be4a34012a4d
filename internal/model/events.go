package model

import "time"

// Bus topics. Consumers subscribe with a shared queue group so that each
// event is handled by exactly one worker even when several processes run.
const (
	TopicRecipeCreated  = "recipes.created"
	TopicPaymentSettled = "payments.settled"
	WorkerQueueGroup    = "chefbot_workers"
)

// RecipeEvent is published after a generation was debited and delivered.
// The journal worker persists it; losing one costs an audit row, never money.
type RecipeEvent struct {
	UserID       int64     `json:"user_id"`
	Prompt       string    `json:"prompt"`
	Response     string    `json:"response"`
	BalanceAfter int       `json:"balance_after"`
	CreatedAt    time.Time `json:"created_at"`
}

// SettlementEvent is published exactly once per payment, on the
// pending→succeeded transition that credited the account.
type SettlementEvent struct {
	PaymentID    string    `json:"payment_id"`
	UserID       int64     `json:"user_id"`
	PackageKey   string    `json:"package_key"`
	Recipes      int       `json:"recipes"`
	Amount       int64     `json:"amount"`
	BalanceAfter int       `json:"balance_after"`
	SettledAt    time.Time `json:"settled_at"`
}
