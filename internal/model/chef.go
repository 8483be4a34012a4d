package model

import "time"

// Account is a bot user, keyed by the Telegram user id.
// The balance is counted in recipes: one token buys one generation.
type Account struct {
	UserID        int64
	Username      string
	FullName      string
	TokensBalance int
	TotalSpent    int64 // whole currency units, accumulated over succeeded payments
	TotalRecipes  int
	CreatedAt     time.Time
	LastSeen      time.Time
}

// PaymentStatus mirrors the provider's payment lifecycle.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentCanceled  PaymentStatus = "canceled"
)

// Terminal reports whether the status can no longer change.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentSucceeded || s == PaymentCanceled
}

// Payment is one payment attempt, keyed by the provider-issued id.
type Payment struct {
	ID         string
	UserID     int64
	PackageKey string
	Amount     int64
	Recipes    int
	Status     PaymentStatus
	CreatedAt  time.Time
}

// Settlement reports what a settlement attempt actually did. Credited is
// false for replayed notifications — that is the idempotency contract
// working, not an error.
type Settlement struct {
	Payment      Payment
	BalanceAfter int
	Credited     bool
}

// Package is a purchasable bundle of recipe tokens.
type Package struct {
	Key     string
	Name    string
	Price   int64
	Recipes int
}

// Checkout is what the payment provider hands back when a payment is created.
type Checkout struct {
	PaymentID string
	URL       string
	Amount    int64
	Recipes   int
}

// Recipe is one generated recipe, kept for audit and admin stats.
type Recipe struct {
	ID        int64
	UserID    int64
	Prompt    string
	Response  string
	CreatedAt time.Time
}

// RecipeResult is what a fulfilled generation returns to the caller.
type RecipeResult struct {
	Text         string
	BalanceAfter int
}

// Stats is the admin dashboard snapshot.
type Stats struct {
	TotalUsers   int
	NewToday     int
	TotalRecipes int
	RecipesToday int
	TotalRevenue int64
	TopPrompts   []PromptCount
}

// PromptCount is one row of the most-requested prompts.
type PromptCount struct {
	Prompt string
	Count  int
}
