package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sethvargo/go-retry"

	"chefbot/internal/generation"
	"chefbot/internal/model"
	"chefbot/internal/payment"
	"chefbot/internal/ratelimit"
	"chefbot/internal/repository"
)

// ChefService is the business surface of the bot. The Telegram router, the
// webhook handlers and the workers all depend on this interface, not on the
// concrete orchestrator.
type ChefService interface {
	EnsureAccount(ctx context.Context, userID int64, username, fullName string) (*model.Account, error)
	GenerateRecipe(ctx context.Context, userID int64, prompt string) (*model.RecipeResult, error)
	StartPurchase(ctx context.Context, userID int64, packageKey string) (*model.Checkout, error)
	CheckPayment(ctx context.Context, paymentID string) (model.PaymentStatus, *model.Settlement, error)
	SettlePayment(ctx context.Context, paymentID string, status model.PaymentStatus) (*model.Settlement, error)
	Stats(ctx context.Context) (*model.Stats, error)
	Packages() []model.Package
}

// Storage surfaces the orchestrator needs, satisfied by repository.AccountingRepo.

type AccountStore interface {
	GetOrCreate(ctx context.Context, userID int64, username, fullName string) (*model.Account, error)
	Balance(ctx context.Context, userID int64) (int, error)
	DebitIfPositive(ctx context.Context, userID int64) (int, bool, error)
}

type PaymentStore interface {
	CreatePayment(ctx context.Context, p *model.Payment) error
	Settle(ctx context.Context, paymentID string, status model.PaymentStatus) (*model.Settlement, error)
}

type StatsStore interface {
	Stats(ctx context.Context) (*model.Stats, error)
}

// Deps wires the orchestrator. Config values travel here explicitly so the
// service has no ambient state.
type Deps struct {
	Accounts  AccountStore
	Payments  PaymentStore
	StatsSrc  StatsStore
	Generator generation.Generator
	Provider  payment.Provider
	Limiter   *ratelimit.Limiter
	Bus       repository.MessageBus

	MaxPromptLength   int
	GenerationTimeout time.Duration
	Currency          string
	Catalog           []model.Package
}

// Chef runs the request pipeline: validate, rate-limit, check balance,
// generate, debit, journal. Money-shaped decisions stay in the stores; Chef
// only sequences them.
type Chef struct {
	deps        Deps
	pollBackoff func() retry.Backoff
}

func NewChef(deps Deps) *Chef {
	return &Chef{
		deps: deps,
		pollBackoff: func() retry.Backoff {
			return retry.WithMaxRetries(3, retry.NewConstant(2*time.Second))
		},
	}
}

func (c *Chef) EnsureAccount(ctx context.Context, userID int64, username, fullName string) (*model.Account, error) {
	return c.deps.Accounts.GetOrCreate(ctx, userID, username, fullName)
}

// GenerateRecipe serves one paid request. The debit happens after the
// generation call, so a backend failure never charges the user; the price of
// that ordering is that a concurrently drained balance wastes one generation,
// which we absorb.
func (c *Chef) GenerateRecipe(ctx context.Context, userID int64, prompt string) (*model.RecipeResult, error) {
	prompt = strings.TrimSpace(prompt)
	if utf8.RuneCountInString(prompt) > c.deps.MaxPromptLength {
		return nil, ErrPromptTooLong
	}

	if wait := c.deps.Limiter.Check(userID); wait > 0 {
		return nil, &RateLimitedError{Seconds: wait}
	}

	bal, err := c.deps.Accounts.Balance(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("check balance for %d: %w", userID, err)
	}
	if bal <= 0 {
		return nil, ErrNoBalance
	}

	// The cooldown starts when paid work starts, not when it succeeds, so
	// repeated failures can't hammer the backend.
	c.deps.Limiter.Record(userID)

	genCtx, cancel := context.WithTimeout(ctx, c.deps.GenerationTimeout)
	defer cancel()

	text, err := c.deps.Generator.Generate(genCtx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	newBal, debited, err := c.deps.Accounts.DebitIfPositive(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("debit for %d: %w", userID, err)
	}
	if !debited {
		return nil, ErrBalanceDrained
	}

	c.publishRecipe(userID, prompt, text, newBal)
	return &model.RecipeResult{Text: text, BalanceAfter: newBal}, nil
}

// StartPurchase opens a checkout with the provider and records it pending.
// If recording fails after the provider call, the settle path will later
// report the payment as unknown — that is logged loudly, not hidden.
func (c *Chef) StartPurchase(ctx context.Context, userID int64, packageKey string) (*model.Checkout, error) {
	pkg, ok := c.packageByKey(packageKey)
	if !ok {
		return nil, ErrUnknownPackage
	}

	created, err := c.deps.Provider.Create(ctx, payment.CreateRequest{
		UserID:      userID,
		PackageKey:  pkg.Key,
		Amount:      pkg.Price,
		Currency:    c.deps.Currency,
		Description: fmt.Sprintf("%d recipes for user %d", pkg.Recipes, userID),
	})
	if err != nil {
		return nil, fmt.Errorf("create payment for %d: %w", userID, err)
	}

	p := &model.Payment{
		ID:         created.ID,
		UserID:     userID,
		PackageKey: pkg.Key,
		Amount:     pkg.Price,
		Recipes:    pkg.Recipes,
		Status:     model.PaymentPending,
	}
	if err := c.deps.Payments.CreatePayment(ctx, p); err != nil {
		return nil, fmt.Errorf("record payment %s: %w", created.ID, err)
	}

	return &model.Checkout{PaymentID: created.ID, URL: created.URL, Amount: pkg.Price, Recipes: pkg.Recipes}, nil
}

// CheckPayment is the user-initiated poll path. The provider is polled
// briefly; a payment that stays pending returns (pending, nil, nil) and the
// user is told to try again later. Terminal statuses go through the same
// idempotent settle as webhook pushes.
func (c *Chef) CheckPayment(ctx context.Context, paymentID string) (model.PaymentStatus, *model.Settlement, error) {
	status, err := payment.PollStatus(ctx, c.deps.Provider, paymentID, c.pollBackoff())
	if err != nil {
		slog.Warn("payment status poll failed", "payment_id", paymentID, "error", err)
	}
	if !status.Terminal() {
		return model.PaymentPending, nil, nil
	}

	settlement, err := c.deps.Payments.Settle(ctx, paymentID, status)
	if err != nil {
		return status, nil, err
	}
	return status, settlement, nil
}

// SettlePayment is the webhook push path: the provider already named the
// status, we only apply it.
func (c *Chef) SettlePayment(ctx context.Context, paymentID string, status model.PaymentStatus) (*model.Settlement, error) {
	return c.deps.Payments.Settle(ctx, paymentID, status)
}

func (c *Chef) Stats(ctx context.Context) (*model.Stats, error) {
	return c.deps.StatsSrc.Stats(ctx)
}

func (c *Chef) Packages() []model.Package {
	return c.deps.Catalog
}

func (c *Chef) packageByKey(key string) (model.Package, bool) {
	for _, p := range c.deps.Catalog {
		if p.Key == key {
			return p, true
		}
	}
	return model.Package{}, false
}

// publishRecipe hands the served generation to the journal worker. Losing
// the event costs an audit row, never money, so failures are only logged.
func (c *Chef) publishRecipe(userID int64, prompt, text string, balanceAfter int) {
	event := model.RecipeEvent{
		UserID:       userID,
		Prompt:       prompt,
		Response:     text,
		BalanceAfter: balanceAfter,
		CreatedAt:    time.Now(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("marshal recipe event", "user_id", userID, "error", err)
		return
	}
	if err := c.deps.Bus.Publish(model.TopicRecipeCreated, data); err != nil {
		slog.Error("publish recipe event", "user_id", userID, "error", err)
	}
}
