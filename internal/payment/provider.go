package payment

import (
	"context"
	"errors"

	"github.com/sethvargo/go-retry"

	"chefbot/internal/model"
)

// Provider is the payment gateway surface the bot depends on: create a
// checkout, ask for its status. Settlement stays our job.
type Provider interface {
	Create(ctx context.Context, req CreateRequest) (*CreatedPayment, error)
	Status(ctx context.Context, paymentID string) (model.PaymentStatus, error)
}

// CreateRequest describes one checkout to initiate.
type CreateRequest struct {
	UserID      int64
	PackageKey  string
	Amount      int64
	Currency    string
	Description string
}

// CreatedPayment is the provider's answer: its payment id and the URL the
// user must visit to pay.
type CreatedPayment struct {
	ID  string
	URL string
}

var errStillPending = errors.New("payment still pending")

// PollStatus asks the provider for the payment status until it turns
// terminal or the backoff budget runs out. A payment that simply stays
// pending is not an error; an error is returned only when the provider could
// not be reached, and even then the status comes back as pending so callers
// can treat the payment as retryable.
func PollStatus(ctx context.Context, p Provider, paymentID string, b retry.Backoff) (model.PaymentStatus, error) {
	status := model.PaymentPending

	err := retry.Do(ctx, b, func(ctx context.Context) error {
		s, err := p.Status(ctx, paymentID)
		if err != nil {
			return retry.RetryableError(err)
		}
		status = s
		if !s.Terminal() {
			return retry.RetryableError(errStillPending)
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStillPending) {
		return model.PaymentPending, err
	}
	return status, nil
}
