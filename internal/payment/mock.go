package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"chefbot/internal/model"
)

// Mock issues payments that succeed on the first status check, so the whole
// purchase flow can be exercised without a merchant account. Ids carry a
// mock_ prefix; a real provider id landing here is reported pending, never
// succeeded, so a config switch can't mint tokens for unpaid checkouts.
type Mock struct {
	returnURL string
}

func NewMock(returnURL string) *Mock {
	return &Mock{returnURL: returnURL}
}

func (m *Mock) Create(ctx context.Context, req CreateRequest) (*CreatedPayment, error) {
	u := uuid.New()
	return &CreatedPayment{
		ID:  fmt.Sprintf("mock_%x", u[0:6]),
		URL: m.returnURL,
	}, nil
}

func (m *Mock) Status(ctx context.Context, paymentID string) (model.PaymentStatus, error) {
	if strings.HasPrefix(paymentID, "mock_") {
		return model.PaymentSucceeded, nil
	}
	return model.PaymentPending, nil
}
