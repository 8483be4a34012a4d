package payment

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chefbot/internal/model"
)

// scriptedProvider replays a fixed sequence of status answers.
type scriptedProvider struct {
	statuses []model.PaymentStatus
	errs     []error
	calls    int
}

func (p *scriptedProvider) Create(ctx context.Context, req CreateRequest) (*CreatedPayment, error) {
	return &CreatedPayment{ID: "scripted", URL: "https://example.test"}, nil
}

func (p *scriptedProvider) Status(ctx context.Context, paymentID string) (model.PaymentStatus, error) {
	i := p.calls
	if i >= len(p.statuses) {
		i = len(p.statuses) - 1
	}
	p.calls++
	if p.errs != nil && p.errs[i] != nil {
		return "", p.errs[i]
	}
	return p.statuses[i], nil
}

func testBackoff() retry.Backoff {
	return retry.WithMaxRetries(3, retry.NewConstant(time.Millisecond))
}

func TestPollStatus_TerminalAfterRetries(t *testing.T) {
	p := &scriptedProvider{statuses: []model.PaymentStatus{
		model.PaymentPending, model.PaymentPending, model.PaymentSucceeded,
	}}

	status, err := PollStatus(context.Background(), p, "pay-1", testBackoff())
	require.NoError(t, err)
	assert.Equal(t, model.PaymentSucceeded, status)
	assert.Equal(t, 3, p.calls)
}

func TestPollStatus_StaysPending(t *testing.T) {
	p := &scriptedProvider{statuses: []model.PaymentStatus{model.PaymentPending}}

	status, err := PollStatus(context.Background(), p, "pay-1", testBackoff())
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPending, status)
}

func TestPollStatus_ProviderUnreachable(t *testing.T) {
	boom := errors.New("connection refused")
	p := &scriptedProvider{
		statuses: []model.PaymentStatus{""},
		errs:     []error{boom},
	}

	status, err := PollStatus(context.Background(), p, "pay-1", testBackoff())
	require.Error(t, err)
	assert.Equal(t, model.PaymentPending, status)
}

func TestMock_CreateAndStatus(t *testing.T) {
	m := NewMock("https://t.me/chefbot")

	created, err := m.Create(context.Background(), CreateRequest{UserID: 42, Amount: 199})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(created.ID, "mock_"))
	assert.Equal(t, "https://t.me/chefbot", created.URL)

	status, err := m.Status(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentSucceeded, status)

	// A foreign id must never be declared paid by the mock.
	status, err = m.Status(context.Background(), "2e8b3f1a-000f-5000-9000-1db9e1a2b3c4")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPending, status)
}
