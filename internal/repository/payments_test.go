package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chefbot/internal/model"
)

func testPaymentID() string {
	return fmt.Sprintf("test-%d", time.Now().UnixNano())
}

func TestSettle_CreditsExactlyOnce(t *testing.T) {
	repo, bus := newTestRepo(t)
	ctx := context.Background()
	userID := testUserID()
	paymentID := testPaymentID()

	_, err := repo.GetOrCreate(ctx, userID, "dave", "Dave")
	require.NoError(t, err)

	err = repo.CreatePayment(ctx, &model.Payment{
		ID: paymentID, UserID: userID, PackageKey: "chef", Amount: 199, Recipes: 10,
	})
	require.NoError(t, err)

	res, err := repo.Settle(ctx, paymentID, model.PaymentSucceeded)
	require.NoError(t, err)
	assert.True(t, res.Credited)
	assert.Equal(t, 13, res.BalanceAfter) // 3 free + 10 bought

	// Replayed notification: status stays, balance untouched.
	res, err = repo.Settle(ctx, paymentID, model.PaymentSucceeded)
	require.NoError(t, err)
	assert.False(t, res.Credited)

	acc, err := repo.GetOrCreate(ctx, userID, "dave", "Dave")
	require.NoError(t, err)
	assert.Equal(t, 13, acc.TokensBalance)
	assert.EqualValues(t, 199, acc.TotalSpent)

	assert.Equal(t, 1, bus.published(model.TopicPaymentSettled))
}

func TestSettle_CanceledStaysUncredited(t *testing.T) {
	repo, bus := newTestRepo(t)
	ctx := context.Background()
	userID := testUserID()
	paymentID := testPaymentID()

	_, err := repo.GetOrCreate(ctx, userID, "erin", "Erin")
	require.NoError(t, err)

	err = repo.CreatePayment(ctx, &model.Payment{
		ID: paymentID, UserID: userID, PackageKey: "chef", Amount: 199, Recipes: 10,
	})
	require.NoError(t, err)

	res, err := repo.Settle(ctx, paymentID, model.PaymentCanceled)
	require.NoError(t, err)
	assert.False(t, res.Credited)

	// A late success signal after cancellation must not mint tokens.
	res, err = repo.Settle(ctx, paymentID, model.PaymentSucceeded)
	require.NoError(t, err)
	assert.False(t, res.Credited)
	assert.Equal(t, model.PaymentSucceeded, res.Payment.Status)

	bal, err := repo.Balance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 3, bal)

	assert.Equal(t, 0, bus.published(model.TopicPaymentSettled))
}

func TestSettle_UnknownPayment(t *testing.T) {
	repo, _ := newTestRepo(t)

	_, err := repo.Settle(context.Background(), "no-such-payment", model.PaymentSucceeded)
	require.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestCreatePayment_RetryReplacesRecord(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	userID := testUserID()
	paymentID := testPaymentID()

	_, err := repo.GetOrCreate(ctx, userID, "frank", "Frank")
	require.NoError(t, err)

	err = repo.CreatePayment(ctx, &model.Payment{
		ID: paymentID, UserID: userID, PackageKey: "starter", Amount: 99, Recipes: 5,
	})
	require.NoError(t, err)

	// Retried checkout for the same id picks a bigger package; the record
	// is replaced wholesale before settlement.
	err = repo.CreatePayment(ctx, &model.Payment{
		ID: paymentID, UserID: userID, PackageKey: "pro", Amount: 499, Recipes: 30,
	})
	require.NoError(t, err)

	res, err := repo.Settle(ctx, paymentID, model.PaymentSucceeded)
	require.NoError(t, err)
	assert.True(t, res.Credited)
	assert.Equal(t, 33, res.BalanceAfter)
	assert.EqualValues(t, 499, res.Payment.Amount)
}
