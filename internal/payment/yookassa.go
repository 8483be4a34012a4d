package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"chefbot/internal/model"
)

const (
	defaultBaseURL = "https://api.yookassa.ru/v3"
	requestTimeout = 15 * time.Second
)

// YooKassa talks to the YooKassa v3 API with shop-id basic auth. Every
// create carries a fresh Idempotence-Key, so a retried HTTP call can never
// open two payments.
type YooKassa struct {
	shopID    string
	secretKey string
	returnURL string
	baseURL   string
	client    *http.Client
}

func NewYooKassa(shopID, secretKey, returnURL string) *YooKassa {
	return &YooKassa{
		shopID:    shopID,
		secretKey: secretKey,
		returnURL: returnURL,
		baseURL:   defaultBaseURL,
		client:    &http.Client{Timeout: requestTimeout},
	}
}

type yooAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type yooConfirmation struct {
	Type            string `json:"type"`
	ReturnURL       string `json:"return_url,omitempty"`
	ConfirmationURL string `json:"confirmation_url,omitempty"`
}

type yooMetadata struct {
	UserID     int64  `json:"user_id,string"`
	PackageKey string `json:"package_key"`
}

type yooCreateBody struct {
	Amount       yooAmount       `json:"amount"`
	Confirmation yooConfirmation `json:"confirmation"`
	Capture      bool            `json:"capture"`
	Description  string          `json:"description"`
	Metadata     yooMetadata     `json:"metadata"`
}

type yooPayment struct {
	ID           string          `json:"id"`
	Status       string          `json:"status"`
	Confirmation yooConfirmation `json:"confirmation"`
}

func (y *YooKassa) Create(ctx context.Context, req CreateRequest) (*CreatedPayment, error) {
	body := yooCreateBody{
		Amount:       yooAmount{Value: fmt.Sprintf("%d.00", req.Amount), Currency: req.Currency},
		Confirmation: yooConfirmation{Type: "redirect", ReturnURL: y.returnURL},
		Capture:      true,
		Description:  req.Description,
		Metadata:     yooMetadata{UserID: req.UserID, PackageKey: req.PackageKey},
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal payment request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, y.baseURL+"/payments", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create payment request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotence-Key", uuid.NewString())
	httpReq.SetBasicAuth(y.shopID, y.secretKey)

	var p yooPayment
	if err := y.do(httpReq, &p); err != nil {
		return nil, err
	}
	if p.ID == "" || p.Confirmation.ConfirmationURL == "" {
		return nil, fmt.Errorf("payment response missing id or confirmation url")
	}
	return &CreatedPayment{ID: p.ID, URL: p.Confirmation.ConfirmationURL}, nil
}

func (y *YooKassa) Status(ctx context.Context, paymentID string) (model.PaymentStatus, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, y.baseURL+"/payments/"+paymentID, nil)
	if err != nil {
		return "", fmt.Errorf("create status request: %w", err)
	}
	httpReq.SetBasicAuth(y.shopID, y.secretKey)

	var p yooPayment
	if err := y.do(httpReq, &p); err != nil {
		return "", err
	}
	return MapStatus(p.Status), nil
}

func (y *YooKassa) do(req *http.Request, out any) error {
	resp, err := y.client.Do(req)
	if err != nil {
		return fmt.Errorf("yookassa request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read yookassa response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("yookassa: status=%d, body=%s", resp.StatusCode, truncate(body, 200))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode yookassa response: %w", err)
	}
	return nil
}

// MapStatus folds the provider's status vocabulary into ours. Anything that
// is not clearly terminal counts as pending — waiting_for_capture included,
// since capture=true means the provider finishes it on its own.
func MapStatus(s string) model.PaymentStatus {
	switch s {
	case "succeeded":
		return model.PaymentSucceeded
	case "canceled":
		return model.PaymentCanceled
	default:
		return model.PaymentPending
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
