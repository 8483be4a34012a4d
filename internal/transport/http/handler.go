package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"chefbot/internal/model"
	"chefbot/internal/payment"
	"chefbot/internal/repository"
	"chefbot/internal/telegram"
)

// updateTimeout bounds the background processing of one Telegram update,
// generation call included.
const updateTimeout = 90 * time.Second

// UpdateHandler consumes inbound Telegram updates. Satisfied by bot.Router.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, upd telegram.Update)
}

// Settler applies a provider-confirmed payment status. Satisfied by
// service.ChefService.
type Settler interface {
	SettlePayment(ctx context.Context, paymentID string, status model.PaymentStatus) (*model.Settlement, error)
}

type Handler struct {
	updates UpdateHandler
	settler Settler
}

func NewHandler(updates UpdateHandler, settler Settler) *Handler {
	return &Handler{updates: updates, settler: settler}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("POST /webhook/telegram", h.TelegramWebhook)
	mux.HandleFunc("POST /webhook/payments", h.PaymentWebhook)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// TelegramWebhook accepts one update and processes it in the background.
// The response is always 200: anything else makes Telegram redeliver the
// same update, and a malformed one will not get better on retry.
func (h *Handler) TelegramWebhook(w http.ResponseWriter, r *http.Request) {
	var upd telegram.Update
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		slog.Warn("http: malformed telegram update", "error", err)
		h.respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), updateTimeout)
	go func() {
		defer cancel()
		h.updates.HandleUpdate(ctx, upd)
	}()

	h.respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type paymentNotification struct {
	Event  string `json:"event"`
	Object struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"object"`
}

// PaymentWebhook feeds provider pushes into the idempotent settle path.
// Always 200, even on failure: the settle is replay-safe, and a retried
// notification is cheaper than a retry storm against an erroring endpoint.
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	defer h.respondJSON(w, http.StatusOK, map[string]bool{"ok": true})

	var n paymentNotification
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		slog.Warn("http: malformed payment notification", "error", err)
		return
	}
	if n.Object.ID == "" {
		slog.Warn("http: payment notification without id", "event", n.Event)
		return
	}

	status := payment.MapStatus(n.Object.Status)
	if !status.Terminal() {
		slog.Info("http: ignoring non-terminal payment notification",
			"payment_id", n.Object.ID, "status", n.Object.Status)
		return
	}

	res, err := h.settler.SettlePayment(r.Context(), n.Object.ID, status)
	if err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			slog.Error("http: notification for unknown payment", "payment_id", n.Object.ID)
			return
		}
		slog.Error("http: settle failed", "payment_id", n.Object.ID, "error", err)
		return
	}
	slog.Info("http: payment settled",
		"payment_id", n.Object.ID, "status", status, "credited", res.Credited)
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}
