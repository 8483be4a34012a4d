package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"chefbot/internal/model"
	"chefbot/internal/telegram"
)

// Messenger is the sending slice of the Telegram client the notifier needs.
type Messenger interface {
	SendMessage(ctx context.Context, msg telegram.OutgoingMessage) error
}

// NotifierWorker tells the buyer their payment landed. It picks up settlement
// events from the webhook path, so the user hears about the credit even when
// they never press the "I've paid" button.
type NotifierWorker struct {
	tg       Messenger
	natsConn *nats.Conn
}

func NewNotifierWorker(tg Messenger, nc *nats.Conn) *NotifierWorker {
	return &NotifierWorker{tg: tg, natsConn: nc}
}

// Run subscribes to settlement events and blocks until ctx is cancelled.
func (w *NotifierWorker) Run(ctx context.Context) error {
	sub, err := w.natsConn.QueueSubscribe(model.TopicPaymentSettled, model.WorkerQueueGroup, func(m *nats.Msg) {
		w.handle(ctx, m.Data)
	})
	if err != nil {
		return fmt.Errorf("worker: subscribe to %s: %w", model.TopicPaymentSettled, err)
	}

	slog.Info("payment notifier worker is running")

	<-ctx.Done()

	slog.Info("payment notifier worker draining subscription")
	return sub.Drain()
}

func (w *NotifierWorker) handle(ctx context.Context, data []byte) {
	var event model.SettlementEvent
	if err := json.Unmarshal(data, &event); err != nil {
		slog.Error("worker: failed to unmarshal settlement event", "error", err)
		return
	}

	msg := telegram.OutgoingMessage{
		ChatID:    event.UserID,
		Text:      settledText(event.Recipes, event.BalanceAfter),
		ParseMode: "HTML",
	}
	if err := w.tg.SendMessage(ctx, msg); err != nil {
		slog.Error("worker: failed to notify about settlement", "user_id", event.UserID, "payment_id", event.PaymentID, "error", err)
		return
	}

	slog.Info("worker: settlement notification sent", "user_id", event.UserID, "payment_id", event.PaymentID)
}

func settledText(recipes, balance int) string {
	return fmt.Sprintf("✅ Payment received! <b>+%d</b> recipes added.\n\nYour balance: <b>%d</b> recipe tokens. Bon appétit!", recipes, balance)
}

// Start implements the infrastructure.Server interface.
func (w *NotifierWorker) Start(ctx context.Context) error {
	return w.Run(ctx)
}

// Stop implements the infrastructure.Server interface (no-op, shutdown is via ctx).
func (w *NotifierWorker) Stop(ctx context.Context) error {
	return nil
}
