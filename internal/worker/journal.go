package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"chefbot/internal/model"
)

// RecipeJournal is the storage slice the journal worker writes to.
// Satisfied by repository.AccountingRepo.
type RecipeJournal interface {
	InsertRecipe(ctx context.Context, rec *model.Recipe) error
}

// JournalWorker drains recipe events into the audit table. The queue group
// guarantees each event lands exactly once even when several bot processes
// run side by side.
type JournalWorker struct {
	journal  RecipeJournal
	natsConn *nats.Conn
}

func NewJournalWorker(journal RecipeJournal, nc *nats.Conn) *JournalWorker {
	return &JournalWorker{journal: journal, natsConn: nc}
}

// Run subscribes to recipe events and blocks until ctx is cancelled.
func (w *JournalWorker) Run(ctx context.Context) error {
	sub, err := w.natsConn.QueueSubscribe(model.TopicRecipeCreated, model.WorkerQueueGroup, func(m *nats.Msg) {
		w.handle(ctx, m.Data)
	})
	if err != nil {
		return fmt.Errorf("worker: subscribe to %s: %w", model.TopicRecipeCreated, err)
	}

	slog.Info("recipe journal worker is running")

	<-ctx.Done()

	slog.Info("recipe journal worker draining subscription")
	return sub.Drain()
}

func (w *JournalWorker) handle(ctx context.Context, data []byte) {
	var event model.RecipeEvent
	if err := json.Unmarshal(data, &event); err != nil {
		slog.Error("worker: failed to unmarshal recipe event", "error", err)
		return
	}

	rec := &model.Recipe{
		UserID:    event.UserID,
		Prompt:    event.Prompt,
		Response:  event.Response,
		CreatedAt: event.CreatedAt,
	}
	if err := w.journal.InsertRecipe(ctx, rec); err != nil {
		slog.Error("worker: failed to journal recipe", "user_id", event.UserID, "error", err)
		return
	}

	slog.Info("worker: recipe journaled", "user_id", event.UserID, "balance_after", event.BalanceAfter)
}

// Start implements the infrastructure.Server interface.
func (w *JournalWorker) Start(ctx context.Context) error {
	return w.Run(ctx)
}

// Stop implements the infrastructure.Server interface (no-op, shutdown is via ctx).
func (w *JournalWorker) Stop(ctx context.Context) error {
	return nil
}
