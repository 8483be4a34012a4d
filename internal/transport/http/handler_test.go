package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chefbot/internal/model"
	"chefbot/internal/repository"
	"chefbot/internal/telegram"
)

type recordingUpdates struct {
	got chan telegram.Update
}

func (r *recordingUpdates) HandleUpdate(ctx context.Context, upd telegram.Update) {
	r.got <- upd
}

type settleRecord struct {
	id     string
	status model.PaymentStatus
}

type recordingSettler struct {
	mu    sync.Mutex
	calls []settleRecord
	err   error
}

func (s *recordingSettler) SettlePayment(ctx context.Context, paymentID string, status model.PaymentStatus) (*model.Settlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, settleRecord{id: paymentID, status: status})
	if s.err != nil {
		return nil, s.err
	}
	return &model.Settlement{Payment: model.Payment{ID: paymentID, Status: status}, Credited: true}, nil
}

func (s *recordingSettler) settled() []settleRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]settleRecord(nil), s.calls...)
}

func newTestMux(updates *recordingUpdates, settler *recordingSettler) *http.ServeMux {
	mux := http.NewServeMux()
	NewHandler(updates, settler).Register(mux)
	return mux
}

func TestHealth(t *testing.T) {
	mux := newTestMux(&recordingUpdates{got: make(chan telegram.Update, 1)}, &recordingSettler{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestTelegramWebhook_AcksAndDispatches(t *testing.T) {
	updates := &recordingUpdates{got: make(chan telegram.Update, 1)}
	mux := newTestMux(updates, &recordingSettler{})

	body := `{"update_id":7,"message":{"message_id":1,"from":{"id":42,"first_name":"Ada"},"chat":{"id":42},"text":"borscht"}}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/telegram", strings.NewReader(body)))

	assert.Equal(t, http.StatusOK, rec.Code)

	select {
	case upd := <-updates.got:
		require.NotNil(t, upd.Message)
		assert.Equal(t, "borscht", upd.Message.Text)
		assert.EqualValues(t, 42, upd.Message.From.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("update was not dispatched")
	}
}

func TestTelegramWebhook_MalformedBodyStill200(t *testing.T) {
	updates := &recordingUpdates{got: make(chan telegram.Update, 1)}
	mux := newTestMux(updates, &recordingSettler{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/telegram", strings.NewReader("{not json")))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, len(updates.got))
}

func TestPaymentWebhook_SettlesTerminalStatus(t *testing.T) {
	settler := &recordingSettler{}
	mux := newTestMux(&recordingUpdates{got: make(chan telegram.Update, 1)}, settler)

	body := `{"event":"payment.succeeded","object":{"id":"pay-1","status":"succeeded"}}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/payments", strings.NewReader(body)))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, settler.settled(), 1)
	assert.Equal(t, settleRecord{id: "pay-1", status: model.PaymentSucceeded}, settler.settled()[0])
}

func TestPaymentWebhook_IgnoresNonTerminal(t *testing.T) {
	settler := &recordingSettler{}
	mux := newTestMux(&recordingUpdates{got: make(chan telegram.Update, 1)}, settler)

	body := `{"event":"payment.waiting_for_capture","object":{"id":"pay-1","status":"waiting_for_capture"}}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/payments", strings.NewReader(body)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, settler.settled())
}

func TestPaymentWebhook_UnknownPaymentStill200(t *testing.T) {
	settler := &recordingSettler{err: repository.ErrPaymentNotFound}
	mux := newTestMux(&recordingUpdates{got: make(chan telegram.Update, 1)}, settler)

	body := `{"event":"payment.succeeded","object":{"id":"pay-9","status":"succeeded"}}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/payments", strings.NewReader(body)))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, settler.settled(), 1)
}

func TestPaymentWebhook_MalformedBodyStill200(t *testing.T) {
	settler := &recordingSettler{}
	mux := newTestMux(&recordingUpdates{got: make(chan telegram.Update, 1)}, settler)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/payments", strings.NewReader("oops")))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, settler.settled())
}
