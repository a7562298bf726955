package paymentgw

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/payment"
	"github.com/Zhima-Mochi/marketplace-saga/internal/observability"
	"github.com/Zhima-Mochi/marketplace-saga/internal/observability/logctx"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const IntentStatusCanceled = "canceled"

var ErrIntentNotFound = errors.New("paymentgw: intent not found")

// IntentStore keeps intents by idempotency key. PutIfAbsent returns the intent already
// stored under the key when there is one, otherwise stores and returns in.
type IntentStore interface {
	PutIfAbsent(ctx context.Context, in payment.Intent) (payment.Intent, error)
	Get(ctx context.Context, key string) (payment.Intent, error)
	Cleanup(ctx context.Context) error
}

// Provider is a reference payment provider. It approves every new intent except a
// FailPercentage share, which it cancels.
type Provider struct {
	store          IntentStore
	failPercentage int
	roll           func() int
	now            func() time.Time
	log            observability.Logger
}

func NewProvider(store IntentStore, failPercentage int, logger observability.Logger) *Provider {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Provider{
		store:          store,
		failPercentage: min(max(failPercentage, 0), 100),
		roll:           func() int { return rand.IntN(100) },
		now:            func() time.Time { return time.Now().UTC() },
		log:            logger.With(observability.F("component", "payment_provider")),
	}
}

// Routes serves POST /payment_intents and GET /payment_intents/{key}.
func (p *Provider) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post(intentsPath, p.handleCreate)
	r.Get(intentsPath+"/{key}", p.handleGet)
	return r
}

// CreateIntent also lets the provider serve as an in-process payment.Gateway.
func (p *Provider) CreateIntent(ctx context.Context, req payment.IntentRequest) (*payment.Intent, error) {
	status := payment.IntentStatusSucceeded
	if p.roll() < p.failPercentage {
		status = IntentStatusCanceled
	}
	in, err := p.store.PutIfAbsent(ctx, payment.Intent{
		ID:             "pi_" + uuid.NewString(),
		Status:         status,
		Amount:         req.Amount,
		Customer:       req.Customer,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      p.now(),
	})
	if err != nil {
		return nil, err
	}
	return &in, nil
}

func (p *Provider) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req payment.IntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: err.Error()})
		return
	}
	if key := r.Header.Get(headerIdempotencyKey); key != "" {
		req.IdempotencyKey = key
	}
	if req.IdempotencyKey == "" {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "idempotency key is required"})
		return
	}
	if req.Amount <= 0 {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "amount must be positive"})
		return
	}

	in, err := p.CreateIntent(r.Context(), req)
	if err != nil {
		logctx.FromOr(r.Context(), p.log).Error("payment_intent_store_failed", observability.F("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, apiError{Error: err.Error()})
		return
	}
	logctx.FromOr(r.Context(), p.log).Info("payment_intent",
		observability.F("intent_id", in.ID),
		observability.F("idempotency_key", in.IdempotencyKey),
		observability.F("status", in.Status),
	)
	writeJSON(w, http.StatusOK, in)
}

func (p *Provider) handleGet(w http.ResponseWriter, r *http.Request) {
	in, err := p.store.Get(r.Context(), chi.URLParam(r, "key"))
	switch {
	case errors.Is(err, ErrIntentNotFound):
		writeJSON(w, http.StatusNotFound, apiError{Error: err.Error()})
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, apiError{Error: err.Error()})
	default:
		writeJSON(w, http.StatusOK, in)
	}
}

func (p *Provider) Cleanup(ctx context.Context) error {
	return p.store.Cleanup(ctx)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
