package paymentgw_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/payment"
	"github.com/Zhima-Mochi/marketplace-saga/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/marketplace-saga/internal/infrastructure/paymentgw"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProviderServer(t *testing.T, failPercentage int) *httptest.Server {
	t.Helper()
	p := paymentgw.NewProvider(memory.NewIntentStore(), failPercentage, nil)
	srv := httptest.NewServer(p.Routes())
	t.Cleanup(srv.Close)
	return srv
}

func request(key string) payment.IntentRequest {
	return payment.IntentRequest{
		Amount:         18,
		Customer:       "c1",
		IdempotencyKey: key,
		Card:           &payment.CardDetails{Number: "4111", ExpMonth: 9, ExpYear: 2028},
	}
}

func TestRepeatedKeyReturnsFirstIntent(t *testing.T) {
	srv := newProviderServer(t, 0)
	c := paymentgw.NewClient(paymentgw.ClientOptions{BaseURL: srv.URL}, nil)
	ctx := context.Background()

	first, err := c.CreateIntent(ctx, request("c1-20240309-1"))
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, payment.IntentStatusSucceeded, first.Status)
	assert.Equal(t, 18.0, first.Amount)

	again, err := c.CreateIntent(ctx, request("c1-20240309-1"))
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	other, err := c.CreateIntent(ctx, request("c1-20240309-2"))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestFailPercentageCancelsIntents(t *testing.T) {
	srv := newProviderServer(t, 100)
	c := paymentgw.NewClient(paymentgw.ClientOptions{BaseURL: srv.URL}, nil)

	in, err := c.CreateIntent(context.Background(), request("k"))
	require.NoError(t, err)
	assert.Equal(t, paymentgw.IntentStatusCanceled, in.Status)
	assert.Equal(t, payment.StatusRequiresPaymentMethod, payment.StatusOf(in))
}

func TestRejectedRequestDoesNotTripBreaker(t *testing.T) {
	srv := newProviderServer(t, 0)
	c := paymentgw.NewClient(paymentgw.ClientOptions{BaseURL: srv.URL, MaxFailures: 1}, nil)

	_, err := c.CreateIntent(context.Background(), payment.IntentRequest{IdempotencyKey: "k"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, payment.ErrGatewayUnavailable)

	in, err := c.CreateIntent(context.Background(), request("k2"))
	require.NoError(t, err)
	assert.NotNil(t, in)
}

func TestServerErrorsOpenTheBreaker(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := paymentgw.NewClient(paymentgw.ClientOptions{BaseURL: srv.URL, MaxFailures: 2, OpenTimeout: time.Minute}, nil)
	for i := 0; i < 4; i++ {
		_, err := c.CreateIntent(context.Background(), request("k"))
		assert.ErrorIs(t, err, payment.ErrGatewayUnavailable)
	}
	assert.Equal(t, int32(2), hits.Load())
}

func TestEmptyReplyYieldsNoIntent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("{}"))
	}))
	defer srv.Close()

	in, err := paymentgw.NewClient(paymentgw.ClientOptions{BaseURL: srv.URL}, nil).CreateIntent(context.Background(), request("k"))
	require.NoError(t, err)
	assert.Nil(t, in)
}

func TestProviderLookupByKey(t *testing.T) {
	srv := newProviderServer(t, 0)
	c := paymentgw.NewClient(paymentgw.ClientOptions{BaseURL: srv.URL}, nil)
	_, err := c.CreateIntent(context.Background(), request("inv-1"))
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/payment_intents/inv-1")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/payment_intents/missing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
