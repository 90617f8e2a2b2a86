package quote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"solarb/ratelimit"
)

func testLimiter() *ratelimit.Limiter {
	return ratelimit.New(time.Millisecond, time.Minute, 1000)
}

func testRequest() Request {
	return Request{
		InputMint:   solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112"),
		OutputMint:  solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"),
		Amount:      1_000_000_000,
		SlippageBps: 50,
	}
}

func TestGetQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1000000000", r.URL.Query().Get("amount"))
		assert.Equal(t, "50", r.URL.Query().Get("slippageBps"))
		w.Write([]byte(`{"outAmount":"2000000","routePlan":[{"swapInfo":{"label":"Orca"}},{"swapInfo":{"label":"Raydium"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testLimiter(), zap.NewNop())
	q, err := c.GetQuote(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, uint64(2_000_000), q.OutAmount)
	assert.Equal(t, []string{"Orca", "Raydium"}, q.Venues)
	assert.JSONEq(t, `{"outAmount":"2000000","routePlan":[{"swapInfo":{"label":"Orca"}},{"swapInfo":{"label":"Raydium"}}]}`, string(q.Raw))
}

func TestGetQuoteLegacyVenueShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"outAmount":"5","marketInfos":[{"label":"Serum"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testLimiter(), zap.NewNop())
	q, err := c.GetQuote(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, []string{"Serum"}, q.Venues)
}

func TestGetQuoteMissingVenues(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"outAmount":"5"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testLimiter(), zap.NewNop())
	q, err := c.GetQuote(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Empty(t, q.Venues)
}

func TestGetQuoteRetriesOn429(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"outAmount":"7"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testLimiter(), zap.NewNop())
	q, err := c.GetQuote(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, uint64(7), q.OutAmount)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetQuoteHardFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testLimiter(), zap.NewNop())
	_, err := c.GetQuote(context.Background(), testRequest())
	assert.Error(t, err)
}

func TestGetSwapInstructions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)

		var req map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.JSONEq(t, `{"outAmount":"9"}`, string(req["quoteResponse"]))

		w.Write([]byte(`{
			"setupInstructions":[{"programId":"11111111111111111111111111111111","accounts":[],"data":""}],
			"swapInstruction":{
				"programId":"JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4",
				"accounts":[{"pubkey":"So11111111111111111111111111111111111111112","isSigner":false,"isWritable":true}],
				"data":"AQID"
			},
			"cleanupInstruction":null
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testLimiter(), zap.NewNop())
	user := solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
	q := &Response{Raw: json.RawMessage(`{"outAmount":"9"}`)}

	out, err := c.GetSwapInstructions(context.Background(), user, 1000, q)
	require.NoError(t, err)
	assert.Len(t, out.Setup, 1)
	assert.Nil(t, out.Cleanup)

	inst, err := out.Swap.Decode()
	require.NoError(t, err)
	data, err := inst.Data()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)
	assert.True(t, inst.Accounts()[0].IsWritable)
	assert.False(t, inst.Accounts()[0].IsSigner)
}
