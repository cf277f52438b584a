package rpc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/solana-flash-arb/internal/retry"
)

func fastRetry() *retry.Config {
	cfg := retry.DefaultConfig()
	cfg.InitialDelay = time.Millisecond
	cfg.MaxDelay = 2 * time.Millisecond
	return &cfg
}

func newTestClient(t *testing.T, urls ...string) *Client {
	t.Helper()

	client, err := NewClient(ClientConfig{
		Pool:    testPool(t, urls...),
		Timeout: 2 * time.Second,
		Retry:   fastRetry(),
		Logger:  quietLogger(),
	})
	require.NoError(t, err)
	return client
}

func TestClient_GetRecentFeeSamples(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":[
			{"slot":100,"prioritizationFee":1000},
			{"slot":101,"prioritizationFee":2500},
			{"slot":102,"prioritizationFee":0}
		]}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	fees, err := client.GetRecentFeeSamples(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uint64{1000, 2500, 0}, fees)
}

func TestClient_GetLatestBlockhash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"value":{
			"blockhash":"EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N",
			"lastValidBlockHeight":424242
		}}}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	ref, err := client.GetLatestBlockhash(context.Background(), "processed")
	require.NoError(t, err)
	assert.Equal(t, uint64(424242), ref.ValidUntilHeight)
	assert.False(t, ref.Hash.IsZero())
}

func TestClient_CallFailsOverOnRateLimit(t *testing.T) {
	var primaryHits, secondaryHits atomic.Int64

	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		primaryHits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer primary.Close()

	secondary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secondaryHits.Add(1)
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"ok"}`))
	}))
	defer secondary.Close()

	client := newTestClient(t, primary.URL, secondary.URL)

	var resp struct {
		Result string `json:"result"`
	}
	err := client.Call(context.Background(), "getHealth", nil, &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Result)
	assert.Equal(t, int64(1), primaryHits.Load())
	assert.Equal(t, int64(1), secondaryHits.Load())
	assert.Equal(t, secondary.URL, client.Pool().Current().URL)
}

func TestClient_CallSurfacesErrorAfterRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	var resp struct{}
	err := client.Call(context.Background(), "getHealth", nil, &resp)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max attempts")
}

func TestClient_ConfirmTransactionTimesOutCleanly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Signature never progresses past processing.
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"value":[null]}}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	confirmed, err := client.ConfirmTransaction(context.Background(), "sig", "confirmed", 700*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, confirmed)
}
