package gateway

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signPayload(p *CallbackPayload, serverKey string) string {
	sum := sha512.Sum512([]byte(p.OrderID + p.StatusCode + p.GrossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

func TestClient_CreateTransaction(t *testing.T) {
	orderID := uuid.New()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/snap/v1/transactions", r.URL.Path)
		assert.Contains(t, r.Header.Get("Authorization"), "Basic ")

		var payload struct {
			TransactionDetails struct {
				OrderID     string  `json:"order_id"`
				GrossAmount float64 `json:"gross_amount"`
			} `json:"transaction_details"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, orderID.String(), payload.TransactionDetails.OrderID)
		assert.Equal(t, float64(100000), payload.TransactionDetails.GrossAmount)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"token":        "snap-token",
			"redirect_url": "https://app.sandbox.midtrans.com/snap/v3/redirection/snap-token",
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "server-key", 5*time.Second)
	tx, err := client.CreateTransaction(context.Background(), orderID, 100000)
	require.NoError(t, err)
	assert.Equal(t, "snap-token", tx.Token)
	assert.NotEmpty(t, tx.RedirectURL)
}

func TestClient_CreateTransaction_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "server-key", 5*time.Second)
	_, err := client.CreateTransaction(context.Background(), uuid.New(), 100000)
	assert.Error(t, err)
}

func TestClient_VerifySignature(t *testing.T) {
	client := NewClient("https://example.com", "server-key", 5*time.Second)

	payload := &CallbackPayload{
		OrderID:           uuid.NewString(),
		StatusCode:        "200",
		GrossAmount:       "100000.00",
		TransactionStatus: "settlement",
	}
	payload.SignatureKey = signPayload(payload, "server-key")

	assert.True(t, client.VerifySignature(payload))

	// Подпись другим ключом не проходит проверку.
	payload.SignatureKey = signPayload(payload, "wrong-key")
	assert.False(t, client.VerifySignature(payload))

	// Изменение суммы после подписания обнаруживается.
	payload.SignatureKey = signPayload(payload, "server-key")
	payload.GrossAmount = "1.00"
	assert.False(t, client.VerifySignature(payload))
}

func TestCallbackPayload_Statuses(t *testing.T) {
	settled := &CallbackPayload{TransactionStatus: "settlement"}
	assert.True(t, settled.IsSettled())
	assert.False(t, settled.IsExpired())

	capture := &CallbackPayload{TransactionStatus: "capture", FraudStatus: "accept"}
	assert.True(t, capture.IsSettled())

	challenge := &CallbackPayload{TransactionStatus: "capture", FraudStatus: "challenge"}
	assert.False(t, challenge.IsSettled())

	expired := &CallbackPayload{TransactionStatus: "expire"}
	assert.True(t, expired.IsExpired())
	assert.False(t, expired.IsSettled())

	cancelled := &CallbackPayload{TransactionStatus: "cancel"}
	assert.True(t, cancelled.IsExpired())

	pending := &CallbackPayload{TransactionStatus: "pending"}
	assert.False(t, pending.IsSettled())
	assert.False(t, pending.IsExpired())
}

func TestCallbackPayload_Amount(t *testing.T) {
	payload := &CallbackPayload{GrossAmount: "100000.00"}
	amount, err := payload.Amount()
	require.NoError(t, err)
	assert.Equal(t, float64(100000), amount)

	payload.GrossAmount = "не число"
	_, err = payload.Amount()
	assert.Error(t, err)
}
