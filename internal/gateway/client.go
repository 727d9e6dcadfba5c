package gateway

import (
	"bytes"
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Client общается с платёжным шлюзом (Midtrans Snap API).
// Все сетевые ошибки возвращаются как есть, маппинг на коды
// приложения выполняется на уровне сервиса.
type Client struct {
	baseURL   string
	serverKey string
	http      *http.Client
}

// NewClient создаёт клиент шлюза.
func NewClient(baseURL, serverKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:   baseURL,
		serverKey: serverKey,
		http:      &http.Client{Timeout: timeout},
	}
}

// Transaction содержит результат создания платёжной транзакции.
type Transaction struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
}

type snapRequest struct {
	TransactionDetails struct {
		OrderID     string  `json:"order_id"`
		GrossAmount float64 `json:"gross_amount"`
	} `json:"transaction_details"`
}

// CreateTransaction регистрирует платёж в шлюзе и возвращает токен
// и ссылку на оплату для покупателя.
func (c *Client) CreateTransaction(ctx context.Context, orderID uuid.UUID, amount float64) (*Transaction, error) {
	var payload snapRequest
	payload.TransactionDetails.OrderID = orderID.String()
	payload.TransactionDetails.GrossAmount = amount

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("gateway: marshal request %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/snap/v1/transactions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gateway: build request %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(c.serverKey+":")))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway: create transaction %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("gateway: create transaction status %d", resp.StatusCode)
	}

	var tx Transaction
	if err := json.NewDecoder(resp.Body).Decode(&tx); err != nil {
		return nil, fmt.Errorf("gateway: decode response %w", err)
	}

	return &tx, nil
}

// CallbackPayload представляет уведомление шлюза о смене статуса платежа.
type CallbackPayload struct {
	OrderID           string `json:"order_id"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
}

// Amount разбирает сумму из строкового представления шлюза.
func (p *CallbackPayload) Amount() (float64, error) {
	return strconv.ParseFloat(p.GrossAmount, 64)
}

// IsSettled сообщает, означает ли уведомление успешное зачисление средств.
func (p *CallbackPayload) IsSettled() bool {
	if p.TransactionStatus == "settlement" {
		return true
	}
	return p.TransactionStatus == "capture" && p.FraudStatus != "challenge" && p.FraudStatus != "deny"
}

// IsExpired сообщает, означает ли уведомление истечение срока оплаты.
func (p *CallbackPayload) IsExpired() bool {
	return p.TransactionStatus == "expire" || p.TransactionStatus == "cancel"
}

// VerifySignature проверяет подпись уведомления:
// sha512(order_id + status_code + gross_amount + server_key).
func (c *Client) VerifySignature(p *CallbackPayload) bool {
	sum := sha512.Sum512([]byte(p.OrderID + p.StatusCode + p.GrossAmount + c.serverKey))
	expected := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(expected), []byte(p.SignatureKey)) == 1
}
