// Package payment confirms card payments with the Toss Payments API.
//
// A confirmation is attempted exactly once. The processor is the only
// authority on whether money moved, so a failed or ambiguous call is reported
// back to the caller instead of being retried.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	DefaultBaseURL = "https://api.tosspayments.com"
	confirmPath    = "/v1/payments/confirm"

	// StatusDone is the only processor status treated as a settled charge.
	StatusDone = "DONE"
)

var ErrMissingSecret = errors.New("payment gateway secret key is not configured")

type ConfirmRequest struct {
	PaymentKey string `json:"paymentKey"`
	OrderID    string `json:"orderId"`
	Amount     int64  `json:"amount"`
}

// Result is the processor's answer. On success its fields supersede the
// client-supplied ones.
type Result struct {
	Status      string `json:"status"`
	Code        string `json:"code,omitempty"`
	Message     string `json:"message,omitempty"`
	PaymentKey  string `json:"paymentKey,omitempty"`
	OrderID     string `json:"orderId,omitempty"`
	OrderName   string `json:"orderName,omitempty"`
	TotalAmount int64  `json:"totalAmount,omitempty"`
	Method      string `json:"method,omitempty"`
	ApprovedAt  string `json:"approvedAt,omitempty"`
}

// RejectionError is returned when the processor did not settle the charge.
// StatusCode mirrors the processor's HTTP status, or 400 when the processor
// answered 2xx without a DONE status.
type RejectionError struct {
	StatusCode int
	Status     string
	Code       string
	Message    string
	Raw        json.RawMessage
}

func (e *RejectionError) Error() string {
	detail := e.Message
	if detail == "" {
		detail = e.Code
	}
	if detail == "" {
		detail = "status " + e.Status
	}
	return fmt.Sprintf("payment rejected (http %d): %s", e.StatusCode, detail)
}

// Detail is the diagnostic string surfaced to the client.
func (e *RejectionError) Detail() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

func NewClient(baseURL, secretKey string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		secretKey:  secretKey,
		httpClient: httpClient,
	}
}

func (c *Client) Confirm(ctx context.Context, req ConfirmRequest) (*Result, error) {
	if c.secretKey == "" {
		return nil, ErrMissingSecret
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal confirm request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+confirmPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build confirm request: %w", err)
	}
	httpReq.SetBasicAuth(c.secretKey, "")
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call payment gateway: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read payment gateway response: %w", err)
	}

	var result Result
	decodeErr := json.Unmarshal(raw, &result)

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if ok && decodeErr == nil && result.Status == StatusDone {
		return &result, nil
	}

	status := resp.StatusCode
	if ok {
		status = http.StatusBadRequest
	}
	return nil, &RejectionError{
		StatusCode: status,
		Status:     result.Status,
		Code:       result.Code,
		Message:    result.Message,
		Raw:        rawJSON(raw),
	}
}

func rawJSON(raw []byte) json.RawMessage {
	if len(raw) > 0 && json.Valid(raw) {
		return json.RawMessage(raw)
	}
	quoted, _ := json.Marshal(string(raw))
	return quoted
}
