package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sony/gobreaker/v2"
)

// Failure codes surfaced by the anticorruption layer.
const (
	CodeCircuitOpen  = "CIRCUIT_OPEN"
	CodeTimeout      = "TIMEOUT"
	CodeGatewayError = "GATEWAY_ERROR"
)

type GatewayResponse struct {
	Success       bool
	TransactionID string
	Message       string
	Code          string
}

type RefundResponse struct {
	Success  bool
	RefundID string
	Message  string
}

type Gateway interface {
	ProcessPayment(ctx context.Context, txID string, amountCents int64, currency, method string) (*GatewayResponse, error)
	ProcessRefund(ctx context.Context, externalTxID string, amountCents int64, currency string) (*RefundResponse, error)
}

// gatewayReply is the gateway's wire shape, shared by both endpoints.
type gatewayReply struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transaction_id,omitempty"`
	RefundID      string `json:"refund_id,omitempty"`
	Message       string `json:"message"`
	Code          string `json:"code,omitempty"`
}

// Client talks to the external payment gateway through the resilience
// pipeline. Breaker, timeout and transport failures come back as structured
// responses, never as raw errors; the error return is reserved for
// cancellation and programming faults, and the handler defends against
// those too.
type Client struct {
	base string
	http *http.Client
	pipe *Pipeline
}

func NewClient(baseURL string, cfg PipelineConfig) *Client {
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{}, // per-attempt deadline comes from the pipeline ctx
		pipe: NewPipeline(cfg),
	}
}

func (c *Client) ProcessPayment(ctx context.Context, txID string, amountCents int64, currency, method string) (*GatewayResponse, error) {
	body := map[string]any{
		"transaction_id": txID,
		"amount_cents":   amountCents,
		"currency":       currency,
		"method":         method,
	}
	r, err := c.pipe.Execute(ctx, func(ctx context.Context) (*gatewayReply, error) {
		return c.post(ctx, "/api/payments", body)
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		msg, code := mapFailure(err)
		return &GatewayResponse{Success: false, Message: msg, Code: code}, nil
	}
	return &GatewayResponse{
		Success:       r.Success,
		TransactionID: r.TransactionID,
		Message:       r.Message,
		Code:          r.Code,
	}, nil
}

func (c *Client) ProcessRefund(ctx context.Context, externalTxID string, amountCents int64, currency string) (*RefundResponse, error) {
	body := map[string]any{
		"transaction_id": externalTxID,
		"amount_cents":   amountCents,
		"currency":       currency,
	}
	r, err := c.pipe.Execute(ctx, func(ctx context.Context) (*gatewayReply, error) {
		return c.post(ctx, "/api/refunds", body)
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		msg, _ := mapFailure(err)
		return &RefundResponse{Success: false, Message: msg}, nil
	}
	return &RefundResponse{Success: r.Success, RefundID: r.RefundID, Message: r.Message}, nil
}

func (c *Client) post(ctx context.Context, path string, body any) (*gatewayReply, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("gateway status %d", resp.StatusCode)
	}

	var out gatewayReply
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode gateway reply: %w", err)
	}
	return &out, nil
}

func mapFailure(err error) (msg, code string) {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "payment service temporarily unavailable - please try again later", CodeCircuitOpen
	case errors.Is(err, ErrGatewayTimeout), errors.Is(err, context.DeadlineExceeded):
		return "payment gateway timeout", CodeTimeout
	default:
		return "payment error: " + err.Error(), CodeGatewayError
	}
}
