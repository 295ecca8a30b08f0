// Package payment talks to the hosted checkout gateway.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"travelhub/api/internal/config"
)

var ErrNotConfigured = errors.New("payment gateway is not configured")

// GatewayError is returned for any non-2xx gateway response.
type GatewayError struct {
	Status  int
	Message string
}

func (e *GatewayError) Error() string {
	return e.Message
}

type Customer struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone,omitempty"`
}

type Product struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	// Price is in minor units.
	Price int64 `json:"price"`
}

type PurchaseDetails struct {
	Products []Product `json:"products,omitempty"`
	Currency string    `json:"currency"`
	Total    int64     `json:"total,omitempty"`
}

type PurchaseRequest struct {
	Client          Customer        `json:"client"`
	Purchase        PurchaseDetails `json:"purchase"`
	BrandID         string          `json:"brand_id"`
	SuccessRedirect string          `json:"success_redirect"`
	FailureRedirect string          `json:"failure_redirect"`
	CancelRedirect  string          `json:"cancel_redirect,omitempty"`
	SuccessCallback string          `json:"success_callback,omitempty"`
	Reference       string          `json:"reference"`
}

type Purchase struct {
	ID          string          `json:"id"`
	Status      string          `json:"status"`
	CheckoutURL string          `json:"checkout_url"`
	CreatedOn   int64           `json:"created_on"`
	Reference   string          `json:"reference,omitempty"`
	Purchase    PurchaseDetails `json:"purchase"`
}

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     zerolog.Logger
}

func NewClient(cfg config.PaymentConfig, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: 20 * time.Second},
		log:     log,
	}
}

func (c *Client) CreatePurchase(ctx context.Context, req PurchaseRequest) (Purchase, error) {
	var p Purchase
	err := c.do(ctx, http.MethodPost, "/purchases/", req, &p)
	return p, err
}

func (c *Client) GetPurchase(ctx context.Context, id string) (Purchase, error) {
	var p Purchase
	err := c.do(ctx, http.MethodGet, "/purchases/"+url.PathEscape(id)+"/", nil, &p)
	return p, err
}

func (c *Client) do(ctx context.Context, method, path string, in any, out any) error {
	if c.apiKey == "" || c.baseURL == "" {
		return ErrNotConfigured
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read gateway response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		gerr := &GatewayError{Status: resp.StatusCode, Message: gatewayMessage(raw, resp.StatusCode)}
		c.log.Warn().
			Str("method", method).
			Str("path", path).
			Int("status", resp.StatusCode).
			Str("message", gerr.Message).
			Msg("payment gateway rejected request")
		return gerr
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode gateway response: %w", err)
	}
	return nil
}

// gatewayMessage pulls a human readable message out of an error body, falling
// back to the HTTP status.
func gatewayMessage(raw []byte, status int) string {
	var body struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
		Error   string `json:"error"`
		All     []struct {
			Message string `json:"message"`
		} `json:"__all__"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		switch {
		case body.Message != "":
			return body.Message
		case body.Detail != "":
			return body.Detail
		case body.Error != "":
			return body.Error
		case len(body.All) > 0 && body.All[0].Message != "":
			return body.All[0].Message
		}
	}
	return fmt.Sprintf("payment gateway error: %d %s", status, http.StatusText(status))
}
