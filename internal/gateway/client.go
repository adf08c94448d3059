package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"cabanas/internal/config"

	"github.com/rs/zerolog"
)

// OrderRequest carries everything the provider needs to start a payment.
// CommerceOrder is the booking UUID and doubles as the idempotency key.
type OrderRequest struct {
	CommerceOrder string
	Subject       string
	Amount        int64
	Currency      string
	PayerEmail    string
	ConfirmURL    string // server-to-server webhook
	ReturnURL     string // browser redirect back
}

// OrderResponse is the provider's answer to a create-order call.
type OrderResponse struct {
	RedirectURL string
	Token       string
	FlowOrderID string
}

// StatusResponse is the authoritative state of an order.
type StatusResponse struct {
	Status        Status
	CommerceOrder string // our booking id
	FlowOrderID   string
	Amount        int64
	RawPayload    string // audit blob, never interpreted downstream
}

// ErrGateway wraps any provider-side failure so callers can treat it as
// retryable without inspecting transport details.
type ErrGateway struct {
	Op  string
	Err error
}

func (e *ErrGateway) Error() string { return fmt.Sprintf("gateway %s: %v", e.Op, e.Err) }
func (e *ErrGateway) Unwrap() error { return e.Err }

// Client is the HTTP wrapper around the Flow-style payment API.
type Client struct {
	baseURL string
	apiKey  string
	secret  []byte
	http    *http.Client
	log     zerolog.Logger
}

func NewClient(cfg config.GatewayConfig, logger *zerolog.Logger) *Client {
	var log zerolog.Logger
	if logger != nil {
		log = logger.With().Str("component", "gateway").Logger()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		secret:  []byte(cfg.Secret),
		http:    &http.Client{Timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond},
		log:     log,
	}
}

func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (OrderResponse, error) {
	params := map[string]string{
		"apiKey":          c.apiKey,
		"commerceOrder":   req.CommerceOrder,
		"subject":         req.Subject,
		"amount":          fmt.Sprintf("%d", req.Amount),
		"currency":        req.Currency,
		"email":           req.PayerEmail,
		"urlConfirmation": req.ConfirmURL,
		"urlReturn":       req.ReturnURL,
	}

	var raw struct {
		URL       string `json:"url"`
		Token     string `json:"token"`
		FlowOrder int64  `json:"flowOrder"`
	}
	if err := c.post(ctx, "/payment/create", params, &raw); err != nil {
		return OrderResponse{}, err
	}
	if raw.Token == "" || raw.URL == "" {
		return OrderResponse{}, &ErrGateway{Op: "create-order", Err: fmt.Errorf("malformed response, missing token or url")}
	}

	return OrderResponse{
		RedirectURL: fmt.Sprintf("%s?token=%s", raw.URL, raw.Token),
		Token:       raw.Token,
		FlowOrderID: fmt.Sprintf("%d", raw.FlowOrder),
	}, nil
}

func (c *Client) GetStatus(ctx context.Context, token string) (StatusResponse, error) {
	params := map[string]string{
		"apiKey": c.apiKey,
		"token":  token,
	}

	query := url.Values{}
	for k, v := range params {
		query.Set(k, v)
	}
	query.Set("s", c.sign(params))

	endpoint := c.baseURL + "/payment/getStatus?" + query.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return StatusResponse{}, &ErrGateway{Op: "get-status", Err: err}
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return StatusResponse{}, &ErrGateway{Op: "get-status", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return StatusResponse{}, &ErrGateway{Op: "get-status", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return StatusResponse{}, &ErrGateway{Op: "get-status", Err: fmt.Errorf("http %d: %s", resp.StatusCode, body)}
	}

	var raw struct {
		Status        int    `json:"status"`
		CommerceOrder string `json:"commerceOrder"`
		FlowOrder     int64  `json:"flowOrder"`
		Amount        int64  `json:"amount"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return StatusResponse{}, &ErrGateway{Op: "get-status", Err: fmt.Errorf("malformed response: %w", err)}
	}

	status, err := ParseStatus(raw.Status)
	if err != nil {
		return StatusResponse{}, &ErrGateway{Op: "get-status", Err: err}
	}

	return StatusResponse{
		Status:        status,
		CommerceOrder: raw.CommerceOrder,
		FlowOrderID:   fmt.Sprintf("%d", raw.FlowOrder),
		Amount:        raw.Amount,
		RawPayload:    string(body),
	}, nil
}

// VerifySignature checks the HMAC the provider attaches to webhook
// payloads. Constant-time comparison; the "s" parameter itself is
// excluded from the signed string.
func (c *Client) VerifySignature(params map[string]string, signature string) bool {
	expected := c.sign(params)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// sign computes HMAC-SHA256 over key=value pairs joined by "&" with keys
// sorted lexicographically, per the provider contract.
func (c *Client) sign(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "s" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}

	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(strings.Join(pairs, "&")))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) post(ctx context.Context, path string, params map[string]string, out any) error {
	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}
	form.Set("s", c.sign(params))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path,
		strings.NewReader(form.Encode()))
	if err != nil {
		return &ErrGateway{Op: path, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return &ErrGateway{Op: path, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ErrGateway{Op: path, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return &ErrGateway{Op: path, Err: fmt.Errorf("http %d: %s", resp.StatusCode, body)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &ErrGateway{Op: path, Err: fmt.Errorf("malformed response: %w", err)}
	}
	return nil
}
