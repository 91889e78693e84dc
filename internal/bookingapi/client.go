package bookingapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wizardoma/radiance-wellness/internal/booking"
	httpmiddleware "github.com/wizardoma/radiance-wellness/internal/http/middleware"
	"github.com/wizardoma/radiance-wellness/internal/session"
	"github.com/wizardoma/radiance-wellness/pkg/logging"
)

// staffTokenTTL bounds the staff tokens minted per request.
const staffTokenTTL = 2 * time.Minute

// IdempotencyHeader carries the draft's idempotency token.
const IdempotencyHeader = "Idempotency-Key"

// Client calls the booking backend over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	headers    http.Header
	staffKey   string
	logger     *logging.Logger
}

// NewClient creates a client for baseURL, e.g. "https://api.example.com".
func NewClient(baseURL string, logger *logging.Logger) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if _, err := url.ParseRequestURI(baseURL); err != nil || baseURL == "" {
		return nil, fmt.Errorf("bookingapi: invalid base url %q", baseURL)
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		headers:    make(http.Header),
		logger:     logger,
	}, nil
}

// WithHTTPClient overrides the transport.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.httpClient = hc
	}
	return c
}

// WithHeader adds a header to every request, e.g. Authorization.
func (c *Client) WithHeader(key, value string) *Client {
	c.headers.Set(key, value)
	return c
}

// WithStaffSecret makes the client act for the caller: a staff session on
// the request context is forwarded as a short-lived bearer token signed
// with secret, the secret the backend verifies staff tokens with. Client
// sessions are forwarded as X-Client-* headers.
func (c *Client) WithStaffSecret(secret string) *Client {
	c.staffKey = secret
	return c
}

// forwardSession copies the caller's identity onto req.
func (c *Client) forwardSession(req *http.Request) error {
	sess := session.FromContext(req.Context())
	switch {
	case sess.IsStaff():
		if c.staffKey == "" {
			return nil
		}
		token, err := httpmiddleware.SignStaffToken(c.staffKey, sess, staffTokenTTL)
		if err != nil {
			return fmt.Errorf("bookingapi: sign staff token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	case sess.IsClient():
		req.Header.Set("X-Client-Id", sess.UserID)
		req.Header.Set("X-Client-Name", sess.Name)
		req.Header.Set("X-Client-Email", sess.Email)
		req.Header.Set("X-Client-Phone", sess.Phone)
	}
	return nil
}

// SubmitBooking posts the request. Transport failures and 5xx answers
// return *booking.NetworkError; the submitter retries those with the same
// idempotency key.
func (c *Client) SubmitBooking(ctx context.Context, req booking.SubmitRequest) (*booking.Confirmation, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("bookingapi: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/bookings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("bookingapi: request build: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(IdempotencyHeader, req.IdempotencyToken)

	var conf booking.Confirmation
	if err := c.do(httpReq, "submit booking", &conf); err != nil {
		return nil, err
	}
	return &conf, nil
}

// GetBookingByReference loads a stored booking.
func (c *Client) GetBookingByReference(ctx context.Context, reference string) (*booking.Confirmation, error) {
	endpoint := c.baseURL + "/api/bookings/" + url.PathEscape(reference)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("bookingapi: request build: %w", err)
	}
	var conf booking.Confirmation
	if err := c.do(httpReq, "get booking", &conf); err != nil {
		return nil, err
	}
	return &conf, nil
}

func (c *Client) do(req *http.Request, op string, out any) error {
	for key, values := range c.headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if err := c.forwardSession(req); err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &booking.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		var body ErrorBody
		if err := json.Unmarshal(raw, &body); err != nil {
			body.Message = strings.TrimSpace(string(raw))
		}
		c.logger.Warn("booking api error", "op", op, "status", resp.StatusCode, "code", body.Error)
		return DecodeError(op, resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		// The booking may exist; the retry replays it by key.
		return &booking.NetworkError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
