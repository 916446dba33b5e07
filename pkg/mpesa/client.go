package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"

	"github.com/omondidev/samaki-backend/pkg/config"
	pkgerrors "github.com/omondidev/samaki-backend/pkg/errors"
	"github.com/omondidev/samaki-backend/pkg/logger"
)

const (
	oauthPath    = "/oauth/v1/generate?grant_type=client_credentials"
	stkPushPath  = "/mpesa/stkpush/v1/processrequest"
	stkQueryPath = "/mpesa/stkpushquery/v1/query"

	// Daraja tokens are valid for one hour; refresh early.
	tokenLifetime = 50 * time.Minute

	timestampLayout = "20060102150405"
)

var (
	errLoggerRequired      = errors.New("mpesa logger is required")
	errCredentialsRequired = errors.New("mpesa consumer key and secret are required")
	errShortCodeRequired   = errors.New("mpesa business short code is required")
)

// Client wraps the Daraja STK push API with token caching, bounded retries,
// and error mapping.
type Client struct {
	cfg        config.MpesaConfig
	httpClient *http.Client
	logger     *logger.Logger
	now        func() time.Time

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// STKPushRequest carries what the gateway needs to prompt the customer.
type STKPushRequest struct {
	Phone            string
	Amount           decimal.Decimal
	OrderNumber      string
	AccountReference string
}

// STKPushResponse is the gateway's acceptance of a push request.
type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// STKQueryResponse is the gateway's answer to a push status query.
type STKQueryResponse struct {
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResultCode          string `json:"ResultCode"`
	ResultDesc          string `json:"ResultDesc"`
}

// NewClient validates the credentials and builds the Daraja wrapper.
func NewClient(cfg config.MpesaConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	if strings.TrimSpace(cfg.ConsumerKey) == "" || strings.TrimSpace(cfg.ConsumerSecret) == "" {
		return nil, errCredentialsRequired
	}
	if strings.TrimSpace(cfg.BusinessShortCode) == "" {
		return nil, errShortCodeRequired
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logg,
		now:        time.Now,
	}, nil
}

// STKPush asks the gateway to prompt the customer's phone for payment.
// Amounts are whole KES on the wire; fractional amounts are rounded up so the
// customer is never prompted for less than the order total.
func (c *Client) STKPush(ctx context.Context, req STKPushRequest) (*STKPushResponse, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := c.now().Format(timestampLayout)
	payload := map[string]string{
		"BusinessShortCode": c.cfg.BusinessShortCode,
		"Password":          c.password(timestamp),
		"Timestamp":         timestamp,
		"TransactionType":   "CustomerPayBillOnline",
		"Amount":            req.Amount.Ceil().String(),
		"PartyA":            req.Phone,
		"PartyB":            c.cfg.BusinessShortCode,
		"PhoneNumber":       req.Phone,
		"CallBackURL":       c.cfg.CallbackURL,
		"AccountReference":  req.AccountReference,
		"TransactionDesc":   fmt.Sprintf("Payment for Order #%s", req.OrderNumber),
	}

	var out STKPushResponse
	if err := c.postJSON(ctx, stkPushPath, token, payload, &out); err != nil {
		return nil, err
	}
	if out.CheckoutRequestID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeGatewayRejected, "gateway accepted request without a checkout request id")
	}
	c.logger.Info(c.logger.WithCheckoutRequestID(ctx, out.CheckoutRequestID), "stk push accepted")
	return &out, nil
}

// QueryStatus asks the gateway for the outcome of a previously pushed request.
func (c *Client) QueryStatus(ctx context.Context, checkoutRequestID string) (*STKQueryResponse, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := c.now().Format(timestampLayout)
	payload := map[string]string{
		"BusinessShortCode": c.cfg.BusinessShortCode,
		"Password":          c.password(timestamp),
		"Timestamp":         timestamp,
		"CheckoutRequestID": checkoutRequestID,
	}

	var out STKQueryResponse
	if err := c.postJSON(ctx, stkQueryPath, token, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// token returns a cached OAuth token, fetching a fresh one when expired.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.accessToken != "" && c.now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+oauthPath, nil)
	if err != nil {
		return "", fmt.Errorf("build oauth request: %w", err)
	}
	httpReq.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeGatewayUnreachable, err, "fetching oauth token")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", pkgerrors.New(pkgerrors.CodeGatewayRejected, "oauth token request rejected").WithDetails(map[string]any{
			"status": resp.StatusCode,
			"body":   string(body),
		})
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   string `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeGatewayRejected, err, "decoding oauth response")
	}
	if tokenResp.AccessToken == "" {
		return "", pkgerrors.New(pkgerrors.CodeGatewayRejected, "oauth response missing access token")
	}

	c.accessToken = tokenResp.AccessToken
	c.tokenExpiry = c.now().Add(tokenLifetime)
	return c.accessToken, nil
}

// postJSON sends an authenticated POST with exponential backoff on transport
// failures and 5xx responses. 4xx responses are terminal.
func (c *Client) postJSON(ctx context.Context, path, token string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	attempts := c.cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	baseDelay := c.cfg.RetryBaseDelay
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	backoff := retry.WithMaxRetries(uint64(attempts-1), retry.NewExponential(baseDelay))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+token)
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return retry.RetryableError(pkgerrors.Wrap(pkgerrors.CodeGatewayUnreachable, err, "calling payment gateway"))
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeGatewayRejected, err, "decoding gateway response")
			}
			return nil
		case resp.StatusCode >= http.StatusInternalServerError:
			return retry.RetryableError(pkgerrors.New(pkgerrors.CodeGatewayUnreachable, "gateway returned server error").WithDetails(map[string]any{
				"status": resp.StatusCode,
			}))
		default:
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			msg := "gateway rejected request"
			var gwErr struct {
				ErrorMessage string `json:"errorMessage"`
			}
			if json.Unmarshal(raw, &gwErr) == nil && gwErr.ErrorMessage != "" {
				msg = gwErr.ErrorMessage
			}
			return pkgerrors.New(pkgerrors.CodeGatewayRejected, msg).WithDetails(map[string]any{
				"status": resp.StatusCode,
			})
		}
	})
}

// password derives the Daraja API password for the given timestamp.
func (c *Client) password(timestamp string) string {
	data := c.cfg.BusinessShortCode + c.cfg.Passkey + timestamp
	return base64.StdEncoding.EncodeToString([]byte(data))
}
