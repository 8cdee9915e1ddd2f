package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-cloudlink/internal/infrastructure/config"
)

// API endpoints.
const (
	GatewayEndpoint   = "/api/v1/kronos/gateways"
	DeviceEndpoint    = "/api/v1/kronos/devices"
	TelemetryEndpoint = "/api/v1/kronos/telemetries"
	EventsEndpoint    = "/api/v1/core/events"
)

// Request headers.
const (
	headerAPIKey     = "x-arrow-apikey"
	headerDate       = "x-arrow-date"
	headerVersion    = "x-arrow-version"
	headerRequestID  = "X-Request-ID"
	apiVersion       = "1"
	dateLayout       = "2006-01-02T15:04:05Z"
	defaultTimeout   = 10 * time.Second
	maxResponseBytes = 1 << 20
)

// Signer adds a request signature. No signer ships with this package;
// requests go out unsigned unless one is installed with WithSigner.
type Signer interface {
	Sign(req *http.Request, body []byte, apiKey, secretKey string) error
}

// Client is the registration transport: request/response calls against the
// cloud API.
//
// A call succeeds only with a 2xx status and, where a body is expected, a
// body that decodes. Everything else is an error wrapping ErrRequestFailed
// or ErrInvalidResponse.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	signer     Signer
	now        func() time.Time

	mu        sync.RWMutex
	apiKey    string
	secretKey string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithSigner installs a request signer.
func WithSigner(s Signer) Option {
	return func(c *Client) { c.signer = s }
}

// NewClient creates a client for the API at cfg.BaseURL, seeded with the
// configured key pair.
func NewClient(cfg config.CloudConfig, opts ...Option) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
		apiKey:     cfg.APIKey,
		secretKey:  cfg.SecretKey,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetKeys installs the API key pair used for subsequent requests.
func (c *Client) SetKeys(apiKey, secretKey string) {
	c.mu.Lock()
	c.apiKey, c.secretKey = apiKey, secretKey
	c.mu.Unlock()
}

// Keys returns the key pair currently in use.
func (c *Client) Keys() (apiKey, secretKey string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiKey, c.secretKey
}

// do performs one API call. in, when non-nil, is sent as JSON; out, when
// non-nil, receives the decoded response body.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("encoding %s %s: %w", method, path, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: building %s %s: %w", ErrRequestFailed, method, path, err)
	}

	apiKey, secretKey := c.Keys()
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(headerAPIKey, apiKey)
	req.Header.Set(headerDate, c.now().UTC().Format(dateLayout))
	req.Header.Set(headerVersion, apiVersion)
	req.Header.Set(headerRequestID, uuid.NewString())

	if c.signer != nil {
		if err := c.signer.Sign(req, body, apiKey, secretKey); err != nil {
			return fmt.Errorf("%w: signing %s %s: %w", ErrRequestFailed, method, path, err)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrRequestFailed, method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: reading %s %s: %w", ErrRequestFailed, method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s %s: status %d", ErrRequestFailed, method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if raw, ok := out.(*[]byte); ok {
		*raw = respBody
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrInvalidResponse, method, path, err)
	}
	return nil
}

// hidResponse is the body returned by create calls.
type hidResponse struct {
	HID     json.RawMessage `json:"hid"`
	Message string          `json:"message,omitempty"`
}

// hid extracts the handle. A JSON null becomes NullHID; an absent or empty
// handle is an invalid response.
func (r hidResponse) hid() (string, error) {
	if len(r.HID) == 0 {
		return "", fmt.Errorf("%w: no hid in response", ErrInvalidResponse)
	}
	if string(r.HID) == "null" {
		return NullHID, nil
	}
	var hid string
	if err := json.Unmarshal(r.HID, &hid); err != nil {
		return "", fmt.Errorf("%w: hid: %w", ErrInvalidResponse, err)
	}
	if hid == "" {
		return "", fmt.Errorf("%w: empty hid in response", ErrInvalidResponse)
	}
	return hid, nil
}
