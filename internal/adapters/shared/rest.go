package shared

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/straddle-io/straddle/errs"
)

// Signer signs an outgoing request in place. Venue adapters supply their own
// signing scheme.
type Signer interface {
	Sign(req *http.Request, query url.Values, body []byte) error
}

// HMACSigner implements the query-string HMAC-SHA256 scheme used by most
// centralized venues: appends timestamp and signature parameters and sets the
// API key header.
type HMACSigner struct {
	APIKey    string
	APISecret string
	KeyHeader string
	Now       func() time.Time
}

func (s *HMACSigner) Sign(req *http.Request, query url.Values, _ []byte) error {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	query.Set("timestamp", fmt.Sprintf("%d", now().UnixMilli()))
	mac := hmac.New(sha256.New, []byte(s.APISecret))
	if _, err := mac.Write([]byte(query.Encode())); err != nil {
		return err
	}
	query.Set("signature", hex.EncodeToString(mac.Sum(nil)))
	req.URL.RawQuery = query.Encode()
	header := s.KeyHeader
	if header == "" {
		header = "X-MBX-APIKEY"
	}
	req.Header.Set(header, s.APIKey)
	return nil
}

// RESTClient is a rate-limited HTTP client scoped to one venue base URL.
type RESTClient struct {
	venue   string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	signer  Signer
}

// RESTConfig tunes one REST client.
type RESTConfig struct {
	Venue   string
	BaseURL string
	Timeout time.Duration
	// Rate caps outgoing requests; Burst allows short spikes.
	Rate  rate.Limit
	Burst int
}

// NewRESTClient builds a client. Signer may be nil for public endpoints.
func NewRESTClient(cfg RESTConfig, signer Signer) *RESTClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Rate <= 0 {
		cfg.Rate = rate.Limit(10)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	return &RESTClient{
		venue:   cfg.Venue,
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(cfg.Rate, cfg.Burst),
		signer:  signer,
	}
}

// Get performs an unsigned GET.
func (c *RESTClient) Get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, query, nil, false)
}

// Signed performs a signed request.
func (c *RESTClient) Signed(ctx context.Context, method, path string, query url.Values, body []byte) ([]byte, error) {
	return c.do(ctx, method, path, query, body, true)
}

func (c *RESTClient) do(ctx context.Context, method, path string, query url.Values, body []byte, signed bool) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errs.New(c.venue, errs.CodeUnavailable,
			errs.WithCause(err),
			errs.WithMessage("request pacing interrupted"))
	}
	if query == nil {
		query = url.Values{}
	}
	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, errs.New(c.venue, errs.CodeInvalid, errs.WithCause(err))
	}
	if signed {
		if c.signer == nil {
			return nil, errs.New(c.venue, errs.CodeAuth,
				errs.WithMessage("signed request without credentials"))
		}
		if err := c.signer.Sign(req, query, body); err != nil {
			return nil, errs.New(c.venue, errs.CodeAuth,
				errs.WithCause(err), errs.WithMessage("sign request"))
		}
	} else {
		req.URL.RawQuery = query.Encode()
	}
	if len(body) > 0 && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errs.New(c.venue, errs.CodeNetwork,
			errs.WithCause(err),
			errs.WithMessage(fmt.Sprintf("%s %s", method, path)))
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, errs.New(c.venue, errs.CodeNetwork, errs.WithCause(err))
	}
	if resp.StatusCode >= 400 {
		return payload, c.statusError(resp.StatusCode, method, path, payload)
	}
	return payload, nil
}

func (c *RESTClient) statusError(status int, method, path string, payload []byte) error {
	code := errs.CodeVenue
	var canonical errs.CanonicalCode
	switch {
	case status == http.StatusTooManyRequests || status == 418:
		code = errs.CodeRateLimited
		canonical = errs.CanonicalRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		code = errs.CodeAuth
	case status >= 500:
		code = errs.CodeUnavailable
	}
	opts := []errs.Option{
		errs.WithHTTP(status),
		errs.WithMessage(fmt.Sprintf("%s %s", method, path)),
	}
	if len(payload) > 0 && len(payload) < 512 {
		opts = append(opts, errs.WithRawMessage(string(payload)))
	}
	if canonical != "" {
		opts = append(opts, errs.WithCanonicalCode(canonical))
	}
	return errs.New(c.venue, code, opts...)
}
