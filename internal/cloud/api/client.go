package api

import (
	"bytes"
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

	"github.com/OldStager01/qps-autoscaler/internal/logger"
)

// Service names accepted by Call. Each maps to its own API host.
const (
	ServiceAutoScaling  = "auto_scaling"
	ServiceCloudMonitor = "Volc_Observe"
)

var serviceHosts = map[string]string{
	ServiceAutoScaling:  "auto-scaling.%s.byteplusapi.com",
	ServiceCloudMonitor: "volc-observe.%s.byteplusapi.com",
}

const (
	signAlgorithm = "HMAC-SHA256"
	xDateLayout   = "20060102T150405Z"
)

// Caller issues one signed provider API call. The concrete client and test
// fakes both satisfy it.
type Caller interface {
	// Call performs action against service and decodes the Result field of the
	// response envelope into out (which may be nil).
	Call(ctx context.Context, service, action, version string, body, out any) error
}

// Error is a non-2xx or explicitly errored provider response.
type Error struct {
	Service    string
	Action     string
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s failed: status=%d code=%s message=%s",
		e.Service, e.Action, e.StatusCode, e.Code, e.Message)
}

type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	RequestTimeout  time.Duration
	// Endpoint overrides the per-service provider hosts; used by tests.
	Endpoint string
}

// Client signs requests with the provider's HMAC-SHA256 request-signing scheme
// and retries transient failures once.
type Client struct {
	cfg        Config
	httpClient *http.Client
	now        func() time.Time
}

func NewClient(cfg Config) *Client {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		now:        time.Now,
	}
}

type responseMetadata struct {
	RequestID string `json:"RequestId"`
	Action    string `json:"Action"`
	Error     *struct {
		Code    string `json:"Code"`
		Message string `json:"Message"`
	} `json:"Error,omitempty"`
}

type responseEnvelope struct {
	ResponseMetadata responseMetadata `json:"ResponseMetadata"`
	Result           json.RawMessage  `json:"Result,omitempty"`
}

func (c *Client) Call(ctx context.Context, service, action, version string, body, out any) error {
	payload := []byte("{}")
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", action, err)
		}
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			logger.WithField("action", action).Warnf("Retrying cloud API call: %v", lastErr)
		}
		err := c.do(ctx, service, action, version, payload, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable(err) || ctx.Err() != nil {
			return err
		}
	}
	return lastErr
}

func (c *Client) do(ctx context.Context, service, action, version string, payload []byte, out any) error {
	host, err := c.hostFor(service)
	if err != nil {
		return err
	}

	query := url.Values{}
	query.Set("Action", action)
	query.Set("Version", version)
	canonicalQuery := canonicalizeQuery(query)

	now := c.now().UTC()
	xDate := now.Format(xDateLayout)
	shortDate := xDate[:8]

	payloadHash := hexSHA256(payload)
	canonicalHeaders := fmt.Sprintf("content-type:application/json\nhost:%s\nx-date:%s\n", host, xDate)
	signedHeaders := "content-type;host;x-date"

	canonicalRequest := strings.Join([]string{
		http.MethodPost,
		"/",
		canonicalQuery,
		canonicalHeaders,
		signedHeaders,
		payloadHash,
	}, "\n")

	scope := fmt.Sprintf("%s/%s/%s/request", shortDate, c.cfg.Region, service)
	stringToSign := strings.Join([]string{
		signAlgorithm,
		xDate,
		scope,
		hexSHA256([]byte(canonicalRequest)),
	}, "\n")

	signingKey := c.deriveKey(shortDate, service)
	signature := hex.EncodeToString(hmacSHA256(signingKey, stringToSign))

	endpoint := c.cfg.Endpoint
	if endpoint == "" {
		endpoint = "https://" + host
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/?"+canonicalQuery, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Host = host
	req.Header.Set("X-Date", xDate)
	req.Header.Set("Authorization", fmt.Sprintf(
		"%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		signAlgorithm, c.cfg.AccessKeyID, scope, signedHeaders, signature,
	))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &transportError{action: action, err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return &transportError{action: action, err: err}
	}

	var envelope responseEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("failed to decode %s response (status %d): %w", action, resp.StatusCode, err)
	}

	if resp.StatusCode >= 300 || envelope.ResponseMetadata.Error != nil {
		apiErr := &Error{
			Service:    service,
			Action:     action,
			StatusCode: resp.StatusCode,
		}
		if envelope.ResponseMetadata.Error != nil {
			apiErr.Code = envelope.ResponseMetadata.Error.Code
			apiErr.Message = envelope.ResponseMetadata.Error.Message
		}
		return apiErr
	}

	if out != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("failed to decode %s result: %w", action, err)
		}
	}
	return nil
}

func (c *Client) hostFor(service string) (string, error) {
	pattern, ok := serviceHosts[service]
	if !ok {
		return "", fmt.Errorf("unknown cloud service %q", service)
	}
	return fmt.Sprintf(pattern, c.cfg.Region), nil
}

// deriveKey builds the per-day signing key: date, region and service are each
// folded into the secret before the final "request" stage.
func (c *Client) deriveKey(shortDate, service string) []byte {
	kDate := hmacSHA256([]byte(c.cfg.SecretAccessKey), shortDate)
	kRegion := hmacSHA256(kDate, c.cfg.Region)
	kService := hmacSHA256(kRegion, service)
	return hmacSHA256(kService, "request")
}

type transportError struct {
	action string
	err    error
}

func (e *transportError) Error() string {
	return fmt.Sprintf("%s transport error: %v", e.action, e.err)
}

func (e *transportError) Unwrap() error { return e.err }

func retryable(err error) bool {
	if apiErr, ok := err.(*Error); ok {
		return apiErr.StatusCode >= 500
	}
	_, transport := err.(*transportError)
	return transport
}

func canonicalizeQuery(values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		for _, v := range values[k] {
			parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(v))
		}
	}
	return strings.Join(parts, "&")
}

func hexSHA256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func hmacSHA256(key []byte, data string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(data))
	return mac.Sum(nil)
}
