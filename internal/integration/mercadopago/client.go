package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Dhoini/subscription-service/internal/domain"
	"github.com/Dhoini/subscription-service/pkg/logger"
)

const (
	serviceName    = "mercadopago"
	defaultBaseURL = "https://api.mercadopago.com"
	// maxResponseSize caps how much of a provider response is read.
	maxResponseSize = int64(1 << 20)
)

// RequestObserver receives the latency and outcome of each provider call.
type RequestObserver interface {
	ObserveProviderRequest(operation, outcome string, duration time.Duration)
}

// Config конфигурация клиента Mercado Pago
type Config struct {
	AccessToken string
	BaseURL     string
	BackURLs    BackURLs
	UseSandbox  bool
	Timeout     time.Duration
}

// Client представляет клиент для работы с API Mercado Pago.
// It is immutable after construction and safe for concurrent use.
type Client struct {
	baseURL     string
	accessToken string
	backURLs    BackURLs
	useSandbox  bool
	httpClient  *http.Client
	observer    RequestObserver
	log         *logger.Logger
}

// NewClient создает новый клиент Mercado Pago
func NewClient(cfg Config, observer RequestObserver, log *logger.Logger) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:     baseURL,
		accessToken: cfg.AccessToken,
		backURLs:    cfg.BackURLs,
		useSandbox:  cfg.UseSandbox,
		httpClient:  &http.Client{Timeout: timeout},
		observer:    observer,
		log:         log.Named("mercadopago"),
	}
}

// do executes one API call and decodes a 2xx JSON body into out.
// Every failure is reported as *domain.ExternalServiceError.
func (c *Client) do(ctx context.Context, operation, method, path string, body, out any) error {
	start := time.Now()
	err := c.doRequest(ctx, operation, method, path, body, out)
	if c.observer != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		c.observer.ObserveProviderRequest(operation, outcome, time.Since(start))
	}
	return err
}

func (c *Client) doRequest(ctx context.Context, operation, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return domain.NewExternalServiceError(serviceName, operation, "failed to encode request", 0, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return domain.NewExternalServiceError(serviceName, operation, "failed to build request", 0, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warnw("Provider request failed", "operation", operation, "error", err)
		return domain.NewExternalServiceError(serviceName, operation, "request failed", 0, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return domain.NewExternalServiceError(serviceName, operation, "failed to read response", resp.StatusCode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		_ = json.Unmarshal(raw, &apiErr)
		c.log.Warnw("Provider returned error status",
			"operation", operation, "status", resp.StatusCode, "message", apiErr.Message)
		return domain.NewExternalServiceError(serviceName, operation, apiErr.describe(), resp.StatusCode, nil)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return domain.NewExternalServiceError(serviceName, operation, "malformed response", resp.StatusCode, err)
	}
	return nil
}

// apiError is the error body Mercado Pago returns on non-2xx responses.
type apiError struct {
	Message string `json:"message"`
	Err     string `json:"error"`
	Status  int    `json:"status"`
}

func (e apiError) describe() string {
	switch {
	case e.Message != "" && e.Err != "":
		return fmt.Sprintf("%s: %s", e.Err, e.Message)
	case e.Message != "":
		return e.Message
	case e.Err != "":
		return e.Err
	default:
		return "unexpected status"
	}
}
