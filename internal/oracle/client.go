package oracle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"edurumble-service/internal/domain"
	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"

	defaultTimeout = 60 * time.Second
	maxBodyBytes   = 4 << 20
)

// Config selects and tunes the completion provider.
type Config struct {
	Provider   string
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

// provider builds requests and extracts the completion text of one API flavour.
type provider interface {
	name() string
	newRequest(ctx context.Context, prompt string) (*http.Request, error)
	parse(body []byte) (string, error)
}

// Client sends prompts to the configured provider, retrying transient failures.
type Client struct {
	provider   provider
	http       *http.Client
	timeout    time.Duration
	maxRetries int
	newBackOff func() backoff.BackOff
}

// New returns a client for cfg.Provider. httpClient may be nil.
func New(cfg Config, httpClient *http.Client) (*Client, error) {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}

	var p provider
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderGemini:
		p = newGemini(cfg)
	case ProviderOpenAI:
		p = newOpenAI(cfg)
	default:
		return nil, fmt.Errorf("unknown oracle provider %q", cfg.Provider)
	}

	return &Client{
		provider:   p,
		http:       httpClient,
		timeout:    timeout,
		maxRetries: retries,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			return b
		},
	}, nil
}

// Complete returns the provider's text for prompt. Failures are *domain.UpstreamError.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	var (
		text    string
		attempt int
	)
	operation := func() error {
		attempt++
		out, err := c.once(ctx, prompt)
		if err != nil {
			var upstream *domain.UpstreamError
			if errors.As(err, &upstream) && !retryable(upstream.StatusCode) {
				return backoff.Permanent(err)
			}
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			log.WithError(err).WithFields(log.Fields{"provider": c.provider.name(), "attempt": attempt}).Warn("oracle request failed")
			return err
		}
		text = out
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), uint64(c.maxRetries)), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		var upstream *domain.UpstreamError
		if errors.As(err, &upstream) {
			return "", upstream
		}
		return "", &domain.UpstreamError{Err: err}
	}
	return text, nil
}

func (c *Client) once(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.provider.newRequest(ctx, prompt)
	if err != nil {
		return "", backoff.Permanent(&domain.UpstreamError{Err: err})
	}
	resp, err := c.http.Do(req)
	if err != nil {
		// transport failures carry no status and are retried
		return "", &domain.UpstreamError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", &domain.UpstreamError{StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &domain.UpstreamError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s returned %d: %s", c.provider.name(), resp.StatusCode, snippet(body)),
		}
	}

	text, err := c.provider.parse(body)
	if err != nil {
		return "", &domain.UpstreamError{StatusCode: resp.StatusCode, Err: err}
	}
	return text, nil
}

func retryable(status int) bool {
	return status == 0 || status == http.StatusTooManyRequests || status >= 500
}

func jsonRequest(ctx context.Context, url string, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
