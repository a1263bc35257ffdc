// Package clova is the client for the Clova text-completion endpoint.
//
// Failure policy: transport errors, non-2xx statuses and malformed envelopes
// are retried with backoff and, when the attempts are exhausted, converted to
// the sentinel failure string. Callers above the client boundary never see an
// error from Complete; they see degraded text and carry on.
package clova

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ai-restaurant-analysis/pkg/circuit"
	"ai-restaurant-analysis/pkg/config"
	errs "ai-restaurant-analysis/pkg/errors"
	"ai-restaurant-analysis/pkg/logging"
	"ai-restaurant-analysis/pkg/metrics"
)

// FailureSentinel is returned by Complete when the remote call could not be
// served. The score parser treats it as zero matched tokens.
const FailureSentinel = "AI_REQUEST_FAILED"

// IsFailure reports whether a completion is the degraded sentinel.
func IsFailure(s string) bool { return s == FailureSentinel }

// Completer is what the scorer, selector and preprocessor depend on.
type Completer interface {
	Complete(ctx context.Context, prompt string) string
}

type completionRequest struct {
	Messages         []message `json:"messages"`
	TopP             float64   `json:"topP"`
	Temperature      float64   `json:"temperature"`
	MaxTokens        int       `json:"maxTokens"`
	RepeatPenalty    float64   `json:"repeatPenalty"`
	StopBefore       []string  `json:"stopBefore"`
	IncludeAiFilters bool      `json:"includeAiFilters"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionResponse struct {
	Result struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"result"`
}

type Client struct {
	apiURL     string
	apiKey     string
	maxTokens  int
	maxRetries int
	timeout    time.Duration

	httpClient *http.Client
	breaker    *circuit.Breaker
	log        *logging.ComponentLogger

	mCalls    *metrics.Counter
	mFailures *metrics.Counter
	mLatency  *metrics.Histogram
}

func New(cfg *config.Config, log *logging.Logger) *Client {
	return &Client{
		apiURL:     cfg.ClovaAPIURL,
		apiKey:     cfg.ClovaAPIKey,
		maxTokens:  cfg.AIMaxTokens,
		maxRetries: cfg.AIMaxRetries,
		timeout:    cfg.AITimeout,
		// The per-attempt timeout lives here; the breaker only counts outcomes.
		httpClient: &http.Client{},
		breaker: circuit.New(circuit.Config{
			Name:              "clova",
			OpenFor:           30 * time.Second,
			MaxConsecFailures: 5,
			WindowSize:        20,
			FailureRate:       0.8,
		}, log),
		log:       log.WithComponent("clova"),
		mCalls:    metrics.Default.Counter("clova_calls_total", "Completion calls attempted"),
		mFailures: metrics.Default.Counter("clova_failures_total", "Completion calls degraded to the sentinel"),
		mLatency:  metrics.Default.Histogram("clova_latency_seconds", "Completion call latency", []float64{0.5, 1, 2, 5, 10, 30}),
	}
}

// Complete sends one prompt and returns the model's text. On any terminal
// failure it returns FailureSentinel, never an error.
func (c *Client) Complete(ctx context.Context, prompt string) string {
	c.mCalls.Inc()
	start := time.Now()

	var out string
	err := c.breaker.Do(ctx, func(ctx context.Context) error {
		text, err := c.completeWithRetry(ctx, prompt)
		if err != nil {
			return err
		}
		out = text
		return nil
	}, nil)

	c.mLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		c.mFailures.Inc()
		c.log.Warn("completion degraded to sentinel", logging.Err(err))
		return FailureSentinel
	}
	return out
}

// completeWithRetry retries transient failures with exponential backoff.
// 4xx statuses are not retried: the request won't get better.
func (c *Client) completeWithRetry(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(1<<(attempt-1)) * 500 * time.Millisecond
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		text, retryable, err := c.completeOnce(ctx, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return "", lastErr
}

func (c *Client) completeOnce(ctx context.Context, prompt string) (text string, retryable bool, err error) {
	body := completionRequest{
		Messages:         []message{{Role: "user", Content: prompt}},
		TopP:             0.8,
		Temperature:      0.7,
		MaxTokens:        c.maxTokens,
		RepeatPenalty:    1.1,
		StopBefore:       []string{},
		IncludeAiFilters: false,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", false, errs.NewExternal("clova.completeOnce", "clova", "marshal request", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
	if err != nil {
		return "", false, errs.NewExternal("clova.completeOnce", "clova", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", true, errs.NewExternal("clova.completeOnce", "clova", "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		retryable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return "", retryable, errs.NewExternal("clova.completeOnce", "clova",
			fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", true, errs.NewExternal("clova.completeOnce", "clova", "read body", err)
	}

	var parsed completionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", false, errs.NewExternal("clova.completeOnce", "clova", "malformed response JSON", err)
	}
	if parsed.Result.Message.Content == "" {
		return "", false, errs.NewExternal("clova.completeOnce", "clova", "empty completion content", nil)
	}
	return parsed.Result.Message.Content, false, nil
}
