package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/anything-ai/anything-ai/internal/apperrors"
	"github.com/anything-ai/anything-ai/internal/config"
	"github.com/anything-ai/anything-ai/internal/i18n"
	"github.com/anything-ai/anything-ai/internal/models"
	"github.com/sirupsen/logrus"
)

// Generator streams completions from the upstream model
type Generator interface {
	Stream(ctx context.Context, prompt *Prompt, onToken func(text string) error) (*Result, error)
	CountTokens(ctx context.Context, contents []Content) int
	Model() string
}

// Metrics receives upstream call observations
type Metrics interface {
	RecordUpstreamRequest(model, status string, duration time.Duration)
	RecordUpstreamRetry(model string)
}

// Result is the outcome of a completed stream
type Result struct {
	Text  string
	Usage models.Usage
}

// UpstreamError is a non-200 response from the upstream API
type UpstreamError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("upstream error %d (%s): %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("upstream error %d: %s", e.StatusCode, e.Message)
}

// Client talks to the Gemini generateContent REST API
type Client struct {
	baseURL         string
	apiKey          string
	model           string
	temperature     float64
	maxOutputTokens int
	httpClient      *http.Client
	retry           retryPolicy
	metrics         Metrics
	logger          *logrus.Logger
}

// NewClient creates a new upstream client
func NewClient(cfg *config.UpstreamConfig, metrics Metrics, logger *logrus.Logger) *Client {
	logger.WithFields(logrus.Fields{
		"model":   cfg.Model,
		"baseURL": cfg.BaseURL,
	}).Info("Upstream client initialized")

	return &Client{
		baseURL:         strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:          cfg.APIKey,
		model:           cfg.Model,
		temperature:     cfg.Temperature,
		maxOutputTokens: cfg.MaxOutputTokens,
		httpClient: &http.Client{
			// No overall timeout: a stream may legitimately run for minutes.
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				ResponseHeaderTimeout: cfg.HeaderTimeout,
				IdleConnTimeout:       90 * time.Second,
			},
		},
		retry: retryPolicy{
			maxRetries: cfg.MaxRetries,
			initial:    cfg.InitialBackoff,
			sleep:      sleepContext,
		},
		metrics: metrics,
		logger:  logger,
	}
}

// Model returns the configured model identifier
func (c *Client) Model() string {
	return c.model
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type generateRequest struct {
	Contents          []Content        `json:"contents"`
	SystemInstruction *Content         `json:"systemInstruction,omitempty"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type usageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
}

type streamChunk struct {
	Candidates []struct {
		Content Content `json:"content"`
	} `json:"candidates"`
	UsageMetadata *usageMetadata `json:"usageMetadata"`
	Error         *apiError      `json:"error"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// Stream opens a streaming generation call and invokes onToken for every
// text chunk in order. An upstream that closes early ends the stream without
// error. When the stream carries no usage metadata the totals are counted
// afterwards from the prompt and the accumulated text.
func (c *Client) Stream(ctx context.Context, prompt *Prompt, onToken func(text string) error) (*Result, error) {
	body := generateRequest{
		Contents: prompt.Contents.Wire(),
		GenerationConfig: generationConfig{
			Temperature:     c.temperature,
			MaxOutputTokens: c.maxOutputTokens,
		},
	}
	if prompt.SystemInstruction != "" {
		si := textContent("", prompt.SystemInstruction)
		body.SystemInstruction = &si
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:streamGenerateContent?alt=sse", c.baseURL, c.model)
	start := time.Now()

	onRetry := func(attempt int, delay time.Duration, err error) {
		c.logger.WithFields(logrus.Fields{
			"model":   c.model,
			"attempt": attempt,
			"delay":   delay.String(),
			"error":   err.Error(),
		}).Warn("Upstream rate limited, retrying...")
		if c.metrics != nil {
			c.metrics.RecordUpstreamRetry(c.model)
		}
	}

	resp, err := withBackoff(ctx, c.retry, onRetry, func() (*http.Response, error) {
		return c.post(ctx, url, jsonData)
	})
	if err != nil {
		err = classify(err)
		c.record(err, start)
		return nil, err
	}
	defer resp.Body.Close()

	result := &Result{}
	var fullText strings.Builder
	var usage *usageMetadata

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "" || data == "[DONE]" {
			continue
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			c.logger.WithError(err).Debug("Skipping malformed stream chunk")
			continue
		}
		if chunk.Error != nil {
			streamErr := classify(&UpstreamError{StatusCode: chunk.Error.Code, Status: chunk.Error.Status, Message: chunk.Error.Message})
			c.record(streamErr, start)
			return nil, streamErr
		}
		if chunk.UsageMetadata != nil {
			usage = chunk.UsageMetadata
		}
		if len(chunk.Candidates) == 0 {
			continue
		}
		for _, part := range chunk.Candidates[0].Content.Parts {
			if part.Text == "" {
				continue
			}
			fullText.WriteString(part.Text)
			if err := onToken(part.Text); err != nil {
				c.record(err, start)
				return nil, err
			}
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			c.record(ctx.Err(), start)
			return nil, classify(ctx.Err())
		}
		c.logger.WithError(err).WithField("model", c.model).Warn("Upstream closed the stream early")
	}

	result.Text = fullText.String()
	if usage != nil && (usage.PromptTokenCount > 0 || usage.CandidatesTokenCount > 0) {
		result.Usage = models.Usage{InputTokens: usage.PromptTokenCount, OutputTokens: usage.CandidatesTokenCount}
	} else {
		result.Usage = models.Usage{
			InputTokens:  c.CountTokens(ctx, body.Contents),
			OutputTokens: c.CountTokens(ctx, []Content{textContent(models.RoleModel, result.Text)}),
		}
	}

	c.record(nil, start)
	return result, nil
}

// CountTokens asks the upstream for the token count of contents.
// Counting is best effort: any failure yields 0.
func (c *Client) CountTokens(ctx context.Context, contents []Content) int {
	if len(contents) == 0 {
		return 0
	}

	jsonData, err := json.Marshal(struct {
		Contents []Content `json:"contents"`
	}{contents})
	if err != nil {
		return 0
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:countTokens", c.baseURL, c.model)
	resp, err := c.post(ctx, url, jsonData)
	if err != nil {
		c.logger.WithError(err).Debug("Token counting failed")
		return 0
	}
	defer resp.Body.Close()

	var result struct {
		TotalTokens int `json:"totalTokens"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		c.logger.WithError(err).Debug("Failed to parse token count")
		return 0
	}
	return result.TotalTokens
}

// post sends one request and returns the response only when it is 200
func (c *Client) post(ctx context.Context, url string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

		upErr := &UpstreamError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		var parsed struct {
			Error apiError `json:"error"`
		}
		if json.Unmarshal(raw, &parsed) == nil && parsed.Error.Message != "" {
			upErr.Status = parsed.Error.Status
			upErr.Message = parsed.Error.Message
		}

		c.logger.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"error":  upErr.Message,
			"model":  c.model,
		}).Error("Upstream request failed")
		return nil, upErr
	}

	return resp, nil
}

func (c *Client) record(err error, start time.Time) {
	if c.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = strings.ToLower(string(apperrors.KindOf(err)))
	}
	c.metrics.RecordUpstreamRequest(c.model, status, time.Since(start))
}

// classify turns upstream failures into client-facing error kinds
func classify(err error) error {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	var upErr *UpstreamError
	if errors.As(err, &upErr) {
		switch {
		case IsRateLimited(upErr):
			return apperrors.Wrap(apperrors.QuotaExceeded, "upstream rate limit exceeded", err).WithMessageID(i18n.MsgQuotaExceeded)
		case upErr.StatusCode == http.StatusGatewayTimeout || upErr.StatusCode == http.StatusRequestTimeout || upErr.Status == "DEADLINE_EXCEEDED":
			return apperrors.Wrap(apperrors.Timeout, "upstream timed out", err).WithMessageID(i18n.MsgUpstreamTimeout)
		}
		return apperrors.Wrap(apperrors.ServerError, "upstream request failed", err)
	}
	if kind := apperrors.KindOf(err); kind == apperrors.Timeout {
		return apperrors.Wrap(apperrors.Timeout, "upstream timed out", err).WithMessageID(i18n.MsgUpstreamTimeout)
	}
	return err
}
