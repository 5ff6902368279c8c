package ai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anything-ai/anything-ai/internal/apperrors"
	"github.com/anything-ai/anything-ai/internal/config"
	"github.com/anything-ai/anything-ai/internal/models"
	"github.com/anything-ai/anything-ai/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	helloChunk = `data: {"candidates":[{"content":{"role":"model","parts":[{"text":"Hello"}]}}]}` + "\n\n"
	worldChunk = `data: {"candidates":[{"content":{"role":"model","parts":[{"text":" world"}]}}],"usageMetadata":{"promptTokenCount":5,"candidatesTokenCount":2}}` + "\n\n"
	rateLimit  = `{"error":{"code":429,"message":"Resource has been exhausted","status":"RESOURCE_EXHAUSTED"}}`
)

type fakeUpstream struct {
	server      *httptest.Server
	streamCalls atomic.Int32
	countCalls  atomic.Int32
}

// newFakeUpstream fails the first failures stream calls with status, then
// serves body. countTokens always reports 7.
func newFakeUpstream(t *testing.T, failures int32, status int, body string) *fakeUpstream {
	f := &fakeUpstream{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))

		if strings.HasSuffix(r.URL.Path, ":countTokens") {
			f.countCalls.Add(1)
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{"totalTokens":7}`)
			return
		}

		n := f.streamCalls.Add(1)
		if n <= failures {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			if status == http.StatusTooManyRequests {
				io.WriteString(w, rateLimit)
			} else {
				io.WriteString(w, `{"error":{"code":500,"message":"internal","status":"INTERNAL"}}`)
			}
			return
		}

		assert.Equal(t, "sse", r.URL.Query().Get("alt"))
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, body)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func newTestClient(baseURL string) (*Client, *[]time.Duration) {
	c := NewClient(&config.UpstreamConfig{
		APIKey:         "test-key",
		BaseURL:        baseURL,
		Model:          "gemini-test",
		HeaderTimeout:  5 * time.Second,
		MaxRetries:     4,
		InitialBackoff: time.Second,
	}, nil, logger.Discard())

	var delays []time.Duration
	c.retry.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	return c, &delays
}

func barePrompt(text string) *Prompt {
	return &Prompt{Contents: PromptContents{Text: text}}
}

func collect(tokens *[]string) func(string) error {
	return func(text string) error {
		*tokens = append(*tokens, text)
		return nil
	}
}

func TestStream(t *testing.T) {
	up := newFakeUpstream(t, 0, 0, helloChunk+worldChunk)
	c, _ := newTestClient(up.server.URL)

	var tokens []string
	result, err := c.Stream(context.Background(), barePrompt("hi"), collect(&tokens))
	require.NoError(t, err)

	assert.Equal(t, []string{"Hello", " world"}, tokens)
	assert.Equal(t, "Hello world", result.Text)
	assert.Equal(t, models.Usage{InputTokens: 5, OutputTokens: 2}, result.Usage)
	assert.Equal(t, int32(0), up.countCalls.Load(), "usage metadata makes counting unnecessary")
}

func TestStreamCountsTokensWithoutUsage(t *testing.T) {
	up := newFakeUpstream(t, 0, 0, helloChunk)
	c, _ := newTestClient(up.server.URL)

	var tokens []string
	result, err := c.Stream(context.Background(), barePrompt("hi"), collect(&tokens))
	require.NoError(t, err)

	assert.Equal(t, models.Usage{InputTokens: 7, OutputTokens: 7}, result.Usage)
	assert.Equal(t, int32(2), up.countCalls.Load())
}

func TestStreamRetriesRateLimit(t *testing.T) {
	up := newFakeUpstream(t, 3, http.StatusTooManyRequests, helloChunk+worldChunk)
	c, delays := newTestClient(up.server.URL)

	var tokens []string
	result, err := c.Stream(context.Background(), barePrompt("hi"), collect(&tokens))
	require.NoError(t, err)

	assert.Equal(t, int32(4), up.streamCalls.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, *delays)
	assert.Equal(t, "Hello world", result.Text)
}

func TestStreamQuotaExhausted(t *testing.T) {
	up := newFakeUpstream(t, 100, http.StatusTooManyRequests, "")
	c, delays := newTestClient(up.server.URL)

	var tokens []string
	_, err := c.Stream(context.Background(), barePrompt("hi"), collect(&tokens))
	require.Error(t, err)

	assert.Equal(t, int32(5), up.streamCalls.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}, *delays)
	assert.Equal(t, apperrors.QuotaExceeded, apperrors.KindOf(err))
	assert.True(t, IsRateLimited(err))
	assert.Empty(t, tokens)
}

func TestStreamDoesNotRetryOtherErrors(t *testing.T) {
	up := newFakeUpstream(t, 100, http.StatusInternalServerError, "")
	c, delays := newTestClient(up.server.URL)

	_, err := c.Stream(context.Background(), barePrompt("hi"), func(string) error { return nil })
	require.Error(t, err)

	assert.Equal(t, int32(1), up.streamCalls.Load())
	assert.Empty(t, *delays)
	assert.Equal(t, apperrors.ServerError, apperrors.KindOf(err))
}

func TestStreamToleratesEarlyClose(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, ":countTokens") {
			io.WriteString(w, `{"totalTokens":3}`)
			return
		}
		conn, buf, err := w.(http.Hijacker).Hijack()
		require.NoError(t, err)
		defer conn.Close()

		fmt.Fprintf(buf, "HTTP/1.1 200 OK\r\nContent-Type: text/event-stream\r\nContent-Length: 4096\r\n\r\n%s", helloChunk)
		buf.Flush()
	}))
	defer server.Close()

	c, _ := newTestClient(server.URL)

	var tokens []string
	result, err := c.Stream(context.Background(), barePrompt("hi"), collect(&tokens))
	require.NoError(t, err)
	assert.Equal(t, []string{"Hello"}, tokens)
	assert.Equal(t, "Hello", result.Text)
	assert.Equal(t, models.Usage{InputTokens: 3, OutputTokens: 3}, result.Usage)
}

func TestStreamErrorChunk(t *testing.T) {
	body := helloChunk + `data: {"error":{"code":504,"message":"deadline","status":"DEADLINE_EXCEEDED"}}` + "\n\n"
	up := newFakeUpstream(t, 0, 0, body)
	c, _ := newTestClient(up.server.URL)

	_, err := c.Stream(context.Background(), barePrompt("hi"), func(string) error { return nil })
	require.Error(t, err)
	assert.Equal(t, apperrors.Timeout, apperrors.KindOf(err))
}

func TestCountTokensIdempotent(t *testing.T) {
	up := newFakeUpstream(t, 0, 0, "")
	c, _ := newTestClient(up.server.URL)
	contents := PromptContents{Text: "how many tokens is this?"}.Wire()

	first := c.CountTokens(context.Background(), contents)
	second := c.CountTokens(context.Background(), contents)
	assert.Equal(t, 7, first)
	assert.Equal(t, first, second)
}

func TestCountTokensFailsOpen(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c, _ := newTestClient(server.URL)
	contents := PromptContents{Text: "hi"}.Wire()

	assert.Equal(t, 0, c.CountTokens(context.Background(), contents))
	assert.Equal(t, 0, c.CountTokens(context.Background(), contents))
	assert.Equal(t, 0, c.CountTokens(context.Background(), nil))

	// unreachable upstream
	server.Close()
	assert.Equal(t, 0, c.CountTokens(context.Background(), contents))
}
