// Package gemini is a small client for the Gemini generateContent REST API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// DefaultBaseURL is the public Gemini endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com"

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("gemini returned no candidates")

// ErrNoAPIKey is returned by clients built without an API key.
var ErrNoAPIKey = errors.New("gemini api key is not configured")

type GenerateRequest struct {
	Contents []Content `json:"contents"`
}

type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

type Part struct {
	Text string `json:"text"`
}

type GenerateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Client calls a single Gemini model.
type Client struct {
	http   *resty.Client
	model  string
	hasKey bool
	logger *zap.Logger
}

// NewClient builds a client for model. Requests are attempted once and
// bounded by timeout.
func NewClient(baseURL, apiKey, model string, timeout time.Duration, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("x-goog-api-key", apiKey)

	return &Client{
		http:   client,
		model:  model,
		hasKey: apiKey != "",
		logger: logger,
	}
}

// Model returns the model name this client targets.
func (c *Client) Model() string {
	return c.model
}

// Generate sends prompt as a single user turn and returns the concatenated
// text of the first candidate.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if !c.hasKey {
		return "", ErrNoAPIKey
	}
	request := GenerateRequest{
		Contents: []Content{{Role: "user", Parts: []Part{{Text: prompt}}}},
	}

	var (
		response GenerateResponse
		apiErr   errorResponse
	)
	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("model", c.model).
		SetBody(request).
		SetResult(&response).
		SetError(&apiErr).
		Post("/v1beta/models/{model}:generateContent")
	if err != nil {
		c.logger.Error("Gemini request failed", zap.String("model", c.model), zap.Error(err))
		return "", fmt.Errorf("call gemini: %w", err)
	}

	if resp.IsError() {
		c.logger.Error("Gemini returned error",
			zap.String("model", c.model),
			zap.Int("status_code", resp.StatusCode()),
			zap.String("message", apiErr.Error.Message),
		)
		if apiErr.Error.Message != "" {
			return "", fmt.Errorf("gemini error (status %d): %s", resp.StatusCode(), apiErr.Error.Message)
		}
		return "", fmt.Errorf("gemini error: status %d", resp.StatusCode())
	}

	if len(response.Candidates) == 0 {
		return "", ErrEmptyResponse
	}

	var sb strings.Builder
	for _, part := range response.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	if sb.Len() == 0 {
		return "", ErrEmptyResponse
	}

	c.logger.Debug("Gemini response received",
		zap.String("model", c.model),
		zap.Duration("latency", time.Since(start)),
		zap.Int("chars", sb.Len()),
	)
	return sb.String(), nil
}
