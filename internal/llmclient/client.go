// Package llmclient is the external chat-completion/embedding provider
// client every leaf node dispatches through, grounded on
// Toolkit/Providers/Chutes/client.go and Toolkit/Commons/http/client.go's
// retrying HTTP client shape.
package llmclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dev.helix.agent/internal/apperr"
	"dev.helix.agent/internal/config"
)

// ChatMessage is one OpenAI-shaped chat turn.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest mirrors the teacher's toolkit.ChatRequest fields this
// service actually uses.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

// ChatResponse is the non-streaming completion result.
type ChatResponse struct {
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
}

// Chunk is one token/delta of a streamed completion.
type Chunk struct {
	Content string
	Done    bool
}

// Client is the chat-completion/embedding client used by every node that
// talks to an external LLM provider.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	maxRetries int
}

// New builds a Client from service configuration, OpenAI-API-compatible
// by default (also fits Chutes/OpenRouter/any OpenAI-shaped provider).
func New(cfg config.LLMConfig) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		maxRetries: 3,
	}
}

// Model returns the configured default model, used when a node doesn't
// override the session's GPTConfig.Model.
func (c *Client) Model() string { return c.model }

// Complete performs a single non-streaming chat completion.
func (c *Client) Complete(ctx context.Context, req ChatRequest) (string, error) {
	if req.Model == "" {
		req.Model = c.model
	}
	var resp ChatResponse
	if err := c.doJSON(ctx, "/chat/completions", req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", apperr.New(apperr.KindParseFailure, "provider returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Stream performs a streaming chat completion, delivering each content
// delta to onChunk as it arrives and a final Chunk{Done: true}.
func (c *Client) Stream(ctx context.Context, req ChatRequest, onChunk func(Chunk) error) error {
	if req.Model == "" {
		req.Model = c.model
	}
	req.Stream = true

	body, err := json.Marshal(req)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "marshal chat request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "build stream request", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return apperr.Wrap(apperr.KindProviderUnavailable, "stream request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return apperr.New(apperr.KindProviderUnavailable, fmt.Sprintf("provider status %d: %s", resp.StatusCode, string(raw)))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			return onChunk(Chunk{Done: true})
		}
		var frame struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
			} `json:"choices"`
		}
		if err := json.Unmarshal([]byte(payload), &frame); err != nil {
			continue
		}
		if len(frame.Choices) == 0 {
			continue
		}
		if err := onChunk(Chunk{Content: frame.Choices[0].Delta.Content}); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return apperr.Wrap(apperr.KindProviderUnavailable, "stream read failed", err)
	}
	return onChunk(Chunk{Done: true})
}

// EmbedRequest is an embeddings API request.
type EmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns one embedding vector per input text, preserving order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var resp embedResponse
	req := EmbedRequest{Model: "text-embedding-3-small", Input: texts}
	if err := c.doJSON(ctx, "/embeddings", req, &resp); err != nil {
		return nil, err
	}
	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		out[i] = d.Embedding
	}
	return out, nil
}

func (c *Client) doJSON(ctx context.Context, endpoint string, payload, result interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "marshal request", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
		if err != nil {
			return apperr.Wrap(apperr.KindInternal, "build request", err)
		}
		c.setHeaders(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if attempt < c.maxRetries && ctx.Err() == nil {
				time.Sleep(time.Second * time.Duration(1<<attempt))
				continue
			}
			return apperr.Wrap(apperr.KindProviderUnavailable, "request failed", lastErr)
		}

		raw, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if result != nil {
				if err := json.Unmarshal(raw, result); err != nil {
					return apperr.Wrap(apperr.KindParseFailure, "decode response", err)
				}
			}
			return nil
		}

		lastErr = fmt.Errorf("provider status %d: %s", resp.StatusCode, string(raw))
		if resp.StatusCode >= 500 || resp.StatusCode == 429 {
			if attempt < c.maxRetries {
				time.Sleep(time.Second * time.Duration(1<<attempt))
				continue
			}
		}
		return apperr.Wrap(apperr.KindProviderUnavailable, "provider error", lastErr)
	}
	return apperr.Wrap(apperr.KindProviderUnavailable, "exhausted retries", lastErr)
}

func (c *Client) setHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")
}
