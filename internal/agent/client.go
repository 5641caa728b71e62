// Package agent is the HTTP client for the conversational agent
// service that produces the bot's replies.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/phongdao-saigontechnology/miku-bot-gateway/internal/conversation"
)

// Config describes how to reach the agent service.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client implements conversation.Agent against the agent service's
// HTTP API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient validates the configuration and returns a ready-to-use client.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("agent: base URL required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type wireMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type respondResponse struct {
	Message string `json:"message"`
}

// Respond sends the session history to the agent service and returns
// its reply.
func (c *Client) Respond(ctx context.Context, sessionID string, history []conversation.Message) (string, error) {
	if len(history) == 0 {
		return "", errors.New("agent: history required")
	}

	payload := map[string]any{
		"session_id": sessionID,
		"messages":   toWireMessages(history),
	}

	data, err := c.doRequest(ctx, http.MethodPost, "/respond", payload)
	if err != nil {
		return "", err
	}

	var out respondResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("agent: decode response failed: %w", err)
	}
	return out.Message, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("agent: failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("agent: request build failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(c.apiKey) != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("agent: request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("agent: read response failed: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("agent: %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}
	return data, nil
}

func toWireMessages(history []conversation.Message) []wireMessage {
	out := make([]wireMessage, 0, len(history))
	for _, msg := range history {
		out = append(out, wireMessage{Role: msg.Role, Text: msg.Text})
	}
	return out
}
