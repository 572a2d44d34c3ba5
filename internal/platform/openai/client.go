package openai

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

	"github.com/yungbote/tutorbridge-backend/internal/pkg/ctxutil"
	"github.com/yungbote/tutorbridge-backend/internal/pkg/envutil"
	"github.com/yungbote/tutorbridge-backend/internal/pkg/logger"
)

// Client is the text-completion surface the orchestration core consumes.
// Both operations are purely functional per call; no conversation state is
// kept on the provider side.
type Client interface {
	// GenerateText returns plain text for a system+user prompt pair.
	GenerateText(ctx context.Context, system string, user string, temperature float32) (string, error)

	// GenerateJSON returns a JSON object constrained by a strict json_schema
	// response format.
	GenerateJSON(ctx context.Context, system string, user string, schemaName string, schema map[string]any, temperature float32) (map[string]any, error)
}

type client struct {
	log        *logger.Logger
	httpClient *http.Client
	apiKey     string
	baseURL    string
	model      string
	maxRetries int
}

func NewClient(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	apiKey := envutil.Str("OPENAI_API_KEY", "")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}
	timeout := time.Duration(envutil.Int("OPENAI_TIMEOUT_SECONDS", 20)) * time.Second
	return &client{
		log:        log.With("service", "openai.Client"),
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(envutil.Str("OPENAI_BASE_URL", "https://api.openai.com"), "/"),
		model:      envutil.Str("OPENAI_MODEL", "gpt-4.1-mini"),
		maxRetries: envutil.Int("OPENAI_MAX_RETRIES", 2),
	}, nil
}

type responsesInput struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responsesRequest struct {
	Model       string           `json:"model"`
	Input       []responsesInput `json:"input"`
	Temperature *float32         `json:"temperature,omitempty"`
	Text        *struct {
		Format map[string]any `json:"format"`
	} `json:"text,omitempty"`
}

type responsesResponse struct {
	Output []struct {
		Type    string `json:"type"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (c *client) GenerateText(ctx context.Context, system string, user string, temperature float32) (string, error) {
	req := c.newRequest(system, user, temperature)
	var resp responsesResponse
	if err := c.doResponses(ctx, &req, &resp); err != nil {
		return "", err
	}
	text := extractOutputText(resp)
	if strings.TrimSpace(text) == "" {
		return "", errors.New("no output text in response")
	}
	return text, nil
}

func (c *client) GenerateJSON(ctx context.Context, system string, user string, schemaName string, schema map[string]any, temperature float32) (map[string]any, error) {
	if schemaName == "" {
		return nil, errors.New("schemaName required")
	}
	if schema == nil {
		return nil, errors.New("schema required")
	}
	req := c.newRequest(system, user, temperature)
	req.Text = &struct {
		Format map[string]any `json:"format"`
	}{
		Format: map[string]any{
			"type":   "json_schema",
			"name":   schemaName,
			"schema": schema,
			"strict": true,
		},
	}

	var resp responsesResponse
	if err := c.doResponses(ctx, &req, &resp); err != nil {
		return nil, err
	}
	text := extractOutputText(resp)
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("no output text in response")
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil, fmt.Errorf("failed to parse model JSON: %w", err)
	}
	return obj, nil
}

func (c *client) newRequest(system, user string, temperature float32) responsesRequest {
	req := responsesRequest{
		Model: c.model,
		Input: []responsesInput{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}
	if temperature > 0 {
		req.Temperature = &temperature
	}
	return req
}

func (c *client) doResponses(ctx context.Context, req *responsesRequest, out *responsesResponse) error {
	ctx = ctxutil.Default(ctx)
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/responses", bytes.NewReader(body))
		if err != nil {
			return err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

		httpResp, err := c.httpClient.Do(httpReq)
		if err != nil {
			lastErr = err
			continue
		}
		raw, err := io.ReadAll(httpResp.Body)
		_ = httpResp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		if httpResp.StatusCode == http.StatusTooManyRequests || httpResp.StatusCode >= 500 {
			lastErr = fmt.Errorf("responses api status %d: %s", httpResp.StatusCode, truncate(string(raw), 200))
			c.log.Warn("responses api retryable failure", "status", httpResp.StatusCode, "attempt", attempt+1)
			continue
		}
		if httpResp.StatusCode != http.StatusOK {
			return fmt.Errorf("responses api status %d: %s", httpResp.StatusCode, truncate(string(raw), 500))
		}

		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode responses api reply: %w", err)
		}
		if out.Error != nil {
			return fmt.Errorf("responses api error: %s", out.Error.Message)
		}
		return nil
	}
	return fmt.Errorf("responses api: retries exhausted: %w", lastErr)
}

func extractOutputText(resp responsesResponse) string {
	var b strings.Builder
	for _, item := range resp.Output {
		if item.Type != "message" {
			continue
		}
		for _, c := range item.Content {
			if c.Type == "output_text" {
				b.WriteString(c.Text)
			}
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
