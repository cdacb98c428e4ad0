package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/bryanwahyu/synthpanel/internal/domain/ai"
)

const defaultMaxTokens = 2048

// Client talks to the Gemini API. Without an API key it stays usable but
// every call returns ai.ErrNotConfigured.
type Client struct {
	api       *genai.Client
	model     string
	maxTokens int
}

func NewClient(ctx context.Context, apiKey, model string, maxTokens int) (*Client, error) {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	c := &Client{model: model, maxTokens: maxTokens}
	if strings.TrimSpace(apiKey) == "" {
		return c, nil
	}
	api, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	c.api = api
	return c, nil
}

func (c *Client) Model() string    { return c.model }
func (c *Client) Configured() bool { return c.api != nil }

func (c *Client) Complete(ctx context.Context, r ai.Request) (ai.Completion, error) {
	if c.api == nil {
		return ai.Completion{}, ai.ErrNotConfigured
	}
	start := time.Now()
	result, err := c.api.Models.GenerateContent(ctx, c.model, contents(r), c.config(r))
	if err != nil {
		return ai.Completion{}, mapError(err)
	}
	text := result.Text()
	if strings.TrimSpace(text) == "" {
		return ai.Completion{}, ai.ErrEmptyCompletion
	}
	model := c.model
	if result.ModelVersion != "" {
		model = result.ModelVersion
	}
	return ai.Completion{Text: text, Model: model, LatencyMS: time.Since(start).Milliseconds()}, nil
}

func (c *Client) config(r ai.Request) *genai.GenerateContentConfig {
	limit := c.maxTokens
	if r.MaxTokens > 0 {
		limit = r.MaxTokens
	}
	cfg := &genai.GenerateContentConfig{MaxOutputTokens: int32(limit)}
	if r.System != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: r.System}}}
	}
	if r.JSON {
		cfg.ResponseMIMEType = "application/json"
	}
	return cfg
}

// contents puts the prompt first and every image as an inline part.
func contents(r ai.Request) []*genai.Content {
	parts := []*genai.Part{genai.NewPartFromText(r.Prompt)}
	for _, img := range r.Images {
		mime := img.MimeType
		if mime == "" {
			mime = "image/png"
		}
		parts = append(parts, genai.NewPartFromBytes(img.Data, mime))
	}
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}

func mapError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %s", ai.ErrQuotaExceeded, apiErr.Message)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr.Code == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %s", ai.ErrQuotaExceeded, apiErrPtr.Message)
	}
	return fmt.Errorf("gemini generate content: %w", err)
}

var _ ai.Client = (*Client)(nil)
