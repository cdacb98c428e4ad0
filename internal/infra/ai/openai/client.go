package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/bryanwahyu/synthpanel/internal/domain/ai"
)

const defaultMaxTokens = 2048

type Client struct {
	api       *openai.Client
	model     string
	maxTokens int
	keySet    bool
}

func NewClient(apiKey, model string, maxTokens int) *Client {
	if model == "" {
		model = "gpt-4o-mini"
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Client{
		api:       openai.NewClient(apiKey),
		model:     model,
		maxTokens: maxTokens,
		keySet:    strings.TrimSpace(apiKey) != "",
	}
}

func (c *Client) Model() string    { return c.model }
func (c *Client) Configured() bool { return c.keySet }

// Complete sends one chat completion. Images become data URLs on the user
// message so vision models see them inline.
func (c *Client) Complete(ctx context.Context, r ai.Request) (ai.Completion, error) {
	if !c.keySet {
		return ai.Completion{}, ai.ErrNotConfigured
	}
	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages(r),
	}
	if r.JSON {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	limit := c.maxTokens
	if r.MaxTokens > 0 {
		limit = r.MaxTokens
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	if isReasoningModel(c.model) {
		req.MaxCompletionTokens = limit
	} else {
		req.MaxTokens = limit
	}

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return ai.Completion{}, mapError(err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return ai.Completion{}, ai.ErrEmptyCompletion
	}
	model := resp.Model
	if model == "" {
		model = c.model
	}
	return ai.Completion{
		Text:      resp.Choices[0].Message.Content,
		Model:     model,
		LatencyMS: time.Since(start).Milliseconds(),
	}, nil
}

func messages(r ai.Request) []openai.ChatCompletionMessage {
	var out []openai.ChatCompletionMessage
	if r.System != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: r.System})
	}
	if len(r.Images) == 0 {
		return append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: r.Prompt})
	}
	parts := []openai.ChatMessagePart{{Type: openai.ChatMessagePartTypeText, Text: r.Prompt}}
	for _, img := range r.Images {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    dataURL(img),
				Detail: openai.ImageURLDetailAuto,
			},
		})
	}
	return append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, MultiContent: parts})
}

func dataURL(img ai.Image) string {
	mime := img.MimeType
	if mime == "" {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

func isReasoningModel(model string) bool {
	return strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4") || strings.HasPrefix(model, "gpt-5")
}

func mapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %s", ai.ErrQuotaExceeded, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %v", ai.ErrQuotaExceeded, reqErr.Err)
	}
	return fmt.Errorf("failed to create chat completion: %w", err)
}

var _ ai.Client = (*Client)(nil)
