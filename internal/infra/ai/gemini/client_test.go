package gemini

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/bryanwahyu/synthpanel/internal/domain/ai"
)

func TestContentsInlinesImages(t *testing.T) {
	cs := contents(ai.Request{Prompt: "react", Images: []ai.Image{{Data: []byte{1, 2}}}})
	require.Len(t, cs, 1)
	assert.Equal(t, genai.RoleUser, cs[0].Role)
	require.Len(t, cs[0].Parts, 2)
	assert.Equal(t, "react", cs[0].Parts[0].Text)
	require.NotNil(t, cs[0].Parts[1].InlineData)
	assert.Equal(t, "image/png", cs[0].Parts[1].InlineData.MIMEType)
}

func TestConfig(t *testing.T) {
	c := &Client{model: "m", maxTokens: 100}
	cfg := c.config(ai.Request{System: "sys", JSON: true})
	assert.Equal(t, int32(100), cfg.MaxOutputTokens)
	assert.Equal(t, "application/json", cfg.ResponseMIMEType)
	assert.Equal(t, "sys", cfg.SystemInstruction.Parts[0].Text)

	cfg = c.config(ai.Request{MaxTokens: 7})
	assert.Equal(t, int32(7), cfg.MaxOutputTokens)
	assert.Nil(t, cfg.SystemInstruction)
}

func TestUnconfigured(t *testing.T) {
	c, err := NewClient(context.Background(), "", "", 0)
	require.NoError(t, err)
	assert.False(t, c.Configured())
	_, err = c.Complete(context.Background(), ai.Request{Prompt: "x"})
	assert.ErrorIs(t, err, ai.ErrNotConfigured)
}

func TestMapErrorQuota(t *testing.T) {
	err := mapError(genai.APIError{Code: http.StatusTooManyRequests, Message: "RESOURCE_EXHAUSTED"})
	assert.ErrorIs(t, err, ai.ErrQuotaExceeded)
	assert.NotErrorIs(t, mapError(errors.New("x")), ai.ErrQuotaExceeded)
}
