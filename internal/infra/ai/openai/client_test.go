package openai

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/synthpanel/internal/domain/ai"
)

func TestMessagesWithImages(t *testing.T) {
	msgs := messages(ai.Request{
		System: "sys",
		Prompt: "look",
		Images: []ai.Image{{MimeType: "image/jpeg", Data: []byte("abc")}},
	})
	require.Len(t, msgs, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, msgs[0].Role)
	require.Len(t, msgs[1].MultiContent, 2)
	assert.Equal(t, "look", msgs[1].MultiContent[0].Text)
	assert.Equal(t, "data:image/jpeg;base64,YWJj", msgs[1].MultiContent[1].ImageURL.URL)
}

func TestMessagesTextOnly(t *testing.T) {
	msgs := messages(ai.Request{Prompt: "hi"})
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi", msgs[0].Content)
	assert.Empty(t, msgs[0].MultiContent)
}

func TestMapErrorQuota(t *testing.T) {
	err := mapError(&openai.APIError{HTTPStatusCode: http.StatusTooManyRequests, Message: "slow down"})
	assert.ErrorIs(t, err, ai.ErrQuotaExceeded)

	err = mapError(errors.New("boom"))
	assert.NotErrorIs(t, err, ai.ErrQuotaExceeded)
}

func TestUnconfiguredClient(t *testing.T) {
	c := NewClient("", "", 0)
	assert.False(t, c.Configured())
	assert.Equal(t, "gpt-4o-mini", c.Model())
	_, err := c.Complete(context.Background(), ai.Request{Prompt: "x"})
	assert.ErrorIs(t, err, ai.ErrNotConfigured)
}

func TestReasoningModels(t *testing.T) {
	assert.True(t, isReasoningModel("o3-mini"))
	assert.True(t, isReasoningModel("gpt-5"))
	assert.False(t, isReasoningModel("gpt-4o"))
}
