// Package claude implements the fallback classification provider on the
// Anthropic Messages API.
package claude

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/linnemanlabs/sentinel/internal/classify"
)

const maxTokens = 1024

// Client calls the Anthropic Messages API.
type Client struct {
	client anthropic.Client
	model  string
}

// New creates a new Claude client with the given API key and model name.
func New(apiKey, model string) *Client {
	return &Client{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// Name identifies this provider in logs and metrics.
func (c *Client) Name() string { return "claude" }

// Classify sends the system and user prompts and returns the raw text content.
func (c *Client) Classify(ctx context.Context, system, user string) (string, error) {
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		var apierr *anthropic.Error
		if errors.As(err, &apierr) {
			return "", &classify.ProviderError{
				Provider: c.Name(),
				Status:   apierr.StatusCode,
				Body:     apierr.Error(),
			}
		}
		return "", fmt.Errorf("messages.new: %w", err)
	}

	return textContent(msg)
}

// textContent returns the first text block of a response.
func textContent(msg *anthropic.Message) (string, error) {
	for _, block := range msg.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("response has no text content")
}
