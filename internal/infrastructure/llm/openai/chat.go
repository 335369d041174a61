package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/pageindex-recall/internal/core/ports"
)

var errEmptyChoices = errors.New("chat completion returned no choices")

type Chat struct {
	client *Client
}

func NewChat(client *Client) *Chat {
	return &Chat{client: client}
}

func chatPayload(req ports.ChatRequest, stream bool) map[string]any {
	return map[string]any{
		"model":       req.Model,
		"messages":    req.Messages,
		"temperature": req.Temperature,
		"stream":      stream,
	}
}

func (c *Chat) Complete(ctx context.Context, req ports.ChatRequest) (string, error) {
	payload := chatPayload(req, false)

	var content string
	err := c.client.execute(ctx, "chat", func(ctx context.Context) error {
		body, err := c.client.postJSON(ctx, chatCompletionsPath, payload, "chat")
		if err != nil {
			return err
		}
		var response struct {
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			} `json:"choices"`
		}
		if err := json.Unmarshal(body, &response); err != nil {
			return fmt.Errorf("decode chat response: %w", err)
		}
		if len(response.Choices) == 0 {
			return errEmptyChoices
		}
		content = strings.TrimSpace(response.Choices[0].Message.Content)
		return nil
	})
	if err != nil {
		return "", err
	}
	return content, nil
}
