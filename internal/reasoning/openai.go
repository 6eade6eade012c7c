package reasoning

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"verdict/internal/config"
)

const defaultModel = "gpt-4o"

// OpenAIClient implements Completer against the OpenAI chat completion API or
// any API-compatible endpoint via base_url.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

func NewOpenAIClient(cfg config.ReasoningConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("reasoning API key is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
	}, nil
}

func (c *OpenAIClient) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: system,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: user,
			},
		},
		Temperature: 0.1,
	})
	if err != nil {
		return "", fmt.Errorf("calling reasoning model: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no response from reasoning model")
	}

	return resp.Choices[0].Message.Content, nil
}
