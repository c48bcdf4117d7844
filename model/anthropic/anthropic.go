// Package anthropic provides the model.ChatModel adapter for Anthropic's
// Claude API.
package anthropic

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/lessonforge/lessonforge/model"
)

// ChatModel implements model.ChatModel over the Claude messages API.
type ChatModel struct {
	client    anthropic.Client
	modelName string
	maxTokens int64
}

// NewChatModel creates a Claude-backed ChatModel. An empty modelName selects
// claude-sonnet-4-20250514.
func NewChatModel(apiKey, modelName string) (*ChatModel, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic API key is required")
	}
	if modelName == "" {
		modelName = "claude-sonnet-4-20250514"
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &ChatModel{client: client, modelName: modelName, maxTokens: 8192}, nil
}

// Chat sends the conversation and returns the concatenated text blocks of the
// reply. System messages are folded into the first user turn since the
// messages API carries them separately from the turn list.
func (m *ChatModel) Chat(ctx context.Context, messages []model.Message) (model.ChatOut, error) {
	if ctx.Err() != nil {
		return model.ChatOut{}, ctx.Err()
	}

	var params []anthropic.MessageParam
	var system string
	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			if system != "" {
				system += "\n\n"
			}
			system += msg.Content
		case model.RoleAssistant:
			params = append(params, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			params = append(params, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	if system != "" {
		params = append([]anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(system)),
		}, params...)
	}
	if len(params) == 0 {
		return model.ChatOut{}, errors.New("no user content to send")
	}

	message, err := m.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(m.modelName),
		MaxTokens: m.maxTokens,
		Messages:  params,
	})
	if err != nil {
		return model.ChatOut{}, fmt.Errorf("anthropic API error: %w", err)
	}

	var out model.ChatOut
	for _, block := range message.Content {
		if block.Type == "text" {
			out.Text += block.Text
		}
	}
	out.TokensUsed = int(message.Usage.InputTokens + message.Usage.OutputTokens)
	if out.Text == "" {
		return model.ChatOut{}, errors.New("empty response from Claude")
	}
	return out, nil
}
