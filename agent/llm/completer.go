package llm

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/merryway/baristabot/agent/contract"
	openrouterx "github.com/merryway/baristabot/pkg/openrouter"
)

// modelCompleter adapts an eino chat model to the contract.Completer
// the agents consume.
type modelCompleter struct {
	model einomodel.BaseChatModel
}

var _ contractx.Completer = (*modelCompleter)(nil)

// NewCompleter builds the chat model for cfg and wraps it as a
// Completer.
func NewCompleter(ctx context.Context, cfg openrouterx.Config) (contractx.Completer, error) {
	chatModel, err := cfg.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: create chat model: %v", contractx.ErrModelInvoke, err)
	}
	return &modelCompleter{model: chatModel}, nil
}

func (m *modelCompleter) Complete(ctx context.Context, messages []contractx.Message) (string, error) {
	schemaMessages := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case contractx.RoleSystem:
			schemaMessages = append(schemaMessages, schema.SystemMessage(msg.Content))
		case contractx.RoleAssistant:
			schemaMessages = append(schemaMessages, schema.AssistantMessage(msg.Content, nil))
		default:
			schemaMessages = append(schemaMessages, schema.UserMessage(msg.Content))
		}
	}

	out, err := m.model.Generate(ctx, schemaMessages)
	if err != nil {
		return "", fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
	}
	if out == nil {
		return "", fmt.Errorf("%w: empty completion", contractx.ErrModelInvoke)
	}
	return strings.TrimSpace(out.Content), nil
}
