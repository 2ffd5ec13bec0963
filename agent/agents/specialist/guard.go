package specialist

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/merryway/baristabot/agent/contract"
	statex "github.com/merryway/baristabot/agent/state"
	structuredx "github.com/merryway/baristabot/agent/structured"
)

// guardContextWindow bounds how much conversation the content gate
// reads; enough to resolve references like "it" in ordering talk.
const guardContextWindow = 6

type guardImpl struct {
	completer contractx.Completer
	prompt    string
}

type guardLLMOutput struct {
	ChainOfThought string `json:"chain_of_thought"`
	Decision       string `json:"decision"`
	Message        string `json:"message"`
}

func newGuard(completer contractx.Completer, prompt string) *guardImpl {
	return &guardImpl{completer: completer, prompt: prompt}
}

func (g *guardImpl) Respond(ctx context.Context, history []contractx.Message) (contractx.Message, error) {
	if _, ok := statex.LatestUserContent(history); !ok {
		return contractx.Message{}, errors.Join(contractx.ErrValidation, errors.New("no user message in log"))
	}

	input := []contractx.Message{contractx.SystemMessage(g.prompt)}
	for _, msg := range statex.RecentWindow(history, guardContextWindow) {
		input = append(input, contractx.Message{Role: msg.Role, Content: msg.Content})
	}

	fallback := guardLLMOutput{
		Decision: contractx.DecisionNotAllowed,
		Message:  "Sorry, your message could not be processed. Please try again.",
	}

	out, err := structuredx.Request(ctx, g.completer, input, structuredx.Schema{
		Required: []string{"chain_of_thought", "decision"},
		Enums: map[string][]string{
			"decision": {contractx.DecisionAllowed, contractx.DecisionNotAllowed},
		},
	}, fallback)
	if err != nil {
		if !errors.Is(err, contractx.ErrRepairExhausted) {
			return contractx.Message{}, err
		}
		log.Warn().Err(err).Msg("guard fell back after exhausted repair")
		out = fallback
		out.ChainOfThought = err.Error()
	}

	decision := strings.ToLower(strings.TrimSpace(out.Decision))
	content := ""
	if decision == contractx.DecisionNotAllowed {
		content = strings.TrimSpace(out.Message)
		if content == "" {
			content = fallback.Message
		}
	}

	return contractx.AssistantMessage(content, &contractx.Checkpoint{
		Agent:    contractx.AgentTypeGuard,
		Decision: decision,
		Reason:   strings.TrimSpace(out.ChainOfThought),
	}), nil
}
