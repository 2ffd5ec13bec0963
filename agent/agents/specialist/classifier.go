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

type classifierImpl struct {
	completer contractx.Completer
	prompt    string
}

type classifierLLMOutput struct {
	Reason   string `json:"reason"`
	Decision string `json:"decision"`
	Message  string `json:"message"`
}

func newClassifier(completer contractx.Completer, prompt string) *classifierImpl {
	return &classifierImpl{completer: completer, prompt: prompt}
}

const unsureMessage = "Sorry, I am not sure about it. Please try again."

func (c *classifierImpl) Respond(ctx context.Context, history []contractx.Message) (contractx.Message, error) {
	userMessage, ok := statex.LatestUserContent(history)
	if !ok {
		return contractx.Message{}, errors.Join(contractx.ErrValidation, errors.New("no user message in log"))
	}

	// The router sees only the latest user message; earlier assistant
	// turns would bias it toward the agent that just spoke.
	input := []contractx.Message{
		contractx.SystemMessage(c.prompt),
		contractx.UserMessage(userMessage),
	}

	fallback := classifierLLMOutput{
		Decision: contractx.DecisionUnsure,
		Message:  unsureMessage,
	}

	out, err := structuredx.Request(ctx, c.completer, input, structuredx.Schema{
		Required: []string{"decision"},
		Enums: map[string][]string{
			"decision": {
				string(contractx.AgentTypeDetails),
				string(contractx.AgentTypeOrderTaking),
				string(contractx.AgentTypeRecommendation),
			},
		},
	}, fallback)
	if err != nil {
		if !errors.Is(err, contractx.ErrRepairExhausted) {
			return contractx.Message{}, err
		}
		log.Warn().Err(err).Msg("classifier fell back after exhausted repair")
		out = fallback
		out.Reason = err.Error()
	}

	decision := strings.ToLower(strings.TrimSpace(out.Decision))
	content := ""
	if decision == contractx.DecisionUnsure {
		content = strings.TrimSpace(out.Message)
		if content == "" {
			content = unsureMessage
		}
	}

	return contractx.AssistantMessage(content, &contractx.Checkpoint{
		Agent:    contractx.AgentTypeClassification,
		Decision: decision,
		Reason:   strings.TrimSpace(out.Reason),
	}), nil
}
