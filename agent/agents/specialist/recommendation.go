package specialist

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/merryway/baristabot/agent/contract"
	promptx "github.com/merryway/baristabot/agent/prompt"
	recommendx "github.com/merryway/baristabot/agent/recommend"
	statex "github.com/merryway/baristabot/agent/state"
	structuredx "github.com/merryway/baristabot/agent/structured"
)

// Recommendation modes the classifier can pick.
const (
	recTypeApriori           = "apriori"
	recTypePopular           = "popular"
	recTypePopularByCategory = "popular by category"
)

type recommendationImpl struct {
	completer        contractx.Completer
	engine           *recommendx.Engine
	phrasePrompt     string
	classifierPrompt string
}

type recClassification struct {
	ChainOfThought string   `json:"chain_of_thought"`
	Type           string   `json:"recommendation_type"`
	Parameters     []string `json:"parameters"`
}

func newRecommendation(
	completer contractx.Completer,
	engine *recommendx.Engine,
	phrasePrompt string,
	classifierPrompt string,
) *recommendationImpl {
	filled := promptx.Fill(classifierPrompt, map[string]string{
		"products":   strings.Join(engine.Products(), ", "),
		"categories": strings.Join(engine.Categories(), ", "),
	})
	return &recommendationImpl{
		completer:        completer,
		engine:           engine,
		phrasePrompt:     phrasePrompt,
		classifierPrompt: filled,
	}
}

func (r *recommendationImpl) Respond(ctx context.Context, history []contractx.Message) (contractx.Message, error) {
	userMessage, ok := statex.LatestUserContent(history)
	if !ok {
		return contractx.Message{}, errors.Join(contractx.ErrValidation, errors.New("no user message in log"))
	}

	classification := r.classify(ctx, history)

	var items []string
	switch classification.Type {
	case recTypeApriori:
		items = r.engine.Apriori(classification.Parameters, recommendx.DefaultTopK)
	case recTypePopularByCategory:
		items = r.engine.Popular(classification.Parameters, recommendx.DefaultTopK)
	default:
		items = r.engine.Popular(nil, recommendx.DefaultTopK)
	}

	if len(items) == 0 {
		return contractx.AssistantMessage(
			"I'm sorry, I can't help with that recommendation. Can I help you with something else?",
			&contractx.Checkpoint{Agent: contractx.AgentTypeRecommendation, Reason: "empty recommendation set"},
		), nil
	}

	reply, err := r.phrase(ctx, history, userMessage, items)
	if err != nil {
		return contractx.Message{}, err
	}

	return contractx.AssistantMessage(reply, &contractx.Checkpoint{
		Agent:    contractx.AgentTypeRecommendation,
		Decision: classification.Type,
	}), nil
}

// classify picks the recommendation mode; any failure falls back to
// popular with no parameters rather than failing the turn.
func (r *recommendationImpl) classify(ctx context.Context, history []contractx.Message) recClassification {
	input := []contractx.Message{contractx.SystemMessage(r.classifierPrompt)}
	for _, msg := range statex.RecentWindow(history, detailsContextWindow) {
		input = append(input, contractx.Message{Role: msg.Role, Content: msg.Content})
	}

	fallback := recClassification{Type: recTypePopular}
	out, err := structuredx.Request(ctx, r.completer, input, structuredx.Schema{
		Required: []string{"recommendation_type"},
		Enums: map[string][]string{
			"recommendation_type": {recTypeApriori, recTypePopular, recTypePopularByCategory},
		},
	}, fallback)
	if err != nil {
		log.Warn().Err(err).Msg("recommendation classification fell back to popular")
		return fallback
	}
	out.Type = strings.ToLower(strings.TrimSpace(out.Type))
	return out
}

// RecommendFromOrder ranks companions for the items already ordered
// and phrases them. Used by the order-taking agent for its
// once-per-order suggestion.
func (r *recommendationImpl) RecommendFromOrder(ctx context.Context, history []contractx.Message, orderedItems []string) (string, error) {
	items := r.engine.Apriori(orderedItems, recommendx.DefaultTopK)
	if len(items) == 0 {
		return "", nil
	}
	userMessage, _ := statex.LatestUserContent(history)
	return r.phrase(ctx, history, userMessage, items)
}

func (r *recommendationImpl) phrase(
	ctx context.Context,
	history []contractx.Message,
	userMessage string,
	items []string,
) (string, error) {
	request := fmt.Sprintf("%s\n\nPlease recommend these items exactly: %s", userMessage, strings.Join(items, ", "))

	input := []contractx.Message{contractx.SystemMessage(r.phrasePrompt)}
	window := statex.RecentWindow(history, detailsContextWindow)
	for i, msg := range window {
		content := msg.Content
		if i == len(window)-1 && msg.Role == contractx.RoleUser {
			content = request
		}
		input = append(input, contractx.Message{Role: msg.Role, Content: content})
	}

	reply, err := r.completer.Complete(ctx, input)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}
