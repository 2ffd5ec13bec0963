package specialist

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/merryway/baristabot/agent/contract"
	statex "github.com/merryway/baristabot/agent/state"
)

// detailsContextWindow is how many trailing log messages the details
// agent replays to the model alongside the retrieved context.
const detailsContextWindow = 3

const detailsTopK = 2

type detailsImpl struct {
	completer contractx.Completer
	retriever contractx.Retriever
	prompt    string
}

func newDetails(completer contractx.Completer, retriever contractx.Retriever, prompt string) *detailsImpl {
	return &detailsImpl{completer: completer, retriever: retriever, prompt: prompt}
}

func (d *detailsImpl) Respond(ctx context.Context, history []contractx.Message) (contractx.Message, error) {
	userMessage, ok := statex.LatestUserContent(history)
	if !ok {
		return contractx.Message{}, errors.Join(contractx.ErrValidation, errors.New("no user message in log"))
	}

	sourceKnowledge := d.lookup(ctx, userMessage)

	ragPrompt := userMessage
	if sourceKnowledge != "" {
		ragPrompt = fmt.Sprintf(
			"Using the contexts below, answer the query as a coffee shop waiter. Answers should be concise but complete.\n\nContexts:\n%s\n\nQuery:\n%s",
			sourceKnowledge, userMessage,
		)
	}

	input := []contractx.Message{contractx.SystemMessage(d.prompt)}
	window := statex.RecentWindow(history, detailsContextWindow)
	for i, msg := range window {
		content := msg.Content
		if i == len(window)-1 && msg.Role == contractx.RoleUser {
			content = ragPrompt
		}
		input = append(input, contractx.Message{Role: msg.Role, Content: content})
	}

	reply, err := d.completer.Complete(ctx, input)
	if err != nil {
		return contractx.Message{}, err
	}

	return contractx.AssistantMessage(strings.TrimSpace(reply), &contractx.Checkpoint{
		Agent: contractx.AgentTypeDetails,
	}), nil
}

// lookup degrades to an empty context when retrieval is unavailable or
// failing; the details agent still answers from its prompt.
func (d *detailsImpl) lookup(ctx context.Context, query string) string {
	if d.retriever == nil {
		return ""
	}
	snippets, err := d.retriever.Search(ctx, query, detailsTopK)
	if err != nil {
		log.Warn().Err(err).Msg("knowledge retrieval failed, answering without context")
		return ""
	}

	texts := make([]string, 0, len(snippets))
	for _, snippet := range snippets {
		if t := strings.TrimSpace(snippet.Text); t != "" {
			texts = append(texts, t)
		}
	}
	return strings.Join(texts, "\n")
}
