package specialist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/merryway/baristabot/agent/contract"
	orderx "github.com/merryway/baristabot/agent/order"
	promptx "github.com/merryway/baristabot/agent/prompt"
	statex "github.com/merryway/baristabot/agent/state"
	structuredx "github.com/merryway/baristabot/agent/structured"
)

// OrderSink receives finalized orders, e.g. a queue publisher. Nil is
// fine; publishing is best effort and never blocks the reply.
type OrderSink interface {
	Publish(ctx context.Context, event OrderEvent) error
}

// OrderEvent is the payload emitted when an order finalizes.
type OrderEvent struct {
	OrderID string        `json:"order_id"`
	Lines   []orderx.Line `json:"lines"`
	Total   float64       `json:"total"`
}

// statusInquiryKeywords answer "what did I order" turns straight from
// the snapshot, without a model call.
var statusInquiryKeywords = []string{"ordered?", "did you place", "what's my order", "my bill"}

// orderStartKeywords reopen ordering after a finalized order.
var orderStartKeywords = []string{"order", "want", "give me", "buy", "need"}

const orderFallbackMessage = "Sorry, I couldn't process your order. Could you please repeat?"

type orderTakingImpl struct {
	completer   contractx.Completer
	machine     *orderx.Machine
	menuLines   string
	prompt      string
	recommender *recommendationImpl
	sink        OrderSink
}

type orderLLMOutput struct {
	Actions  []orderx.Action `json:"actions"`
	Response string          `json:"response"`
}

func newOrderTaking(
	completer contractx.Completer,
	machine *orderx.Machine,
	menuLines string,
	prompt string,
	recommender *recommendationImpl,
	sink OrderSink,
) *orderTakingImpl {
	return &orderTakingImpl{
		completer:   completer,
		machine:     machine,
		menuLines:   menuLines,
		prompt:      prompt,
		recommender: recommender,
		sink:        sink,
	}
}

func (o *orderTakingImpl) Respond(ctx context.Context, history []contractx.Message) (contractx.Message, error) {
	userMessage, ok := statex.LatestUserContent(history)
	if !ok {
		return contractx.Message{}, errors.Join(contractx.ErrValidation, errors.New("no user message in log"))
	}
	userLower := strings.ToLower(userMessage)

	// The order machine always reconstructs from the full log; a
	// bounded window could silently lose order history.
	snap := o.reconstruct(history)

	if containsAny(userLower, statusInquiryKeywords) {
		return o.statusReply(snap), nil
	}

	if snap.Finalized && containsAny(userLower, orderStartKeywords) {
		snap.Reset()
	}

	out, err := o.classifyActions(ctx, history, snap)
	if err != nil {
		if !errors.Is(err, contractx.ErrRepairExhausted) {
			return contractx.Message{}, err
		}
		log.Warn().Err(err).Msg("order classification fell back after exhausted repair")
		return checkpointMessage(orderFallbackMessage, snap, err.Error()), nil
	}

	outcome := o.machine.Apply(snap, out.Actions)

	reply := strings.TrimSpace(out.Response)
	machineText := strings.Join(outcome.Replies, "\n\n")
	switch {
	case outcome.ReplaceResponse && machineText != "":
		reply = machineText
	case machineText != "":
		reply = joinNonEmpty(reply, machineText)
	}

	if outcome.Added && !outcome.Snapshot.RecommendationOffered && !outcome.Snapshot.Finalized {
		if rec := o.suggest(ctx, history, outcome.Snapshot); rec != "" {
			reply = joinNonEmpty(reply, rec)
			outcome.Snapshot.RecommendationOffered = true
		}
	}

	if outcome.FinalizedNow {
		o.publish(ctx, outcome)
	}

	if reply == "" {
		reply = "Anything else I can add to your order?"
	}
	return checkpointMessage(reply, outcome.Snapshot, ""), nil
}

// reconstruct recovers the last order snapshot this agent checkpointed,
// or a fresh one.
func (o *orderTakingImpl) reconstruct(history []contractx.Message) orderx.Snapshot {
	checkpoint, ok := statex.LastCheckpoint(history, contractx.AgentTypeOrderTaking)
	if !ok || len(checkpoint.Data) == 0 {
		return orderx.NewSnapshot()
	}
	var snap orderx.Snapshot
	if err := json.Unmarshal(checkpoint.Data, &snap); err != nil {
		log.Warn().Err(err).Msg("order checkpoint is unreadable, starting fresh")
		return orderx.NewSnapshot()
	}
	snap.Normalize()
	return snap
}

func (o *orderTakingImpl) classifyActions(
	ctx context.Context,
	history []contractx.Message,
	snap orderx.Snapshot,
) (orderLLMOutput, error) {
	currentOrder, err := json.Marshal(snap.Lines)
	if err != nil {
		return orderLLMOutput{}, fmt.Errorf("%w: marshal order lines: %v", contractx.ErrValidation, err)
	}

	system := promptx.Fill(o.prompt, map[string]string{
		"menu":  o.menuLines,
		"order": string(currentOrder),
	})

	input := []contractx.Message{contractx.SystemMessage(system)}
	for _, msg := range statex.RecentWindow(history, detailsContextWindow) {
		input = append(input, contractx.Message{Role: msg.Role, Content: msg.Content})
	}

	return structuredx.Request(ctx, o.completer, input, structuredx.Schema{
		Required: []string{"actions", "response"},
		Check:    checkActionKinds,
	}, orderLLMOutput{})
}

// checkActionKinds enforces the action-tag enum nested inside the
// actions array, so bad tags drive a repair attempt instead of being
// half-applied.
func checkActionKinds(fields map[string]json.RawMessage) error {
	raw, ok := fields["actions"]
	if !ok {
		return errors.New("missing actions array")
	}
	var tags []struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(raw, &tags); err != nil {
		return fmt.Errorf("actions must be an array of action objects: %v", err)
	}
	for _, tag := range tags {
		if !orderx.KnownKind(orderx.Kind(strings.ToLower(strings.TrimSpace(tag.Action)))) {
			return fmt.Errorf("unknown action tag %q", tag.Action)
		}
	}
	return nil
}

func (o *orderTakingImpl) statusReply(snap orderx.Snapshot) contractx.Message {
	switch {
	case snap.Finalized:
		return checkpointMessage("Your order has already been placed and finalized. Thank you!", snap, "")
	case !snap.Empty():
		text := fmt.Sprintf("So far, you have ordered:\n%s\n\nWould you like to add more or finalize?", snap.Summary(true))
		return checkpointMessage(text, snap, "")
	default:
		return checkpointMessage("You haven't ordered anything yet. Would you like to start?", snap, "")
	}
}

func (o *orderTakingImpl) suggest(ctx context.Context, history []contractx.Message, snap orderx.Snapshot) string {
	if o.recommender == nil {
		return ""
	}
	items := make([]string, len(snap.Lines))
	for i, line := range snap.Lines {
		items[i] = line.Item
	}
	rec, err := o.recommender.RecommendFromOrder(ctx, history, items)
	if err != nil {
		log.Warn().Err(err).Msg("order-seeded recommendation failed")
		return ""
	}
	return rec
}

func (o *orderTakingImpl) publish(ctx context.Context, outcome orderx.Outcome) {
	if o.sink == nil {
		return
	}
	event := OrderEvent{
		OrderID: outcome.Snapshot.OrderID,
		Lines:   outcome.Snapshot.Lines,
		Total:   outcome.Total,
	}
	if err := o.sink.Publish(ctx, event); err != nil {
		log.Warn().Err(err).Str("order_id", event.OrderID).Msg("publish finalized order failed")
	}
}

func checkpointMessage(content string, snap orderx.Snapshot, reason string) contractx.Message {
	data, err := json.Marshal(snap)
	if err != nil {
		log.Error().Err(err).Msg("marshal order snapshot")
		data = nil
	}
	return contractx.AssistantMessage(content, &contractx.Checkpoint{
		Agent:  contractx.AgentTypeOrderTaking,
		Reason: reason,
		Data:   data,
	})
}

func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}

func joinNonEmpty(parts ...string) string {
	kept := parts[:0]
	for _, part := range parts {
		if strings.TrimSpace(part) != "" {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, "\n\n")
}
