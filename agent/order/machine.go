package order

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	menux "github.com/merryway/baristabot/agent/menu"
)

// Machine applies classified actions against a snapshot, validating
// every item reference against the catalog.
type Machine struct {
	catalog *menux.Catalog
}

func NewMachine(catalog *menux.Catalog) *Machine {
	return &Machine{catalog: catalog}
}

// Outcome is the result of applying one turn's action batch.
type Outcome struct {
	Snapshot Snapshot

	// Replies are the machine's own user-facing lines, in action order.
	Replies []string
	// ReplaceResponse marks turns whose canonical text (bill summary,
	// order listing, clarification) must stand alone instead of being
	// appended to the model's conversational reply.
	ReplaceResponse bool

	// Added reports at least one successful add or update, the trigger
	// for the once-per-order recommendation.
	Added bool
	// FinalizedNow is set only on the turn finalize latched.
	FinalizedNow bool
	Total        float64
}

// Apply runs the batch against a copy of snap. Invalid actions are
// dropped and the rest of the batch proceeds; one bad item never
// discards an otherwise-valid turn. Lines left at quantity zero are
// pruned after the batch, and the step number advances once per turn.
func (m *Machine) Apply(snap Snapshot, actions []Action) Outcome {
	out := Outcome{Snapshot: snap}
	out.Snapshot.Lines = append([]Line(nil), snap.Lines...)
	out.Snapshot.Normalize()

	for _, action := range actions {
		if out.Snapshot.Finalized && action.Kind != KindShowList {
			// A finalized order only answers read-only inquiries; a new
			// order requires the explicit reset upstream.
			continue
		}
		if halt := m.applyOne(&out, action); halt {
			break
		}
	}

	prune(&out.Snapshot)
	out.Snapshot.StepNumber++
	out.Total = out.Snapshot.Total()
	return out
}

// applyOne mutates out in place; a true return stops the batch.
func (m *Machine) applyOne(out *Outcome, action Action) bool {
	snap := &out.Snapshot

	switch action.Kind {
	case KindAdd:
		item, ok := m.validItem(action)
		if !ok {
			return false
		}
		price := action.Price
		if price <= 0 {
			price = item.Price
		}
		// Overwrite, not increment: the latest stated intent wins.
		if i := snap.findLine(item.Name); i >= 0 {
			snap.Lines[i].Quantity = action.Quantity
			snap.Lines[i].Price = price
		} else {
			snap.Lines = append(snap.Lines, Line{Item: item.Name, Quantity: action.Quantity, Price: price})
		}
		out.Added = true

	case KindUpdate:
		if strings.TrimSpace(action.Item) == "" || action.Quantity < 0 {
			log.Debug().Str("item", action.Item).Int("quantity", action.Quantity).Msg("dropping invalid update action")
			return false
		}
		if i := snap.findLine(action.Item); i >= 0 {
			snap.Lines[i].Quantity = action.Quantity
		} else {
			// Known looseness: updating an unknown line creates it at
			// price zero.
			snap.Lines = append(snap.Lines, Line{Item: strings.TrimSpace(action.Item), Quantity: action.Quantity, Price: 0})
		}
		out.Added = true

	case KindRemove:
		if i := snap.findLine(action.Item); i >= 0 {
			snap.Lines = append(snap.Lines[:i], snap.Lines[i+1:]...)
			out.Replies = append(out.Replies, fmt.Sprintf("Removed %s from your order.", action.Item))
		}

	case KindIncreaseLast, KindDecreaseLast:
		if len(snap.Lines) == 0 {
			return false
		}
		step := action.Quantity
		if step <= 0 {
			step = 1
		}
		last := &snap.Lines[len(snap.Lines)-1]
		if action.Kind == KindIncreaseLast {
			last.Quantity += step
		} else {
			last.Quantity -= step
			if last.Quantity < 0 {
				last.Quantity = 0
			}
		}

	case KindUnavailable:
		name := strings.TrimSpace(action.Item)
		if name == "" {
			name = "that"
		}
		out.Replies = append(out.Replies, fmt.Sprintf("Oops! We don't have %s here. Want me to recommend something from our menu instead?", name))

	case KindNegotiationFailed:
		name := strings.TrimSpace(action.Item)
		if name == "" {
			name = "that item"
		}
		out.Replies = append(out.Replies, fmt.Sprintf("I'm sorry, we can't offer %s at that price. Menu prices are fixed.", name))
		out.ReplaceResponse = true
		return true // terminal for the turn

	case KindNothingElse:
		out.Replies = append(out.Replies, "Alright! Would you like me to finalize your order?")

	case KindShowList:
		if snap.Empty() {
			out.Replies = append(out.Replies, "Your order book is empty. Would you like to start an order?")
		} else {
			out.Replies = append(out.Replies, fmt.Sprintf("So far, you have ordered:\n%s", snap.Summary(true)))
		}
		out.ReplaceResponse = true

	case KindFinalize:
		if snap.Empty() {
			out.Replies = append(out.Replies, "You haven't ordered anything yet. Would you like to start?")
			out.ReplaceResponse = true
			return false
		}
		prune(snap)
		snap.Finalized = true
		out.FinalizedNow = true
		out.Replies = append(out.Replies, fmt.Sprintf(
			"Here's your order summary:\n%s\n\nThank you for ordering from Merry's Way!",
			snap.Summary(true),
		))
		out.ReplaceResponse = true

	case KindUnclear:
		out.Replies = append(out.Replies, "Sorry, I didn't quite catch that. Could you rephrase your order?")

	default:
		log.Debug().Str("kind", string(action.Kind)).Msg("dropping unknown action")
	}
	return false
}

// validItem validates an add action against the catalog; failures are
// dropped silently per the partial-failure contract.
func (m *Machine) validItem(action Action) (menux.Item, bool) {
	if strings.TrimSpace(action.Item) == "" || action.Quantity <= 0 {
		log.Debug().Str("item", action.Item).Int("quantity", action.Quantity).Msg("dropping invalid add action")
		return menux.Item{}, false
	}
	item, ok := m.catalog.Lookup(action.Item)
	if !ok {
		log.Debug().Str("item", action.Item).Msg("dropping add for item not in catalog")
		return menux.Item{}, false
	}
	return item, true
}

func prune(s *Snapshot) {
	kept := s.Lines[:0]
	for _, line := range s.Lines {
		if line.Quantity > 0 {
			kept = append(kept, line)
		}
	}
	s.Lines = kept
}
