// Package order owns the per-conversation order lifecycle. The
// snapshot travels inside the order agent's checkpoint; applying a
// turn's actions is a pure transition from one snapshot to the next.
package order

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Line is one ordered item. At most one line exists per
// case-insensitive item name.
type Line struct {
	Item     string  `json:"item"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// Snapshot is the order agent's checkpoint payload. Field names keep
// the wire spellings earlier conversations may already carry.
type Snapshot struct {
	Lines                 []Line `json:"order"`
	StepNumber            int    `json:"step_number"`
	OrderID               string `json:"order_id"`
	Finalized             bool   `json:"order_finalized"`
	RecommendationOffered bool   `json:"asked_recommendation_before"`
}

// NewSnapshot starts an empty order at step one with a fresh id.
func NewSnapshot() Snapshot {
	return Snapshot{
		StepNumber: 1,
		OrderID:    uuid.NewString(),
	}
}

// Reset discards everything, order id included. Called when an
// order-start utterance follows a finalized order.
func (s *Snapshot) Reset() {
	*s = NewSnapshot()
}

// Normalize repairs a snapshot decoded from an old checkpoint.
func (s *Snapshot) Normalize() {
	if s.StepNumber < 1 {
		s.StepNumber = 1
	}
	if strings.TrimSpace(s.OrderID) == "" {
		s.OrderID = uuid.NewString()
	}
}

// Total is the single source of truth for the bill.
func (s Snapshot) Total() float64 {
	total := 0.0
	for _, line := range s.Lines {
		total += float64(line.Quantity) * line.Price
	}
	return total
}

func (s Snapshot) Empty() bool {
	return len(s.Lines) == 0
}

// findLine returns the index of the case-insensitive item match, or -1.
func (s Snapshot) findLine(item string) int {
	key := strings.ToLower(strings.TrimSpace(item))
	for i, line := range s.Lines {
		if strings.ToLower(line.Item) == key {
			return i
		}
	}
	return -1
}

// Summary renders the order one line per item, with the running total
// when withTotal is set.
func (s Snapshot) Summary(withTotal bool) string {
	var b strings.Builder
	for _, line := range s.Lines {
		fmt.Fprintf(&b, "- %d x %s = $%.2f\n", line.Quantity, line.Item, float64(line.Quantity)*line.Price)
	}
	out := strings.TrimRight(b.String(), "\n")
	if withTotal {
		out += fmt.Sprintf("\n\nTotal = $%.2f", s.Total())
	}
	return out
}
