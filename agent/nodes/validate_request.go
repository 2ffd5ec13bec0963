package pipelinenode

import (
	"errors"

	contractx "github.com/merryway/baristabot/agent/contract"
)

var (
	ErrEmptyLog      = errors.New("message log is empty")
	ErrNoUserMessage = errors.New("message log has no user message")
)

// GraphInput is the full message log for one turn. The log is the only
// conversation state the pipeline receives; everything else is
// reconstructed from the checkpoints riding on its messages.
type GraphInput struct {
	Messages []contractx.Message
}

// GraphOutput carries the single assistant message produced for the turn.
type GraphOutput struct {
	Reply contractx.Message
}

// GraphState flows between pipeline nodes for one turn.
type GraphState struct {
	History []contractx.Message

	GuardReply contractx.Message
	Blocked    bool

	RouteReply contractx.Message
	Route      contractx.AgentType
	Unsure     bool

	SpecialistReply contractx.Message
}

func ValidateRequest(in GraphInput) (*GraphState, error) {
	if len(in.Messages) == 0 {
		return nil, ErrEmptyLog
	}

	hasUser := false
	for _, msg := range in.Messages {
		if msg.Role == contractx.RoleUser {
			hasUser = true
			break
		}
	}
	if !hasUser {
		return nil, ErrNoUserMessage
	}

	return &GraphState{History: in.Messages}, nil
}
