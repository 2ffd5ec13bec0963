package pipelinenode

import (
	"context"
	"fmt"

	contractx "github.com/merryway/baristabot/agent/contract"
)

// RunGuard asks the gate agent whether the latest user message is in
// scope. A "not allowed" verdict marks the turn blocked and the guard's
// own refusal message becomes the reply.
func RunGuard(
	ctx context.Context,
	in *GraphState,
	guard contractx.Specialist,
) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	reply, err := guard.Respond(ctx, in.History)
	if err != nil {
		return nil, fmt.Errorf("guard agent: %w", err)
	}
	if reply.Memory == nil {
		return nil, fmt.Errorf("%w: guard reply has no checkpoint", contractx.ErrSchemaViolation)
	}

	in.GuardReply = reply
	in.Blocked = reply.Memory.Decision != contractx.DecisionAllowed
	return in, nil
}
