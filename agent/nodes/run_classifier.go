package pipelinenode

import (
	"context"
	"fmt"

	contractx "github.com/merryway/baristabot/agent/contract"
)

// RunClassifier routes an allowed message to one of the terminal
// agents. An "unsure" verdict ends the turn with the classifier's own
// clarification message.
func RunClassifier(
	ctx context.Context,
	in *GraphState,
	classifier contractx.Specialist,
) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	reply, err := classifier.Respond(ctx, in.History)
	if err != nil {
		return nil, fmt.Errorf("classification agent: %w", err)
	}
	if reply.Memory == nil {
		return nil, fmt.Errorf("%w: classifier reply has no checkpoint", contractx.ErrSchemaViolation)
	}

	in.RouteReply = reply
	if reply.Memory.Decision == contractx.DecisionUnsure {
		in.Unsure = true
		return in, nil
	}

	in.Route = contractx.AgentType(reply.Memory.Decision)
	return in, nil
}
