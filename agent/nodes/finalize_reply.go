package pipelinenode

import (
	"fmt"
	"strings"

	contractx "github.com/merryway/baristabot/agent/contract"
)

// FinalizeReply picks the turn's outgoing message: the guard's refusal
// when blocked, the classifier's clarification when routing was unsure,
// otherwise the dispatched specialist's reply.
func FinalizeReply(in *GraphState) (GraphOutput, error) {
	if in == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	var reply contractx.Message
	switch {
	case in.Blocked:
		reply = in.GuardReply
	case in.Unsure:
		reply = in.RouteReply
	default:
		reply = in.SpecialistReply
	}

	if strings.TrimSpace(reply.Content) == "" {
		return GraphOutput{}, fmt.Errorf("%w: pipeline produced an empty reply", contractx.ErrValidation)
	}
	reply.Role = contractx.RoleAssistant
	return GraphOutput{Reply: reply}, nil
}
