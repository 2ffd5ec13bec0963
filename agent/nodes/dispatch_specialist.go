package pipelinenode

import (
	"context"
	"fmt"

	contractx "github.com/merryway/baristabot/agent/contract"
)

func DispatchSpecialist(
	ctx context.Context,
	in *GraphState,
	models contractx.Registry,
) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	specialist, ok := models.Lookup(in.Route)
	if !ok {
		return nil, fmt.Errorf("%w: no specialist registered for route %q", contractx.ErrValidation, in.Route)
	}

	reply, err := specialist.Respond(ctx, in.History)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", in.Route, err)
	}

	in.SpecialistReply = reply
	return in, nil
}
