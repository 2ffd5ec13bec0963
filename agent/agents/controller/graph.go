package controller

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	nodex "github.com/merryway/baristabot/agent/nodes"
)

func (c *Controller) compileRespondGraph(
	ctx context.Context,
) (compose.Runnable[nodex.GraphInput, nodex.GraphOutput], error) {
	graph := compose.NewGraph[nodex.GraphInput, nodex.GraphOutput]()

	if err := graph.AddLambdaNode("validate_request",
		compose.InvokableLambda(func(ctx context.Context, in nodex.GraphInput) (*nodex.GraphState, error) {
			return nodex.ValidateRequest(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_request: %w", err)
	}

	if err := graph.AddLambdaNode("run_guard",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.RunGuard(ctx, in, c.models.Guard())
		}),
	); err != nil {
		return nil, fmt.Errorf("add node run_guard: %w", err)
	}

	if err := graph.AddLambdaNode("run_classifier",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.RunClassifier(ctx, in, c.models.Classifier())
		}),
	); err != nil {
		return nil, fmt.Errorf("add node run_classifier: %w", err)
	}

	if err := graph.AddLambdaNode("dispatch_specialist",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.DispatchSpecialist(ctx, in, c.models)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node dispatch_specialist: %w", err)
	}

	if err := graph.AddLambdaNode("finalize_reply",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (nodex.GraphOutput, error) {
			return nodex.FinalizeReply(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node finalize_reply: %w", err)
	}

	// Blocked turns skip routing entirely; the guard's refusal is the reply.
	guardBranch := compose.NewGraphBranch(
		func(ctx context.Context, in *nodex.GraphState) (string, error) {
			if in == nil {
				return "", fmt.Errorf("graph state is nil after run_guard")
			}
			if in.Blocked {
				return "finalize_reply", nil
			}
			return "run_classifier", nil
		},
		map[string]bool{
			"finalize_reply": true,
			"run_classifier": true,
		},
	)

	// Unsure routing skips dispatch; the classifier's clarification is the reply.
	routeBranch := compose.NewGraphBranch(
		func(ctx context.Context, in *nodex.GraphState) (string, error) {
			if in == nil {
				return "", fmt.Errorf("graph state is nil after run_classifier")
			}
			if in.Unsure {
				return "finalize_reply", nil
			}
			return "dispatch_specialist", nil
		},
		map[string]bool{
			"finalize_reply":      true,
			"dispatch_specialist": true,
		},
	)

	if err := graph.AddEdge(compose.START, "validate_request"); err != nil {
		return nil, fmt.Errorf("add edge start->validate_request: %w", err)
	}
	if err := graph.AddEdge("validate_request", "run_guard"); err != nil {
		return nil, fmt.Errorf("add edge validate_request->run_guard: %w", err)
	}
	if err := graph.AddBranch("run_guard", guardBranch); err != nil {
		return nil, fmt.Errorf("add guard branch: %w", err)
	}
	if err := graph.AddBranch("run_classifier", routeBranch); err != nil {
		return nil, fmt.Errorf("add route branch: %w", err)
	}
	if err := graph.AddEdge("dispatch_specialist", "finalize_reply"); err != nil {
		return nil, fmt.Errorf("add edge dispatch_specialist->finalize_reply: %w", err)
	}
	if err := graph.AddEdge("finalize_reply", compose.END); err != nil {
		return nil, fmt.Errorf("add edge finalize_reply->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("controller.respond"))
	if err != nil {
		return nil, fmt.Errorf("compile controller graph: %w", err)
	}
	return runner, nil
}
