package contract

import "context"

// Completer is the generative-text collaborator: prompt messages in,
// free text out. Nothing about the text is guaranteed; callers that
// need structure must validate through the structured package.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// Snippet is one ranked hit from the knowledge index.
type Snippet struct {
	Text  string
	Score float64
}

// Retriever is the embedding + nearest-neighbour lookup used by the
// details agent.
type Retriever interface {
	Search(ctx context.Context, query string, topK int) ([]Snippet, error)
}

// Specialist consumes the full conversation log and produces the
// turn's assistant message, checkpoint included.
type Specialist interface {
	Respond(ctx context.Context, log []Message) (Message, error)
}

// Registry resolves the pipeline stages and terminal specialists.
type Registry interface {
	Guard() Specialist
	Classifier() Specialist
	Lookup(agent AgentType) (Specialist, bool)
}
