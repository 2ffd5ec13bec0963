package specialist

import (
	"context"

	contractx "github.com/merryway/baristabot/agent/contract"
	llmx "github.com/merryway/baristabot/agent/llm"
	menux "github.com/merryway/baristabot/agent/menu"
	orderx "github.com/merryway/baristabot/agent/order"
	promptx "github.com/merryway/baristabot/agent/prompt"
	recommendx "github.com/merryway/baristabot/agent/recommend"
)

type registryImpl struct {
	guard       contractx.Specialist
	classifier  contractx.Specialist
	specialists map[contractx.AgentType]contractx.Specialist
}

func (r *registryImpl) Guard() contractx.Specialist {
	return r.guard
}

func (r *registryImpl) Classifier() contractx.Specialist {
	return r.classifier
}

func (r *registryImpl) Lookup(agent contractx.AgentType) (contractx.Specialist, bool) {
	specialist, ok := r.specialists[agent]
	return specialist, ok
}

// Deps are the collaborators the registry wires into the agents.
// Retriever and Sink may be nil; those features degrade gracefully.
type Deps struct {
	Catalog   *menux.Catalog
	Engine    *recommendx.Engine
	Retriever contractx.Retriever
	Sink      OrderSink
}

// NewRegistry builds one completer per agent from cfg and assembles
// the gate, the router, and the three terminal specialists.
func NewRegistry(ctx context.Context, cfg llmx.Config, deps Deps) (contractx.Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	completerFor := func(agent contractx.AgentType) (contractx.Completer, error) {
		return llmx.NewCompleter(ctx, cfg.OpenRouterFor(agent))
	}

	guardCompleter, err := completerFor(contractx.AgentTypeGuard)
	if err != nil {
		return nil, err
	}
	classifierCompleter, err := completerFor(contractx.AgentTypeClassification)
	if err != nil {
		return nil, err
	}
	detailsCompleter, err := completerFor(contractx.AgentTypeDetails)
	if err != nil {
		return nil, err
	}
	recommendationCompleter, err := completerFor(contractx.AgentTypeRecommendation)
	if err != nil {
		return nil, err
	}
	orderCompleter, err := completerFor(contractx.AgentTypeOrderTaking)
	if err != nil {
		return nil, err
	}

	return NewRegistryWithCompleters(Completers{
		Guard:          guardCompleter,
		Classifier:     classifierCompleter,
		Details:        detailsCompleter,
		Recommendation: recommendationCompleter,
		OrderTaking:    orderCompleter,
	}, deps), nil
}

// Completers carries one completer per agent; tests inject fakes here.
type Completers struct {
	Guard          contractx.Completer
	Classifier     contractx.Completer
	Details        contractx.Completer
	Recommendation contractx.Completer
	OrderTaking    contractx.Completer
}

func NewRegistryWithCompleters(completers Completers, deps Deps) contractx.Registry {
	prompts := promptx.LoadPromptSet()

	recommendation := newRecommendation(
		completers.Recommendation,
		deps.Engine,
		prompts.Recommendation,
		prompts.RecommendationClassifier,
	)

	orderTaking := newOrderTaking(
		completers.OrderTaking,
		orderx.NewMachine(deps.Catalog),
		deps.Catalog.PromptLines(),
		prompts.OrderTaking,
		recommendation,
		deps.Sink,
	)

	return &registryImpl{
		guard:      newGuard(completers.Guard, prompts.Guard),
		classifier: newClassifier(completers.Classifier, prompts.Classifier),
		specialists: map[contractx.AgentType]contractx.Specialist{
			contractx.AgentTypeDetails:        newDetails(completers.Details, deps.Retriever, prompts.Details),
			contractx.AgentTypeRecommendation: recommendation,
			contractx.AgentTypeOrderTaking:    orderTaking,
		},
	}
}
