package contract

import "encoding/json"

type AgentType string

const (
	AgentTypeGuard          AgentType = "guard_agent"
	AgentTypeClassification AgentType = "classification_agent"
	AgentTypeDetails        AgentType = "details_agent"
	AgentTypeRecommendation AgentType = "recommendation_agent"
	AgentTypeOrderTaking    AgentType = "order_taking_agent"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one entry of the append-only conversation log. The log is
// the only persistence medium: agents recover their working state by
// scanning it for their last Checkpoint, never from an external store.
type Message struct {
	Role    Role        `json:"role"`
	Content string      `json:"content"`
	Memory  *Checkpoint `json:"memory,omitempty"`
}

// Checkpoint is an agent-owned snapshot attached to an assistant
// message. Agent tags the owner; Data is opaque to the pipeline and
// typed only by the agent that wrote it.
type Checkpoint struct {
	Agent    AgentType       `json:"agent"`
	Decision string          `json:"decision,omitempty"`
	Reason   string          `json:"reason,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// Guard and classification decisions. "not allowed" and "unsure" keep
// the wire spellings the prompts ask the model for.
const (
	DecisionAllowed    = "allowed"
	DecisionNotAllowed = "not allowed"
	DecisionUnsure     = "unsure"
)

func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

func AssistantMessage(content string, memory *Checkpoint) Message {
	return Message{Role: RoleAssistant, Content: content, Memory: memory}
}
