// Package state recovers agent working state from the conversation
// log. There is no session store: a checkpoint an agent attached to an
// earlier assistant message is the only state that survives between
// turns, and reconstruction is a pure backward scan over the log the
// caller resubmits.
package state

import (
	"strings"

	contractx "github.com/merryway/baristabot/agent/contract"
)

// LastCheckpoint scans the log from the most recent entry backward and
// returns the first checkpoint whose owner tag matches agent. ok is
// false when the agent has never checkpointed in this conversation.
// For a fixed log prefix the result is deterministic; the log is
// append-only so historical entries never change under the scan.
func LastCheckpoint(log []contractx.Message, agent contractx.AgentType) (contractx.Checkpoint, bool) {
	for i := len(log) - 1; i >= 0; i-- {
		mem := log[i].Memory
		if mem != nil && mem.Agent == agent {
			return *mem, true
		}
	}
	return contractx.Checkpoint{}, false
}

// RecentWindow returns the last n messages of the log. Stage agents
// that only need bounded context (the guard's contextual read) use
// this; the order machine deliberately scans the full log instead so
// order history is never silently lost.
func RecentWindow(log []contractx.Message, n int) []contractx.Message {
	if n <= 0 || len(log) == 0 {
		return nil
	}
	if len(log) <= n {
		return log
	}
	return log[len(log)-n:]
}

// LatestUserContent returns the content of the most recent user
// message, trimmed.
func LatestUserContent(log []contractx.Message) (string, bool) {
	for i := len(log) - 1; i >= 0; i-- {
		if log[i].Role == contractx.RoleUser {
			return strings.TrimSpace(log[i].Content), true
		}
	}
	return "", false
}
