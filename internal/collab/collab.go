// Package collab declares the two external collaborator contracts named in
// SPEC_FULL.md §4.12. Both are out of scope for this module (the durable
// event-stream subsystem that powers chat transports, and agent
// orchestration): only their interfaces are specified here, so the rest of
// the codebase can reference a stable shape without this module owning an
// implementation. Nothing in this package is wired into internal/app; a
// caller embedding this module in a larger system supplies its own
// implementation of each interface.
package collab

import "context"

// EventRow is one entry in a session's append-only event log.
type EventRow struct {
	ID         string
	Seq        int64
	SessionID  string
	Type       string
	Payload    map[string]any
	RunID      string
	DedupeKey  string
	CreatedAt  int64
}

// EventQuery narrows a call to EventStream.Query.
type EventQuery struct {
	AfterSeq int64
	RunID    string
	Types    []string
	Limit    int
}

// EventListener receives live appends from EventStream.Subscribe. event
// carries the appended row.
type EventListener func(event EventRow)

// Unsubscribe detaches a previously-registered EventListener.
type Unsubscribe func()

// AgentEvent is one event surfaced by an in-flight agent run, in whatever
// shape the Agent Manager implementation produces (tool call, token delta,
// error, completion, ...). EventStream maps known kinds to persisted
// EventRow.Type values and publishes the rest live-only.
type AgentEvent struct {
	Kind    string
	Payload map[string]any
}

// EventStream is a keyed append-only log per session (SPEC_FULL.md §4.12).
// Appends publish synchronously to that session's live subscribers.
type EventStream interface {
	EnsureSession(ctx context.Context, sessionID string) error
	HasSession(ctx context.Context, sessionID string) (bool, error)
	DeleteSession(ctx context.Context, sessionID string) error

	Append(ctx context.Context, sessionID, eventType string, payload map[string]any, runID, dedupeKey string) (EventRow, error)
	Query(ctx context.Context, sessionID string, q EventQuery) ([]EventRow, error)
	Subscribe(ctx context.Context, sessionID string, listener EventListener) (Unsubscribe, error)

	AppendAgentRunEvent(ctx context.Context, sessionID, runID string, event AgentEvent) error
	CloseAgentRun(ctx context.Context, sessionID, runID string) error
}

// PromptResult reports the run started by AgentManager.Prompt.
type PromptResult struct {
	RunID string
}

// AgentManager binds one session to one live LLM agent (SPEC_FULL.md
// §4.12). Events produced while the agent runs stream back through an
// EventStream rather than being returned directly.
type AgentManager interface {
	GetOrCreate(ctx context.Context, sessionID string) error
	HasSession(ctx context.Context, sessionID string) (bool, error)
	// Evict removes the agent bound to sessionID. Implementations must defer
	// eviction while the agent is mid-stream rather than interrupting it.
	Evict(ctx context.Context, sessionID string) error

	Prompt(ctx context.Context, sessionID, text string) (PromptResult, error)
	Steer(ctx context.Context, sessionID, text string) error
	Abort(ctx context.Context, sessionID string) error

	LoadHistory(ctx context.Context, sessionID string) ([]EventRow, error)
}
