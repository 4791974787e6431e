package model

import (
	"github.com/cloudwego/eino/schema"
)

// AppState stores per-invocation state for the Eino Graph.
// Concurrency model:
//   - Registered as Graph Local State via compose.WithGenLocalState.
//   - All reads/writes happen inside Eino state handlers or compose.ProcessState,
//     which Eino serializes.
//   - Never touch it outside handlers; persistence goes through MessagesManager.
type AppState struct {
	ConversationID       string
	History              []*schema.Message // mutated only inside Eino state handlers
	ToolCallCount        int
	ToolCallLimitReached bool
	ToolCallIDSeq        int // synthesizes tool_call_id when the provider omits it

	TotalCostUSD float64
}

// TurnInput is the graph input for one user turn.
type TurnInput struct {
	ConversationID string `json:"conversation_id"`
	Query          string `json:"query"`
}

// TurnResult is the graph output: the final assistant message plus whatever
// the tools produced on the side.
type TurnResult struct {
	Answer    *schema.Message
	Artifacts []Artifact
	Failures  []ToolFailure
	ToolCalls int
}

// ArtifactKind tags structured side outputs of tools.
type ArtifactKind string

const (
	ArtifactImage  ArtifactKind = "image"
	ArtifactReport ArtifactKind = "report"
)

// Artifact is a file produced by a tool, addressed by its relative path.
type Artifact struct {
	Kind ArtifactKind `json:"kind"`
	Path string       `json:"path"`
}

// ToolFailure records a tool invocation that ended in an error observation.
type ToolFailure struct {
	Tool   string `json:"tool"`
	Reason string `json:"reason"`
	Schema bool   `json:"schema"`
}
