package core

import (
	"fmt"
	"strings"
	"sync"
)

// ArtifactKind categorizes the user-visible object a specialized agent
// produces. The set is closed; stores and sinks treat it as opaque.
type ArtifactKind string

const (
	// KindCode marks source code artifacts.
	KindCode ArtifactKind = "code"
	// KindDiagram marks diagram (e.g. mermaid) artifacts.
	KindDiagram ArtifactKind = "diagram"
	// KindDocument marks prose / markdown artifacts.
	KindDocument ArtifactKind = "document"
)

// ArtifactKinds lists every known kind. Used by exhaustiveness tests and
// registration loops.
func ArtifactKinds() []ArtifactKind {
	return []ArtifactKind{KindCode, KindDiagram, KindDocument}
}

// Operation is the closed set of actions a specialized streaming agent can
// perform. Dispatch happens via a single exhaustive switch; adding a value
// here without extending that switch is caught by the exhaustiveness test.
type Operation int

const (
	// OpGenerate produces inline text without streaming or persistence.
	OpGenerate Operation = iota
	// OpCreate allocates a new artifact and persists version 1.
	OpCreate
	// OpUpdate appends a new version derived from an instruction.
	OpUpdate
	// OpFix appends a new version derived from error output.
	OpFix
	// OpExplain appends a new annotated version of the current content.
	OpExplain
	// OpRevert appends a new version carrying an older version's content.
	OpRevert
)

// Operations lists every operation value in declaration order.
func Operations() []Operation {
	return []Operation{OpGenerate, OpCreate, OpUpdate, OpFix, OpExplain, OpRevert}
}

// String returns the wire / config name of the operation.
func (o Operation) String() string {
	switch o {
	case OpGenerate:
		return "generate"
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpFix:
		return "fix"
	case OpExplain:
		return "explain"
	case OpRevert:
		return "revert"
	default:
		return fmt.Sprintf("operation(%d)", int(o))
	}
}

// ParseOperation maps a wire name back onto the enum. Unknown names fail.
func ParseOperation(s string) (Operation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "generate":
		return OpGenerate, nil
	case "create":
		return OpCreate, nil
	case "update":
		return OpUpdate, nil
	case "fix":
		return OpFix, nil
	case "explain":
		return OpExplain, nil
	case "revert":
		return OpRevert, nil
	default:
		return 0, fmt.Errorf("unknown operation %q", s)
	}
}

// OperationRequest describes one delegated unit of work for a specialized
// streaming agent.
//
// Per-operation requirements:
//   - generate / create: ArtifactID must be empty
//   - update / fix / explain: ArtifactID required
//   - revert: ArtifactID required; TargetVersion optional (0 means
//     "current minus one")
type OperationRequest struct {
	Operation     Operation `json:"operation"`
	Instruction   string    `json:"instruction"`
	ArtifactID    string    `json:"artifact_id,omitempty"`
	TargetVersion int       `json:"target_version,omitempty"`
}

// Validate checks the structural per-operation requirements. It does not
// touch any store; range checks against the actual version chain happen at
// execution time.
func (r OperationRequest) Validate() error {
	switch r.Operation {
	case OpGenerate, OpCreate:
		if r.ArtifactID != "" {
			return fmt.Errorf("%s takes no artifact id", r.Operation)
		}
	case OpUpdate, OpFix, OpExplain:
		if r.ArtifactID == "" {
			return fmt.Errorf("%s requires an artifact id", r.Operation)
		}
	case OpRevert:
		if r.ArtifactID == "" {
			return fmt.Errorf("revert requires an artifact id")
		}
		if r.TargetVersion < 0 {
			return fmt.Errorf("revert target version must be positive, got %d", r.TargetVersion)
		}
	default:
		return fmt.Errorf("unknown operation %d", int(r.Operation))
	}

	if r.Operation != OpRevert && strings.TrimSpace(r.Instruction) == "" {
		return fmt.Errorf("%s requires an instruction", r.Operation)
	}

	return nil
}

// ArtifactSummary is the minimal structured description of an artifact that
// crosses the tool boundary back to the primary model. Full content never
// round-trips through the model.
type ArtifactSummary struct {
	ID      string       `json:"id"`
	Title   string       `json:"title"`
	Kind    ArtifactKind `json:"kind"`
	Version int          `json:"version,omitempty"`
}

// OperationResult is the outcome of a delegated operation: a summary for
// persisted artifacts, or inline text for generate.
type OperationResult struct {
	Summary    ArtifactSummary `json:"summary"`
	InlineText string          `json:"inline_text,omitempty"`
	Persisted  bool            `json:"persisted"`
}

// Identity is the opaque caller identity passed through to persistence
// metadata. Authentication happens upstream.
type Identity struct {
	UserID string `json:"user_id"`
	ChatID string `json:"chat_id,omitempty"`
}

// ArtifactRef is one entry of the per-turn artifact context.
type ArtifactRef struct {
	ID    string       `json:"id"`
	Title string       `json:"title"`
	Kind  ArtifactKind `json:"kind,omitempty"`
}

// ArtifactContext tracks the artifacts created during the current turn so
// that follow-up delegations ("update the document I just created") need not
// restate ids. It lives for a single turn and is safe for use from the
// sequential tool dispatch loop plus any observer goroutine.
type ArtifactContext struct {
	mu   sync.Mutex
	refs []ArtifactRef
}

// NewArtifactContext returns an empty per-turn context.
func NewArtifactContext() *ArtifactContext {
	return &ArtifactContext{}
}

// Add records an artifact produced during this turn.
func (c *ArtifactContext) Add(ref ArtifactRef) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refs = append(c.refs, ref)
}

// Refs returns a snapshot of the recorded artifacts in creation order.
func (c *ArtifactContext) Refs() []ArtifactRef {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ArtifactRef, len(c.refs))
	copy(out, c.refs)
	return out
}

// Latest returns the most recently recorded artifact, if any.
func (c *ArtifactContext) Latest() (ArtifactRef, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.refs) == 0 {
		return ArtifactRef{}, false
	}
	return c.refs[len(c.refs)-1], true
}

// LatestOfKind returns the most recently recorded artifact of the given kind.
func (c *ArtifactContext) LatestOfKind(kind ArtifactKind) (ArtifactRef, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.refs) - 1; i >= 0; i-- {
		if c.refs[i].Kind == kind {
			return c.refs[i], true
		}
	}
	return ArtifactRef{}, false
}

// Enrich appends a listing of the turn's artifacts to a delegated
// instruction so the sub-agent can resolve references like "that document".
// Instructions pass through unchanged when no artifact exists yet.
func (c *ArtifactContext) Enrich(instruction string) string {
	refs := c.Refs()
	if len(refs) == 0 {
		return instruction
	}

	var b strings.Builder
	b.WriteString(instruction)
	b.WriteString("\n\nArtifacts created earlier in this conversation turn:\n")
	for _, ref := range refs {
		fmt.Fprintf(&b, "- id=%s title=%q\n", ref.ID, ref.Title)
	}

	return b.String()
}
