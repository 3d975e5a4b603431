package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/hupe1980/artifactmesh/artifact"
	"github.com/hupe1980/artifactmesh/config"
	"github.com/hupe1980/artifactmesh/core"
	"github.com/hupe1980/artifactmesh/internal/util"
	"github.com/hupe1980/artifactmesh/logging"
	"github.com/hupe1980/artifactmesh/model"
	"github.com/hupe1980/artifactmesh/tool"
)

// DefaultSystemPrompts are used when a tool configuration leaves the system
// prompt empty.
var DefaultSystemPrompts = map[core.ArtifactKind]string{
	core.KindCode:     "You produce complete, runnable source code. Respond as a JSON object with \"title\" and \"content\" fields; content holds only the code, no markdown fences.",
	core.KindDiagram:  "You produce mermaid diagram definitions. Respond as a JSON object with \"title\" and \"content\" fields; content holds only the mermaid source.",
	core.KindDocument: "You produce well-structured markdown documents. Respond as a JSON object with \"title\" and \"content\" fields.",
}

// DefaultUpdateTemplate builds the update/fix/explain prompt when no template
// is configured. Placeholders follow the config contract.
const DefaultUpdateTemplate = "Current content:\n{currentContent}\n\nInstruction:\n{updateInstruction}\n{errorInfo}"

// StreamingAgentOptions configure a StreamingAgent.
type StreamingAgentOptions struct {
	Logger logging.Logger
	// NewArtifactID mints ids for created artifacts. Override in tests for
	// deterministic ids.
	NewArtifactID func() string
}

// StreamingAgent executes delegated operations for one artifact kind. It
// streams whole-buffer content replacements through the turn's event sink,
// persists completed versions and returns only the artifact summary.
type StreamingAgent struct {
	kind core.ArtifactKind
	m    model.Model
	desc config.ToolDescriptor
	opts StreamingAgentOptions
}

// compile-time interface check
var _ tool.Delegate = (*StreamingAgent)(nil)

// NewStreamingAgent creates a specialized agent for one artifact kind,
// parameterized by its resolved tool configuration.
func NewStreamingAgent(kind core.ArtifactKind, m model.Model, desc config.ToolDescriptor, optFns ...func(o *StreamingAgentOptions)) *StreamingAgent {
	opts := StreamingAgentOptions{
		Logger:        logging.NoOpLogger{},
		NewArtifactID: uuid.NewString,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &StreamingAgent{kind: kind, m: m, desc: desc, opts: opts}
}

// Kind implements tool.Delegate.
func (a *StreamingAgent) Kind() core.ArtifactKind { return a.kind }

// Execute implements tool.Delegate. It validates the request, checks the
// enabled flag, then dispatches on the operation with one exhaustive switch.
func (a *StreamingAgent) Execute(toolCtx *core.ToolContext, req core.OperationRequest) (core.OperationResult, error) {
	if err := req.Validate(); err != nil {
		return core.OperationResult{}, core.NewOperationError(req.Operation, req.ArtifactID, err.Error(), toolCtx.CorrelationID())
	}
	if !a.desc.Enabled {
		return core.OperationResult{}, core.NewAgentError(a.desc.Name,
			fmt.Sprintf("the %s agent is disabled, enable it in the tool configuration", a.kind),
			toolCtx.CorrelationID())
	}

	// Resolve turn-local references ("the document I just created") before
	// the instruction reaches the model.
	req.Instruction = toolCtx.Artifacts().Enrich(req.Instruction)

	a.opts.Logger.Debug("agent.execute.start",
		"agent", a.desc.Name,
		"kind", a.kind,
		"operation", req.Operation.String(),
		"artifact_id", req.ArtifactID,
		"correlation_id", toolCtx.CorrelationID(),
	)

	switch req.Operation {
	case core.OpGenerate:
		return a.generate(toolCtx, req)
	case core.OpCreate:
		return a.create(toolCtx, req)
	case core.OpUpdate, core.OpFix, core.OpExplain:
		return a.revise(toolCtx, req)
	case core.OpRevert:
		return a.revert(toolCtx, req)
	default:
		return core.OperationResult{}, core.NewOperationError(req.Operation, req.ArtifactID,
			fmt.Sprintf("unhandled operation %s", req.Operation), toolCtx.CorrelationID())
	}
}

// generate produces inline text. No sink writes, no persistence.
func (a *StreamingAgent) generate(toolCtx *core.ToolContext, req core.OperationRequest) (core.OperationResult, error) {
	text, err := model.GenerateText(toolCtx.Context(), a.m, a.systemPrompt(), req.Instruction)
	if err != nil {
		return core.OperationResult{}, core.NewProviderError(a.m.Info().Provider, toolCtx.CorrelationID(), err)
	}
	return core.OperationResult{InlineText: text, Persisted: false}, nil
}

// create allocates a new artifact id and streams version 1.
func (a *StreamingAgent) create(toolCtx *core.ToolContext, req core.OperationRequest) (core.OperationResult, error) {
	artifactID := a.opts.NewArtifactID()
	return a.streamAndPersist(toolCtx, req, artifactID, "", 0)
}

// revise covers update, fix and explain: load the current version, build the
// prompt from the configured template and stream a successor version.
func (a *StreamingAgent) revise(toolCtx *core.ToolContext, req core.OperationRequest) (core.OperationResult, error) {
	current, err := toolCtx.VersionStore().GetCurrent(toolCtx.Context(), req.ArtifactID)
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			return core.OperationResult{}, core.NewOperationError(req.Operation, req.ArtifactID,
				"artifact does not exist", toolCtx.CorrelationID())
		}
		return core.OperationResult{}, fmt.Errorf("load current version: %w", err)
	}

	prompt := a.buildRevisionPrompt(req, current)
	revised := req
	revised.Instruction = prompt
	return a.streamAndPersist(toolCtx, revised, req.ArtifactID, current.Title, current.Number)
}

func (a *StreamingAgent) buildRevisionPrompt(req core.OperationRequest, current core.Version) string {
	template := a.desc.UserPromptTemplate
	if template == "" {
		template = DefaultUpdateTemplate
	}

	values := map[string]string{
		"currentContent":    current.Content,
		"updateInstruction": req.Instruction,
		"errorInfo":         "",
	}
	if req.Operation == core.OpFix {
		values["updateInstruction"] = "Fix the following problem."
		values["errorInfo"] = req.Instruction
	}
	if req.Operation == core.OpExplain {
		values["updateInstruction"] = "Annotate the content with explanations. " + req.Instruction
	}

	return util.SubstitutePlaceholders(template, values)
}

// streamAndPersist drives one model-backed envelope: headers, whole-buffer
// deltas, persistence of the completed version, finish. Exactly one finish is
// emitted once headers went out, success or failure.
func (a *StreamingAgent) streamAndPersist(
	toolCtx *core.ToolContext,
	req core.OperationRequest,
	artifactID, fallbackTitle string,
	parent int,
) (result core.OperationResult, err error) {
	// Cancelling on every exit path releases the generation goroutine even
	// when this side stops consuming drafts early (e.g. a failed sink write).
	ctx, cancel := context.WithCancel(toolCtx.Context())
	defer cancel()

	drafts, errCh := model.StreamStructured(ctx, a.m, a.systemPrompt(), req.Instruction)

	headersSent := false
	defer func() {
		if headersSent {
			// Exactly one finish terminates the envelope, even on failure.
			_ = toolCtx.EmitEvent(core.NewFinishEvent(artifactID))
		}
	}()

	var title string
	var final model.Draft
	for draft := range drafts {
		if !headersSent {
			if draft.Title == "" && !draft.Final && draft.Content == "" {
				continue // wait for a usable first snapshot
			}
			title = draft.Title
			if title == "" {
				title = deriveTitle(req.Instruction, fallbackTitle)
			}
			if err := a.emitHeaders(toolCtx, artifactID, title); err != nil {
				return core.OperationResult{}, err
			}
			headersSent = true
		}
		if draft.Title != "" {
			title = draft.Title
		}
		if draft.Content != "" || draft.Final {
			if err := toolCtx.EmitEvent(core.NewContentDeltaEvent(artifactID, draft.Content)); err != nil {
				return core.OperationResult{}, err
			}
		}
		final = draft
	}
	if err := <-errCh; err != nil {
		return core.OperationResult{}, core.NewProviderError(a.m.Info().Provider, toolCtx.CorrelationID(), err)
	}
	if !final.Final {
		// The stream ended without a final snapshot (cancellation); nothing
		// is persisted for partial output.
		return core.OperationResult{}, core.NewProviderError(a.m.Info().Provider, toolCtx.CorrelationID(),
			fmt.Errorf("generation ended before completion"))
	}

	a.warnOnContentHeuristics(artifactID, final.Content)

	version, err := toolCtx.VersionStore().SaveVersion(toolCtx.Context(), core.VersionDraft{
		ArtifactID: artifactID,
		Title:      title,
		Kind:       a.kind,
		Content:    final.Content,
		Parent:     parent,
		Metadata: core.VersionMetadata{
			Operation: req.Operation,
			Model:     a.m.Info().Name,
			Owner:     toolCtx.Identity().UserID,
		},
	})
	if err != nil {
		return core.OperationResult{}, fmt.Errorf("persist version: %w", err)
	}

	a.opts.Logger.Info("agent.execute.persisted",
		"agent", a.desc.Name,
		"artifact_id", artifactID,
		"version", version.Number,
		"operation", req.Operation.String(),
	)

	return core.OperationResult{
		Summary: core.ArtifactSummary{
			ID:      artifactID,
			Title:   title,
			Kind:    a.kind,
			Version: version.Number,
		},
		Persisted: true,
	}, nil
}

// revert restores an older version's content by appending a new version. The
// delta is deterministic, not model-driven, and all validation happens before
// the first sink write.
func (a *StreamingAgent) revert(toolCtx *core.ToolContext, req core.OperationRequest) (core.OperationResult, error) {
	store := toolCtx.VersionStore()
	ctx := toolCtx.Context()

	current, err := store.GetCurrent(ctx, req.ArtifactID)
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			return core.OperationResult{}, core.NewOperationError(core.OpRevert, req.ArtifactID,
				"artifact does not exist", toolCtx.CorrelationID())
		}
		return core.OperationResult{}, fmt.Errorf("load current version: %w", err)
	}

	target := req.TargetVersion
	if target == 0 {
		target = current.Number - 1
	}
	if target < 1 || target >= current.Number {
		return core.OperationResult{}, core.NewOperationError(core.OpRevert, req.ArtifactID,
			fmt.Sprintf("revert target %d out of range, current version is %d", target, current.Number),
			toolCtx.CorrelationID())
	}

	old, err := store.GetVersion(ctx, req.ArtifactID, target)
	if err != nil {
		return core.OperationResult{}, fmt.Errorf("load version %d: %w", target, err)
	}

	if err := a.emitHeaders(toolCtx, req.ArtifactID, old.Title); err != nil {
		return core.OperationResult{}, err
	}
	defer func() {
		_ = toolCtx.EmitEvent(core.NewFinishEvent(req.ArtifactID))
	}()
	if err := toolCtx.EmitEvent(core.NewContentDeltaEvent(req.ArtifactID, old.Content)); err != nil {
		return core.OperationResult{}, err
	}

	version, err := store.SaveVersion(ctx, core.VersionDraft{
		ArtifactID: req.ArtifactID,
		Title:      old.Title,
		Kind:       a.kind,
		Content:    old.Content,
		Parent:     current.Number,
		Metadata: core.VersionMetadata{
			Operation:    core.OpRevert,
			Owner:        toolCtx.Identity().UserID,
			RevertedFrom: current.Number,
			RevertedTo:   target,
		},
	})
	if err != nil {
		return core.OperationResult{}, fmt.Errorf("persist revert: %w", err)
	}

	a.opts.Logger.Info("agent.execute.reverted",
		"agent", a.desc.Name,
		"artifact_id", req.ArtifactID,
		"version", version.Number,
		"reverted_from", current.Number,
		"reverted_to", target,
	)

	return core.OperationResult{
		Summary: core.ArtifactSummary{
			ID:      req.ArtifactID,
			Title:   old.Title,
			Kind:    a.kind,
			Version: version.Number,
		},
		Persisted: true,
	}, nil
}

func (a *StreamingAgent) emitHeaders(toolCtx *core.ToolContext, artifactID, title string) error {
	events := []core.StreamEvent{
		core.NewKindEvent(artifactID, a.kind),
		core.NewIDEvent(artifactID),
		core.NewTitleEvent(artifactID, title),
		core.NewClearEvent(artifactID),
	}
	for _, ev := range events {
		if err := toolCtx.EmitEvent(ev); err != nil {
			return err
		}
	}
	return nil
}

func (a *StreamingAgent) systemPrompt() string {
	if a.desc.SystemPrompt != "" {
		return a.desc.SystemPrompt
	}
	return DefaultSystemPrompts[a.kind]
}

// warnOnContentHeuristics logs advisory findings about generated content.
// False negatives are common, so heuristics never block persistence.
func (a *StreamingAgent) warnOnContentHeuristics(artifactID, content string) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		a.opts.Logger.Warn("agent.content.empty", "agent", a.desc.Name, "artifact_id", artifactID)
		return
	}
	switch a.kind {
	case core.KindCode, core.KindDiagram:
		if strings.Contains(trimmed, "```") {
			a.opts.Logger.Warn("agent.content.fence_leak", "agent", a.desc.Name, "artifact_id", artifactID)
		}
	case core.KindDocument:
		// No additional heuristics for prose.
	}
}

// deriveTitle produces a panel title when the model never supplied one.
func deriveTitle(instruction, fallback string) string {
	if fallback != "" {
		return fallback
	}
	instruction = strings.TrimSpace(instruction)
	if idx := strings.IndexAny(instruction, "\n"); idx > 0 {
		instruction = instruction[:idx]
	}
	const maxTitle = 60
	runes := []rune(instruction)
	if len(runes) > maxTitle {
		return string(runes[:maxTitle]) + "..."
	}
	if instruction == "" {
		return "Untitled"
	}
	return instruction
}
