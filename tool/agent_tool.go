package tool

import (
	"fmt"
	"strings"

	"github.com/hupe1980/artifactmesh/config"
	"github.com/hupe1980/artifactmesh/core"
)

// Delegate is the execution surface of a specialized streaming agent. The
// tool package depends on this narrow interface rather than the agent package
// so that tools can wrap any delegate implementation.
type Delegate interface {
	// Kind returns the artifact kind this delegate produces.
	Kind() core.ArtifactKind

	// Execute runs one operation to completion, streaming through the
	// ToolContext's sink and persisting through its version store.
	Execute(toolCtx *core.ToolContext, req core.OperationRequest) (core.OperationResult, error)
}

// AgentTool exposes a Delegate to the primary model as a callable tool. Its
// name, description and parameter schema come from resolved configuration,
// so the exposed surface is exactly what the resolver validated.
//
// The result returned to the model is always the minimal artifact summary
// (id, title, kind), never full content.
type AgentTool struct {
	desc     config.ToolDescriptor
	delegate Delegate
}

// compile-time interface check
var _ Tool = (*AgentTool)(nil)

// NewAgentTool wraps a delegate with its resolved tool descriptor.
func NewAgentTool(desc config.ToolDescriptor, delegate Delegate) *AgentTool {
	return &AgentTool{desc: desc, delegate: delegate}
}

// Name returns the configured tool name.
func (t *AgentTool) Name() string { return t.desc.Name }

// Description returns the configured tool description.
func (t *AgentTool) Description() string { return t.desc.Description }

// Parameters returns the JSON schema derived from the configured shape.
func (t *AgentTool) Parameters() map[string]any { return t.desc.Shape.Schema() }

// Call translates the model-supplied arguments into an OperationRequest,
// dispatches it to the delegate and returns the artifact summary. Generate
// results pass the inline text back instead.
func (t *AgentTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	logger := toolCtx.Logger()

	req, err := t.buildRequest(toolCtx, args)
	if err != nil {
		logger.Warn("tool.call.bad_arguments", "tool", t.desc.Name, "error", err.Error())
		return nil, &ToolError{
			Tool:    t.desc.Name,
			Message: err.Error(),
			Code:    "VALIDATION_ERROR",
		}
	}

	logger.Debug("tool.call.start",
		"tool", t.desc.Name,
		"operation", req.Operation.String(),
		"fc_id", toolCtx.FunctionCallID(),
		"correlation_id", toolCtx.CorrelationID(),
	)

	result, err := t.delegate.Execute(toolCtx, req)
	if err != nil {
		logger.Error("tool.call.error", "tool", t.desc.Name, "error", err.Error())
		return nil, err
	}

	if !result.Persisted {
		logger.Info("tool.call.success", "tool", t.desc.Name, "operation", req.Operation.String(), "inline", true)
		return result.InlineText, nil
	}

	toolCtx.RecordArtifact(result.Summary.ID, result.Summary.Title, result.Summary.Kind)
	logger.Info("tool.call.success",
		"tool", t.desc.Name,
		"operation", req.Operation.String(),
		"artifact_id", result.Summary.ID,
		"version", result.Summary.Version,
	)

	// Summary only; full content never crosses the tool boundary.
	return map[string]any{
		"id":    result.Summary.ID,
		"title": result.Summary.Title,
		"kind":  string(result.Summary.Kind),
	}, nil
}

// buildRequest maps the arguments onto an OperationRequest according to the
// configured parameter shape. The shape is an explicit variant; the payload
// is never probed for its form.
func (t *AgentTool) buildRequest(toolCtx *core.ToolContext, args map[string]any) (core.OperationRequest, error) {
	var req core.OperationRequest

	switch shape := t.desc.Shape.(type) {
	case config.SimpleParameter:
		instruction, ok := args[shape.Name].(string)
		if !ok || strings.TrimSpace(instruction) == "" {
			return req, fmt.Errorf("missing %q argument", shape.Name)
		}
		req = t.inferSimpleRequest(toolCtx, instruction)

	case config.NamedParameterSet:
		opName, ok := args["operation"].(string)
		if !ok {
			return req, fmt.Errorf("missing operation argument")
		}
		op, err := core.ParseOperation(opName)
		if err != nil {
			return req, err
		}
		req.Operation = op
		req.Instruction, _ = args["input"].(string)
		req.ArtifactID, _ = args["artifact_id"].(string)
		if tv, ok := args["target_version"].(float64); ok {
			req.TargetVersion = int(tv)
		}

	default:
		return req, fmt.Errorf("unsupported parameter shape %T", t.desc.Shape)
	}

	if err := req.Validate(); err != nil {
		return core.OperationRequest{}, err
	}
	return req, nil
}

// inferSimpleRequest decides between create and update for the single
// free-text shape: the first invocation for a kind creates, later ones update
// the artifact of that kind most recently produced this turn.
func (t *AgentTool) inferSimpleRequest(toolCtx *core.ToolContext, instruction string) core.OperationRequest {
	if ref, ok := toolCtx.Artifacts().LatestOfKind(t.delegate.Kind()); ok {
		return core.OperationRequest{
			Operation:   core.OpUpdate,
			Instruction: instruction,
			ArtifactID:  ref.ID,
		}
	}
	return core.OperationRequest{
		Operation:   core.OpCreate,
		Instruction: instruction,
	}
}
