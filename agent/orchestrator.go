package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/artifactmesh/config"
	"github.com/hupe1980/artifactmesh/core"
	"github.com/hupe1980/artifactmesh/logging"
	"github.com/hupe1980/artifactmesh/model"
	"github.com/hupe1980/artifactmesh/tool"
)

// DefaultMaxToolRounds bounds sequential tool-call rounds per turn to prevent
// runaway delegation.
const DefaultMaxToolRounds = 5

// FinalResponse is the outcome of one conversation turn.
type FinalResponse struct {
	Text          string
	Artifacts     []core.ArtifactRef
	CorrelationID string
}

// OrchestratorOptions configure an Orchestrator.
type OrchestratorOptions struct {
	Logger        logging.Logger
	MaxToolRounds int
	// BasePrompt is prepended to the generated tool documentation in the
	// system prompt.
	BasePrompt string
}

// Orchestrator exposes specialized streaming agents as callable tools to the
// primary model and drives one turn to completion: model call, sequential
// tool dispatch, bounded rounds, final text answer.
type Orchestrator struct {
	m         model.Model
	resolver  *config.Resolver
	configKey string
	store     core.VersionStore
	delegates map[string]tool.Delegate
	plain     []tool.Tool
	opts      OrchestratorOptions
}

// NewOrchestrator creates an orchestrator for one primary model. configKey
// selects the tool configuration and follows the {agentType}_{provider}
// convention.
func NewOrchestrator(
	m model.Model,
	resolver *config.Resolver,
	configKey string,
	store core.VersionStore,
	optFns ...func(o *OrchestratorOptions),
) *Orchestrator {
	opts := OrchestratorOptions{
		Logger:        logging.NoOpLogger{},
		MaxToolRounds: DefaultMaxToolRounds,
		BasePrompt: "You are a helpful assistant. Delegate artifact work to the available tools " +
			"and reply to the user in natural language. Never repeat full artifact content in chat; " +
			"refer to artifacts by their title.",
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Orchestrator{
		m:         m,
		resolver:  resolver,
		configKey: configKey,
		store:     store,
		delegates: map[string]tool.Delegate{},
		opts:      opts,
	}
}

// RegisterDelegate binds a specialized agent to the configured tool name.
func (o *Orchestrator) RegisterDelegate(toolName string, d tool.Delegate) {
	o.delegates[toolName] = d
}

// RegisterTool exposes a plain tool (e.g. a FunctionTool) to the primary
// model alongside the delegated agents. Plain tools bypass the configuration
// resolver; their name, description and schema come from the tool itself.
func (o *Orchestrator) RegisterTool(t tool.Tool) {
	o.plain = append(o.plain, t)
}

// Converse runs one conversation turn. Configuration resolution failures and
// top-level model failures abort the turn; tool execution failures are fed
// back to the model as short result strings.
func (o *Orchestrator) Converse(
	ctx context.Context,
	history []core.Content,
	sink core.EventSink,
	identity core.Identity,
) (FinalResponse, error) {
	correlationID := core.NewCorrelationID()
	start := time.Now()

	tools, err := o.buildTools(ctx, correlationID)
	if err != nil {
		o.opts.Logger.Error("agent.turn.config_failed", "correlation_id", correlationID, "error", err.Error())
		return FinalResponse{}, err
	}

	systemPrompt := o.buildSystemPrompt(tools)
	toolDefs := buildToolDefinitions(tools)
	artifacts := core.NewArtifactContext()
	contents := append([]core.Content(nil), history...)

	o.opts.Logger.Info("agent.turn.start",
		"correlation_id", correlationID,
		"tools", len(tools),
		"history", len(contents),
	)

	for round := 0; ; round++ {
		// The last round withholds tool definitions to force a text answer.
		ceilingReached := round >= o.opts.MaxToolRounds
		defs := toolDefs
		if ceilingReached {
			defs = nil
		}

		final, err := o.callModel(ctx, systemPrompt, contents, defs, sink)
		if err != nil {
			o.opts.Logger.Error("agent.turn.model_failed", "correlation_id", correlationID, "error", err.Error())
			return FinalResponse{}, core.NewProviderError(o.m.Info().Provider, correlationID, err)
		}

		calls := final.FunctionCalls()
		if ceilingReached && len(calls) > 0 {
			// Tool calls past the ceiling are dropped, never dispatched.
			o.opts.Logger.Warn("agent.turn.round_ceiling",
				"correlation_id", correlationID,
				"dropped_calls", len(calls),
			)
			calls = nil
		}
		if len(calls) == 0 {
			o.opts.Logger.Info("agent.turn.complete",
				"correlation_id", correlationID,
				"rounds", round,
				"artifacts", len(artifacts.Refs()),
				"duration_ms", time.Since(start).Milliseconds(),
			)
			return FinalResponse{
				Text:          final.Text(),
				Artifacts:     artifacts.Refs(),
				CorrelationID: correlationID,
			}, nil
		}

		contents = append(contents, final)
		contents = append(contents, o.dispatchCalls(ctx, calls, tools, sink, artifacts, identity, correlationID)...)
	}
}

// buildTools resolves the configured descriptors, pairs them with their
// registered delegates and appends the registered plain tools. A descriptor
// without a delegate is skipped with a warning; it is a wiring gap, not a
// configuration error.
func (o *Orchestrator) buildTools(ctx context.Context, correlationID string) ([]tool.Tool, error) {
	descs, err := o.resolver.Resolve(ctx, o.configKey)
	if err != nil {
		var cfgErr *core.ConfigError
		if errors.As(err, &cfgErr) {
			cfgErr.CorrelationID = correlationID
		}
		return nil, err
	}

	var tools []tool.Tool
	for _, desc := range descs {
		delegate, ok := o.delegates[desc.Name]
		if !ok {
			o.opts.Logger.Warn("agent.tool.unbound", "tool", desc.Name, "correlation_id", correlationID)
			continue
		}
		tools = append(tools, tool.NewAgentTool(desc, delegate))
	}
	tools = append(tools, o.plain...)
	return tools, nil
}

func (o *Orchestrator) buildSystemPrompt(tools []tool.Tool) string {
	var b strings.Builder
	b.WriteString(o.opts.BasePrompt)
	if len(tools) > 0 {
		b.WriteString("\n\nAvailable tools:\n")
		for _, t := range tools {
			fmt.Fprintf(&b, "- %s: %s\n", t.Name(), t.Description())
		}
	}
	return b.String()
}

func buildToolDefinitions(tools []tool.Tool) []model.ToolDefinition {
	defs := make([]model.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return defs
}

// callModel streams one primary model call, forwarding text deltas to the
// sink, and returns the final assistant content.
func (o *Orchestrator) callModel(
	ctx context.Context,
	systemPrompt string,
	contents []core.Content,
	defs []model.ToolDefinition,
	sink core.EventSink,
) (core.Content, error) {
	respCh, errCh := o.m.Generate(ctx, model.Request{
		Instructions: systemPrompt,
		Contents:     contents,
		Tools:        defs,
		Stream:       true,
	})

	var final core.Content
	for resp := range respCh {
		if resp.Partial {
			if text := resp.Content.Text(); text != "" {
				if err := sink.Write(core.NewTextDeltaEvent(text)); err != nil {
					return core.Content{}, err
				}
			}
			continue
		}
		final = resp.Content
	}
	if err := <-errCh; err != nil {
		return core.Content{}, err
	}
	return final, nil
}

// dispatchCalls runs the round's tool calls sequentially, awaiting each to
// completion before the next, and returns the tool response contents. Tool
// failures become short result strings; they never abort the turn.
func (o *Orchestrator) dispatchCalls(
	ctx context.Context,
	calls []core.FunctionCall,
	tools []tool.Tool,
	sink core.EventSink,
	artifacts *core.ArtifactContext,
	identity core.Identity,
	correlationID string,
) []core.Content {
	byName := make(map[string]tool.Tool, len(tools))
	for _, t := range tools {
		byName[t.Name()] = t
	}

	var out []core.Content
	for _, call := range calls {
		resultText := o.dispatchOne(ctx, call, byName, sink, artifacts, identity, correlationID)
		out = append(out, core.Content{
			Role: "tool",
			Parts: []core.Part{core.FunctionResponsePart{
				FunctionResponse: core.FunctionResponse{
					ID:       call.ID,
					Name:     call.Name,
					Response: resultText,
				},
			}},
		})
	}
	return out
}

func (o *Orchestrator) dispatchOne(
	ctx context.Context,
	call core.FunctionCall,
	byName map[string]tool.Tool,
	sink core.EventSink,
	artifacts *core.ArtifactContext,
	identity core.Identity,
	correlationID string,
) string {
	t, ok := byName[call.Name]
	if !ok {
		o.opts.Logger.Warn("agent.tool.unknown", "tool", call.Name, "correlation_id", correlationID)
		return fmt.Sprintf("error: unknown tool %q", call.Name)
	}

	args := map[string]any{}
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return fmt.Sprintf("error: invalid tool arguments: %v", err)
		}
	}

	toolCtx := core.NewToolContext(ctx, correlationID, call.ID, identity, sink, artifacts, o.store, o.opts.Logger)
	result, err := t.Call(toolCtx, args)
	if err != nil {
		// Non-fatal: the model gets a short explanation and can tell the user.
		return fmt.Sprintf("error: %v", err)
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf("%v", result)
	}
	return string(payload)
}
