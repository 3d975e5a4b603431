// Package artifactmesh provides a high-level façade over the orchestrating
// agent, the specialized streaming agents and the artifact services (version
// store, tool configuration & logging) enabling rapid construction of
// artifact-producing chat systems. Most applications interact with this
// package by:
//  1. Creating an ArtifactMesh via New() (optionally overriding default in-memory services)
//  2. Registering one streaming agent per artifact kind (code, diagram, document)
//  3. Running conversation turns asynchronously (Converse) or synchronously (ConverseSync)
//
// The façade delegates turn execution to agent.Orchestrator while keeping
// setup and usage ergonomics concise. All defaults are safe for local
// development and testing; production deployments typically supply durable
// store implementations and a structured logger.
package artifactmesh

import (
	"context"

	"github.com/hupe1980/artifactmesh/agent"
	"github.com/hupe1980/artifactmesh/artifact"
	"github.com/hupe1980/artifactmesh/config"
	"github.com/hupe1980/artifactmesh/core"
	"github.com/hupe1980/artifactmesh/logging"
	"github.com/hupe1980/artifactmesh/model"
	"github.com/hupe1980/artifactmesh/tool"
)

// Options configures the ArtifactMesh instance.
type Options struct {
	// VersionStore persists artifact version chains. Defaults to the
	// in-memory implementation.
	VersionStore core.VersionStore

	// ConfigStore holds the per-key tool configuration read by the resolver.
	// Defaults to an empty in-memory store.
	ConfigStore config.Store

	// MaxToolRounds bounds sequential tool-call rounds per conversation turn.
	MaxToolRounds int

	// EventBufferSize sets the channel buffer used by ConverseSync to collect
	// stream events. Larger buffers reduce blocking between the turn and the
	// collector goroutine.
	EventBufferSize int

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// ArtifactMesh is the high-level façade aggregating the orchestrator and its
// supporting services.
type ArtifactMesh struct {
	opts         Options
	resolver     *config.Resolver
	configKey    string
	orchestrator *agent.Orchestrator
}

// New creates a new ArtifactMesh instance driven by the given primary model.
// configKey selects the tool configuration ("{agentType}_{provider}"). Any
// unset service is initialized with an in-memory implementation.
func New(m model.Model, configKey string, optFns ...func(o *Options)) *ArtifactMesh {
	opts := Options{
		VersionStore:    artifact.NewInMemoryStore(),
		ConfigStore:     config.NewMemoryStore(nil),
		MaxToolRounds:   agent.DefaultMaxToolRounds,
		EventBufferSize: 256,
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	resolver := config.NewResolver(opts.ConfigStore, func(o *config.ResolverOptions) {
		o.Logger = opts.Logger
	})

	orchestrator := agent.NewOrchestrator(m, resolver, configKey, opts.VersionStore,
		func(o *agent.OrchestratorOptions) {
			o.Logger = opts.Logger
			o.MaxToolRounds = opts.MaxToolRounds
		})

	return &ArtifactMesh{
		opts:         opts,
		resolver:     resolver,
		configKey:    configKey,
		orchestrator: orchestrator,
	}
}

// RegisterAgent binds a specialized streaming agent for one artifact kind to
// the configured tool name. The tool must be enabled and valid under the
// mesh's config key; registration fails closed otherwise.
func (m *ArtifactMesh) RegisterAgent(
	ctx context.Context,
	toolName string,
	kind core.ArtifactKind,
	mdl model.Model,
	optFns ...func(o *agent.StreamingAgentOptions),
) error {
	desc, err := m.resolver.ResolveTool(ctx, m.configKey, toolName)
	if err != nil {
		return err
	}

	fns := append([]func(o *agent.StreamingAgentOptions){func(o *agent.StreamingAgentOptions) {
		o.Logger = m.opts.Logger
	}}, optFns...)

	m.orchestrator.RegisterDelegate(toolName, agent.NewStreamingAgent(kind, mdl, desc, fns...))
	return nil
}

// RegisterTool exposes a plain tool (e.g. a tool.FunctionTool) to the primary
// model alongside the streaming agents. Plain tools are not subject to the
// tool configuration resolver.
func (m *ArtifactMesh) RegisterTool(t tool.Tool) {
	m.orchestrator.RegisterTool(t)
}

// Converse runs one conversation turn, writing stream events to sink as they
// are produced.
func (m *ArtifactMesh) Converse(
	ctx context.Context,
	history []core.Content,
	sink core.EventSink,
	identity core.Identity,
) (agent.FinalResponse, error) {
	return m.orchestrator.Converse(ctx, history, sink, identity)
}

// ConverseSync is a synchronous helper that collects all stream events of one
// turn and returns them alongside the final response.
func (m *ArtifactMesh) ConverseSync(
	ctx context.Context,
	history []core.Content,
	identity core.Identity,
) (agent.FinalResponse, []core.StreamEvent, error) {
	sink := core.NewChannelSink(m.opts.EventBufferSize)

	done := make(chan struct{})
	var events []core.StreamEvent
	go func() {
		defer close(done)
		for ev := range sink.Events() {
			events = append(events, ev)
		}
	}()

	resp, err := m.orchestrator.Converse(ctx, history, sink, identity)
	sink.Close()
	<-done
	return resp, events, err
}

// PatchConfig applies a tool configuration update under the mesh's config key
// and invalidates the resolver cache so the next turn observes it.
func (m *ArtifactMesh) PatchConfig(ctx context.Context, update func(cfg *config.ToolConfig)) error {
	return m.resolver.Patch(ctx, m.configKey, update)
}

// Resolver exposes the tool configuration resolver, e.g. for admin surfaces.
func (m *ArtifactMesh) Resolver() *config.Resolver { return m.resolver }

// VersionStore exposes the artifact version store backing the mesh.
func (m *ArtifactMesh) VersionStore() core.VersionStore { return m.opts.VersionStore }
