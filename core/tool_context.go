package core

import (
	"context"
	"fmt"

	"github.com/hupe1980/artifactmesh/logging"
)

// ToolContext provides a constrained, auditable surface for delegated tool
// implementations invoked during one turn. It threads the correlation id,
// caller identity, the per-turn artifact context and the event sink without
// exposing the orchestrator itself.
type ToolContext struct {
	ctx            context.Context
	correlationID  string
	functionCallID string
	identity       Identity
	sink           EventSink
	artifacts      *ArtifactContext
	store          VersionStore

	*loggerAdapter
}

// NewToolContext constructs a tool context bound to one function call within
// a turn. A nil artifacts context is replaced with an empty one so tools can
// always record produced artifacts.
func NewToolContext(
	ctx context.Context,
	correlationID, functionCallID string,
	identity Identity,
	sink EventSink,
	artifacts *ArtifactContext,
	store VersionStore,
	logger logging.Logger,
) *ToolContext {
	if artifacts == nil {
		artifacts = NewArtifactContext()
	}
	return &ToolContext{
		ctx:            ctx,
		correlationID:  correlationID,
		functionCallID: functionCallID,
		identity:       identity,
		sink:           sink,
		artifacts:      artifacts,
		store:          store,
		loggerAdapter:  newLoggerAdapter(logger),
	}
}

// Context returns the context associated with the tool invocation.
func (tc *ToolContext) Context() context.Context {
	if tc.ctx == nil {
		return context.Background()
	}
	return tc.ctx
}

// CorrelationID returns the turn's correlation id.
func (tc *ToolContext) CorrelationID() string { return tc.correlationID }

// FunctionCallID returns the function call id associated with the invocation.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

// Identity returns the opaque caller identity.
func (tc *ToolContext) Identity() Identity { return tc.identity }

// Logger returns the logger associated with the tool invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.loggerAdapter.Logger() }

// Sink returns the event sink for the turn.
func (tc *ToolContext) Sink() EventSink { return tc.sink }

// Artifacts returns the per-turn artifact context.
func (tc *ToolContext) Artifacts() *ArtifactContext { return tc.artifacts }

// VersionStore returns the artifact version store.
func (tc *ToolContext) VersionStore() VersionStore { return tc.store }

// EmitEvent writes a stream event honoring context cancellation.
func (tc *ToolContext) EmitEvent(ev StreamEvent) error {
	if tc.sink == nil {
		return fmt.Errorf("event sink not configured")
	}
	if err := tc.Context().Err(); err != nil {
		return err
	}
	return tc.sink.Write(ev)
}

// RecordArtifact registers a produced artifact in the per-turn context so
// later delegations can resolve references to it.
func (tc *ToolContext) RecordArtifact(id, title string, kind ArtifactKind) {
	tc.artifacts.Add(ArtifactRef{ID: id, Title: title, Kind: kind})
	tc.LogDebug("tool.artifact.recorded", "artifact_id", id, "title", title, "kind", kind, "correlation_id", tc.correlationID)
}

// Validate performs a structural sanity check of the context.
func (tc *ToolContext) Validate() error {
	if tc.correlationID == "" || tc.functionCallID == "" {
		return fmt.Errorf("invalid ToolContext")
	}
	return nil
}
