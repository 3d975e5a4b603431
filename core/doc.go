// Package core provides the foundational domain types, interfaces and execution
// contexts used by ArtifactMesh. It defines the core abstractions for:
//
//   - Artifacts and their append-only version chains (Version, VersionStore)
//   - Delegated operations (Operation, OperationRequest)
//   - The typed streaming protocol rendered by clients (StreamEvent, EventSink)
//   - ToolContext (scoped execution surface handed to delegated tools)
//   - The turn-level error taxonomy with correlation ids
//
// The package intentionally keeps implementation concerns (persistence,
// concrete agents, provider SDKs) out of scope, exposing small interfaces to
// enable custom backends and extensions.
package core
