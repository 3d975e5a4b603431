// Package model defines the provider-agnostic abstractions and concrete
// helpers for interacting with language models inside ArtifactMesh.
//
// Core goals:
//   - Unify streaming + non-streaming generation behind a single interface
//   - Normalize tool / function call representation (ToolDefinition, ToolCall)
//   - Provide the structured generation client used by specialized agents:
//     whole-buffer draft snapshots reconstructed from token deltas
//   - Facilitate lightweight mocking for tests (MockModel, ScriptedModel)
//
// Providers (OpenAI, Anthropic, Google) implement the Model interface from
// this package so higher layers (agents, tools) remain decoupled from vendor
// SDKs.
package model
