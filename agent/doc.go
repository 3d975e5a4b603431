// Package agent contains the two agent implementations of the system:
//
//  1. StreamingAgent, one per artifact kind, executing the closed set of
//     operations (generate/create/update/fix/explain/revert) against the
//     version store while streaming partial content through the event sink
//  2. Orchestrator, which exposes StreamingAgents to the primary model as
//     callable tools and drives one conversation turn to completion
//
// Design principles:
//   - Minimal hidden global state, explicit wiring via constructors
//   - Single-writer streaming: within one artifact's envelope, header events
//     precede deltas and exactly one finish terminates it
//   - Observability: structured log events (agent.*, tool.*, model.*) with a
//     per-turn correlation id
//
// The package keeps persistence and model specifics behind the
// core.VersionStore and model.Model interfaces so tests can substitute
// deterministic fakes.
package agent
