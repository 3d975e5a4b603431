package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/artifactmesh/core"
)

// Turn is one canned model call for a ScriptedModel: optional streamed text
// deltas followed by a final response carrying text and/or tool calls.
type Turn struct {
	// DeltaSize splits Text into streamed chunks of this many runes when the
	// request enables streaming. Zero streams rune by rune.
	DeltaSize int
	// Text is the assistant text of the final response.
	Text string
	// ToolCalls are function calls attached to the final response.
	ToolCalls []core.FunctionCall
	// Err aborts the call through the error channel instead of responding.
	Err error
}

// ScriptedModel replays a fixed sequence of Turns, one per Generate call.
// Unlike MockModel it supports tool-call rounds, which makes it the fixture
// of choice for orchestrator tests and examples.
type ScriptedModel struct {
	mu    sync.Mutex
	info  Info
	turns []Turn
	next  int
}

// NewScriptedModel constructs a ScriptedModel replaying the given turns.
func NewScriptedModel(name string, turns ...Turn) *ScriptedModel {
	return &ScriptedModel{
		info:  Info{Name: name, Provider: "scripted", SupportsTools: true},
		turns: turns,
	}
}

// Calls returns how many Generate calls have been consumed.
func (m *ScriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.next
}

// Generate implements Model by replaying the next scripted turn.
func (m *ScriptedModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 32)
	errCh := make(chan error, 1)

	m.mu.Lock()
	if m.next >= len(m.turns) {
		m.mu.Unlock()
		go func() {
			defer close(respCh)
			defer close(errCh)
			errCh <- fmt.Errorf("scripted model exhausted after %d turns", len(m.turns))
		}()
		return respCh, errCh
	}
	turn := m.turns[m.next]
	m.next++
	m.mu.Unlock()

	go func() {
		defer close(respCh)
		defer close(errCh)

		if turn.Err != nil {
			errCh <- turn.Err
			return
		}

		if req.Stream && turn.Text != "" {
			size := turn.DeltaSize
			if size < 1 {
				size = 1
			}
			runes := []rune(turn.Text)
			for start := 0; start < len(runes); start += size {
				end := start + size
				if end > len(runes) {
					end = len(runes)
				}
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{
					Partial: true,
					Content: core.Content{Role: "assistant", Parts: []core.Part{core.TextPart{Text: string(runes[start:end])}}},
				}:
				}
			}
		}

		parts := make([]core.Part, 0, len(turn.ToolCalls)+1)
		if turn.Text != "" {
			parts = append(parts, core.TextPart{Text: turn.Text})
		}
		for _, fc := range turn.ToolCalls {
			parts = append(parts, core.FunctionCallPart{FunctionCall: fc})
		}

		finish := "stop"
		if len(turn.ToolCalls) > 0 {
			finish = "tool_calls"
		}

		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case respCh <- Response{
			Partial:      false,
			Content:      core.Content{Role: "assistant", Parts: parts},
			FinishReason: finish,
		}:
		}
	}()

	return respCh, errCh
}

// Info implements Model interface.
func (m *ScriptedModel) Info() Info { return m.info }
