package core

import "sync"

// StreamEventType is the discriminant of the StreamEvent tagged union. The
// data-* values mirror the wire tags consumed by the artifact panel; text
// deltas carry the assistant's own reply to the chat surface.
type StreamEventType string

const (
	// StreamEventKind announces the artifact kind. Header event.
	StreamEventKind StreamEventType = "data-kind"
	// StreamEventID announces the artifact id. Header event.
	StreamEventID StreamEventType = "data-id"
	// StreamEventTitle announces the artifact title. Header event.
	StreamEventTitle StreamEventType = "data-title"
	// StreamEventClear resets the artifact panel content. Header event.
	StreamEventClear StreamEventType = "data-clear"
	// StreamEventContentDelta carries the full accumulated content so far.
	// Each delta is a whole-buffer replacement, not an append: structured
	// generation regenerates the complete object per chunk.
	StreamEventContentDelta StreamEventType = "data-codeDelta"
	// StreamEventFinish terminates one artifact's stream. Exactly one finish
	// is emitted per artifact per turn, always last.
	StreamEventFinish StreamEventType = "data-finish"
	// StreamEventTextDelta carries a token of the assistant's own reply,
	// interleaved between artifact envelopes but never inside one.
	StreamEventTextDelta StreamEventType = "text-delta"
)

// StreamEvent is one unit of the typed protocol used to progressively render
// an artifact. Per artifact id, header events (kind/id/title/clear) precede
// any delta and finish is always last.
type StreamEvent struct {
	Type       StreamEventType `json:"type"`
	ArtifactID string          `json:"artifact_id,omitempty"`
	Payload    string          `json:"payload,omitempty"`
	// Transient events are rendered live but not persisted into the
	// conversation history by the client.
	Transient bool `json:"transient"`
}

// IsHeader reports whether this event belongs to the artifact header
// sequence that must precede any content delta.
func (e StreamEvent) IsHeader() bool {
	switch e.Type {
	case StreamEventKind, StreamEventID, StreamEventTitle, StreamEventClear:
		return true
	default:
		return false
	}
}

// NewKindEvent announces the artifact kind.
func NewKindEvent(artifactID string, kind ArtifactKind) StreamEvent {
	return StreamEvent{Type: StreamEventKind, ArtifactID: artifactID, Payload: string(kind), Transient: true}
}

// NewIDEvent announces the artifact id.
func NewIDEvent(artifactID string) StreamEvent {
	return StreamEvent{Type: StreamEventID, ArtifactID: artifactID, Payload: artifactID, Transient: true}
}

// NewTitleEvent announces the artifact title.
func NewTitleEvent(artifactID, title string) StreamEvent {
	return StreamEvent{Type: StreamEventTitle, ArtifactID: artifactID, Payload: title, Transient: true}
}

// NewClearEvent resets the artifact panel before the first delta.
func NewClearEvent(artifactID string) StreamEvent {
	return StreamEvent{Type: StreamEventClear, ArtifactID: artifactID, Transient: true}
}

// NewContentDeltaEvent carries the full content accumulated so far.
func NewContentDeltaEvent(artifactID, content string) StreamEvent {
	return StreamEvent{Type: StreamEventContentDelta, ArtifactID: artifactID, Payload: content, Transient: true}
}

// NewFinishEvent terminates the artifact's stream.
func NewFinishEvent(artifactID string) StreamEvent {
	return StreamEvent{Type: StreamEventFinish, ArtifactID: artifactID, Transient: true}
}

// NewTextDeltaEvent carries one token of the assistant's chat reply.
func NewTextDeltaEvent(text string) StreamEvent {
	return StreamEvent{Type: StreamEventTextDelta, Payload: text, Transient: false}
}

// EventSink is the ordered, single-writer event channel to the client UI.
// Implementations must preserve write order: events for one artifact id must
// not be reordered or batched across the header/delta/finish boundaries.
// Writes are fire-and-forget from the producer's perspective but must not
// drop events silently.
type EventSink interface {
	Write(ev StreamEvent) error
}

// ChannelSink is an in-process EventSink backed by a buffered channel.
// Producers call Write from a single goroutine per turn; consumers range
// over Events. Close is idempotent and terminates the consumer range.
type ChannelSink struct {
	mu     sync.Mutex
	ch     chan StreamEvent
	closed bool
}

// NewChannelSink creates a ChannelSink with the given buffer size
// (minimum 1).
func NewChannelSink(buffer int) *ChannelSink {
	if buffer < 1 {
		buffer = 1
	}
	return &ChannelSink{ch: make(chan StreamEvent, buffer)}
}

// Write implements EventSink. Writing to a closed sink returns ErrSinkClosed
// instead of panicking so a cancelled turn can drain quietly.
func (s *ChannelSink) Write(ev StreamEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	s.ch <- ev
	return nil
}

// Events exposes the consumer side of the sink.
func (s *ChannelSink) Events() <-chan StreamEvent { return s.ch }

// Close terminates the stream. Safe to call multiple times.
func (s *ChannelSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
