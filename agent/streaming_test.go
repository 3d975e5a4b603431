package agent

import (
	"context"
	"testing"
	"time"

	"github.com/hupe1980/artifactmesh/artifact"
	"github.com/hupe1980/artifactmesh/config"
	"github.com/hupe1980/artifactmesh/core"
	"github.com/hupe1980/artifactmesh/logging"
	"github.com/hupe1980/artifactmesh/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func enabledDescriptor(name string) config.ToolDescriptor {
	return config.ToolDescriptor{
		Name:        name,
		Enabled:     true,
		Description: "test agent",
		Shape:       config.SimpleParameter{Name: "input", Description: "instruction"},
	}
}

func fixedID(id string) func(o *StreamingAgentOptions) {
	return func(o *StreamingAgentOptions) {
		o.NewArtifactID = func() string { return id }
	}
}

type agentFixture struct {
	store *artifact.InMemoryStore
	sink  *core.ChannelSink
}

func newAgentFixture() *agentFixture {
	return &agentFixture{
		store: artifact.NewInMemoryStore(),
		sink:  core.NewChannelSink(256),
	}
}

func (f *agentFixture) toolContext(fcID string) *core.ToolContext {
	return core.NewToolContext(
		context.Background(),
		core.NewCorrelationID(),
		fcID,
		core.Identity{UserID: "user-1"},
		f.sink,
		core.NewArtifactContext(),
		f.store,
		logging.NoOpLogger{},
	)
}

// drain closes the sink and collects everything written so far.
func (f *agentFixture) drain() []core.StreamEvent {
	f.sink.Close()
	var events []core.StreamEvent
	for ev := range f.sink.Events() {
		events = append(events, ev)
	}
	return events
}

func assertEnvelope(t *testing.T, events []core.StreamEvent, artifactID string) {
	t.Helper()
	var seenDelta, seenFinish bool
	finishCount := 0
	for _, ev := range events {
		if ev.ArtifactID != artifactID {
			continue
		}
		switch {
		case ev.IsHeader():
			assert.False(t, seenDelta, "header after first delta")
			assert.False(t, seenFinish, "header after finish")
		case ev.Type == core.StreamEventContentDelta:
			seenDelta = true
			assert.False(t, seenFinish, "delta after finish")
		case ev.Type == core.StreamEventFinish:
			seenFinish = true
			finishCount++
		}
	}
	assert.Equal(t, 1, finishCount, "expected exactly one finish event")
}

func TestStreamingAgentCreate(t *testing.T) {
	f := newAgentFixture()
	m := model.NewScriptedModel("scripted",
		model.Turn{Text: `{"title": "Reverse", "content": "func reverse(s string) string {}"}`, DeltaSize: 9},
	)
	a := NewStreamingAgent(core.KindCode, m, enabledDescriptor("code_agent"), fixedID("art-1"))

	result, err := a.Execute(f.toolContext("fc-1"), core.OperationRequest{
		Operation:   core.OpCreate,
		Instruction: "write a function that reverses a string",
	})
	require.NoError(t, err)
	assert.True(t, result.Persisted)
	assert.Equal(t, "art-1", result.Summary.ID)
	assert.Equal(t, core.KindCode, result.Summary.Kind)
	assert.Equal(t, 1, result.Summary.Version)

	v, err := f.store.GetCurrent(context.Background(), "art-1")
	require.NoError(t, err)
	assert.Equal(t, 1, v.Number)
	assert.Equal(t, core.KindCode, v.Kind)
	assert.Equal(t, "func reverse(s string) string {}", v.Content)
	assert.Equal(t, core.OpCreate, v.Metadata.Operation)
	assert.Equal(t, "user-1", v.Metadata.Owner)

	events := f.drain()
	assertEnvelope(t, events, "art-1")

	// Deltas are whole-buffer replacements; the last one equals the content.
	var lastDelta string
	for _, ev := range events {
		if ev.Type == core.StreamEventContentDelta {
			lastDelta = ev.Payload
		}
	}
	assert.Equal(t, v.Content, lastDelta)
}

func TestStreamingAgentUpdate(t *testing.T) {
	f := newAgentFixture()
	ctx := context.Background()

	_, err := f.store.SaveVersion(ctx, core.VersionDraft{
		ArtifactID: "art-1", Title: "Reverse", Kind: core.KindCode,
		Content:  "func reverse(s string) string {}",
		Metadata: core.VersionMetadata{Operation: core.OpCreate},
	})
	require.NoError(t, err)

	m := model.NewScriptedModel("scripted",
		model.Turn{Text: `{"title": "Reverse", "content": "func reverse(s string) string { return s }"}`},
	)
	a := NewStreamingAgent(core.KindCode, m, enabledDescriptor("code_agent"))

	result, err := a.Execute(f.toolContext("fc-2"), core.OperationRequest{
		Operation:   core.OpUpdate,
		Instruction: "actually reverse the string",
		ArtifactID:  "art-1",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Summary.Version)

	v, err := f.store.GetCurrent(ctx, "art-1")
	require.NoError(t, err)
	assert.Equal(t, 2, v.Number)
	assert.Equal(t, 1, v.Parent)
	assert.Equal(t, core.OpUpdate, v.Metadata.Operation)
}

func TestStreamingAgentUpdateMissingArtifact(t *testing.T) {
	f := newAgentFixture()
	m := model.NewScriptedModel("scripted")
	a := NewStreamingAgent(core.KindCode, m, enabledDescriptor("code_agent"))

	_, err := a.Execute(f.toolContext("fc-3"), core.OperationRequest{
		Operation:   core.OpUpdate,
		Instruction: "change it",
		ArtifactID:  "ghost",
	})
	require.Error(t, err)
	assert.True(t, core.IsOperationError(err))
	assert.Empty(t, f.drain(), "no sink writes for failed lookup")
}

func TestStreamingAgentRevertDefaultTarget(t *testing.T) {
	f := newAgentFixture()
	ctx := context.Background()

	contents := []string{"one", "two", "three"}
	for i, c := range contents {
		parent := i
		_, err := f.store.SaveVersion(ctx, core.VersionDraft{
			ArtifactID: "art-1", Title: "Doc", Kind: core.KindDocument,
			Content: c, Parent: parent,
			Metadata: core.VersionMetadata{Operation: core.OpUpdate},
		})
		require.NoError(t, err)
	}

	a := NewStreamingAgent(core.KindDocument, model.NewScriptedModel("scripted"), enabledDescriptor("document_agent"))

	result, err := a.Execute(f.toolContext("fc-4"), core.OperationRequest{
		Operation:  core.OpRevert,
		ArtifactID: "art-1",
	})
	require.NoError(t, err)
	assert.Equal(t, 4, result.Summary.Version)

	v, err := f.store.GetCurrent(ctx, "art-1")
	require.NoError(t, err)
	assert.Equal(t, 4, v.Number)
	assert.Equal(t, "two", v.Content, "version 4 carries version 2's content")
	assert.Equal(t, 3, v.Metadata.RevertedFrom)
	assert.Equal(t, 2, v.Metadata.RevertedTo)
	assert.Equal(t, core.OpRevert, v.Metadata.Operation)

	events := f.drain()
	assertEnvelope(t, events, "art-1")

	// Revert emits exactly one deterministic delta.
	deltas := 0
	for _, ev := range events {
		if ev.Type == core.StreamEventContentDelta {
			deltas++
			assert.Equal(t, "two", ev.Payload)
		}
	}
	assert.Equal(t, 1, deltas)
}

func TestStreamingAgentRevertOutOfRange(t *testing.T) {
	f := newAgentFixture()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.store.SaveVersion(ctx, core.VersionDraft{
			ArtifactID: "art-1", Kind: core.KindCode, Content: "v",
			Metadata: core.VersionMetadata{Operation: core.OpUpdate},
		})
		require.NoError(t, err)
	}

	a := NewStreamingAgent(core.KindCode, model.NewScriptedModel("scripted"), enabledDescriptor("code_agent"))

	_, err := a.Execute(f.toolContext("fc-5"), core.OperationRequest{
		Operation:     core.OpRevert,
		ArtifactID:    "art-1",
		TargetVersion: 5,
	})
	require.Error(t, err)
	assert.True(t, core.IsOperationError(err))

	// No new version persisted, no sink writes before validation.
	v, err := f.store.GetCurrent(ctx, "art-1")
	require.NoError(t, err)
	assert.Equal(t, 3, v.Number)
	assert.Empty(t, f.drain())
}

func TestStreamingAgentGenerateInline(t *testing.T) {
	f := newAgentFixture()
	m := model.NewScriptedModel("scripted", model.Turn{Text: "an inline answer"})
	a := NewStreamingAgent(core.KindDocument, m, enabledDescriptor("document_agent"))

	result, err := a.Execute(f.toolContext("fc-6"), core.OperationRequest{
		Operation:   core.OpGenerate,
		Instruction: "summarize briefly",
	})
	require.NoError(t, err)
	assert.False(t, result.Persisted)
	assert.Equal(t, "an inline answer", result.InlineText)

	// generate never writes the sink and never persists.
	assert.Empty(t, f.drain())
	_, err = f.store.GetCurrent(context.Background(), "art-1")
	assert.Error(t, err)
}

func TestStreamingAgentDisabled(t *testing.T) {
	f := newAgentFixture()
	desc := enabledDescriptor("code_agent")
	desc.Enabled = false
	a := NewStreamingAgent(core.KindCode, model.NewScriptedModel("scripted"), desc)

	_, err := a.Execute(f.toolContext("fc-7"), core.OperationRequest{
		Operation:   core.OpCreate,
		Instruction: "anything",
	})
	require.Error(t, err)
	assert.True(t, core.IsAgentError(err))
}

func TestStreamingAgentFixUsesTemplate(t *testing.T) {
	f := newAgentFixture()
	ctx := context.Background()

	_, err := f.store.SaveVersion(ctx, core.VersionDraft{
		ArtifactID: "art-1", Title: "Script", Kind: core.KindCode,
		Content:  "print(x",
		Metadata: core.VersionMetadata{Operation: core.OpCreate},
	})
	require.NoError(t, err)

	recorder := &promptRecordingModel{
		inner: model.NewScriptedModel("scripted",
			model.Turn{Text: `{"title": "Script", "content": "print(x)"}`},
		),
	}
	desc := enabledDescriptor("code_agent")
	desc.UserPromptTemplate = "CODE:{currentContent} TASK:{updateInstruction} ERR:{errorInfo}"
	a := NewStreamingAgent(core.KindCode, recorder, desc)

	_, err = a.Execute(f.toolContext("fc-8"), core.OperationRequest{
		Operation:   core.OpFix,
		Instruction: "SyntaxError: unexpected EOF",
		ArtifactID:  "art-1",
	})
	require.NoError(t, err)

	assert.Contains(t, recorder.lastPrompt, "CODE:print(x")
	assert.Contains(t, recorder.lastPrompt, "ERR:SyntaxError: unexpected EOF")
}

func TestStreamingAgentModelFailureDoesNotPersist(t *testing.T) {
	f := newAgentFixture()
	m := model.NewScriptedModel("scripted", model.Turn{Err: assert.AnError})
	a := NewStreamingAgent(core.KindCode, m, enabledDescriptor("code_agent"), fixedID("art-x"))

	_, err := a.Execute(f.toolContext("fc-9"), core.OperationRequest{
		Operation:   core.OpCreate,
		Instruction: "write something",
	})
	require.Error(t, err)
	assert.True(t, core.IsProviderError(err))

	_, err = f.store.GetCurrent(context.Background(), "art-x")
	assert.ErrorIs(t, err, artifact.ErrNotFound)
}

// endlessModel streams filler chunks until its context is cancelled, closing
// done when its generation goroutine exits.
type endlessModel struct {
	done chan struct{}
}

func (m *endlessModel) Generate(ctx context.Context, _ model.Request) (<-chan model.Response, <-chan error) {
	respCh := make(chan model.Response)
	errCh := make(chan error, 1)
	go func() {
		defer close(m.done)
		defer close(respCh)
		defer close(errCh)
		for {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case respCh <- model.Response{Partial: true, Content: core.NewAssistantContent("chunk ")}:
			}
		}
	}()
	return respCh, errCh
}

func (m *endlessModel) Info() model.Info {
	return model.Info{Name: "endless", Provider: "test"}
}

func TestStreamingAgentSinkFailureReleasesModel(t *testing.T) {
	f := newAgentFixture()
	f.sink.Close() // every write fails from here on

	m := &endlessModel{done: make(chan struct{})}
	a := NewStreamingAgent(core.KindCode, m, enabledDescriptor("code_agent"), fixedID("art-x"))

	_, err := a.Execute(f.toolContext("fc-1"), core.OperationRequest{
		Operation:   core.OpCreate,
		Instruction: "stream forever",
	})
	require.Error(t, err)

	select {
	case <-m.done:
	case <-time.After(time.Second):
		t.Fatal("generation goroutine still running after execute returned")
	}

	_, err = f.store.GetCurrent(context.Background(), "art-x")
	assert.ErrorIs(t, err, artifact.ErrNotFound)
}

// selfCancellingModel emits a partial draft, cancels the turn, then reports
// the cancellation through its error channel.
type selfCancellingModel struct {
	cancel context.CancelFunc
}

func (m *selfCancellingModel) Generate(ctx context.Context, _ model.Request) (<-chan model.Response, <-chan error) {
	respCh := make(chan model.Response, 4)
	errCh := make(chan error, 1)
	go func() {
		defer close(respCh)
		defer close(errCh)
		respCh <- model.Response{Partial: true, Content: core.NewAssistantContent(`{"title": "Doc", "content": "par`)}
		respCh <- model.Response{Partial: true, Content: core.NewAssistantContent(`tial`)}
		m.cancel()
		errCh <- ctx.Err()
	}()
	return respCh, errCh
}

func (m *selfCancellingModel) Info() model.Info {
	return model.Info{Name: "self-cancelling", Provider: "test"}
}

func TestStreamingAgentCancellationDoesNotPersist(t *testing.T) {
	f := newAgentFixture()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := &selfCancellingModel{cancel: cancel}
	a := NewStreamingAgent(core.KindCode, m, enabledDescriptor("code_agent"), fixedID("art-c"))

	toolCtx := core.NewToolContext(ctx, core.NewCorrelationID(), "fc-1",
		core.Identity{UserID: "user-1"}, f.sink, core.NewArtifactContext(), f.store, logging.NoOpLogger{})

	_, err := a.Execute(toolCtx, core.OperationRequest{
		Operation:   core.OpCreate,
		Instruction: "write code",
	})
	require.Error(t, err)

	_, err = f.store.GetCurrent(context.Background(), "art-c")
	assert.ErrorIs(t, err, artifact.ErrNotFound, "partial output must never be persisted")

	for _, ev := range f.drain() {
		assert.NotEqual(t, core.StreamEventFinish, ev.Type, "no finish after cancellation")
	}
}

// promptRecordingModel captures the last prompt while delegating to an inner
// model.
type promptRecordingModel struct {
	inner      model.Model
	lastPrompt string
}

func (m *promptRecordingModel) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	if len(req.Contents) > 0 {
		m.lastPrompt = req.Contents[len(req.Contents)-1].Text()
	}
	return m.inner.Generate(ctx, req)
}

func (m *promptRecordingModel) Info() model.Info { return m.inner.Info() }
