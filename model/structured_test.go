package model

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONString(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		key  string
		want string
	}{
		{
			name: "complete object",
			raw:  `{"title": "Fibonacci", "content": "def fib(n):"}`,
			key:  "title",
			want: "Fibonacci",
		},
		{
			name: "truncated value",
			raw:  `{"title": "Fibonacci", "content": "def fib`,
			key:  "content",
			want: "def fib",
		},
		{
			name: "missing key",
			raw:  `{"title": "Fibonacci"`,
			key:  "content",
			want: "",
		},
		{
			name: "escaped newline",
			raw:  `{"content": "line1\nline2"}`,
			key:  "content",
			want: "line1\nline2",
		},
		{
			name: "escaped quote",
			raw:  `{"content": "say \"hi\""}`,
			key:  "content",
			want: `say "hi"`,
		},
		{
			name: "key cut before colon",
			raw:  `{"title"`,
			key:  "title",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractJSONString(tt.raw, tt.key))
		})
	}
}

func TestStreamStructuredSnapshots(t *testing.T) {
	m := NewScriptedModel("test",
		Turn{Text: `{"title": "Sort", "content": "func sort() {\n}\n"}`, DeltaSize: 7},
	)

	draftCh, errCh := StreamStructured(context.Background(), m, "produce code", "write a sort")

	var drafts []Draft
	for d := range draftCh {
		drafts = append(drafts, d)
	}
	require.NoError(t, <-errCh)
	require.NotEmpty(t, drafts)

	final := drafts[len(drafts)-1]
	assert.True(t, final.Final)
	assert.Equal(t, "Sort", final.Title)
	assert.Equal(t, "func sort() {\n}\n", final.Content)

	// Whole-buffer semantics: every snapshot's content is a prefix of the next.
	for i := 1; i < len(drafts); i++ {
		assert.True(t, len(drafts[i].Content) >= len(drafts[i-1].Content))
		assert.Equal(t, drafts[i-1].Content, drafts[i].Content[:len(drafts[i-1].Content)])
	}
}

func TestStreamStructuredNonStreamingModel(t *testing.T) {
	m := NewMockModel("mock", "test")
	m.AddResponse("write", `{"title": "Doc", "content": "hello"}`)

	draftCh, errCh := StreamStructured(context.Background(), m, "", "write")

	var last Draft
	for d := range draftCh {
		last = d
	}
	require.NoError(t, <-errCh)
	assert.True(t, last.Final)
	assert.Equal(t, "Doc", last.Title)
	assert.Equal(t, "hello", last.Content)
}

func TestExtractDraftPlainTextFallback(t *testing.T) {
	d := extractDraft("just some prose, no JSON at all")
	assert.Equal(t, "just some prose, no JSON at all", d.Content)
	assert.Empty(t, d.Title)
}

func TestGenerateText(t *testing.T) {
	m := NewMockModel("mock", "test")
	m.AddResponse("what is this", "the answer")

	out, err := GenerateText(context.Background(), m, "explain", "what is this")
	require.NoError(t, err)
	assert.Equal(t, "the answer", out)
}

func TestScriptedModelExhausted(t *testing.T) {
	m := NewScriptedModel("test")

	respCh, errCh := m.Generate(context.Background(), Request{})
	for range respCh {
	}
	require.Error(t, <-errCh)
}
