package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/artifactmesh/config"
	"github.com/hupe1980/artifactmesh/core"
	"github.com/hupe1980/artifactmesh/internal/util"
	"github.com/hupe1980/artifactmesh/logging"
	"github.com/stretchr/testify/assert"
)

// -------------------- Schema & Validation Tests --------------------

type sampleSchema struct {
	A string `json:"a" description:"Field A"`
	B *int   `json:"b" description:"Optional pointer field"`
	C int    `json:"c,omitempty" description:"Omit empty field"`
}

func TestSchemaFromStruct(t *testing.T) {
	schema := util.SchemaFromStruct(sampleSchema{})
	props, ok := schema["properties"].(map[string]any)
	assert.True(t, ok)
	assert.Contains(t, props, "a")
	assert.Contains(t, props, "b")
	assert.Contains(t, props, "c")
	// Required only includes non-pointer, non-omitempty exported fields.
	req, _ := schema["required"].([]string)
	assert.ElementsMatch(t, []string{"a"}, req)
}

func TestValidateArguments(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"x": map[string]any{"type": "integer"},
		},
		// []any mirrors the JSON-decoded schema shape.
		"required": []any{"x"},
	}

	err := util.ValidateArguments(map[string]any{"x": 5}, schema)
	assert.NoError(t, err)

	err = util.ValidateArguments(map[string]any{}, schema)
	assert.Error(t, err)
	if vErr, ok := err.(*util.ArgumentError); ok {
		assert.Equal(t, "x", vErr.Field)
	} else {
		t.Fatalf("expected ArgumentError, got %T", err)
	}

	err = util.ValidateArguments(map[string]any{"x": "not-int"}, schema)
	assert.Error(t, err)
	if vErr, ok := err.(*util.ArgumentError); ok {
		assert.Contains(t, vErr.Message, "expected integer")
	} else {
		t.Fatalf("expected ArgumentError, got %T", err)
	}
}

func TestValidateArgumentsStringRequired(t *testing.T) {
	schema := util.SchemaFromStruct(sampleSchema{})

	err := util.ValidateArguments(map[string]any{}, schema)
	assert.Error(t, err, "required []string from SchemaFromStruct must be enforced")

	err = util.ValidateArguments(map[string]any{"a": "value"}, schema)
	assert.NoError(t, err)
}

func testToolContext(fcID string) *core.ToolContext {
	return core.NewToolContext(
		context.Background(),
		core.NewCorrelationID(),
		fcID,
		core.Identity{UserID: "user-1"},
		core.NewChannelSink(64),
		core.NewArtifactContext(),
		nil,
		logging.NoOpLogger{},
	)
}

// -------------------- FunctionTool Tests --------------------

func TestFunctionTool_Success(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}

	sumTool := NewFunctionTool("sum", "Add numbers", params, func(_ *core.ToolContext, args map[string]any) (any, error) {
		a := args["a"].(float64)
		b := args["b"].(float64)
		return a + b, nil
	})

	result, err := sumTool.Call(testToolContext("fc1"), map[string]any{"a": 2.0, "b": 3.0})
	assert.NoError(t, err)
	assert.Equal(t, 5.0, result)
}

func TestFunctionTool_ValidationError(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
		},
		"required": []any{"a"},
	}
	tTool := NewFunctionTool("test", "Test", params, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return 0, nil
	})
	_, err := tTool.Call(testToolContext("fc2"), map[string]any{})
	assert.Error(t, err)
	toolErr, ok := err.(*ToolError)
	assert.True(t, ok)
	assert.Equal(t, "VALIDATION_ERROR", toolErr.Code)
}

func TestFunctionTool_ExecutionError(t *testing.T) {
	params := map[string]any{"type": "object", "properties": map[string]any{}}
	execTool := NewFunctionTool("fail", "Fails", params, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, errors.New("boom")
	})
	_, err := execTool.Call(testToolContext("fc3"), map[string]any{})
	assert.Error(t, err)
	toolErr, ok := err.(*ToolError)
	assert.True(t, ok)
	assert.Equal(t, "EXECUTION_ERROR", toolErr.Code)
}

// -------------------- AgentTool Tests --------------------

type fakeDelegate struct {
	kind core.ArtifactKind
	reqs []core.OperationRequest
	res  core.OperationResult
	err  error
}

func (d *fakeDelegate) Kind() core.ArtifactKind { return d.kind }

func (d *fakeDelegate) Execute(_ *core.ToolContext, req core.OperationRequest) (core.OperationResult, error) {
	d.reqs = append(d.reqs, req)
	if d.err != nil {
		return core.OperationResult{}, d.err
	}
	return d.res, nil
}

func simpleDescriptor(name string) config.ToolDescriptor {
	return config.ToolDescriptor{
		Name:        name,
		Description: "Generates code",
		Shape:       config.SimpleParameter{Name: "input", Description: "What to build"},
	}
}

func TestAgentTool_SimpleCreateThenUpdate(t *testing.T) {
	delegate := &fakeDelegate{
		kind: core.KindCode,
		res: core.OperationResult{
			Summary:   core.ArtifactSummary{ID: "art-1", Title: "Sorter", Kind: core.KindCode, Version: 1},
			Persisted: true,
		},
	}
	at := NewAgentTool(simpleDescriptor("code_agent"), delegate)
	tc := testToolContext("fc-a")

	result, err := at.Call(tc, map[string]any{"input": "write a sorter"})
	assert.NoError(t, err)
	m := result.(map[string]any)
	assert.Equal(t, "art-1", m["id"])
	assert.Equal(t, "Sorter", m["title"])
	assert.Equal(t, "code", m["kind"])
	assert.NotContains(t, m, "content")

	// First invocation for the kind infers create.
	assert.Equal(t, core.OpCreate, delegate.reqs[0].Operation)

	// The produced artifact is recorded, so the next call infers update.
	_, err = at.Call(tc, map[string]any{"input": "make it descending"})
	assert.NoError(t, err)
	assert.Equal(t, core.OpUpdate, delegate.reqs[1].Operation)
	assert.Equal(t, "art-1", delegate.reqs[1].ArtifactID)
}

func TestAgentTool_NamedParameters(t *testing.T) {
	delegate := &fakeDelegate{
		kind: core.KindCode,
		res: core.OperationResult{
			Summary:   core.ArtifactSummary{ID: "art-9", Title: "Sorter", Kind: core.KindCode, Version: 4},
			Persisted: true,
		},
	}
	desc := config.ToolDescriptor{
		Name:        "code_agent",
		Description: "Edits code",
		Shape: config.NamedParameterSet{Params: []config.ParamSpec{
			{Name: "operation", Description: "op", Required: true},
			{Name: "input", Description: "instruction"},
			{Name: "artifact_id", Description: "target"},
			{Name: "target_version", Type: "integer", Description: "revert target"},
		}},
	}
	at := NewAgentTool(desc, delegate)

	_, err := at.Call(testToolContext("fc-n"), map[string]any{
		"operation":      "revert",
		"artifact_id":    "art-9",
		"target_version": float64(2),
	})
	assert.NoError(t, err)
	req := delegate.reqs[0]
	assert.Equal(t, core.OpRevert, req.Operation)
	assert.Equal(t, "art-9", req.ArtifactID)
	assert.Equal(t, 2, req.TargetVersion)
}

func TestAgentTool_MissingInput(t *testing.T) {
	at := NewAgentTool(simpleDescriptor("code_agent"), &fakeDelegate{kind: core.KindCode})

	_, err := at.Call(testToolContext("fc-x"), map[string]any{})
	assert.Error(t, err)
	toolErr, ok := err.(*ToolError)
	assert.True(t, ok)
	assert.Equal(t, "VALIDATION_ERROR", toolErr.Code)
}

func TestAgentTool_DelegateErrorPassesThrough(t *testing.T) {
	wantErr := core.NewAgentError("code_agent", "agent disabled", "corr-1")
	at := NewAgentTool(simpleDescriptor("code_agent"), &fakeDelegate{kind: core.KindCode, err: wantErr})

	_, err := at.Call(testToolContext("fc-e"), map[string]any{"input": "do it"})
	assert.Error(t, err)
	assert.True(t, core.IsAgentError(err))
}

func TestAgentTool_InlineResult(t *testing.T) {
	delegate := &fakeDelegate{
		kind: core.KindDocument,
		res:  core.OperationResult{InlineText: "a short answer", Persisted: false},
	}
	at := NewAgentTool(simpleDescriptor("document_agent"), delegate)
	tc := testToolContext("fc-i")

	result, err := at.Call(tc, map[string]any{"input": "summarize"})
	assert.NoError(t, err)
	assert.Equal(t, "a short answer", result)

	// Inline results never register artifacts.
	_, ok := tc.Artifacts().Latest()
	assert.False(t, ok)
}

// -------------------- ToolError Formatting --------------------

func TestToolErrorFormatting(t *testing.T) {
	err := NewToolError("demo", "something failed", "E123")
	assert.Contains(t, err.Error(), "E123")
	assert.Contains(t, err.Error(), "demo")
}
