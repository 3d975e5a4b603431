package artifactmesh

import (
	"context"
	"testing"

	"github.com/hupe1980/artifactmesh/config"
	"github.com/hupe1980/artifactmesh/core"
	"github.com/hupe1980/artifactmesh/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMesh(t *testing.T, primary model.Model) *ArtifactMesh {
	t.Helper()

	mesh := New(primary, config.Key("assistant", "scripted"))
	err := mesh.PatchConfig(context.Background(), func(cfg *config.ToolConfig) {
		cfg.Enabled = true
		cfg.Tools = map[string]config.ToolSettings{
			"code_agent": {
				Enabled:               true,
				Description:           "Generates and edits code artifacts",
				InputParamName:        "input",
				InputParamDescription: "What the code should do",
			},
		}
	})
	require.NoError(t, err)
	return mesh
}

func TestConverseSyncEndToEnd(t *testing.T) {
	primary := model.NewScriptedModel("primary",
		model.Turn{ToolCalls: []core.FunctionCall{{
			ID:        "call-1",
			Name:      "code_agent",
			Arguments: `{"input": "write a hello world script"}`,
		}}},
		model.Turn{Text: "Done, see the artifact."},
	)
	mesh := newTestMesh(t, primary)

	sub := model.NewScriptedModel("sub",
		model.Turn{Text: `{"title": "Hello", "content": "print(\"hello\")"}`})
	require.NoError(t, mesh.RegisterAgent(context.Background(), "code_agent", core.KindCode, sub))

	resp, events, err := mesh.ConverseSync(context.Background(),
		[]core.Content{core.NewUserContent("hello world please")},
		core.Identity{UserID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, "Done, see the artifact.", resp.Text)
	require.Len(t, resp.Artifacts, 1)

	finishes := 0
	for _, ev := range events {
		if ev.Type == core.StreamEventFinish {
			finishes++
		}
	}
	assert.Equal(t, 1, finishes)

	v, err := mesh.VersionStore().GetCurrent(context.Background(), resp.Artifacts[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 1, v.Number)
	assert.Equal(t, `print("hello")`, v.Content)
}

func TestRegisterAgentUnknownToolFailsClosed(t *testing.T) {
	primary := model.NewScriptedModel("primary")
	mesh := newTestMesh(t, primary)

	err := mesh.RegisterAgent(context.Background(), "diagram_agent", core.KindDiagram,
		model.NewScriptedModel("sub"))
	require.Error(t, err)
	assert.True(t, core.IsConfigError(err))
}
