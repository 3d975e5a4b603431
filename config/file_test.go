package config

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tools.yaml")

	store, err := NewFileStore(path)
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "code_agent_openai")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	err = store.Patch(context.Background(), "code_agent_openai", func(cfg *ToolConfig) {
		cfg.Enabled = true
		cfg.Tools = map[string]ToolSettings{
			"code_agent": {
				Enabled:               true,
				Description:           "Generates code",
				InputParamName:        "input",
				InputParamDescription: "What to build",
			},
		}
	})
	require.NoError(t, err)

	// Reopen from disk to prove the patch persisted.
	reopened, err := NewFileStore(path)
	require.NoError(t, err)

	cfg, err := reopened.Get(context.Background(), "code_agent_openai")
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "Generates code", cfg.Tools["code_agent"].Description)
}

func TestFileStorePatchExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tools.yaml")

	store, err := NewFileStore(path)
	require.NoError(t, err)

	require.NoError(t, store.Patch(context.Background(), "k", func(cfg *ToolConfig) {
		cfg.Enabled = true
	}))
	require.NoError(t, store.Patch(context.Background(), "k", func(cfg *ToolConfig) {
		cfg.Tools = map[string]ToolSettings{"t": {Enabled: false}}
	}))

	cfg, err := store.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)
	assert.Contains(t, cfg.Tools, "t")
}
