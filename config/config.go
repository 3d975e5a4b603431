package config

import "fmt"

// Input mode discriminants for ToolSettings. The mode selects an explicit
// parameter shape rather than probing the payload at runtime.
const (
	InputModeSimple = "simple" // one free-text input parameter
	InputModeNamed  = "named"  // a fixed set of named parameters
)

// ParamSpec describes one parameter of a named-parameter tool.
type ParamSpec struct {
	Name        string `yaml:"name" json:"name"`
	Type        string `yaml:"type" json:"type"` // JSON schema type, defaults to "string"
	Description string `yaml:"description" json:"description"`
	Required    bool   `yaml:"required" json:"required"`
}

// ToolSettings is the per-tool configuration payload.
type ToolSettings struct {
	Enabled            bool   `yaml:"enabled" json:"enabled"`
	Description        string `yaml:"description" json:"description"`
	SystemPrompt       string `yaml:"system_prompt,omitempty" json:"systemPrompt,omitempty"`
	UserPromptTemplate string `yaml:"user_prompt_template,omitempty" json:"userPromptTemplate,omitempty"`

	// InputMode selects the parameter shape, empty means InputModeSimple.
	InputMode string `yaml:"input_mode,omitempty" json:"inputMode,omitempty"`

	// Simple mode: the single free-text parameter exposed to the model.
	InputParamName        string `yaml:"input_param_name,omitempty" json:"inputParamName,omitempty"`
	InputParamDescription string `yaml:"input_param_description,omitempty" json:"inputParamDescription,omitempty"`

	// Named mode: the full parameter list.
	Params []ParamSpec `yaml:"params,omitempty" json:"params,omitempty"`
}

// ToolConfig is the configuration payload stored under one composite key.
type ToolConfig struct {
	Enabled bool                    `yaml:"enabled" json:"enabled"`
	Tools   map[string]ToolSettings `yaml:"tools" json:"tools"`
}

// Clone returns a deep copy so callers can mutate freely.
func (c ToolConfig) Clone() ToolConfig {
	out := ToolConfig{Enabled: c.Enabled}
	if c.Tools != nil {
		out.Tools = make(map[string]ToolSettings, len(c.Tools))
		for name, ts := range c.Tools {
			if len(ts.Params) > 0 {
				ts.Params = append([]ParamSpec(nil), ts.Params...)
			}
			out.Tools[name] = ts
		}
	}
	return out
}

// Key builds the composite config key for an agent type and provider,
// e.g. Key("python_agent", "google") == "python_agent_google".
func Key(agentType, provider string) string {
	return fmt.Sprintf("%s_%s", agentType, provider)
}
