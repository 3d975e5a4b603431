package config

import (
	"context"
	"errors"
	"fmt"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hupe1980/artifactmesh/core"
	"github.com/hupe1980/artifactmesh/logging"
)

// ParameterShape is the closed set of input shapes a delegated tool exposes
// to the model. The shape is selected by the InputMode discriminant in
// ToolSettings, never by probing payloads at runtime.
type ParameterShape interface {
	isParameterShape()

	// Schema returns the JSON schema for the tool's parameters.
	Schema() map[string]any
}

// SimpleParameter exposes one free-text input parameter.
type SimpleParameter struct {
	Name        string
	Description string
}

func (SimpleParameter) isParameterShape() {}

// Schema implements ParameterShape.
func (p SimpleParameter) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			p.Name: map[string]any{
				"type":        "string",
				"description": p.Description,
			},
		},
		"required": []string{p.Name},
	}
}

// NamedParameterSet exposes a fixed set of named parameters.
type NamedParameterSet struct {
	Params []ParamSpec
}

func (NamedParameterSet) isParameterShape() {}

// Schema implements ParameterShape.
func (p NamedParameterSet) Schema() map[string]any {
	properties := map[string]any{}
	var required []string
	for _, spec := range p.Params {
		typ := spec.Type
		if typ == "" {
			typ = "string"
		}
		properties[spec.Name] = map[string]any{
			"type":        typ,
			"description": spec.Description,
		}
		if spec.Required {
			required = append(required, spec.Name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// ToolDescriptor is a validated, model-ready view of one enabled tool.
type ToolDescriptor struct {
	Name               string
	Enabled            bool
	Description        string
	SystemPrompt       string
	UserPromptTemplate string
	Shape              ParameterShape
}

// ResolverOptions configure a Resolver.
type ResolverOptions struct {
	// CacheSize bounds the LRU of resolved descriptor sets. Zero disables
	// caching, keeping resolution deterministic for tests.
	CacheSize int
	Logger    logging.Logger
}

// Resolver validates stored tool configuration into descriptors, failing
// closed on any enabled-but-incomplete tool. Resolved sets are cached per
// config key until Invalidate or a patch through the resolver.
type Resolver struct {
	store  Store
	cache  *lru.Cache[string, []ToolDescriptor]
	logger logging.Logger
}

// NewResolver creates a Resolver over the given store.
func NewResolver(store Store, optFns ...func(o *ResolverOptions)) *Resolver {
	opts := ResolverOptions{
		CacheSize: 64,
		Logger:    logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var cache *lru.Cache[string, []ToolDescriptor]
	if opts.CacheSize > 0 {
		cache, _ = lru.New[string, []ToolDescriptor](opts.CacheSize)
	}

	return &Resolver{store: store, cache: cache, logger: opts.Logger}
}

// Resolve returns the validated descriptors of every enabled tool under key,
// sorted by tool name. A disabled config yields an empty set. Any enabled
// tool with missing description or incomplete parameter settings fails the
// whole resolution with a ConfigError.
func (r *Resolver) Resolve(ctx context.Context, key string) ([]ToolDescriptor, error) {
	if r.cache != nil {
		if descs, ok := r.cache.Get(key); ok {
			r.logger.Debug("config.resolve.cache.hit", "key", key)
			return descs, nil
		}
	}

	cfg, err := r.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, core.NewConfigError(key, "configuration not found", "")
		}
		return nil, fmt.Errorf("load config %s: %w", key, err)
	}

	descs, err := buildDescriptors(key, cfg)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		r.cache.Add(key, descs)
	}
	r.logger.Debug("config.resolve", "key", key, "tools", len(descs))
	return descs, nil
}

// ResolveTool resolves a single tool by name under key. A missing or disabled
// tool is a ConfigError.
func (r *Resolver) ResolveTool(ctx context.Context, key, name string) (ToolDescriptor, error) {
	descs, err := r.Resolve(ctx, key)
	if err != nil {
		return ToolDescriptor{}, err
	}
	for _, d := range descs {
		if d.Name == name {
			return d, nil
		}
	}
	return ToolDescriptor{}, core.NewConfigError(key, fmt.Sprintf("tool %q not enabled", name), "")
}

// Invalidate drops the cached descriptors under key.
func (r *Resolver) Invalidate(key string) {
	if r.cache != nil {
		r.cache.Remove(key)
	}
}

// Patch applies the update through the underlying store and invalidates the
// cache entry so the next Resolve observes the new configuration.
func (r *Resolver) Patch(ctx context.Context, key string, update func(cfg *ToolConfig)) error {
	if err := r.store.Patch(ctx, key, update); err != nil {
		return err
	}
	r.Invalidate(key)
	r.logger.Info("config.patch", "key", key)
	return nil
}

func buildDescriptors(key string, cfg ToolConfig) ([]ToolDescriptor, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	names := make([]string, 0, len(cfg.Tools))
	for name := range cfg.Tools {
		names = append(names, name)
	}
	sort.Strings(names)

	var descs []ToolDescriptor
	for _, name := range names {
		ts := cfg.Tools[name]
		if !ts.Enabled {
			continue
		}
		desc, err := buildDescriptor(key, name, ts)
		if err != nil {
			return nil, err
		}
		descs = append(descs, desc)
	}
	return descs, nil
}

func buildDescriptor(key, name string, ts ToolSettings) (ToolDescriptor, error) {
	if ts.Description == "" {
		return ToolDescriptor{}, core.NewConfigError(key, fmt.Sprintf("tool %q enabled without description", name), "")
	}

	var shape ParameterShape
	switch ts.InputMode {
	case "", InputModeSimple:
		if ts.InputParamName == "" || ts.InputParamDescription == "" {
			return ToolDescriptor{}, core.NewConfigError(key,
				fmt.Sprintf("tool %q missing input parameter name or description", name), "")
		}
		shape = SimpleParameter{Name: ts.InputParamName, Description: ts.InputParamDescription}
	case InputModeNamed:
		if len(ts.Params) == 0 {
			return ToolDescriptor{}, core.NewConfigError(key,
				fmt.Sprintf("tool %q uses named input mode without params", name), "")
		}
		for _, spec := range ts.Params {
			if spec.Name == "" || spec.Description == "" {
				return ToolDescriptor{}, core.NewConfigError(key,
					fmt.Sprintf("tool %q has a param without name or description", name), "")
			}
		}
		shape = NamedParameterSet{Params: append([]ParamSpec(nil), ts.Params...)}
	default:
		return ToolDescriptor{}, core.NewConfigError(key,
			fmt.Sprintf("tool %q has unknown input mode %q", name, ts.InputMode), "")
	}

	return ToolDescriptor{
		Name:               name,
		Enabled:            true,
		Description:        ts.Description,
		SystemPrompt:       ts.SystemPrompt,
		UserPromptTemplate: ts.UserPromptTemplate,
		Shape:              shape,
	}, nil
}
