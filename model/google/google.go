// Package google provides a model wrapper for the Gemini API via the official
// genai client. The adapter covers text generation only; tool calling is
// handled by the openai and anthropic adapters.
package google

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/artifactmesh/core"
	"github.com/hupe1980/artifactmesh/model"
	genai "google.golang.org/genai"
)

// Options configures the Gemini model adapter.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int32
}

// Model wraps the genai client behind the generic model.Model interface.
type Model struct {
	client *genai.Client
	opts   Options
}

// NewModel creates a new Gemini model. The genai client reads GEMINI_API_KEY
// from the environment.
func NewModel(ctx context.Context, optFns ...func(o *Options)) (*Model, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	return NewModelFromClient(cli, optFns...), nil
}

// NewModelFromClient creates a new Gemini model from an existing client.
func NewModelFromClient(client *genai.Client, optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:       "gemini-2.5-flash",
		Temperature: 0.7,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// Generate implements unified streaming / non-streaming text generation.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		contents := buildContents(req)
		config := &genai.GenerateContentConfig{
			Temperature:     genai.Ptr(float32(m.opts.Temperature)),
			MaxOutputTokens: m.opts.MaxTokens,
		}
		if req.Instructions != "" {
			config.SystemInstruction = &genai.Content{
				Parts: []*genai.Part{{Text: req.Instructions}},
			}
		}

		if req.Stream {
			m.handleStreaming(ctx, contents, config, out, errCh)
			return
		}
		m.handleNonStreaming(ctx, contents, config, out, errCh)
	}()

	return out, errCh
}

// buildContents converts normalized contents into genai contents. Tool parts
// are flattened to text since this adapter does not do tool calling.
func buildContents(req model.Request) []*genai.Content {
	var contents []*genai.Content
	for _, c := range req.Contents {
		if c.Role == "system" {
			continue // carried via SystemInstruction
		}
		text := c.Text()
		if text == "" {
			continue
		}
		role := genai.RoleUser
		if c.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: text}},
		})
	}
	return contents
}

func (m *Model) handleStreaming(
	ctx context.Context,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
	out chan<- model.Response,
	errCh chan<- error,
) {
	var full strings.Builder
	for resp, err := range m.client.Models.GenerateContentStream(ctx, m.opts.Model, contents, config) {
		if err != nil {
			errCh <- fmt.Errorf("gemini streaming error: %w", err)
			return
		}
		text := candidateText(resp)
		if text == "" {
			continue
		}
		full.WriteString(text)
		out <- model.Response{
			Partial: true,
			Content: core.Content{
				Role:  "assistant",
				Parts: []core.Part{core.TextPart{Text: text}},
			},
		}
	}
	out <- model.Response{
		Partial:      false,
		Content:      core.NewAssistantContent(full.String()),
		FinishReason: "stop",
	}
}

func (m *Model) handleNonStreaming(
	ctx context.Context,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
	out chan<- model.Response,
	errCh chan<- error,
) {
	resp, err := m.client.Models.GenerateContent(ctx, m.opts.Model, contents, config)
	if err != nil {
		errCh <- fmt.Errorf("gemini api error: %w", err)
		return
	}
	text := candidateText(resp)
	if text == "" {
		errCh <- fmt.Errorf("no candidates returned")
		return
	}
	out <- model.Response{
		Partial:      false,
		Content:      core.NewAssistantContent(text),
		FinishReason: "stop",
	}
}

// candidateText extracts the concatenated text of the first candidate.
func candidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String()
}

// Info returns metadata describing this Gemini model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      "google",
		SupportsTools: false,
	}
}
