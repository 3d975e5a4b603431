package model

import (
	"context"
	"strings"

	"github.com/hupe1980/artifactmesh/core"
)

// Draft is a whole-buffer snapshot of a structured generation in flight. Each
// snapshot replaces the previous one entirely, it is never an append delta.
type Draft struct {
	Title   string // Extracted title, may stabilize before content completes
	Content string // Full artifact content accumulated so far
	Final   bool   // Set on the last snapshot of the stream
}

// StreamStructured asks the model for a JSON object with "title" and "content"
// fields and converts its token stream into whole-buffer Draft snapshots. The
// raw stream is accumulated and re-parsed leniently on every delta so that
// partially transmitted JSON still yields usable drafts. The returned channels
// follow the same closure contract as Model.Generate.
func StreamStructured(ctx context.Context, m Model, instructions, prompt string) (<-chan Draft, <-chan error) {
	draftCh := make(chan Draft, 32)
	errCh := make(chan error, 1)

	respCh, modelErrCh := m.Generate(ctx, Request{
		Instructions: instructions,
		Contents:     []core.Content{core.NewUserContent(prompt)},
		Stream:       true,
	})

	go func() {
		defer close(draftCh)
		defer close(errCh)

		var buf strings.Builder
		var last Draft
		for resp := range respCh {
			text := resp.Content.Text()
			if resp.Partial {
				buf.WriteString(text)
			} else if buf.Len() == 0 && text != "" {
				// Non-streaming models deliver everything in one final response.
				buf.WriteString(text)
			}

			d := extractDraft(buf.String())
			if !resp.Partial {
				d.Final = true
			}
			if d == last && !d.Final {
				continue
			}
			last = d

			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case draftCh <- d:
			}
		}
		if err := <-modelErrCh; err != nil {
			errCh <- err
		}
	}()

	return draftCh, errCh
}

// GenerateText runs a non-streaming text generation and returns the final
// assistant text. It is the helper behind inline (non-artifact) operations.
func GenerateText(ctx context.Context, m Model, instructions, prompt string) (string, error) {
	respCh, errCh := m.Generate(ctx, Request{
		Instructions: instructions,
		Contents:     []core.Content{core.NewUserContent(prompt)},
	})

	var out strings.Builder
	for resp := range respCh {
		out.WriteString(resp.Content.Text())
	}
	if err := <-errCh; err != nil {
		return "", err
	}
	return out.String(), nil
}

// extractDraft pulls "title" and "content" string fields out of a possibly
// truncated JSON object. encoding/json rejects incomplete input outright, so
// a small hand scanner recovers whatever prefix of each field has arrived.
func extractDraft(raw string) Draft {
	d := Draft{
		Title:   extractJSONString(raw, "title"),
		Content: extractJSONString(raw, "content"),
	}
	// Models occasionally ignore the JSON instruction; treat plain text as
	// the content rather than dropping it.
	if d.Title == "" && d.Content == "" && !strings.HasPrefix(strings.TrimSpace(raw), "{") {
		d.Content = raw
	}
	return d
}

// extractJSONString finds `"key"` at the top level of raw and decodes the
// string value that follows, tolerating a missing closing quote.
func extractJSONString(raw, key string) string {
	needle := `"` + key + `"`
	idx := strings.Index(raw, needle)
	if idx < 0 {
		return ""
	}
	rest := raw[idx+len(needle):]

	// Skip whitespace and the colon.
	rest = strings.TrimLeft(rest, " \t\r\n")
	if !strings.HasPrefix(rest, ":") {
		return ""
	}
	rest = strings.TrimLeft(rest[1:], " \t\r\n")
	if !strings.HasPrefix(rest, `"`) {
		return ""
	}
	rest = rest[1:]

	var out strings.Builder
	escaped := false
	for _, r := range rest {
		if escaped {
			switch r {
			case 'n':
				out.WriteRune('\n')
			case 't':
				out.WriteRune('\t')
			case 'r':
				out.WriteRune('\r')
			case '"', '\\', '/':
				out.WriteRune(r)
			default:
				// Unsupported escape (e.g. a split \u sequence), keep it raw.
				out.WriteRune('\\')
				out.WriteRune(r)
			}
			escaped = false
			continue
		}
		switch r {
		case '\\':
			escaped = true
		case '"':
			return out.String()
		default:
			out.WriteRune(r)
		}
	}
	// Closing quote never arrived, return the prefix seen so far.
	return out.String()
}
