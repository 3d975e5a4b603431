package util

import "testing"

func TestRenderTemplate(t *testing.T) {
	out, err := RenderTemplate("Hello {{.name}}", map[string]any{"name": "World"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out != "Hello World" {
		t.Fatalf("unexpected output: %q", out)
	}

	// Fast path: no markers
	out, err = RenderTemplate("plain text", nil)
	if err != nil || out != "plain text" {
		t.Fatalf("fast path failed: %q %v", out, err)
	}
}

func TestRenderTemplateNoEscaping(t *testing.T) {
	out, err := RenderTemplate("code: {{.code}}", map[string]any{"code": `if a < b && c > d { return "x" }`})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out != `code: if a < b && c > d { return "x" }` {
		t.Fatalf("code was escaped: %q", out)
	}
}

func TestSubstitutePlaceholders(t *testing.T) {
	tmpl := "Update this:\n{currentContent}\n\nInstruction: {updateInstruction}"
	out := SubstitutePlaceholders(tmpl, map[string]string{
		"currentContent":    "print('hi')",
		"updateInstruction": "add a docstring",
	})
	want := "Update this:\nprint('hi')\n\nInstruction: add a docstring"
	if out != want {
		t.Fatalf("got %q want %q", out, want)
	}

	// Unknown placeholders stay visible.
	out = SubstitutePlaceholders("fix {errorInfo} and {typoPlaceholder}", map[string]string{"errorInfo": "NPE"})
	if out != "fix NPE and {typoPlaceholder}" {
		t.Fatalf("unknown placeholder mangled: %q", out)
	}
}
