package share

import (
	"bytes"
	"fmt"
	"text/template"
)

// Renderer holds a parsed set of named text templates for outbound messages.
// Missing keys are errors so a renamed field never ships as "<no value>".
type Renderer struct {
	set *template.Template
}

// NewRenderer parses every template in defs once.
func NewRenderer(defs map[string]string) (*Renderer, error) {
	set := template.New("share").Option("missingkey=error")
	for name, text := range defs {
		if text == "" {
			return nil, fmt.Errorf("share: template %q is empty", name)
		}
		if _, err := set.New(name).Parse(text); err != nil {
			return nil, fmt.Errorf("share: parse %s: %w", name, err)
		}
	}
	return &Renderer{set: set}, nil
}

// Render executes the named template against data.
func (r *Renderer) Render(name string, data any) (string, error) {
	t := r.set.Lookup(name)
	if t == nil {
		return "", fmt.Errorf("share: unknown template %q", name)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("share: execute %s: %w", name, err)
	}
	return buf.String(), nil
}

// defaultRenderer carries the reminder and subject texts.
var defaultRenderer = mustRenderer(map[string]string{
	"reminder": reminderTemplate,
	"subject":  emailSubjectTemplate,
})

func mustRenderer(defs map[string]string) *Renderer {
	r, err := NewRenderer(defs)
	if err != nil {
		panic(err)
	}
	return r
}
