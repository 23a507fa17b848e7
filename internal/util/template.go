package util

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// funcs are available to every prompt template.
var funcs = template.FuncMap{
	"default": func(defaultVal any, val any) any {
		if val == nil || val == "" {
			return defaultVal
		}
		return val
	},
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	"join":  strings.Join,
	"quote": func(s string) string { return fmt.Sprintf("%q", s) },
}

// ParseTemplate compiles a prompt template so syntax errors surface at
// construction time rather than on the first turn.
func ParseTemplate(name, text string) (*template.Template, error) {
	tmpl, err := template.New(name).Funcs(funcs).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}
	return tmpl, nil
}

// RenderTemplate executes tmpl against data.
func RenderTemplate(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render template %s: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}

// RenderString parses and executes text in one step. Text without template
// markers is returned unchanged.
func RenderString(text string, data any) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}

	tmpl, err := ParseTemplate("prompt", text)
	if err != nil {
		return "", err
	}

	return RenderTemplate(tmpl, data)
}
