package pack

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

// HTMLRenderer renders the embedded document templates.
type HTMLRenderer struct {
	templates *template.Template
}

func NewHTMLRenderer() (*HTMLRenderer, error) {
	funcs := template.FuncMap{
		"upper": strings.ToUpper,
		"join":  strings.Join,
	}
	t, err := template.New("pack").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse document templates: %w", err)
	}
	return &HTMLRenderer{templates: t}, nil
}

func (r *HTMLRenderer) Render(_ context.Context, name string, view any) ([]byte, error) {
	t := r.templates.Lookup(name)
	if t == nil {
		return nil, fmt.Errorf("template %q not defined", name)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("execute template %q: %w", name, err)
	}
	return buf.Bytes(), nil
}

func (r *HTMLRenderer) MimeType() string  { return "text/html" }
func (r *HTMLRenderer) Extension() string { return "html" }
