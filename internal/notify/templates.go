package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"path"
	"sync"

	"github.com/shopspring/decimal"
)

//go:embed templates/*.html
var templateFiles embed.FS

// TemplateCache holds parsed email templates
type TemplateCache struct {
	cache map[string]*template.Template
	mu    sync.RWMutex
	funcs template.FuncMap
}

func NewTemplateCache() *TemplateCache {
	return &TemplateCache{
		cache: make(map[string]*template.Template),
		funcs: template.FuncMap{
			"money": func(d decimal.Decimal) string {
				return "KES " + d.StringFixed(2)
			},
		},
	}
}

func (tc *TemplateCache) AddFunc(name string, fn any) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.funcs[name] = fn
}

// Load parses every *.html file in fsys matching dir/*.html.
func (tc *TemplateCache) Load(fsys fs.FS, dir string) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	files, err := fs.Glob(fsys, path.Join(dir, "*.html"))
	if err != nil {
		return err
	}
	for _, file := range files {
		name := path.Base(file)
		tmpl, err := template.New(name).Funcs(tc.funcs).ParseFS(fsys, file)
		if err != nil {
			slog.Error("Failed to parse template", "file", file, "error", err)
			return err
		}
		tc.cache[name] = tmpl
		slog.Debug("Cached template", "name", name)
	}
	return nil
}

func (tc *TemplateCache) Get(name string) *template.Template {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.cache[name]
}

func (tc *TemplateCache) Render(name string, data any) (string, error) {
	tmpl := tc.Get(name)
	if tmpl == nil {
		return "", fmt.Errorf("template %s not found", name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.String(), nil
}

// DefaultTemplates returns a cache loaded with the embedded email templates.
func DefaultTemplates() (*TemplateCache, error) {
	tc := NewTemplateCache()
	if err := tc.Load(templateFiles, "templates"); err != nil {
		return nil, err
	}
	return tc, nil
}
