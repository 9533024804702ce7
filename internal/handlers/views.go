package handlers

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"finitefield.org/sheetboard/internal/format"
)

const layoutFile = "layout.tmpl"

// Views executes page templates inside the shared layout. Each page file is
// parsed together with the layout so pages can define their own blocks.
type Views struct {
	fsys fs.FS
	dev  bool

	mu    sync.RWMutex
	pages map[string]*template.Template
}

// NewViews parses every *.tmpl under fsys. With dev set, templates are
// reparsed on each render.
func NewViews(fsys fs.FS, dev bool) (*Views, error) {
	v := &Views{fsys: fsys, dev: dev}
	pages, err := v.parse()
	if err != nil {
		return nil, err
	}
	v.pages = pages
	return v, nil
}

func funcMap() template.FuncMap {
	return template.FuncMap{
		"now":      time.Now,
		"date":     format.Date,
		"datetime": format.DateTime,
		"scale":    format.Scale,
		"join":     strings.Join,
	}
}

func (v *Views) parse() (map[string]*template.Template, error) {
	files, err := fs.Glob(v.fsys, "*.tmpl")
	if err != nil {
		return nil, err
	}
	base, err := template.New("_root").Funcs(funcMap()).ParseFS(v.fsys, layoutFile)
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	pages := make(map[string]*template.Template, len(files))
	for _, file := range files {
		if file == layoutFile {
			continue
		}
		clone, err := base.Clone()
		if err != nil {
			return nil, err
		}
		t, err := clone.ParseFS(v.fsys, file)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		pages[strings.TrimSuffix(path.Base(file), ".tmpl")] = t
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("no page templates found")
	}
	return pages, nil
}

func (v *Views) lookup(page string) (*template.Template, error) {
	if v.dev {
		pages, err := v.parse()
		if err != nil {
			return nil, err
		}
		v.mu.Lock()
		v.pages = pages
		v.mu.Unlock()
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	t, ok := v.pages[page]
	if !ok {
		return nil, fmt.Errorf("template %q not found", page)
	}
	return t, nil
}

// Render executes the base layout of page with data. The page is buffered so
// a template error never leaves a half-written response.
func (v *Views) Render(w http.ResponseWriter, status int, page string, data any) error {
	t, err := v.lookup(page)
	if err != nil {
		http.Error(w, "template error", http.StatusInternalServerError)
		return err
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", data); err != nil {
		http.Error(w, "template error", http.StatusInternalServerError)
		return fmt.Errorf("execute %s: %w", page, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err = buf.WriteTo(w)
	return err
}
