package invoicetemplate

import (
	"embed"
	"errors"
	"io"
	"io/fs"
	"strings"

	"github.com/flosch/pongo2/v6"
)

//go:embed templates/*.html
var embeddedTemplates embed.FS

const templateExt = ".html"

// TemplateExecutor executes a named template with data.
type TemplateExecutor interface {
	ExecuteTemplate(w io.Writer, name string, data map[string]any) error
}

// PongoConfig configures the pongo2 template set.
type PongoConfig struct {
	// Dir holds template overrides; empty uses the embedded templates only.
	Dir string
	// Debug recompiles templates on every execution.
	Debug bool
}

// PongoExecutor adapts a pongo2 TemplateSet to TemplateExecutor.
type PongoExecutor struct {
	Set *pongo2.TemplateSet
}

var _ TemplateExecutor = (*PongoExecutor)(nil)

// NewPongoExecutor builds a template set over the embedded invoice templates.
func NewPongoExecutor(cfg PongoConfig) (*PongoExecutor, error) {
	root, err := fs.Sub(embeddedTemplates, "templates")
	if err != nil {
		return nil, err
	}

	loaders := make([]pongo2.TemplateLoader, 0, 2)
	if dir := strings.TrimSpace(cfg.Dir); dir != "" {
		local, err := pongo2.NewLocalFileSystemLoader(dir)
		if err != nil {
			return nil, err
		}
		loaders = append(loaders, local)
	}
	loaders = append(loaders, pongo2.NewFSLoader(root))

	set := pongo2.NewSet("invoice", loaders...)
	set.Debug = cfg.Debug
	return &PongoExecutor{Set: set}, nil
}

// ExecuteTemplate renders a named template into the provided writer.
func (e PongoExecutor) ExecuteTemplate(w io.Writer, name string, data map[string]any) error {
	if e.Set == nil {
		return errors.New("pongo executor requires a template set")
	}
	tpl, err := e.Set.FromCache(templateFile(name))
	if err != nil {
		return err
	}
	return tpl.ExecuteWriter(pongo2.Context(data), w)
}

func templateFile(name string) string {
	if strings.HasSuffix(name, templateExt) {
		return name
	}
	return name + templateExt
}
