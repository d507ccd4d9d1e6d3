// Package templates holds the built-in document templates. Each one is a
// YAML descriptor embedded in the binary; a template directory set with
// SetTemplateDir can override or add descriptors.
package templates

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/neurodesk/doctemplate/pkg/doctemplate"
	v "github.com/neurodesk/doctemplate/pkg/validator"

	"gopkg.in/yaml.v3"
)

// Template describes a built-in document template.
type Template struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	// Extension of the rendered document, without the dot. Partial names
	// without an extension take this one.
	Extension string `yaml:"extension,omitempty"`

	// Required variables must be present and non-null in the context.
	Required []string `yaml:"required,omitempty"`
	// Defaults are rendered against the context and fill variables it
	// leaves unset.
	Defaults map[string]doctemplate.TemplateString `yaml:"defaults,omitempty"`
	// Partials are served to Source by name.
	Partials map[string]string `yaml:"partials,omitempty"`

	Source string `yaml:"source"`
}

// Path is the name the template compiles under, e.g. "letter.txt".
func (t Template) Path() string {
	if t.Extension == "" {
		return t.Name
	}
	return t.Name + "." + t.Extension
}

// Loader serves the template's partials. Keys without an extension get the
// template's extension so they match resolved partial paths.
func (t Template) Loader() doctemplate.MemoryLoader {
	m := make(doctemplate.MemoryLoader, len(t.Partials))
	for name, text := range t.Partials {
		m[doctemplate.ResolvePartialPath(t.Path(), name)] = text
	}
	return m
}

func (t Template) Validate() error {
	return v.All(
		v.NotEmpty(t.Name, "name"),
		v.HasNoDirectives(t.Name, "name"),
		v.HasNoDirectives(t.Extension, "extension"),
		v.NotEmpty(t.Source, "source"),
		v.NoDuplicates(t.Required, "required variables"),
		v.Map(t.Required, v.IsIdentifier, "required variables"),
		v.MapDict(t.Defaults, func(key string, value doctemplate.TemplateString) error {
			return v.All(
				v.IsIdentifier(key, "default key"),
				value.Validate(),
			)
		}, "defaults"),
		v.MapDict(t.Partials, func(key string, _ string) error {
			return v.All(
				v.NotEmpty(key, "partial name"),
				v.HasNoDirectives(key, "partial name"),
			)
		}, "partials"),
		t.compileErr(),
	)
}

func (t Template) compileErr() error {
	if t.Source == "" {
		return nil
	}
	_, err := t.Compile()
	return err
}

// Compile compiles Source with the template's partials.
func (t Template) Compile() (*doctemplate.Template, error) {
	tpl, err := doctemplate.Compile(t.Source, t.Path(), t.Loader())
	if err != nil {
		return nil, fmt.Errorf("compiling template %q: %w", t.Name, err)
	}
	return tpl, nil
}

// MissingError lists required variables absent from a context.
type MissingError struct {
	Template string
	Missing  []string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("template %q requires %s", e.Template, strings.Join(e.Missing, ", "))
}

// Context returns ctx extended with the template's defaults. It fails with
// a *MissingError when a required variable is absent.
func (t Template) Context(ctx doctemplate.Context) (doctemplate.Context, error) {
	var missing []string
	for _, key := range t.Required {
		val, ok := ctx[key]
		if _, null := val.(doctemplate.NullValue); !ok || val == nil || null {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingError{Template: t.Name, Missing: missing}
	}

	out := make(doctemplate.Context, len(ctx)+len(t.Defaults))
	for k, val := range ctx {
		out[k] = val
	}
	keys := make([]string, 0, len(t.Defaults))
	for k := range t.Defaults {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, key := range keys {
		if _, ok := out[key]; ok {
			continue
		}
		// defaults see the caller's variables only, not each other
		val, err := t.Defaults[key].Render(ctx)
		if err != nil {
			return nil, fmt.Errorf("rendering default %q: %w", key, err)
		}
		out[key] = doctemplate.StringValue(val)
	}
	return out, nil
}

// Execute renders the template against ctx.
func (t Template) Execute(ctx doctemplate.Context) (string, error) {
	tpl, err := t.Compile()
	if err != nil {
		return "", err
	}
	full, err := t.Context(ctx)
	if err != nil {
		return "", err
	}
	return tpl.Render(full), nil
}

// Decode reads a descriptor, rejecting unknown fields, and validates it.
func Decode(content []byte) (Template, error) {
	var tpl Template
	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)
	if err := dec.Decode(&tpl); err != nil {
		return Template{}, fmt.Errorf("decoding template: %w", err)
	}
	if err := tpl.Validate(); err != nil {
		return Template{}, fmt.Errorf("invalid template %q: %w", tpl.Name, err)
	}
	return tpl, nil
}

//go:embed *.yaml
var Files embed.FS

var templates = map[string]Template{}

var (
	mu          sync.RWMutex
	templateDir string
)

// SetTemplateDir makes descriptors in dir take precedence over the built-in
// ones. An empty dir disables overrides.
func SetTemplateDir(dir string) {
	mu.Lock()
	defer mu.Unlock()
	templateDir = dir
}

func overrideDir() string {
	mu.RLock()
	defer mu.RUnlock()
	return templateDir
}

// Get returns the template called name, preferring an override.
func Get(name string) (Template, error) {
	if dir := overrideDir(); dir != "" {
		path := filepath.Join(dir, name+".yaml")
		content, err := os.ReadFile(path)
		switch {
		case err == nil:
			tpl, err := Decode(content)
			if err != nil {
				return Template{}, fmt.Errorf("loading %s: %w", path, err)
			}
			if tpl.Name != name {
				slog.Warn("template name does not match file name", "path", path, "name", tpl.Name)
			}
			slog.Debug("using template override", "name", name, "path", path)
			return tpl, nil
		case !errors.Is(err, fs.ErrNotExist):
			return Template{}, fmt.Errorf("reading %s: %w", path, err)
		}
	}
	if tpl, ok := templates[name]; ok {
		return tpl, nil
	}
	return Template{}, fmt.Errorf("template %q not found", name)
}

// List returns the names of all available templates, sorted.
func List() []string {
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	if dir := overrideDir(); dir != "" {
		matches, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
		if err != nil {
			slog.Warn("listing template overrides", "dir", dir, "error", err)
		}
		for _, m := range matches {
			name := strings.TrimSuffix(filepath.Base(m), ".yaml")
			if !slices.Contains(names, name) {
				names = append(names, name)
			}
		}
	}
	slices.Sort(names)
	return names
}

func init() {
	entries, err := Files.ReadDir(".")
	if err != nil {
		panic(err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		content, err := Files.ReadFile(name)
		if err != nil {
			panic(err)
		}
		tpl, err := Decode(content)
		if err != nil {
			panic(fmt.Errorf("built-in template %q: %w", name, err))
		}
		templates[strings.TrimSuffix(name, ".yaml")] = tpl
	}
}
