package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	"github.com/neurodesk/doctemplate/pkg/doctemplate"
	"github.com/neurodesk/doctemplate/pkg/netcache"
	"github.com/neurodesk/doctemplate/pkg/templates"
	v "github.com/neurodesk/doctemplate/pkg/validator"
	"github.com/spf13/cobra"

	"gopkg.in/yaml.v3"
)

const defaultConfigPath = "doctemplate.yaml"

type config struct {
	// PartialDirs are searched by file name after the template's own
	// directory.
	PartialDirs []string `yaml:"partial_dirs,omitempty"`
	PartialsURL string   `yaml:"partials_url,omitempty"`
	CacheDir    string   `yaml:"cache_dir,omitempty"`

	Data      []string       `yaml:"data,omitempty"`
	Variables map[string]any `yaml:"variables,omitempty"`

	// Output is rendered against the data context to name the output file.
	Output doctemplate.TemplateString `yaml:"output,omitempty"`

	TemplateDir string `yaml:"template_dir,omitempty"`

	// path of the file the config was read from, empty for defaults
	path string
}

func (c *config) Validate() error {
	return v.All(
		v.NoDuplicates(c.PartialDirs, "partial_dirs"),
		v.Map(c.PartialDirs, v.NotEmpty, "partial_dirs"),
		v.Map(c.Data, v.NotEmpty, "data"),
		v.MapDict(c.Variables, func(key string, _ any) error {
			return v.IsIdentifier(key, "variable")
		}, "variables"),
		c.Output.Validate(),
		validURL(c.PartialsURL),
	)
}

func validURL(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("partials_url: %w", err)
	}
	return v.All(
		v.MatchesAllowed(u.Scheme, []string{"http", "https"}, "partials_url scheme"),
		v.NotEmpty(u.Host, "partials_url host"),
	)
}

// resolve makes relative paths relative to the config file's directory.
func (c *config) resolve(base string) {
	join := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	for i, d := range c.PartialDirs {
		c.PartialDirs[i] = join(d)
	}
	for i, d := range c.Data {
		c.Data[i] = join(d)
	}
	c.CacheDir = join(c.CacheDir)
	c.TemplateDir = join(c.TemplateDir)
}

func (c *config) cacheDir() string {
	if c.CacheDir != "" {
		return c.CacheDir
	}
	return netcache.DefaultDir()
}

// loadConfig reads the config at path. A missing file is only an error
// when the path was given explicitly.
func loadConfig(path string, explicit bool) (*config, error) {
	cfg := &config{}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			slog.Debug("no config file, using defaults", "path", path)
			return cfg, nil
		}
		return nil, fmt.Errorf("opening config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	cfg.resolve(filepath.Dir(path))
	cfg.path = path
	return cfg, nil
}

// commandConfig loads the config named by --config and applies the
// template directory override.
func commandConfig(cmd *cobra.Command) (*config, error) {
	cfg, err := loadConfig(rootConfig, cmd.Flags().Changed("config"))
	if err != nil {
		return nil, err
	}
	if cfg.TemplateDir != "" {
		templates.SetTemplateDir(cfg.TemplateDir)
	}
	return cfg, nil
}
