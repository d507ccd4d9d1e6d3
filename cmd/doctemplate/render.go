package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/neurodesk/doctemplate/pkg/doctemplate"
	"github.com/neurodesk/doctemplate/pkg/loader"
	"github.com/neurodesk/doctemplate/pkg/netcache"
	"github.com/neurodesk/doctemplate/pkg/starlark"
	"github.com/neurodesk/doctemplate/pkg/templates"
	"github.com/neurodesk/doctemplate/pkg/watch"
	"github.com/spf13/cobra"
)

const builtinPrefix = "builtin:"

type renderOptions struct {
	dataFiles []string
	sets      []string
	script    string
	output    string
	watch     bool
}

var renderFlags renderOptions

var renderCmd = cobra.Command{
	Use:   "render TEMPLATE",
	Short: "Render a template file, or a built-in template as builtin:NAME",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := commandConfig(cmd)
		if err != nil {
			return err
		}
		job := &renderJob{
			cfg:    cfg,
			target: args[0],
			opts:   renderFlags,
			stdout: cmd.OutOrStdout(),
			logger: slog.Default(),
		}
		ctx := cmd.Context()
		if !job.opts.watch {
			return job.run(ctx)
		}
		if err := job.run(ctx); err != nil {
			job.logger.Error("render failed", "error", err)
		}
		return job.watch(ctx)
	},
}

// renderJob turns one template file or built-in plus data into a document.
type renderJob struct {
	cfg    *config
	target string
	opts   renderOptions
	stdout io.Writer
	logger *slog.Logger
}

func (j *renderJob) builtinName() (string, bool) {
	return strings.CutPrefix(j.target, builtinPrefix)
}

// loader fetches partials from the template's directory, then the
// configured partial directories, then the remote library.
func (j *renderJob) loader(ctx context.Context) doctemplate.Loader {
	chain := loader.Chain{loader.Dir{}}
	if len(j.cfg.PartialDirs) > 0 {
		chain = append(chain, loader.Search{Dirs: j.cfg.PartialDirs})
	}
	if j.cfg.PartialsURL != "" {
		cache := netcache.New(j.cfg.cacheDir())
		cache.Logger = j.logger
		chain = append(chain, loader.HTTP{BaseURL: j.cfg.PartialsURL, Cache: cache, Context: ctx})
	}
	return loader.Logged(chain, j.logger)
}

// compile returns the compiled template and, for builtin:NAME, its
// descriptor.
func (j *renderJob) compile(ctx context.Context) (*doctemplate.Template, *templates.Template, error) {
	if name, ok := j.builtinName(); ok {
		desc, err := templates.Get(name)
		if err != nil {
			return nil, nil, err
		}
		tpl, err := desc.Compile()
		if err != nil {
			return nil, nil, err
		}
		return tpl, &desc, nil
	}
	src, err := os.ReadFile(j.target)
	if err != nil {
		return nil, nil, fmt.Errorf("reading template: %w", err)
	}
	tpl, err := doctemplate.Compile(string(src), filepath.ToSlash(j.target), j.loader(ctx))
	if err != nil {
		return nil, nil, err
	}
	return tpl, nil, nil
}

// context builds the data context: config data files, -d files, config
// variables, --set values, then the script.
func (j *renderJob) context(ctx context.Context) (doctemplate.Context, error) {
	data := doctemplate.Context{}
	if err := mergeData(data, j.cfg.Data); err != nil {
		return nil, err
	}
	if err := mergeData(data, j.opts.dataFiles); err != nil {
		return nil, err
	}
	for k, val := range j.cfg.Variables {
		data[k] = doctemplate.FromGo(val)
	}
	if err := applySets(data, j.opts.sets); err != nil {
		return nil, err
	}
	if j.opts.script == "" {
		return data, nil
	}
	out, err := starlark.RunScript(j.opts.script, nil, data, j.loader(ctx), j.logger)
	if err != nil {
		return nil, fmt.Errorf("running script %s: %w", j.opts.script, err)
	}
	return out, nil
}

func (j *renderJob) run(ctx context.Context) error {
	tpl, desc, err := j.compile(ctx)
	if err != nil {
		return err
	}
	data, err := j.context(ctx)
	if err != nil {
		return err
	}
	if desc != nil {
		if data, err = desc.Context(data); err != nil {
			return err
		}
	}
	return j.write(data, tpl.Render(data))
}

func (j *renderJob) outputPath(data doctemplate.Context) (string, error) {
	if j.opts.output != "" {
		return j.opts.output, nil
	}
	if j.cfg.Output == "" {
		return "", nil
	}
	out, err := j.cfg.Output.Render(data)
	if err != nil {
		return "", fmt.Errorf("rendering output path: %w", err)
	}
	return strings.TrimSpace(out), nil
}

func (j *renderJob) write(data doctemplate.Context, text string) error {
	path, err := j.outputPath(data)
	if err != nil {
		return err
	}
	if path == "" || path == "-" {
		_, err := io.WriteString(j.stdout, text)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	j.logger.Info("wrote document", "path", path, "bytes", len(text))
	return nil
}

// inputs lists the local files and directories a render reads.
func (j *renderJob) inputs(ctx context.Context) []string {
	var paths []string
	if _, ok := j.builtinName(); !ok {
		paths = append(paths, j.target)
		if tpl, _, err := j.compile(ctx); err == nil {
			paths = append(paths, tpl.Partials()...)
		}
	}
	paths = append(paths, j.cfg.Data...)
	paths = append(paths, j.opts.dataFiles...)
	paths = append(paths, j.cfg.PartialDirs...)
	if j.opts.script != "" {
		paths = append(paths, j.opts.script)
	}
	if j.cfg.path != "" {
		paths = append(paths, j.cfg.path)
	}

	var out []string
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil || slices.Contains(out, p) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (j *renderJob) watch(ctx context.Context) error {
	w, err := watch.New(watch.Config{Paths: j.inputs(ctx), SkipHidden: true}, j.logger)
	if err != nil {
		return err
	}
	defer w.Stop()
	return w.Watch(ctx, func(path string) error {
		j.logger.Info("input changed, rendering", "path", path)
		return j.run(ctx)
	})
}
