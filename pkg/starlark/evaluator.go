// Package starlark runs Starlark context scripts whose globals become
// template variables.
package starlark

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/neurodesk/doctemplate/pkg/doctemplate"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Evaluator holds the Starlark thread and the globals shared between
// evaluations.
type Evaluator struct {
	thread   *starlark.Thread
	builtins starlark.StringDict
	globals  starlark.StringDict
	vars     doctemplate.Context
	loader   doctemplate.Loader
	logger   *slog.Logger
}

// NewEvaluator creates an evaluator. loader serves partials to render().
func NewEvaluator(loader doctemplate.Loader, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Evaluator{
		thread:  &starlark.Thread{Name: "doctemplate"},
		globals: make(starlark.StringDict),
		vars:    doctemplate.Context{},
		loader:  loader,
		logger:  logger,
	}
	e.thread.Print = func(_ *starlark.Thread, msg string) {
		logger.Info(msg, "script", e.thread.Name)
	}
	e.builtins = CreateBuiltins(e, logger)
	return e
}

// SetVariable implements ScriptContext.
func (e *Evaluator) SetVariable(key string, value doctemplate.Value) {
	e.vars[key] = value
}

// Variables implements ScriptContext.
func (e *Evaluator) Variables() doctemplate.Context {
	return e.ExportContext()
}

// Loader implements ScriptContext.
func (e *Evaluator) Loader() doctemplate.Loader { return e.loader }

// SetGlobal sets a global variable in the Starlark environment.
func (e *Evaluator) SetGlobal(name string, value doctemplate.Value) {
	e.globals[name] = ConvertToStarlark(value)
}

// SetGlobalStarlark sets a global variable using a native Starlark value.
func (e *Evaluator) SetGlobalStarlark(name string, value starlark.Value) {
	e.globals[name] = value
}

func (e *Evaluator) predeclared() starlark.StringDict {
	predeclared := make(starlark.StringDict, len(e.builtins)+len(e.globals))
	for k, v := range e.builtins {
		predeclared[k] = v
	}
	for k, v := range e.globals {
		predeclared[k] = v
	}
	return predeclared
}

// Eval evaluates a Starlark expression.
func (e *Evaluator) Eval(expr string) (doctemplate.Value, error) {
	val, err := starlark.EvalOptions(syntax.LegacyFileOptions(), e.thread, "<eval>", expr, e.predeclared())
	if err != nil {
		return nil, fmt.Errorf("starlark evaluation error: %w", err)
	}
	return ConvertFromStarlark(val), nil
}

// ExecFile executes a Starlark file. src may be nil to read filename.
// Top-level globals the script defines are kept for later evaluations.
func (e *Evaluator) ExecFile(filename string, src any) (starlark.StringDict, error) {
	e.thread.Name = filename
	globals, err := starlark.ExecFileOptions(syntax.LegacyFileOptions(), e.thread, filename, src, e.predeclared())
	if err != nil {
		if evalErr, ok := err.(*starlark.EvalError); ok {
			return nil, fmt.Errorf("starlark execution error: %s", evalErr.Backtrace())
		}
		return nil, fmt.Errorf("starlark execution error: %w", err)
	}
	for k, v := range globals {
		e.globals[k] = v
	}
	return globals, nil
}

// ExecString executes a Starlark script from a string.
func (e *Evaluator) ExecString(script string) (starlark.StringDict, error) {
	return e.ExecFile("<script>", script)
}

// GetGlobal retrieves a global variable.
func (e *Evaluator) GetGlobal(name string) (doctemplate.Value, bool) {
	if val, ok := e.globals[name]; ok {
		return ConvertFromStarlark(val), true
	}
	return nil, false
}

// LoadContext makes every variable of ctx a Starlark global.
func (e *Evaluator) LoadContext(ctx doctemplate.Context) {
	for key, value := range ctx {
		e.SetGlobal(key, value)
	}
}

// ExportContext returns the script's exportable globals merged with the
// variables set through set(). set() wins on conflicts.
func (e *Evaluator) ExportContext() doctemplate.Context {
	ctx := make(doctemplate.Context, len(e.globals)+len(e.vars))
	for key, value := range e.globals {
		if !isExportable(key, value) {
			continue
		}
		ctx[key] = ConvertFromStarlark(value)
	}
	for key, value := range e.vars {
		ctx[key] = value
	}
	return ctx
}

// ExportedNames lists the exported variable names in sorted order.
func (e *Evaluator) ExportedNames() []string {
	ctx := e.ExportContext()
	names := make([]string, 0, len(ctx))
	for k := range ctx {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// isExportable skips builtins, callables, loaded modules and names starting
// with an underscore.
func isExportable(key string, value starlark.Value) bool {
	if key == "" || key[0] == '_' || builtinNames[key] {
		return false
	}
	switch value.(type) {
	case starlark.Callable:
		return false
	}
	return true
}

// RunScript executes a context script with base as its initial globals and
// returns base extended by the script's exports.
func RunScript(filename string, src any, base doctemplate.Context, loader doctemplate.Loader, logger *slog.Logger) (doctemplate.Context, error) {
	e := NewEvaluator(loader, logger)
	e.LoadContext(base)
	if _, err := e.ExecFile(filename, src); err != nil {
		return nil, err
	}
	out := make(doctemplate.Context, len(base))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range e.ExportContext() {
		out[k] = v
	}
	return out, nil
}
