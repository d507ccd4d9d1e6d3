package starlark

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/neurodesk/doctemplate/pkg/doctemplate"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// ScriptContext is what context scripts can reach through builtins.
type ScriptContext interface {
	// SetVariable sets a top-level template variable.
	SetVariable(key string, value doctemplate.Value)
	// Variables returns the variables visible to render().
	Variables() doctemplate.Context
	// Loader fetches partials for templates rendered by scripts. May be nil.
	Loader() doctemplate.Loader
}

// builtinNames are never exported as template variables.
var builtinNames = map[string]bool{
	"print":  true,
	"set":    true,
	"render": true,
	"alpha":  true,
	"struct": true,
}

func stringArg(v starlark.Value) string {
	if s, ok := v.(starlark.String); ok {
		return string(s)
	}
	return v.String()
}

// CreateBuiltins returns the builtins available to context scripts.
// ctx may be nil, in which case set() and render() see an empty context.
func CreateBuiltins(ctx ScriptContext, logger *slog.Logger) starlark.StringDict {
	if logger == nil {
		logger = slog.Default()
	}
	return starlark.StringDict{
		"struct": starlark.NewBuiltin("struct", starlarkstruct.Make),

		"print": starlark.NewBuiltin("print", func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			parts := make([]string, 0, len(args))
			for _, a := range args {
				parts = append(parts, stringArg(a))
			}
			logger.Info(strings.Join(parts, " "), "script", thread.Name)
			return starlark.None, nil
		}),

		"set": starlark.NewBuiltin("set", func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var name string
			var value starlark.Value
			if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 2, &name, &value); err != nil {
				return nil, err
			}
			if ctx == nil {
				return nil, fmt.Errorf("%s: no template context", fn.Name())
			}
			ctx.SetVariable(name, ConvertFromStarlark(value))
			return starlark.None, nil
		}),

		"render": starlark.NewBuiltin("render", func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var src string
			if err := starlark.UnpackPositionalArgs(fn.Name(), args, nil, 1, &src); err != nil {
				return nil, err
			}
			vars := doctemplate.Context{}
			var loader doctemplate.Loader
			if ctx != nil {
				for k, v := range ctx.Variables() {
					vars[k] = v
				}
				loader = ctx.Loader()
			}
			for _, kv := range kwargs {
				vars[stringArg(kv[0])] = ConvertFromStarlark(kv[1])
			}
			out, err := doctemplate.Apply(src, thread.Name, loader, vars)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", fn.Name(), err)
			}
			return starlark.String(out), nil
		}),

		"alpha": starlark.NewBuiltin("alpha", func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var n int
			if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &n); err != nil {
				return nil, err
			}
			if n < 0 {
				return nil, fmt.Errorf("%s: negative index %d", fn.Name(), n)
			}
			return starlark.String(doctemplate.AlphaLabel(int64(n))), nil
		}),
	}
}
