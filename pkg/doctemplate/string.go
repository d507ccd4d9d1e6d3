package doctemplate

import (
	"fmt"
)

// TemplateString is a short inline template, such as an output path in a
// config file. It cannot include partials.
type TemplateString string

func (t TemplateString) Validate() error {
	if _, err := Compile(string(t), "", nil); err != nil {
		return fmt.Errorf("invalid template string: %w", err)
	}
	return nil
}

func (t TemplateString) Render(ctx Value) (string, error) {
	tpl, err := Compile(string(t), "", nil)
	if err != nil {
		return "", fmt.Errorf("parsing template string: %w", err)
	}
	return tpl.Render(ctx), nil
}
