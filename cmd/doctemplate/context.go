package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/neurodesk/doctemplate/pkg/doctemplate"
	v "github.com/neurodesk/doctemplate/pkg/validator"

	"gopkg.in/yaml.v3"
)

// readDataFile decodes a YAML or JSON file whose top level is a mapping.
func readDataFile(path string) (doctemplate.Context, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := yaml.Unmarshal(content, &m); err != nil {
		return nil, fmt.Errorf("decoding data file %s: %w", path, err)
	}
	return doctemplate.NewContextFromAny(m), nil
}

// mergeData reads files in order into ctx; later files replace top-level
// keys of earlier ones.
func mergeData(ctx doctemplate.Context, files []string) error {
	for _, f := range files {
		data, err := readDataFile(f)
		if err != nil {
			return err
		}
		for k, val := range data {
			ctx[k] = val
		}
	}
	return nil
}

// applySets applies KEY=VALUE assignments. A bare KEY sets true; repeating
// a key collects its values into a list.
func applySets(ctx doctemplate.Context, sets []string) error {
	seen := map[string]bool{}
	for _, kv := range sets {
		key, raw, hasValue := strings.Cut(kv, "=")
		if err := v.IsIdentifier(key, "--set key"); err != nil {
			return err
		}
		var val doctemplate.Value = doctemplate.StringValue(raw)
		if !hasValue {
			val = doctemplate.BoolValue(true)
		}
		if !seen[key] {
			seen[key] = true
			ctx[key] = val
			continue
		}
		if list, ok := ctx[key].(doctemplate.ListValue); ok {
			ctx[key] = append(list, val)
		} else {
			ctx[key] = doctemplate.ListValue{ctx[key], val}
		}
	}
	return nil
}
