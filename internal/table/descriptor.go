package table

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// WriteSchema saves the schema descriptor as YAML.
func WriteSchema(path string, s Schema) error {
	data, err := yaml.Marshal(&s)
	if err != nil {
		return eris.Wrap(err, "table: marshal schema")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "table: write schema %s", path)
	}
	return nil
}

// ReadSchema loads a schema descriptor written by WriteSchema.
func ReadSchema(path string) (Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Schema{}, eris.Wrapf(err, "table: read schema %s", path)
	}
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Schema{}, eris.Wrapf(err, "table: parse schema %s", path)
	}
	if len(s.Columns) == 0 {
		return Schema{}, eris.Errorf("table: schema %s has no columns", path)
	}
	return s, nil
}
