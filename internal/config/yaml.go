package config

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// MarshalYAML writes the timeout as a duration string.
func (s ShellConfig) MarshalYAML() (any, error) {
	out := map[string]string{}
	if s.Timeout > 0 {
		out["timeout"] = s.Timeout.String()
	}
	return out, nil
}

// EncodeYAML writes cfg as a YAML config file.
func EncodeYAML(w io.Writer, cfg Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}
