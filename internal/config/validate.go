package config

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema.json
var schemaJSON string

// ErrInvalidConfig marks a devflow config that does not match schema.json.
var ErrInvalidConfig = errors.New("invalid devflow config")

// ValidateSettings checks raw settings, as read by viper, against the
// devflow config schema before they are decoded. Every violation is
// reported as "field: problem", sorted by field.
func ValidateSettings(settings map[string]any) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schemaJSON),
		gojsonschema.NewGoLoader(settings),
	)
	if err != nil {
		return fmt.Errorf("load devflow config schema: %w", err)
	}
	if result.Valid() {
		return nil
	}

	issues := make([]string, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		field := re.Field()
		if field == gojsonschema.STRING_ROOT_SCHEMA_PROPERTY {
			field = "config"
		}
		issues = append(issues, field+": "+re.Description())
	}
	sort.Strings(issues)

	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(issues, "; "))
}
