package compose

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Template placeholders.
const (
	placeholderServices = "{{EXTRA_SERVICES}}"
	placeholderVolumes  = "{{EXTRA_VOLUMES}}"
	placeholderProject  = "${PROJECT_NAME}"
)

// ErrInvalidCompose is returned when a rendered file is not a YAML mapping.
var ErrInvalidCompose = errors.New("rendered compose file is invalid")

// Render fills the agent or dashboard template: database services and
// their volumes are spliced in, then ${PROJECT_NAME} is replaced. The
// result must parse as a YAML mapping.
func Render(template, project string, dbs []*LocalDatabase) (string, error) {
	var services, volumes strings.Builder
	volumes.WriteString("volumes:\n")
	for _, db := range dbs {
		services.WriteString(db.Snippet)
		fmt.Fprintf(&volumes, "  %s:\n", db.Volume)
	}

	out := strings.NewReplacer(
		placeholderServices, services.String(),
		placeholderVolumes, volumes.String(),
	).Replace(template)
	out = strings.ReplaceAll(out, placeholderProject, project)

	if err := Validate(out); err != nil {
		return "", err
	}
	return out, nil
}

// Validate checks that content parses as a YAML mapping.
func Validate(content string) error {
	var doc map[string]any
	if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCompose, err)
	}
	if len(doc) == 0 {
		return fmt.Errorf("%w: empty document", ErrInvalidCompose)
	}
	return nil
}
