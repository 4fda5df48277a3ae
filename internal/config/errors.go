package config

import "strings"

// MissingConfigError lists required settings that were not provided.
type MissingConfigError struct {
	Fields []string
}

func (e *MissingConfigError) Error() string {
	return "missing required configuration: " + strings.Join(e.Fields, ", ")
}
