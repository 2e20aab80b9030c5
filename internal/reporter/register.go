package reporter

import (
	"yqhp/crew-engine/internal/reporter/console"
	"yqhp/crew-engine/internal/reporter/file"
)

// RegisterBuiltinReporters registers all built-in reporters with the registry.
func RegisterBuiltinReporters(registry *Registry) error {
	if err := registry.Register(TypeConsole, func(config map[string]any) (Reporter, error) {
		return console.New(console.ParseConfig(config)), nil
	}); err != nil {
		return err
	}

	if err := registry.Register(TypeJSON, func(config map[string]any) (Reporter, error) {
		return file.NewJSONReporter(file.ParseConfig(config)), nil
	}); err != nil {
		return err
	}

	if err := registry.Register(TypeText, func(config map[string]any) (Reporter, error) {
		return file.NewTextReporter(file.ParseConfig(config)), nil
	}); err != nil {
		return err
	}

	return nil
}

// NewDefaultRegistry creates a new registry with all built-in reporters registered.
func NewDefaultRegistry() (*Registry, error) {
	registry := NewRegistry()
	if err := RegisterBuiltinReporters(registry); err != nil {
		return nil, err
	}
	return registry, nil
}
