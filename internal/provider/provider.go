package provider

import (
	"context"
	"fmt"
	"log/slog"

	"DocQualityAnalyzer/internal/config"
	"DocQualityAnalyzer/internal/domain"
)

// Provider captures a single model endpoint able to judge document quality
// and generate titles. Implementations degrade failures into Unparseable
// verdicts instead of returning errors from Evaluate; one broken endpoint
// must never abort the caller.
type Provider interface {
	Name() string
	Evaluate(ctx context.Context, content, prompt, documentID string) domain.Verdict
	GenerateTitle(ctx context.Context, prompt, content string) (string, error)
}

// Factory builds a provider from one configuration entry.
type Factory func(cfg config.ProviderConfig, log *slog.Logger) (Provider, error)

// Registry keeps a mapping from provider kinds to their factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register adds or replaces a factory for a provider kind.
func (r *Registry) Register(kind string, factory Factory) {
	if r.factories == nil {
		r.factories = map[string]Factory{}
	}
	r.factories[kind] = factory
}

// Resolve returns a factory by kind or an error if it is absent.
func (r *Registry) Resolve(kind string) (Factory, error) {
	if factory, ok := r.factories[kind]; ok {
		return factory, nil
	}
	return nil, fmt.Errorf("provider kind %s is not registered", kind)
}

// Build constructs providers for every configuration entry, preserving the
// configured order. The order is the verdict order of every ensemble result.
func (r *Registry) Build(cfgs []config.ProviderConfig, log *slog.Logger) ([]Provider, error) {
	providers := make([]Provider, 0, len(cfgs))
	for _, cfg := range cfgs {
		factory, err := r.Resolve(cfg.Kind)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", cfg.Name, err)
		}

		p, err := factory(cfg, log)
		if err != nil {
			return nil, fmt.Errorf("build provider %s: %w", cfg.Name, err)
		}
		providers = append(providers, p)
	}
	return providers, nil
}
