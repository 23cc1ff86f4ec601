package processors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// ErrNotFound is returned when a processor name has no registered entry.
var ErrNotFound = errors.New("processor not found")

// Factory constructs a Processor from cfg. Registered per processor
// Type ("keyword", "llm", ...) so Reload can (re)create processors
// purely from config without importing concrete processor packages.
type Factory func(name string, cfg Config) (Processor, error)

// entry pairs a live Processor with the config it was built from, so
// Reload can detect when a config change requires rebuilding it.
type entry struct {
	processor Processor
	cfg       Config
}

// Registry holds live processor instances, instantiated and kept in
// sync with config by Reload, generalizing the teacher's
// internal/providers.Registry (LLM/OCR/TTS clients keyed by name) to a
// single processor kind keyed by name.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	instances map[string]*entry
	logger    *slog.Logger
}

// NewRegistry constructs an empty Registry. RegisterFactory must be
// called for every processor Type before Reload can instantiate it.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		factories: make(map[string]Factory),
		instances: make(map[string]*entry),
		logger:    logger,
	}
}

// RegisterFactory associates a processor Type string with a constructor.
func (r *Registry) RegisterFactory(typ string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[typ] = factory
}

// Reload applies a fresh config map, creating newly enabled processors,
// rebuilding ones whose config changed, and removing ones no longer
// present or disabled. Mirrors the teacher's Registry.Reload semantics.
func (r *Registry) Reload(ctx context.Context, cfgs map[string]Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	want := make(map[string]bool, len(cfgs))
	for name, cfg := range cfgs {
		if !cfg.Enabled {
			continue
		}
		want[name] = true

		existing, ok := r.instances[name]
		if ok && existing.cfg == cfg {
			continue
		}

		factory, ok := r.factories[cfg.Type]
		if !ok {
			r.logger.Warn("no factory registered for processor type", "name", name, "type", cfg.Type)
			continue
		}
		proc, err := factory(name, cfg)
		if err != nil {
			r.logger.Error("failed to construct processor", "name", name, "type", cfg.Type, "err", err)
			continue
		}
		if err := proc.Load(ctx); err != nil {
			r.logger.Error("processor failed to load", "name", name, "err", err)
			continue
		}
		r.instances[name] = &entry{processor: proc, cfg: cfg}
		r.logger.Info("processor (re)registered", "name", name, "type", cfg.Type)
	}

	for name := range r.instances {
		if !want[name] {
			delete(r.instances, name)
			r.logger.Info("processor unregistered", "name", name)
		}
	}
	return nil
}

// Get returns the named processor.
func (r *Registry) Get(name string) (Processor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.instances[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return e.processor, nil
}

// Available returns every registered processor that currently reports
// itself available, ordered by descending PriorityRank weight (lowest
// PriorityRank integer first, matching spec.md's "1=high" convention)
// for strategies that want a deterministic evaluation order.
func (r *Registry) Available(ctx context.Context) []Processor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	procs := make([]Processor, 0, len(r.instances))
	for _, e := range r.instances {
		if e.processor.IsAvailable(ctx) {
			procs = append(procs, e.processor)
		}
	}
	sort.Slice(procs, func(i, j int) bool {
		wi, iOK := procs[i].(Weighted)
		wj, jOK := procs[j].(Weighted)
		if !iOK || !jOK {
			return procs[i].Name() < procs[j].Name()
		}
		return wi.PriorityRank() < wj.PriorityRank()
	})
	return procs
}

// Names returns every registered processor's name, regardless of
// availability.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.instances))
	for name := range r.instances {
		names = append(names, name)
	}
	return names
}
