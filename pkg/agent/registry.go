package agent

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/zen-systems/promptforge/pkg/models"
)

// ErrUnknownAgent is matched by every *UnknownAgentError.
var ErrUnknownAgent = errors.New("unknown agent")

// UnknownAgentError is returned by Create for names that were never registered.
type UnknownAgentError struct {
	Name      string
	Available []string
}

func (e *UnknownAgentError) Error() string {
	available := "none"
	if len(e.Available) > 0 {
		available = strings.Join(e.Available, ", ")
	}
	return fmt.Sprintf("unknown agent: %s. Available agents: %s", e.Name, available)
}

func (e *UnknownAgentError) Is(target error) bool {
	return target == ErrUnknownAgent
}

// Factory builds an agent bound to its routed model.
type Factory func(model models.ModelConfig, caller Completer) Agent

// Metadata describes a registered agent.
type Metadata struct {
	Name        string             `json:"name"`
	DisplayName string             `json:"display_name"`
	Description string             `json:"description"`
	FocusAreas  []string           `json:"focus_areas"`
	Model       models.ModelConfig `json:"model"`
}

type entry struct {
	factory  Factory
	metadata Metadata
}

// DefaultAgents are the agents CreateDefault instantiates, in order.
var DefaultAgents = []string{"syntax", "structure", "domain"}

// Registry maps agent names to factories. It is safe for concurrent use.
type Registry struct {
	models *models.Registry
	caller Completer
	logger *slog.Logger

	mu      sync.RWMutex
	entries map[string]entry
	order   []string
}

// NewRegistry creates an empty registry. Agents it creates call caller with
// the model routed to them by reg.
func NewRegistry(reg *models.Registry, caller Completer, logger *slog.Logger) *Registry {
	if reg == nil {
		reg = models.DefaultRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		models:  reg,
		caller:  caller,
		logger:  logger,
		entries: make(map[string]entry),
	}
}

// NewDefaultRegistry creates a registry holding the built-in agents.
func NewDefaultRegistry(reg *models.Registry, caller Completer, logger *slog.Logger) *Registry {
	r := NewRegistry(reg, caller, logger)
	for _, sp := range []Specialty{SyntaxSpecialty, StructureSpecialty, DomainSpecialty} {
		// Built-in specialties always carry a name, so Register cannot fail.
		_ = r.Register(sp.Name, r.specialistFactory(sp), sp.DisplayName, sp.Description, sp.FocusAreas)
	}
	return r
}

func (r *Registry) specialistFactory(sp Specialty) Factory {
	logger := r.logger
	return func(model models.ModelConfig, caller Completer) Agent {
		return NewSpecialist(sp, model, caller, WithAgentLogger(logger))
	}
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, factory Factory, displayName, description string, focusAreas []string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("agent name is required")
	}
	if factory == nil {
		return fmt.Errorf("agent %s: factory is required", name)
	}

	md := Metadata{
		Name:        name,
		DisplayName: displayName,
		Description: description,
		FocusAreas:  append([]string(nil), focusAreas...),
		Model:       r.models.ForAgent(name),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[name]; !exists {
		r.order = append(r.order, name)
	}
	r.entries[name] = entry{factory: factory, metadata: md}
	r.logger.Debug("agent registered", "agent", name, "model", md.Model.ModelID)
	return nil
}

// Create instantiates the agent registered under name.
func (r *Registry) Create(name string) (Agent, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnknownAgentError{Name: name, Available: r.sortedNames()}
	}
	return e.factory(e.metadata.Model, r.caller), nil
}

// CreateDefault instantiates the default agents that are registered.
func (r *Registry) CreateDefault() []Agent {
	agents := make([]Agent, 0, len(DefaultAgents))
	for _, name := range DefaultAgents {
		a, err := r.Create(name)
		if err != nil {
			continue
		}
		agents = append(agents, a)
	}
	return agents
}

// Names returns registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Metadata returns the description of a registered agent.
func (r *Registry) Metadata(name string) (Metadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e.metadata, ok
}

func (r *Registry) sortedNames() []string {
	names := r.Names()
	sort.Strings(names)
	return names
}
