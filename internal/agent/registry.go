package agent

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Factory builds an agent from shared dependencies.
type Factory func(Deps) (Agent, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register adds a named agent factory. Registering a duplicate name panics:
// agent names are wired at init time and a collision is a programming error.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("agent %q registered twice", name))
	}
	registry[name] = factory
}

// New builds the named agent. Unknown names report the registered set so a
// CLI typo is self-diagnosing.
func New(name string, deps Deps) (Agent, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown agent %q (registered: %s)", name, strings.Join(Names(), ", "))
	}
	return factory(deps)
}

// Names returns the registered agent names, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register("oneshot", func(d Deps) (Agent, error) {
		return NewOneShot(d)
	})
	Register("episodic", func(d Deps) (Agent, error) {
		return NewEpisodic(d)
	})
	Register("toolcall", func(d Deps) (Agent, error) {
		return NewToolCall(d)
	})
}
