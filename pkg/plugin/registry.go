// Package plugin provides a registry for speech providers (transcription,
// generation, synthesis, voice activity) so hosts can select implementations
// by name at runtime. Provider packages register themselves from init.
package plugin

import (
	"fmt"
	"sort"
	"sync"
)

// Provider kinds understood by the registry.
const (
	KindSTT = "stt"
	KindLLM = "llm"
	KindTTS = "tts"
	KindVAD = "vad"
)

// Factory creates a provider instance from configuration. The returned value
// is cast by the caller to the contract for its kind: stt.Transcriber,
// llm.ResponseGenerator, tts.Synthesizer or vad.Classifier.
type Factory func(cfg map[string]any) (any, error)

// Downloader is implemented by plugins that fetch model files before first
// use.
type Downloader interface {
	Download() error
}

// Plugin is one registered provider.
type Plugin struct {
	Kind        string
	Name        string
	Factory     Factory
	Description string
	Version     string
	Downloader  Downloader
}

// Registry maps [kind][name] to plugins. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]map[string]*Plugin
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]map[string]*Plugin)}
}

var global = NewRegistry()

// Register adds a plugin to the global registry, typically from a provider
// package's init. Panics on a duplicate kind/name pair.
func Register(p *Plugin) { global.Register(p) }

// Get looks up a factory in the global registry.
func Get(kind, name string) (Factory, bool) { return global.Get(kind, name) }

// List returns the global registry's plugins of a kind, or all of them when
// kind is empty.
func List(kind string) []*Plugin { return global.List(kind) }

// ListKinds returns the kinds registered globally, sorted.
func ListKinds() []string { return global.ListKinds() }

// Register adds a plugin. Panics on missing fields or a duplicate kind/name
// pair; both are programmer errors at init time.
func (r *Registry) Register(p *Plugin) {
	if p.Kind == "" || p.Name == "" {
		panic("plugin kind and name are required")
	}
	if p.Factory == nil {
		panic(fmt.Sprintf("plugin %s/%s has no factory", p.Kind, p.Name))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.plugins[p.Kind] == nil {
		r.plugins[p.Kind] = make(map[string]*Plugin)
	}
	if _, ok := r.plugins[p.Kind][p.Name]; ok {
		panic(fmt.Sprintf("plugin %s/%s already registered", p.Kind, p.Name))
	}
	r.plugins[p.Kind][p.Name] = p
}

// Get looks up a factory by kind and name.
func (r *Registry) Get(kind, name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[kind][name]
	if !ok {
		return nil, false
	}
	return p.Factory, true
}

// List returns plugins of a kind, or all plugins when kind is empty, sorted
// by kind then name.
func (r *Registry) List(kind string) []*Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Plugin
	for k, byName := range r.plugins {
		if kind != "" && k != kind {
			continue
		}
		for _, p := range byName {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// ListKinds returns the registered kinds, sorted.
func (r *Registry) ListKinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.plugins))
	for k := range r.plugins {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Clear removes every plugin. For tests.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins = make(map[string]map[string]*Plugin)
}
