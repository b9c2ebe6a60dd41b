package extract

import (
	"fmt"
	"sync"
)

// GenericName is the name of the built-in default strategy.
const GenericName = "generic"

// Builtins returns fresh copies of the built-in strategies, site strategies
// first and the generic default last.
func Builtins() []*SiteStrategy {
	return []*SiteStrategy{
		(&SiteStrategy{
			ID:         "animebbg",
			Hosts:      []string{"animebbg.net"},
			Href:       HrefNone,
			Containers: []string{".block-container.structItem--resourceAlbum", ".block-container"},
			WaitFor:    ".block-container",
		}).Compile(),
		(&SiteStrategy{
			ID:         "m440",
			Hosts:      []string{"m440.in"},
			Href:       HrefHinted,
			PathHints:  DefaultPathHints,
			Containers: []string{`li[class*="DTyuZxQygzByzNbtcmg-lis"]`},
		}).Compile(),
		(&SiteStrategy{
			ID:              "bokugents",
			Hosts:           []string{"bokugents.com"},
			Href:            HrefAll,
			KeywordFallback: true,
		}).Compile(),
		(&SiteStrategy{
			ID:         "mangasnosekai",
			Hosts:      []string{"mangasnosekai.com"},
			Href:       HrefAll,
			Containers: []string{".chapter-list", ".wp-manga-chapter", "body"},
			WaitFor:    ".wp-manga-chapter",
		}).Compile(),
		(&SiteStrategy{
			ID:         "zonatmo",
			Hosts:      []string{"zonatmo.com"},
			Href:       HrefAll,
			Containers: []string{".chapters", ".list-group"},
			WaitFor:    ".chapters",
		}).Compile(),
		(&SiteStrategy{
			ID:              GenericName,
			Href:            HrefAll,
			Containers:      []string{".chapter-list", ".wp-manga-chapter", ".chapters"},
			KeywordFallback: true,
		}).Compile(),
	}
}

// Registry resolves a Strategy from a source URL.
type Registry struct {
	mu         sync.RWMutex
	strategies []Strategy
	def        Strategy
}

// NewRegistry returns a registry holding the built-in strategies with
// "generic" as default.
func NewRegistry() *Registry {
	r := &Registry{}
	for _, s := range Builtins() {
		r.Register(s)
	}
	_ = r.SetDefault(GenericName)
	return r
}

// Register appends s. Strategies registered earlier win when several match.
func (r *Registry) Register(s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies = append(r.strategies, s)
	if r.def == nil {
		r.def = s
	}
}

// SetDefault selects the registered strategy used when no other matches.
func (r *Registry) SetDefault(name string) error {
	s, ok := r.Lookup(name)
	if !ok {
		return fmt.Errorf("extract: unknown strategy %q", name)
	}
	r.mu.Lock()
	r.def = s
	r.mu.Unlock()
	return nil
}

// Lookup finds a strategy by name.
func (r *Registry) Lookup(name string) (Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.strategies {
		if s.Name() == name {
			return s, true
		}
	}
	return nil, false
}

// Resolve returns the first strategy whose Matches accepts url, or the
// default.
func (r *Registry) Resolve(url string) Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.strategies {
		if s.Matches(url) {
			return s
		}
	}
	return r.def
}

// Names lists registered strategy names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.strategies))
	for _, s := range r.strategies {
		names = append(names, s.Name())
	}
	return names
}
