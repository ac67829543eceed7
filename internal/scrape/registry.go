package scrape

import (
	"fmt"
	"sort"
)

// Registry maps source names to their plugins. It is built once at startup
// and never mutated afterwards, so reads need no locking.
type Registry struct {
	fetchers map[string]Fetcher
	details  map[string]DetailFetcher
}

func NewRegistry() *Registry {
	return &Registry{
		fetchers: make(map[string]Fetcher),
		details:  make(map[string]DetailFetcher),
	}
}

func (r *Registry) Register(f Fetcher) error {
	name := f.Name()
	if _, dup := r.fetchers[name]; dup {
		return fmt.Errorf("scraper %q registered twice", name)
	}
	r.fetchers[name] = f
	if d, ok := f.(DetailFetcher); ok {
		r.details[name] = d
	}
	return nil
}

func (r *Registry) Fetcher(name string) (Fetcher, bool) {
	f, ok := r.fetchers[name]
	return f, ok
}

func (r *Registry) DetailFetcher(name string) (DetailFetcher, bool) {
	d, ok := r.details[name]
	return d, ok
}

func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.fetchers))
	for name := range r.fetchers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
