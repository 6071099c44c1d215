package source

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"job-sync/internal/config"
)

type registration struct {
	a Adapter
	d Descriptor
}

type entry struct {
	adapter Adapter
	desc    Descriptor
}

// Registry maps a source identifier to its adapter.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

func NewRegistry() *Registry {
	return &Registry{entries: map[string]entry{}}
}

// Register adds an adapter under desc.Name, which must match the adapter's Name.
func (r *Registry) Register(a Adapter, desc Descriptor) error {
	if r == nil || a == nil {
		return fmt.Errorf("nil registry/adapter")
	}
	name := strings.ToLower(strings.TrimSpace(desc.Name))
	if name == "" {
		name = a.Name()
		desc.Name = name
	}
	if name != a.Name() {
		return fmt.Errorf("descriptor name %q does not match adapter %q", name, a.Name())
	}
	if desc.MaxPageSize <= 0 {
		desc.MaxPageSize = 100
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[name]; ok {
		return fmt.Errorf("source %q already registered", name)
	}
	r.entries[name] = entry{adapter: a, desc: desc}
	return nil
}

func (r *Registry) Get(name string) (Adapter, Descriptor, bool) {
	if r == nil {
		return nil, Descriptor{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[strings.ToLower(strings.TrimSpace(name))]
	return e.adapter, e.desc, ok
}

// Names lists registered sources by ascending priority, then name.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	descs := make([]Descriptor, 0, len(r.entries))
	for _, e := range r.entries {
		descs = append(descs, e.desc)
	}
	r.mu.RUnlock()

	sort.Slice(descs, func(i, j int) bool {
		if descs[i].Priority != descs[j].Priority {
			return descs[i].Priority < descs[j].Priority
		}
		return descs[i].Name < descs[j].Name
	})
	out := make([]string, 0, len(descs))
	for _, d := range descs {
		out = append(out, d.Name)
	}
	return out
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// NewDefaultRegistry registers every public source plus the credentialed
// ones whose keys are configured.
func NewDefaultRegistry(cfg config.SourcesConfig, client *http.Client) (*Registry, error) {
	opts := Options{Client: client, UserAgent: cfg.UserAgent}
	r := NewRegistry()

	adapters := []registration{
		{NewRemotive(opts), Descriptor{Name: NameRemotive, Priority: 1, MaxPageSize: 100, MinInterval: remotiveInterval}},
		{NewRemoteOK(opts), Descriptor{Name: NameRemoteOK, Priority: 2, MaxPageSize: 100, MinInterval: remoteOKInterval}},
		{NewHimalayas(opts), Descriptor{Name: NameHimalayas, Priority: 3, MaxPageSize: 20, MinInterval: himalayasInterval}},
		{NewTheMuse(opts, cfg.TheMuseAPIKey), Descriptor{Name: NameTheMuse, Priority: 4, MaxPageSize: 20, MinInterval: theMuseInterval}},
		{NewJobicy(opts), Descriptor{Name: NameJobicy, Priority: 5, MaxPageSize: 50, MinInterval: jobicyInterval}},
		{NewArbeitnow(opts), Descriptor{Name: NameArbeitnow, Priority: 6, MaxPageSize: 100, MinInterval: arbeitnowInterval}},
		{NewWeWorkRemotely(opts), Descriptor{Name: NameWeWorkRemotely, Priority: 9, MaxPageSize: 100, MinInterval: weWorkRemotelyInterval}},
	}
	if cfg.USAJobsAPIKey != "" && cfg.USAJobsEmail != "" {
		adapters = append(adapters, registration{NewUSAJobs(opts, cfg.USAJobsAPIKey, cfg.USAJobsEmail), Descriptor{Name: NameUSAJobs, Priority: 7, MaxPageSize: 500, MinInterval: usaJobsInterval}})
	}
	if cfg.FindWorkAPIKey != "" {
		adapters = append(adapters, registration{NewFindWork(opts, cfg.FindWorkAPIKey), Descriptor{Name: NameFindWork, Priority: 8, MaxPageSize: 100, MinInterval: findWorkInterval}})
	}

	for _, it := range adapters {
		if err := r.Register(it.a, it.d); err != nil {
			return nil, err
		}
	}
	return r, nil
}
