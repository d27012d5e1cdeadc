// Package extractor defines the uniform extractor contract and the
// adapter that turns arbitrary miner output into validated unified
// contacts. Capabilities are data, not inheritance: the adapter and the
// router read them to decide caching, pagination and cost handling.
package extractor

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/fx"

	"github.com/prospectlab/prospector/domain/normalize"
	"github.com/prospectlab/prospector/pkg/costtracker"
)

var Module = fx.Module("extractor",
	fx.Provide(NewRegistry, NewAdapter, NewHTTPBasicMiner, NewDocumentMiner),
	fx.Invoke(registerBuiltins),
)

// Sentinel outcomes an extractor reports through its error return.
// ErrUnavailable lives with the placeholder miners in stubs.go.
var (
	// ErrBlocked marks an anti-bot or 401/403/429 response.
	ErrBlocked = errors.New("extractor: blocked by target")
	// ErrEmpty marks a successful fetch that yielded no extractable data.
	ErrEmpty = errors.New("extractor: no extractable content")
)

// Request is the per-URL unit of work handed to an extractor.
type Request struct {
	JobID    string            `json:"job_id"`
	TenantID string            `json:"tenant_id"`
	URL      string            `json:"url"`
	Hints    map[string]string `json:"hints,omitempty"`
}

// WithURL clones the request for another page of the same job.
func (r Request) WithURL(url string) Request {
	r.URL = url
	return r
}

// Capabilities describe an extractor to the router and the adapter.
type Capabilities struct {
	UseCache           bool                  `json:"use_cache"`
	SupportsPagination bool                  `json:"supports_pagination"`
	OwnPagination      bool                  `json:"own_pagination"`
	CostOperation      costtracker.Operation `json:"cost_operation"`
	DefaultConfidence  int                   `json:"default_confidence"`
	Timeout            time.Duration         `json:"timeout"`
}

// Extractor is the single contract every miner implements.
type Extractor interface {
	Name() string
	Capabilities() Capabilities
	Mine(ctx context.Context, req Request) (normalize.MinerOutput, error)
}

// Registry holds the known extractors by name.
type Registry struct {
	mu     sync.RWMutex
	miners map[string]Extractor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{miners: make(map[string]Extractor)}
}

// Register adds an extractor; later registrations with the same name win.
func (r *Registry) Register(e Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.miners[e.Name()] = e
}

// Get returns the named extractor.
func (r *Registry) Get(name string) (Extractor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.miners[name]
	return e, ok
}

// Names lists the registered extractor names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.miners))
	for name := range r.miners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func registerBuiltins(reg *Registry, httpBasic *HTTPBasicMiner, document *DocumentMiner) {
	reg.Register(httpBasic)
	reg.Register(document)
	for _, m := range unavailableMiners() {
		reg.Register(m)
	}
}
