package expand

import (
	"strings"
	"sync"

	cerrors "github.com/coraxsearch/corax/internal/errors"
)

// ModelNamespace is the default namespace of expansion model names.
// Short names are resolved against it; fully qualified names must
// carry this prefix.
const ModelNamespace = "corax.models."

// ModelRegistry resolves model names to cached Model instances.
// Resolution is memoized for the process lifetime, which is sound
// because models are stateless once constructed. The registry is safe
// for concurrent use.
type ModelRegistry struct {
	mu        sync.RWMutex
	factories map[string]func() Model
	cache     map[string]Model
}

// NewModelRegistry creates a registry with the built-in models
// registered: Bo1, Bo2, KL.
func NewModelRegistry() *ModelRegistry {
	r := &ModelRegistry{
		factories: make(map[string]func() Model),
		cache:     make(map[string]Model),
	}
	r.Register("Bo1", func() Model { return Bo1{} })
	r.Register("Bo2", func() Model { return Bo2{} })
	r.Register("KL", func() Model { return KL{} })
	return r
}

// Register adds a model factory under a short name. Registration is
// expected at composition time, before concurrent resolution starts.
func (r *ModelRegistry) Register(name string, factory func() Model) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[canonicalModelName(name)] = factory
}

// Resolve returns the model for a short or fully qualified name.
// Repeated resolutions of the same name return the same instance.
// Unknown names yield a configuration error.
func (r *ModelRegistry) Resolve(name string) (Model, error) {
	key := canonicalModelName(name)

	r.mu.RLock()
	if m, ok := r.cache[key]; ok {
		r.mu.RUnlock()
		return m, nil
	}
	factory, ok := r.factories[key]
	r.mu.RUnlock()

	if !ok {
		return nil, cerrors.Newf(cerrors.ErrCodeUnknownModel, "unknown expansion model %q", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Re-check under the write lock: a concurrent resolver may have
	// cached the instance already, and identity stability requires
	// handing out that one.
	if m, ok := r.cache[key]; ok {
		return m, nil
	}
	m := factory()
	if m == nil {
		return nil, cerrors.Newf(cerrors.ErrCodeUnknownModel, "model factory for %q returned nil", name)
	}
	r.cache[key] = m
	return m, nil
}

// canonicalModelName strips the default namespace and lowercases, so
// "Bo1", "bo1" and "corax.models.Bo1" resolve to the same entry.
func canonicalModelName(name string) string {
	name = strings.TrimPrefix(name, ModelNamespace)
	return strings.ToLower(name)
}
