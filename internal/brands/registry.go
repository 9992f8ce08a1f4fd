package brands

import (
	"errors"
	"sort"
	"sync"
)

var (
	ErrNotFound  = errors.New("brand not found")
	ErrInvalidID = errors.New("brand id is required")

	ErrInvalidAuth          = errors.New("invalid brand auth")
	ErrInvalidRequiredField = errors.New("unknown required field")
)

// Registry is the in-process brand table. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	brands map[string]Brand
}

// NewRegistry returns a registry seeded with the given brands.
func NewRegistry(seed ...Brand) *Registry {
	r := &Registry{brands: make(map[string]Brand, len(seed))}
	for _, b := range seed {
		_ = r.Upsert(b)
	}
	return r
}

// NewDefaultRegistry returns a registry holding only the demo brand.
func NewDefaultRegistry() *Registry {
	return NewRegistry(DefaultBrand())
}

// Get returns a copy of the brand with the given id.
func (r *Registry) Get(id string) (Brand, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.brands[id]
	if !ok {
		return Brand{}, ErrNotFound
	}
	return b.clone(), nil
}

// List returns every brand ordered by id.
func (r *Registry) List() []Brand {
	return r.filter(func(Brand) bool { return true })
}

// ListActive returns active brands ordered by id.
func (r *Registry) ListActive() []Brand {
	return r.filter(func(b Brand) bool { return b.Active })
}

// CountActive returns the number of active brands.
func (r *Registry) CountActive() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, b := range r.brands {
		if b.Active {
			n++
		}
	}
	return n
}

func (r *Registry) filter(keep func(Brand) bool) []Brand {
	r.mu.RLock()
	out := make([]Brand, 0, len(r.brands))
	for _, b := range r.brands {
		if keep(b) {
			out = append(out, b.clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Upsert inserts or replaces a brand.
func (r *Registry) Upsert(b Brand) error {
	b = b.normalize()
	if err := b.validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.brands[b.ID] = b.clone()
	return nil
}

// SetActive flips a brand on or off and returns the updated brand.
func (r *Registry) SetActive(id string, active bool) (Brand, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.brands[id]
	if !ok {
		return Brand{}, ErrNotFound
	}
	b.Active = active
	r.brands[id] = b
	return b.clone(), nil
}

// Toggle inverts the active flag of a brand.
func (r *Registry) Toggle(id string) (Brand, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.brands[id]
	if !ok {
		return Brand{}, ErrNotFound
	}
	b.Active = !b.Active
	r.brands[id] = b
	return b.clone(), nil
}
