package segment

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
)

// Capability is a row of the capability table.
type Capability struct {
	ID        string  `json:"id"`
	Kind      Kind    `json:"-"`
	KindName  string  `json:"kind"`
	Available bool    `json:"available"`
	Weight    float64 `json:"weight"`
	ModelPath string  `json:"model_path,omitempty"`
	Reason    string  `json:"reason,omitempty"`

	backend Backend
}

// Registry is the capability table. Rows keep registration order, which is
// also the order backends of one kind are tried in.
type Registry struct {
	mu    sync.RWMutex
	rows  []*Capability
	index map[string]int
}

// NewRegistry returns an empty table.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

func (r *Registry) upsert(c *Capability) {
	c.KindName = c.Kind.String()
	if i, ok := r.index[c.ID]; ok {
		r.rows[i] = c
		return
	}
	r.index[c.ID] = len(r.rows)
	r.rows = append(r.rows, c)
}

// Register adds an available backend.
func (r *Registry) Register(b Backend, kind Kind, weight float64, modelPath string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upsert(&Capability{
		ID: b.Name(), Kind: kind, Available: true,
		Weight: weight, ModelPath: modelPath, backend: b,
	})
}

// MarkUnavailable records a backend that failed to load.
func (r *Registry) MarkUnavailable(id string, kind Kind, weight float64, modelPath string, reason error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg := ""
	if reason != nil {
		msg = reason.Error()
	}
	r.upsert(&Capability{ID: id, Kind: kind, Weight: weight, ModelPath: modelPath, Reason: msg})
}

// Disable excludes a registered backend for the rest of the process lifetime.
func (r *Registry) Disable(id string, reason error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.index[id]
	if !ok {
		return
	}
	c := r.rows[i]
	c.Available = false
	if reason != nil {
		c.Reason = reason.Error()
	}
	slog.Warn("backend disabled", "backend", id, "error", reason)
}

// Get returns an available backend.
func (r *Registry) Get(id string) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.index[id]
	if !ok || !r.rows[i].Available || r.rows[i].backend == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, id)
	}
	return r.rows[i].backend, nil
}

// Weight returns the configured fusion weight, or 0 for unknown IDs.
func (r *Registry) Weight(id string) float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i, ok := r.index[id]; ok {
		return r.rows[i].Weight
	}
	return 0
}

// Available lists IDs of usable backends of kind in registration order.
func (r *Registry) Available(kind Kind) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []string
	for _, c := range r.rows {
		if c.Kind == kind && c.Available {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// IsAvailable reports whether id can be used.
func (r *Registry) IsAvailable(id string) bool {
	_, err := r.Get(id)
	return err == nil
}

// Snapshot copies the table for reporting.
func (r *Registry) Snapshot() []Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Capability, len(r.rows))
	for i, c := range r.rows {
		out[i] = *c
		out[i].backend = nil
	}
	return slices.Clip(out)
}

// Close releases backends that hold native resources.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for _, c := range r.rows {
		if cl, ok := c.backend.(io.Closer); ok {
			if err := cl.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", c.ID, err))
			}
		}
		c.Available = false
		c.backend = nil
	}
	return errors.Join(errs...)
}
