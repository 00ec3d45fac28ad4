package resolution

import (
	"sort"
	"sync"

	"github.com/notargets/SpecTrans/errs"
)

// Tag identifies a registered resolution. The zero Tag selects the default,
// which is the first resolution registered.
type Tag int

// Default resolves to the first registered resolution
const Default Tag = 0

// Registry stores resolutions by tag. It is safe for concurrent use; the
// resolutions it hands out are never modified after registration.
type Registry struct {
	mu      sync.RWMutex
	entries map[Tag]*Resolution
	first   Tag
	next    Tag
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[Tag]*Resolution),
		next:    1,
	}
}

// Register builds the resolution described by cfg and returns its tag
func (r *Registry) Register(cfg Config) (Tag, error) {
	// Table construction is the expensive part and needs no lock
	res, err := NewResolution(cfg)
	if err != nil {
		return Default, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tag := r.next
	r.next++
	res.Tag = tag
	r.entries[tag] = res
	if r.first == Default {
		r.first = tag
	}
	return tag, nil
}

// Resolve looks up a resolution; Default selects the first registered one
func (r *Registry) Resolve(tag Tag) (*Resolution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if tag == Default {
		tag = r.first
	}
	res, ok := r.entries[tag]
	if !ok {
		if tag == Default {
			return nil, errs.ErrUnknownResolution
		}
		return nil, errs.UnknownResolution(int(tag))
	}
	return res, nil
}

// Tags returns the registered tags in registration order
func (r *Registry) Tags() []Tag {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tags := make([]Tag, 0, len(r.entries))
	for t := range r.entries {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}
