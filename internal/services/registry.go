package services

import (
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/pimon/internal/domain"
)

// ErrUnknownService is returned for identifiers that are not registered.
var ErrUnknownService = errors.New("unknown service")

// Registry is the immutable, ordered set of monitored services.
type Registry struct {
	descriptors  []domain.ServiceDescriptor
	byIdentifier map[string]domain.ServiceDescriptor
}

// NewRegistry builds a registry. Identifiers must be unique.
func NewRegistry(descriptors []domain.ServiceDescriptor) (*Registry, error) {
	r := &Registry{
		descriptors:  make([]domain.ServiceDescriptor, 0, len(descriptors)),
		byIdentifier: make(map[string]domain.ServiceDescriptor, len(descriptors)),
	}
	for _, d := range descriptors {
		if _, dup := r.byIdentifier[d.Identifier]; dup {
			return nil, fmt.Errorf("duplicate service identifier %q", d.Identifier)
		}
		r.byIdentifier[d.Identifier] = d
		r.descriptors = append(r.descriptors, d)
	}
	return r, nil
}

// Descriptors returns the services in configuration order.
func (r *Registry) Descriptors() []domain.ServiceDescriptor {
	return append([]domain.ServiceDescriptor(nil), r.descriptors...)
}

// Lookup finds a descriptor by identifier.
func (r *Registry) Lookup(identifier string) (domain.ServiceDescriptor, bool) {
	d, ok := r.byIdentifier[identifier]
	return d, ok
}

// Len returns the number of registered services.
func (r *Registry) Len() int { return len(r.descriptors) }
