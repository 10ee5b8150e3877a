package keel

import "slices"

// ComponentQuery defines criteria for querying the components of a kernel.
type ComponentQuery struct {
	// Lifecycle filters by lifecycle.
	// Empty string matches all lifecycles.
	Lifecycle Lifecycle

	// Group filters by component group.
	// Empty string matches all groups.
	Group string

	// Service filters by a contract the component must satisfy.
	// The zero contract matches all components.
	Service Contract

	// Metadata filters by metadata key-value pairs.
	// All specified metadata must match for a component to be included.
	Metadata map[string]string

	// State filters by handler state.
	// nil matches all components.
	State *HandlerState
}

// Query returns the local handlers of k matching the query, in registration order.
//
// Example:
//
//	// Find all singleton components in the "api" group
//	handlers := keel.Query(k, keel.ComponentQuery{
//	    Lifecycle: keel.LifecycleSingleton,
//	    Group:     "api",
//	})
func Query(k *Kernel, query ComponentQuery) []*Handler {
	var results []*Handler

	for _, h := range k.Handlers() {
		m := h.model

		// Filter by lifecycle
		if query.Lifecycle != "" && m.lifecycle != query.Lifecycle {
			continue
		}

		// Filter by group
		if query.Group != "" && !slices.Contains(m.groups, query.Group) {
			continue
		}

		// Filter by service
		if !query.Service.IsZero() && !m.Serves(query.Service) {
			continue
		}

		// Filter by metadata
		if len(query.Metadata) > 0 {
			allMatch := true
			for key, value := range query.Metadata {
				if m.metadata[key] != value {
					allMatch = false
					break
				}
			}
			if !allMatch {
				continue
			}
		}

		// Filter by state
		if query.State != nil && h.State() != *query.State {
			continue
		}

		results = append(results, h)
	}

	return results
}

// QueryKeys returns the keys of handlers matching the query.
// This is more convenient than Query when you only need keys.
func QueryKeys(k *Kernel, query ComponentQuery) []string {
	results := Query(k, query)
	keys := make([]string, len(results))
	for i, h := range results {
		keys[i] = h.Key()
	}
	return keys
}

// FindByGroup returns all local components in a specific group.
func FindByGroup(k *Kernel, group string) []*Handler {
	return Query(k, ComponentQuery{Group: group})
}

// FindByLifecycle returns all local components with a specific lifecycle.
func FindByLifecycle(k *Kernel, lifecycle Lifecycle) []*Handler {
	return Query(k, ComponentQuery{Lifecycle: lifecycle})
}

// FindWaiting returns all local components still waiting for dependencies.
func FindWaiting(k *Kernel) []*Handler {
	state := WaitingDependencies
	return Query(k, ComponentQuery{State: &state})
}
