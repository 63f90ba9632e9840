// SPDX-License-Identifier: MPL-2.0

package compose

import (
	"context"
	"maps"

	"github.com/yokehq/yoke/pkg/namespace"
)

type (
	// API is the public surface of a loaded unit: its public operations,
	// bound to the instance, and accessors for its configuration. The set of
	// operations is fixed when the API is built.
	API struct {
		ns    namespace.Namespace
		owner *Context
		unit  Unit
		ops   []PublicOperation
		index map[string]int
	}

	// SurfaceEntry is a unit in a public surface. API is set for a unit
	// without instance id, Instances for units loaded per instance.
	SurfaceEntry struct {
		API       *API
		Instances map[string]*API
	}

	// Surface maps unscoped unit names to their APIs.
	Surface map[string]SurfaceEntry
)

func newAPI(owner *Context, ns namespace.Namespace, unit Unit) (*API, error) {
	declared := unit.PublicOperations()
	api := &API{
		ns:    namespace.WithVersionRange(namespace.WithMethods(ns), ""),
		owner: owner,
		unit:  unit,
		ops:   make([]PublicOperation, 0, len(declared)),
		index: make(map[string]int, len(declared)),
	}
	for _, op := range declared {
		switch {
		case op.Name == "":
			return nil, &InvalidUnitError{Key: ns.ID(), Reason: "operation without a name"}
		case op.Run == nil:
			return nil, &InvalidUnitError{Key: ns.ID(), Reason: "operation " + op.Name + " has no implementation"}
		}
		if _, dup := api.index[op.Name]; dup {
			return nil, &InvalidUnitError{Key: ns.ID(), Reason: "operation " + op.Name + " declared twice"}
		}
		api.index[op.Name] = len(api.ops)
		api.ops = append(api.ops, op)
	}
	return api, nil
}

// Namespace returns the identity of the unit.
func (a *API) Namespace() namespace.Namespace { return a.ns }

// Unit returns the unit instance.
func (a *API) Unit() Unit { return a.unit }

// Operations returns the operation names in declaration order.
func (a *API) Operations() []string {
	names := make([]string, len(a.ops))
	for i, op := range a.ops {
		names[i] = op.Name
	}
	return names
}

// Has reports whether the unit exposes name.
func (a *API) Has(name string) bool {
	_, ok := a.index[name]
	return ok
}

// Operation returns the operation called name.
func (a *API) Operation(name string) (Operation, bool) {
	i, ok := a.index[name]
	if !ok {
		return nil, false
	}
	return a.ops[i].Run, true
}

// Invoke runs the operation called name.
func (a *API) Invoke(ctx context.Context, name string, args ...any) (any, error) {
	op, ok := a.Operation(name)
	if !ok {
		return nil, &UnknownOperationError{ID: a.ns.ID(), Operation: name}
	}
	return op(ctx, args...)
}

// Config returns the unit-scoped configuration of the unit.
func (a *API) Config() map[string]any {
	return a.owner.GetConfig(a.ns, true)
}

// ConfigValue returns a single value of the unit-scoped configuration.
func (a *API) ConfigValue(key string) (any, bool) {
	v, ok := a.Config()[key]
	return v, ok
}

// Lookup returns the API registered under the unscoped name of ns and its
// instance id.
func (s Surface) Lookup(ns namespace.Namespace) (*API, bool) {
	entry, ok := s[ns.UnscopedName()]
	if !ok {
		return nil, false
	}
	if ns.HasInstance() {
		api, ok := entry.Instances[ns.InstanceID()]
		return api, ok
	}
	return entry.API, entry.API != nil
}

func (s Surface) add(api *API) {
	key := api.ns.UnscopedName()
	entry := s[key]
	if api.ns.HasInstance() {
		if entry.Instances == nil {
			entry.Instances = make(map[string]*API)
		}
		entry.Instances[api.ns.InstanceID()] = api
	} else {
		entry.API = api
	}
	s[key] = entry
}

func (s Surface) clone() Surface {
	out := make(Surface, len(s))
	for k, entry := range s {
		entry.Instances = maps.Clone(entry.Instances)
		out[k] = entry
	}
	return out
}
