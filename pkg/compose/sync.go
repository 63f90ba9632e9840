// SPDX-License-Identifier: MPL-2.0

package compose

import (
	"context"
	"fmt"
	"maps"

	"golang.org/x/sync/errgroup"

	"github.com/yokehq/yoke/pkg/namespace"
)

// Do returns the API of the loaded unit ns. ns must be a plain identity:
// methods or a version range make it malformed.
func (c *Context) Do(ns namespace.Namespace) (*API, error) {
	if ns.IsWildcard() {
		return nil, &WildcardNotAllowedError{Op: "do", ID: ns.ID()}
	}
	if ns.Complete() != ns.ID() {
		return nil, &MalformedNamespaceError{Complete: ns.Complete(), ID: ns.ID()}
	}
	api, ok := c.api(ns.ID())
	if !ok {
		return nil, &NotLoadedError{ID: ns.ID()}
	}
	return api, nil
}

// If runs onLoaded with the API of ns when it is loaded and onMissing
// otherwise. It never waits. Nil callbacks are skipped.
func (c *Context) If(ns namespace.Namespace, onLoaded func(*API) error, onMissing func() error) error {
	if ns.IsWildcard() {
		return &WildcardNotAllowedError{Op: "if", ID: ns.ID()}
	}
	if api, ok := c.api(ns.ID()); ok {
		if onLoaded == nil {
			return nil
		}
		return onLoaded(api)
	}
	if onMissing == nil {
		return nil
	}
	return onMissing()
}

// Once runs cb with the API of ns exactly once: immediately when the unit
// is loaded, otherwise when it loads.
func (c *Context) Once(ns namespace.Namespace, cb func(*API)) error {
	if ns.IsWildcard() {
		return &WildcardNotAllowedError{Op: "once", ID: ns.ID()}
	}
	c.events.Once(ns.ID(), cb)
	return nil
}

// Await blocks until ns is loaded or ctx is done.
func (c *Context) Await(ctx context.Context, ns namespace.Namespace) (*API, error) {
	if ns.IsWildcard() {
		return nil, &WildcardNotAllowedError{Op: "await", ID: ns.ID()}
	}
	return c.events.Wait(ctx, ns.ID())
}

// Require returns the API of ns, instantiating the unit first when it is
// not loaded. Concurrent calls for the same id share one instantiation.
//
// A unit without catalog definition is prepared through the environment's
// pipeline when there is one. Construction options are merged with later
// sources winning: the destination root, the environment's shared options,
// the context's overrides for ns, then opts.
func (c *Context) Require(ctx context.Context, ns namespace.Namespace, opts Options) (*API, error) {
	if ns.IsWildcard() {
		return nil, &WildcardNotAllowedError{Op: "require", ID: ns.ID()}
	}
	id := ns.ID()
	if api, ok := c.api(id); ok {
		return api, nil
	}

	v, err, _ := c.group.Do(id, func() (any, error) {
		if api, ok := c.api(id); ok {
			return api, nil
		}
		return c.instantiate(ctx, ns, opts)
	})
	if err != nil {
		return nil, err
	}
	return v.(*API), nil
}

func (c *Context) instantiate(ctx context.Context, ns namespace.Namespace, opts Options) (*API, error) {
	id := ns.ID()
	key := ns.RegistrationKey()

	def, ok := c.env.catalog.Lookup(key)
	if !ok && c.env.pipeline != nil {
		if _, err := c.PrepareNamespaces(ctx, ns); err != nil {
			return nil, err
		}
		def, ok = c.env.catalog.Lookup(key)
	}
	if !ok {
		return nil, &UnitNotRegisteredError{Key: key}
	}

	options := Options{OptDestinationRoot: c.dest}
	maps.Copy(options, c.env.shared)
	maps.Copy(options, c.override(id))
	maps.Copy(options, opts)

	unit, err := def.Factory(ctx, Construction{
		Namespace:       ns,
		DestinationRoot: c.dest,
		Options:         options,
		Context:         c,
	})
	if err != nil {
		return nil, fmt.Errorf("instantiate %s: %w", id, err)
	}
	if unit == nil {
		return nil, &InvalidUnitError{Key: key, Reason: "factory returned no unit"}
	}

	api, err := newAPI(c, ns, unit)
	if err != nil {
		return nil, err
	}

	// A unit whose tasks cannot be queued is not loaded, so a later
	// Require retries the whole instantiation.
	if c.env.queue != nil {
		if err := c.env.queue.Queue(ctx, unit, api); err != nil {
			return nil, fmt.Errorf("queue tasks of %s: %w", id, err)
		}
	}

	c.mu.Lock()
	c.units[id] = unit
	c.apis[id] = api
	c.surface.add(api)
	c.mu.Unlock()

	c.logger.Debug("unit loaded", "namespace", id, "operations", api.Operations())
	c.events.Resolve(id, api)
	return api, nil
}

// Call invokes the methods of ns on its loaded unit with args. A single
// method returns its result; several run concurrently and return their
// results as []any in declaration order. The first failure cancels the rest.
func (c *Context) Call(ctx context.Context, ns namespace.Namespace, args ...any) (any, error) {
	if ns.IsWildcard() {
		return nil, &WildcardNotAllowedError{Op: "call", ID: ns.ID()}
	}
	if !ns.HasMethods() {
		return nil, &NoMethodsSpecifiedError{ID: ns.ID()}
	}
	api, ok := c.api(ns.ID())
	if !ok {
		return nil, &NotLoadedError{ID: ns.ID()}
	}

	methods := ns.Methods()
	ops := make([]Operation, len(methods))
	for i, name := range methods {
		op, ok := api.Operation(name)
		if !ok {
			return nil, &UnknownOperationError{ID: ns.ID(), Operation: name}
		}
		ops[i] = op
	}

	if len(ops) == 1 {
		return ops[0](ctx, args...)
	}

	results := make([]any, len(ops))
	g, gctx := errgroup.WithContext(ctx)
	for i, op := range ops {
		g.Go(func() error {
			res, err := op(gctx, args...)
			if err != nil {
				return fmt.Errorf("%s.%s: %w", ns.ID(), methods[i], err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// With requires ns and calls its methods, returning what Call returns, or
// nil when ns has no methods. A wildcard instance expands to every instance
// persisted in the configuration; the instances run concurrently and their
// results are returned as []any in InstanceNames order.
func (c *Context) With(ctx context.Context, ns namespace.Namespace, opts Options) (any, error) {
	if ns.IsWildcard() {
		instances := c.InstanceNames(ns)
		results := make([]any, len(instances))
		g, gctx := errgroup.WithContext(ctx)
		for i, instance := range instances {
			g.Go(func() error {
				res, err := c.With(gctx, namespace.WithInstance(ns, instance), opts)
				results[i] = res
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return results, nil
	}

	if ns.GeneratorPath() == "" {
		return nil, &GeneratorRequiredError{Namespace: ns.Complete()}
	}
	if _, err := c.Require(ctx, ns, opts); err != nil {
		return nil, err
	}
	if !ns.HasMethods() {
		return nil, nil
	}
	return c.Call(ctx, ns)
}
