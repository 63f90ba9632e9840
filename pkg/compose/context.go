// SPDX-License-Identifier: MPL-2.0

package compose

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/yokehq/yoke/internal/event"
	"github.com/yokehq/yoke/pkg/namespace"
	"github.com/yokehq/yoke/pkg/resolve"
)

// Context is a node of the composition tree. It owns the units loaded for
// one destination root and their APIs. Children share the environment and
// the shared state of their parent. A Context is safe for concurrent use;
// its lock is never held while unit code runs.
type Context struct {
	id     string
	key    string
	env    *Environment
	parent *Context
	dest   string
	shared *SharedState
	events *event.Channel[*API]
	group  singleflight.Group
	logger *slog.Logger

	mu        sync.Mutex
	units     map[string]Unit
	apis      map[string]*API
	overrides map[string]Options
	children  map[string]*Context
	surface   Surface
}

func newContext(env *Environment, parent *Context, key, dest string, shared *SharedState, options map[string]Options) *Context {
	c := &Context{
		id:        uuid.NewString(),
		key:       key,
		env:       env,
		parent:    parent,
		dest:      dest,
		shared:    shared,
		events:    event.New[*API](),
		units:     make(map[string]Unit),
		apis:      make(map[string]*API),
		overrides: make(map[string]Options, len(options)),
		children:  make(map[string]*Context),
		surface:   make(Surface),
	}
	for raw, opts := range options {
		id := raw
		if ns, err := namespace.Parse(raw); err == nil {
			id = ns.ID()
		}
		c.overrides[id] = opts.Clone()
	}
	c.logger = env.logger.With("context", c.id, "dest", dest)
	return c
}

// CreateChild returns the child context registered under id, creating it
// on first use with destinationRoot and per-unit option overrides keyed by
// namespace. Later calls with the same id return the same child and ignore
// the other arguments.
func (c *Context) CreateChild(id, destinationRoot string, options map[string]Options) *Context {
	c.mu.Lock()
	defer c.mu.Unlock()

	if child, ok := c.children[id]; ok {
		return child
	}
	child := newContext(c.env, c, id, destinationRoot, c.shared, options)
	c.children[id] = child
	c.logger.Debug("created child context", "child", id, "child_dest", destinationRoot)
	return child
}

// ID returns the unique id of the context.
func (c *Context) ID() string { return c.id }

// Key returns the id the context is registered under in its parent.
func (c *Context) Key() string { return c.key }

// Parent returns the parent context, or nil for the root.
func (c *Context) Parent() *Context { return c.parent }

// Environment returns the environment shared by the tree.
func (c *Context) Environment() *Environment { return c.env }

// DestinationRoot returns the directory the context is scoped to.
func (c *Context) DestinationRoot() string { return c.dest }

// Shared returns the state shared by the whole tree.
func (c *Context) Shared() *SharedState { return c.shared }

// Logger returns the context's logger.
func (c *Context) Logger() *slog.Logger { return c.logger }

// Child returns the child registered under id.
func (c *Context) Child(id string) (*Context, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	child, ok := c.children[id]
	return child, ok
}

// Children returns the child ids, sorted.
func (c *Context) Children() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Sorted(maps.Keys(c.children))
}

// Loaded reports whether the unit with the given namespace id is loaded.
func (c *Context) Loaded(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.apis[id]
	return ok
}

// LoadedIDs returns the ids of the loaded units, sorted.
func (c *Context) LoadedIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Sorted(maps.Keys(c.apis))
}

// Surface returns a copy of the public surface of the loaded units.
func (c *Context) Surface() Surface {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.surface.clone()
}

// Satisfied reports whether ns is loaded or can be instantiated from the
// catalog.
func (c *Context) Satisfied(ns namespace.Namespace) bool {
	return c.Loaded(ns.ID()) || c.env.catalog.Has(ns.RegistrationKey())
}

// PrepareEnvironment makes every namespace in raws satisfiable in this
// context, installing and discovering units as needed.
func (c *Context) PrepareEnvironment(ctx context.Context, raws ...string) (bool, error) {
	return c.pipeline().Prepare(ctx, c, raws...)
}

// PrepareNamespaces is PrepareEnvironment for parsed namespaces.
func (c *Context) PrepareNamespaces(ctx context.Context, namespaces ...namespace.Namespace) (bool, error) {
	return c.pipeline().PrepareNamespaces(ctx, c, namespaces...)
}

func (c *Context) pipeline() *resolve.Pipeline {
	if c.env.pipeline != nil {
		return c.env.pipeline
	}
	return &resolve.Pipeline{Logger: c.logger, Tracer: c.env.tracer}
}

func (c *Context) api(id string) (*API, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	api, ok := c.apis[id]
	return api, ok
}

func (c *Context) override(id string) Options {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.overrides[id]
}
