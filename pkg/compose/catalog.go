// SPDX-License-Identifier: MPL-2.0

package compose

import (
	"slices"
	"sync"
)

type (
	// Definition describes how to construct the unit registered under Key.
	Definition struct {
		// Key is the registration key, see namespace.Namespace.RegistrationKey.
		Key         string
		PackageName string
		Version     string
		// Path is the unit file the definition was loaded from, if any.
		Path    string
		Factory Factory
	}

	// Catalog maintains the known unit definitions.
	Catalog struct {
		mu   sync.RWMutex
		defs map[string]Definition
	}
)

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{defs: make(map[string]Definition)}
}

// Register installs def under key. It fails when key is already registered.
func (c *Catalog) Register(key string, def Definition) error {
	if key == "" {
		return &InvalidUnitError{Reason: "registration key is required"}
	}
	if def.Factory == nil {
		return &InvalidUnitError{Key: key, Reason: "factory is required"}
	}
	def.Key = key

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.defs[key]; exists {
		return &DuplicateDefinitionError{Key: key}
	}
	c.defs[key] = def
	return nil
}

// MustRegister panics if registration fails.
func (c *Catalog) MustRegister(key string, def Definition) {
	if err := c.Register(key, def); err != nil {
		panic(err)
	}
}

// Lookup returns the definition registered under key.
func (c *Catalog) Lookup(key string) (Definition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	def, ok := c.defs[key]
	return def, ok
}

// Has reports whether key is registered.
func (c *Catalog) Has(key string) bool {
	_, ok := c.Lookup(key)
	return ok
}

// Keys returns the registered keys, sorted.
func (c *Catalog) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.defs))
	for key := range c.defs {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

// Definitions returns every definition ordered by key.
func (c *Catalog) Definitions() []Definition {
	keys := c.Keys()
	c.mu.RLock()
	defer c.mu.RUnlock()
	defs := make([]Definition, 0, len(keys))
	for _, key := range keys {
		if def, ok := c.defs[key]; ok {
			defs = append(defs, def)
		}
	}
	return defs
}
