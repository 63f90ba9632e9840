// SPDX-License-Identifier: MPL-2.0

package compose

import (
	"context"
	"maps"

	"github.com/yokehq/yoke/pkg/namespace"
	"github.com/yokehq/yoke/pkg/resolve"
)

// OptDestinationRoot is the construction option holding the destination root
// of the context a unit is instantiated in.
const OptDestinationRoot = "destinationRoot"

type (
	// Options are the construction options of a unit.
	Options map[string]any

	// Operation is a public operation bound to a unit instance.
	Operation func(ctx context.Context, args ...any) (any, error)

	// PublicOperation is a named operation a unit exposes through its API.
	PublicOperation struct {
		Name string
		Run  Operation
	}

	// Unit is an instantiated generator. PublicOperations lists, in order,
	// the operations exposed through the unit's API. It is called once,
	// right after construction.
	Unit interface {
		PublicOperations() []PublicOperation
	}

	// Tasker is implemented by units that declare the operations a task
	// queue runs for them, in order.
	Tasker interface {
		Tasks() []string
	}

	// Construction carries everything a Factory needs to build a unit.
	Construction struct {
		Namespace       namespace.Namespace
		DestinationRoot string
		// Options are the merged construction options, OptDestinationRoot
		// included.
		Options Options
		// Context is the composition context the unit is loaded into. Units
		// compose other units through it.
		Context *Context
	}

	// Factory constructs a unit.
	Factory func(ctx context.Context, c Construction) (Unit, error)

	// TaskQueue receives every unit right after it is loaded.
	TaskQueue interface {
		Queue(ctx context.Context, unit Unit, api *API) error
	}

	// Loader turns a generator discovered on disk into a Factory.
	Loader interface {
		Load(ctx context.Context, d resolve.Discovered) (Factory, error)
	}

	// Operations is a Unit made of a fixed operation list.
	Operations []PublicOperation
)

// PublicOperations returns the operations in declaration order.
func (o Operations) PublicOperations() []PublicOperation { return o }

// Clone returns a shallow copy of o.
func (o Options) Clone() Options {
	if o == nil {
		return Options{}
	}
	return maps.Clone(o)
}

// String returns the option value for key when it is a string.
func (o Options) String(key string) string {
	s, _ := o[key].(string)
	return s
}
