// SPDX-License-Identifier: MPL-2.0

package compose

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/buger/jsonparser"
	"github.com/spf13/afero"

	"github.com/yokehq/yoke/pkg/namespace"
)

// ConfigFileName is the configuration document read from a context's
// destination root.
const ConfigFileName = ".yoke-rc.json"

// ConfigPath returns the configuration document of the context.
func (c *Context) ConfigPath() string {
	return filepath.Join(c.dest, ConfigFileName)
}

// GetConfig returns the configuration of ns. The document is keyed by
// package name; wantUnitScoped, or an instance id, narrows it to the unit
// key, and an instance id narrows it again to "#<instance>". Any missing
// file or key, or a malformed document, yields an empty map.
func (c *Context) GetConfig(ns namespace.Namespace, wantUnitScoped bool) map[string]any {
	keys := []string{ns.PackageName()}
	if wantUnitScoped || ns.HasInstance() {
		keys = append(keys, ns.UnitKey())
	}
	if ns.HasInstance() {
		keys = append(keys, namespace.InstancePrefix+ns.InstanceID())
	}

	raw, ok := c.configObject(keys...)
	if !ok {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil || out == nil {
		return map[string]any{}
	}
	return out
}

// InstanceNames returns the instance ids persisted under the unit key of
// ns, in document order.
func (c *Context) InstanceNames(ns namespace.Namespace) []string {
	raw, ok := c.configObject(ns.PackageName(), ns.UnitKey())
	if !ok {
		return nil
	}

	var names []string
	_ = jsonparser.ObjectEach(raw, func(key, _ []byte, _ jsonparser.ValueType, _ int) error {
		name, found := strings.CutPrefix(string(key), namespace.InstancePrefix)
		if found && name != "" && name != namespace.Wildcard {
			names = append(names, name)
		}
		return nil
	})
	return names
}

// configObject returns the object found at keys in the configuration document.
func (c *Context) configObject(keys ...string) ([]byte, bool) {
	data, err := afero.ReadFile(c.env.fs, c.ConfigPath())
	if err != nil {
		return nil, false
	}
	value, dataType, _, err := jsonparser.Get(data, keys...)
	if err != nil || dataType != jsonparser.Object {
		return nil, false
	}
	return value, true
}
