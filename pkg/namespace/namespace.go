// SPDX-License-Identifier: MPL-2.0

package namespace

import (
	"regexp"
	"slices"
	"strings"

	"github.com/yokehq/yoke/pkg/semver"
)

const (
	// Wildcard is the instance id that fans out to every persisted instance.
	Wildcard = "*"

	// InstancePrefix marks instance ids, both in namespace strings and in
	// configuration keys.
	InstancePrefix = "#"

	// PackagePrefix is the naming convention for generator packages.
	PackagePrefix = "yoke-"

	// DefaultUnit is the unit key of a namespace without a generator path.
	DefaultUnit = "app"
)

var (
	// segmentPattern validates scope bodies, package hints, generator path
	// segments and instance ids.
	segmentPattern = regexp.MustCompile(`^[a-z0-9~-][a-z0-9._~-]*$`)

	// methodPattern validates method names.
	methodPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// Namespace identifies a generator unit, optionally narrowed to an instance,
// decorated with methods to call and a version range to install. The zero
// value is not a valid namespace; obtain one with Parse.
type Namespace struct {
	scope        string
	hint         string
	path         string
	instance     string
	methods      []string
	versionRange string
}

// Parse parses raw with the grammar
//
//	[@scope/]hint[:path[:path...]][#instance|#*][:method[,method...]][@range]
//
// Methods are only recognized after the instance segment, so a namespace
// without an instance writes them after an empty slot: "foo:sub#:run".
func Parse(raw string) (Namespace, error) {
	var ns Namespace

	rest := strings.TrimSpace(raw)
	if rest == "" {
		return ns, invalid(raw, "empty namespace")
	}

	if strings.HasPrefix(rest, "@") {
		scope, tail, ok := strings.Cut(rest[1:], "/")
		if !ok {
			return ns, invalid(raw, "scope must be followed by /")
		}
		if !segmentPattern.MatchString(scope) {
			return ns, invalid(raw, "invalid scope "+quote(scope))
		}
		ns.scope = "@" + scope
		rest = tail
	}

	if head, rng, ok := strings.Cut(rest, "@"); ok {
		if rng == "" {
			return ns, invalid(raw, "empty version range")
		}
		if _, err := semver.ParseRange(rng); err != nil {
			return ns, &InvalidNamespaceError{Value: raw, Reason: "invalid version range", Err: err}
		}
		ns.versionRange = rng
		rest = head
	}

	if head, tail, ok := strings.Cut(rest, InstancePrefix); ok {
		if err := ns.parseInstance(raw, tail); err != nil {
			return ns, err
		}
		rest = head
	}

	segments := strings.Split(rest, ":")
	ns.hint = segments[0]
	if ns.hint == "" {
		return ns, invalid(raw, "missing package hint")
	}
	if strings.HasPrefix(ns.hint, "-") || !segmentPattern.MatchString(ns.hint) {
		return ns, invalid(raw, "invalid package hint "+quote(ns.hint))
	}
	for _, seg := range segments[1:] {
		if seg == "" {
			return ns, invalid(raw, "empty generator path segment")
		}
		if !segmentPattern.MatchString(seg) {
			return ns, invalid(raw, "invalid generator path segment "+quote(seg))
		}
	}
	ns.path = strings.Join(segments[1:], "/")

	return ns, nil
}

func (ns *Namespace) parseInstance(raw, tail string) error {
	if strings.Contains(tail, InstancePrefix) {
		return invalid(raw, "more than one instance marker")
	}
	if tail == "" {
		return invalid(raw, "instance marker without instance or methods")
	}

	instance, methods, hasMethods := strings.Cut(tail, ":")
	switch {
	case instance == "" && !hasMethods:
		return invalid(raw, "empty instance")
	case instance == Wildcard, instance == "":
	case !segmentPattern.MatchString(instance):
		return invalid(raw, "invalid instance "+quote(instance))
	}
	ns.instance = instance

	if !hasMethods {
		return nil
	}
	for name := range strings.SplitSeq(methods, ",") {
		if name == "" {
			return invalid(raw, "empty method name")
		}
		if strings.Contains(name, Wildcard) {
			return invalid(raw, "method names cannot contain "+quote(Wildcard))
		}
		if !methodPattern.MatchString(name) {
			return invalid(raw, "invalid method name "+quote(name))
		}
		ns.methods = append(ns.methods, name)
	}
	return nil
}

// MustParse is like Parse but panics on error.
func MustParse(raw string) Namespace {
	ns, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return ns
}

// ToID returns ns.ID().
func ToID(ns Namespace) string { return ns.ID() }

// ToComplete returns ns.Complete().
func ToComplete(ns Namespace) string { return ns.Complete() }

// Equal reports whether a and b denote the same unit. Methods and version
// ranges never affect identity.
func Equal(a, b Namespace) bool { return a.ID() == b.ID() }

// WithInstance returns a copy of ns narrowed to instance.
func WithInstance(ns Namespace, instance string) Namespace {
	ns.instance = instance
	ns.methods = slices.Clone(ns.methods)
	return ns
}

// WithMethods returns a copy of ns with its method list replaced.
func WithMethods(ns Namespace, methods ...string) Namespace {
	ns.methods = slices.Clone(methods)
	return ns
}

// WithVersionRange returns a copy of ns with its version range replaced.
func WithVersionRange(ns Namespace, rng string) Namespace {
	ns.methods = slices.Clone(ns.methods)
	ns.versionRange = rng
	return ns
}

// Scope returns the registry scope including its leading "@", or "".
func (ns Namespace) Scope() string { return ns.scope }

// PackageHint returns the package name as written in the namespace.
func (ns Namespace) PackageHint() string { return ns.hint }

// GeneratorPath returns the slash-delimited generator path, or "".
func (ns Namespace) GeneratorPath() string { return ns.path }

// InstanceID returns the instance id, Wildcard, or "" when absent.
func (ns Namespace) InstanceID() string { return ns.instance }

// Methods returns a copy of the method list.
func (ns Namespace) Methods() []string { return slices.Clone(ns.methods) }

// VersionRange returns the version range, or "".
func (ns Namespace) VersionRange() string { return ns.versionRange }

// IsWildcard reports whether the instance id is Wildcard.
func (ns Namespace) IsWildcard() bool { return ns.instance == Wildcard }

// HasInstance reports whether the namespace names an instance.
func (ns Namespace) HasInstance() bool { return ns.instance != "" }

// HasMethods reports whether the namespace carries methods to call.
func (ns Namespace) HasMethods() bool { return len(ns.methods) > 0 }

// HasVersionRange reports whether the namespace carries a version range.
func (ns Namespace) HasVersionRange() bool { return ns.versionRange != "" }

// ID is the identity key of the unit: scope, hint, path and instance.
func (ns Namespace) ID() string {
	var b strings.Builder
	ns.writeID(&b)
	return b.String()
}

// Complete renders every field, including methods and version range.
// Parse(ns.Complete()) yields a namespace equal in every field.
func (ns Namespace) Complete() string {
	var b strings.Builder
	ns.writeID(&b)
	if len(ns.methods) > 0 {
		if ns.instance == "" {
			b.WriteString(InstancePrefix)
		}
		b.WriteByte(':')
		b.WriteString(strings.Join(ns.methods, ","))
	}
	if ns.versionRange != "" {
		b.WriteByte('@')
		b.WriteString(ns.versionRange)
	}
	return b.String()
}

// String returns the complete form.
func (ns Namespace) String() string { return ns.Complete() }

func (ns Namespace) writeID(b *strings.Builder) {
	if ns.scope != "" {
		b.WriteString(ns.scope)
		b.WriteByte('/')
	}
	b.WriteString(ns.hint)
	if ns.path != "" {
		b.WriteByte(':')
		b.WriteString(strings.ReplaceAll(ns.path, "/", ":"))
	}
	if ns.instance != "" {
		b.WriteString(InstancePrefix)
		b.WriteString(ns.instance)
	}
}

// PackageName returns the registry and store name of the package providing
// the unit: "[scope/]yoke-<hint>".
func (ns Namespace) PackageName() string {
	name := ns.hint
	if !strings.HasPrefix(name, PackagePrefix) {
		name = PackagePrefix + name
	}
	if ns.scope != "" {
		return ns.scope + "/" + name
	}
	return name
}

// UnscopedName returns "hint[:path]", the key of the unit in a public surface.
func (ns Namespace) UnscopedName() string {
	if ns.path == "" {
		return ns.hint
	}
	return ns.hint + ":" + strings.ReplaceAll(ns.path, "/", ":")
}

// UnitKey returns the generator path, or DefaultUnit when there is none.
func (ns Namespace) UnitKey() string {
	if ns.path == "" {
		return DefaultUnit
	}
	return ns.path
}

// RegistrationKey returns "[scope/]name:unit", the key a unit definition is
// registered under. The package prefix is stripped so "foo" and "yoke-foo"
// name the same package.
func (ns Namespace) RegistrationKey() string {
	return RegistrationKey(ns.PackageName(), ns.UnitKey())
}

// RegistrationKey builds a registration key from a package name and a unit key.
func RegistrationKey(packageName, unit string) string {
	scope, name := splitScope(packageName)
	name = strings.TrimPrefix(name, PackagePrefix)
	if unit == "" {
		unit = DefaultUnit
	}
	if scope != "" {
		return scope + "/" + name + ":" + unit
	}
	return name + ":" + unit
}

// IsGeneratorPackage reports whether packageName follows the generator
// package naming convention.
func IsGeneratorPackage(packageName string) bool {
	_, name := splitScope(packageName)
	return strings.HasPrefix(name, PackagePrefix) && len(name) > len(PackagePrefix)
}

// FromPackageName returns the namespace of the default unit of a package,
// narrowed to versionRange when non-empty.
func FromPackageName(packageName, versionRange string) (Namespace, error) {
	raw := packageName
	if versionRange != "" {
		raw += "@" + versionRange
	}
	ns, err := Parse(raw)
	if err != nil {
		return ns, err
	}
	if hint := strings.TrimPrefix(ns.hint, PackagePrefix); hint != "" {
		ns.hint = hint
	}
	return ns, nil
}

func splitScope(packageName string) (scope, name string) {
	if strings.HasPrefix(packageName, "@") {
		if s, n, ok := strings.Cut(packageName, "/"); ok {
			return s, n
		}
	}
	return "", packageName
}

func quote(s string) string { return `"` + s + `"` }
