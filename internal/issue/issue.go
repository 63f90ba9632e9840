// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
)

const (
	InvalidNamespaceId Id = iota + 1
	UnitNotFoundId
	EnvironmentNotPreparedId
	ConfigLoadFailedId
	ScriptFailedId
	InstallFailedId
	InvalidUnitFileId
)

type (
	// Id identifies a catalog page.
	Id int

	// MarkdownMsg is the Markdown body of a page.
	MarkdownMsg string

	// HttpLink is a documentation link.
	HttpLink string

	// Issue is a catalog page explaining a class of failure.
	Issue struct {
		id       Id
		mdMsg    MarkdownMsg
		docLinks []HttpLink
	}
)

func (i *Issue) Id() Id { return i.id }

func (i *Issue) MarkdownMsg() MarkdownMsg { return i.mdMsg }

func (i *Issue) DocLinks() []HttpLink { return slices.Clone(i.docLinks) }

// Render renders the page for a terminal using the glamour style at
// stylePath ("dark", "light", "notty" or a JSON style file).
func (i *Issue) Render(stylePath string) (string, error) {
	var b strings.Builder
	b.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 {
		b.WriteString("\n\n## See also\n")
		for _, link := range i.docLinks {
			b.WriteString("- <" + string(link) + ">\n")
		}
	}
	return render(b.String(), stylePath)
}

var (
	render = glamour.Render

	invalidNamespaceIssue = &Issue{
		id: InvalidNamespaceId,
		mdMsg: `
# Invalid namespace

A namespace names a generator unit:

~~~
[@scope/]package[:path...][#instance][:method,...][@range]
~~~

## Examples
- ` + "`foo`" + ` is the default unit of the ` + "`yoke-foo`" + ` package
- ` + "`foo:sub#one`" + ` is the instance ` + "`one`" + ` of the ` + "`sub`" + ` unit
- ` + "`foo:sub#:build,test@^1.0.0`" + ` calls ` + "`build`" + ` and ` + "`test`" + `
- ` + "`@acme/web:page#*`" + ` runs every configured instance

Segment names use lowercase letters, digits and ` + "`._~-`" + `.`,
	}

	unitNotFoundIssue = &Issue{
		id: UnitNotFoundId,
		mdMsg: `
# Generator unit not found

The unit is neither registered nor discoverable in a lookup location.

## Things you can try
- List the units yoke can see:
~~~
$ yoke list
~~~
- Add a version range so yoke can install the package:
~~~
$ yoke run foo:sub@^1.0.0
~~~
- Add the directory holding your packages to ` + "`lookup_paths`" + ` in the configuration.`,
	}

	environmentNotPreparedIssue = &Issue{
		id: EnvironmentNotPreparedId,
		mdMsg: `
# Environment could not be prepared

Some namespaces were still unavailable after installing packages and
searching the lookup locations.

## Things you can try
- Check ` + "`registry_dir`" + ` and ` + "`install_command`" + ` in your configuration.
- Run with ` + "`--verbose`" + ` to see registry and install warnings.
- Resolve without generating to inspect the result:
~~~
$ yoke resolve foo:sub@^1.0.0
~~~`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Configuration could not be loaded

## Things you can try
- Show where yoke reads its configuration:
~~~
$ yoke config path
~~~
- Write a fresh default configuration:
~~~
$ yoke config init
~~~`,
	}

	scriptFailedIssue = &Issue{
		id: ScriptFailedId,
		mdMsg: `
# A unit operation failed

The script of an operation exited with a non-zero status. Its standard
error is included in the message above.

## Things you can try
- Run again with ` + "`--verbose`" + ` to see every operation yoke runs.
- Check the options passed with ` + "`--opt`" + `; scripts read them as ` + "`YOKE_OPT_<KEY>`" + `.`,
	}

	installFailedIssue = &Issue{
		id: InstallFailedId,
		mdMsg: `
# Package installation failed

The install command exited with a non-zero status.

## Things you can try
- Check ` + "`install_command`" + ` in your configuration; packages are passed as ` + "`name@range`" + ` arguments.
- Install the packages manually into the store directory and retry.`,
	}

	invalidUnitFileIssue = &Issue{
		id: InvalidUnitFileId,
		mdMsg: `
# Invalid unit file

A ` + "`unit.cue`" + ` file does not match the unit schema.

## Example
~~~cue
name: "page"
operations: [
	{name: "build", script: "echo building $1"},
]
tasks: ["build"]
~~~`,
	}

	issues = map[Id]*Issue{
		invalidNamespaceIssue.Id():       invalidNamespaceIssue,
		unitNotFoundIssue.Id():           unitNotFoundIssue,
		environmentNotPreparedIssue.Id(): environmentNotPreparedIssue,
		configLoadFailedIssue.Id():       configLoadFailedIssue,
		scriptFailedIssue.Id():           scriptFailedIssue,
		installFailedIssue.Id():          installFailedIssue,
		invalidUnitFileIssue.Id():        invalidUnitFileIssue,
	}
)

// Values returns every catalog page ordered by id.
func Values() []*Issue {
	return slices.SortedFunc(maps.Values(issues), func(a, b *Issue) int { return cmp.Compare(a.id, b.id) })
}

// Get returns the page for id, or nil.
func Get(id Id) *Issue { return issues[id] }
