// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"fmt"
	"strings"
)

type (
	// InstallEntry is one package of an install batch.
	InstallEntry struct {
		Name string
		// Range is the requested version range.
		Range string
		// Version is the highest registry version satisfying Range.
		Version string
	}

	// InstallBatch collects the packages of one install call together with
	// the peer relations between them.
	InstallBatch struct {
		entries []InstallEntry
		index   map[string]int
		// peers maps a package to the packages that must be installed after it.
		peers map[string][]string
	}

	// CycleError indicates that peer relations form a cycle.
	CycleError struct {
		Cycle []string
	}
)

func (e InstallEntry) String() string {
	if e.Version != "" {
		return fmt.Sprintf("%s@%s (%s)", e.Name, e.Range, e.Version)
	}
	return e.Name + "@" + e.Range
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("peer dependency cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

// NewInstallBatch creates an empty batch.
func NewInstallBatch() *InstallBatch {
	return &InstallBatch{
		index: make(map[string]int),
		peers: make(map[string][]string),
	}
}

// Add appends e unless a package with the same name is already present.
func (b *InstallBatch) Add(e InstallEntry) bool {
	if _, ok := b.index[e.Name]; ok {
		return false
	}
	b.index[e.Name] = len(b.entries)
	b.entries = append(b.entries, e)
	return true
}

// Require records that dependency must be installed before dependent.
func (b *InstallBatch) Require(dependent, dependency string) {
	b.peers[dependency] = append(b.peers[dependency], dependent)
}

// Has reports whether name is part of the batch.
func (b *InstallBatch) Has(name string) bool {
	_, ok := b.index[name]
	return ok
}

// Len returns the number of packages in the batch.
func (b *InstallBatch) Len() int { return len(b.entries) }

// Entries returns the packages in insertion order.
func (b *InstallBatch) Entries() []InstallEntry {
	return append([]InstallEntry(nil), b.entries...)
}

// Map returns the batch as package name to version range.
func (b *InstallBatch) Map() map[string]string {
	m := make(map[string]string, len(b.entries))
	for _, e := range b.entries {
		m[e.Name] = e.Range
	}
	return m
}

// Ordered returns the packages with every peer dependency before the
// packages depending on it, using Kahn's algorithm. Packages at the same
// level keep insertion order. On a cycle it returns the insertion order
// together with a *CycleError.
func (b *InstallBatch) Ordered() ([]InstallEntry, error) {
	if len(b.entries) == 0 {
		return nil, nil
	}

	inDegree := make(map[string]int, len(b.entries))
	for _, e := range b.entries {
		inDegree[e.Name] = 0
	}
	for from, dependents := range b.peers {
		if !b.Has(from) {
			continue
		}
		for _, to := range dependents {
			if b.Has(to) {
				inDegree[to]++
			}
		}
	}

	queue := make([]string, 0, len(b.entries))
	for _, e := range b.entries {
		if inDegree[e.Name] == 0 {
			queue = append(queue, e.Name)
		}
	}

	result := make([]InstallEntry, 0, len(b.entries))
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		result = append(result, b.entries[b.index[name]])

		for _, to := range b.peers[name] {
			if !b.Has(to) {
				continue
			}
			inDegree[to]--
			if inDegree[to] == 0 {
				queue = append(queue, to)
			}
		}
	}

	if len(result) != len(b.entries) {
		var cycle []string
		for _, e := range b.entries {
			if inDegree[e.Name] > 0 {
				cycle = append(cycle, e.Name)
			}
		}
		return b.Entries(), &CycleError{Cycle: cycle}
	}

	return result, nil
}
