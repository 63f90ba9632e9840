// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"errors"
	"slices"
	"testing"
)

func names(entries []InstallEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

func TestInstallBatch_Ordered(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		add   []string
		edges [][2]string // dependent, dependency
		want  []string
	}{
		{name: "empty"},
		{name: "insertion order", add: []string{"a", "b", "c"}, want: []string{"a", "b", "c"}},
		{
			name:  "peer before dependent",
			add:   []string{"app", "lib"},
			edges: [][2]string{{"app", "lib"}},
			want:  []string{"lib", "app"},
		},
		{
			name:  "diamond",
			add:   []string{"top", "left", "right", "base"},
			edges: [][2]string{{"top", "left"}, {"top", "right"}, {"left", "base"}, {"right", "base"}},
			want:  []string{"base", "left", "right", "top"},
		},
		{
			name:  "edge to package outside batch",
			add:   []string{"a"},
			edges: [][2]string{{"a", "installed-elsewhere"}},
			want:  []string{"a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b := NewInstallBatch()
			for _, n := range tt.add {
				b.Add(InstallEntry{Name: n, Range: "*"})
			}
			for _, e := range tt.edges {
				b.Require(e[0], e[1])
			}

			got, err := b.Ordered()
			if err != nil {
				t.Fatalf("Ordered() error = %v", err)
			}
			if !slices.Equal(names(got), tt.want) {
				t.Errorf("Ordered() = %v, want %v", names(got), tt.want)
			}
		})
	}
}

func TestInstallBatch_Cycle(t *testing.T) {
	t.Parallel()

	b := NewInstallBatch()
	b.Add(InstallEntry{Name: "a"})
	b.Add(InstallEntry{Name: "b"})
	b.Add(InstallEntry{Name: "c"})
	b.Require("a", "b")
	b.Require("b", "a")

	got, err := b.Ordered()
	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("Ordered() error = %v, want *CycleError", err)
	}
	if !slices.Equal(cycleErr.Cycle, []string{"a", "b"}) {
		t.Errorf("Cycle = %v, want [a b]", cycleErr.Cycle)
	}
	if !slices.Equal(names(got), []string{"a", "b", "c"}) {
		t.Errorf("fallback order = %v, want insertion order", names(got))
	}
}

func TestInstallBatch_AddDeduplicates(t *testing.T) {
	t.Parallel()

	b := NewInstallBatch()
	if !b.Add(InstallEntry{Name: "yoke-a", Range: "^1.0.0"}) {
		t.Fatal("first Add() = false")
	}
	if b.Add(InstallEntry{Name: "yoke-a", Range: "^2.0.0"}) {
		t.Error("second Add() of the same package = true")
	}
	if b.Len() != 1 || !b.Has("yoke-a") || b.Has("yoke-b") {
		t.Errorf("Len()=%d Has(a)=%v Has(b)=%v", b.Len(), b.Has("yoke-a"), b.Has("yoke-b"))
	}
	if got := b.Map(); got["yoke-a"] != "^1.0.0" {
		t.Errorf("Map() = %v", got)
	}
	if s := (InstallEntry{Name: "yoke-a", Range: "^1.0.0", Version: "1.2.0"}).String(); s != "yoke-a@^1.0.0 (1.2.0)" {
		t.Errorf("String() = %q", s)
	}
}
