package treesitter

import (
	"strings"
	"testing"
)

func TestFormatOutlineFilteredRestrictsToMatchingPaths(t *testing.T) {
	snap := map[string][]Symbol{
		"internal/gate/gate.go":       {{Name: "New", Kind: KindFunction}},
		"internal/toolkit/toolkit.go": {{Name: "Executor", Kind: KindStruct}},
	}

	full := FormatOutline(snap)
	if full == "" {
		t.Fatal("expected a non-empty outline")
	}

	filtered := FormatOutlineFiltered(snap, "internal/gate")
	if filtered == "" {
		t.Fatal("expected a non-empty filtered outline")
	}
	if strings.Contains(filtered, "internal/toolkit/toolkit.go") {
		t.Fatalf("expected filtered outline to exclude internal/toolkit/toolkit.go, got:\n%s", filtered)
	}
	if !strings.Contains(filtered, "internal/gate/gate.go") {
		t.Fatalf("expected filtered outline to include internal/gate/gate.go, got:\n%s", filtered)
	}
}

func TestFilterExportedDropsUnexportedSymbols(t *testing.T) {
	snap := map[string][]Symbol{
		"pkg.go": {
			{Name: "pkg", Kind: KindPackage},
			{Name: "Public", Kind: KindFunction, Exported: true},
			{Name: "private", Kind: KindFunction, Exported: false},
		},
	}

	filtered := FilterExported(snap)
	syms := filtered["pkg.go"]
	names := make(map[string]bool)
	for _, s := range syms {
		names[s.Name] = true
	}
	if !names["Public"] {
		t.Error("expected Public to survive filtering")
	}
	if names["private"] {
		t.Error("expected private to be dropped")
	}
	if !names["pkg"] {
		t.Error("expected the package marker to survive filtering")
	}
}

func TestFilterExportedDropsFilesWithNoExportedSymbols(t *testing.T) {
	snap := map[string][]Symbol{
		"internal.go": {{Name: "helper", Kind: KindFunction, Exported: false}},
	}
	filtered := FilterExported(snap)
	if len(filtered) != 0 {
		t.Fatalf("expected file with no exported symbols to be dropped entirely, got %v", filtered)
	}
}

func TestFormatOutlineFilteredWithNoMatchesIsEmpty(t *testing.T) {
	snap := map[string][]Symbol{
		"internal/gate/gate.go": {{Name: "New", Kind: KindFunction}},
	}
	if got := FormatOutlineFiltered(snap, "nonexistent"); got != "" {
		t.Fatalf("expected empty outline for a non-matching filter, got:\n%s", got)
	}
}
