package prefs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	p := Load("")
	if p.Theme != defaultTheme {
		t.Fatalf("Theme = %q, want %q", p.Theme, defaultTheme)
	}
	if p.MachineSort != SortByNumber {
		t.Fatalf("MachineSort = %q, want %q", p.MachineSort, SortByNumber)
	}
}

func TestLoad_ReadsDefaultLocation(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".config", "toolroom")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	content := "theme = \"Slate\"\nlast_user = \" tech1 \"\nmachine_sort = \"hours\"\nhide_retired = true\n"
	if err := os.WriteFile(filepath.Join(dir, "prefs.toml"), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	p := Load("")
	if p.Theme != "Slate" {
		t.Fatalf("Theme = %q, want %q", p.Theme, "Slate")
	}
	if p.LastUser != "tech1" {
		t.Fatalf("LastUser = %q, want %q", p.LastUser, "tech1")
	}
	if p.MachineSort != SortByHours {
		t.Fatalf("MachineSort = %q, want %q", p.MachineSort, SortByHours)
	}
	if !p.HideRetired {
		t.Fatalf("HideRetired = false, want true")
	}
}

func TestSave_RoundTripsThroughLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subdir", "prefs.toml")

	if err := Save(path, Prefs{Theme: "Kanagawa", LastUser: "admin", MachineSort: SortByStatus}); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	p := Load(path)
	if p.Theme != "Kanagawa" || p.LastUser != "admin" || p.MachineSort != SortByStatus {
		t.Fatalf("Load = %+v, want saved values", p)
	}
}

func TestLoad_UnknownSortAndEmptyThemeNormalize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.toml")
	if err := os.WriteFile(path, []byte("theme = \"\"\nmachine_sort = \"random\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	p := Load(path)
	if p.Theme != defaultTheme {
		t.Fatalf("Theme = %q, want %q", p.Theme, defaultTheme)
	}
	if p.MachineSort != SortByNumber {
		t.Fatalf("MachineSort = %q, want %q", p.MachineSort, SortByNumber)
	}
}

func TestLoad_InvalidTOMLFallsBackToDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.toml")
	if err := os.WriteFile(path, []byte("not valid toml {{{\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if p := Load(path); p != Defaults() {
		t.Fatalf("Load = %+v, want defaults", p)
	}
}

func TestNextSortCycles(t *testing.T) {
	p := Defaults()
	seen := []string{p.MachineSort}
	for i := 0; i < 3; i++ {
		p.MachineSort = p.NextSort()
		seen = append(seen, p.MachineSort)
	}
	want := []string{SortByNumber, SortByHours, SortByStatus, SortByNumber}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("sort sequence = %v, want %v", seen, want)
		}
	}
}
