// Package prefs persists toolroom's per-user UI preferences in
// ~/.config/toolroom/prefs.toml. Unreadable files degrade to defaults.
package prefs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Machine list sort orders.
const (
	SortByNumber = "number"
	SortByHours  = "hours"
	SortByStatus = "status"
)

// Prefs holds user preferences.
type Prefs struct {
	Theme       string `toml:"theme"`
	LastUser    string `toml:"last_user"`
	MachineSort string `toml:"machine_sort"`
	HideRetired bool   `toml:"hide_retired"`
}

const (
	defaultPrefsPath = "~/.config/toolroom/prefs.toml"
	defaultTheme     = "Nightfox"
)

var sortOrders = []string{SortByNumber, SortByHours, SortByStatus}

// Defaults returns the preferences used when nothing is saved.
func Defaults() Prefs {
	return Prefs{Theme: defaultTheme, MachineSort: SortByNumber}
}

// NextSort cycles through the machine list sort orders.
func (p Prefs) NextSort() string {
	idx := slices.Index(sortOrders, p.MachineSort)
	return sortOrders[(idx+1)%len(sortOrders)]
}

// Load reads preferences from path, falling back to defaults on any problem.
func Load(path string) Prefs {
	resolved, err := resolvePath(path)
	if err != nil {
		return Defaults()
	}

	file, err := os.Open(resolved)
	if err != nil {
		return Defaults()
	}
	defer func() { _ = file.Close() }()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Defaults()
	}

	p := Defaults()
	if err := toml.Unmarshal(bytes, &p); err != nil {
		return Defaults()
	}
	return normalize(p)
}

// Save writes preferences to path, creating directories as needed.
func Save(path string, p Prefs) error {
	resolved, err := resolvePath(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}

	bytes, err := toml.Marshal(normalize(p))
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}

	if err := os.WriteFile(resolved, bytes, 0o644); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	return nil
}

func normalize(p Prefs) Prefs {
	p.Theme = strings.TrimSpace(p.Theme)
	if p.Theme == "" {
		p.Theme = defaultTheme
	}
	p.LastUser = strings.TrimSpace(p.LastUser)
	if !slices.Contains(sortOrders, p.MachineSort) {
		p.MachineSort = SortByNumber
	}
	return p
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultPrefsPath)
	}
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
