package config

import (
	"os"
	"path/filepath"
	"strings"
)

// Root is a named top-level scan starting point.
type Root struct {
	// Name is the label shown in folder summaries (for example "Downloads").
	Name string `mapstructure:"name" json:"name" yaml:"name"`

	// Path may start with "~", which is expanded against the home directory.
	Path string `mapstructure:"path" json:"path" yaml:"path"`
}

// Depth selects how many roots a scan covers.
type Depth string

const (
	DepthBasic Depth = "basic"
	DepthFull  Depth = "full"
)

// ─── Default roots ───────────────────────────────────────────────────────────

// defaultBasicRoots are the user folders covered by every scan.
var defaultBasicRoots = []Root{
	{Name: "Downloads", Path: "~/Downloads"},
	{Name: "Desktop", Path: "~/Desktop"},
	{Name: "Documents", Path: "~/Documents"},
	{Name: "Movies", Path: "~/Movies"},
	{Name: "Music", Path: "~/Music"},
	{Name: "Pictures", Path: "~/Pictures"},
}

// defaultFullRoots are appended to the basic roots for a full-depth scan.
var defaultFullRoots = []Root{
	{Name: "Library", Path: "~/Library"},
	{Name: "Applications", Path: "/Applications"},
}

// rootsToMaps converts roots into the generic shape viper stores defaults in.
func rootsToMaps(roots []Root) []map[string]string {
	out := make([]map[string]string, 0, len(roots))
	for _, r := range roots {
		out = append(out, map[string]string{"name": r.Name, "path": r.Path})
	}
	return out
}

// ─── Path helpers ────────────────────────────────────────────────────────────

// userHome returns the current user's home directory, falling back to $HOME.
func userHome() string {
	if h, err := os.UserHomeDir(); err == nil {
		return h
	}
	return os.Getenv("HOME")
}

// ExpandHome resolves a leading "~" against home.
func ExpandHome(path, home string) string {
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

// defaultConfigDir is where the config file, audit log and database live.
func defaultConfigDir(home string) string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "macmole")
	}
	return filepath.Join(home, ".config", "macmole")
}

// NeverDeletePaths returns paths that must never be removed themselves,
// regardless of grade or selection. Entries beneath them may still be
// removable; these are the anchors a bulk delete must not take out.
func NeverDeletePaths(home string) []string {
	paths := []string{
		"/",
		"/System",
		"/Library",
		"/Applications",
		"/Users",
		"/usr",
		"/bin",
		"/sbin",
		"/private",
		"/private/var",
		"/etc",
		"/var",
		"/tmp",
	}
	if home != "" {
		paths = append(paths,
			home,
			filepath.Join(home, "Library"),
			filepath.Join(home, "Library", "Caches"),
			filepath.Join(home, "Library", "Application Support"),
			filepath.Join(home, "Library", "Preferences"),
		)
		for _, r := range defaultBasicRoots {
			paths = append(paths, ExpandHome(r.Path, home))
		}
	}
	return paths
}
