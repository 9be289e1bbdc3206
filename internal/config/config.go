package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/lakshaymaurya-felt/macmole/internal/safety"
)

var (
	// ErrNoRoots is returned when a depth resolves to an empty root list.
	ErrNoRoots = errors.New("no scan roots configured; add roots.basic to the config file")

	// ErrUnknownDepth is returned for a depth other than basic or full.
	ErrUnknownDepth = errors.New("unknown scan depth")

	// ErrProtectedHome is returned when a home override points inside a
	// protected system area.
	ErrProtectedHome = errors.New("configured home is inside a protected system area")
)

// Settings is the resolved configuration. It is passed explicitly to the
// components that need it and never read as package state.
type Settings struct {
	Home string `mapstructure:"home"`

	Roots struct {
		Basic []Root `mapstructure:"basic"`
		Full  []Root `mapstructure:"full"`
	} `mapstructure:"roots"`

	Scan struct {
		TopN          int      `mapstructure:"top_n"`
		Workers       int      `mapstructure:"workers"`
		Exclude       []string `mapstructure:"exclude"`
		OneFilesystem bool     `mapstructure:"one_filesystem"`
	} `mapstructure:"scan"`

	Dupes struct {
		PrefixFilter bool `mapstructure:"prefix_filter"`
	} `mapstructure:"dupes"`

	Audit struct {
		Backend string `mapstructure:"backend"`
		Path    string `mapstructure:"path"`
	} `mapstructure:"audit"`

	Auth struct {
		PasswordHash string `mapstructure:"password_hash"`
	} `mapstructure:"auth"`

	Logging struct {
		Level string `mapstructure:"level"`
		File  string `mapstructure:"file"`
	} `mapstructure:"logging"`

	v *viper.Viper
}

// Load reads settings from file, or from the default search path when file
// is empty. A missing config file is not an error; defaults apply.
// Environment variables prefixed MM_ override file values
// (MM_SCAN_TOP_N=50).
func Load(file string) (*Settings, error) {
	home := userHome()
	dir := defaultConfigDir(home)

	v := viper.New()
	v.SetConfigType("yaml")
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(dir)
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("MM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, home, dir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !(file != "" && os.IsNotExist(err)) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	s := &Settings{v: v}
	if err := v.Unmarshal(s); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	s.Home = ExpandHome(s.Home, home)
	// The classifier exempts home from the protected roots, so only the
	// account's own home may lie inside one.
	if s.Home != filepath.Clean(home) && safety.Protected(s.Home) {
		return nil, fmt.Errorf("%w: %s", ErrProtectedHome, s.Home)
	}
	s.Audit.Path = ExpandHome(s.Audit.Path, s.Home)
	s.Logging.File = ExpandHome(s.Logging.File, s.Home)
	if s.Scan.TopN <= 0 {
		s.Scan.TopN = DefaultTopN
	}
	return s, nil
}

// Defaults returns settings built only from defaults, rooted at home.
func Defaults(home string) *Settings {
	v := viper.New()
	setDefaults(v, home, defaultConfigDir(home))
	s := &Settings{v: v}
	_ = v.Unmarshal(s)
	s.Audit.Path = ExpandHome(s.Audit.Path, home)
	return s
}

// DefaultTopN is how many of the largest items a scan classifies.
const DefaultTopN = 20

func setDefaults(v *viper.Viper, home, dir string) {
	v.SetDefault("home", home)
	v.SetDefault("roots.basic", rootsToMaps(defaultBasicRoots))
	v.SetDefault("roots.full", rootsToMaps(defaultFullRoots))
	v.SetDefault("scan.top_n", DefaultTopN)
	v.SetDefault("scan.workers", 8)
	v.SetDefault("scan.exclude", []string{})
	v.SetDefault("scan.one_filesystem", false)
	v.SetDefault("dupes.prefix_filter", true)
	v.SetDefault("audit.backend", "jsonl")
	v.SetDefault("audit.path", filepath.Join(dir, "audit.jsonl"))
	v.SetDefault("auth.password_hash", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "")
}

// ParseDepth validates a depth name.
func ParseDepth(s string) (Depth, error) {
	switch Depth(strings.ToLower(strings.TrimSpace(s))) {
	case DepthBasic, "":
		return DepthBasic, nil
	case DepthFull:
		return DepthFull, nil
	}
	return "", fmt.Errorf("%w %q (want basic or full)", ErrUnknownDepth, s)
}

// RootSet returns the ordered, home-expanded roots for depth. Full depth is
// the basic roots followed by the extra full roots.
func (s *Settings) RootSet(depth Depth) ([]Root, error) {
	var roots []Root
	switch depth {
	case DepthBasic:
		roots = append(roots, s.Roots.Basic...)
	case DepthFull:
		roots = append(roots, s.Roots.Basic...)
		roots = append(roots, s.Roots.Full...)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownDepth, depth)
	}

	out := make([]Root, 0, len(roots))
	for _, r := range roots {
		if strings.TrimSpace(r.Path) == "" {
			continue
		}
		p := filepath.Clean(ExpandHome(r.Path, s.Home))
		name := r.Name
		if name == "" {
			name = filepath.Base(p)
		}
		out = append(out, Root{Name: name, Path: p})
	}
	if len(out) == 0 {
		return nil, ErrNoRoots
	}
	return out, nil
}

// SetPasswordHash stores the re-authentication hash and writes the config
// file, creating it under the default directory if none was loaded.
func (s *Settings) SetPasswordHash(hash string) error {
	s.Auth.PasswordHash = hash
	if s.v == nil {
		return errors.New("settings were not loaded from viper")
	}
	s.v.Set("auth.password_hash", hash)

	target := s.v.ConfigFileUsed()
	if target == "" {
		target = filepath.Join(defaultConfigDir(s.Home), "config.yaml")
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := s.v.WriteConfigAs(target); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return os.Chmod(target, 0o600)
}
