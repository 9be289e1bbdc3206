package safety

import (
	"path/filepath"
	"strings"
)

// Rule is one entry of the ordered classification table.
type Rule struct {
	// Name identifies the rule in tests and debug logs.
	Name string

	// Grade is assigned when Match reports true.
	Grade Grade

	// Reason is the human-readable explanation shown next to the grade.
	Reason string

	// Match inspects a normalized path.
	Match func(p *pathInfo) bool
}

// ─── Path tables ─────────────────────────────────────────────────────────────

// protectedRoots are system areas that are never touched outside the
// user's home directory.
var protectedRoots = []string{
	"/System/",
	"/Library/",
	"/Applications/",
	"/usr/",
	"/bin/",
	"/sbin/",
	"/private/var/",
}

// Protected reports whether path lies in a protected system area,
// regardless of any home directory.
func Protected(path string) bool {
	return newPathInfo(path, true, "").hasPrefixAny(protectedRoots)
}

// bundleExts mark application bundles and other executable packages.
var bundleExts = map[string]bool{
	".app":       true,
	".appex":     true,
	".bundle":    true,
	".framework": true,
	".kext":      true,
	".plugin":    true,
	".prefpane":  true,
	".xpc":       true,
}

// cacheParents are the directories that hold per-app folders named by
// bundle identifier.
var cacheParents = map[string]bool{
	"Caches": true,
	"Logs":   true,
}

// reverseDNS reports whether name looks like a bundle identifier such as
// "com.app": an all-lowercase first label followed by at least one more.
func reverseDNS(name string) bool {
	first, rest, ok := strings.Cut(name, ".")
	if !ok || first == "" || rest == "" {
		return false
	}
	for _, r := range first {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

// regenerableMarkers are substrings of cache, log and temp locations.
var regenerableMarkers = []string{
	"/Library/Caches/",
	"/Library/Logs/",
	"/tmp/",
	"/TemporaryItems/",
	"/.TemporaryItems/",
	"/CrashReporter/",
}

// archiveExts are installer and archive formats that are usually leftovers
// once their contents are installed.
var archiveExts = map[string]bool{
	".dmg": true,
	".zip": true,
	".rar": true,
	".7z":  true,
	".pkg": true,
	".iso": true,
}

// downloadFolders are segment names treated as downloads-style folders.
var downloadFolders = map[string]bool{
	"Downloads": true,
}

// mediaExts are large media and creative project formats.
var mediaExts = map[string]bool{
	".mov":   true,
	".mp4":   true,
	".m4v":   true,
	".mp3":   true,
	".wav":   true,
	".psd":   true,
	".blend": true,
	".aep":   true,
}

// appDataMarkers are substrings of per-application data locations.
var appDataMarkers = []string{
	"/Application Support/",
	"/Preferences/",
	"/Containers/",
}

// ─── Rule table ──────────────────────────────────────────────────────────────

// defaultRules is evaluated top to bottom; the first match wins. Order runs
// from most to least dangerous so protected areas and bundles are decided
// before any extension-based leniency.
func defaultRules() []Rule {
	return []Rule{
		{
			Name:   "protected-system-area",
			Grade:  LeaveAlone,
			Reason: "protected system area",
			Match: func(p *pathInfo) bool {
				return !p.underHome && p.hasPrefixAny(protectedRoots)
			},
		},
		{
			Name:   "application-bundle",
			Grade:  LeaveAlone,
			Reason: "application bundle",
			Match: func(p *pathInfo) bool {
				for i, seg := range p.segments {
					if !bundleExts[strings.ToLower(filepath.Ext(seg))] {
						continue
					}
					// Reverse-DNS cache folders like "com.app" directly under
					// a cache directory are not bundles. Anything else with a
					// bundle extension is, whatever lies beneath it.
					if i > 0 && cacheParents[p.segments[i-1]] && reverseDNS(seg) {
						continue
					}
					return true
				}
				return false
			},
		},
		{
			Name:   "regenerable-data",
			Grade:  Safe,
			Reason: "regenerable cache/log/temp data",
			Match: func(p *pathInfo) bool {
				return p.containsAny(regenerableMarkers)
			},
		},
		{
			Name:   "installer-in-downloads",
			Grade:  Safe,
			Reason: "installer/archive in downloads",
			Match: func(p *pathInfo) bool {
				if !archiveExts[p.ext] {
					return false
				}
				// Only parent segments count; the entry itself is the archive.
				for _, seg := range p.segments[:len(p.segments)-1] {
					if downloadFolders[seg] {
						return true
					}
				}
				return false
			},
		},
		{
			Name:   "media-or-project",
			Grade:  Review,
			Reason: "media/project file, keep unless certain",
			Match: func(p *pathInfo) bool {
				return mediaExts[p.ext]
			},
		},
		{
			Name:   "app-data",
			Grade:  Review,
			Reason: "app data/preferences, deletion may reset apps",
			Match: func(p *pathInfo) bool {
				return p.containsAny(appDataMarkers)
			},
		},
		{
			Name:   "folder",
			Grade:  Review,
			Reason: "folder contents vary, review before deleting",
			Match: func(p *pathInfo) bool {
				return p.isDir
			},
		},
		{
			Name:   "user-file",
			Grade:  Safe,
			Reason: "user-space file not in a protected area",
			Match: func(p *pathInfo) bool {
				return true
			},
		},
	}
}

// ─── Normalized path ─────────────────────────────────────────────────────────

// pathInfo is the pre-computed view of a path that rules match against.
type pathInfo struct {
	// slashed is the cleaned path with a trailing slash, so a directory
	// matches its own marker (for example "/tmp" matches "/tmp/").
	slashed   string
	segments  []string
	ext       string
	isDir     bool
	underHome bool
}

func newPathInfo(path string, isDir bool, home string) *pathInfo {
	clean := filepath.ToSlash(filepath.Clean(path))

	var segments []string
	for _, s := range strings.Split(clean, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	if len(segments) == 0 {
		segments = []string{"/"}
	}

	slashed := clean
	if !strings.HasSuffix(slashed, "/") {
		slashed += "/"
	}

	underHome := false
	if home != "" {
		h := strings.TrimSuffix(filepath.ToSlash(filepath.Clean(home)), "/") + "/"
		underHome = h != "/" && strings.HasPrefix(slashed, h)
	}

	return &pathInfo{
		slashed:   slashed,
		segments:  segments,
		ext:       strings.ToLower(filepath.Ext(segments[len(segments)-1])),
		isDir:     isDir,
		underHome: underHome,
	}
}

func (p *pathInfo) hasPrefixAny(prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(p.slashed, prefix) {
			return true
		}
	}
	return false
}

func (p *pathInfo) containsAny(markers []string) bool {
	for _, m := range markers {
		if strings.Contains(p.slashed, m) {
			return true
		}
	}
	return false
}
