// Package labels resolves application ids to display names using the XDG
// desktop entries installed on the system.
package labels

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/screentime/screentime/internal/metrics"
	"github.com/screentime/screentime/pkg/usage"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"gopkg.in/ini.v1"
)

const (
	DefaultCacheSize = 512

	desktopSection = "Desktop Entry"
	desktopSuffix  = ".desktop"
)

// Match quality, best first.
const (
	matchFileName = iota
	matchWMClass
	matchSuffix
	noMatch
)

// DesktopResolver looks up the Name= of the desktop entry whose file name or
// StartupWMClass matches an application id. Directories earlier in the list
// take precedence over later ones for matches of equal quality.
type DesktopResolver struct {
	dirs   []string
	cache  *lru.Cache[string, string]
	logger zerolog.Logger
}

var _ usage.LabelResolver = (*DesktopResolver)(nil)

// NewDesktopResolver creates a resolver over dirs. Both hits and misses are
// cached; a cached miss is stored as the empty string.
func NewDesktopResolver(dirs []string, cacheSize int, logger zerolog.Logger) (*DesktopResolver, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, string](cacheSize)
	if err != nil {
		return nil, err
	}

	return &DesktopResolver{
		dirs:   dirs,
		cache:  cache,
		logger: logger.With().Str("component", "labels").Logger(),
	}, nil
}

// DefaultDirs returns the XDG application directories in lookup order.
func DefaultDirs() []string {
	var dirs []string

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dataHome = filepath.Join(home, ".local", "share")
		}
	}
	if dataHome != "" {
		dirs = append(dirs, filepath.Join(dataHome, "applications"))
	}

	dataDirs := os.Getenv("XDG_DATA_DIRS")
	if dataDirs == "" {
		dataDirs = "/usr/local/share:/usr/share"
	}
	for _, d := range filepath.SplitList(dataDirs) {
		if d != "" {
			dirs = append(dirs, filepath.Join(d, "applications"))
		}
	}

	return append(dirs, "/var/lib/flatpak/exports/share/applications")
}

// ResolveLabel returns the display name for appID or usage.ErrLabelNotFound.
func (r *DesktopResolver) ResolveLabel(appID string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(appID))

	if label, ok := r.cache.Get(key); ok {
		metrics.LabelCacheHits.Inc()
		if label == "" {
			metrics.LabelFallbacks.Inc()
			return "", usage.ErrLabelNotFound
		}
		return label, nil
	}

	label := r.lookup(key)
	r.cache.Add(key, label)

	if label == "" {
		metrics.LabelFallbacks.Inc()
		r.logger.Debug().Str("app_id", key).Msg("No desktop entry for application")
		return "", usage.ErrLabelNotFound
	}
	return label, nil
}

// Purge drops every cached result so newly installed entries are picked up.
func (r *DesktopResolver) Purge() {
	r.cache.Purge()
}

func (r *DesktopResolver) lookup(appID string) string {
	if appID == "" {
		return ""
	}

	best, bestRank := "", noMatch
	for _, dir := range r.dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}

		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), desktopSuffix) {
				continue
			}

			path := filepath.Join(dir, entry.Name())
			name, wmClass, ok := readEntry(path)
			if !ok {
				r.logger.Debug().Str("path", path).Msg("Skipping unreadable desktop entry")
				continue
			}

			rank := matchRank(appID, strings.TrimSuffix(entry.Name(), desktopSuffix), wmClass)
			if rank < bestRank {
				best, bestRank = name, rank
				if rank == matchFileName {
					return best
				}
			}
		}
	}
	return best
}

func matchRank(appID, fileBase, wmClass string) int {
	base := strings.ToLower(fileBase)
	switch {
	case base == appID:
		return matchFileName
	case wmClass != "" && strings.ToLower(wmClass) == appID:
		return matchWMClass
	case strings.HasSuffix(base, "."+appID):
		return matchSuffix
	}
	return noMatch
}

// readEntry returns Name and StartupWMClass of a visible application entry.
func readEntry(path string) (name, wmClass string, ok bool) {
	cfg, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment:     true,
		SkipUnrecognizableLines: true,
	}, path)
	if err != nil {
		return "", "", false
	}

	sec, err := cfg.GetSection(desktopSection)
	if err != nil {
		return "", "", false
	}
	if sec.Key("Hidden").MustBool(false) {
		return "", "", false
	}

	name = strings.TrimSpace(sec.Key("Name").String())
	if name == "" {
		return "", "", false
	}
	return name, strings.TrimSpace(sec.Key("StartupWMClass").String()), true
}
