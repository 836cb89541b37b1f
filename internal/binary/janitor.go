package binary

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/OpenSecretCloud/maple-sidecar/internal/release"
)

// retainVersions is the maximum number of cached version directories kept
// after an install: the current version plus one previous.
const retainVersions = 2

// versionDirRegex matches directory names that look like version tags.
// Other cache entries (markers, temp files) are never touched.
var versionDirRegex = regexp.MustCompile(`^v?\d+(\.\d+)*$`)

// CleanupOldVersions removes cached version directories beyond the
// retention count, sorted newest first, always preserving currentVersion
// regardless of its rank. Best-effort: removal failures are logged and
// swallowed, never surfaced to the caller.
func (m *Manager) CleanupOldVersions(currentVersion string) {
	entries, err := os.ReadDir(m.cacheDir)
	if err != nil {
		m.log.Warn().Err(err).Str("dir", m.cacheDir).Msg("list cache dir")
		return
	}

	var versions []string
	for _, entry := range entries {
		if entry.IsDir() && versionDirRegex.MatchString(entry.Name()) {
			versions = append(versions, entry.Name())
		}
	}

	sort.SliceStable(versions, func(i, j int) bool {
		return release.CompareDesc(versions[i], versions[j]) < 0
	})

	keep := map[string]bool{currentVersion: true}
	for _, version := range versions {
		if len(keep) >= retainVersions {
			break
		}
		keep[version] = true
	}

	for _, version := range versions {
		if keep[version] {
			continue
		}
		dir := filepath.Join(m.cacheDir, version)
		if err := os.RemoveAll(dir); err != nil {
			m.log.Warn().Err(err).Str("dir", dir).Msg("remove old version")
			continue
		}
		m.log.Info().Str("version", version).Msg("removed old cached version")
	}
}
