package release

import (
	"strconv"
	"strings"
)

// parseVersion splits a tag into numeric (major, minor, patch) components.
// A leading "v" is tolerated; missing or non-numeric components default to 0.
func parseVersion(tag string) [3]int {
	var components [3]int

	trimmed := strings.TrimPrefix(strings.TrimSpace(tag), "v")
	parts := strings.SplitN(trimmed, ".", 3)
	for i := 0; i < len(parts) && i < 3; i++ {
		if n, err := strconv.Atoi(strings.TrimSpace(parts[i])); err == nil {
			components[i] = n
		}
	}

	return components
}

// CompareDesc orders two version tags numerically by (major, minor, patch),
// newest first: it returns a negative value when a is newer than b, a
// positive value when older, and 0 on equality. The ordering is numeric,
// not lexicographic, so "0.10.0" sorts before "0.9.0". Equal tags return 0,
// which keeps ties stable under sort.SliceStable.
func CompareDesc(a, b string) int {
	va, vb := parseVersion(a), parseVersion(b)

	for i := 0; i < 3; i++ {
		switch {
		case va[i] > vb[i]:
			return -1
		case va[i] < vb[i]:
			return 1
		}
	}
	return 0
}
