package validation

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// IsAll reports whether names selects every check.
func IsAll(names []string) bool {
	if len(names) == 0 {
		return true
	}
	for _, n := range names {
		if n == AllChecks {
			return true
		}
	}
	return false
}

// Fingerprint is a short stable hash of a check selection. Selecting everything maps to "all".
func Fingerprint(names []string) string {
	if IsAll(names) {
		return AllChecks
	}
	seen := make(map[string]bool, len(names))
	unique := make([]string, 0, len(names))
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			unique = append(unique, n)
		}
	}
	sort.Strings(unique)
	sum := sha256.Sum256([]byte(strings.Join(unique, ",")))
	return hex.EncodeToString(sum[:])[:16]
}
