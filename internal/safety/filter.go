// Package safety provides share filtering, confirmation of destructive
// operations, and audit logging for the smbshare MCP server.
package safety

import (
	"path"
	"strings"
)

// Filter controls access to shares by their minimal UNC (//host/share)
// using glob allowlist and denylist patterns. Matching is case-insensitive
// because SMB host and share names are.
//
// Rules:
//   - If both lists are empty, every share is allowed.
//   - The denylist is checked first and always wins.
//   - A non-empty allowlist requires at least one match.
//
// A '*' never crosses a '/', so "//nas/*" matches every share on nas but
// "//*" matches only bare hosts.
type Filter struct {
	allowlist []string
	denylist  []string
}

// NewFilter constructs a Filter from allowlist and denylist patterns.
// Either may be nil.
func NewFilter(allowlist, denylist []string) *Filter {
	return &Filter{
		allowlist: lowerAll(allowlist),
		denylist:  lowerAll(denylist),
	}
}

// IsAllowed reports whether unc is permitted. unc should already be in
// minimal form; it is lower-cased before matching.
func (f *Filter) IsAllowed(unc string) bool {
	if f == nil {
		return true
	}
	name := strings.ToLower(unc)

	for _, pattern := range f.denylist {
		if matchGlob(pattern, name) {
			return false
		}
	}
	if len(f.allowlist) == 0 {
		return true
	}
	for _, pattern := range f.allowlist {
		if matchGlob(pattern, name) {
			return true
		}
	}
	return false
}

// matchGlob reports whether name matches pattern. Malformed patterns never
// match.
func matchGlob(pattern, name string) bool {
	matched, err := path.Match(pattern, name)
	return err == nil && matched
}

func lowerAll(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
