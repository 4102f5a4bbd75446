package shares

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidUNC is returned by ParseUNC for strings that do not name a host.
var ErrInvalidUNC = errors.New("shares: invalid UNC")

// ParseUNC builds a disk Share from one of
//
//	//host/share
//	\\host\share
//	smb://[user@]host[:port]/share[/path][?query]
//
// A user in an smb:// URL becomes the share's AuthInfo user. Sub-paths below
// the share are dropped. The share name may be empty (a bare host).
func ParseUNC(raw string) (Share, error) {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, `\`, "/")

	var user string
	if i := strings.Index(s, "://"); i >= 0 {
		u, err := url.Parse(s)
		if err != nil {
			return Share{}, fmt.Errorf("%w: %q: %v", ErrInvalidUNC, raw, err)
		}
		scheme := strings.ToLower(u.Scheme)
		if scheme != "smb" && scheme != "cifs" {
			return Share{}, fmt.Errorf("%w: %q: unsupported scheme %q", ErrInvalidUNC, raw, u.Scheme)
		}
		if u.User != nil {
			user = u.User.Username()
		}
		s = "//" + u.Hostname() + u.Path
	}

	if !strings.HasPrefix(s, "//") {
		return Share{}, fmt.Errorf("%w: %q: must start with //", ErrInvalidUNC, raw)
	}

	parts := strings.Split(s[2:], "/")
	host := parts[0]
	if host == "" {
		return Share{}, fmt.Errorf("%w: %q: missing host", ErrInvalidUNC, raw)
	}

	var name string
	if len(parts) > 1 {
		name = parts[1]
	}

	share := Share{Host: host, Name: name, Type: ShareTypeDisk}
	if user != "" {
		share.SetAuthInfo(AuthInfo{User: user})
	}
	return share, nil
}

// MinimalUNC normalizes raw to its identity form, //host/share in lower
// case. Unparseable input is returned lower-cased with slashes unified.
func MinimalUNC(raw string) string {
	s, err := ParseUNC(raw)
	if err != nil {
		return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(raw), `\`, "/"))
	}
	return s.MinimalUNC()
}

func minimalUNC(host, name string) string {
	host = strings.ToLower(strings.Trim(host, "/"))
	name = strings.ToLower(strings.Trim(name, "/"))
	if name == "" {
		return "//" + host
	}
	return "//" + host + "/" + name
}
