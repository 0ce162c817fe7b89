package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// URLSet remembers article URLs already handed to the pipeline during one
// run, so a story listed by two sources (a feed and a search query, say)
// is processed once. It is not safe for concurrent use; the run is
// sequential.
type URLSet struct {
	seen map[string]struct{}
}

// NewURLSet creates an empty set sized for capacity URLs.
func NewURLSet(capacity int) *URLSet {
	return &URLSet{seen: make(map[string]struct{}, capacity)}
}

// Add marks rawURL as seen and reports whether it was new.
func (s *URLSet) Add(rawURL string) bool {
	key := hashURL(CanonicalizeURL(rawURL))
	if _, ok := s.seen[key]; ok {
		return false
	}
	s.seen[key] = struct{}{}
	return true
}

// Len returns the number of distinct URLs seen.
func (s *URLSet) Len() int {
	return len(s.seen)
}

// CanonicalizeURL normalizes a URL for comparison:
// - lowercases scheme and host
// - removes fragment
// - sorts query parameters
// - removes trailing slash (except root)
// - removes default ports (80 for http, 443 for https)
func CanonicalizeURL(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return rawURL
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	host := u.Hostname()
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		u.Host = host
	}

	// Board views are commonly ?bbsId=..&nttId=.. in either order.
	if u.RawQuery != "" {
		params := u.Query()
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var sorted []string
		for _, k := range keys {
			vals := params[k]
			sort.Strings(vals)
			for _, v := range vals {
				sorted = append(sorted, url.QueryEscape(k)+"="+url.QueryEscape(v))
			}
		}
		u.RawQuery = strings.Join(sorted, "&")
	}

	if u.Path != "/" && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimRight(u.Path, "/")
	}
	if u.Path == "" {
		u.Path = "/"
	}

	return u.String()
}

func hashURL(canonicalURL string) string {
	h := sha256.Sum256([]byte(canonicalURL))
	return hex.EncodeToString(h[:16])
}
