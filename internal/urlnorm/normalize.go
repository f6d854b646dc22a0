package urlnorm

import (
	"net"
	"net/url"
	"path"
	"sort"
	"strings"
	"unicode/utf8"
)

// MaxURLLength is the longest URL IsValid accepts.
const MaxURLLength = 2048

// OutOfDomain is returned by Depth when the URL is not on the base URL's host.
const OutOfDomain = -1

// defaultPorts maps a scheme to the port that is implied when none is given.
var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

// trackingParams are query parameters that never change the resource served.
// Any parameter starting with "utm_" is dropped as well.
var trackingParams = map[string]struct{}{
	"fbclid":  {},
	"gclid":   {},
	"dclid":   {},
	"msclkid": {},
	"yclid":   {},
	"igshid":  {},
	"mc_cid":  {},
	"mc_eid":  {},
	"_ga":     {},
	"_gl":     {},
	"_hsenc":  {},
	"_hsmi":   {},
}

// excludedExtensions lists file extensions that are never worth crawling:
// images, archives, office documents, stylesheets, fonts, media and binaries.
var excludedExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".bmp": {}, ".svg": {},
	".ico": {}, ".webp": {}, ".tif": {}, ".tiff": {}, ".avif": {},
	".zip": {}, ".tar": {}, ".gz": {}, ".tgz": {}, ".rar": {}, ".7z": {},
	".bz2": {}, ".xz": {},
	".pdf": {}, ".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {}, ".ppt": {},
	".pptx": {}, ".odt": {}, ".ods": {},
	".css": {}, ".woff": {}, ".woff2": {}, ".ttf": {}, ".eot": {}, ".otf": {},
	".mp3": {}, ".mp4": {}, ".avi": {}, ".mov": {}, ".wmv": {}, ".flv": {},
	".wav": {}, ".ogg": {}, ".webm": {}, ".mkv": {},
	".exe": {}, ".dmg": {}, ".iso": {}, ".bin": {}, ".msi": {}, ".apk": {},
	".deb": {}, ".rpm": {},
}

// Normalize returns the canonical form of raw.
//
// Scheme and host are lower-cased, default ports are removed (non-default
// ports are kept), an empty path becomes "/", dot segments are resolved,
// trailing slashes are removed from non-root paths, the fragment is dropped, tracking parameters are
// removed and the remaining query parameters are sorted by key.
//
// Input that cannot be parsed, or that has no scheme or host, is returned
// unchanged. Normalize is idempotent.
func Normalize(raw string) string {
	if raw == "" || !utf8.ValidString(raw) {
		return raw
	}

	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw
	}

	scheme := strings.ToLower(u.Scheme)

	var b strings.Builder
	b.Grow(len(raw))
	b.WriteString(scheme)
	b.WriteString("://")
	if u.User != nil {
		b.WriteString(u.User.String())
		b.WriteByte('@')
	}
	b.WriteString(canonicalHost(u, scheme))
	b.WriteString(canonicalPath(u.EscapedPath()))

	if q := canonicalQuery(u.RawQuery); q != "" {
		b.WriteByte('?')
		b.WriteString(q)
	}

	return b.String()
}

// canonicalHost lower-cases the host and keeps the port only when it is not
// the scheme's default.
func canonicalHost(u *url.URL, scheme string) string {
	host := strings.ToLower(u.Hostname())
	port := u.Port()

	if port != "" && port != defaultPorts[scheme] {
		return net.JoinHostPort(host, port)
	}
	if strings.Contains(host, ":") {
		// IPv6 literal without a port still needs its brackets.
		return "[" + host + "]"
	}
	return host
}

// canonicalPath resolves dot segments, collapses repeated slashes and drops
// the trailing slash of non-root paths.
func canonicalPath(p string) string {
	if p == "" {
		return "/"
	}
	// path.Clean also removes the trailing slash.
	return path.Clean("/" + p)
}

// canonicalQuery drops tracking parameters and sorts the rest by key.
// Pairs keep their original encoding; duplicate keys keep their relative order.
func canonicalQuery(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}

	type pair struct {
		key string
		raw string
	}

	parts := strings.Split(rawQuery, "&")
	pairs := make([]pair, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		key, _, _ := strings.Cut(part, "=")
		if isTrackingParam(key) {
			continue
		}
		pairs = append(pairs, pair{key: key, raw: part})
	}

	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].key < pairs[j].key
	})

	out := make([]string, len(pairs))
	for i, p := range pairs {
		out[i] = p.raw
	}
	return strings.Join(out, "&")
}

func isTrackingParam(key string) bool {
	if decoded, err := url.QueryUnescape(key); err == nil {
		key = decoded
	}
	key = strings.ToLower(key)
	if strings.HasPrefix(key, "utm_") {
		return true
	}
	_, ok := trackingParams[key]
	return ok
}

// IsValid reports whether raw is a crawlable http(s) URL: parsable, not empty,
// not longer than MaxURLLength, with a host, and not pointing at a file type
// the crawler never fetches.
func IsValid(raw string) bool {
	if raw == "" || len(raw) > MaxURLLength || !utf8.ValidString(raw) {
		return false
	}

	u, err := url.Parse(raw)
	if err != nil {
		return false
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return false
	}

	if u.Hostname() == "" {
		return false
	}

	ext := strings.ToLower(path.Ext(u.Path))
	_, excluded := excludedExtensions[ext]
	return !excluded
}

// IsSameDomain reports whether a and b point at the same host, ignoring the
// scheme, the port and a leading "www.".
func IsSameDomain(a, b string) bool {
	ha, ok := hostOf(a)
	if !ok {
		return false
	}
	hb, ok := hostOf(b)
	if !ok {
		return false
	}
	return ha == hb
}

func hostOf(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", false
	}
	return strings.TrimPrefix(host, "www."), true
}

// Depth returns how many non-empty path segments u has beyond base.
// It returns OutOfDomain when u is not on base's host.
func Depth(u, base string) int {
	if !IsSameDomain(u, base) {
		return OutOfDomain
	}

	pu, err := url.Parse(u)
	if err != nil {
		return OutOfDomain
	}
	pb, err := url.Parse(base)
	if err != nil {
		return OutOfDomain
	}

	d := segments(pu.Path) - segments(pb.Path)
	if d < 0 {
		return 0
	}
	return d
}

func segments(p string) int {
	n := 0
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			n++
		}
	}
	return n
}

// Dedupe normalizes every URL, drops the ones that are not valid and returns
// the unique survivors.
func Dedupe(urls []string) map[string]struct{} {
	set := make(map[string]struct{}, len(urls))
	for _, raw := range urls {
		n := Normalize(raw)
		if !IsValid(n) {
			continue
		}
		set[n] = struct{}{}
	}
	return set
}
