package techdetect

import (
	"bytes"
	"log/slog"
	"net/http"
	"regexp"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/krishna0605/vulnscanner-sub001/internal/model"
)

// Detector fingerprints HTTP responses. It holds no per-response state and
// is safe for concurrent use.
type Detector struct {
	logger *slog.Logger

	// versions maps a library key to the pattern that finds its version in
	// a script or stylesheet URL ("jquery-3.6.0.min.js", "vue@3.2.0/...").
	versions map[string]*regexp.Regexp
}

// Option configures a Detector.
type Option func(*Detector)

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Detector) {
		d.logger = logger
	}
}

// New creates a Detector.
func New(opts ...Option) *Detector {
	d := &Detector{
		logger:   slog.Default(),
		versions: make(map[string]*regexp.Regexp),
	}
	for _, opt := range opts {
		opt(d)
	}

	keys := make([]string, 0, len(scriptSignatures)+len(stylesheetSignatures))
	for _, s := range scriptSignatures {
		keys = append(keys, s.key)
	}
	for _, s := range stylesheetSignatures {
		keys = append(keys, s.key)
	}
	for _, key := range keys {
		d.versions[key] = regexp.MustCompile(`(?i)` + regexp.QuoteMeta(key) + `[@/-]v?([0-9]+(?:\.[0-9]+)+)`)
	}

	return d
}

// response is the normalized view of one response used by the matchers.
type response struct {
	headers map[string][]string // lower-cased names
	lines   []string            // "name: value", lower-cased
	cookies []string            // cookie names, lower-cased
	body    string              // lower-cased
	rawBody string
	status  int
	doc     *goquery.Document
}

func newResponse(headers http.Header, body []byte, status int) *response {
	r := &response{
		headers: make(map[string][]string, len(headers)),
		status:  status,
	}

	for name, values := range headers {
		lname := strings.ToLower(name)
		r.headers[lname] = append(r.headers[lname], values...)
		for _, v := range values {
			r.lines = append(r.lines, lname+": "+strings.ToLower(strings.TrimSpace(v)))
		}
	}
	slices.Sort(r.lines)

	for _, c := range r.headers["set-cookie"] {
		name, _, _ := strings.Cut(c, "=")
		if name = strings.TrimSpace(name); name != "" {
			r.cookies = append(r.cookies, strings.ToLower(name))
		}
	}

	if len(body) > 0 {
		r.rawBody = string(body)
		r.body = strings.ToLower(r.rawBody)
		if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body)); err == nil {
			r.doc = doc
		}
	}

	return r
}

func (r *response) header(name string) string {
	return strings.Join(r.headers[strings.ToLower(name)], ", ")
}

// Analyze fingerprints one response. headers may use any key casing; body
// may be nil for responses that were not read or are not HTML.
func (d *Detector) Analyze(headers http.Header, body []byte, statusCode int) model.TechnologyFingerprint {
	r := newResponse(headers, body, statusCode)

	fp := model.TechnologyFingerprint{
		ServerSoftware:      d.serverSoftware(r),
		ProgrammingLanguage: d.language(r),
		Framework:           d.framework(r),
		CMS:                 d.cms(r),
		CDN:                 d.cdn(r),
		SecurityHeaders:     securityHeadersOf(r),
	}
	fp.JavaScriptLibraries, fp.CSSFrameworks = d.clientSide(r)

	d.logger.Debug("fingerprinted response",
		"status", statusCode,
		"server", fp.ServerSoftware,
		"technologies", fp.TechnologyCount(),
	)

	return fp
}

// serverSoftware prefers the Server header and falls back to banners on
// error pages. Banners are not searched on successful pages, where product
// names are more likely to be ordinary content.
func (d *Detector) serverSoftware(r *response) string {
	if server := strings.TrimSpace(r.header("Server")); server != "" {
		return server
	}
	if r.status >= http.StatusBadRequest && r.rawBody != "" {
		return strings.TrimSpace(serverBanner.FindString(r.rawBody))
	}
	return ""
}

func (d *Detector) language(r *response) string {
	if v := strings.TrimSpace(r.header("X-AspNet-Version")); v != "" {
		return "ASP.NET " + v
	}
	for _, name := range []string{"X-Powered-By", "Server"} {
		if v, ok := firstMatch(languageHeaderSignatures, r.header(name)); ok {
			return v
		}
	}
	for _, c := range r.cookies {
		if v, ok := firstMatch(languageCookieSignatures, c); ok {
			return v
		}
	}
	if v, ok := firstMatch(languageBodySignatures, r.body); ok {
		return v
	}
	return ""
}

func (d *Detector) framework(r *response) string {
	hints := []string{r.header("X-Powered-By")}
	if v := r.header("X-AspNetMvc-Version"); v != "" {
		hints = append(hints, "aspnetmvc/"+v)
	}
	hints = append(hints, r.cookies...)

	if v, ok := firstMatch(frameworkHeaderSignatures, strings.Join(hints, "\n")); ok {
		return v
	}
	if v, ok := firstMatch(frameworkBodySignatures, r.body); ok {
		return v
	}
	return ""
}

func (d *Detector) cms(r *response) string {
	if r.doc != nil {
		var found string
		r.doc.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			name, _ := s.Attr("name")
			if !strings.EqualFold(strings.TrimSpace(name), "generator") {
				return true
			}
			content, _ := s.Attr("content")
			if v, ok := firstMatch(generatorSignatures, content); ok {
				found = v
				return false
			}
			return true
		})
		if found != "" {
			return found
		}
	}

	if v, ok := matchLines(cmsHeaderSignatures, r.lines); ok {
		return v
	}
	if v, ok := firstMatch(cmsBodySignatures, r.body); ok {
		return v
	}
	return ""
}

func (d *Detector) cdn(r *response) string {
	v, _ := matchLines(cdnSignatures, r.lines)
	return v
}

// clientSide detects JavaScript libraries and CSS frameworks from script
// and stylesheet URLs and from in-body usage markers.
func (d *Detector) clientSide(r *response) (libraries, css []string) {
	libs := make(map[string]struct{})
	frameworks := make(map[string]struct{})

	if r.doc != nil {
		var scripts, styles []string
		r.doc.Find("script[src]").Each(func(_ int, s *goquery.Selection) {
			src, _ := s.Attr("src")
			scripts = append(scripts, strings.ToLower(strings.TrimSpace(src)))
		})
		r.doc.Find("link[href]").Each(func(_ int, s *goquery.Selection) {
			href, _ := s.Attr("href")
			styles = append(styles, strings.ToLower(strings.TrimSpace(href)))
		})

		for _, src := range scripts {
			for _, s := range scriptSignatures {
				if _, ok := s.match(src); ok {
					libs[d.withVersion(s.name, s.key, src)] = struct{}{}
					break
				}
			}
		}
		for _, ref := range append(styles, scripts...) {
			for _, s := range stylesheetSignatures {
				if _, ok := s.match(ref); ok {
					frameworks[d.withVersion(s.name, s.key, ref)] = struct{}{}
					break
				}
			}
		}
	}

	for _, s := range libraryBodySignatures {
		if _, ok := s.match(r.body); ok && !hasName(libs, s.name) {
			libs[s.name] = struct{}{}
		}
	}

	return sortedKeys(libs), sortedKeys(frameworks)
}

func (d *Detector) withVersion(name, key, ref string) string {
	if re, ok := d.versions[key]; ok {
		if m := re.FindStringSubmatch(ref); m != nil {
			return name + " " + m[1]
		}
	}
	return name
}

// hasName reports whether set already contains name, with or without a version.
func hasName(set map[string]struct{}, name string) bool {
	for k := range set {
		if k == name || strings.HasPrefix(k, name+" ") {
			return true
		}
	}
	return false
}

func securityHeadersOf(r *response) map[string]string {
	var out map[string]string
	for _, name := range SecurityHeaders {
		values, ok := r.headers[strings.ToLower(name)]
		if !ok {
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[name] = strings.Join(values, ", ")
	}
	return out
}

// matchLines returns the first signature, in signature order, matching any line.
func matchLines(sigs []signature, lines []string) (string, bool) {
	for _, s := range sigs {
		for _, line := range lines {
			if v, ok := s.match(line); ok {
				return v, true
			}
		}
	}
	return "", false
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
