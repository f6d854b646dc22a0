package crawler

import (
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/krishna0605/vulnscanner-sub001/internal/model"
)

// HTML element name constants for form field detection.
const (
	htmlElementInput    = "input"
	htmlElementSelect   = "select"
	htmlElementTextarea = "textarea"
	htmlElementButton   = "button"
)

// csrfPatterns match field and meta names that carry anti-forgery tokens.
// They are compiled once and shared by every Parser.
var csrfPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)csrf`),
	regexp.MustCompile(`(?i)xsrf`),
	regexp.MustCompile(`(?i)^_token$`),
	regexp.MustCompile(`(?i)authenticity_token`),
	regexp.MustCompile(`(?i)__requestverificationtoken`),
	regexp.MustCompile(`(?i)anti-?forgery`),
	regexp.MustCompile(`(?i)^__ncforminfo$`),
}

// submissionAction matches form actions whose path implies a state-changing
// submission, used to pick POST when a form has no method attribute.
var submissionAction = regexp.MustCompile(`(?i)(log-?in|sign-?in|log-?on|auth|register|sign-?up|submit|upload|checkout|contact|comment|subscribe|reset|password)`)

// IsCSRFName reports whether a field or meta name looks like a CSRF token.
func IsCSRFName(name string) bool {
	if name == "" {
		return false
	}
	// Rails publishes the token's parameter name, not the token, in csrf-param.
	if strings.EqualFold(name, "csrf-param") {
		return false
	}
	for _, re := range csrfPatterns {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// Parser extracts information from HTML content.
// It identifies links, forms, scripts, metadata, comments, images and CSRF
// tokens in a single walk over the document tree.
// Malformed markup is repaired by the HTML5 tree builder; unterminated tags
// still yield a usable tree.
type Parser struct {
	// baseURL is the URL of the page being parsed, used for resolving relative URLs.
	baseURL *url.URL
}

// ParseResult contains all information extracted from an HTML page.
type ParseResult struct {
	// Title is the page title from the first <title> tag.
	Title string

	// Links are absolute http(s) URLs from anchors, image maps and frames,
	// in document order. Duplicates are kept.
	Links []string

	// Forms are in document order.
	Forms []model.ExtractedForm

	// ExternalScripts are resolved <script src> URLs.
	ExternalScripts []string

	// InlineScripts are the bodies of <script> elements without src.
	InlineScripts []string

	// Meta maps lower-cased name, property and http-equiv attributes to content.
	Meta map[string]string

	// Comments are HTML comments, verbatim.
	Comments []string

	// Images are resolved <img src> URLs; data: URIs are skipped.
	Images []string

	// CSRFTokens are all tokens on the page, from meta tags and inputs.
	CSRFTokens []model.CSRFToken
}

// NewParser creates a new HTML parser with the given base URL.
// The base URL is used to resolve relative links.
func NewParser(baseURL string) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Parser{baseURL: u}, nil
}

// Parse parses document against baseURL. It never fails: an invalid base URL
// leaves relative links unresolved (and therefore dropped), and malformed
// markup yields whatever could be recovered.
func Parse(document, baseURL string) *ParseResult {
	p, err := NewParser(baseURL)
	if err != nil {
		p = &Parser{baseURL: &url.URL{}}
	}
	result, err := p.Parse(strings.NewReader(document))
	if err != nil {
		return newParseResult()
	}
	return result
}

// FindCSRFTokens returns the CSRF tokens found in document's meta tags and inputs.
func FindCSRFTokens(document, baseURL string) []model.CSRFToken {
	return Parse(document, baseURL).CSRFTokens
}

func newParseResult() *ParseResult {
	return &ParseResult{
		Links:           make([]string, 0),
		Forms:           make([]model.ExtractedForm, 0),
		ExternalScripts: make([]string, 0),
		InlineScripts:   make([]string, 0),
		Meta:            make(map[string]string),
		Comments:        make([]string, 0),
		Images:          make([]string, 0),
		CSRFTokens:      make([]model.CSRFToken, 0),
	}
}

// Parse parses HTML content and extracts all relevant information.
// The only error it returns is a read error from content.
func (p *Parser) Parse(content io.Reader) (*ParseResult, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	w := &walker{base: p.baseURL, result: newParseResult()}
	w.walk(doc, -1)

	return w.result, nil
}

// walker carries per-document state through the tree walk. base can be
// replaced by a <base href> element.
type walker struct {
	base   *url.URL
	result *ParseResult
}

// walk visits every node once. formIdx is the index of the enclosing form in
// result.Forms, or -1 outside of a form.
func (w *walker) walk(n *html.Node, formIdx int) {
	switch n.Type {
	case html.ElementNode:
		if n.Data == "form" {
			w.result.Forms = append(w.result.Forms, w.newForm(n))
			formIdx = len(w.result.Forms) - 1
		} else {
			w.processElement(n, formIdx)
		}
	case html.CommentNode:
		w.result.Comments = append(w.result.Comments, n.Data)
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c, formIdx)
	}

	if n.Type == html.ElementNode && n.Data == "form" {
		finalizeForm(&w.result.Forms[formIdx])
	}
}

// processElement handles HTML element nodes other than <form>.
func (w *walker) processElement(n *html.Node, formIdx int) {
	switch n.Data {
	case "base":
		if href := strings.TrimSpace(getAttr(n, "href")); href != "" {
			if u, err := url.Parse(href); err == nil {
				w.base = w.base.ResolveReference(u)
			}
		}

	case "title":
		if w.result.Title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
			w.result.Title = strings.TrimSpace(n.FirstChild.Data)
		}

	case "a", "area":
		w.addLink(getAttr(n, "href"))

	case "iframe", "frame":
		w.addLink(getAttr(n, "src"))

	case "script":
		if src := strings.TrimSpace(getAttr(n, "src")); src != "" {
			if resolved := w.resolve(src); resolved != "" {
				w.result.ExternalScripts = append(w.result.ExternalScripts, resolved)
			}
			return
		}
		if body := strings.TrimSpace(textContent(n)); body != "" {
			w.result.InlineScripts = append(w.result.InlineScripts, body)
		}

	case "img":
		src := strings.TrimSpace(getAttr(n, "src"))
		if src == "" || hasSchemePrefix(src, "data:") {
			return
		}
		if resolved := w.resolve(src); resolved != "" {
			w.result.Images = append(w.result.Images, resolved)
		}

	case "meta":
		w.processMeta(n)

	case htmlElementInput, htmlElementSelect, htmlElementTextarea, htmlElementButton:
		w.processField(n, formIdx)
	}
}

func (w *walker) processMeta(n *html.Node) {
	content, ok := attr(n, "content")
	if !ok {
		return
	}
	for _, key := range []string{"name", "property", "http-equiv", "itemprop"} {
		name := strings.TrimSpace(getAttr(n, key))
		if name == "" {
			continue
		}
		w.result.Meta[strings.ToLower(name)] = content

		if key == "name" && IsCSRFName(name) && content != "" {
			w.result.CSRFTokens = append(w.result.CSRFTokens, model.CSRFToken{
				Name:   name,
				Value:  content,
				Source: model.CSRFSourceMeta,
			})
		}
	}
}

func (w *walker) processField(n *html.Node, formIdx int) {
	field := model.FormField{
		Name:     getAttr(n, "name"),
		Type:     strings.ToLower(getAttr(n, "type")),
		Value:    getAttr(n, "value"),
		Required: hasAttr(n, "required"),
	}

	switch n.Data {
	case htmlElementTextarea:
		field.Type = htmlElementTextarea
		field.Value = textContent(n)
	case htmlElementSelect:
		field.Type = htmlElementSelect
		field.Value = selectedOption(n)
	case htmlElementButton:
		if field.Type == "" {
			field.Type = "submit"
		}
	default:
		if field.Type == "" {
			field.Type = "text"
		}
	}

	if field.Name == "" {
		return
	}

	var token *model.CSRFToken
	if IsCSRFName(field.Name) && field.Value != "" {
		token = &model.CSRFToken{Name: field.Name, Value: field.Value, Source: model.CSRFSourceInput}
		w.result.CSRFTokens = append(w.result.CSRFTokens, *token)
	}

	if formIdx < 0 {
		return
	}
	form := &w.result.Forms[formIdx]
	form.Fields = append(form.Fields, field)
	if token != nil {
		form.CSRFTokens = append(form.CSRFTokens, *token)
	}
}

// newForm creates a form from its element. Method stays empty when the
// element has no method attribute; finalizeForm decides the default once
// the fields are known.
func (w *walker) newForm(n *html.Node) model.ExtractedForm {
	action := strings.TrimSpace(getAttr(n, "action"))

	resolved := ""
	if action != "" {
		resolved = w.resolve(action)
	}
	if resolved == "" {
		resolved = w.base.String()
	}

	return model.ExtractedForm{
		Action: resolved,
		Method: strings.ToUpper(strings.TrimSpace(getAttr(n, "method"))),
		Fields: make([]model.FormField, 0),
	}
}

// finalizeForm applies the default method: POST for forms that carry a
// password or submit to a login/registration style action, GET otherwise.
func finalizeForm(form *model.ExtractedForm) {
	if form.Method != "" {
		return
	}
	form.Method = http.MethodGet

	if form.HasPasswordField() {
		form.Method = http.MethodPost
		return
	}
	if u, err := url.Parse(form.Action); err == nil && submissionAction.MatchString(u.Path) {
		form.Method = http.MethodPost
	}
}

func (w *walker) addLink(href string) {
	if resolved := w.resolve(href); resolved != "" {
		w.result.Links = append(w.result.Links, resolved)
	}
}

// resolve turns href into an absolute http(s) URL. It returns "" for
// javascript:, mailto:, tel: and data: targets, pure fragments, unparsable
// values and anything that does not end up http or https.
func (w *walker) resolve(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	for _, prefix := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if hasSchemePrefix(href, prefix) {
			return ""
		}
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := w.base.ResolveReference(u)
	switch resolved.Scheme {
	case "http", "https":
	default:
		return ""
	}
	if resolved.Host == "" {
		return ""
	}
	return resolved.String()
}

func hasSchemePrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// selectedOption returns the value of the selected option, or of the first
// option when none is selected.
func selectedOption(sel *html.Node) string {
	var first, selected string
	var haveFirst bool

	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "option" {
			value, ok := attr(n, "value")
			if !ok {
				value = strings.TrimSpace(textContent(n))
			}
			if !haveFirst {
				first, haveFirst = value, true
			}
			if selected == "" && hasAttr(n, "selected") {
				selected = value
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(sel)

	if selected != "" {
		return selected
	}
	return first
}

// textContent concatenates the text nodes below n.
func textContent(n *html.Node) string {
	if n.FirstChild != nil && n.FirstChild == n.LastChild && n.FirstChild.Type == html.TextNode {
		return n.FirstChild.Data
	}
	var b strings.Builder
	var visit func(*html.Node)
	visit = func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		for cc := c.FirstChild; cc != nil; cc = cc.NextSibling {
			visit(cc)
		}
	}
	visit(n)
	return b.String()
}

// attr retrieves an attribute value and whether it was present.
func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	v, _ := attr(n, key)
	return v
}

func hasAttr(n *html.Node, key string) bool {
	_, ok := attr(n, key)
	return ok
}
