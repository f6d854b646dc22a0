package techdetect

import "regexp"

// signature maps a case-insensitive pattern to a technology name.
// When the pattern has a capture group, its first non-empty match is the version.
type signature struct {
	name string
	re   *regexp.Regexp
}

func sig(name, pattern string) signature {
	return signature{name: name, re: regexp.MustCompile(`(?i)` + pattern)}
}

// match reports whether s matches text and returns the display value:
// the name, followed by the version when one was captured.
func (s signature) match(text string) (string, bool) {
	m := s.re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	for _, group := range m[1:] {
		if group != "" {
			return s.name + " " + group, true
		}
	}
	return s.name, true
}

// firstMatch returns the value of the first signature in sigs matching text.
func firstMatch(sigs []signature, text string) (string, bool) {
	for _, s := range sigs {
		if v, ok := s.match(text); ok {
			return v, true
		}
	}
	return "", false
}

// SecurityHeaders is the fixed checklist of response headers reported by
// presence, in the spelling used as keys of TechnologyFingerprint.SecurityHeaders.
var SecurityHeaders = []string{
	"Content-Security-Policy",
	"X-Frame-Options",
	"X-Content-Type-Options",
	"X-XSS-Protection",
	"Strict-Transport-Security",
	"Referrer-Policy",
}

// serverBanner finds server banners on error pages, e.g.
// "Apache/2.4.41 (Ubuntu) Server at example.com Port 80" or
// "<center>nginx/1.18.0</center>".
var serverBanner = regexp.MustCompile(`(?i)\b(apache tomcat|apache|nginx|openresty|microsoft-iis|lighttpd|litespeed|gunicorn|jetty|caddy)(/[0-9][0-9.]*)?(\s\([^)<]{1,40}\))?`)

// Languages, from X-Powered-By, Server and X-AspNet-Version header values.
var languageHeaderSignatures = []signature{
	sig("PHP", `\bphp(?:/([0-9][0-9.]*))?`),
	sig("ASP.NET", `asp\.net(?:/([0-9][0-9.]*))?`),
	sig("Node.js", `\b(?:express|next\.js|nuxt)\b`),
	sig("Java", `\b(?:servlet|jsp|tomcat|jboss|wildfly|glassfish)\b`),
	sig("Python", `\b(?:python|gunicorn|uwsgi|werkzeug|django)\b(?:/([0-9][0-9.]*))?`),
	sig("Ruby", `\b(?:phusion passenger|ruby|puma)\b`),
}

// Languages, from cookie names set by the response.
var languageCookieSignatures = []signature{
	sig("PHP", `^(?:phpsessid|laravel_session)$`),
	sig("Java", `^jsessionid$`),
	sig("ASP.NET", `^(?:asp\.net_sessionid|\.aspxauth|\.aspnetcore\..+)$`),
	sig("Python", `^(?:csrftoken|django_language)$`),
	sig("Node.js", `^connect\.sid$`),
	sig("Ruby", `^_[a-z0-9_]+_session$`),
}

// Languages, from body artifacts.
var languageBodySignatures = []signature{
	sig("ASP.NET", `__viewstate|__eventvalidation|\.aspx\b`),
	sig("PHP", `href="[^"]+\.php\b`),
	sig("Python", `csrfmiddlewaretoken`),
	sig("Java", `\.(?:jsp|do)\b[^"]*"|jsessionid=`),
	sig("Ruby", `name="csrf-param" content="authenticity_token"`),
}

// Frameworks, from header values (X-Powered-By, X-AspNetMvc-Version, cookies).
var frameworkHeaderSignatures = []signature{
	sig("Express", `\bexpress\b`),
	sig("Next.js", `\bnext\.js(?:\s+([0-9][0-9.]*))?`),
	sig("Nuxt.js", `\bnuxt\b`),
	sig("ASP.NET MVC", `aspnetmvc(?:/([0-9][0-9.]*))?`),
	sig("Laravel", `laravel_session`),
	sig("Django", `\bdjango\b`),
	sig("Ruby on Rails", `\brails\b`),
	sig("Flask", `\bwerkzeug\b`),
}

// Frameworks, from body markers.
var frameworkBodySignatures = []signature{
	sig("Next.js", `__next_data__|/_next/static/`),
	sig("Nuxt.js", `window\.__nuxt__|/_nuxt/`),
	sig("Angular", `\bng-version="([0-9][0-9.]*)"`),
	sig("Django", `csrfmiddlewaretoken`),
	sig("Ruby on Rails", `name="csrf-param" content="authenticity_token"|data-turbolinks-track`),
	sig("Laravel", `laravel_session|name="_token"`),
	sig("Gatsby", `id="___gatsby"`),
	sig("SvelteKit", `data-sveltekit-`),
	sig("ASP.NET Web Forms", `__viewstate`),
}

// CMS names recognized in <meta name="generator">.
var generatorSignatures = []signature{
	sig("WordPress", `wordpress\s*([0-9][0-9.]*)?`),
	sig("Drupal", `drupal\s*([0-9][0-9.]*)?`),
	sig("Joomla", `joomla!?\s*([0-9][0-9.]*)?`),
	sig("Ghost", `\bghost\s*([0-9][0-9.]*)?`),
	sig("TYPO3", `typo3\s*(?:cms\s*)?([0-9][0-9.]*)?`),
	sig("Wix", `wix\.com`),
	sig("Squarespace", `squarespace`),
	sig("Shopify", `shopify`),
	sig("Magento", `magento\s*([0-9][0-9.]*)?`),
	sig("Umbraco", `umbraco`),
	sig("Hugo", `\bhugo\s*([0-9][0-9.]*)?`),
	sig("Jekyll", `jekyll\s*v?([0-9][0-9.]*)?`),
}

// CMS, from header names and values.
var cmsHeaderSignatures = []signature{
	sig("Drupal", `x-drupal-|x-generator: drupal`),
	sig("WordPress", `x-pingback:|wp-json|wordpress`),
	sig("Shopify", `x-shopify-`),
	sig("Magento", `x-magento-`),
}

// CMS, from characteristic paths and class names in the body.
var cmsBodySignatures = []signature{
	sig("WordPress", `/wp-content/|/wp-includes/`),
	sig("Drupal", `/sites/default/files/|drupal-settings-json|drupal\.settings`),
	sig("Joomla", `/media/jui/|/components/com_|/media/system/js/`),
	sig("Shopify", `cdn\.shopify\.com|shopify\.theme`),
	sig("Magento", `/skin/frontend/|mage\.cookies|/static/version[0-9]+/frontend/`),
	sig("Squarespace", `static1?\.squarespace\.com`),
	sig("Wix", `static\.wixstatic\.com`),
	sig("Ghost", `class="[^"]*\bgh-`),
}

// JavaScript libraries, from <script src> file names. Each library is
// listed with the key used to look for a version in the URL path.
var scriptSignatures = []struct {
	signature
	key string
}{
	{sig("jQuery UI", `jquery-ui(?:[.-][0-9.]+)?(?:\.min)?\.js`), "jquery-ui"},
	{sig("jQuery", `(?:^|/)jquery(?:[.-][0-9][0-9.]*?)?(?:\.slim)?(?:\.min)?\.js`), "jquery"},
	{sig("React", `(?:^|/)react(?:-dom)?(?:\.production|\.development)?(?:\.min)?\.js`), "react"},
	{sig("Vue.js", `(?:^|/)vue(?:\.runtime)?(?:\.global)?(?:\.prod)?(?:\.min)?\.js`), "vue"},
	{sig("AngularJS", `(?:^|/)angular(?:\.min)?\.js`), "angular"},
	{sig("Lodash", `(?:^|/)lodash(?:\.core)?(?:\.min)?\.js`), "lodash"},
	{sig("Underscore.js", `(?:^|/)underscore(?:-min|\.min)?\.js`), "underscore"},
	{sig("Moment.js", `(?:^|/)moment(?:-with-locales)?(?:\.min)?\.js`), "moment"},
	{sig("Backbone.js", `(?:^|/)backbone(?:-min|\.min)?\.js`), "backbone"},
	{sig("Ember.js", `(?:^|/)ember(?:\.prod|\.debug)?(?:\.min)?\.js`), "ember"},
	{sig("D3", `(?:^|/)d3(?:\.v[0-9]+)?(?:\.min)?\.js`), "d3"},
	{sig("Axios", `(?:^|/)axios(?:\.min)?\.js`), "axios"},
	{sig("htmx", `(?:^|/)htmx(?:\.min)?\.js`), "htmx.org"},
	{sig("Alpine.js", `(?:^|/)alpine(?:js)?(?:\.min)?\.js|/alpinejs@`), "alpinejs"},
	{sig("Modernizr", `(?:^|/)modernizr(?:[.-][0-9.]+)?(?:\.min)?\.js`), "modernizr"},
}

// JavaScript libraries, from in-body usage markers.
var libraryBodySignatures = []signature{
	sig("React", `data-reactroot|data-reactid|_reactrootcontainer`),
	sig("Vue.js", `\bdata-v-[0-9a-f]{8}\b|\bv-cloak\b|__vue__`),
	sig("AngularJS", `\bng-app\b|\bng-controller=`),
	sig("Alpine.js", `\bx-data=`),
	sig("htmx", `\bhx-(?:get|post)=`),
}

// CSS frameworks, from <link href> and <script src> URLs.
var stylesheetSignatures = []struct {
	signature
	key string
}{
	{sig("Bootstrap", `bootstrap(?:\.bundle)?(?:\.min)?\.(?:css|js)|/bootstrap@`), "bootstrap"},
	{sig("Tailwind CSS", `tailwind(?:css)?(?:\.min)?\.css|cdn\.tailwindcss\.com`), "tailwindcss"},
	{sig("Bulma", `bulma(?:\.min)?\.css`), "bulma"},
	{sig("Foundation", `foundation(?:\.min)?\.(?:css|js)`), "foundation"},
	{sig("Materialize", `materialize(?:\.min)?\.(?:css|js)`), "materialize"},
	{sig("Semantic UI", `semantic(?:-ui)?(?:\.min)?\.css`), "semantic-ui"},
	{sig("UIkit", `uikit(?:\.min)?\.(?:css|js)`), "uikit"},
	{sig("Pure.css", `pure(?:-min)?\.css`), "pure"},
}

// cdnSignatures are matched against "name: value" header lines.
var cdnSignatures = []signature{
	sig("Cloudflare", `^(?:cf-ray|cf-cache-status):|^server: cloudflare`),
	sig("Amazon CloudFront", `^x-amz-cf-(?:id|pop):|^via: .*cloudfront`),
	sig("Akamai", `^(?:x-akamai-[a-z-]+|akamai-grn):|^server: akamaighost`),
	sig("Fastly", `^(?:x-fastly-request-id|fastly-debug-digest):|^x-served-by: cache-`),
	sig("Azure Front Door", `^x-azure-ref:`),
	sig("Imperva Incapsula", `^x-iinfo:|^x-cdn: (?:imperva|incapsula)`),
	sig("Sucuri", `^x-sucuri-(?:id|cache):`),
	sig("Vercel", `^x-vercel-(?:id|cache):|^server: vercel`),
	sig("Netlify", `^x-nf-request-id:|^server: netlify`),
	sig("BunnyCDN", `^cdn-pullzone:|^server: bunnycdn`),
	sig("KeyCDN", `^server: keycdn`),
}
