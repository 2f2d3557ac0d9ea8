package utils

import (
	"github.com/microcosm-cc/bluemonday"
)

// EmailPolicy is the allow-list applied to message HTML before it is shown to a user.
var EmailPolicy *bluemonday.Policy

func init() {
	EmailPolicy = bluemonday.UGCPolicy()

	EmailPolicy.AllowElements("p", "br", "div", "span", "h1", "h2", "h3", "h4", "h5", "h6")
	EmailPolicy.AllowElements("strong", "em", "u", "s", "code", "pre")
	EmailPolicy.AllowElements("ul", "ol", "li", "blockquote")
	EmailPolicy.AllowElements("a", "img")
	EmailPolicy.AllowElements("table", "thead", "tbody", "tr", "th", "td")

	EmailPolicy.AllowAttrs("href").OnElements("a")
	EmailPolicy.AllowAttrs("src", "alt", "title", "width", "height").OnElements("img")
	EmailPolicy.AllowAttrs("style").OnElements("span", "div", "p", "td")

	// Verification links must stay clickable, everything else scriptable goes.
	EmailPolicy.RequireParseableURLs(true)
	EmailPolicy.AllowURLSchemes("http", "https", "mailto")
}

// SanitizeHTML sanitizes message HTML using EmailPolicy
func SanitizeHTML(html string) string {
	return EmailPolicy.Sanitize(html)
}
