package api

import (
	"regexp"
	"strings"
	"time"

	"aliasmail/models"

	"golang.org/x/net/html"
)

// htmlTagPattern matches any <...> sequence. Stripping is textual: entities, scripts
// and styles are not treated specially.
var htmlTagPattern = regexp.MustCompile(`<[^>]+>`)

func stripTags(s string) string {
	return htmlTagPattern.ReplaceAllString(s, "")
}

// ExtractText flattens a body tree to text. ok is false when the tree has no inline
// text/plain or text/html leaf at all.
//
// With preferHTML false, every text/plain leaf is taken verbatim and every text/html
// leaf tag-stripped, concatenated depth-first in order. With preferHTML true, the first
// text/html leaf found depth-first is returned unmodified; only when there is none are
// the text/plain leaves concatenated.
func ExtractText(body *models.Part, preferHTML bool) (string, bool) {
	if body == nil {
		return "", false
	}
	if preferHTML {
		if h, ok := findHTML(body); ok {
			return h, true
		}
		return collectText(body, false)
	}
	return collectText(body, true)
}

func findHTML(p *models.Part) (string, bool) {
	if p.IsText("html") {
		return p.Content, true
	}
	for _, child := range p.Parts {
		if h, ok := findHTML(child); ok {
			return h, true
		}
	}
	return "", false
}

// collectText concatenates text/plain leaves, plus stripped text/html leaves when
// includeHTML is set.
func collectText(p *models.Part, includeHTML bool) (string, bool) {
	switch {
	case p.IsText("plain"):
		return p.Content, true
	case includeHTML && p.IsText("html"):
		return stripTags(p.Content), true
	case p.IsMultipart():
		var (
			b     strings.Builder
			found bool
		)
		for _, child := range p.Parts {
			if s, ok := collectText(child, includeHTML); ok {
				b.WriteString(s)
				found = true
			}
		}
		return b.String(), found
	}
	return "", false
}

// ToEmailContent builds the display projection of msg with HTML preferred.
func ToEmailContent(msg models.Message) models.EmailContent {
	content := models.EmailContent{
		Sender: msg.From.Display(),
	}
	if msg.HasDate() {
		content.SentTime = msg.Date.In(time.Local).Format(models.SentTimeLayout)
	}
	if body, ok := ExtractText(msg.Body, true); ok {
		content.Body = body
		content.Preview = createPreview(html2text(body))
	}
	return content
}

// html2text turns HTML (or plain text) into a single line of readable text.
func html2text(s string) string {
	text := strings.NewReplacer(
		"<br>", " ",
		"<br/>", " ",
		"<br />", " ",
		"</p>", " ",
		"</div>", " ",
	).Replace(s)
	text = stripTags(text)
	text = html.UnescapeString(text)
	return strings.Join(strings.Fields(text), " ")
}

const previewLength = 150

func createPreview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewLength {
		return text
	}
	cut := string(runes[:previewLength])
	// Break at a word boundary when there is one.
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		return cut[:idx] + "..."
	}
	return cut + "..."
}
