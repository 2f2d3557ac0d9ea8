package api

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"aliasmail/models"
	"aliasmail/utils"
)

// CodeStrategy pulls a numeric code out of one email template.
type CodeStrategy interface {
	Name() string
	// Applies is the keyword gate, tested against the lower-cased text.
	Applies(lower string) bool
	Extract(text string) (string, bool)
}

// URLStrategy pulls a confirmation link out of text that already passed the URL gate.
type URLStrategy interface {
	Name() string
	Extract(text string) (string, bool)
}

type patternCode struct {
	name    string
	keyword string
	pattern *regexp.Regexp
	group   int
	squash  bool // remove all whitespace from the match
}

func (s patternCode) Name() string { return s.name }

func (s patternCode) Applies(lower string) bool {
	return strings.Contains(lower, s.keyword)
}

func (s patternCode) Extract(text string) (string, bool) {
	m := s.pattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	code := m[s.group]
	if s.squash {
		code = strings.Join(strings.Fields(code), "")
	}
	return code, code != ""
}

// urlChars is what a link may contain in running text or markup.
const urlChars = `[^\s"'<>()\[\]]`

type patternURL struct {
	name    string
	pattern *regexp.Regexp
}

func (s patternURL) Name() string { return s.name }

// Extract returns the first match that is a well-formed absolute http(s) URL, using the
// first capture group when the pattern has one.
func (s patternURL) Extract(text string) (string, bool) {
	group := 0
	if s.pattern.NumSubexp() > 0 {
		group = 1
	}
	for _, m := range s.pattern.FindAllStringSubmatch(text, -1) {
		if u, ok := wellFormedURL(m[group]); ok {
			return u, true
		}
	}
	return "", false
}

func wellFormedURL(raw string) (string, bool) {
	raw = strings.TrimRight(strings.TrimSpace(raw), ".,;:!?*")
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	return raw, true
}

const (
	codeKeyword   = "verification"
	cursorKeyword = "cursor"
	urlKeyword    = "verify email"

	// DefaultProviderURLPattern matches Augment's hosted verification links.
	DefaultProviderURLPattern = `https://[\w.-]*augmentcode\.com/` + urlChars + `*verif` + urlChars + `*`
)

// NewCodeStrategies returns the code strategies in priority order.
func NewCodeStrategies() []CodeStrategy {
	return []CodeStrategy{
		patternCode{
			name:    "generic",
			keyword: codeKeyword,
			pattern: regexp.MustCompile(`\b\d{4,8}\b`),
		},
		patternCode{
			name:    "cursor",
			keyword: cursorKeyword,
			pattern: regexp.MustCompile(`Your one-time code is:\s*([\d\s]+?)(?:\s*---|\.)`),
			group:   1,
			squash:  true,
		},
	}
}

// NewURLStrategies returns the link strategies from most to least specific.
// providerPattern replaces DefaultProviderURLPattern when non-empty.
func NewURLStrategies(providerPattern string) ([]URLStrategy, error) {
	if providerPattern == "" {
		providerPattern = DefaultProviderURLPattern
	}
	provider, err := regexp.Compile(providerPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid provider url pattern: %w", err)
	}

	return []URLStrategy{
		patternURL{
			name:    "markdown",
			pattern: regexp.MustCompile(`(?i)\[verify email\]\(\s*(https?://[^\s)]+)\s*\)`),
		},
		patternURL{name: "provider", pattern: provider},
		patternURL{
			name:    "verify-email-path",
			pattern: regexp.MustCompile(`https?://` + urlChars + `*/verify-email` + urlChars + `*`),
		},
		patternURL{
			name:    "any-verify",
			pattern: regexp.MustCompile(`(?i)https://` + urlChars + `*verify` + urlChars + `*`),
		},
	}, nil
}

// Parser runs the verification heuristics over messages.
type Parser struct {
	codes []CodeStrategy
	urls  []URLStrategy
}

// NewParser builds a Parser with the default strategies.
func NewParser(providerPattern string) (*Parser, error) {
	urls, err := NewURLStrategies(providerPattern)
	if err != nil {
		return nil, err
	}
	return &Parser{codes: NewCodeStrategies(), urls: urls}, nil
}

// CodeFrom applies the first code strategy whose keyword gate matches. A gated strategy
// that finds no digits ends the attempt for this text.
func (p *Parser) CodeFrom(text string) (code, strategy string, ok bool) {
	lower := strings.ToLower(text)
	for _, s := range p.codes {
		if !s.Applies(lower) {
			continue
		}
		code, ok := s.Extract(text)
		return code, s.Name(), ok
	}
	return "", "", false
}

// URLFrom gates on "verify email" and then tries each link strategy in order.
func (p *Parser) URLFrom(text string) (link, strategy string, ok bool) {
	if !strings.Contains(strings.ToLower(text), urlKeyword) {
		return "", "", false
	}
	for _, s := range p.urls {
		if link, ok := s.Extract(text); ok {
			return link, s.Name(), true
		}
	}
	return "", "", false
}

// FindCode scans messages newest first and returns the first code found.
func (p *Parser) FindCode(msgs []models.Message, log *utils.Logger) (string, bool) {
	return scanNewestFirst(msgs, log, p.CodeFrom)
}

// FindURL scans messages newest first and returns the first verification link found.
func (p *Parser) FindURL(msgs []models.Message, log *utils.Logger) (string, bool) {
	return scanNewestFirst(msgs, log, p.URLFrom)
}

// scanNewestFirst feeds each message's plain-preferred text to try until one succeeds.
// Messages without text, without a keyword, or without a match are skipped.
func scanNewestFirst(msgs []models.Message, log *utils.Logger, try func(string) (string, string, bool)) (string, bool) {
	ordered := sortNewestFirst(msgs)
	for i, msg := range ordered {
		text, ok := ExtractText(msg.Body, false)
		if !ok {
			log.Debug("Message %d/%d (uid %d) has no text content, skipping", i+1, len(ordered), msg.UID)
			continue
		}

		result, strategy, ok := try(text)
		if !ok {
			log.Debug("Message %d/%d (uid %d) did not match, skipping", i+1, len(ordered), msg.UID)
			continue
		}

		log.Info("Matched message uid %d with %s strategy", msg.UID, strategy)
		return result, true
	}
	return "", false
}
