// Package linkextract finds URLs and message permalinks in message text.
package linkextract

import (
	"net/url"
	"regexp"
	"strings"
)

type LinkType string

const (
	LinkTypeWeb       LinkType = "web"
	LinkTypePermalink LinkType = "permalink"
)

type Link struct {
	URL      string
	Domain   string
	Type     LinkType
	Position int

	// Permalink-specific
	GuildID   string
	ChannelID string
	MessageID string
}

var (
	urlRegex       = regexp.MustCompile(`https?://[^\s<>"{}|\\^\x60\[\]]+`)
	permalinkRegex = regexp.MustCompile(`^https?://(?:ptb\.|canary\.)?discord(?:app)?\.com/channels/(\d+)/(\d+)/(\d+)`)
)

// ExtractLinks returns the distinct http(s) links of text in order of appearance.
func ExtractLinks(text string) []Link {
	matches := urlRegex.FindAllStringIndex(text, -1)

	var links []Link

	seen := make(map[string]bool)

	for _, match := range matches {
		rawURL := strings.TrimRight(text[match[0]:match[1]], ".,;:!?)>*_~|")
		normalized := normalizeURL(rawURL)

		if normalized == "" {
			continue
		}

		if seen[normalized] {
			continue
		}

		seen[normalized] = true

		link := Link{
			URL:      normalized,
			Domain:   extractDomain(normalized),
			Type:     LinkTypeWeb,
			Position: match[0],
		}

		parsePermalink(&link)

		links = append(links, link)
	}

	return links
}

// Permalinks returns only the message permalinks of text.
func Permalinks(text string) []Link {
	var out []Link

	for _, l := range ExtractLinks(text) {
		if l.Type == LinkTypePermalink {
			out = append(out, l)
		}
	}

	return out
}

func parsePermalink(link *Link) {
	m := permalinkRegex.FindStringSubmatch(link.URL)
	if m == nil {
		return
	}

	link.Type = LinkTypePermalink
	link.GuildID = m[1]
	link.ChannelID = m[2]
	link.MessageID = m[3]
}

func extractDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	return strings.ToLower(u.Host)
}

func normalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}

	return raw
}
