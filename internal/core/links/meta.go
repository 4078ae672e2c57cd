package links

import (
	"bytes"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

const metaOGImage = "og:image"

// extractOGImage returns the og:image of an HTML document, resolved against baseURL.
func extractOGImage(htmlBytes []byte, baseURL string) string {
	doc, err := html.Parse(bytes.NewReader(htmlBytes))
	if err != nil {
		return ""
	}

	var found string

	var traverse func(*html.Node)

	traverse = func(n *html.Node) {
		if found != "" {
			return
		}

		if n.Type == html.ElementNode && n.Data == "meta" {
			if name, content := getMetaAttrs(n); strings.EqualFold(name, metaOGImage) && content != "" {
				found = content
				return
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}

	traverse(doc)

	if found == "" {
		return ""
	}

	return resolveReference(baseURL, found)
}

func getMetaAttrs(n *html.Node) (string, string) {
	var name, content string

	for _, attr := range n.Attr {
		switch strings.ToLower(attr.Key) {
		case "name", "property":
			name = attr.Val
		case "content":
			content = strings.TrimSpace(attr.Val)
		}
	}

	return name, content
}

func resolveReference(baseURL, ref string) string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return ref
	}

	u, err := base.Parse(ref)
	if err != nil {
		return ""
	}

	return u.String()
}
