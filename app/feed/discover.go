package feed

import (
	"bytes"
	"mime"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

var feedContentTypes = []string{
	"application/rss+xml",
	"application/atom+xml",
}

var xmlContentTypes = []string{
	"text/xml",
	"application/xml",
}

// IsFeedContent reports whether a response looks like a feed document, judged
// from the Content-Type and, for generic XML or mislabeled responses, the body
// itself.
func IsFeedContent(contentType string, body []byte) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.Split(contentType, ";")[0])
	}
	mediaType = strings.ToLower(mediaType)

	for _, feedCT := range feedContentTypes {
		if mediaType == feedCT {
			return true
		}
	}

	for _, xmlCT := range xmlContentTypes {
		if mediaType == xmlCT {
			return sniffFeedBody(body)
		}
	}

	// Mislabeled feeds (commonly text/html) are still feeds.
	return sniffFeedBody(body)
}

// sniffFeedBody checks the leading bytes for an RSS or Atom root element.
func sniffFeedBody(body []byte) bool {
	checkSize := 4096
	if len(body) < checkSize {
		checkSize = len(body)
	}
	prefix := strings.ToLower(string(body[:checkSize]))

	if strings.Contains(prefix, "<rss") || strings.Contains(prefix, "<rdf:rdf") {
		return true
	}
	return strings.Contains(prefix, "<feed") && strings.Contains(prefix, "http://www.w3.org/2005/atom")
}

// DiscoverFeedURL scans an HTML document for <link rel="alternate"> feed
// references and returns the first one resolved against baseURL. Used when a
// user submits a site URL instead of a direct feed URL.
func DiscoverFeedURL(htmlBody []byte, baseURL string) (string, bool) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", false
	}

	tokenizer := html.NewTokenizer(bytes.NewReader(htmlBody))

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return "", false

		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := tokenizer.TagName()
			tag := string(name)

			// Feed links live in <head>; once the body starts there is
			// nothing left to find.
			if tag == "body" {
				return "", false
			}
			if tag != "link" || !hasAttr {
				continue
			}

			var rel, linkType, href string
			for {
				key, val, more := tokenizer.TagAttr()
				switch strings.ToLower(string(key)) {
				case "rel":
					rel = strings.ToLower(string(val))
				case "type":
					linkType = strings.ToLower(string(val))
				case "href":
					href = string(val)
				}
				if !more {
					break
				}
			}

			if rel != "alternate" || href == "" {
				continue
			}
			if linkType != "application/rss+xml" && linkType != "application/atom+xml" {
				continue
			}

			ref, err := url.Parse(href)
			if err != nil {
				continue
			}
			return base.ResolveReference(ref).String(), true
		}
	}
}
