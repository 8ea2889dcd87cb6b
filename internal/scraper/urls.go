// internal/scraper/urls.go
package scraper

import (
	"net/url"
	"strings"
)

// NormalizeURL resolves a link found on a page against the page URL:
// protocol-relative links get https, root-relative links get the page's
// scheme and host, and bare relative paths are appended to base.
func NormalizeURL(link, base string) string {
	link = strings.TrimSpace(link)
	if link == "" {
		return ""
	}

	switch {
	case strings.HasPrefix(link, "//"):
		return "https:" + link
	case strings.HasPrefix(link, "/"):
		u, err := url.Parse(base)
		if err != nil || u.Host == "" {
			return link
		}
		return u.Scheme + "://" + u.Host + link
	case !strings.HasPrefix(link, "http"):
		return strings.TrimRight(base, "/") + "/" + link
	}
	return link
}
