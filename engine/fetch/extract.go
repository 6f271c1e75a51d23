package fetch

import (
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/SiteSageAI/sitesage-mvp/engine/domain"
	"github.com/SiteSageAI/sitesage-mvp/pkg/fn"
)

// Regex extraction is deliberate: it survives the malformed markup real
// sites serve, same trade-off as the scrapers this code descends from.
var (
	reTitle   = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	reMeta    = regexp.MustCompile(`(?is)<meta\s+[^>]*name\s*=\s*["'](?:description|keywords)["'][^>]*content\s*=\s*["']([^"']*)["']`)
	reAnchor  = regexp.MustCompile(`(?is)<a\s[^>]*?href\s*=\s*["']([^"'#][^"']*)["']`)
	reBody    = regexp.MustCompile(`(?is)<body[^>]*>(.*?)</body>`)
	reScript  = regexp.MustCompile(`(?is)<(script|style|noscript)[^>]*>.*?</(script|style|noscript)>`)
	reComment = regexp.MustCompile(`(?s)<!--.*?-->`)
	reTag     = regexp.MustCompile(`(?s)<[^>]*>`)
	reSpace   = regexp.MustCompile(`\s+`)
)

// extractPage pulls title, meta content, body text, and classified links
// out of raw HTML.
func extractPage(pageURL, rawHTML string) domain.Page {
	page := domain.Page{URL: pageURL}

	if m := reTitle.FindStringSubmatch(rawHTML); m != nil {
		page.Title = cleanText(m[1])
	}

	var metaParts []string
	for _, m := range reMeta.FindAllStringSubmatch(rawHTML, -1) {
		if v := cleanText(m[1]); v != "" {
			metaParts = append(metaParts, v)
		}
	}
	page.Meta = strings.Join(metaParts, " ")

	page.Body = extractBodyText(rawHTML)
	page.InternalLinks, page.ExternalLinks = classifyLinks(pageURL, rawHTML)
	return page
}

// extractBodyText strips scripts, comments, and tags from the body element
// (or the whole document when no body element is present).
func extractBodyText(rawHTML string) string {
	section := rawHTML
	if m := reBody.FindStringSubmatch(rawHTML); m != nil {
		section = m[1]
	}
	section = reScript.ReplaceAllString(section, " ")
	section = reComment.ReplaceAllString(section, " ")
	section = reTag.ReplaceAllString(section, " ")
	return cleanText(section)
}

// classifyLinks splits anchor hrefs into internal and external sets.
// An href beginning with "http" is external; a bare "/" is discarded;
// everything else is internal, resolved against the page URL. Both lists
// are deduplicated, first occurrence wins.
func classifyLinks(pageURL, rawHTML string) (internal, external []string) {
	base, baseErr := url.Parse(pageURL)

	for _, m := range reAnchor.FindAllStringSubmatch(rawHTML, -1) {
		href := strings.TrimSpace(m[1])
		switch {
		case href == "" || href == "/":
			// Self-referential noise, drop it.
		case strings.HasPrefix(href, "http"):
			external = append(external, href)
		case strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "tel:"):
			// Not pages.
		default:
			if baseErr == nil {
				if ref, err := url.Parse(href); err == nil {
					internal = append(internal, base.ResolveReference(ref).String())
					continue
				}
			}
			internal = append(internal, href)
		}
	}
	return fn.Unique(internal), fn.Unique(external)
}

func cleanText(s string) string {
	s = html.UnescapeString(s)
	return strings.TrimSpace(reSpace.ReplaceAllString(s, " "))
}
