// Package content builds the text corpus a company is scored on. The crawler
// visits a company's high-signal pages and the extractor reduces each page to
// clean text; the consolidated profile demarcates pages with "--- KEY ---"
// headers that downstream analysis keys on.
package content

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Page-type patterns matched against internal link paths and anchor text.
// The careers page matters most: it feeds both hiring signals and company
// size estimation.
var signalPatterns = map[string]*regexp.Regexp{
	"docs":     regexp.MustCompile(`(?i)docs|documentation|developer|api`),
	"security": regexp.MustCompile(`(?i)security|trust|compliance|privacy`),
	"blog":     regexp.MustCompile(`(?i)blog|news`),
	"careers":  regexp.MustCompile(`(?i)careers|jobs|hiring`),
	"product":  regexp.MustCompile(`(?i)product|features|solutions|platform`),
	"pricing":  regexp.MustCompile(`(?i)pricing|plans`),
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// ExtractText strips boilerplate elements from an HTML document and returns
// the remaining text with whitespace collapsed.
func ExtractText(html string) (string, error) {
	if html == "" {
		return "", nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("script, style, nav, footer, header").Remove()
	text := doc.Find("body").Text()
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " ")), nil
}

// FindSignalLinks returns one internal URL per page type found in the
// document. The first match per type wins.
func FindSignalLinks(html, baseURL string) (map[string]string, error) {
	links := make(map[string]string)
	if html == "" {
		return links, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %s: %w", baseURL, err)
	}

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		full := base.ResolveReference(ref)
		if full.Host != base.Host {
			return
		}

		path := strings.ToLower(full.Path)
		text := strings.ToLower(a.Text())
		for key, pattern := range signalPatterns {
			if _, seen := links[key]; seen {
				continue
			}
			if pattern.MatchString(path) || pattern.MatchString(text) {
				links[key] = full.String()
			}
		}
	})

	return links, nil
}

// ConsolidateProfile merges per-page text into one corpus. Pages appear in
// deterministic order, homepage first, each under a "--- KEY ---" header.
func ConsolidateProfile(pages map[string]string) string {
	if len(pages) == 0 {
		return ""
	}

	keys := make([]string, 0, len(pages))
	for key := range pages {
		if key != "homepage" {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	if _, ok := pages["homepage"]; ok {
		keys = append([]string{"homepage"}, keys...)
	}

	var b strings.Builder
	for _, key := range keys {
		b.WriteString("--- " + strings.ToUpper(key) + " ---\n")
		b.WriteString(pages[key])
		b.WriteString("\n\n")
	}
	return b.String()
}
