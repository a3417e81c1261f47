package content

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kwstx/email-agent/internal/storage/sqlite"
	"github.com/kwstx/email-agent/pkg/batch"
	"github.com/kwstx/email-agent/pkg/logger"
)

const (
	crawlUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"
	maxPageBytes   = 2 << 20
)

// Crawler fetches high-signal pages for unscraped companies and stores the
// consolidated text profile.
type Crawler struct {
	store      *sqlite.Store
	httpClient *http.Client
}

func NewCrawler(store *sqlite.Store) *Crawler {
	return &Crawler{
		store: store,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Run crawls every company not yet scraped. A company that yields no content
// is still marked scraped so it is not refetched forever.
func (c *Crawler) Run(ctx context.Context) (*batch.Report, error) {
	report := batch.NewReport("crawl")

	companies, err := c.store.ListUnscrapedCompanies()
	if err != nil {
		return nil, fmt.Errorf("crawl cycle aborted: %w", err)
	}

	for _, company := range companies {
		pages, err := c.ScrapeCompany(ctx, company.Domain)
		if err != nil {
			report.Fail(company.ID, err)
			continue
		}

		company.Content = ConsolidateProfile(pages)
		company.IsScraped = true
		if err := c.store.SaveContent(company); err != nil {
			report.Fail(company.ID, err)
			continue
		}

		if len(pages) == 0 {
			logger.Warn("No content found for company", zap.String("domain", company.Domain))
		}
		report.Ok(company.ID, len(pages) > 0)
	}

	report.Log()
	return report, nil
}

// ScrapeCompany fetches a company's homepage plus the high-signal pages
// linked from it, keyed by page type.
func (c *Crawler) ScrapeCompany(ctx context.Context, domain string) (map[string]string, error) {
	baseURL := "https://" + domain

	logger.Info("Scraping company", zap.String("domain", domain))

	homepage, err := c.fetch(ctx, baseURL)
	if err != nil {
		baseURL = "http://" + domain
		homepage, err = c.fetch(ctx, baseURL)
		if err != nil {
			return nil, fmt.Errorf("could not reach %s: %w", domain, err)
		}
	}

	pages := make(map[string]string)
	if text, err := ExtractText(homepage); err == nil && text != "" {
		pages["homepage"] = text
	}

	links, err := FindSignalLinks(homepage, baseURL)
	if err != nil {
		return pages, nil
	}
	logger.Debug("Signal links found", zap.String("domain", domain), zap.Int("count", len(links)))

	for key, link := range links {
		html, err := c.fetch(ctx, link)
		if err != nil {
			logger.Warn("Failed to fetch signal page",
				zap.String("domain", domain),
				zap.String("page", key),
				zap.Error(err),
			)
			continue
		}
		if text, err := ExtractText(html); err == nil && text != "" {
			pages[key] = text
		}
	}

	return pages, nil
}

func (c *Crawler) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", crawlUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s returned status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	return string(body), nil
}
