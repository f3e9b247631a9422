package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/zenwatch/zenwatch/internal/models"
	"github.com/zenwatch/zenwatch/pkg/logger"
)

// Selectors are the CSS paths for the fields extracted from a listing page.
type Selectors struct {
	Title         string
	Price         string
	BidCount      string
	TimeRemaining string
	Image         string
}

// DefaultSelectors match the proxy marketplace's auction detail page.
func DefaultSelectors() Selectors {
	return Selectors{
		Title:         "#itemTitle, h1.product-title",
		Price:         "#lblPriceY, .auction-price .amount",
		BidCount:      "#bidNum, .auction-bids .amount",
		TimeRemaining: "#lblTimeLeft, .auction-time-left",
		Image:         "#imgPreview, .product-gallery img",
	}
}

// Scraper fetches auction pages and extracts the tracked field set.
type Scraper struct {
	logger    *logger.Logger
	client    *http.Client
	hosts     []string
	selectors Selectors
}

// NewScraper creates a scraper restricted to the given marketplace hosts.
func NewScraper(hosts []string, timeout time.Duration, logger *logger.Logger) models.ScraperService {
	return &Scraper{
		logger:    logger,
		client:    &http.Client{Timeout: timeout},
		hosts:     hosts,
		selectors: DefaultSelectors(),
	}
}

// Scrape fetches one auction page. The URL must belong to a configured
// marketplace host; anything else is rejected before a network call.
// There is no retry: failures propagate and the caller decides whether
// to keep stale data.
func (s *Scraper) Scrape(ctx context.Context, rawURL string) (*models.ScrapedAuction, error) {
	if err := s.checkHost(rawURL); err != nil {
		return nil, &models.ScrapeError{URL: rawURL, Stage: "fetch", Err: err}
	}

	doc, err := s.fetch(ctx, rawURL)
	if err != nil {
		return nil, &models.ScrapeError{URL: rawURL, Stage: "fetch", Err: err}
	}

	auction, err := s.extract(doc)
	if err != nil {
		return nil, &models.ScrapeError{URL: rawURL, Stage: "parse", Err: err}
	}

	s.logger.Debug("Scraped auction page ", "url ", rawURL, " price ", auction.PriceJPY)
	return auction, nil
}

func (s *Scraper) checkHost(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return models.ErrUnsupportedURL
	}
	host := strings.ToLower(u.Hostname())
	for _, allowed := range s.hosts {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return nil
		}
	}
	return models.ErrUnsupportedURL
}

func (s *Scraper) fetch(ctx context.Context, rawURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; zenwatch/1.0)")
	req.Header.Set("Accept-Language", "ja,en;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	return doc, nil
}

// extract pulls the tracked fields out of the document. Title and price are
// required; bid count, countdown text and image degrade to zero values when
// the page omits them.
func (s *Scraper) extract(doc *goquery.Document) (*models.ScrapedAuction, error) {
	auction := &models.ScrapedAuction{}

	title := strings.TrimSpace(doc.Find(s.selectors.Title).First().Text())
	if title == "" {
		return nil, fmt.Errorf("title node missing")
	}
	auction.Name = title

	priceNode := doc.Find(s.selectors.Price).First()
	if priceNode.Length() == 0 {
		return nil, fmt.Errorf("price node missing")
	}
	price, err := parsePrice(priceNode.Text())
	if err != nil {
		return nil, fmt.Errorf("price text %q: %w", priceNode.Text(), err)
	}
	auction.PriceJPY = price

	auction.BidCount = parseCount(doc.Find(s.selectors.BidCount).First().Text())
	auction.TimeRemaining = strings.TrimSpace(doc.Find(s.selectors.TimeRemaining).First().Text())

	img := doc.Find(s.selectors.Image).First()
	if src, exists := img.Attr("src"); exists {
		auction.ImageURL = src
	} else if src, exists := img.Attr("data-src"); exists {
		// lazy-loaded gallery images
		auction.ImageURL = src
	}

	return auction, nil
}

// parsePrice coerces a price string like "1,500 yen" or "¥1500" to integer JPY.
func parsePrice(text string) (int64, error) {
	digits := keepDigits(text)
	if digits == "" {
		return 0, fmt.Errorf("no digits in price text")
	}
	return strconv.ParseInt(digits, 10, 64)
}

// parseCount coerces a bid-count string to an int, zero when absent.
func parseCount(text string) int {
	digits := keepDigits(text)
	if digits == "" {
		return 0
	}
	n, _ := strconv.Atoi(digits)
	return n
}

func keepDigits(text string) string {
	var b strings.Builder
	for _, r := range text {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
