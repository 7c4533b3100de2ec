package linkpreview

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/escrow-storefront/backend/internal/apperr"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxImages = 8

// Preview is what a product page says about itself through Open Graph and
// product meta tags.
type Preview struct {
	URL         string           `json:"url"`
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	SiteName    string           `json:"site_name,omitempty"`
	Images      []string         `json:"images"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Currency    string           `json:"currency,omitempty"`
}

type Fetcher struct {
	httpClient *http.Client
	log        *zap.Logger
	maxRetries int
}

func NewFetcher(timeoutMS, maxRetries int, log *zap.Logger) *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{
			Timeout: time.Duration(timeoutMS) * time.Millisecond,
		},
		log:        log,
		maxRetries: maxRetries,
	}
}

// Fetch downloads rawURL and extracts its preview.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Preview, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, apperr.Validation("url must be an absolute http(s) link")
	}

	var doc *goquery.Document
	var lastErr error

	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")

		resp, err := f.httpClient.Do(req)
		if err != nil {
			lastErr = err
			time.Sleep(time.Duration(attempt+1) * 500 * time.Millisecond)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			lastErr = fmt.Errorf("HTTP %d for %s", resp.StatusCode, u)
			if resp.StatusCode == http.StatusNotFound {
				break
			}
			time.Sleep(time.Duration(attempt+1) * 500 * time.Millisecond)
			continue
		}

		doc, err = goquery.NewDocumentFromReader(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		lastErr = nil
		break
	}

	if lastErr != nil {
		f.log.Warn("product page fetch failed", zap.String("url", u.String()), zap.Error(lastErr))
		return nil, apperr.Wrap(apperr.CodeValidation, "could not fetch product page", lastErr)
	}

	p := Parse(doc, u)
	if p.Title == "" {
		return nil, apperr.Validation("page has no title to import")
	}
	return p, nil
}

// Parse extracts a preview from an already loaded document. base resolves
// relative image links.
func Parse(doc *goquery.Document, base *url.URL) *Preview {
	p := &Preview{URL: base.String(), Images: []string{}}

	meta := func(keys ...string) string {
		for _, k := range keys {
			sel := fmt.Sprintf(`meta[property=%q], meta[name=%q], meta[itemprop=%q]`, k, k, k)
			if v, ok := doc.Find(sel).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
		return ""
	}

	p.Title = meta("og:title", "twitter:title")
	if p.Title == "" {
		p.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	p.Description = meta("og:description", "twitter:description", "description")
	p.SiteName = meta("og:site_name")

	seen := map[string]bool{}
	doc.Find(`meta[property="og:image"], meta[property="og:image:url"], meta[name="twitter:image"]`).Each(func(_ int, s *goquery.Selection) {
		v, _ := s.Attr("content")
		img := resolve(base, v)
		if img == "" || seen[img] || len(p.Images) >= maxImages {
			return
		}
		seen[img] = true
		p.Images = append(p.Images, img)
	})

	if price, ok := ParsePrice(meta("product:price:amount", "og:price:amount", "price")); ok {
		p.Price = &price
	}
	p.Currency = strings.ToUpper(meta("product:price:currency", "og:price:currency", "priceCurrency"))

	return p
}

func resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(u)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	return abs.String()
}

var priceChars = regexp.MustCompile(`[^0-9.,]`)

// ParsePrice reads prices such as "1,499.00", "KES 2500" or "1.499,00".
func ParsePrice(text string) (decimal.Decimal, bool) {
	s := priceChars.ReplaceAllString(strings.TrimSpace(text), "")
	if s == "" {
		return decimal.Zero, false
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastComma > lastDot && len(s)-lastComma-1 == 2:
		// comma as decimal separator
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	default:
		s = strings.ReplaceAll(s, ",", "")
	}
	if strings.Count(s, ".") > 1 {
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsPositive() {
		return decimal.Zero, false
	}
	return d.Round(2), true
}
