package linkpreview

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/escrow-storefront/backend/internal/apperr"
	"go.uber.org/zap"
)

const productPage = `<!doctype html>
<html><head>
<title>Fallback title</title>
<meta property="og:title" content="Kiondo Basket">
<meta property="og:description" content="Hand-woven sisal basket">
<meta property="og:site_name" content="Craft Market">
<meta property="og:image" content="/img/kiondo-1.jpg">
<meta property="og:image" content="https://cdn.example.com/kiondo-2.jpg">
<meta property="og:image" content="/img/kiondo-1.jpg">
<meta property="product:price:amount" content="2,450.00">
<meta property="product:price:currency" content="kes">
</head><body></body></html>`

func TestParse(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(productPage))
	if err != nil {
		t.Fatal(err)
	}
	base, _ := url.Parse("https://shop.example.com/p/kiondo")

	p := Parse(doc, base)
	if p.Title != "Kiondo Basket" || p.Description != "Hand-woven sisal basket" || p.SiteName != "Craft Market" {
		t.Errorf("unexpected text fields %+v", p)
	}
	want := []string{"https://shop.example.com/img/kiondo-1.jpg", "https://cdn.example.com/kiondo-2.jpg"}
	if len(p.Images) != len(want) {
		t.Fatalf("images = %v, want %v", p.Images, want)
	}
	for i := range want {
		if p.Images[i] != want[i] {
			t.Errorf("images[%d] = %q, want %q", i, p.Images[i], want[i])
		}
	}
	if p.Price == nil || p.Price.String() != "2450" {
		t.Errorf("price = %v, want 2450", p.Price)
	}
	if p.Currency != "KES" {
		t.Errorf("currency = %q, want KES", p.Currency)
	}
}

func TestParseFallsBackToTitleTag(t *testing.T) {
	doc, _ := goquery.NewDocumentFromReader(strings.NewReader(`<html><head><title> Plain page </title></head></html>`))
	base, _ := url.Parse("https://example.com/")
	p := Parse(doc, base)
	if p.Title != "Plain page" {
		t.Errorf("title = %q", p.Title)
	}
	if p.Price != nil || len(p.Images) != 0 {
		t.Errorf("unexpected price or images: %+v", p)
	}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{"1500", "1500", true},
		{"1,499.99", "1499.99", true},
		{"KES 2,500", "2500", true},
		{"1.499,50", "1499.5", true},
		{"$19.999", "20", true},
		{"", "", false},
		{"free", "", false},
		{"0", "", false},
		{"1.2.3", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParsePrice(tt.input)
			if ok != tt.ok {
				t.Fatalf("ParsePrice(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if ok && got.String() != tt.want {
				t.Errorf("ParsePrice(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/product":
			_, _ = w.Write([]byte(productPage))
		case "/empty":
			_, _ = w.Write([]byte(`<html><body>nothing</body></html>`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewFetcher(2000, 0, zap.NewNop())
	ctx := context.Background()

	p, err := f.Fetch(ctx, srv.URL+"/product")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if p.Title != "Kiondo Basket" || p.Images[0] != srv.URL+"/img/kiondo-1.jpg" {
		t.Errorf("unexpected preview %+v", p)
	}

	for _, path := range []string{"/missing", "/empty"} {
		if _, err := f.Fetch(ctx, srv.URL+path); !apperr.HasCode(err, apperr.CodeValidation) {
			t.Errorf("%s: expected VALIDATION_ERROR, got %v", path, err)
		}
	}
	if _, err := f.Fetch(ctx, "ftp://example.com/x"); !apperr.HasCode(err, apperr.CodeValidation) {
		t.Errorf("expected VALIDATION_ERROR for ftp url, got %v", err)
	}
}
