package extractor

import (
	"testing"
	"time"

	"github.com/tidwall/gjson"
)

var now = time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)

const activeWindow = `"promotions":{"promotionalOffers":[{"promotionalOffers":[
	{"startDate":"2024-01-01T00:00:00Z","endDate":"2024-01-08T00:00:00Z"}]}]}`

func element(t *testing.T, body string) gjson.Result {
	t.Helper()
	if !gjson.Valid(body) {
		t.Fatalf("invalid test JSON: %s", body)
	}
	return gjson.Parse(body)
}

func TestExtract_Alpha(t *testing.T) {
	elem := element(t, `{
		"title":"Alpha","id":"abc123","description":"A game",
		"productSlug":"alpha-game",
		"keyImages":[{"type":"Thumbnail","url":"https://img/thumb.png"},{"type":"OfferImageWide","url":"https://img/wide.png"}],
		"price":{"totalPrice":{"originalPrice":1999,"discountPrice":0,"currencyCode":"EUR"}},
		`+activeWindow+`}`)

	p, ok := Extract(elem, now)
	if !ok {
		t.Fatal("Extract() should return a promotion for an active window")
	}
	if p.URL != "https://store.epicgames.com/p/alpha-game" {
		t.Errorf("URL = %q", p.URL)
	}
	if p.Key() != "Alpha-2024-01-01T00:00:00Z" {
		t.Errorf("Key() = %q", p.Key())
	}
	if p.ID != "abc123" || p.Description != "A game" {
		t.Errorf("ID/Description = %q/%q", p.ID, p.Description)
	}
	if p.ImageURL == nil || *p.ImageURL != "https://img/wide.png" {
		t.Errorf("ImageURL = %v, want wide image", p.ImageURL)
	}
	if p.StartDate != "2024-01-01T00:00:00Z" || p.EndDate != "2024-01-08T00:00:00Z" {
		t.Errorf("window = %s..%s", p.StartDate, p.EndDate)
	}
	if p.OriginalPrice == nil || *p.OriginalPrice != 1999 {
		t.Errorf("OriginalPrice = %v, want 1999", p.OriginalPrice)
	}
	if p.DiscountPrice == nil || *p.DiscountPrice != 0 {
		t.Errorf("DiscountPrice = %v, want 0", p.DiscountPrice)
	}
	if p.Currency != "EUR" {
		t.Errorf("Currency = %q, want EUR", p.Currency)
	}
}

func TestExtract_Defaults(t *testing.T) {
	elem := element(t, `{"title":"Bare",`+activeWindow+`}`)

	p, ok := Extract(elem, now)
	if !ok {
		t.Fatal("Extract() should return a promotion")
	}
	if p.ID != "" || p.Description != "" || p.URL != "" {
		t.Errorf("expected empty ID/Description/URL, got %q/%q/%q", p.ID, p.Description, p.URL)
	}
	if p.ImageURL != nil {
		t.Errorf("ImageURL = %q, want nil", *p.ImageURL)
	}
	if p.OriginalPrice != nil || p.DiscountPrice != nil {
		t.Error("prices should be nil when absent")
	}
	if p.Currency != "USD" {
		t.Errorf("Currency = %q, want USD", p.Currency)
	}
}

func TestExtract_NotPromoted(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no promotions", `{"title":"X"}`},
		{"null promotions", `{"title":"X","promotions":null}`},
		{"empty outer", `{"title":"X","promotions":{"promotionalOffers":[]}}`},
		{"empty inner", `{"title":"X","promotions":{"promotionalOffers":[{"promotionalOffers":[]}]}}`},
		{"upcoming only", `{"title":"X","promotions":{"promotionalOffers":[],"upcomingPromotionalOffers":[{"promotionalOffers":[
			{"startDate":"2024-01-01T00:00:00Z","endDate":"2024-01-08T00:00:00Z"}]}]}}`},
		{"not yet started", `{"title":"X","promotions":{"promotionalOffers":[{"promotionalOffers":[
			{"startDate":"2024-01-04T00:00:00Z","endDate":"2024-01-08T00:00:00Z"}]}]}}`},
		{"already ended", `{"title":"X","promotions":{"promotionalOffers":[{"promotionalOffers":[
			{"startDate":"2023-12-01T00:00:00Z","endDate":"2024-01-02T23:59:59Z"}]}]}}`},
		{"unparseable dates", `{"title":"X","promotions":{"promotionalOffers":[{"promotionalOffers":[
			{"startDate":"yesterday","endDate":"tomorrow"}]}]}}`},
		{"missing title", `{` + activeWindow + `}`},
		{"blank title", `{"title":"   ",` + activeWindow + `}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if p, ok := Extract(element(t, tt.body), now); ok {
				t.Errorf("Extract() = %+v, want no promotion", p)
			}
		})
	}
}

func TestExtract_OnlyFirstWindowCounts(t *testing.T) {
	// The second inner window is active but only the first is considered.
	elem := element(t, `{"title":"X","promotions":{"promotionalOffers":[{"promotionalOffers":[
		{"startDate":"2023-01-01T00:00:00Z","endDate":"2023-01-08T00:00:00Z"},
		{"startDate":"2024-01-01T00:00:00Z","endDate":"2024-01-08T00:00:00Z"}]}]}}`)
	if _, ok := Extract(elem, now); ok {
		t.Error("Extract() should ignore windows after the first")
	}
}

func TestOfferWindow_ContainsIsInclusive(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	w := OfferWindow{Start: start, End: end}

	tests := []struct {
		at   time.Time
		want bool
	}{
		{start, true},
		{end, true},
		{start.Add(-time.Nanosecond), false},
		{end.Add(time.Nanosecond), false},
	}
	for _, tt := range tests {
		if got := w.Contains(tt.at); got != tt.want {
			t.Errorf("Contains(%s) = %v, want %v", tt.at, got, tt.want)
		}
	}
}

func TestFirstOfferWindow_FractionalSeconds(t *testing.T) {
	elem := element(t, `{"promotions":{"promotionalOffers":[{"promotionalOffers":[
		{"startDate":"2024-01-01T16:00:00.000Z","endDate":"2024-01-08T16:00:00.000Z"}]}]}}`)
	w, ok := FirstOfferWindow(elem)
	if !ok {
		t.Fatal("FirstOfferWindow() should parse millisecond timestamps")
	}
	if w.StartDate != "2024-01-01T16:00:00.000Z" {
		t.Errorf("StartDate should keep the upstream string, got %q", w.StartDate)
	}
	if !w.Start.Equal(time.Date(2024, 1, 1, 16, 0, 0, 0, time.UTC)) {
		t.Errorf("Start = %s", w.Start)
	}
}

func TestStoreURL(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"product slug", `{"productSlug":"alpha-game","offerMappings":[{"pageSlug":"alpha-page"}]}`, "https://store.epicgames.com/p/alpha-game"},
		{"page slug fallback", `{"offerMappings":[{"pageSlug":"alpha-page"}]}`, "https://store.epicgames.com/p/alpha-page"},
		{"empty product slug falls through", `{"productSlug":"","offerMappings":[{"pageSlug":"alpha-page"}]}`, "https://store.epicgames.com/p/alpha-page"},
		{"null product slug falls through", `{"productSlug":null,"offerMappings":[{"pageSlug":"alpha-page"}]}`, "https://store.epicgames.com/p/alpha-page"},
		{"only first mapping", `{"offerMappings":[{"pageSlug":""},{"pageSlug":"second"}]}`, ""},
		{"neither", `{"offerMappings":[]}`, ""},
		{"nothing", `{}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StoreURL(element(t, tt.body)); got != tt.want {
				t.Errorf("StoreURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestImageURL(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string // "" means nil
	}{
		{"wide preferred", `{"keyImages":[{"type":"Thumbnail","url":"a"},{"type":"OfferImageWide","url":"b"}]}`, "b"},
		{"first wide wins", `{"keyImages":[{"type":"OfferImageWide","url":"b"},{"type":"OfferImageWide","url":"c"}]}`, "b"},
		{"generic fallback", `{"keyImages":[{"type":"Thumbnail","url":"a"}]}`, "a"},
		{"wide without url falls back to first", `{"keyImages":[{"type":"Thumbnail","url":"a"},{"type":"OfferImageWide"}]}`, "a"},
		{"empty list", `{"keyImages":[]}`, ""},
		{"absent", `{}`, ""},
		{"first entry without url", `{"keyImages":[{"type":"Thumbnail"}]}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ImageURL(element(t, tt.body))
			switch {
			case tt.want == "" && got != nil:
				t.Errorf("ImageURL() = %q, want nil", *got)
			case tt.want != "" && (got == nil || *got != tt.want):
				t.Errorf("ImageURL() = %v, want %q", got, tt.want)
			}
		})
	}
}

func TestCurrency(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"price":{"totalPrice":{"currencyCode":"GBP"}}}`, "GBP"},
		{`{"price":{"totalPrice":{"currencyCode":null}}}`, "USD"},
		{`{"price":{"totalPrice":{}}}`, "USD"},
		{`{}`, "USD"},
		{`{"price":{"totalPrice":{"currencyCode":""}}}`, ""},
	}
	for _, tt := range tests {
		if got := Currency(element(t, tt.body)); got != tt.want {
			t.Errorf("Currency(%s) = %q, want %q", tt.body, got, tt.want)
		}
	}
}

func TestPrice(t *testing.T) {
	elem := element(t, `{"price":{"totalPrice":{"originalPrice":2499,"discountPrice":0,"fmtPrice":"$24.99","bad":null}}}`)

	if p := Price(elem, "originalPrice"); p == nil || *p != 2499 {
		t.Errorf("originalPrice = %v, want 2499", p)
	}
	if p := Price(elem, "discountPrice"); p == nil || *p != 0 {
		t.Errorf("discountPrice = %v, want 0", p)
	}
	for _, field := range []string{"fmtPrice", "bad", "missing"} {
		if p := Price(elem, field); p != nil {
			t.Errorf("Price(%s) = %d, want nil", field, *p)
		}
	}
}

func TestDescription(t *testing.T) {
	if got := Description(element(t, `{"description":null}`)); got != "" {
		t.Errorf("Description(null) = %q, want empty", got)
	}
	if got := Description(element(t, `{"description":"Fun"}`)); got != "Fun" {
		t.Errorf("Description() = %q, want Fun", got)
	}
}
