// Package extractor turns raw catalog elements into normalized promotions.
//
// Every optional upstream field has its own fallback function so each default
// can be checked in isolation. Null and absent are treated alike; an explicit
// empty string or zero is kept unless noted otherwise.
package extractor

import (
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/pauljones0/epic-free-games-bot/internal/models"
)

const (
	storeProductURL = "https://store.epicgames.com/p/"
	wideImageType   = "OfferImageWide"
	defaultCurrency = "USD"
)

// OfferWindow is the first promotional offer window of a catalog element.
type OfferWindow struct {
	StartDate string
	EndDate   string
	Start     time.Time
	End       time.Time
}

// Contains reports whether now lies within [Start, End].
func (w OfferWindow) Contains(now time.Time) bool {
	return !now.Before(w.Start) && !now.After(w.End)
}

// Extract returns the promotion described by elem if it is currently active
// at now. Elements without a title, without an offer window, or whose window
// does not contain now are not promotions.
func Extract(elem gjson.Result, now time.Time) (*models.Promotion, bool) {
	title := Title(elem)
	if title == "" {
		return nil, false
	}

	window, ok := FirstOfferWindow(elem)
	if !ok || !window.Contains(now) {
		return nil, false
	}

	return &models.Promotion{
		ID:            elem.Get("id").String(),
		Title:         title,
		Description:   Description(elem),
		ImageURL:      ImageURL(elem),
		URL:           StoreURL(elem),
		StartDate:     window.StartDate,
		EndDate:       window.EndDate,
		OriginalPrice: Price(elem, "originalPrice"),
		DiscountPrice: Price(elem, "discountPrice"),
		Currency:      Currency(elem),
	}, true
}

// Title returns the element title, or "" if it is absent or blank.
func Title(elem gjson.Result) string {
	title := elem.Get("title").String()
	if strings.TrimSpace(title) == "" {
		return ""
	}
	return title
}

// FirstOfferWindow reads promotions.promotionalOffers[0].promotionalOffers[0].
// Only the first inner window of the first outer group is considered.
func FirstOfferWindow(elem gjson.Result) (OfferWindow, bool) {
	offer := elem.Get("promotions.promotionalOffers.0.promotionalOffers.0")
	if !offer.IsObject() {
		return OfferWindow{}, false
	}

	startRaw := offer.Get("startDate").String()
	endRaw := offer.Get("endDate").String()
	start, err := time.Parse(time.RFC3339, startRaw)
	if err != nil {
		return OfferWindow{}, false
	}
	end, err := time.Parse(time.RFC3339, endRaw)
	if err != nil {
		return OfferWindow{}, false
	}

	return OfferWindow{StartDate: startRaw, EndDate: endRaw, Start: start, End: end}, true
}

// StoreURL prefers productSlug, then the pageSlug of the first offer mapping.
// Empty slugs fall through; with neither present the URL is "".
func StoreURL(elem gjson.Result) string {
	if slug := elem.Get("productSlug").String(); slug != "" {
		return storeProductURL + slug
	}
	if slug := elem.Get("offerMappings.0.pageSlug").String(); slug != "" {
		return storeProductURL + slug
	}
	return ""
}

// ImageURL returns the url of the first "OfferImageWide" key image. When that
// entry is missing, or has no url, the first key image's url is used instead.
func ImageURL(elem gjson.Result) *string {
	images := elem.Get("keyImages")
	if !images.IsArray() {
		return nil
	}

	var wide gjson.Result
	images.ForEach(func(_, img gjson.Result) bool {
		if img.Get("type").String() == wideImageType {
			wide = img
			return false
		}
		return true
	})
	if u := optionalString(wide.Get("url")); u != nil {
		return u
	}
	return optionalString(images.Get("0.url"))
}

// Description returns the element description, "" when absent.
func Description(elem gjson.Result) string {
	return elem.Get("description").String()
}

// Currency returns price.totalPrice.currencyCode, "USD" when absent.
func Currency(elem gjson.Result) string {
	if c := optionalString(elem.Get("price.totalPrice.currencyCode")); c != nil {
		return *c
	}
	return defaultCurrency
}

// Price reads price.totalPrice.<field> in currency minor units. Absent or
// non-numeric values yield nil; zero is a real price.
func Price(elem gjson.Result, field string) *int64 {
	v := elem.Get("price.totalPrice." + field)
	if v.Type != gjson.Number {
		return nil
	}
	n := v.Int()
	return &n
}

func optionalString(v gjson.Result) *string {
	if !v.Exists() || v.Type == gjson.Null {
		return nil
	}
	s := v.String()
	return &s
}
