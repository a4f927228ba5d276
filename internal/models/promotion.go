package models

import "errors"

var (
	// ErrPromotionExists is returned when attempting to create a promotion that already exists.
	ErrPromotionExists = errors.New("promotion already exists")

	// ErrUpstreamUnavailable wraps a failed or non-2xx catalog fetch.
	ErrUpstreamUnavailable = errors.New("upstream catalog unavailable")

	// ErrMalformedResponse marks a catalog body that does not have the expected shape.
	ErrMalformedResponse = errors.New("malformed catalog response")

	// ErrPersistence wraps any store read or write failure during a run.
	ErrPersistence = errors.New("promotion store failure")

	// ErrNotification wraps a failed notification send.
	ErrNotification = errors.New("notification failed")
)

// Promotion is one currently-active free-game offer extracted from the catalog.
type Promotion struct {
	ID            string  `firestore:"id" json:"id"`
	Title         string  `firestore:"title" json:"title" validate:"required"`
	Description   string  `firestore:"description" json:"description"`
	ImageURL      *string `firestore:"imageUrl" json:"imageUrl"`
	URL           string  `firestore:"url" json:"url"`
	StartDate     string  `firestore:"startDate" json:"startDate" validate:"required"`
	EndDate       string  `firestore:"endDate" json:"endDate" validate:"required"`
	OriginalPrice *int64  `firestore:"originalPrice" json:"originalPrice"`
	DiscountPrice *int64  `firestore:"discountPrice" json:"discountPrice"`
	Currency      string  `firestore:"currency" json:"currency"`
}

// Key returns the identity key used as the dedupe and storage primary key.
// It is stable for a promotion across fetches within its active window.
func (p Promotion) Key() string {
	return IdentityKey(p.Title, p.StartDate)
}

func IdentityKey(title, startDate string) string {
	return title + "-" + startDate
}
