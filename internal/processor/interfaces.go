package processor

import (
	"context"

	"github.com/pauljones0/epic-free-games-bot/internal/models"
)

// PromotionStore abstracts the storage layer for promotions.
// Put must be an atomic create-if-absent returning models.ErrPromotionExists
// when the key is already stored.
type PromotionStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	Put(ctx context.Context, key string, promo models.Promotion) error
}

// PromotionNotifier abstracts the notification layer.
type PromotionNotifier interface {
	Send(ctx context.Context, promos []models.Promotion) error
}
