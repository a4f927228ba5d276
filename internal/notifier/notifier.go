// Package notifier delivers batches of newly discovered promotions.
package notifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/pauljones0/epic-free-games-bot/internal/models"
)

// Sender sends one notification covering all given promotions.
type Sender interface {
	Send(ctx context.Context, promos []models.Promotion) error
}

// Multi fans a batch out to every configured sender. All senders are tried;
// their failures are joined and wrapped with models.ErrNotification.
type Multi []Sender

func (m Multi) Send(ctx context.Context, promos []models.Promotion) error {
	if len(promos) == 0 {
		return nil
	}
	var errs []error
	for _, s := range m {
		if err := s.Send(ctx, promos); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", models.ErrNotification, errors.Join(errs...))
}
