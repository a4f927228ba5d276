package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pauljones0/epic-free-games-bot/internal/catalog"
	"github.com/pauljones0/epic-free-games-bot/internal/extractor"
	"github.com/pauljones0/epic-free-games-bot/internal/metrics"
	"github.com/pauljones0/epic-free-games-bot/internal/models"
	"github.com/pauljones0/epic-free-games-bot/internal/validator"
)

// existenceCheckLimit bounds concurrent store reads within one run.
const existenceCheckLimit = 4

type Processor interface {
	Run(ctx context.Context, now time.Time) ([]models.Promotion, error)
}

type GameProcessor struct {
	catalog   catalog.Fetcher
	store     PromotionStore
	validator *validator.Validator
	metrics   *metrics.Registry
}

func New(c catalog.Fetcher, store PromotionStore, v *validator.Validator, m *metrics.Registry) *GameProcessor {
	if v == nil {
		v = validator.New()
	}
	if m == nil {
		m = metrics.NewRegistry()
	}
	return &GameProcessor{
		catalog:   c,
		store:     store,
		validator: v,
		metrics:   m,
	}
}

// Run fetches the catalog, extracts the promotions active at now and stores
// the ones not seen before. It returns the newly stored promotions in the
// order the upstream listed them.
//
// Any store failure aborts the run with ErrPersistence. Promotions written
// before the failure stay written and are returned alongside the error so the
// caller can still announce them; each write is an independent atomic create.
func (p *GameProcessor) Run(ctx context.Context, now time.Time) ([]models.Promotion, error) {
	elements, err := p.catalog.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch catalog: %w", err)
	}
	p.metrics.ElementsFetched.Add(float64(len(elements)))

	var candidates []models.Promotion
	seen := make(map[string]bool)
	for _, elem := range elements {
		promo, ok := extractor.Extract(elem, now)
		if !ok {
			continue
		}
		if err := p.validator.ValidatePromotion(promo); err != nil {
			slog.Warn("Skipping invalid promotion", "error", err)
			continue
		}
		key := promo.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		candidates = append(candidates, *promo)
	}
	slog.Info("Extracted active promotions", "elements", len(elements), "active", len(candidates))

	exists, err := p.checkExisting(ctx, candidates)
	if err != nil {
		return nil, err
	}

	newPromos := make([]models.Promotion, 0, len(candidates))
	for i, promo := range candidates {
		if exists[i] {
			p.metrics.PromotionsSkipped.Inc()
			continue
		}
		if err := ctx.Err(); err != nil {
			return newPromos, fmt.Errorf("run cancelled after %d new promotions: %w", len(newPromos), err)
		}

		key := promo.Key()
		err := p.store.Put(ctx, key, promo)
		if errors.Is(err, models.ErrPromotionExists) {
			// Another run stored it between the check and the write.
			slog.Info("Promotion stored concurrently, skipping", "key", key)
			p.metrics.PromotionsSkipped.Inc()
			continue
		}
		if err != nil {
			return newPromos, fmt.Errorf("%w: storing %s: %v", models.ErrPersistence, key, err)
		}

		slog.Info("New promotion stored", "title", promo.Title, "key", key)
		p.metrics.PromotionsStored.Inc()
		newPromos = append(newPromos, promo)
	}

	return newPromos, nil
}

// checkExisting runs the existence checks concurrently. Results are indexed
// like candidates so the caller keeps upstream order.
func (p *GameProcessor) checkExisting(ctx context.Context, candidates []models.Promotion) ([]bool, error) {
	exists := make([]bool, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(existenceCheckLimit)

	for i := range candidates {
		i := i
		key := candidates[i].Key()
		g.Go(func() error {
			ok, err := p.store.Exists(gctx, key)
			if err != nil {
				return fmt.Errorf("%w: checking %s: %v", models.ErrPersistence, key, err)
			}
			exists[i] = ok
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return exists, nil
}
