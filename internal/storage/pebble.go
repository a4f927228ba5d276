package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/pauljones0/epic-free-games-bot/internal/models"
)

// PebbleStore is an embedded promotion store for running without Firestore.
type PebbleStore struct {
	db *pebble.DB
	// mu makes Put an atomic create-if-absent within this process.
	mu sync.Mutex
}

func NewPebbleStore(dir string) (*PebbleStore, error) {
	db, err := pebble.Open(filepath.Clean(dir), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return &PebbleStore{db: db}, nil
}

func (p *PebbleStore) Close() error { return p.db.Close() }

func (p *PebbleStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, closer, err := p.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("pebble get %s: %w", key, err)
	}
	_ = closer.Close()
	return true, nil
}

func (p *PebbleStore) Put(ctx context.Context, key string, promo models.Promotion) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	val, err := json.Marshal(promo)
	if err != nil {
		return fmt.Errorf("encode promotion %s: %w", key, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	_, closer, err := p.db.Get([]byte(key))
	if err == nil {
		_ = closer.Close()
		return ErrPromotionExists
	}
	if !errors.Is(err, pebble.ErrNotFound) {
		return fmt.Errorf("pebble get %s: %w", key, err)
	}
	if err := p.db.Set([]byte(key), val, pebble.Sync); err != nil {
		return fmt.Errorf("pebble set %s: %w", key, err)
	}
	return nil
}

// List returns up to limit stored promotions, most recent start date first.
func (p *PebbleStore) List(ctx context.Context, limit int) ([]models.Promotion, error) {
	iter, err := p.db.NewIter(nil)
	if err != nil {
		return nil, fmt.Errorf("pebble iter: %w", err)
	}
	defer iter.Close()

	var promos []models.Promotion
	for iter.First(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var promo models.Promotion
		if err := json.Unmarshal(iter.Value(), &promo); err != nil {
			return nil, fmt.Errorf("decode promotion %s: %w", iter.Key(), err)
		}
		promos = append(promos, promo)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("pebble iter: %w", err)
	}

	sort.SliceStable(promos, func(i, j int) bool { return promos[i].StartDate > promos[j].StartDate })
	if limit > 0 && len(promos) > limit {
		promos = promos[:limit]
	}
	return promos, nil
}
