package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/pauljones0/epic-free-games-bot/internal/models"
)

const DefaultCollection = "games"

// ErrPromotionExists is re-exported from models for callers that only import storage.
var ErrPromotionExists = models.ErrPromotionExists

// record is the persisted document: the promotion fields plus its identity key.
type record struct {
	models.Promotion
	Key string `firestore:"key"`
}

type Client struct {
	client     *firestore.Client
	collection string
}

func New(ctx context.Context, projectID, collection string) (*Client, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("firestore.NewClient: %w", err)
	}
	if collection == "" {
		collection = DefaultCollection
	}
	return &Client{client: client, collection: collection}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// docIDEscaper percent-encodes '%' and '/' so distinct keys keep distinct
// document IDs. Document IDs may not contain '/', which can appear in titles.
var docIDEscaper = strings.NewReplacer("%", "%25", "/", "%2F")

// documentID maps an identity key to a Firestore document ID.
func documentID(key string) string {
	return docIDEscaper.Replace(key)
}

// Exists reports whether a promotion with the given identity key is stored.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	doc, err := c.client.Collection(c.collection).Doc(documentID(key)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return false, nil
		}
		return false, fmt.Errorf("failed to get promotion %s: %w", key, err)
	}
	return doc.Exists(), nil
}

// Put creates the promotion document. Create fails if the document already
// exists, which makes concurrent runs safe without a read-modify-write.
func (c *Client) Put(ctx context.Context, key string, promo models.Promotion) error {
	docRef := c.client.Collection(c.collection).Doc(documentID(key))
	_, err := docRef.Create(ctx, record{Promotion: promo, Key: key})
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return ErrPromotionExists
		}
		return fmt.Errorf("failed to create promotion %s: %w", key, err)
	}
	return nil
}

// List returns up to limit stored promotions, most recent start date first.
func (c *Client) List(ctx context.Context, limit int) ([]models.Promotion, error) {
	iter := c.client.Collection(c.collection).
		OrderBy("startDate", firestore.Desc).
		Limit(limit).
		Documents(ctx)
	defer iter.Stop()

	var promos []models.Promotion
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate promotions: %w", err)
		}
		var rec record
		if err := doc.DataTo(&rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal promotion %s: %w", doc.Ref.ID, err)
		}
		promos = append(promos, rec.Promotion)
	}
	return promos, nil
}
