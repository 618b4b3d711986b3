package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	domrepo "CreditLens/internal/domain/repository"
)

// headlineCap bounds how many recent headlines are retained per issuer.
const headlineCap = 200

// RedisDocumentStore keeps raw headline text out of the structured stores. It
// is a hand-over boundary: nothing in scoring ever reads it back.
type RedisDocumentStore struct {
	cli    *redis.Client
	prefix string
}

func NewRedisDocumentStore(cli *redis.Client, prefix string) *RedisDocumentStore {
	if prefix == "" {
		prefix = "creditlens"
	}
	return &RedisDocumentStore{cli: cli, prefix: prefix}
}

type headlineDoc struct {
	Headline   string    `json:"headline"`
	ObservedAt time.Time `json:"observed_at"`
}

func (s *RedisDocumentStore) PutHeadline(ctx context.Context, issuerID, headline string, observedAt time.Time) error {
	doc, err := json.Marshal(headlineDoc{Headline: headline, ObservedAt: observedAt.UTC()})
	if err != nil {
		return fmt.Errorf("marshal headline: %w", err)
	}
	key := fmt.Sprintf("%s:docs:headlines:%s", s.prefix, issuerID)
	pipe := s.cli.TxPipeline()
	pipe.LPush(ctx, key, doc)
	pipe.LTrim(ctx, key, 0, headlineCap-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store headline: %w", err)
	}
	return nil
}

var _ domrepo.DocumentStore = (*RedisDocumentStore)(nil)
