package corpus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/verity-rag/verity/internal/domain"
)

// scanBatch is the SCAN COUNT hint per round trip.
const scanBatch = 512

// RedisConfig holds connection parameters for a Redis snapshot source.
type RedisConfig struct {
	Addrs     []string
	Username  string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisSource loads the corpus from Redis, where the ingestion process
// publishes one JSON record per document under KeyPrefix.
type RedisSource struct {
	client rueidis.Client
	prefix string
}

// NewRedisSource connects to Redis and creates a snapshot source.
func NewRedisSource(cfg RedisConfig) (*RedisSource, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create redis client: %w", err)
	}

	return &RedisSource{client: client, prefix: cfg.KeyPrefix}, nil
}

// Ping checks connectivity.
func (s *RedisSource) Ping(ctx context.Context) error {
	cmd := s.client.B().Ping().Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Load SCANs the key prefix and JSON.GETs every record.
func (s *RedisSource) Load(ctx context.Context) ([]domain.Document, error) {
	var docs []domain.Document

	var cursor uint64
	for {
		cmd := s.client.B().Scan().Cursor(cursor).Match(s.prefix + "*").Count(scanBatch).Build()
		entry, err := s.client.Do(ctx, cmd).AsScanEntry()
		if err != nil {
			return nil, fmt.Errorf("%w: scan %s*: %w", domain.ErrCorpusUnreadable, s.prefix, err)
		}

		for _, key := range entry.Elements {
			doc, err := s.loadOne(ctx, key)
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
		}

		cursor = entry.Cursor
		if cursor == 0 {
			break
		}
	}

	return docs, nil
}

// Close shuts down the client. Call after Load — the source is not needed
// once the index is built.
func (s *RedisSource) Close() {
	s.client.Close()
}

func (s *RedisSource) loadOne(ctx context.Context, key string) (domain.Document, error) {
	cmd := s.client.B().Arbitrary("JSON.GET").Keys(key).Build()
	raw, err := s.client.Do(ctx, cmd).ToString()
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: get %s: %w", domain.ErrCorpusUnreadable, key, err)
	}

	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return domain.Document{}, fmt.Errorf("%w: decode %s: %w", domain.ErrCorpusUnreadable, key, err)
	}

	return rec.toDocument()
}
