package redis

import (
	"context"
	"fmt"

	"github.com/apascualco/cinemesh/internal/domain"
	"github.com/apascualco/cinemesh/internal/infrastructure/memory"
)

// SequenceGenerator hands out prefix-NNNN ids from a Redis counter, so every
// process sharing the store draws from the same sequence.
type SequenceGenerator struct {
	client *Client
	key    string
	prefix string
	start  int64
}

var _ domain.IDGenerator = (*SequenceGenerator)(nil)

// NewSequenceGenerator keeps the counter at key. The first id issued is start
// unless the counter already exists.
func NewSequenceGenerator(client *Client, key, prefix string, start int64) *SequenceGenerator {
	return &SequenceGenerator{client: client, key: key, prefix: prefix, start: start}
}

func (g *SequenceGenerator) NextID(ctx context.Context) (string, error) {
	pipe := g.client.TxPipeline()
	pipe.SetNX(ctx, g.key, g.start-1, 0)
	incr := pipe.Incr(ctx, g.key)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("next %s id: %w", g.prefix, err)
	}
	return memory.FormatSequenceID(g.prefix, incr.Val()), nil
}
