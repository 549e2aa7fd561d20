package memory

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/apascualco/cinemesh/internal/domain"
	"github.com/google/uuid"
)

// SequenceGenerator yields prefix-NNNN ids from a process-local counter,
// e.g. bk-1003. Stores shared between processes need a shared counter.
type SequenceGenerator struct {
	prefix string
	next   atomic.Int64
}

var _ domain.IDGenerator = (*SequenceGenerator)(nil)

func NewSequenceGenerator(prefix string, start int64) *SequenceGenerator {
	g := &SequenceGenerator{prefix: prefix}
	g.next.Store(start)
	return g
}

func (g *SequenceGenerator) NextID(context.Context) (string, error) {
	n := g.next.Add(1) - 1
	return FormatSequenceID(g.prefix, n), nil
}

func FormatSequenceID(prefix string, n int64) string {
	return fmt.Sprintf("%s-%04d", prefix, n)
}

// UUIDGenerator yields prefix-<uuid> ids, safe across replicas sharing a store.
type UUIDGenerator struct {
	prefix string
}

func NewUUIDGenerator(prefix string) *UUIDGenerator {
	return &UUIDGenerator{prefix: prefix}
}

func (g *UUIDGenerator) NextID(context.Context) (string, error) {
	return g.prefix + "-" + uuid.NewString(), nil
}

const (
	IDStrategySequence = "sequence"
	IDStrategyUUID     = "uuid"
)

// NewIDGenerator picks the generator for strategy; anything but "uuid" is a sequence.
func NewIDGenerator(strategy, prefix string, start int64) domain.IDGenerator {
	if strategy == IDStrategyUUID {
		return NewUUIDGenerator(prefix)
	}
	return NewSequenceGenerator(prefix, start)
}
