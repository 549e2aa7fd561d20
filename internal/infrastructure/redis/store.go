package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const maxUpdateRetries = 5

var errConflict = errors.New("concurrent modification")

// reader is what lookups need from either a client or a WATCH transaction.
type reader interface {
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
}

// jsonStore keeps one JSON document per key under prefix:kind:id and a set
// prefix:kind:ids of every stored id.
type jsonStore[T any] struct {
	client *Client
	prefix string
	kind   string
}

func (s jsonStore[T]) key(id string) string {
	return s.prefix + ":" + s.kind + ":" + id
}

func (s jsonStore[T]) idsKey() string {
	return s.prefix + ":" + s.kind + ":ids"
}

func (s jsonStore[T]) indexKey(name, value string) string {
	return s.prefix + ":" + s.kind + ":by-" + name + ":" + value
}

func (s jsonStore[T]) load(ctx context.Context, id string) (*T, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s %q: %w", s.kind, id, err)
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("unmarshal %s %q: %w", s.kind, id, err)
	}
	return &v, nil
}

func (s jsonStore[T]) loadMany(ctx context.Context, r reader, ids []string) ([]*T, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}

	values, err := r.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load %s batch: %w", s.kind, err)
	}

	out := make([]*T, 0, len(values))
	for i, raw := range values {
		str, ok := raw.(string)
		if !ok {
			continue
		}
		var v T
		if err := json.Unmarshal([]byte(str), &v); err != nil {
			return nil, fmt.Errorf("unmarshal %s %q: %w", s.kind, ids[i], err)
		}
		out = append(out, &v)
	}
	return out, nil
}

func (s jsonStore[T]) all(ctx context.Context) ([]*T, error) {
	ids, err := s.client.SMembers(ctx, s.idsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list %s ids: %w", s.kind, err)
	}
	return s.loadMany(ctx, s.client, ids)
}

func (s jsonStore[T]) indexed(ctx context.Context, r reader, name, value string) ([]*T, error) {
	ids, err := r.SMembers(ctx, s.indexKey(name, value)).Result()
	if err != nil {
		return nil, fmt.Errorf("list %s by %s: %w", s.kind, name, err)
	}
	return s.loadMany(ctx, r, ids)
}

// insert writes a document that must not exist yet. The document key and the
// index keys are watched, so check sees the same index contents the write
// lands on; a concurrent insert into one of those indexes forces a retry.
// An existing id returns duplicate.
func (s jsonStore[T]) insert(ctx context.Context, id string, v *T, indexes map[string]string, duplicate error, check func(r reader) error) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s %q: %w", s.kind, id, err)
	}

	key := s.key(id)
	watched := []string{key}
	for name, value := range indexes {
		watched = append(watched, s.indexKey(name, value))
	}

	txf := func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: %s %s", duplicate, s.kind, id)
		}
		if check != nil {
			if err := check(tx); err != nil {
				return err
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.SAdd(ctx, s.idsKey(), id)
			for name, value := range indexes {
				pipe.SAdd(ctx, s.indexKey(name, value), id)
			}
			return nil
		})
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := s.client.Watch(ctx, txf, watched...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("insert %s %q: %w", s.kind, id, errConflict)
}

// save overwrites v and registers id in the id set and the given indexes.
func (s jsonStore[T]) save(ctx context.Context, id string, v *T, indexes map[string]string) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s %q: %w", s.kind, id, err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(id), data, 0)
		pipe.SAdd(ctx, s.idsKey(), id)
		for name, value := range indexes {
			pipe.SAdd(ctx, s.indexKey(name, value), id)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save %s %q: %w", s.kind, id, err)
	}
	return nil
}

// update runs fn against the stored document under WATCH, retrying when a
// concurrent writer touched the key. notFound is returned for a missing id.
func (s jsonStore[T]) update(ctx context.Context, id string, notFound error, fn func(*T) error) (*T, error) {
	key := s.key(id)

	var result *T
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("%w: %s", notFound, id)
		}
		if err != nil {
			return err
		}

		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("unmarshal %s %q: %w", s.kind, id, err)
		}
		if err := fn(&v); err != nil {
			return err
		}

		data, err := json.Marshal(&v)
		if err != nil {
			return fmt.Errorf("marshal %s %q: %w", s.kind, id, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		if err != nil {
			return err
		}
		result = &v
		return nil
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	return nil, fmt.Errorf("update %s %q: %w", s.kind, id, errConflict)
}

func (s jsonStore[T]) delete(ctx context.Context, id string, indexes map[string]string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(id))
		pipe.SRem(ctx, s.idsKey(), id)
		for name, value := range indexes {
			pipe.SRem(ctx, s.indexKey(name, value), id)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete %s %q: %w", s.kind, id, err)
	}
	return nil
}
