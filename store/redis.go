package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/strangelove-ventures/cctp-orchestrator/types"
)

const (
	transferKeyPrefix = "cctp:transfer:"
	transferIndexKey  = "cctp:transfers"
)

// RedisStore keeps each transfer as a JSON string plus a set of known ids.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects using a redis:// URL.
func NewRedisStore(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisStoreFromClient(client), nil
}

func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func transferKey(id string) string {
	return transferKeyPrefix + id
}

func (r *RedisStore) Create(ctx context.Context, st *types.TransferState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	key := transferKey(st.ID)

	// record and index entry go out in one MULTI
	var created *redis.BoolCmd
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		created = pipe.SetNX(ctx, key, data, 0)
		pipe.SAdd(ctx, transferIndexKey, st.ID)
		return nil
	})
	if err != nil {
		// MULTI does not roll back; drop a record the index never saw
		if created != nil && created.Val() {
			if delErr := r.client.Del(context.WithoutCancel(ctx), key).Err(); delErr != nil {
				return fmt.Errorf("%w (cleanup of %s failed: %v)", err, key, delErr)
			}
		}
		return err
	}
	if !created.Val() {
		return types.NewTransferError(types.CodeTransferExists, "transfer %s already exists", st.ID)
	}
	return nil
}

func (r *RedisStore) Load(ctx context.Context, id string) (*types.TransferState, error) {
	data, err := r.client.Get(ctx, transferKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, err
	}
	var st types.TransferState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("corrupt record for transfer %s: %w", id, err)
	}
	return &st, nil
}

func (r *RedisStore) Save(ctx context.Context, st *types.TransferState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	updated, err := r.client.SetXX(ctx, transferKey(st.ID), data, 0).Result()
	if err != nil {
		return err
	}
	if !updated {
		return notFound(st.ID)
	}
	return nil
}

func (r *RedisStore) List(ctx context.Context) ([]*types.TransferState, error) {
	ids, err := r.client.SMembers(ctx, transferIndexKey).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*types.TransferState, 0, len(ids))
	for _, id := range ids {
		st, err := r.Load(ctx, id)
		if errors.Is(err, types.ErrTransferNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	sortByCreated(out)
	return out, nil
}

func (r *RedisStore) DeleteTerminal(ctx context.Context, cutoff time.Time) ([]string, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, st := range all {
		if !st.Stage.Terminal() || !st.Updated.Before(cutoff) {
			continue
		}
		pipe := r.client.TxPipeline()
		pipe.Del(ctx, transferKey(st.ID))
		pipe.SRem(ctx, transferIndexKey, st.ID)
		if _, err := pipe.Exec(ctx); err != nil {
			return ids, err
		}
		ids = append(ids, st.ID)
	}
	return ids, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
