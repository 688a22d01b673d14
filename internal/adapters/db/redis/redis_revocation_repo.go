package redis

import (
	"context"
	"strconv"
	"strings"

	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/adapters/db/envelope"
	customErrors "github.com/Miraines/MoonyAndStarry/revocation-service/internal/domain/revocation/errors"
	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/domain/revocation/model"
	"github.com/redis/go-redis/v9"
)

const defaultKey = "revocations"

// RedisRevocationRepo keeps the revocation log in one sorted set scored by
// revoked_at. Every member carries a unique id, so resubmissions are kept.
type RedisRevocationRepo struct {
	client redis.UniversalClient
	key    string
}

func NewRedisRevocationRepo(client redis.UniversalClient, key string) *RedisRevocationRepo {
	key = strings.TrimSpace(key)
	if key == "" {
		key = defaultKey
	}
	return &RedisRevocationRepo{
		client: client,
		key:    key,
	}
}

func (r *RedisRevocationRepo) StoreRevocation(ctx context.Context, rec model.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	member, err := envelope.Marshal(rec)
	if err != nil {
		return err
	}

	z := redis.Z{Score: float64(rec.RevokedAt), Member: member}
	if err := r.client.ZAdd(ctx, r.key, z).Err(); err != nil {
		return customErrors.WrapUnavailable(err, "redis zadd")
	}
	return nil
}

// GetRevocations is a single ZRANGEBYSCORE, so the result is a consistent view
// of the set at the moment redis executed it.
func (r *RedisRevocationRepo) GetRevocations(ctx context.Context, since int64) ([]model.Record, error) {
	members, err := r.client.ZRangeByScore(ctx, r.key, &redis.ZRangeBy{
		Min: strconv.FormatInt(since, 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, customErrors.WrapUnavailable(err, "redis zrangebyscore")
	}

	out := make([]model.Record, 0, len(members))
	for _, m := range members {
		rec, err := envelope.Unmarshal([]byte(m))
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *RedisRevocationRepo) PurgeBefore(ctx context.Context, cutoff int64) (int64, error) {
	n, err := r.client.ZRemRangeByScore(ctx, r.key, "-inf", "("+strconv.FormatInt(cutoff, 10)).Result()
	if err != nil {
		return 0, customErrors.WrapUnavailable(err, "redis zremrangebyscore")
	}
	return n, nil
}

func (r *RedisRevocationRepo) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return customErrors.WrapUnavailable(err, "redis ping")
	}
	return nil
}
