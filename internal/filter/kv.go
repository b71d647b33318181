package filter

import (
	"context"
	"errors"

	"github.com/go-redis/redis/v8"
)

// ErrNotFound 表示键不存在（"使用配置默认值"是其合法含义）
var ErrNotFound = errors.New("key not found")

// KVStore 抽象的持久 KV 存储（用于在单元测试中替换 Redis）
type KVStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
}

// RedisKVStore 基于 go-redis 的持久 KV 实现（不设 TTL，偏好永不自动过期）
type RedisKVStore struct {
	client *redis.Client
	prefix string
}

// NewRedisKVStore 创建 Redis KV 存储；prefix 用于多面板共用一个实例时隔离键
func NewRedisKVStore(client *redis.Client, prefix string) *RedisKVStore {
	return &RedisKVStore{client: client, prefix: prefix}
}

func (r *RedisKVStore) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, r.prefix+key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", ErrNotFound
		}
		return "", err
	}
	return val, nil
}

func (r *RedisKVStore) Set(ctx context.Context, key string, value string) error {
	return r.client.Set(ctx, r.prefix+key, value, 0).Err()
}

func (r *RedisKVStore) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}
