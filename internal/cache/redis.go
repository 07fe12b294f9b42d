package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"pix-server/internal/models"
	"pix-server/internal/utils"
)

const AccountInfoTTL = 60 * time.Second

// RedisCache holds read-only account snapshots. Entries are deleted after
// every committed change to the account, so a hit is never older than the
// last commit.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(addr string) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	return &RedisCache{client: client, ttl: AccountInfoTTL}
}

func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

// GetAccount returns the cached snapshot. Misses and cache failures both
// report false; callers fall back to storage.
func (r *RedisCache) GetAccount(ctx context.Context, cpf string) (*models.Account, bool) {
	data, err := r.client.Get(ctx, AccountInfoKey(cpf)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			utils.LogWarning("Cache", "Get %s failed: %v", cpf, err)
		}
		return nil, false
	}

	var account models.Account
	if err := json.Unmarshal(data, &account); err != nil {
		utils.LogWarning("Cache", "Dropping unreadable snapshot of %s: %v", cpf, err)
		_ = r.client.Del(ctx, AccountInfoKey(cpf)).Err()
		return nil, false
	}
	return &account, true
}

func (r *RedisCache) SetAccount(ctx context.Context, account *models.Account) {
	data, err := json.Marshal(account)
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, AccountInfoKey(account.CPF), data, r.ttl).Err(); err != nil {
		utils.LogWarning("Cache", "Set %s failed: %v", account.CPF, err)
	}
}

func (r *RedisCache) InvalidateAccounts(ctx context.Context, cpfs ...string) {
	if len(cpfs) == 0 {
		return
	}
	keys := make([]string, 0, len(cpfs))
	for _, cpf := range cpfs {
		keys = append(keys, AccountInfoKey(cpf))
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		utils.LogWarning("Cache", "Invalidate %v failed: %v", cpfs, err)
		return
	}
	utils.LogDebug("Cache", "Invalidated snapshots of %v", cpfs)
}

func AccountInfoKey(cpf string) string {
	return "account:info:" + cpf
}
