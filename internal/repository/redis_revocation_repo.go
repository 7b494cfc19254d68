package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// revocationKeyPrefix は失効記録のキー接頭辞。
const revocationKeyPrefix = "confportal:revoked:"

func revocationKey(jti string) string { return revocationKeyPrefix + jti }

// RedisRevocationRepo はRedisを使用した失効台帳。
// 記録はクレデンシャルの残り有効期間をTTLとして自動的に消える。
type RedisRevocationRepo struct {
	rdb redis.Cmdable
	now func() time.Time
}

// NewRedisRevocationRepo はRedisRevocationRepoを生成する。
func NewRedisRevocationRepo(rdb redis.Cmdable) *RedisRevocationRepo {
	return &RedisRevocationRepo{rdb: rdb, now: time.Now}
}

// Revoke はjtiを失効済みとして記録する。
// すでに期限切れのクレデンシャルは検証で拒否されるため記録しない。
func (r *RedisRevocationRepo) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		return nil
	}

	// SETNXで既存の記録を上書きしない
	if err := r.rdb.SetNX(ctx, revocationKey(jti), r.now().UTC().Unix(), ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// IsRevoked はjtiが失効済みかどうかを返す。
func (r *RedisRevocationRepo) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := r.rdb.Exists(ctx, revocationKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check revocation: %w", err)
	}
	return n > 0, nil
}

// compile-time interface check
var _ RevocationRepository = (*RedisRevocationRepo)(nil)
