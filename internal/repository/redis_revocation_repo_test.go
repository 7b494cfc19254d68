package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// PostgresRevocationRepo/RedisRevocationRepoがインターフェースを満たすことを検証
func TestRevocationRepos_ImplementInterface(t *testing.T) {
	var _ RevocationRepository = (*PostgresRevocationRepo)(nil)
	var _ RevocationPurger = (*PostgresRevocationRepo)(nil)
	var _ RevocationRepository = (*RedisRevocationRepo)(nil)
}

// 期限切れのクレデンシャルはRedisに書き込まない（rdb=nilでも動作する）
func TestRedisRevocationRepo_Revoke_AlreadyExpired_Skips(t *testing.T) {
	repo := NewRedisRevocationRepo(nil)

	if err := repo.Revoke(t.Context(), "jti-1", time.Now().Add(-time.Minute)); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRevocationKey(t *testing.T) {
	if got := revocationKey("abc"); got != "confportal:revoked:abc" {
		t.Errorf("revocationKey() = %q, want %q", got, "confportal:revoked:abc")
	}
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL is not set")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("failed to parse TEST_REDIS_URL: %v", err)
	}
	rdb := redis.NewClient(opts)
	t.Cleanup(func() { rdb.Close() })
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("failed to connect to redis: %v", err)
	}
	return rdb
}

// 二重失効してもエラーにならず、失効済みのままであることを検証
func TestRedisRevocationRepo_Integration_Idempotent(t *testing.T) {
	rdb := newTestRedis(t)
	repo := NewRedisRevocationRepo(rdb)
	ctx := t.Context()
	jti := uuid.New().String()
	exp := time.Now().Add(time.Hour)

	for i := 0; i < 2; i++ {
		if err := repo.Revoke(ctx, jti, exp); err != nil {
			t.Fatalf("Revoke #%d returned error: %v", i+1, err)
		}
	}

	revoked, err := repo.IsRevoked(ctx, jti)
	if err != nil {
		t.Fatalf("IsRevoked returned error: %v", err)
	}
	if !revoked {
		t.Error("expected token to be revoked")
	}

	ttl, err := rdb.TTL(ctx, revocationKey(jti)).Result()
	if err != nil {
		t.Fatalf("TTL returned error: %v", err)
	}
	if ttl <= 0 || ttl > time.Hour {
		t.Errorf("ttl = %v, want (0, 1h]", ttl)
	}

	other, err := repo.IsRevoked(ctx, uuid.New().String())
	if err != nil {
		t.Fatalf("IsRevoked returned error: %v", err)
	}
	if other {
		t.Error("unrelated token should not be revoked")
	}
}
