// Package credential は署名付き・有効期限付きのクレデンシャル（JWT）の発行と検証を提供する。
// クレデンシャルにはユーザー属性のスナップショットを埋め込み、
// 通常の認可判定でDBを参照しない。
package credential

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hitoshi/confportal/internal/model"
)

// DefaultTTL はクレデンシャルの既定の有効期間。
const DefaultTTL = 24 * time.Hour

// 検証失敗の種別。
var (
	ErrExpired          = errors.New("credential expired")
	ErrMalformed        = errors.New("credential malformed")
	ErrSignatureInvalid = errors.New("credential signature invalid")
)

// Issued は発行したクレデンシャルを表す。
type Issued struct {
	Token     string
	TokenID   string // jti
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Verified は検証済みクレデンシャルの内容を表す。
type Verified struct {
	Snapshot  model.Snapshot
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Issuer はクレデンシャルを発行する。
// ユーザーの状態を変更したサービスが新しいクレデンシャルを返すために使用する。
type Issuer interface {
	Issue(s model.Snapshot) (*Issued, error)
}

// Verifier はクレデンシャルを検証する。
type Verifier interface {
	Verify(token string) (*Verified, error)
}

// Codec はHS256で署名したクレデンシャルを発行・検証する。
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewCodec はCodecを生成する。ttlが0以下の場合はDefaultTTLを使用する。
func NewCodec(secret string, ttl time.Duration) *Codec {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Codec{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// TTL はクレデンシャルの有効期間を返す。
func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// Issue はスナップショットを埋め込んだクレデンシャルを発行する。
// 発行のたびに新しいjtiを採番する。Verifyで拒否される形のスナップショットは発行しない。
func (c *Codec) Issue(s model.Snapshot) (*Issued, error) {
	now := c.now().Truncate(time.Second)
	exp := now.Add(c.ttl)
	jti := uuid.New().String()

	claims := newClaims(s)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        jti,
		Subject:   s.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	if err := claims.validateShape(); err != nil {
		return nil, fmt.Errorf("cannot issue credential: %w", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign credential: %w", err)
	}

	return &Issued{
		Token:     signed,
		TokenID:   jti,
		IssuedAt:  now,
		ExpiresAt: exp,
	}, nil
}

// Verify は署名と有効期限を検証し、埋め込まれたスナップショットを返す。
// DBは参照しない。失効判定は呼び出し側が行う。
func (c *Codec) Verify(tokenString string) (*Verified, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, classify(err)
	}

	return &Verified{
		Snapshot:  claims.snapshot(),
		TokenID:   claims.ID,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// classify はjwtライブラリのエラーを検証失敗の種別に変換する。
// 署名検証は期限検証より先に行われるため、改ざんされた期限切れトークンはErrSignatureInvalidになる。
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpired, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}

// compile-time interface check
var (
	_ Issuer   = (*Codec)(nil)
	_ Verifier = (*Codec)(nil)
)
