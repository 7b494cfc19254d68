package credential

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hitoshi/confportal/internal/model"
)

// ClaimsVersion はスナップショットのペイロード形式のバージョン。
// 形式を変更した場合はインクリメントし、旧形式は Malformed として拒否する。
const ClaimsVersion = 1

// Claims はクレデンシャルのペイロード。
// 未知のフィールドや必須フィールドの欠落はデコード時にエラーとする。
type Claims struct {
	Version   int      `json:"ver"`
	UserID    string   `json:"uid"`
	FullName  string   `json:"name"`
	Email     string   `json:"email"`
	Role      string   `json:"role"`
	Status    string   `json:"status"`
	Provider  string   `json:"provider"`
	TeamID    string   `json:"team_id,omitempty"`
	TeamName  string   `json:"team_name,omitempty"`
	Interests []string `json:"interests"`
	jwt.RegisteredClaims
}

func newClaims(s model.Snapshot) *Claims {
	return &Claims{
		Version:   ClaimsVersion,
		UserID:    s.ID,
		FullName:  s.FullName,
		Email:     s.Email,
		Role:      string(s.Role),
		Status:    string(s.Status),
		Provider:  s.Provider,
		TeamID:    s.TeamID,
		TeamName:  s.TeamName,
		Interests: s.Interests,
	}
}

func (c *Claims) snapshot() model.Snapshot {
	return model.Snapshot{
		ID:        c.UserID,
		FullName:  c.FullName,
		Email:     c.Email,
		Role:      model.Role(c.Role),
		Status:    model.UserStatus(c.Status),
		Provider:  c.Provider,
		TeamID:    c.TeamID,
		TeamName:  c.TeamName,
		Interests: c.Interests,
	}
}

// UnmarshalJSON は未知のフィールドを拒否してデコードし、必須フィールドを検証する。
func (c *Claims) UnmarshalJSON(data []byte) error {
	type plain Claims
	var p plain

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return fmt.Errorf("invalid claims payload: %w", err)
	}

	decoded := Claims(p)
	if err := decoded.validateShape(); err != nil {
		return err
	}
	*c = decoded
	return nil
}

// validateShape は必須フィールドとバージョンを検証する。
func (c *Claims) validateShape() error {
	if c.Version != ClaimsVersion {
		return fmt.Errorf("unsupported claims version: %d", c.Version)
	}

	required := map[string]string{
		"uid":      c.UserID,
		"sub":      c.Subject,
		"jti":      c.ID,
		"email":    c.Email,
		"role":     c.Role,
		"status":   c.Status,
		"provider": c.Provider,
	}
	for name, v := range required {
		if v == "" {
			return fmt.Errorf("missing required claim: %s", name)
		}
	}

	if c.Subject != c.UserID {
		return fmt.Errorf("subject does not match uid")
	}
	if c.IssuedAt == nil || c.ExpiresAt == nil {
		return fmt.Errorf("missing iat or exp claim")
	}
	return nil
}
