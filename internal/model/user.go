// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーのロールを表す。
type Role string

const (
	RoleRegularUser Role = "Regular User"
	RoleMentor      Role = "Mentor"
	RoleAdmin       Role = "admin"
)

// Valid は定義済みのロールかどうかを返す。
func (r Role) Valid() bool {
	switch r {
	case RoleRegularUser, RoleMentor, RoleAdmin:
		return true
	}
	return false
}

// UserStatus はユーザーのライフサイクル状態を表す。
type UserStatus string

const (
	UserStatusPending  UserStatus = "pending"
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
	UserStatusRejected UserStatus = "rejected"
)

// Valid は定義済みの状態かどうかを返す。
func (s UserStatus) Valid() bool {
	switch s {
	case UserStatusPending, UserStatusActive, UserStatusInactive, UserStatusRejected:
		return true
	}
	return false
}

// ProviderEmail はメールアドレスとパスワードで登録したアカウントのプロバイダータグ。
const ProviderEmail = "email"

// User はポータルの利用者（Identity）を表す。
// 外部IdPのみで登録したユーザーはPasswordHashを持たない。
type User struct {
	ID           string
	FullName     string
	Email        string
	PasswordHash string
	Role         Role
	Status       UserStatus
	Provider     string
	ProviderID   string // 外部IdP連携時のみ
	Interests    []string
	TeamID       string // 未所属の場合は空
	TeamName     string // TeamIDが指すチーム名の非正規化キャッシュ

	// メンター向けプロフィール
	Company      string
	Title        string
	Bio          string
	Expertise    []string
	Availability string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasPassword はパスワードが設定されているかどうかを返す。
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// HasTeam はチームに所属しているかどうかを返す。
func (u *User) HasTeam() bool {
	return u.TeamID != ""
}

// Snapshot はクレデンシャルに埋め込むユーザー属性のスナップショット。
type Snapshot struct {
	ID        string
	FullName  string
	Email     string
	Role      Role
	Status    UserStatus
	Provider  string
	TeamID    string
	TeamName  string
	Interests []string
}

// Snapshot はユーザーの現在の状態からスナップショットを生成する。
func (u *User) Snapshot() Snapshot {
	interests := make([]string, len(u.Interests))
	copy(interests, u.Interests)
	return Snapshot{
		ID:        u.ID,
		FullName:  u.FullName,
		Email:     u.Email,
		Role:      u.Role,
		Status:    u.Status,
		Provider:  u.Provider,
		TeamID:    u.TeamID,
		TeamName:  u.TeamName,
		Interests: interests,
	}
}

// UserSearch はユーザー検索の条件。
// 空のフィールドは条件に含めない。
type UserSearch struct {
	Role      Role
	Status    UserStatus
	Term      string   // full_name, company, title, bio の部分一致（大文字小文字を区別しない）
	Expertise string   // expertiseタグのいずれかに一致
	ExcludeID string   // 検索結果から除外するユーザーID
	NoTeam    bool     // trueの場合はチーム未所属のユーザーに限定する
	Interests []string // 1つ以上重複する興味タグを持つユーザーに限定する
}
