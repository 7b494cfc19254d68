// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/confportal/internal/model"
)

// ストレージ層が返す判定可能なエラー。
// サービス層でAPIErrorに変換する。
var (
	ErrNotFound              = errors.New("record not found")
	ErrDuplicateEmail        = errors.New("duplicate email")
	ErrDuplicateProviderLink = errors.New("duplicate provider link")
	ErrDuplicateTeamName     = errors.New("duplicate team name")
	ErrAlreadyMember         = errors.New("already a member")
	ErrNotAMember            = errors.New("not a member")
	ErrTeamFull              = errors.New("team is full")
	ErrUserHasTeam           = errors.New("user already belongs to a team")
)

// UserRepository はユーザー（Identity）の永続化インターフェース。
type UserRepository interface {
	// Create はユーザーを作成する。
	// メールアドレス重複時はErrDuplicateEmail、(provider, provider_id)重複時はErrDuplicateProviderLinkを返す。
	Create(ctx context.Context, user *model.User) error

	// FindByID は指定IDのユーザーを取得する。見つからない場合（不正なID形式を含む）はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByIDs は指定ID群のユーザーを取得する。存在しないIDは無視する。
	FindByIDs(ctx context.Context, ids []string) ([]*model.User, error)

	// FindByEmail はメールアドレスでユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByProviderLink はproviderとprovider_idでユーザーを取得する。見つからない場合はnilを返す。
	FindByProviderLink(ctx context.Context, provider, providerID string) (*model.User, error)

	// Update は所属チーム以外の可変フィールドを置き換え、updated_atを更新する。
	// 対象が存在しない場合はErrNotFoundを返す。
	Update(ctx context.Context, user *model.User) error

	// List は全ユーザーを作成日時順に返す。
	List(ctx context.Context) ([]*model.User, error)

	// Search は条件に一致するユーザーを返す。
	Search(ctx context.Context, q model.UserSearch) ([]*model.User, error)

	// SetTeam はチーム未所属のユーザーにチームを設定する。
	// すでに所属している場合はErrUserHasTeam、ユーザーが存在しない場合はErrNotFoundを返す。
	SetTeam(ctx context.Context, userID, teamID, teamName string) error

	// ClearTeam はユーザーが指定チームに所属している場合に所属を解除する。
	// すでに解除済みの場合は何もしない。
	ClearTeam(ctx context.Context, userID, teamID string) error
}

// TeamRepository はチームの永続化インターフェース。
type TeamRepository interface {
	// Create はチームを作成する。チーム名重複時はErrDuplicateTeamNameを返す。
	Create(ctx context.Context, team *model.Team) error

	// FindByID は指定IDのチームを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Team, error)

	// FindByName はチーム名でチームを取得する。見つからない場合はnilを返す。
	FindByName(ctx context.Context, name string) (*model.Team, error)

	// List は条件に一致するチームを作成日時順に返す。
	List(ctx context.Context, q model.TeamSearch) ([]*model.Team, error)

	// AddMember は定員未満かつ未参加の場合のみメンバーを追加する（単一の条件付きUPDATE）。
	// 失敗理由に応じてErrNotFound、ErrAlreadyMember、ErrTeamFullを返す。
	AddMember(ctx context.Context, teamID, userID string) (*model.Team, error)

	// RemoveMember はメンバーを除外し、状態をLooking for membersに戻す。
	// 失敗理由に応じてErrNotFound、ErrNotAMemberを返す。
	RemoveMember(ctx context.Context, teamID, userID string) (*model.Team, error)

	// Delete はチームを削除する。作成失敗時の補償処理で使用する。
	Delete(ctx context.Context, teamID string) error

	// Disband は全メンバーの所属解除とチーム削除を同一トランザクションで行い、
	// 元メンバーのIDを返す。
	Disband(ctx context.Context, teamID string) ([]string, error)
}

// RevocationRepository は失効したクレデンシャルの台帳。
type RevocationRepository interface {
	// Revoke はjtiを失効済みとして記録する。記録済みの場合もエラーにしない。
	// expiresAtはクレデンシャル自体の有効期限で、保持期間の判定に使用する。
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error

	// IsRevoked はjtiが失効済みかどうかを返す。
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// RevocationPurger は保持期間を過ぎた失効記録を削除する。
// TTLで自動失効するストアは実装しない。
type RevocationPurger interface {
	// DeleteExpired はexpires_atがbeforeより前の記録を削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
