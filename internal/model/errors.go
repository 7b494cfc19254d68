// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, conflict, auth, forbidden, not_found, dependency, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// エラーカテゴリ。HTTPステータスへの対応はhandler層が行う。
const (
	CategoryValidation = "validation" // 400
	CategoryConflict   = "conflict"   // 409
	CategoryAuth       = "auth"       // 401
	CategoryForbidden  = "forbidden"  // 403
	CategoryNotFound   = "not_found"  // 404
	CategoryDependency = "dependency" // 502
	CategorySystem     = "system"     // 500
)

// 定義済みエラーコード
const (
	ErrCodeInvalidRequest          = "INVALID_REQUEST"
	ErrCodeInvalidEmail            = "INVALID_EMAIL_FORMAT"
	ErrCodeWeakPassword            = "WEAK_PASSWORD"
	ErrCodeDuplicateEmail          = "DUPLICATE_EMAIL"
	ErrCodeDuplicateProviderLink   = "DUPLICATE_PROVIDER_LINK"
	ErrCodeInvalidCredentials      = "INVALID_CREDENTIALS"
	ErrCodeUnauthorized            = "UNAUTHORIZED"
	ErrCodeTokenExpired            = "TOKEN_EXPIRED"
	ErrCodeTokenInvalid            = "TOKEN_INVALID"
	ErrCodeTokenRevoked            = "TOKEN_REVOKED"
	ErrCodeForbidden               = "FORBIDDEN"
	ErrCodeUserNotFound            = "USER_NOT_FOUND"
	ErrCodeEmailOwnedByOtherMethod = "EMAIL_OWNED_BY_OTHER_METHOD"
	ErrCodeProviderFailed          = "PROVIDER_FAILED"
	ErrCodeNotificationFailed      = "NOTIFICATION_FAILED"
	ErrCodeTeamNotFound            = "TEAM_NOT_FOUND"
	ErrCodeDuplicateTeamName       = "DUPLICATE_TEAM_NAME"
	ErrCodeAlreadyOnTeam           = "ALREADY_ON_TEAM"
	ErrCodeAlreadyLeader           = "ALREADY_LEADER"
	ErrCodeAlreadyMember           = "ALREADY_MEMBER"
	ErrCodeTeamFull                = "TEAM_FULL"
	ErrCodeAlreadyOnAnotherTeam    = "ALREADY_ON_ANOTHER_TEAM"
	ErrCodeNotAMember              = "NOT_A_MEMBER"
	ErrCodeLeaderCannotLeave       = "LEADER_CANNOT_LEAVE"
	ErrCodeNotLeader               = "NOT_LEADER"
	ErrCodeMentorNotFound          = "MENTOR_NOT_FOUND"
	ErrCodeSelfConnect             = "SELF_CONNECT"
	ErrCodeInconsistentState       = "INCONSISTENT_STATE"
)

// NewValidationError は入力値の検証エラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  message,
		Category: CategoryValidation,
		Action:   "入力内容を確認してください。",
	}
}

// NewInvalidEmailError はメールアドレス形式エラーを生成する。
func NewInvalidEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidEmail,
		Message:  "メールアドレスの形式が正しくありません。",
		Category: CategoryValidation,
		Action:   "正しいメールアドレスを入力してください。",
	}
}

// NewWeakPasswordError はパスワード長不足エラーを生成する。
func NewWeakPasswordError(minLength int) *APIError {
	return &APIError{
		Code:     ErrCodeWeakPassword,
		Message:  fmt.Sprintf("パスワードは%d文字以上で指定してください。", minLength),
		Category: CategoryValidation,
		Action:   "より長いパスワードを設定してください。",
	}
}

// NewDuplicateEmailError はメールアドレス重複エラーを生成する。
func NewDuplicateEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateEmail,
		Message:  "このメールアドレスは既に登録されています。",
		Category: CategoryConflict,
		Action:   "ログインするか、別のメールアドレスで登録してください。",
	}
}

// NewDuplicateProviderLinkError は外部IdP連携の重複エラーを生成する。
func NewDuplicateProviderLinkError(provider string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateProviderLink,
		Message:  fmt.Sprintf("この%sアカウントは既に別のユーザーに連携されています。", provider),
		Category: CategoryConflict,
		Action:   "連携済みのアカウントでログインしてください。",
	}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
// メールアドレスの存在有無は区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: CategoryAuth,
		Action:   "入力内容を確認して再度ログインしてください。",
	}
}

// NewUnauthorizedError はクレデンシャル未提示エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: CategoryAuth,
		Action:   "ログインしてください。",
	}
}

// NewTokenExpiredError は有効期限切れエラーを生成する。
func NewTokenExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeTokenExpired,
		Message:  "ログインの有効期限が切れています。",
		Category: CategoryAuth,
		Action:   "再度ログインしてください。",
	}
}

// NewTokenInvalidError は不正なクレデンシャルのエラーを生成する。
func NewTokenInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeTokenInvalid,
		Message:  "認証情報が無効です。",
		Category: CategoryAuth,
		Action:   "再度ログインしてください。",
	}
}

// NewTokenRevokedError はログアウト済みクレデンシャルのエラーを生成する。
func NewTokenRevokedError() *APIError {
	return &APIError{
		Code:     ErrCodeTokenRevoked,
		Message:  "このログインは既にログアウトされています。",
		Category: CategoryAuth,
		Action:   "再度ログインしてください。",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  message,
		Category: CategoryForbidden,
		Action:   "必要な権限を持つアカウントで操作してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: CategoryNotFound,
		Action:   "ユーザーIDを確認してください。",
	}
}

// NewEmailOwnedByOtherMethodError は別の方法で登録済みのメールアドレスでの外部ログインエラーを生成する。
func NewEmailOwnedByOtherMethodError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailOwnedByOtherMethod,
		Message:  "このメールアドレスは別のログイン方法で登録されています。",
		Category: CategoryConflict,
		Action:   "登録時と同じ方法でログインしてください。",
	}
}

// NewProviderFailedError は外部IdPとの通信失敗エラーを生成する。
func NewProviderFailedError(provider string) *APIError {
	return &APIError{
		Code:     ErrCodeProviderFailed,
		Message:  fmt.Sprintf("%sでの認証に失敗しました。", provider),
		Category: CategoryDependency,
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewNotificationFailedError はメール送信失敗エラーを生成する。
func NewNotificationFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeNotificationFailed,
		Message:  "メッセージの送信に失敗しました。",
		Category: CategoryDependency,
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewTeamNotFoundError はチームが見つからない場合のエラーを生成する。
func NewTeamNotFoundError(teamID string) *APIError {
	return &APIError{
		Code:     ErrCodeTeamNotFound,
		Message:  fmt.Sprintf("指定されたチームが見つかりません: %s", teamID),
		Category: CategoryNotFound,
		Action:   "チームIDを確認してください。",
	}
}

// NewDuplicateTeamNameError はチーム名重複エラーを生成する。
func NewDuplicateTeamNameError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateTeamName,
		Message:  fmt.Sprintf("チーム名「%s」は既に使用されています。", name),
		Category: CategoryConflict,
		Action:   "別のチーム名を指定してください。",
	}
}

// NewAlreadyOnTeamError は既にチームに所属しているユーザーがチームを作成しようとした場合のエラーを生成する。
func NewAlreadyOnTeamError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyOnTeam,
		Message:  "既にチームに所属しています。",
		Category: CategoryConflict,
		Action:   "現在のチームを抜けてから新しいチームを作成してください。",
	}
}

// NewAlreadyLeaderError はリーダーが自分のチームに参加しようとした場合のエラーを生成する。
func NewAlreadyLeaderError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyLeader,
		Message:  "あなたはこのチームのリーダーです。",
		Category: CategoryValidation,
		Action:   "他のチームを選択してください。",
	}
}

// NewAlreadyMemberError は参加済みチームへの再参加エラーを生成する。
func NewAlreadyMemberError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyMember,
		Message:  "既にこのチームのメンバーです。",
		Category: CategoryConflict,
		Action:   "チーム一覧から所属チームを確認してください。",
	}
}

// NewTeamFullError は定員超過エラーを生成する。
func NewTeamFullError() *APIError {
	return &APIError{
		Code:     ErrCodeTeamFull,
		Message:  "このチームは定員に達しています。",
		Category: CategoryConflict,
		Action:   "他のチームを選択してください。",
	}
}

// NewAlreadyOnAnotherTeamError は別チーム所属中の参加エラーを生成する。
func NewAlreadyOnAnotherTeamError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyOnAnotherTeam,
		Message:  "既に別のチームに所属しています。",
		Category: CategoryConflict,
		Action:   "現在のチームを抜けてから参加してください。",
	}
}

// NewNotAMemberError は非メンバーの脱退エラーを生成する。
func NewNotAMemberError() *APIError {
	return &APIError{
		Code:     ErrCodeNotAMember,
		Message:  "このチームのメンバーではありません。",
		Category: CategoryValidation,
		Action:   "チームIDを確認してください。",
	}
}

// NewLeaderCannotLeaveError はリーダーの脱退エラーを生成する。
func NewLeaderCannotLeaveError() *APIError {
	return &APIError{
		Code:     ErrCodeLeaderCannotLeave,
		Message:  "リーダーはチームを脱退できません。",
		Category: CategoryForbidden,
		Action:   "チームを解散してください。",
	}
}

// NewNotLeaderError はリーダー以外による解散エラーを生成する。
func NewNotLeaderError() *APIError {
	return &APIError{
		Code:     ErrCodeNotLeader,
		Message:  "チームを解散できるのはリーダーのみです。",
		Category: CategoryForbidden,
		Action:   "チームリーダーに依頼してください。",
	}
}

// NewMentorNotFoundError はメンターが見つからない場合のエラーを生成する。
func NewMentorNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeMentorNotFound,
		Message:  "メンターが見つからないか、現在は活動していません。",
		Category: CategoryNotFound,
		Action:   "メンター一覧から選択してください。",
	}
}

// NewSelfConnectError は自分自身へのメンター申請エラーを生成する。
func NewSelfConnectError() *APIError {
	return &APIError{
		Code:     ErrCodeSelfConnect,
		Message:  "自分自身には申請できません。",
		Category: CategoryValidation,
		Action:   "他のメンターを選択してください。",
	}
}

// NewInconsistentStateError はストア間の更新が部分的に失敗した場合のエラーを生成する。
func NewInconsistentStateError() *APIError {
	return &APIError{
		Code:     ErrCodeInconsistentState,
		Message:  "処理の途中でエラーが発生しました。",
		Category: CategorySystem,
		Action:   "しばらく待ってから状態を確認してください。",
	}
}
