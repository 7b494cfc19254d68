// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/confportal/internal/credential"
	"github.com/hitoshi/confportal/internal/middleware"
	"github.com/hitoshi/confportal/internal/model"
)

// maxRequestBodySize はJSONリクエストボディの読み込み上限。
const maxRequestBodySize = 1 << 20

// userResponse はユーザー情報のAPIレスポンス。パスワードハッシュは含めない。
type userResponse struct {
	ID           string    `json:"id"`
	FullName     string    `json:"full_name"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	Status       string    `json:"status"`
	Provider     string    `json:"provider"`
	ProviderID   *string   `json:"provider_id"`
	Interests    []string  `json:"interests"`
	TeamID       *string   `json:"team_id"`
	TeamName     *string   `json:"team_name"`
	Company      string    `json:"company,omitempty"`
	Title        string    `json:"title,omitempty"`
	Bio          string    `json:"bio,omitempty"`
	Expertise    []string  `json:"expertise,omitempty"`
	Availability string    `json:"availability,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// toUserResponse はドメインのUserをAPIレスポンス型に変換する。
func toUserResponse(u *model.User) *userResponse {
	if u == nil {
		return nil
	}
	interests := u.Interests
	if interests == nil {
		interests = []string{}
	}
	return &userResponse{
		ID:           u.ID,
		FullName:     u.FullName,
		Email:        u.Email,
		Role:         string(u.Role),
		Status:       string(u.Status),
		Provider:     u.Provider,
		ProviderID:   optional(u.ProviderID),
		Interests:    interests,
		TeamID:       optional(u.TeamID),
		TeamName:     optional(u.TeamName),
		Company:      u.Company,
		Title:        u.Title,
		Bio:          u.Bio,
		Expertise:    u.Expertise,
		Availability: u.Availability,
		CreatedAt:    u.CreatedAt,
	}
}

// toUserResponses はUserのスライスをAPIレスポンス型に変換する。
func toUserResponses(users []*model.User) []*userResponse {
	results := make([]*userResponse, len(users))
	for i, u := range users {
		results[i] = toUserResponse(u)
	}
	return results
}

// optional は空文字列をJSONのnullとして出力するために使用する。
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// tokenOf は発行済みクレデンシャルのトークン文字列を返す。未発行の場合はnil。
func tokenOf(issued *credential.Issued) *string {
	if issued == nil {
		return nil
	}
	return &issued.Token
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeAPIErrorResponse は統一フォーマットでAPIエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, apiErr *model.APIError) {
	middleware.WriteAPIError(w, apiErr)
}

// handleServiceError はサービス層から返されたエラーをカテゴリに応じたHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	middleware.WriteInternalServerError(w)
}

// decodeJSON はリクエストボディをJSONとしてdstに読み込む。
// ボディが空・不正な場合はバリデーションエラーを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) *model.APIError {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return model.NewValidationError("リクエストボディがありません。")
		}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return model.NewValidationError(fmt.Sprintf("%sの型が不正です。", typeErr.Field))
		}
		return model.NewValidationError("リクエストボディが不正です。")
	}
	return nil
}

// currentUser は認証ミドルウェアが注入した検証済みクレデンシャルを返す。
// 取得できない場合は401を書き込みfalseを返す。
func currentUser(w http.ResponseWriter, r *http.Request) (*credential.Verified, bool) {
	verified, ok := middleware.VerifiedFromContext(r.Context())
	if !ok {
		writeAPIErrorResponse(w, model.NewUnauthorizedError())
		return nil, false
	}
	return verified, true
}
