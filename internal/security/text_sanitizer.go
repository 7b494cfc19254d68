// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はチーム名やプロフィールなど利用者が入力するテキストから
// HTMLを取り除き、保存前にプレーンテキストへ正規化する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer は利用者入力のテキストをサニタイズする。
type TextSanitizer interface {
	// Sanitize はHTMLタグを除去し、前後の空白を取り除いたプレーンテキストを返す。
	// script, styleなどの要素は内容ごと除去される。
	Sanitize(s string) string
	// SanitizeList は各要素をサニタイズし、空になった要素を除いたリストを返す。
	SanitizeList(values []string) []string
}

// textSanitizer はTextSanitizerの実装。
// bluemondayのStrictPolicyは全てのタグを許可しない。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// maxSanitizePasses はエンティティの多重エンコードを剥がす回数の上限。
const maxSanitizePasses = 5

var angleBrackets = strings.NewReplacer("<", "", ">", "")

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はHTMLタグを除去したプレーンテキストを返す。
// StrictPolicyはテキストをエスケープして返すため、保存用にエンティティを戻す。
// 戻した結果にタグが現れなくなるまで繰り返し、収束しなければ山括弧を除く。
func (s *textSanitizer) Sanitize(v string) string {
	cur := v
	for range maxSanitizePasses {
		next := html.UnescapeString(s.policy.Sanitize(cur))
		if next == cur {
			return strings.TrimSpace(cur)
		}
		cur = next
	}
	return strings.TrimSpace(angleBrackets.Replace(cur))
}

// SanitizeList は各要素をサニタイズする。nilの入力には空のスライスを返す。
func (s *textSanitizer) SanitizeList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if clean := s.Sanitize(v); clean != "" {
			out = append(out, clean)
		}
	}
	return out
}
