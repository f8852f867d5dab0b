// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer は組織が登録した申請種別名や従業員名などを
// 通知本文へ埋め込む前にプレーンテキスト化する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はプレーンテキスト化のインターフェース。
type TextSanitizer interface {
	// Sanitize はHTMLタグを全て除去し、連続する空白を1つにまとめたテキストを返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(s string) string
}

// textSanitizer はbluemondayのStrictPolicyによるTextSanitizerの実装。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はタグを除去したプレーンテキストを返す。
// StrictPolicyがエスケープした文字参照は元の文字に戻す。
func (s *textSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	stripped := html.UnescapeString(s.policy.Sanitize(raw))
	return strings.Join(strings.Fields(stripped), " ")
}

// compile-time interface check
var _ TextSanitizer = (*textSanitizer)(nil)
