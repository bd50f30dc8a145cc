// Package security はアプリケーションのセキュリティ機能を提供する。
//
// MailSanitizerService はリマインドメールのHTML本文をサニタイズし、
// 従業員名などの管理画面経由で入力されたデータがHTMLとして解釈される
// リスクからメール受信者を保護する。
// bluemondayライブラリを使用した許可リストベースのポリシーで、
// メール本文に必要な最小限のタグのみを通過させる。
package security

import (
	"github.com/microcosm-cc/bluemonday"
)

// MailSanitizerService はメール本文HTMLのサニタイズ機能のインターフェースを定義する。
// 通知アイテムの本文構築後、ゲートウェイへの送信前に使用される。
type MailSanitizerService interface {
	// Sanitize はHTML本文をサニタイズして安全なHTMLを返す。
	// 許可タグ（p, br, a, strong, em, table, tr, td）のみを通過させ、
	// script, iframe, styleタグおよびon*イベント属性を除去する。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(rawHTML string) string
}

// mailSanitizer はMailSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type mailSanitizer struct {
	policy *bluemonday.Policy
}

// NewMailSanitizer はMailSanitizerServiceの新しいインスタンスを生成する。
// 初期化時にbluemondayのカスタムポリシーを構築する。
// ポリシーの内容:
//   - 許可タグ: p, br, a, strong, em, table, tr, td（メールテンプレートで使用する範囲のみ）
//   - 禁止タグ: script, iframe, style および全てのon*イベント属性
//   - aタグ: href属性のみ許可、相対URLは不許可
func NewMailSanitizer() *mailSanitizer {
	p := bluemonday.NewPolicy()

	// メールテンプレートで使用するタグのみ許可する。
	// script, iframe, style等は許可リストに含めないことで自動的に除去される。
	// on*イベント属性はbluemondayのデフォルトで許可されないため除去される。
	p.AllowElements(
		"p", "br", "strong", "em",
		"table", "tr", "td",
	)

	// 本文中のリンク（勤怠システムの打刻画面への導線）
	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AllowURLSchemes("https", "http")

	return &mailSanitizer{
		policy: p,
	}
}

// Sanitize はHTML本文をサニタイズして安全なHTMLを返す。
func (s *mailSanitizer) Sanitize(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}

// compile-time interface check
var _ MailSanitizerService = (*mailSanitizer)(nil)
