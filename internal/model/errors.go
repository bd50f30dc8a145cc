// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, attendance, notification, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeMissingEmployeeID = "MISSING_EMPLOYEE_ID"
	ErrCodeNoOpenEntry       = "NO_OPEN_ENTRY"
	ErrCodeEntryAlreadyOpen  = "ENTRY_ALREADY_OPEN"
	ErrCodeEmployeeNotFound  = "EMPLOYEE_NOT_FOUND"
	ErrCodeInvalidDate       = "INVALID_DATE"
	ErrCodeUpstreamFailure   = "UPSTREAM_FAILURE"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
)

// NewMissingEmployeeIDError は従業員ID未指定エラーを生成する。
func NewMissingEmployeeIDError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingEmployeeID,
		Message:  "従業員IDが指定されていません。",
		Category: "validation",
		Action:   "employee_id を指定してリクエストしてください。",
	}
}

// NewNoOpenEntryError は退勤打刻時にオープンな出勤レコードが存在しない場合のエラーを生成する。
func NewNoOpenEntryError(employeeID string) *APIError {
	return &APIError{
		Code:     ErrCodeNoOpenEntry,
		Message:  fmt.Sprintf("未退勤の出勤記録が見つかりません: %s", employeeID),
		Category: "attendance",
		Action:   "先に出勤打刻を行ってください。",
	}
}

// NewEntryAlreadyOpenError は既にオープンな出勤レコードが存在する場合のエラーを生成する。
// 出勤打刻ポリシーが single の場合のみ発生する。
func NewEntryAlreadyOpenError(employeeID string) *APIError {
	return &APIError{
		Code:     ErrCodeEntryAlreadyOpen,
		Message:  fmt.Sprintf("未退勤の出勤記録が既に存在します: %s", employeeID),
		Category: "attendance",
		Action:   "退勤打刻を行ってから再度出勤打刻してください。",
	}
}

// NewEmployeeNotFoundError は従業員が見つからない場合のエラーを生成する。
func NewEmployeeNotFoundError(employeeID string) *APIError {
	return &APIError{
		Code:     ErrCodeEmployeeNotFound,
		Message:  fmt.Sprintf("指定された従業員が見つかりません: %s", employeeID),
		Category: "validation",
		Action:   "従業員IDを確認してください。",
	}
}

// NewInvalidDateError は日付形式が無効な場合のエラーを生成する。
func NewInvalidDateError(raw string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDate,
		Message:  fmt.Sprintf("無効な日付形式です: %s", raw),
		Category: "validation",
		Action:   "日付は YYYY-MM-DD 形式で指定してください。",
	}
}

// NewUpstreamFailureError はストアまたはメールゲートウェイへの接続失敗エラーを生成する。
func NewUpstreamFailureError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamFailure,
		Message:  fmt.Sprintf("外部サービスとの通信に失敗しました: %s", reason),
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewUnauthorizedError はトリガートークン不一致エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証に失敗しました。",
		Category: "auth",
		Action:   "正しいトリガートークンを指定してください。",
	}
}
