// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/kintai/internal/model"
)

// EmployeeRepository は従業員データの永続化インターフェース。
type EmployeeRepository interface {
	// FindByID は指定IDの従業員を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Employee, error)

	// ListActive はアクティブな従業員の一覧を返す。
	ListActive(ctx context.Context) ([]*model.Employee, error)

	// ListActiveWithEmail はアクティブかつメールアドレスを持つ従業員の一覧を返す。
	// リマインド通知の評価対象はこの集合に限られる。
	ListActiveWithEmail(ctx context.Context) ([]*model.Employee, error)
}

// ShiftProfileRepository はシフトプロファイルの永続化インターフェース。
type ShiftProfileRepository interface {
	// FindByID は指定IDのシフトプロファイルを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.ShiftProfile, error)
}

// AttendanceRepository は打刻レコードの永続化インターフェース。
type AttendanceRepository interface {
	// Insert は新しい打刻レコードを作成し、採番されたIDを返す。
	// オープンレコードの存在チェックは行わない（multipleポリシー用）。
	Insert(ctx context.Context, employeeID string, workDate time.Time, entryTime time.Time) (int64, error)

	// InsertIfNoOpen はオープンレコードが存在しない場合のみ打刻レコードを作成する。
	// 条件付きINSERTにより同時打刻でも二重オープンにならない（singleポリシー用）。
	// 既にオープンレコードが存在する場合は (0, false, nil) を返す。
	InsertIfNoOpen(ctx context.Context, employeeID string, workDate time.Time, entryTime time.Time) (int64, bool, error)

	// CloseLatestOpen は最新のオープンレコード（id降順、日付フィルタなし）に
	// 退勤時刻を設定する。条件付きUPDATEにより同時退勤打刻でも二重クローズにならない。
	// オープンレコードが存在しない場合は (false, nil) を返す。
	CloseLatestOpen(ctx context.Context, employeeID string, exitTime time.Time) (bool, error)

	// ListByDate は指定日の全打刻レコードを従業員情報とJOINして返す。
	ListByDate(ctx context.Context, date time.Time) ([]model.DailySnapshotRow, error)

	// EntryEmployeeIDsByDate は指定日に出勤打刻のある従業員IDの集合を返す。
	EntryEmployeeIDsByDate(ctx context.Context, date time.Time) (map[string]struct{}, error)

	// ListByEmployeeInRange は指定従業員の期間内レコードを
	// 日付降順・出勤時刻降順で返す。レポート出力用。
	ListByEmployeeInRange(ctx context.Context, employeeID string, from, to time.Time) ([]*model.AttendanceRecord, error)
}

// NotificationRepository は通知アイテムの永続化インターフェース。
type NotificationRepository interface {
	// CreateIfAbsent は通知アイテムを作成する。
	// (employee_id, work_date, notify_type) の冪等キーが既に存在する場合は
	// 何もせず (false, nil) を返す（ON CONFLICT DO NOTHING）。
	CreateIfAbsent(ctx context.Context, item *model.NotificationItem) (bool, error)

	// FindByID は指定IDの通知アイテムを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.NotificationItem, error)

	// MarkSent はアイテムを配信成功状態にする。
	MarkSent(ctx context.Context, id string, attempts int) error

	// MarkRetry は失敗したアイテムをpendingのまま次回試行時刻を設定する。
	// FlushPendingが次回試行時刻の到来後に再度取り出す。
	MarkRetry(ctx context.Context, id string, attempts int, nextAttemptAt time.Time) error

	// MarkFailed はアイテムを終了失敗状態にする。最大試行回数到達時のみ使用する。
	MarkFailed(ctx context.Context, id string, attempts int) error

	// ClaimPendingDue はpending状態かつ次回試行時刻が到来したアイテムを
	// 最大limit件クレームして返す。クレームは次回試行時刻をリース分先送りする
	// 単一のUPDATEとして行うため、複数のフラッシュジョブが同時実行されても
	// 同一アイテムを重複して取り出さない。
	ClaimPendingDue(ctx context.Context, limit int) ([]*model.NotificationItem, error)
}

// DeliveryLogRepository は配信試行ログの永続化インターフェース。
type DeliveryLogRepository interface {
	// Append は配信試行ログを1件追記する。ログは削除されない。
	Append(ctx context.Context, log *model.DeliveryLog) error
}
