// Package model はドメインモデルを定義する。
package model

import "time"

// AttendanceRecord は打刻レコードを表す。
// 出勤打刻時に作成され、退勤打刻で1回だけExitTimeが設定される。
// レコードは追記専用で削除されない。
type AttendanceRecord struct {
	ID         int64
	EmployeeID string
	WorkDate   time.Time // 日付のみ有効（時刻部は0）
	EntryTime  time.Time
	ExitTime   time.Time
	HasExit    bool // ExitTimeが設定済みかどうか。falseのレコードが「オープン」
	CreatedAt  time.Time
}

// DailySnapshotRow は日次スナップショットの1行（打刻レコード＋従業員情報）。
type DailySnapshotRow struct {
	RecordID     int64
	EmployeeID   string
	EmployeeName string
	EntryTime    time.Time
	ExitTime     time.Time
	HasExit      bool
}

// DailySnapshot は指定日の出勤状況の集計結果。
// Present: 出勤済みかつ未退勤、Left: 退勤済み、Total: 当日の全レコード数。
type DailySnapshot struct {
	Date    time.Time
	Present int
	Left    int
	Total   int
	Rows    []DailySnapshotRow
}
