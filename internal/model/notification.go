// Package model はドメインモデルを定義する。
package model

import "time"

// NotificationState は通知アイテムの配信状態を表す。
type NotificationState string

const (
	// NotificationStatePending は配信待ち状態。
	NotificationStatePending NotificationState = "pending"
	// NotificationStateSent は配信成功状態。
	NotificationStateSent NotificationState = "sent"
	// NotificationStateFailed は配信失敗（終了）状態。
	// 最大試行回数に達したアイテムのみがこの状態になる。
	NotificationStateFailed NotificationState = "failed"
)

// NotifyType は通知の種別を表す。
type NotifyType string

const (
	// NotifyTypeLateReminder は出勤打刻漏れリマインドの通知種別。
	NotifyTypeLateReminder NotifyType = "late_reminder"
)

// NotificationItem はリマインド通知の配信キューアイテムを表す。
// PresenceEvaluatorが作成し、Dispatcherが状態を更新する。
// 削除されず監査証跡として残る。
// (EmployeeID, WorkDate, Type) はユニーク制約を持ち、
// 評価ジョブが重複起動しても同日二重送信されない。
type NotificationItem struct {
	ID            string
	EmployeeID    string
	Recipient     string
	Subject       string
	Message       string
	Type          NotifyType
	WorkDate      time.Time
	State         NotificationState
	Attempts      int
	NextAttemptAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DeliveryLog は送信試行1回ごとの追記専用レコードを表す。
type DeliveryLog struct {
	ID           int64
	EmployeeID   string
	Type         NotifyType
	Recipient    string
	Subject      string
	ResultState  NotificationState
	ErrorMessage string
	ProviderID   string
	CreatedAt    time.Time
}
