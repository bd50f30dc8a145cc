// Package model はドメインモデルを定義する。
package model

import "time"

// Employee は従業員を表す。
// Emailが空の従業員はリマインド通知の評価対象外となる。
type Employee struct {
	ID              string
	Name            string
	Email           string
	Active          bool
	ShiftProfileID  string
	DefaultEntryMin int // シフトプロファイル未設定時の既定出勤時刻（0時からの分）
	DefaultExitMin  int // シフトプロファイル未設定時の既定退勤時刻（0時からの分）
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ProfileType はシフトプロファイルの種別を表す。
type ProfileType string

const (
	// ProfileTypeContinuous は連続勤務（1日1区間）のシフト種別。
	ProfileTypeContinuous ProfileType = "continuous"
	// ProfileTypeSplit は分割勤務（午前・午後の2区間）のシフト種別。
	ProfileTypeSplit ProfileType = "split"
)

// ShiftProfile は従業員の勤務パターン設定を表す。
// 時刻はすべて0時からの分単位（minutes-since-midnight）で保持する。
// split型は午後区間（AfternoonEntryMin/AfternoonExitMin）が必須。
// continuous型では休憩区間は任意。
type ShiftProfile struct {
	ID                string
	Type              ProfileType
	MorningEntryMin   int
	MorningExitMin    int
	BreakStartMin     int
	BreakEndMin       int
	AfternoonEntryMin int
	AfternoonExitMin  int
	HasBreak          bool
	HasAfternoon      bool
	Active            bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
