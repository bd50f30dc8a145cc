package repository

import (
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/kintai/internal/model"
)

// PostgresNotificationRepoはNotificationRepositoryインターフェースを満たすことを検証
func TestPostgresNotificationRepo_ImplementsInterface(t *testing.T) {
	var _ NotificationRepository = (*PostgresNotificationRepo)(nil)
}

// PostgresDeliveryLogRepoはDeliveryLogRepositoryインターフェースを満たすことを検証
func TestPostgresDeliveryLogRepo_ImplementsInterface(t *testing.T) {
	var _ DeliveryLogRepository = (*PostgresDeliveryLogRepo)(nil)
}

// PostgresEmployeeRepoはEmployeeRepositoryインターフェースを満たすことを検証
func TestPostgresEmployeeRepo_ImplementsInterface(t *testing.T) {
	var _ EmployeeRepository = (*PostgresEmployeeRepo)(nil)
}

// PostgresShiftProfileRepoはShiftProfileRepositoryインターフェースを満たすことを検証
func TestPostgresShiftProfileRepo_ImplementsInterface(t *testing.T) {
	var _ ShiftProfileRepository = (*PostgresShiftProfileRepo)(nil)
}

// NotificationItemモデルの初期状態を検証
func TestNotificationItem_InitialState(t *testing.T) {
	now := time.Now()
	item := &model.NotificationItem{
		ID:            "item-1",
		EmployeeID:    "emp-1",
		Recipient:     "taro@example.com",
		Subject:       "出勤打刻のお願い",
		Type:          model.NotifyTypeLateReminder,
		WorkDate:      time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC),
		State:         model.NotificationStatePending,
		Attempts:      0,
		NextAttemptAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if item.State != model.NotificationStatePending {
		t.Errorf("item.State = %q, want %q", item.State, model.NotificationStatePending)
	}
	if item.Attempts != 0 {
		t.Errorf("item.Attempts = %d, want 0", item.Attempts)
	}
	if item.Type != model.NotifyTypeLateReminder {
		t.Errorf("item.Type = %q, want %q", item.Type, model.NotifyTypeLateReminder)
	}
}

// クレーム文が単一の原子的なUPDATEであることを検証。
// SELECT単体のFOR UPDATEは暗黙トランザクションの終了とともにロックが
// 解放されるため、取り出しと先送りを同一文で行う必要がある。
func TestClaimPendingDueQuery_IsAtomicClaim(t *testing.T) {
	if !strings.HasPrefix(strings.TrimSpace(claimPendingDueQuery), "UPDATE notification_items") {
		t.Error("クレーム文はUPDATEで始まるべき")
	}
	if !strings.Contains(claimPendingDueQuery, "FOR UPDATE SKIP LOCKED") {
		t.Error("クレーム文は競合行をスキップすべき (FOR UPDATE SKIP LOCKED)")
	}
	if !strings.Contains(claimPendingDueQuery, "SET next_attempt_at = now() + interval") {
		t.Error("クレーム文は次回試行時刻をリース分先送りすべき")
	}
	if !strings.Contains(claimPendingDueQuery, "RETURNING") {
		t.Error("クレーム文はクレームした行をRETURNINGで返すべき")
	}
	if strings.Count(claimPendingDueQuery, ";") != 0 {
		t.Error("クレームは単一文で行うべき")
	}
}

// nullString/nullStringValueの変換を検証
func TestNullStringHelpers(t *testing.T) {
	ns := nullString("")
	if ns.Valid {
		t.Error("空文字列はValid=falseに変換されるべき")
	}

	ns = nullString("value")
	if !ns.Valid || ns.String != "value" {
		t.Errorf("nullString(value) = %+v, want Valid=true String=value", ns)
	}

	if got := nullStringValue(ns); got != "value" {
		t.Errorf("nullStringValue = %q, want %q", got, "value")
	}
}
