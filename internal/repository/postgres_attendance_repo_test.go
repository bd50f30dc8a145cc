package repository

import (
	"testing"
	"time"

	"github.com/hitoshi/kintai/internal/model"
)

// PostgresAttendanceRepoはAttendanceRepositoryインターフェースを満たすことを検証
func TestPostgresAttendanceRepo_ImplementsInterface(t *testing.T) {
	var _ AttendanceRepository = (*PostgresAttendanceRepo)(nil)
}

// NewPostgresAttendanceRepoが正しく初期化されることを検証
func TestNewPostgresAttendanceRepo_Initializes(t *testing.T) {
	repo := NewPostgresAttendanceRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// AttendanceRecordモデルのフィールドが正しく構築されることを検証
func TestAttendanceRecord_Fields(t *testing.T) {
	now := time.Now()
	record := &model.AttendanceRecord{
		ID:         1,
		EmployeeID: "emp-1",
		WorkDate:   time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC),
		EntryTime:  now,
		CreatedAt:  now,
	}

	if record.HasExit {
		t.Error("新規レコードはオープン（HasExit=false）であるべき")
	}
	if record.EmployeeID != "emp-1" {
		t.Errorf("record.EmployeeID = %q, want %q", record.EmployeeID, "emp-1")
	}
	if !record.ExitTime.IsZero() {
		t.Error("ExitTimeは未設定であるべき")
	}
}

// DailySnapshotRowのオープン/クローズ判定フィールドを検証
func TestDailySnapshotRow_OpenAndClosed(t *testing.T) {
	open := model.DailySnapshotRow{RecordID: 1, EmployeeID: "emp-1", HasExit: false}
	closed := model.DailySnapshotRow{RecordID: 2, EmployeeID: "emp-2", HasExit: true}

	if open.HasExit {
		t.Error("open row should have HasExit=false")
	}
	if !closed.HasExit {
		t.Error("closed row should have HasExit=true")
	}
}
