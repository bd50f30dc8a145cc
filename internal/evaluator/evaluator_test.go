package evaluator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hitoshi/kintai/internal/model"
	"github.com/hitoshi/kintai/internal/notifier"
	"github.com/hitoshi/kintai/internal/shift"
)

// --- モック定義 ---

type mockEmployeeRepo struct {
	listActiveWithEmailFn func(ctx context.Context) ([]*model.Employee, error)
}

func (m *mockEmployeeRepo) FindByID(ctx context.Context, id string) (*model.Employee, error) {
	return nil, nil
}

func (m *mockEmployeeRepo) ListActive(ctx context.Context) ([]*model.Employee, error) {
	return nil, nil
}

func (m *mockEmployeeRepo) ListActiveWithEmail(ctx context.Context) ([]*model.Employee, error) {
	if m.listActiveWithEmailFn != nil {
		return m.listActiveWithEmailFn(ctx)
	}
	return nil, nil
}

type mockAttendanceRepo struct {
	entryEmployeeIDsFn func(ctx context.Context, date time.Time) (map[string]struct{}, error)
}

func (m *mockAttendanceRepo) Insert(ctx context.Context, employeeID string, workDate, entryTime time.Time) (int64, error) {
	return 0, nil
}

func (m *mockAttendanceRepo) InsertIfNoOpen(ctx context.Context, employeeID string, workDate, entryTime time.Time) (int64, bool, error) {
	return 0, false, nil
}

func (m *mockAttendanceRepo) CloseLatestOpen(ctx context.Context, employeeID string, exitTime time.Time) (bool, error) {
	return false, nil
}

func (m *mockAttendanceRepo) ListByDate(ctx context.Context, date time.Time) ([]model.DailySnapshotRow, error) {
	return nil, nil
}

func (m *mockAttendanceRepo) EntryEmployeeIDsByDate(ctx context.Context, date time.Time) (map[string]struct{}, error) {
	if m.entryEmployeeIDsFn != nil {
		return m.entryEmployeeIDsFn(ctx, date)
	}
	return map[string]struct{}{}, nil
}

func (m *mockAttendanceRepo) ListByEmployeeInRange(ctx context.Context, employeeID string, from, to time.Time) ([]*model.AttendanceRecord, error) {
	return nil, nil
}

type mockProfileRepo struct {
	findByIDFn func(ctx context.Context, id string) (*model.ShiftProfile, error)
}

func (m *mockProfileRepo) FindByID(ctx context.Context, id string) (*model.ShiftProfile, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

type mockSubmitter struct {
	submitFn  func(ctx context.Context, item *model.NotificationItem) (*notifier.SubmitResult, error)
	submitted []*model.NotificationItem
}

func (m *mockSubmitter) Submit(ctx context.Context, item *model.NotificationItem) (*notifier.SubmitResult, error) {
	m.submitted = append(m.submitted, item)
	if m.submitFn != nil {
		return m.submitFn(ctx, item)
	}
	return &notifier.SubmitResult{State: model.NotificationStateSent}, nil
}

type nopMetrics struct {
	runs, submitted int
}

func (m *nopMetrics) RecordEvaluationRun()     { m.runs++ }
func (m *nopMetrics) RecordReminderSubmitted() { m.submitted++ }

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// 2026-08-27は木曜日
func weekdayAt(hour, min int) time.Time {
	return time.Date(2026, 8, 27, hour, min, 0, 0, time.UTC)
}

func newTestEvaluator(
	employees *mockEmployeeRepo,
	records *mockAttendanceRepo,
	submitter *mockSubmitter,
	now time.Time,
) (*PresenceEvaluator, *nopMetrics) {
	resolver := shift.NewResolver(&mockProfileRepo{}, 0, 0)
	metrics := &nopMetrics{}
	e := NewPresenceEvaluator(
		employees, records, resolver, submitter, metrics, testLogger(),
		"https://kintai.example.com/clock-in", 0,
		func() time.Time { return now },
	)
	return e, metrics
}

func activeEmployees(emps ...*model.Employee) *mockEmployeeRepo {
	return &mockEmployeeRepo{
		listActiveWithEmailFn: func(ctx context.Context) ([]*model.Employee, error) {
			return emps, nil
		},
	}
}

func testEmployee(id string) *model.Employee {
	return &model.Employee{
		ID:     id,
		Name:   "山田 太郎",
		Email:  id + "@example.com",
		Active: true,
	}
}

// --- RunOnce テスト ---

func TestRunOnce_WithinTolerance_NoNotification(t *testing.T) {
	submitter := &mockSubmitter{}
	// 期待出勤09:00 + 許容15分 → 09:10はまだ閾値内
	e, _ := newTestEvaluator(activeEmployees(testEmployee("emp-1")), &mockAttendanceRepo{}, submitter, weekdayAt(9, 10))

	summary, err := e.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(submitter.submitted) != 0 {
		t.Errorf("許容遅延内で通知が投入された: %d", len(submitter.submitted))
	}
	if summary.TooEarly != 1 {
		t.Errorf("TooEarly = %d, want 1", summary.TooEarly)
	}
}

func TestRunOnce_ExactlyAtThreshold_NoNotification(t *testing.T) {
	submitter := &mockSubmitter{}
	// 閾値ちょうど（09:15）は通知しない
	e, _ := newTestEvaluator(activeEmployees(testEmployee("emp-1")), &mockAttendanceRepo{}, submitter, weekdayAt(9, 15))

	summary, err := e.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.TooEarly != 1 || len(submitter.submitted) != 0 {
		t.Errorf("閾値ちょうどで通知が投入された: %+v", summary)
	}
}

func TestRunOnce_PastThreshold_SubmitsExactlyOne(t *testing.T) {
	submitter := &mockSubmitter{}
	e, metrics := newTestEvaluator(activeEmployees(testEmployee("emp-1")), &mockAttendanceRepo{}, submitter, weekdayAt(9, 16))

	summary, err := e.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Submitted != 1 {
		t.Errorf("Submitted = %d, want 1", summary.Submitted)
	}
	if len(submitter.submitted) != 1 {
		t.Fatalf("通知投入回数 = %d, want 1", len(submitter.submitted))
	}

	item := submitter.submitted[0]
	if item.EmployeeID != "emp-1" {
		t.Errorf("EmployeeID = %q, want emp-1", item.EmployeeID)
	}
	if item.Recipient != "emp-1@example.com" {
		t.Errorf("Recipient = %q", item.Recipient)
	}
	if item.Type != model.NotifyTypeLateReminder {
		t.Errorf("Type = %q, want late_reminder", item.Type)
	}
	if item.ID == "" {
		t.Error("アイテムIDが採番されていない")
	}
	want := time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC)
	if !item.WorkDate.Equal(want) {
		t.Errorf("WorkDate = %v, want %v", item.WorkDate, want)
	}
	if metrics.submitted != 1 {
		t.Errorf("metrics submitted = %d, want 1", metrics.submitted)
	}
}

func TestRunOnce_Weekend_SkipsEvaluation(t *testing.T) {
	var listed bool
	employees := &mockEmployeeRepo{
		listActiveWithEmailFn: func(ctx context.Context) ([]*model.Employee, error) {
			listed = true
			return nil, nil
		},
	}
	submitter := &mockSubmitter{}

	// 2026-08-29は土曜日、2026-08-30は日曜日
	for _, day := range []int{29, 30} {
		now := time.Date(2026, 8, day, 10, 0, 0, 0, time.UTC)
		e, _ := newTestEvaluator(employees, &mockAttendanceRepo{}, submitter, now)

		summary, err := e.RunOnce(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !summary.Weekend {
			t.Errorf("day=%d: Weekendがtrueでない", day)
		}
	}

	if listed {
		t.Error("週末に従業員一覧が取得された")
	}
	if len(submitter.submitted) != 0 {
		t.Errorf("週末に通知が投入された: %d", len(submitter.submitted))
	}
}

func TestRunOnce_AlreadyClockedIn_Skips(t *testing.T) {
	records := &mockAttendanceRepo{
		entryEmployeeIDsFn: func(ctx context.Context, date time.Time) (map[string]struct{}, error) {
			return map[string]struct{}{"emp-1": {}}, nil
		},
	}
	submitter := &mockSubmitter{}
	e, _ := newTestEvaluator(activeEmployees(testEmployee("emp-1"), testEmployee("emp-2")), records, submitter, weekdayAt(10, 0))

	summary, err := e.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.ClockedIn != 1 {
		t.Errorf("ClockedIn = %d, want 1", summary.ClockedIn)
	}
	if summary.Submitted != 1 {
		t.Errorf("Submitted = %d, want 1", summary.Submitted)
	}
	if len(submitter.submitted) != 1 || submitter.submitted[0].EmployeeID != "emp-2" {
		t.Errorf("打刻済み従業員に通知が投入された: %+v", submitter.submitted)
	}
}

func TestRunOnce_ClockedInWithinTolerance_CountsTooEarly(t *testing.T) {
	records := &mockAttendanceRepo{
		entryEmployeeIDsFn: func(ctx context.Context, date time.Time) (map[string]struct{}, error) {
			return map[string]struct{}{"emp-1": {}}, nil
		},
	}
	submitter := &mockSubmitter{}
	// 許容遅延内（09:10）の打刻済み従業員は閾値判定が先に行われ、
	// ClockedInではなくTooEarlyとして数える
	e, _ := newTestEvaluator(activeEmployees(testEmployee("emp-1")), records, submitter, weekdayAt(9, 10))

	summary, err := e.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.TooEarly != 1 {
		t.Errorf("TooEarly = %d, want 1", summary.TooEarly)
	}
	if summary.ClockedIn != 0 {
		t.Errorf("ClockedIn = %d, want 0", summary.ClockedIn)
	}
	if len(submitter.submitted) != 0 {
		t.Errorf("許容遅延内で通知が投入された: %d", len(submitter.submitted))
	}
}

func TestRunOnce_StoreCallsCarryPerCallTimeout(t *testing.T) {
	var deadlineSet bool
	employees := &mockEmployeeRepo{
		listActiveWithEmailFn: func(ctx context.Context) ([]*model.Employee, error) {
			_, deadlineSet = ctx.Deadline()
			return nil, nil
		},
	}
	submitter := &mockSubmitter{}
	e := NewPresenceEvaluator(
		employees, &mockAttendanceRepo{},
		shift.NewResolver(&mockProfileRepo{}, 0, 0),
		submitter, &nopMetrics{}, testLogger(),
		"https://kintai.example.com/clock-in", 8*time.Second,
		func() time.Time { return weekdayAt(10, 0) },
	)

	if _, err := e.RunOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// ストア呼び出しには呼び出し単位のタイムアウトが設定されること
	if !deadlineSet {
		t.Error("ストア呼び出しのコンテキストに期限が設定されていない")
	}
}

func TestRunOnce_DuplicateSubmission_CountedSeparately(t *testing.T) {
	submitter := &mockSubmitter{
		submitFn: func(ctx context.Context, item *model.NotificationItem) (*notifier.SubmitResult, error) {
			return &notifier.SubmitResult{Duplicate: true}, nil
		},
	}
	e, metrics := newTestEvaluator(activeEmployees(testEmployee("emp-1")), &mockAttendanceRepo{}, submitter, weekdayAt(10, 0))

	summary, err := e.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Duplicates != 1 {
		t.Errorf("Duplicates = %d, want 1", summary.Duplicates)
	}
	if summary.Submitted != 0 {
		t.Errorf("Submitted = %d, want 0", summary.Submitted)
	}
	if metrics.submitted != 0 {
		t.Errorf("重複投入がメトリクスに記録された: %d", metrics.submitted)
	}
}

func TestRunOnce_OneFailureDoesNotStopOthers(t *testing.T) {
	submitter := &mockSubmitter{
		submitFn: func(ctx context.Context, item *model.NotificationItem) (*notifier.SubmitResult, error) {
			if item.EmployeeID == "emp-1" {
				return nil, errors.New("connection refused")
			}
			return &notifier.SubmitResult{State: model.NotificationStateSent}, nil
		},
	}
	e, _ := newTestEvaluator(activeEmployees(testEmployee("emp-1"), testEmployee("emp-2")), &mockAttendanceRepo{}, submitter, weekdayAt(10, 0))

	summary, err := e.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 1人の失敗が他の従業員の評価を妨げないこと
	if summary.Failed != 1 {
		t.Errorf("Failed = %d, want 1", summary.Failed)
	}
	if summary.Submitted != 1 {
		t.Errorf("Submitted = %d, want 1", summary.Submitted)
	}
}

func TestRunOnce_CancelledContext_ReturnsPartialSummary(t *testing.T) {
	submitter := &mockSubmitter{}
	e, _ := newTestEvaluator(activeEmployees(testEmployee("emp-1"), testEmployee("emp-2")), &mockAttendanceRepo{}, submitter, weekdayAt(10, 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := e.RunOnce(ctx)
	// ListActiveWithEmailはモックのためキャンセル済みでも成功する
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !summary.Partial {
		t.Error("キャンセル済みコンテキストで部分サマリにならなかった")
	}
	if len(submitter.submitted) != 0 {
		t.Errorf("キャンセル後に通知が投入された: %d", len(submitter.submitted))
	}
}

func TestRunOnce_ShiftProfileDrivesThreshold(t *testing.T) {
	// 10:00出勤のプロファイルを持つ従業員は09:30時点では通知されない
	profileRepo := &mockProfileRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.ShiftProfile, error) {
			return &model.ShiftProfile{
				ID:              id,
				Type:            model.ProfileTypeContinuous,
				MorningEntryMin: 10 * 60,
				MorningExitMin:  19 * 60,
				Active:          true,
			}, nil
		},
	}
	emp := testEmployee("emp-1")
	emp.ShiftProfileID = "profile-1"

	submitter := &mockSubmitter{}
	metrics := &nopMetrics{}
	e := NewPresenceEvaluator(
		activeEmployees(emp), &mockAttendanceRepo{},
		shift.NewResolver(profileRepo, 0, 0),
		submitter, metrics, testLogger(),
		"https://kintai.example.com/clock-in", 0,
		func() time.Time { return weekdayAt(9, 30) },
	)

	summary, err := e.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.TooEarly != 1 || summary.Submitted != 0 {
		t.Errorf("プロファイルの出勤時刻が反映されていない: %+v", summary)
	}
}
