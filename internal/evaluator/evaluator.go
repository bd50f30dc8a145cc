// Package evaluator は出勤打刻漏れの評価ジョブを提供する。
// アクティブな従業員ごとに期待出勤時刻と許容遅延を解決し、
// 閾値を超えて未打刻の従業員にリマインド通知を投入する。
package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/kintai/internal/attendance"
	"github.com/hitoshi/kintai/internal/model"
	"github.com/hitoshi/kintai/internal/notifier"
	"github.com/hitoshi/kintai/internal/repository"
	"github.com/hitoshi/kintai/internal/shift"
)

// ReminderSubmitter はリマインド通知の投入インターフェース。
// notifier.Dispatcherの部分集合として定義する。
type ReminderSubmitter interface {
	Submit(ctx context.Context, item *model.NotificationItem) (*notifier.SubmitResult, error)
}

// MetricsRecorder は評価ジョブメトリクスの記録インターフェース。
type MetricsRecorder interface {
	RecordEvaluationRun()
	RecordReminderSubmitted()
}

// RunSummary は評価ジョブ1回分の実行結果。
type RunSummary struct {
	// Weekend は週末のため評価をスキップしたことを示す。
	Weekend bool `json:"weekend"`
	// Active は評価対象（アクティブかつメールアドレスあり）の従業員数。
	Active int `json:"active"`
	// ClockedIn は既に出勤打刻済みでスキップした従業員数。
	ClockedIn int `json:"clocked_in"`
	// TooEarly は許容遅延内のためまだ通知しない従業員数。
	TooEarly int `json:"too_early"`
	// Submitted は新規に通知を投入した従業員数。
	Submitted int `json:"submitted"`
	// Duplicates は同日の通知が既に存在した従業員数。
	Duplicates int `json:"duplicates"`
	// Failed は評価・投入に失敗した従業員数。
	Failed int `json:"failed"`
	// Partial は実行時間上限により途中で中断したことを示す。
	Partial bool `json:"partial"`
}

// PresenceEvaluator は出勤打刻漏れの評価ジョブ本体。
type PresenceEvaluator struct {
	employees    repository.EmployeeRepository
	records      repository.AttendanceRepository
	resolver     *shift.Resolver
	dispatcher   ReminderSubmitter
	metrics      MetricsRecorder
	logger       *slog.Logger
	clockInURL   string
	storeTimeout time.Duration
	now          func() time.Time
}

// NewPresenceEvaluator はPresenceEvaluatorを生成する。
// clockInURLはリマインドメール本文に埋め込む打刻画面のURL。
// storeTimeoutはストア呼び出し1回あたりのタイムアウト。0以下の場合は無制限。
// nowがnilの場合はtime.Nowを使用する。
func NewPresenceEvaluator(
	employees repository.EmployeeRepository,
	records repository.AttendanceRepository,
	resolver *shift.Resolver,
	dispatcher ReminderSubmitter,
	metrics MetricsRecorder,
	logger *slog.Logger,
	clockInURL string,
	storeTimeout time.Duration,
	now func() time.Time,
) *PresenceEvaluator {
	if now == nil {
		now = time.Now
	}
	return &PresenceEvaluator{
		employees:    employees,
		records:      records,
		resolver:     resolver,
		dispatcher:   dispatcher,
		metrics:      metrics,
		logger:       logger,
		clockInURL:   clockInURL,
		storeTimeout: storeTimeout,
		now:          now,
	}
}

// storeCtx はストア呼び出し1回分のタイムアウト付きコンテキストを返す。
// ハングしたDB呼び出しが実行時間上限全体を食い潰すのを防ぐ。
func (e *PresenceEvaluator) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.storeTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.storeTimeout)
}

// RunOnce は評価ジョブを1回実行する。
// 週末（土日）は全従業員の評価をスキップする。
// 1人の従業員の失敗は他の従業員の評価を妨げない。
// コンテキストのキャンセルまたは期限到来時は残りを中断し、部分サマリを返す。
func (e *PresenceEvaluator) RunOnce(ctx context.Context) (*RunSummary, error) {
	e.metrics.RecordEvaluationRun()

	now := e.now()
	summary := &RunSummary{}

	switch now.Weekday() {
	case time.Saturday, time.Sunday:
		summary.Weekend = true
		e.logger.Info("週末のため出勤評価をスキップします",
			slog.String("weekday", now.Weekday().String()),
		)
		return summary, nil
	}

	sctx, cancel := e.storeCtx(ctx)
	employees, err := e.employees.ListActiveWithEmail(sctx)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("評価対象従業員の取得に失敗しました: %w", err)
	}
	summary.Active = len(employees)

	workDate := attendance.DateOnly(now)
	sctx, cancel = e.storeCtx(ctx)
	clockedIn, err := e.records.EntryEmployeeIDsByDate(sctx, workDate)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("当日の出勤打刻一覧の取得に失敗しました: %w", err)
	}

	for _, employee := range employees {
		if ctx.Err() != nil {
			summary.Partial = true
			e.logger.Warn("実行時間上限に達したため出勤評価を中断します",
				slog.Int("active", summary.Active),
				slog.Int("submitted", summary.Submitted),
			)
			break
		}

		if err := e.evaluateOne(ctx, employee, clockedIn, workDate, now, summary); err != nil {
			summary.Failed++
			e.logger.Error("従業員の出勤評価に失敗しました",
				slog.String("employee_id", employee.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	e.logger.Info("出勤評価が完了しました",
		slog.Int("active", summary.Active),
		slog.Int("clocked_in", summary.ClockedIn),
		slog.Int("too_early", summary.TooEarly),
		slog.Int("submitted", summary.Submitted),
		slog.Int("duplicates", summary.Duplicates),
		slog.Int("failed", summary.Failed),
	)

	return summary, nil
}

// evaluateOne は従業員1人を評価し、閾値超過かつ未打刻ならリマインド通知を投入する。
// 許容遅延内の判定を打刻済み判定より先に行うため、閾値前の従業員は
// 打刻の有無にかかわらずTooEarlyとして数える。
func (e *PresenceEvaluator) evaluateOne(ctx context.Context, employee *model.Employee, clockedIn map[string]struct{}, workDate, now time.Time, summary *RunSummary) error {
	sctx, cancel := e.storeCtx(ctx)
	entryMin, toleranceMin, err := e.resolver.ExpectedEntry(sctx, employee)
	cancel()
	if err != nil {
		return err
	}

	// 閾値 = 当日0時 + 期待出勤時刻 + 許容遅延。閾値ちょうどまでは通知しない。
	threshold := workDate.Add(time.Duration(entryMin+toleranceMin) * time.Minute)
	if !now.After(threshold) {
		summary.TooEarly++
		return nil
	}

	if _, ok := clockedIn[employee.ID]; ok {
		summary.ClockedIn++
		return nil
	}

	subject, body, err := notifier.BuildLateReminder(employee.Name, shift.FormatClock(entryMin), e.clockInURL)
	if err != nil {
		return err
	}

	result, err := e.dispatcher.Submit(ctx, &model.NotificationItem{
		ID:         uuid.New().String(),
		EmployeeID: employee.ID,
		Recipient:  employee.Email,
		Subject:    subject,
		Message:    body,
		Type:       model.NotifyTypeLateReminder,
		WorkDate:   workDate,
	})
	if err != nil {
		return err
	}

	if result.Duplicate {
		summary.Duplicates++
		return nil
	}

	summary.Submitted++
	e.metrics.RecordReminderSubmitted()
	return nil
}
