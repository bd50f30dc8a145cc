// Package attendance は打刻レコードの記録と照会を提供する。
package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/kintai/internal/config"
	"github.com/hitoshi/kintai/internal/model"
	"github.com/hitoshi/kintai/internal/repository"
)

// Service は出勤・退勤打刻と日次集計を行う台帳サービス。
type Service struct {
	repo   repository.AttendanceRepository
	policy config.ClockInPolicy
	now    func() time.Time
}

// NewService はServiceを生成する。
// nowがnilの場合はtime.Nowを使用する。
func NewService(repo repository.AttendanceRepository, policy config.ClockInPolicy, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:   repo,
		policy: policy,
		now:    now,
	}
}

// ClockInResult は出勤打刻の結果。
type ClockInResult struct {
	RecordID  int64
	EntryTime time.Time
}

// ClockIn は出勤打刻レコードを作成する。
// ポリシーがsingleの場合、オープンレコードが既に存在すると失敗する。
// multipleの場合は存在チェックを行わず常に新規レコードを作成する。
func (s *Service) ClockIn(ctx context.Context, employeeID string) (*ClockInResult, error) {
	if employeeID == "" {
		return nil, model.NewMissingEmployeeIDError()
	}

	now := s.now()
	workDate := DateOnly(now)

	if s.policy == config.ClockInPolicySingle {
		id, inserted, err := s.repo.InsertIfNoOpen(ctx, employeeID, workDate, now)
		if err != nil {
			return nil, fmt.Errorf("出勤打刻に失敗しました: %w", err)
		}
		if !inserted {
			return nil, model.NewEntryAlreadyOpenError(employeeID)
		}
		return &ClockInResult{RecordID: id, EntryTime: now}, nil
	}

	id, err := s.repo.Insert(ctx, employeeID, workDate, now)
	if err != nil {
		return nil, fmt.Errorf("出勤打刻に失敗しました: %w", err)
	}
	return &ClockInResult{RecordID: id, EntryTime: now}, nil
}

// ClockOut は最新のオープンレコード（日付フィルタなし）に退勤時刻を設定する。
// オープンレコードが存在しない場合はNO_OPEN_ENTRYエラーを返す。
func (s *Service) ClockOut(ctx context.Context, employeeID string) (time.Time, error) {
	if employeeID == "" {
		return time.Time{}, model.NewMissingEmployeeIDError()
	}

	now := s.now()

	closed, err := s.repo.CloseLatestOpen(ctx, employeeID, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("退勤打刻に失敗しました: %w", err)
	}
	if !closed {
		return time.Time{}, model.NewNoOpenEntryError(employeeID)
	}

	return now, nil
}

// DailySnapshot は指定日の出勤状況を集計する。
// Present: 出勤済みかつ未退勤、Left: 退勤済み、Total: 当日の全レコード数。
func (s *Service) DailySnapshot(ctx context.Context, date time.Time) (*model.DailySnapshot, error) {
	rows, err := s.repo.ListByDate(ctx, DateOnly(date))
	if err != nil {
		return nil, fmt.Errorf("日次スナップショットの取得に失敗しました: %w", err)
	}

	snapshot := &model.DailySnapshot{
		Date: DateOnly(date),
		Rows: rows,
	}
	for _, row := range rows {
		if row.HasExit {
			snapshot.Left++
		} else {
			snapshot.Present++
		}
	}
	snapshot.Total = len(rows)

	return snapshot, nil
}

// RecordsForEmployeeInRange は指定従業員の期間内レコードを日付降順で返す。
// レポート出力用。
func (s *Service) RecordsForEmployeeInRange(ctx context.Context, employeeID string, from, to time.Time) ([]*model.AttendanceRecord, error) {
	if employeeID == "" {
		return nil, model.NewMissingEmployeeIDError()
	}

	records, err := s.repo.ListByEmployeeInRange(ctx, employeeID, DateOnly(from), DateOnly(to))
	if err != nil {
		return nil, fmt.Errorf("期間内レコードの取得に失敗しました: %w", err)
	}
	return records, nil
}

// DateOnly は時刻の日付部のみを残す（時刻部を0にする）。
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
