package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/kintai/internal/model"
)

// PostgresAttendanceRepo はPostgreSQLを使用した打刻レコードリポジトリ。
type PostgresAttendanceRepo struct {
	db *sql.DB
}

// NewPostgresAttendanceRepo はPostgresAttendanceRepoを生成する。
func NewPostgresAttendanceRepo(db *sql.DB) *PostgresAttendanceRepo {
	return &PostgresAttendanceRepo{db: db}
}

// Insert は新しい打刻レコードを作成し、採番されたIDを返す。
// オープンレコードの存在チェックは行わない。
func (r *PostgresAttendanceRepo) Insert(ctx context.Context, employeeID string, workDate time.Time, entryTime time.Time) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO attendance_records (employee_id, work_date, entry_time)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		employeeID, workDate, entryTime,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("打刻レコードの作成に失敗しました: %w", err)
	}
	return id, nil
}

// InsertIfNoOpen はオープンレコードが存在しない場合のみ打刻レコードを作成する。
// INSERT ... SELECT ... WHERE NOT EXISTS により、確認と挿入を1文で行う。
// 既にオープンレコードが存在する場合は (0, false, nil) を返す。
func (r *PostgresAttendanceRepo) InsertIfNoOpen(ctx context.Context, employeeID string, workDate time.Time, entryTime time.Time) (int64, bool, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO attendance_records (employee_id, work_date, entry_time)
		 SELECT $1, $2, $3
		 WHERE NOT EXISTS (
		     SELECT 1 FROM attendance_records
		     WHERE employee_id = $1 AND exit_time IS NULL
		 )
		 RETURNING id`,
		employeeID, workDate, entryTime,
	).Scan(&id)

	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("打刻レコードの作成に失敗しました: %w", err)
	}
	return id, true, nil
}

// CloseLatestOpen は最新のオープンレコードに退勤時刻を設定する。
// 対象の選択（id降順・日付フィルタなし）と更新を条件付きUPDATE 1文で行い、
// 同時退勤打刻による二重クローズを防ぐ。
// オープンレコードが存在しない場合は (false, nil) を返す。
func (r *PostgresAttendanceRepo) CloseLatestOpen(ctx context.Context, employeeID string, exitTime time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE attendance_records SET exit_time = $2
		 WHERE id = (
		     SELECT id FROM attendance_records
		     WHERE employee_id = $1 AND exit_time IS NULL
		     ORDER BY id DESC
		     LIMIT 1
		 )
		   AND exit_time IS NULL`,
		employeeID, exitTime,
	)
	if err != nil {
		return false, fmt.Errorf("退勤打刻の更新に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("更新件数の取得に失敗しました: %w", err)
	}

	return affected > 0, nil
}

// ListByDate は指定日の全打刻レコードを従業員情報とJOINして返す。
func (r *PostgresAttendanceRepo) ListByDate(ctx context.Context, date time.Time) ([]model.DailySnapshotRow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT a.id, a.employee_id, e.name, a.entry_time, a.exit_time
		 FROM attendance_records a
		 INNER JOIN employees e ON a.employee_id = e.id
		 WHERE a.work_date = $1
		 ORDER BY a.entry_time`,
		date,
	)
	if err != nil {
		return nil, fmt.Errorf("日次打刻レコードの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var result []model.DailySnapshotRow
	for rows.Next() {
		var row model.DailySnapshotRow
		var exitTime sql.NullTime

		if err := rows.Scan(
			&row.RecordID, &row.EmployeeID, &row.EmployeeName,
			&row.EntryTime, &exitTime,
		); err != nil {
			return nil, fmt.Errorf("日次打刻レコードの読み取りに失敗しました: %w", err)
		}

		row.HasExit = exitTime.Valid
		row.ExitTime = exitTime.Time

		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("日次打刻レコードの走査に失敗しました: %w", err)
	}

	return result, nil
}

// EntryEmployeeIDsByDate は指定日に出勤打刻のある従業員IDの集合を返す。
func (r *PostgresAttendanceRepo) EntryEmployeeIDsByDate(ctx context.Context, date time.Time) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT employee_id FROM attendance_records WHERE work_date = $1`,
		date,
	)
	if err != nil {
		return nil, fmt.Errorf("出勤済み従業員の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("出勤済み従業員の読み取りに失敗しました: %w", err)
		}
		ids[id] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("出勤済み従業員の走査に失敗しました: %w", err)
	}

	return ids, nil
}

// ListByEmployeeInRange は指定従業員の期間内レコードを日付降順・出勤時刻降順で返す。
func (r *PostgresAttendanceRepo) ListByEmployeeInRange(ctx context.Context, employeeID string, from, to time.Time) ([]*model.AttendanceRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, employee_id, work_date, entry_time, exit_time, created_at
		 FROM attendance_records
		 WHERE employee_id = $1 AND work_date BETWEEN $2 AND $3
		 ORDER BY work_date DESC, entry_time DESC`,
		employeeID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("期間内打刻レコードの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var records []*model.AttendanceRecord
	for rows.Next() {
		record := &model.AttendanceRecord{}
		var exitTime sql.NullTime

		if err := rows.Scan(
			&record.ID, &record.EmployeeID, &record.WorkDate,
			&record.EntryTime, &exitTime, &record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("期間内打刻レコードの読み取りに失敗しました: %w", err)
		}

		record.HasExit = exitTime.Valid
		record.ExitTime = exitTime.Time

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("期間内打刻レコードの走査に失敗しました: %w", err)
	}

	return records, nil
}

// compile-time interface check
var _ AttendanceRepository = (*PostgresAttendanceRepo)(nil)
