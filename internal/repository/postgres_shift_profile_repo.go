package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/kintai/internal/model"
)

// PostgresShiftProfileRepo はPostgreSQLを使用したシフトプロファイルリポジトリ。
type PostgresShiftProfileRepo struct {
	db *sql.DB
}

// NewPostgresShiftProfileRepo はPostgresShiftProfileRepoを生成する。
func NewPostgresShiftProfileRepo(db *sql.DB) *PostgresShiftProfileRepo {
	return &PostgresShiftProfileRepo{db: db}
}

// FindByID は指定IDのシフトプロファイルを取得する。見つからない場合はnilを返す。
func (r *PostgresShiftProfileRepo) FindByID(ctx context.Context, id string) (*model.ShiftProfile, error) {
	profile := &model.ShiftProfile{}
	var breakStart, breakEnd, afternoonEntry, afternoonExit sql.NullInt64

	err := r.db.QueryRowContext(ctx,
		`SELECT id, profile_type, morning_entry_min, morning_exit_min,
		        break_start_min, break_end_min,
		        afternoon_entry_min, afternoon_exit_min,
		        active, created_at, updated_at
		 FROM shift_profiles WHERE id = $1`,
		id,
	).Scan(
		&profile.ID, &profile.Type,
		&profile.MorningEntryMin, &profile.MorningExitMin,
		&breakStart, &breakEnd,
		&afternoonEntry, &afternoonExit,
		&profile.Active, &profile.CreatedAt, &profile.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("シフトプロファイルの取得に失敗しました: %w", err)
	}

	profile.HasBreak = breakStart.Valid && breakEnd.Valid
	profile.BreakStartMin = int(breakStart.Int64)
	profile.BreakEndMin = int(breakEnd.Int64)
	profile.HasAfternoon = afternoonEntry.Valid && afternoonExit.Valid
	profile.AfternoonEntryMin = int(afternoonEntry.Int64)
	profile.AfternoonExitMin = int(afternoonExit.Int64)

	return profile, nil
}

// compile-time interface check
var _ ShiftProfileRepository = (*PostgresShiftProfileRepo)(nil)
