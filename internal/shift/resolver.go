// Package shift はシフトプロファイルから期待出勤時刻と実働時間を導出する。
package shift

import (
	"context"
	"fmt"

	"github.com/hitoshi/kintai/internal/model"
	"github.com/hitoshi/kintai/internal/repository"
)

const (
	// DefaultEntryMin はシフトプロファイルも従業員既定値もない場合の期待出勤時刻（09:00）。
	DefaultEntryMin = 9 * 60
	// DefaultToleranceMin は期待出勤時刻からの既定の許容遅延（分）。
	DefaultToleranceMin = 15
)

// Resolver は従業員の期待出勤時刻・許容遅延・実働時間を解決する。
type Resolver struct {
	profileRepo     repository.ShiftProfileRepository
	defaultEntryMin int
	toleranceMin    int
}

// NewResolver はResolverを生成する。
// defaultEntryMin・toleranceMinが0以下の場合は既定値を使用する。
func NewResolver(profileRepo repository.ShiftProfileRepository, defaultEntryMin, toleranceMin int) *Resolver {
	if defaultEntryMin <= 0 {
		defaultEntryMin = DefaultEntryMin
	}
	if toleranceMin <= 0 {
		toleranceMin = DefaultToleranceMin
	}
	return &Resolver{
		profileRepo:     profileRepo,
		defaultEntryMin: defaultEntryMin,
		toleranceMin:    toleranceMin,
	}
}

// ExpectedEntry は従業員の期待出勤時刻（0時からの分）と許容遅延（分）を解決する。
// 優先順位: アクティブなシフトプロファイル → 従業員の既定出勤時刻 → 全体既定値。
func (r *Resolver) ExpectedEntry(ctx context.Context, employee *model.Employee) (int, int, error) {
	if employee.ShiftProfileID != "" {
		profile, err := r.profileRepo.FindByID(ctx, employee.ShiftProfileID)
		if err != nil {
			return 0, 0, fmt.Errorf("シフトプロファイルの解決に失敗しました: %w", err)
		}
		if profile != nil && profile.Active {
			return profile.MorningEntryMin, r.toleranceMin, nil
		}
	}

	if employee.DefaultEntryMin > 0 {
		return employee.DefaultEntryMin, r.toleranceMin, nil
	}

	return r.defaultEntryMin, r.toleranceMin, nil
}

// EffectiveHours はプロファイルの1日の実働時間（分）を計算する。
// continuous: (退勤 - 出勤) から休憩区間（両端が設定されている場合のみ）を引く。
// split: 午前区間と午後区間の長さの合計。
// 表示・レポート用であり、通知タイミングの判定には使用しない。
func EffectiveHours(profile *model.ShiftProfile) int {
	switch profile.Type {
	case model.ProfileTypeSplit:
		morning := profile.MorningExitMin - profile.MorningEntryMin
		afternoon := 0
		if profile.HasAfternoon {
			afternoon = profile.AfternoonExitMin - profile.AfternoonEntryMin
		}
		return morning + afternoon
	default:
		total := profile.MorningExitMin - profile.MorningEntryMin
		if profile.HasBreak {
			total -= profile.BreakEndMin - profile.BreakStartMin
		}
		return total
	}
}

// FormatMinutes は分数を "8h 0m" 形式の表示文字列に変換する。
func FormatMinutes(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}

// FormatClock は0時からの分数を "09:00" 形式の時刻文字列に変換する。
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
