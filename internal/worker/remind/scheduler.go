// Package remind はリマインド通知のバックグラウンド実行を提供する。
// 出勤評価ジョブと配信待ちフラッシュを定期実行するスケジューラを含む。
package remind

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/kintai/internal/evaluator"
	"github.com/hitoshi/kintai/internal/notifier"
)

// PresenceChecker は出勤評価ジョブの実行インターフェース。
type PresenceChecker interface {
	RunOnce(ctx context.Context) (*evaluator.RunSummary, error)
}

// PendingFlusher は配信待ち通知のフラッシュ実行インターフェース。
type PendingFlusher interface {
	FlushPending(ctx context.Context, batchSize int) (*notifier.FlushSummary, error)
}

// SchedulerConfig はスケジューラの実行間隔と上限の設定。
type SchedulerConfig struct {
	RemindInterval time.Duration // 出勤評価の実行間隔
	FlushInterval  time.Duration // 配信待ちフラッシュの実行間隔
	RunBudget      time.Duration // ジョブ1回あたりの実行時間上限
	FlushBatchSize int           // フラッシュ1回あたりの最大処理件数
}

// Scheduler は出勤評価と配信待ちフラッシュの定期実行を行う。
// ジョブ1回ごとに実行時間上限付きのコンテキストを生成し、
// 上限超過時はジョブ側が部分サマリを返して中断する。
type Scheduler struct {
	checker PresenceChecker
	flusher PendingFlusher
	logger  *slog.Logger
	config  SchedulerConfig
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// 間隔・上限が0以下の場合はデフォルト値を使用する。
func NewScheduler(checker PresenceChecker, flusher PendingFlusher, logger *slog.Logger, config SchedulerConfig) *Scheduler {
	if config.RemindInterval <= 0 {
		config.RemindInterval = 5 * time.Minute
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = 10 * time.Minute
	}
	if config.RunBudget <= 0 {
		config.RunBudget = time.Minute
	}
	if config.FlushBatchSize <= 0 {
		config.FlushBatchSize = 50
	}
	return &Scheduler{
		checker: checker,
		flusher: flusher,
		logger:  logger,
		config:  config,
	}
}

// Start はティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context) {
	remindTicker := time.NewTicker(s.config.RemindInterval)
	defer remindTicker.Stop()
	flushTicker := time.NewTicker(s.config.FlushInterval)
	defer flushTicker.Stop()

	s.logger.Info("リマインドスケジューラを開始しました",
		slog.Duration("remind_interval", s.config.RemindInterval),
		slog.Duration("flush_interval", s.config.FlushInterval),
		slog.Duration("run_budget", s.config.RunBudget),
	)

	// 起動直後に1回実行
	s.RunPresenceCheck(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("リマインドスケジューラを停止しました")
			return
		case <-remindTicker.C:
			s.RunPresenceCheck(ctx)
		case <-flushTicker.C:
			s.RunFlush(ctx)
		}
	}
}

// RunPresenceCheck は実行時間上限付きで出勤評価ジョブを1回実行する。
func (s *Scheduler) RunPresenceCheck(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, s.config.RunBudget)
	defer cancel()

	summary, err := s.checker.RunOnce(runCtx)
	if err != nil {
		s.logger.Error("出勤評価ジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return
	}

	if summary.Partial {
		s.logger.Warn("出勤評価ジョブが実行時間上限により中断されました",
			slog.Int("active", summary.Active),
			slog.Int("submitted", summary.Submitted),
		)
	}
}

// RunFlush は実行時間上限付きで配信待ちフラッシュを1回実行する。
func (s *Scheduler) RunFlush(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, s.config.RunBudget)
	defer cancel()

	summary, err := s.flusher.FlushPending(runCtx, s.config.FlushBatchSize)
	if err != nil {
		s.logger.Error("配信待ちフラッシュの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return
	}

	if summary.Partial {
		s.logger.Warn("配信待ちフラッシュが実行時間上限により中断されました",
			slog.Int("picked", summary.Picked),
			slog.Int("sent", summary.Sent),
		)
	}
}
