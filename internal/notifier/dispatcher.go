// Package notifier はリマインド通知の配信キューと送信処理を提供する。
// ディスパッチャ、メールゲートウェイクライアント、再試行/バックオフ戦略を含む。
package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/kintai/internal/model"
	"github.com/hitoshi/kintai/internal/repository"
)

// Sanitizer はメール本文HTMLのサニタイズのインターフェース。
type Sanitizer interface {
	Sanitize(rawHTML string) string
}

// MetricsRecorder は通知配信メトリクスの記録インターフェース。
type MetricsRecorder interface {
	RecordNotificationSent()
	RecordNotificationRetried()
	RecordNotificationFailed()
	RecordMailLatency(d time.Duration)
}

// SubmitResult は通知アイテム投入の結果。
type SubmitResult struct {
	// Duplicate は冪等キー重複により新規作成されなかったことを示す。
	Duplicate bool
	// State は配信試行後のアイテム状態（Duplicateの場合はゼロ値）。
	State model.NotificationState
}

// FlushSummary はFlushPending 1回分の実行結果。
type FlushSummary struct {
	Picked  int  `json:"picked"`
	Sent    int  `json:"sent"`
	Retried int  `json:"retried"`
	Failed  int  `json:"failed"`
	Errors  int  `json:"errors"`
	Partial bool `json:"partial"`
}

// Dispatcher は通知アイテムの永続化と配信を行う。
// 送信失敗時は最大試行回数まで指数バックオフで再試行し、
// 上限到達または恒久的エラーで終了失敗状態にする。
type Dispatcher struct {
	items        repository.NotificationRepository
	logs         repository.DeliveryLogRepository
	mailer       Mailer
	sanitizer    Sanitizer
	metrics      MetricsRecorder
	logger       *slog.Logger
	maxAttempts  int
	storeTimeout time.Duration
	now          func() time.Time
}

// NewDispatcher はDispatcherを生成する。
// maxAttemptsが0以下の場合はデフォルト値3を使用する。
// storeTimeoutはストア呼び出し1回あたりのタイムアウト。0以下の場合は無制限。
// nowがnilの場合はtime.Nowを使用する。
func NewDispatcher(
	items repository.NotificationRepository,
	logs repository.DeliveryLogRepository,
	mailer Mailer,
	sanitizer Sanitizer,
	metrics MetricsRecorder,
	logger *slog.Logger,
	maxAttempts int,
	storeTimeout time.Duration,
	now func() time.Time,
) *Dispatcher {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{
		items:        items,
		logs:         logs,
		mailer:       mailer,
		sanitizer:    sanitizer,
		metrics:      metrics,
		logger:       logger,
		maxAttempts:  maxAttempts,
		storeTimeout: storeTimeout,
		now:          now,
	}
}

// storeCtx はストア呼び出し1回分のタイムアウト付きコンテキストを返す。
// ハングしたDB呼び出しが実行時間上限全体を食い潰すのを防ぐ。
func (d *Dispatcher) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.storeTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d.storeTimeout)
}

// Submit は通知アイテムを永続化し、即時配信を試みる。
// 冪等キー (employee_id, work_date, notify_type) が既に存在する場合は
// 何もせずDuplicateを返す。重複起動した評価ジョブからの二重投入はここで吸収される。
// 配信失敗はエラーではなくState（pending/failed）として返る。
func (d *Dispatcher) Submit(ctx context.Context, item *model.NotificationItem) (*SubmitResult, error) {
	now := d.now()
	item.State = model.NotificationStatePending
	item.Attempts = 0
	item.NextAttemptAt = now
	item.CreatedAt = now
	item.UpdatedAt = now

	sctx, cancel := d.storeCtx(ctx)
	created, err := d.items.CreateIfAbsent(sctx, item)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("通知アイテムの投入に失敗しました: %w", err)
	}
	if !created {
		d.logger.Info("通知アイテムは既に存在するためスキップします",
			slog.String("employee_id", item.EmployeeID),
			slog.String("work_date", item.WorkDate.Format("2006-01-02")),
		)
		return &SubmitResult{Duplicate: true}, nil
	}

	state, err := d.deliver(ctx, item)
	if err != nil {
		return nil, err
	}

	return &SubmitResult{State: state}, nil
}

// FlushPending はpending状態かつ次回試行時刻が到来したアイテムを
// 最大batchSize件クレームし、順次配信を試みる。
// クレームは原子的に行われるため、重複起動したフラッシュジョブが
// 同一アイテムを二重送信することはない。
// 1件の失敗は他のアイテムの処理を妨げない。
// コンテキストのキャンセルまたは期限到来時は残りを中断し、部分サマリを返す。
func (d *Dispatcher) FlushPending(ctx context.Context, batchSize int) (*FlushSummary, error) {
	if batchSize <= 0 {
		batchSize = 50
	}

	sctx, cancel := d.storeCtx(ctx)
	items, err := d.items.ClaimPendingDue(sctx, batchSize)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("配信待ちアイテムのクレームに失敗しました: %w", err)
	}

	summary := &FlushSummary{Picked: len(items)}

	for _, item := range items {
		if ctx.Err() != nil {
			summary.Partial = true
			d.logger.Warn("実行時間上限に達したためフラッシュを中断します",
				slog.Int("picked", summary.Picked),
				slog.Int("processed", summary.Sent+summary.Retried+summary.Failed+summary.Errors),
			)
			break
		}

		state, err := d.deliver(ctx, item)
		if err != nil {
			summary.Errors++
			d.logger.Error("通知アイテムの配信処理に失敗しました",
				slog.String("item_id", item.ID),
				slog.String("error", err.Error()),
			)
			continue
		}

		switch state {
		case model.NotificationStateSent:
			summary.Sent++
		case model.NotificationStatePending:
			summary.Retried++
		case model.NotificationStateFailed:
			summary.Failed++
		}
	}

	d.logger.Info("配信待ちフラッシュが完了しました",
		slog.Int("picked", summary.Picked),
		slog.Int("sent", summary.Sent),
		slog.Int("retried", summary.Retried),
		slog.Int("failed", summary.Failed),
		slog.Int("errors", summary.Errors),
	)

	return summary, nil
}

// deliver はアイテム1件の送信を試み、結果に応じて状態を更新する。
// 送信試行ごとにDeliveryLogを追記する。
// 戻り値は更新後のアイテム状態。状態更新自体の失敗のみをエラーとして返す。
func (d *Dispatcher) deliver(ctx context.Context, item *model.NotificationItem) (model.NotificationState, error) {
	start := d.now()
	attempts := item.Attempts + 1

	msg := Message{
		To:      item.Recipient,
		Subject: item.Subject,
		HTML:    d.sanitizer.Sanitize(item.Message),
		Text:    PlainText(item.Message),
	}

	providerID, sendErr := d.mailer.Send(ctx, msg)
	d.metrics.RecordMailLatency(time.Since(start))

	if sendErr == nil {
		sctx, cancel := d.storeCtx(ctx)
		err := d.items.MarkSent(sctx, item.ID, attempts)
		cancel()
		if err != nil {
			return "", fmt.Errorf("配信成功の記録に失敗しました: %w", err)
		}
		d.appendLog(ctx, item, model.NotificationStateSent, "", providerID)
		d.metrics.RecordNotificationSent()

		d.logger.Info("リマインド通知を送信しました",
			slog.String("item_id", item.ID),
			slog.String("employee_id", item.EmployeeID),
			slog.Int("attempts", attempts),
		)
		return model.NotificationStateSent, nil
	}

	// 送信失敗: ステータスコードで再試行可否を分類する。
	// 接続エラー等のステータスコードがない失敗は再試行可能として扱う。
	outcome := SendOutcomeRetry
	var gwErr *GatewayError
	if errors.As(sendErr, &gwErr) {
		outcome = ClassifyHTTPStatus(gwErr.StatusCode)
	}

	if outcome == SendOutcomeStop || attempts >= d.maxAttempts {
		sctx, cancel := d.storeCtx(ctx)
		err := d.items.MarkFailed(sctx, item.ID, attempts)
		cancel()
		if err != nil {
			return "", fmt.Errorf("配信失敗の記録に失敗しました: %w", err)
		}
		d.appendLog(ctx, item, model.NotificationStateFailed, sendErr.Error(), "")
		d.metrics.RecordNotificationFailed()

		d.logger.Error("リマインド通知の配信に失敗しました（終了）",
			slog.String("item_id", item.ID),
			slog.String("employee_id", item.EmployeeID),
			slog.Int("attempts", attempts),
			slog.String("error", sendErr.Error()),
		)
		return model.NotificationStateFailed, nil
	}

	nextAttemptAt := d.now().Add(CalculateBackoff(attempts))
	sctx, cancel := d.storeCtx(ctx)
	err := d.items.MarkRetry(sctx, item.ID, attempts, nextAttemptAt)
	cancel()
	if err != nil {
		return "", fmt.Errorf("再試行予約の記録に失敗しました: %w", err)
	}
	d.appendLog(ctx, item, model.NotificationStateFailed, sendErr.Error(), "")
	d.metrics.RecordNotificationRetried()

	d.logger.Warn("リマインド通知の配信に失敗しました（再試行予約）",
		slog.String("item_id", item.ID),
		slog.String("employee_id", item.EmployeeID),
		slog.Int("attempts", attempts),
		slog.Time("next_attempt_at", nextAttemptAt),
		slog.String("error", sendErr.Error()),
	)
	return model.NotificationStatePending, nil
}

// appendLog は配信試行ログを追記する。
// 監査ログの追記失敗は配信結果に影響させず、ログ出力のみ行う。
func (d *Dispatcher) appendLog(ctx context.Context, item *model.NotificationItem, result model.NotificationState, errMsg, providerID string) {
	sctx, cancel := d.storeCtx(ctx)
	defer cancel()
	err := d.logs.Append(sctx, &model.DeliveryLog{
		EmployeeID:   item.EmployeeID,
		Type:         item.Type,
		Recipient:    item.Recipient,
		Subject:      item.Subject,
		ResultState:  result,
		ErrorMessage: errMsg,
		ProviderID:   providerID,
	})
	if err != nil {
		d.logger.Error("配信ログの追記に失敗しました",
			slog.String("item_id", item.ID),
			slog.String("error", err.Error()),
		)
	}
}
