package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/kintai/internal/evaluator"
	"github.com/hitoshi/kintai/internal/notifier"
)

// PresenceCheckRunner は出勤評価ジョブの実行インターフェース。
// evaluator.PresenceEvaluatorの部分集合として定義する。
type PresenceCheckRunner interface {
	RunOnce(ctx context.Context) (*evaluator.RunSummary, error)
}

// PendingFlusher は配信待ち通知のフラッシュ実行インターフェース。
// notifier.Dispatcherの部分集合として定義する。
type PendingFlusher interface {
	FlushPending(ctx context.Context, batchSize int) (*notifier.FlushSummary, error)
}

// TriggerHandler は内部ジョブトリガーのHTTPハンドラー。
// 外部スケジューラ（cron等）からのHTTPトリガーでジョブを1回実行する。
type TriggerHandler struct {
	evaluator PresenceCheckRunner
	flusher   PendingFlusher
	runBudget time.Duration
	batchSize int
}

// NewTriggerHandler はTriggerHandlerを生成する。
// runBudgetはジョブ1回あたりの実行時間上限。
func NewTriggerHandler(evaluator PresenceCheckRunner, flusher PendingFlusher, runBudget time.Duration, batchSize int) *TriggerHandler {
	if runBudget <= 0 {
		runBudget = time.Minute
	}
	return &TriggerHandler{
		evaluator: evaluator,
		flusher:   flusher,
		runBudget: runBudget,
		batchSize: batchSize,
	}
}

// PresenceCheck は出勤評価ジョブを1回実行し、実行サマリを返す。
// POST /internal/jobs/presence-check
func (h *TriggerHandler) PresenceCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.runBudget)
	defer cancel()

	summary, err := h.evaluator.RunOnce(ctx)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}

// FlushPending は配信待ち通知のフラッシュを1回実行し、実行サマリを返す。
// POST /internal/jobs/flush-pending
func (h *TriggerHandler) FlushPending(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.runBudget)
	defer cancel()

	summary, err := h.flusher.FlushPending(ctx, h.batchSize)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}
