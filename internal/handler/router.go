package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/kintai/internal/metrics"
	"github.com/hitoshi/kintai/internal/middleware"
)

// HealthChecker はヘルスチェックに必要なインターフェース。
// sql.DBのPingメソッドを満たす。
type HealthChecker interface {
	Ping() error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	HealthChecker     HealthChecker
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	TriggerToken      string

	// 打刻・照会
	AttendanceService AttendanceServiceInterface
	EmployeeFinder    EmployeeFinder
	EmployeeLister    EmployeeListerInterface
	ClockMetrics      ClockMetricsRecorder

	// 内部ジョブ
	TriggerHandler *TriggerHandler

	// メトリクス公開
	MetricsGatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → (グループ別) RateLimit / TriggerAuth
//
// アクセスログミドルウェアは呼び出し側がルーター全体を包む形で適用する。
// /health と /metrics はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	attendanceHandler := NewAttendanceHandler(deps.AttendanceService, deps.EmployeeFinder, deps.ClockMetrics)
	employeeHandler := NewEmployeeHandler(deps.EmployeeLister)

	// ヘルスチェック
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := deps.HealthChecker.Ping(); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy"})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	// Prometheusスクレイプ
	if deps.MetricsGatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	// --- 打刻・照会API ---
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/api/attendance", func(r chi.Router) {
			r.Post("/clock-in", attendanceHandler.ClockIn)
			r.Post("/clock-out", attendanceHandler.ClockOut)
			r.Get("/snapshot", attendanceHandler.Snapshot)
		})

		r.Route("/api/employees", func(r chi.Router) {
			r.Get("/", employeeHandler.ListEmployees)
			r.Get("/{id}/records", attendanceHandler.ListRecords)
		})
	})

	// --- 内部ジョブトリガー ---
	// トリガートークン認証をハンドラー本体の前に適用する
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewTriggerAuthMiddleware(deps.TriggerToken))
		r.Use(deps.RateLimiter.TriggerMiddleware())

		r.Route("/internal/jobs", func(r chi.Router) {
			r.Post("/presence-check", deps.TriggerHandler.PresenceCheck)
			r.Post("/flush-pending", deps.TriggerHandler.FlushPending)
		})
	})

	return r
}
