package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/kintai/internal/attendance"
	"github.com/hitoshi/kintai/internal/config"
	"github.com/hitoshi/kintai/internal/database"
	"github.com/hitoshi/kintai/internal/evaluator"
	"github.com/hitoshi/kintai/internal/handler"
	"github.com/hitoshi/kintai/internal/logger"
	"github.com/hitoshi/kintai/internal/metrics"
	"github.com/hitoshi/kintai/internal/middleware"
	"github.com/hitoshi/kintai/internal/notifier"
	"github.com/hitoshi/kintai/internal/repository"
	"github.com/hitoshi/kintai/internal/security"
	"github.com/hitoshi/kintai/internal/shift"
	"github.com/hitoshi/kintai/internal/worker/remind"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// services はserveとworkerで共有するドメインサービス一式。
type services struct {
	employeeRepo   repository.EmployeeRepository
	attendanceRepo repository.AttendanceRepository
	registry       *prometheus.Registry
	collector      *metrics.Collector
	dispatcher     *notifier.Dispatcher
	evaluator      *evaluator.PresenceEvaluator
}

// buildServices は通知・評価まわりの依存関係をワイヤリングする。
// 起動時にメールゲートウェイURLの安全性を検証し、内部IP指定等の設定ミスを検出する。
func buildServices(cfg *config.Config, db *sql.DB) (*services, error) {
	// 1. リポジトリの初期化
	employeeRepo := repository.NewPostgresEmployeeRepo(db)
	profileRepo := repository.NewPostgresShiftProfileRepo(db)
	attendanceRepo := repository.NewPostgresAttendanceRepo(db)
	notificationRepo := repository.NewPostgresNotificationRepo(db)
	deliveryLogRepo := repository.NewPostgresDeliveryLogRepo(db)

	// 2. メトリクス
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 3. セキュリティサービスとメールゲートウェイクライアント
	egressGuard := security.NewEgressGuard()
	if err := egressGuard.ValidateURL(cfg.MailGatewayURL); err != nil {
		return nil, fmt.Errorf("invalid mail gateway URL: %w", err)
	}
	sanitizer := security.NewMailSanitizer()
	mailer := notifier.NewHTTPMailer(egressGuard, cfg.MailGatewayURL, cfg.MailFrom, cfg.MailTimeout)

	// 4. 通知ディスパッチャと出勤評価ジョブ
	dispatcher := notifier.NewDispatcher(
		notificationRepo, deliveryLogRepo, mailer, sanitizer, collector,
		slog.Default(), cfg.MaxSendAttempts, cfg.StoreTimeout, nil,
	)

	resolver := shift.NewResolver(profileRepo, cfg.DefaultEntryMin, cfg.ToleranceMin)
	presenceEvaluator := evaluator.NewPresenceEvaluator(
		employeeRepo, attendanceRepo, resolver, dispatcher, collector,
		slog.Default(), cfg.BaseURL+"/clock-in", cfg.StoreTimeout, nil,
	)

	return &services{
		employeeRepo:   employeeRepo,
		attendanceRepo: attendanceRepo,
		registry:       registry,
		collector:      collector,
		dispatcher:     dispatcher,
		evaluator:      presenceEvaluator,
	}, nil
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. ドメインサービスのワイヤリング
	svcs, err := buildServices(cfg, db)
	if err != nil {
		return err
	}

	attendanceService := attendance.NewService(svcs.attendanceRepo, cfg.ClockInPolicy, nil)

	// 3. ルーターの構築
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	// configのRateLimitGeneralはreq/min単位なのでreq/secに変換する
	if cfg.RateLimitGeneral > 0 {
		rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
		rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	}
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		HealthChecker:     db,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		TriggerToken:      cfg.TriggerToken,

		AttendanceService: attendanceService,
		EmployeeFinder:    svcs.employeeRepo,
		EmployeeLister:    svcs.employeeRepo,
		ClockMetrics:      svcs.collector,

		TriggerHandler:  handler.NewTriggerHandler(svcs.evaluator, svcs.dispatcher, cfg.RunBudget, cfg.FlushBatchSize),
		MetricsGatherer: svcs.registry,
	}

	router := middleware.NewLoggingMiddleware(slog.Default())(handler.NewRouter(deps))

	// 4. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、出勤評価と配信待ちフラッシュのスケジューラを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. ドメインサービスのワイヤリング
	svcs, err := buildServices(cfg, db)
	if err != nil {
		return err
	}

	// 3. スケジューラの初期化
	scheduler := remind.NewScheduler(svcs.evaluator, svcs.dispatcher, slog.Default(), remind.SchedulerConfig{
		RemindInterval: cfg.RemindInterval,
		FlushInterval:  cfg.FlushInterval,
		RunBudget:      cfg.RunBudget,
		FlushBatchSize: cfg.FlushBatchSize,
	})

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("remind_interval", cfg.RemindInterval),
		slog.Duration("flush_interval", cfg.FlushInterval),
	)

	// スケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
