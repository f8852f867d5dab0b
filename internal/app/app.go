// Package app はプロセスの起動とコンポーネントのワイヤリングを行う。
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/shaho/internal/config"
	"github.com/hitoshi/shaho/internal/database"
	"github.com/hitoshi/shaho/internal/deadline"
	"github.com/hitoshi/shaho/internal/event"
	"github.com/hitoshi/shaho/internal/handler"
	"github.com/hitoshi/shaho/internal/lock"
	"github.com/hitoshi/shaho/internal/logger"
	"github.com/hitoshi/shaho/internal/metrics"
	"github.com/hitoshi/shaho/internal/middleware"
	"github.com/hitoshi/shaho/internal/reminder"
	"github.com/hitoshi/shaho/internal/repository"
	"github.com/hitoshi/shaho/internal/security"
	"github.com/hitoshi/shaho/internal/worker/cleanup"
	reminderworker "github.com/hitoshi/shaho/internal/worker/reminder"
)

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、環境変数からConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 設定読み込み前にログを使えるようにする
	logger.SetupDefault(w)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
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
		slog.String("timezone", cfg.ReminderTimezone),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandRemind:
		opts, err := ParseRemindArgs(args[1:])
		if err != nil {
			return err
		}
		return runRemind(cfg, opts)
	default:
		return runServe(cfg)
	}
}

// components はserve/worker/remindで共有するワイヤリング済みの依存関係。
type components struct {
	db            *sql.DB
	registry      *prometheus.Registry
	collector     *metrics.Collector
	organization  *repository.PostgresOrganizationRepo
	notifications *repository.PostgresNotificationRepo
	sessions      *repository.PostgresSessionRepo
	users         *repository.PostgresUserRepo
	orchestrator  *reminder.Orchestrator
	publisher     event.Publisher
	closers       []func() error
}

// Close は保持しているコネクションを逆順に閉じる。
func (c *components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			slog.Warn("failed to close component", slog.String("error", err.Error()))
		}
	}
}

// build はDB接続を開き、リマインダーエンジンを構成する。
func build(cfg *config.Config) (*components, error) {
	db, err := database.Connect(context.Background(), cfg.DatabaseURL, database.DefaultPoolConfig())
	if err != nil {
		return nil, err
	}
	c := &components{db: db, closers: []func() error{db.Close}}
	slog.Info("database connection established")
	warnSchemaStatus(cfg.DatabaseURL)

	loc, err := cfg.Location()
	if err != nil {
		c.Close()
		return nil, err
	}

	locker, err := newLocker(cfg, c)
	if err != nil {
		c.Close()
		return nil, err
	}

	c.publisher, err = newPublisher(cfg)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.closers = append(c.closers, c.publisher.Close)

	c.registry = metrics.NewRegistry()
	c.collector = metrics.NewCollector(c.registry)

	applications := repository.NewPostgresApplicationRepo(db)
	c.notifications = repository.NewPostgresNotificationRepo(db)
	c.organization = repository.NewPostgresOrganizationRepo(db)
	c.sessions = repository.NewPostgresSessionRepo(db)
	c.users = repository.NewPostgresUserRepo(db)

	calc := deadline.NewCalculator(deadline.Options{
		ChangeNoticeDays: cfg.ChangeNoticeDays,
		Location:         loc,
	})

	c.orchestrator = reminder.NewOrchestrator(reminder.Dependencies{
		Applications:  applications,
		Employees:     repository.NewPostgresEmployeeRepo(db),
		Organizations: c.organization,
		Notifications: c.notifications,
		Users:         c.users,
		Calculator:    calc,
		Evaluator:     reminder.NewEvaluator(calc, loc, cfg.ReminderDayOfHour),
		Gate:          reminder.NewGate(c.notifications, loc),
		Locker:        locker,
		Publisher:     c.publisher,
		Metrics:       c.collector,
		Sanitizer:     security.NewTextSanitizer(),
		Logger:        slog.Default(),
	})
	return c, nil
}

// newLocker はREDIS_URLが設定されていればRedisの分散ロックを、なければプロセス内ロックを返す。
func newLocker(cfg *config.Config, c *components) (lock.Locker, error) {
	if cfg.RedisURL == "" {
		slog.Info("REDIS_URL is not set; using in-process organization lock")
		return lock.NewLocalLocker(), nil
	}
	client, err := lock.NewRedisClient(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, client.Close)
	return lock.NewRedisLocker(client, cfg.OrgLockTTL), nil
}

// warnSchemaStatus は未マイグレーションや失敗したマイグレーションが残っている場合に警告する。
// 起動は継続する。
func warnSchemaStatus(databaseURL string) {
	status, err := database.Status(databaseURL)
	switch {
	case err != nil:
		slog.Warn("failed to read schema version", slog.String("error", err.Error()))
	case status.Version == 0:
		slog.Warn("database schema is not migrated; run the migrate subcommand")
	case status.Dirty:
		slog.Warn("database schema is dirty", slog.Uint64("version", uint64(status.Version)))
	}
}

// newPublisher はKAFKA_BROKERSが設定されていればKafkaへのイベント発行を有効にする。
func newPublisher(cfg *config.Config) (event.Publisher, error) {
	if len(cfg.KafkaBrokers) == 0 {
		return event.NopPublisher{}, nil
	}
	return event.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaNotificationTopic, slog.Default())
}

// runServe はAPIサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	c, err := build(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	rateLimiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitRun))
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		SessionFinder:     c.sessions,
		UserFinder:        c.users,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		StatusRecorder:    c.collector,
		Logger:            slog.Default(),
		HealthChecker:     c.db,
		MetricsHandler:    metrics.Handler(c.registry),
		ReminderService:   c.orchestrator,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serveHTTP(ctx, newServer(cfg.ServerPort, router), "API server")
}

// runWorker はワーカーモードで起動する。
// リマインダースケジューラと通知クリーンアップジョブを実行し、/health と /metrics を公開する。
func runWorker(cfg *config.Config) error {
	c, err := build(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scheduler := reminderworker.NewScheduler(
		c.organization, c.orchestrator, c.collector, slog.Default(), cfg.ReminderMaxConcurrent,
	)
	cleanupJob := cleanup.NewNotificationCleanupJob(c.notifications, slog.Default(), cfg.NotificationRetentionDays)

	slog.Info("worker starting",
		slog.Duration("reminder_interval", cfg.ReminderInterval),
		slog.Int("max_concurrent", cfg.ReminderMaxConcurrent),
	)

	go cleanupJob.Start(ctx, 24*time.Hour)

	opsServer := newServer(cfg.ServerPort, handler.NewOpsRouter(c.db, metrics.Handler(c.registry)))
	go func() {
		if err := serveHTTP(ctx, opsServer, "worker ops server"); err != nil {
			slog.Error("worker ops server failed", slog.String("error", err.Error()))
		}
	}()

	// スケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.ReminderInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runRemind はリマインダー評価を1回だけ実行して終了する。
// 組織IDが指定されていればその組織のみ、なければリマインダー設定を持つ全組織を評価する。
func runRemind(cfg *config.Config, opts RemindOptions) error {
	c, err := build(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if opts.OrganizationID == "" {
		scheduler := reminderworker.NewScheduler(
			c.organization, c.orchestrator, c.collector, slog.Default(), cfg.ReminderMaxConcurrent,
		)
		return scheduler.RunOnce(ctx)
	}

	result, err := c.orchestrator.RunOrganization(ctx, opts.OrganizationID, reminder.RunOptions{
		SkipDuplicateCheck: opts.SkipDuplicateCheck,
		WaitForLock:        true,
	})
	if err != nil {
		return fmt.Errorf("reminder run failed: %w", err)
	}
	slog.Info("reminder run finished",
		slog.String("organization_id", opts.OrganizationID),
		slog.Int("evaluated", result.Evaluated),
		slog.Int("created", result.Created),
		slog.Int("suppressed", result.Suppressed),
		slog.Int("failed", result.Failed),
	)
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	status, err := database.Migrate(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(status.Version)),
		slog.Bool("dirty", status.Dirty),
	)
	return nil
}

func newServer(port string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:         ":" + port,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// serveHTTP はctxがキャンセルされるまでサーバーを実行し、グレースフルシャットダウンする。
func serveHTTP(ctx context.Context, server *http.Server, name string) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info(name+" starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("%s listen error: %w", name, err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down " + name + "...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("%s shutdown failed: %w", name, err)
	}
	slog.Info(name + " stopped gracefully")
	return nil
}

// runHealthcheck はdistroless環境でのDockerヘルスチェック用サブコマンド。
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

// maskDatabaseURL はデータベースURLのユーザー情報をマスクする。
func maskDatabaseURL(url string) string {
	scheme, rest, ok := strings.Cut(url, "://")
	if !ok {
		return "***"
	}
	if _, host, found := strings.Cut(rest, "@"); found {
		return scheme + "://***@" + host
	}
	return scheme + "://" + rest
}
