package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/shaho/internal/middleware"
)

// HealthChecker はDB疎通確認に必要なインターフェース。*sql.DBが実装する。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	UserFinder        middleware.UserFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	StatusRecorder    middleware.StatusRecorder
	Logger            *slog.Logger

	// 運用
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// リマインダー
	ReminderService ReminderService
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → AccessLog → SecurityHeaders → CORS → Session → RateLimit(General) → OrganizationAdmin
//
// /health と /metrics は認証の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewAccessLogMiddleware(logger, deps.StatusRecorder))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	// --- 認証不要のルート ---
	mountOps(r, deps.HealthChecker, deps.MetricsHandler)

	reminderHandler := NewReminderHandler(deps.ReminderService, logger)

	// --- 組織管理者のみのルート ---
	r.Route("/api/organizations/{orgID}", func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewOrganizationAdminMiddleware(deps.UserFinder, func(req *http.Request) string {
			return chi.URLParam(req, "orgID")
		}))

		// 手動実行は専用のレート制限を追加
		r.With(deps.RateLimiter.RunMiddleware()).Post("/reminders/run", reminderHandler.RunOrganization)
		r.Post("/employees/{employeeID}/reminders", reminderHandler.RunEmployee)
		r.Post("/applications/{applicationID}/deadlines", reminderHandler.RecomputeDeadlines)
	})

	return r
}

// NewOpsRouter は /health と /metrics のみを提供するルーターを返す。
// APIを公開しないワーカープロセスで使用する。
func NewOpsRouter(checker HealthChecker, metricsHandler http.Handler) http.Handler {
	r := chi.NewRouter()
	mountOps(r, checker, metricsHandler)
	return r
}

func mountOps(r chi.Router, checker HealthChecker, metricsHandler http.Handler) {
	r.Get("/health", healthHandler(checker))
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}
}

// healthHandler はDB疎通を含むヘルスチェックのハンドラーを返す。
// GET /health
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				middleware.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
