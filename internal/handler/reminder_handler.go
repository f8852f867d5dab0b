// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/shaho/internal/deadline"
	"github.com/hitoshi/shaho/internal/middleware"
	"github.com/hitoshi/shaho/internal/model"
	"github.com/hitoshi/shaho/internal/reminder"
)

// ReminderService はリマインダーハンドラーが必要とするサービスインターフェース。
// reminder.Orchestratorが実装する。
type ReminderService interface {
	RunOrganization(ctx context.Context, organizationID string, opts reminder.RunOptions) (reminder.RunResult, error)
	RunEmployee(ctx context.Context, organizationID, employeeID string, opts reminder.RunOptions) (reminder.RunResult, error)
	RecomputeDeadlines(ctx context.Context, organizationID, applicationID string) (deadline.Result, error)
}

// ReminderHandler はリマインダー評価と期限再計算のHTTPハンドラー。
type ReminderHandler struct {
	service ReminderService
	logger  *slog.Logger
}

// NewReminderHandler はReminderHandlerを生成する。
func NewReminderHandler(service ReminderService, logger *slog.Logger) *ReminderHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReminderHandler{service: service, logger: logger}
}

// deadlinesResponse は期限再計算のAPIレスポンス。
type deadlinesResponse struct {
	ApplicationID string          `json:"application_id"`
	LegalDeadline *string         `json:"legal_deadline"`
	ItemDeadlines []string        `json:"item_deadlines"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

// RunOrganization は組織全体のリマインダー評価を即時実行する。
// POST /api/organizations/{orgID}/reminders/run?skipDuplicateCheck=true
// 同じ組織の評価が実行中の場合は409を返す。
func (h *ReminderHandler) RunOrganization(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")

	skip, err := parseBoolQuery(r, "skipDuplicateCheck")
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("skipDuplicateCheck はtrueまたはfalseで指定してください"))
		return
	}

	result, err := h.service.RunOrganization(r.Context(), orgID, reminder.RunOptions{SkipDuplicateCheck: skip})
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.logger.Info("manual reminder run finished",
		slog.String("organization_id", orgID),
		slog.String("user_id", requestUserID(r)),
		slog.Bool("skip_duplicate_check", skip),
		slog.Int("created", result.Created),
	)
	middleware.WriteJSON(w, http.StatusOK, result)
}

// RunEmployee は従業員の入社日・退職日の変更を受けてリマインダー評価を行う。
// POST /api/organizations/{orgID}/employees/{employeeID}/reminders
// 実行中の組織評価がある場合は完了を待ってから評価する。
func (h *ReminderHandler) RunEmployee(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	employeeID := chi.URLParam(r, "employeeID")

	result, err := h.service.RunEmployee(r.Context(), orgID, employeeID, reminder.RunOptions{WaitForLock: true})
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, result)
}

// RecomputeDeadlines は申請1件の法定期限を再計算して保存する。
// POST /api/organizations/{orgID}/applications/{applicationID}/deadlines
func (h *ReminderHandler) RecomputeDeadlines(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	applicationID := chi.URLParam(r, "applicationID")

	computed, err := h.service.RecomputeDeadlines(r.Context(), orgID, applicationID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	resp := deadlinesResponse{
		ApplicationID: applicationID,
		LegalDeadline: formatDate(computed.LegalDeadline),
		ItemDeadlines: []string{},
	}
	for _, d := range computed.ItemDeadlines() {
		resp.ItemDeadlines = append(resp.ItemDeadlines, d.Format(model.DateLayout))
	}
	if computed.Payload != nil {
		raw, err := model.EncodePayload(computed.Payload)
		if err != nil {
			h.handleError(w, r, err)
			return
		}
		resp.Payload = raw
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}

// handleError はサービス層のエラーをHTTPレスポンスに変換する。
func (h *ReminderHandler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, reminder.ErrRunInProgress):
		middleware.WriteErrorResponse(w, http.StatusConflict, model.NewReminderRunLockedError())
	case errors.Is(err, reminder.ErrOrganizationNotFound):
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewOrganizationNotFoundError(chi.URLParam(r, "orgID")))
	case errors.Is(err, reminder.ErrEmployeeNotFound):
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewEmployeeNotFoundError(chi.URLParam(r, "employeeID")))
	case errors.Is(err, reminder.ErrApplicationNotFound):
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewApplicationNotFoundError(chi.URLParam(r, "applicationID")))
	case errors.Is(err, context.Canceled):
		// クライアント切断。レスポンスは届かない
		h.logger.Warn("request canceled", slog.String("path", r.URL.Path))
	default:
		h.logger.Error("internal server error",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
	}
}

func parseBoolQuery(r *http.Request, key string) (bool, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}

func requestUserID(r *http.Request) string {
	userID, _ := middleware.UserIDFromContext(r.Context())
	return userID
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(model.DateLayout)
	return &s
}
