package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/shaho/internal/model"
)

// PostgresApplicationRepo はPostgreSQLを使用した申請リポジトリ。
// 申請データ（data列）はJSONBで保持し、申請種別コードに応じた型にデコードする。
type PostgresApplicationRepo struct {
	db *sql.DB
}

// NewPostgresApplicationRepo はPostgresApplicationRepoを生成する。
func NewPostgresApplicationRepo(db *sql.DB) *PostgresApplicationRepo {
	return &PostgresApplicationRepo{db: db}
}

const applicationColumns = `id, organization_id, employee_id, type_code, category, status, data,
	deadline, legal_deadline, external_application_status, related_internal_application_ids,
	created_at, updated_at`

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(s rowScanner) (*model.Application, error) {
	app := &model.Application{}
	var category, status string
	var data []byte
	var deadline, legalDeadline sql.NullTime
	var related pq.StringArray

	if err := s.Scan(
		&app.ID, &app.OrganizationID, &app.EmployeeID, &app.TypeCode, &category, &status, &data,
		&deadline, &legalDeadline, &app.ExternalApplicationStatus, &related,
		&app.CreatedAt, &app.UpdatedAt,
	); err != nil {
		return nil, err
	}

	payload, err := model.DecodePayload(app.TypeCode, data)
	if err != nil {
		// 不正な申請データは期限なしとして扱い、一覧取得全体は失敗させない
		slog.Warn("failed to decode application data",
			slog.String("application_id", app.ID),
			slog.String("type_code", app.TypeCode),
			slog.String("error", err.Error()),
		)
		payload, _ = model.DecodePayload(app.TypeCode, nil)
	}

	app.Category = model.Category(category)
	app.Status = model.ApplicationStatus(status)
	app.Payload = payload
	app.Deadline = nullTimePtr(deadline)
	app.LegalDeadline = nullTimePtr(legalDeadline)
	app.RelatedInternalApplicationIDs = []string(related)
	return app, nil
}

// FindByID は指定IDの申請を取得する。見つからない場合はnilを返す。
func (r *PostgresApplicationRepo) FindByID(ctx context.Context, id string) (*model.Application, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE id = $1`,
		id,
	)

	app, err := scanApplication(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("申請の取得に失敗しました: %w", err)
	}
	return app, nil
}

// ListByOrganization は組織の申請一覧をcreated_at昇順で取得する。
func (r *PostgresApplicationRepo) ListByOrganization(ctx context.Context, organizationID string, filter model.ApplicationFilter) ([]*model.Application, error) {
	query, args := buildApplicationListQuery(organizationID, filter)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("申請一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var apps []*model.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("申請のスキャンに失敗しました: %w", err)
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("申請一覧の取得中にエラーが発生しました: %w", err)
	}
	return apps, nil
}

// buildApplicationListQuery はフィルタ条件から申請一覧取得のSQLと引数を組み立てる。
func buildApplicationListQuery(organizationID string, filter model.ApplicationFilter) (string, []any) {
	conds := []string{"organization_id = $1"}
	args := []any{organizationID}

	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		args = append(args, pq.Array(statuses))
		conds = append(conds, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if filter.Category != "" {
		args = append(args, string(filter.Category))
		conds = append(conds, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.EmployeeID != "" {
		args = append(args, filter.EmployeeID)
		conds = append(conds, fmt.Sprintf("employee_id = $%d", len(args)))
	}

	query := `SELECT ` + applicationColumns + ` FROM applications WHERE ` +
		strings.Join(conds, " AND ") + ` ORDER BY created_at ASC`
	return query, args
}

// UpdateDeadlines は法定期限とエントリ期限を更新する。管理者が設定した期限は変更しない。
// 申請データはエントリの deadline 項目だけを書き換え、それ以外の入力内容は保持する。
func (r *PostgresApplicationRepo) UpdateDeadlines(ctx context.Context, id string, legalDeadline *time.Time, payload model.Payload) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var stored []byte
	err = tx.QueryRowContext(ctx,
		`SELECT data FROM applications WHERE id = $1 FOR UPDATE`,
		id,
	).Scan(&stored)
	if err == sql.ErrNoRows {
		return fmt.Errorf("application not found: %s", id)
	}
	if err != nil {
		return fmt.Errorf("申請データの取得に失敗しました: %w", err)
	}

	data, err := model.MergeItemDeadlines(stored, payload)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE applications SET legal_deadline = $2, data = $3, updated_at = now() WHERE id = $1`,
		id, legalDeadline, data,
	); err != nil {
		return fmt.Errorf("申請の期限更新に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func nullTimePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// compile-time interface check
var _ ApplicationRepository = (*PostgresApplicationRepo)(nil)
