package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/shaho/internal/model"
)

// PostgresOrganizationRepo はPostgreSQLを使用した組織設定リポジトリ。
// リマインダー設定はorganizations.reminder_settings（JSONB）に保持する。
type PostgresOrganizationRepo struct {
	db *sql.DB
}

// NewPostgresOrganizationRepo はPostgresOrganizationRepoを生成する。
func NewPostgresOrganizationRepo(db *sql.DB) *PostgresOrganizationRepo {
	return &PostgresOrganizationRepo{db: db}
}

// FindConfig は組織の申請種別とリマインダー設定を取得する。組織が存在しない場合はnilを返す。
func (r *PostgresOrganizationRepo) FindConfig(ctx context.Context, organizationID string) (*model.OrganizationConfig, error) {
	cfg := &model.OrganizationConfig{}
	var settings []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, reminder_settings FROM organizations WHERE id = $1`,
		organizationID,
	).Scan(&cfg.OrganizationID, &cfg.Name, &settings)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("組織設定の取得に失敗しました: %w", err)
	}

	if len(settings) > 0 && string(settings) != "null" {
		rs := &model.ReminderSettings{}
		if err := json.Unmarshal(settings, rs); err != nil {
			return nil, fmt.Errorf("リマインダー設定のデコードに失敗しました: %w", err)
		}
		cfg.ReminderSettings = rs
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, code, category, name FROM application_types
		 WHERE organization_id = $1 ORDER BY code`,
		organizationID,
	)
	if err != nil {
		return nil, fmt.Errorf("申請種別の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t model.ApplicationType
		var category string
		if err := rows.Scan(&t.ID, &t.Code, &category, &t.Name); err != nil {
			return nil, fmt.Errorf("申請種別のスキャンに失敗しました: %w", err)
		}
		t.Category = model.Category(category)
		cfg.ApplicationTypes = append(cfg.ApplicationTypes, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("申請種別の取得中にエラーが発生しました: %w", err)
	}

	return cfg, nil
}

// ListIDsWithReminderSettings はリマインダー設定が登録された組織のIDを返す。
func (r *PostgresOrganizationRepo) ListIDsWithReminderSettings(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM organizations
		 WHERE reminder_settings IS NOT NULL AND reminder_settings <> 'null'::jsonb
		 ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("組織一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("組織IDのスキャンに失敗しました: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("組織一覧の取得中にエラーが発生しました: %w", err)
	}
	return ids, nil
}

// compile-time interface check
var _ OrganizationRepository = (*PostgresOrganizationRepo)(nil)
