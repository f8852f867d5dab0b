package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/shaho/internal/model"
)

// PostgresNotificationRepo はPostgreSQLを使用した通知リポジトリ。
type PostgresNotificationRepo struct {
	db *sql.DB
}

// NewPostgresNotificationRepo はPostgresNotificationRepoを生成する。
func NewPostgresNotificationRepo(db *sql.DB) *PostgresNotificationRepo {
	return &PostgresNotificationRepo{db: db}
}

// Create は通知を作成する。
func (r *PostgresNotificationRepo) Create(ctx context.Context, n *model.Notification) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notifications
		    (id, user_id, organization_id, application_id, employee_id, type, title, message, read, priority, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		n.ID, n.UserID, n.OrganizationID, n.ApplicationID, n.EmployeeID,
		string(n.Type), n.Title, n.Message, n.Read, string(n.Priority), n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("通知の作成に失敗しました: %w", err)
	}
	return nil
}

// ListByUser は指定ユーザー・組織の通知をcreated_at昇順で取得する。
func (r *PostgresNotificationRepo) ListByUser(ctx context.Context, userID, organizationID string, filter model.NotificationFilter) ([]*model.Notification, error) {
	conds := []string{"user_id = $1", "organization_id = $2"}
	args := []any{userID, organizationID}
	if !filter.CreatedFrom.IsZero() {
		args = append(args, filter.CreatedFrom)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if !filter.CreatedTo.IsZero() {
		args = append(args, filter.CreatedTo)
		conds = append(conds, fmt.Sprintf("created_at < $%d", len(args)))
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, organization_id, application_id, employee_id, type, title, message, read, priority, created_at
		 FROM notifications WHERE `+strings.Join(conds, " AND ")+` ORDER BY created_at ASC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("通知履歴の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var notifications []*model.Notification
	for rows.Next() {
		n := &model.Notification{}
		var applicationID, employeeID sql.NullString
		var typ, priority string
		if err := rows.Scan(
			&n.ID, &n.UserID, &n.OrganizationID, &applicationID, &employeeID,
			&typ, &n.Title, &n.Message, &n.Read, &priority, &n.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("通知のスキャンに失敗しました: %w", err)
		}
		n.ApplicationID = nullStringPtr(applicationID)
		n.EmployeeID = nullStringPtr(employeeID)
		n.Type = model.NotificationType(typ)
		n.Priority = model.NotificationPriority(priority)
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("通知履歴の取得中にエラーが発生しました: %w", err)
	}
	return notifications, nil
}

// DeleteReadBefore はbeforeより前に作成された既読通知を削除する。
func (r *PostgresNotificationRepo) DeleteReadBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE read = true AND created_at < $1`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("既読通知の削除に失敗しました: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

// compile-time interface check
var (
	_ NotificationRepository = (*PostgresNotificationRepo)(nil)
	_ NotificationPurger     = (*PostgresNotificationRepo)(nil)
)
