package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/shaho/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーディレクトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user := &model.User{}
	var employeeID sql.NullString
	var role string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, organization_id, employee_id, email, name, role, created_at, updated_at
		 FROM users WHERE id = $1`,
		id,
	).Scan(&user.ID, &user.OrganizationID, &employeeID, &user.Email, &user.Name, &role, &user.CreatedAt, &user.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	user.Role = model.Role(role)
	user.EmployeeID = nullStringPtr(employeeID)
	return user, nil
}

// FindUserIDByEmployeeID は従業員に紐付くユーザーIDを返す。見つからない場合は空文字を返す。
func (r *PostgresUserRepo) FindUserIDByEmployeeID(ctx context.Context, employeeID string) (string, error) {
	var userID string
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM users WHERE employee_id = $1 ORDER BY created_at LIMIT 1`,
		employeeID,
	).Scan(&userID)

	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("従業員のユーザー取得に失敗しました: %w", err)
	}
	return userID, nil
}

// ListAdminUserIDs は組織の管理者（owner/admin）のユーザーIDを返す。
func (r *PostgresUserRepo) ListAdminUserIDs(ctx context.Context, organizationID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM users
		 WHERE organization_id = $1 AND role IN ('owner', 'admin')
		 ORDER BY created_at`,
		organizationID,
	)
	if err != nil {
		return nil, fmt.Errorf("管理者一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("管理者IDのスキャンに失敗しました: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("管理者一覧の取得中にエラーが発生しました: %w", err)
	}
	return ids, nil
}

// compile-time interface check
var _ UserDirectory = (*PostgresUserRepo)(nil)
