package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/shaho/internal/model"
)

// PostgresEmployeeRepo はPostgreSQLを使用した従業員リポジトリ。
type PostgresEmployeeRepo struct {
	db *sql.DB
}

// NewPostgresEmployeeRepo はPostgresEmployeeRepoを生成する。
func NewPostgresEmployeeRepo(db *sql.DB) *PostgresEmployeeRepo {
	return &PostgresEmployeeRepo{db: db}
}

const employeeColumns = `id, organization_id, name, join_date, retirement_date, created_at, updated_at`

func scanEmployee(s rowScanner) (*model.Employee, error) {
	emp := &model.Employee{}
	var joinDate, retirementDate sql.NullTime
	if err := s.Scan(
		&emp.ID, &emp.OrganizationID, &emp.Name, &joinDate, &retirementDate,
		&emp.CreatedAt, &emp.UpdatedAt,
	); err != nil {
		return nil, err
	}
	emp.JoinDate = nullTimePtr(joinDate)
	emp.RetirementDate = nullTimePtr(retirementDate)
	return emp, nil
}

// FindByID は指定IDの従業員を取得する。見つからない場合はnilを返す。
func (r *PostgresEmployeeRepo) FindByID(ctx context.Context, id string) (*model.Employee, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE id = $1`,
		id,
	)
	emp, err := scanEmployee(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("従業員の取得に失敗しました: %w", err)
	}
	return emp, nil
}

// ListByOrganization は組織の全従業員を取得する。
func (r *PostgresEmployeeRepo) ListByOrganization(ctx context.Context, organizationID string) ([]*model.Employee, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE organization_id = $1 ORDER BY created_at`,
		organizationID,
	)
	if err != nil {
		return nil, fmt.Errorf("従業員一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var employees []*model.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("従業員のスキャンに失敗しました: %w", err)
		}
		employees = append(employees, emp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("従業員一覧の取得中にエラーが発生しました: %w", err)
	}
	return employees, nil
}

// compile-time interface check
var _ EmployeeRepository = (*PostgresEmployeeRepo)(nil)
