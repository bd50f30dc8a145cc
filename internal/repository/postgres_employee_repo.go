package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/kintai/internal/model"
)

// PostgresEmployeeRepo はPostgreSQLを使用した従業員リポジトリ。
type PostgresEmployeeRepo struct {
	db *sql.DB
}

// NewPostgresEmployeeRepo はPostgresEmployeeRepoを生成する。
func NewPostgresEmployeeRepo(db *sql.DB) *PostgresEmployeeRepo {
	return &PostgresEmployeeRepo{db: db}
}

const employeeColumns = `id, name, email, active, shift_profile_id,
	       default_entry_min, default_exit_min, created_at, updated_at`

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

// ListActive はアクティブな従業員の一覧を返す。
func (r *PostgresEmployeeRepo) ListActive(ctx context.Context) ([]*model.Employee, error) {
	return r.list(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE active = TRUE ORDER BY name`,
	)
}

// ListActiveWithEmail はアクティブかつメールアドレスを持つ従業員の一覧を返す。
func (r *PostgresEmployeeRepo) ListActiveWithEmail(ctx context.Context) ([]*model.Employee, error) {
	return r.list(ctx,
		`SELECT `+employeeColumns+` FROM employees
		 WHERE active = TRUE AND email IS NOT NULL AND email <> ''
		 ORDER BY name`,
	)
}

func (r *PostgresEmployeeRepo) list(ctx context.Context, query string) ([]*model.Employee, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("従業員一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var employees []*model.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("従業員レコードの読み取りに失敗しました: %w", err)
		}
		employees = append(employees, emp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("従業員一覧の走査に失敗しました: %w", err)
	}

	return employees, nil
}

// rowScanner はsql.Rowとsql.RowsのScanを共通化するインターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEmployee(row rowScanner) (*model.Employee, error) {
	emp := &model.Employee{}
	var email, shiftProfileID sql.NullString
	var defaultEntry, defaultExit sql.NullInt64

	if err := row.Scan(
		&emp.ID, &emp.Name, &email, &emp.Active, &shiftProfileID,
		&defaultEntry, &defaultExit, &emp.CreatedAt, &emp.UpdatedAt,
	); err != nil {
		return nil, err
	}

	emp.Email = nullStringValue(email)
	emp.ShiftProfileID = nullStringValue(shiftProfileID)
	emp.DefaultEntryMin = int(defaultEntry.Int64)
	emp.DefaultExitMin = int(defaultExit.Int64)

	return emp, nil
}

// nullString は空文字列をsql.NullStringに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// compile-time interface check
var _ EmployeeRepository = (*PostgresEmployeeRepo)(nil)
