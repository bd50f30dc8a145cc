package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/kintai/internal/model"
)

// PostgresDeliveryLogRepo はPostgreSQLを使用した配信ログリポジトリ。
type PostgresDeliveryLogRepo struct {
	db *sql.DB
}

// NewPostgresDeliveryLogRepo はPostgresDeliveryLogRepoを生成する。
func NewPostgresDeliveryLogRepo(db *sql.DB) *PostgresDeliveryLogRepo {
	return &PostgresDeliveryLogRepo{db: db}
}

// Append は配信試行ログを1件追記する。
func (r *PostgresDeliveryLogRepo) Append(ctx context.Context, log *model.DeliveryLog) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO delivery_logs
		     (employee_id, notify_type, recipient, subject,
		      result_state, error_message, provider_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		log.EmployeeID, log.Type, log.Recipient, log.Subject,
		log.ResultState, nullString(log.ErrorMessage), nullString(log.ProviderID),
	)
	if err != nil {
		return fmt.Errorf("配信ログの追記に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ DeliveryLogRepository = (*PostgresDeliveryLogRepo)(nil)
