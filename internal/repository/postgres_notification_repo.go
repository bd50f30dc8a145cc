package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/kintai/internal/model"
)

// PostgresNotificationRepo はPostgreSQLを使用した通知アイテムリポジトリ。
type PostgresNotificationRepo struct {
	db *sql.DB
}

// NewPostgresNotificationRepo はPostgresNotificationRepoを生成する。
func NewPostgresNotificationRepo(db *sql.DB) *PostgresNotificationRepo {
	return &PostgresNotificationRepo{db: db}
}

// CreateIfAbsent は通知アイテムを作成する。
// 冪等キー (employee_id, work_date, notify_type) が既に存在する場合は
// ON CONFLICT DO NOTHING により何もせず (false, nil) を返す。
func (r *PostgresNotificationRepo) CreateIfAbsent(ctx context.Context, item *model.NotificationItem) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO notification_items
		     (id, employee_id, recipient, subject, message, notify_type,
		      work_date, state, attempts, next_attempt_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (employee_id, work_date, notify_type) DO NOTHING`,
		item.ID, item.EmployeeID, item.Recipient, item.Subject, item.Message,
		item.Type, item.WorkDate, item.State, item.Attempts,
		item.NextAttemptAt, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("通知アイテムの作成に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("挿入件数の取得に失敗しました: %w", err)
	}

	return affected > 0, nil
}

// FindByID は指定IDの通知アイテムを取得する。見つからない場合はnilを返す。
func (r *PostgresNotificationRepo) FindByID(ctx context.Context, id string) (*model.NotificationItem, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, employee_id, recipient, subject, message, notify_type,
		        work_date, state, attempts, next_attempt_at, created_at, updated_at
		 FROM notification_items WHERE id = $1`,
		id,
	)

	item, err := scanNotificationItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("通知アイテムの取得に失敗しました: %w", err)
	}
	return item, nil
}

// MarkSent はアイテムを配信成功状態にする。
func (r *PostgresNotificationRepo) MarkSent(ctx context.Context, id string, attempts int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE notification_items
		 SET state = 'sent', attempts = $2, updated_at = now()
		 WHERE id = $1`,
		id, attempts,
	)
	if err != nil {
		return fmt.Errorf("通知アイテムの成功更新に失敗しました: %w", err)
	}
	return nil
}

// MarkRetry は失敗したアイテムをpendingのまま次回試行時刻を設定する。
func (r *PostgresNotificationRepo) MarkRetry(ctx context.Context, id string, attempts int, nextAttemptAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE notification_items
		 SET state = 'pending', attempts = $2, next_attempt_at = $3, updated_at = now()
		 WHERE id = $1`,
		id, attempts, nextAttemptAt,
	)
	if err != nil {
		return fmt.Errorf("通知アイテムの再試行更新に失敗しました: %w", err)
	}
	return nil
}

// MarkFailed はアイテムを終了失敗状態にする。
func (r *PostgresNotificationRepo) MarkFailed(ctx context.Context, id string, attempts int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE notification_items
		 SET state = 'failed', attempts = $2, updated_at = now()
		 WHERE id = $1`,
		id, attempts,
	)
	if err != nil {
		return fmt.Errorf("通知アイテムの失敗更新に失敗しました: %w", err)
	}
	return nil
}

// claimPendingDueQuery は配信待ちアイテムのクレーム文。
// SELECT単体のFOR UPDATEは文の終了とともにロックが解放されるため排他にならない。
// 次回試行時刻をリース分先送りするUPDATEを同一文で行うことで、
// 後続のフラッシュジョブが同じアイテムを取り出せなくする。
// クレーム後にプロセスが落ちた場合はリース経過後に再度取り出される。
const claimPendingDueQuery = `
	UPDATE notification_items
	SET next_attempt_at = now() + interval '5 minutes', updated_at = now()
	WHERE id IN (
	    SELECT id FROM notification_items
	    WHERE state = 'pending' AND next_attempt_at <= now()
	    ORDER BY next_attempt_at ASC
	    LIMIT $1
	    FOR UPDATE SKIP LOCKED)
	RETURNING id, employee_id, recipient, subject, message, notify_type,
	          work_date, state, attempts, next_attempt_at, created_at, updated_at`

// ClaimPendingDue はpending状態かつ次回試行時刻が到来したアイテムを
// 最大limit件、単一の原子的なUPDATE ... RETURNINGでクレームして返す。
// 複数のフラッシュジョブが同時実行されても同一アイテムを重複処理しない。
func (r *PostgresNotificationRepo) ClaimPendingDue(ctx context.Context, limit int) ([]*model.NotificationItem, error) {
	rows, err := r.db.QueryContext(ctx, claimPendingDueQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("配信待ちアイテムのクレームに失敗しました: %w", err)
	}
	defer rows.Close()

	var items []*model.NotificationItem
	for rows.Next() {
		item, err := scanNotificationItem(rows)
		if err != nil {
			return nil, fmt.Errorf("配信待ちアイテムの読み取りに失敗しました: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("配信待ちアイテムの走査に失敗しました: %w", err)
	}

	return items, nil
}

func scanNotificationItem(row rowScanner) (*model.NotificationItem, error) {
	item := &model.NotificationItem{}
	if err := row.Scan(
		&item.ID, &item.EmployeeID, &item.Recipient, &item.Subject,
		&item.Message, &item.Type, &item.WorkDate, &item.State,
		&item.Attempts, &item.NextAttemptAt, &item.CreatedAt, &item.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return item, nil
}

// compile-time interface check
var _ NotificationRepository = (*PostgresNotificationRepo)(nil)
