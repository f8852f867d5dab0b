// Package cleanup は既読通知の自動削除ジョブを提供する。
// 未読の通知と、重複判定に使う当日分の履歴は削除対象にならない。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultRetentionDays は既読通知の保持日数のデフォルト値。
const DefaultRetentionDays = 180

// Purger は既読通知の削除を行うインターフェース。
type Purger interface {
	DeleteReadBefore(ctx context.Context, before time.Time) (int64, error)
}

// NotificationCleanupJob は保持期間を超過した既読通知の削除ジョブ。
type NotificationCleanupJob struct {
	purger        Purger
	logger        *slog.Logger
	now           func() time.Time
	RetentionDays int
}

// NewNotificationCleanupJob は新しいNotificationCleanupJobを生成する。
// retentionDaysが0以下の場合はDefaultRetentionDaysを使用する。
func NewNotificationCleanupJob(purger Purger, logger *slog.Logger, retentionDays int) *NotificationCleanupJob {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	return &NotificationCleanupJob{
		purger:        purger,
		logger:        logger,
		now:           time.Now,
		RetentionDays: retentionDays,
	}
}

// Cutoff はこの時刻より前に作成された既読通知が削除対象になる境界を返す。
func (j *NotificationCleanupJob) Cutoff() time.Time {
	return j.now().AddDate(0, 0, -j.RetentionDays)
}

// Run は保持期間を超過した既読通知を削除する。削除対象がなくてもエラーにならない。
func (j *NotificationCleanupJob) Run(ctx context.Context) error {
	start := time.Now()
	cutoff := j.Cutoff()

	deleted, err := j.purger.DeleteReadBefore(ctx, cutoff)
	if err != nil {
		j.logger.Error("通知クリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("通知クリーンアップの実行に失敗: %w", err)
	}

	j.logger.Info("通知クリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deleted),
		slog.Int("retention_days", j.RetentionDays),
		slog.Time("cutoff", cutoff),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return nil
}

// Start は起動直後に1回、その後interval間隔でRunを実行する。
// コンテキストがキャンセルされるまで継続する。
func (j *NotificationCleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		// エラーはRun内でログに記録済み
		_ = j.Run(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
